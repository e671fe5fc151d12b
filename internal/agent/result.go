package agent

import (
	"time"

	"github.com/barabonda/linkbrain/internal/llm"
	"github.com/barabonda/linkbrain/internal/types"
)

// State is a position in the reasoning loop.
type State string

const (
	StateAwaitingModel State = "awaiting_model"
	StateExecutingTool State = "executing_tool"
	StateDone          State = "done"
)

// String returns the string representation of State
func (s State) String() string {
	return string(s)
}

// Status explains why a run reached StateDone.
type Status string

const (
	// StatusCompleted indicates the model produced a final answer
	StatusCompleted Status = "completed"

	// StatusTruncated indicates the turn limit was reached
	StatusTruncated Status = "truncated"

	// StatusCancelled indicates the context was cancelled
	StatusCancelled Status = "cancelled"

	// StatusFailed indicates a model call failed
	StatusFailed Status = "failed"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// Notices used as the final message of runs that did not complete.
const (
	TruncationNotice   = "Stopped: the turn limit was reached before a final answer was produced."
	CancellationNotice = "Stopped: the request was cancelled."
	FailureNotice      = "Stopped: the model could not be reached."
	EmptyAnswerNotice  = "The model returned an empty answer."
)

// Delegation records one hand-off from a supervisor to a member agent.
type Delegation struct {
	Member string `json:"member"`
	Task   string `json:"task,omitempty"`
	RunID  string `json:"run_id"`
	Status Status `json:"status"`
	Turns  int    `json:"turns"`
	Final  string `json:"final"`
}

// Result is the outcome of one run. State is always StateDone once Run
// returns.
type Result struct {
	RunID        string         `json:"run_id"`
	Agent        string         `json:"agent"`
	State        State          `json:"state"`
	Status       Status         `json:"status"`
	Final        llm.Message    `json:"final"`
	Turns        int            `json:"turns"`
	Usage        llm.TokenUsage `json:"usage"`
	Conversation []llm.Message  `json:"conversation"`
	Delegations  []Delegation   `json:"delegations,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  time.Time      `json:"completed_at"`
	Duration     time.Duration  `json:"duration"`
}

func newResult(agentName string) *Result {
	return &Result{
		RunID:     types.NewID().String(),
		Agent:     agentName,
		State:     StateAwaitingModel,
		StartedAt: time.Now(),
	}
}

func (r *Result) finish(status Status, final llm.Message, conv *Conversation) {
	r.State = StateDone
	r.Status = status
	r.Final = final
	r.Conversation = conv.Messages()
	r.CompletedAt = time.Now()
	r.Duration = r.CompletedAt.Sub(r.StartedAt)
}

// Answer returns the text of the final message.
func (r *Result) Answer() string {
	return r.Final.Content
}
