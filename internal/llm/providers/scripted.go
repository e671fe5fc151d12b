package providers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/barabonda/linkbrain/internal/llm"
)

// Step is one scripted model turn.
type Step struct {
	// Content is the assistant text.
	Content string
	// ToolCalls are requested when non-empty. Missing ids are generated
	// fresh on every use of the step.
	ToolCalls []llm.ToolCall
	// Err is returned instead of a response.
	Err error
	// Respond, when set, computes the response from the request.
	Respond func(req llm.CompletionRequest, tools []llm.ToolDef) (*llm.CompletionResponse, error)
	// Block waits for the context to end and returns its error.
	Block bool
}

// FinalAnswer scripts a turn that answers without calling tools.
func FinalAnswer(content string) Step {
	return Step{Content: content}
}

// CallTool scripts a turn requesting one tool call. args is encoded as JSON.
func CallTool(name string, args any) Step {
	return CallTools(ToolCall(name, args))
}

// CallTools scripts a turn requesting several tool calls.
func CallTools(calls ...llm.ToolCall) Step {
	return Step{ToolCalls: calls}
}

// ToolCall builds a tool call with JSON-encoded args and no id.
func ToolCall(name string, args any) llm.ToolCall {
	encoded := "{}"
	if args != nil {
		if data, err := json.Marshal(args); err == nil {
			encoded = string(data)
		}
	}
	return llm.ToolCall{Type: "function", Name: name, Arguments: encoded}
}

// Fail scripts a turn where the provider returns err.
func Fail(err error) Step {
	return Step{Err: err}
}

// ScriptedCall is a recorded request to ScriptedProvider.
type ScriptedCall struct {
	Request llm.CompletionRequest
	Tools   []llm.ToolDef
}

// ScriptedProvider replays scripted steps in order; the last step repeats
// once the script is exhausted. It records every request.
type ScriptedProvider struct {
	mu    sync.Mutex
	name  string
	steps []Step
	next  int
	calls []ScriptedCall
}

// NewScriptedProvider creates a provider replaying steps.
func NewScriptedProvider(steps ...Step) *ScriptedProvider {
	return &ScriptedProvider{name: "scripted", steps: steps}
}

// Name returns the provider name
func (p *ScriptedProvider) Name() string {
	return p.name
}

// CompleteWithTools returns the next scripted step.
func (p *ScriptedProvider) CompleteWithTools(ctx context.Context, req llm.CompletionRequest, tools []llm.ToolDef) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, ScriptedCall{
		Request: cloneRequest(req),
		Tools:   append([]llm.ToolDef(nil), tools...),
	})
	if len(p.steps) == 0 {
		p.mu.Unlock()
		return nil, errors.New("scripted provider has no steps")
	}
	step := p.steps[p.next]
	if p.next < len(p.steps)-1 {
		p.next++
	}
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if step.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if step.Err != nil {
		return nil, step.Err
	}
	if step.Respond != nil {
		return step.Respond(req, tools)
	}

	msg := llm.Message{Role: llm.RoleAssistant, Content: step.Content}
	for _, tc := range step.ToolCalls {
		if tc.ID == "" {
			tc.ID = "call_" + uuid.New().String()
		}
		if tc.Type == "" {
			tc.Type = "function"
		}
		msg.ToolCalls = append(msg.ToolCalls, tc)
	}

	finish := llm.FinishReasonStop
	if msg.HasToolCalls() {
		finish = llm.FinishReasonToolCalls
	}
	return &llm.CompletionResponse{
		ID:           uuid.New().String(),
		Model:        req.Model,
		Message:      msg,
		FinishReason: finish,
	}, nil
}

// Calls returns the recorded requests.
func (p *ScriptedProvider) Calls() []ScriptedCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ScriptedCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns how many model calls were made.
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func cloneRequest(req llm.CompletionRequest) llm.CompletionRequest {
	req.Messages = append([]llm.Message(nil), req.Messages...)
	return req
}
