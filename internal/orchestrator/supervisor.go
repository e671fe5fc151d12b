package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/barabonda/linkbrain/internal/agent"
	"github.com/barabonda/linkbrain/internal/llm"
	"github.com/barabonda/linkbrain/internal/tool"
	"github.com/barabonda/linkbrain/internal/types"
)

const tracerName = "github.com/barabonda/linkbrain/internal/orchestrator"

// Member is an agent a Supervisor can hand off to. *agent.Agent implements it.
type Member interface {
	Name() string
	Spec() agent.Spec
	Run(ctx context.Context, conv *agent.Conversation) (*agent.Result, error)
}

// Supervisor routes a request among member agents.
type Supervisor struct {
	spec     agent.SupervisorSpec
	provider llm.Provider
	members  []Member
	byTool   map[string]Member

	turnLimit        int
	memberTurnLimit  int
	maxParallelTools int
	logger           *slog.Logger
	tracer           trace.Tracer
}

// Option is a functional option for configuring the Supervisor.
type Option func(*Supervisor)

// WithTurnLimit sets the maximum number of supervisor model calls per run.
// Default: 10
func WithTurnLimit(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.turnLimit = n
		}
	}
}

// WithMemberTurnLimit sets the turn limit of members built by NewFromTeam.
// Default: 10
func WithMemberTurnLimit(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.memberTurnLimit = n
		}
	}
}

// WithMaxParallelTools bounds concurrent tool calls of members built by
// NewFromTeam.
// Default: 4
func WithMaxParallelTools(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.maxParallelTools = n
		}
	}
}

// WithLogger sets the logger for supervisor operations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer sets the OpenTelemetry tracer for distributed tracing.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Supervisor) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// New creates a Supervisor over members. Member names must be unique; the
// hand-off catalog is presented in the order given.
func New(spec agent.SupervisorSpec, provider llm.Provider, members []Member, opts ...Option) (*Supervisor, error) {
	if len(members) == 0 {
		return nil, types.NewError(agent.ErrCodeInvalidTeam, "supervisor needs at least one member")
	}
	if spec.Name == "" {
		spec.Name = "supervisor"
	}

	s := &Supervisor{
		spec:             spec,
		provider:         provider,
		members:          members,
		byTool:           make(map[string]Member, len(members)),
		turnLimit:        agent.DefaultTurnLimit,
		memberTurnLimit:  agent.DefaultTurnLimit,
		maxParallelTools: agent.DefaultMaxParallelTools,
		logger:           slog.Default(),
		tracer:           otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, m := range members {
		name := HandoffToolName(m.Name())
		if _, dup := s.byTool[name]; dup {
			return nil, types.NewError(agent.ErrCodeInvalidTeam, fmt.Sprintf("duplicate member name %q", m.Name()))
		}
		s.byTool[name] = m
	}
	return s, nil
}

// NewFromTeam builds member agents from team, each limited to its listed
// tools of registry, and a Supervisor over them. Every agent uses provider.
func NewFromTeam(team agent.Team, provider llm.Provider, registry *tool.Registry, opts ...Option) (*Supervisor, error) {
	if err := team.Validate(); err != nil {
		return nil, err
	}

	// Resolve options first so members inherit limits and logging.
	probe := &Supervisor{
		turnLimit:        agent.DefaultTurnLimit,
		memberTurnLimit:  agent.DefaultTurnLimit,
		maxParallelTools: agent.DefaultMaxParallelTools,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(probe)
	}

	members := make([]Member, 0, len(team.Members))
	for _, spec := range team.Members {
		tools, err := registry.Subset(spec.Tools)
		if err != nil {
			return nil, types.WrapError(agent.ErrCodeInvalidTeam,
				fmt.Sprintf("member %q lists an unregistered tool", spec.Name), err)
		}
		a, err := agent.New(spec, provider, tools,
			agent.WithAgentTurnLimit(probe.memberTurnLimit),
			agent.WithMaxParallelTools(probe.maxParallelTools),
			agent.WithLogger(probe.logger),
			agent.WithTracer(probe.tracer),
		)
		if err != nil {
			return nil, err
		}
		members = append(members, a)
	}
	return New(team.Supervisor, provider, members, opts...)
}

// Name returns the supervisor's name.
func (s *Supervisor) Name() string {
	return s.spec.Name
}

// Members returns the members in catalog order.
func (s *Supervisor) Members() []Member {
	out := make([]Member, len(s.members))
	copy(out, s.members)
	return out
}

// Run answers userMessage. See RunConversation.
func (s *Supervisor) Run(ctx context.Context, userMessage string) (*agent.Result, error) {
	conv, err := agent.NewConversation(llm.NewUserMessage(userMessage))
	if err != nil {
		return nil, err
	}
	return s.RunConversation(ctx, conv)
}

// RunConversation runs the supervisor loop on a copy of conv, which must
// end with the request to answer. Each hand-off runs the member's loop to
// completion before the supervisor's next model call.
//
// The returned Result lists every hand-off in Delegations. Truncation
// returns no error; cancellation returns RUN_CANCELLED and a failed
// supervisor model call returns MODEL_FAILED. A failing member is reported
// to the supervisor's model as a tool error, not returned.
func (s *Supervisor) RunConversation(ctx context.Context, conv *agent.Conversation) (*agent.Result, error) {
	d := &handoffDispatcher{
		members: s.members,
		byTool:  s.byTool,
		logger:  s.logger.With("supervisor", s.spec.Name),
		tracer:  s.tracer,
	}
	loop := agent.NewLoop(s.spec.Name, s.provider, d,
		agent.WithTurnLimit(s.turnLimit),
		agent.WithInstructions(s.instructions()),
		agent.WithLoopLogger(s.logger),
		agent.WithLoopTracer(s.tracer),
	)

	result, err := loop.Run(ctx, conv.Clone())
	if result != nil {
		result.Delegations = d.delegations
	}
	if err == nil {
		s.logger.Info("supervisor run finished",
			"run_id", result.RunID,
			"status", result.Status.String(),
			"turns", result.Turns,
			"delegations", len(d.delegations),
		)
	}
	return result, err
}

// instructions appends the member catalog to the configured instructions
// so routing sees members in a consistent order.
func (s *Supervisor) instructions() string {
	text := s.spec.Instructions
	if text != "" {
		text += "\n\n"
	}
	text += "Members:"
	for _, m := range s.members {
		spec := m.Spec()
		text += fmt.Sprintf("\n- %s (call %s)", spec.Name, HandoffToolName(spec.Name))
		if spec.Description != "" {
			text += ": " + spec.Description
		}
	}
	return text
}
