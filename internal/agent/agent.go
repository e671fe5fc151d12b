package agent

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/barabonda/linkbrain/internal/llm"
	"github.com/barabonda/linkbrain/internal/tool"
	"github.com/barabonda/linkbrain/internal/types"
)

// DefaultMaxParallelTools bounds concurrent tool calls within one turn.
const DefaultMaxParallelTools = 4

// Agent runs a Spec's instructions against its allowed tools.
type Agent struct {
	spec Spec
	loop *Loop
}

type options struct {
	turnLimit   int
	maxParallel int
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option configures an Agent.
type Option func(*options)

// WithAgentTurnLimit sets the maximum number of model calls per run.
func WithAgentTurnLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.turnLimit = n
		}
	}
}

// WithMaxParallelTools bounds concurrent tool calls within one turn.
// Default: 4
func WithMaxParallelTools(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxParallel = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// New creates an agent. tools is the invocation surface the agent may use,
// normally a Registry.Subset of spec.Tools.
func New(spec Spec, provider llm.Provider, tools tool.Invoker, opts ...Option) (*Agent, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	o := options{
		turnLimit:   DefaultTurnLimit,
		maxParallel: DefaultMaxParallelTools,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	d := &toolDispatcher{
		tools:       tools,
		maxParallel: o.maxParallel,
		logger:      o.logger.With("agent", spec.Name),
	}
	loop := NewLoop(spec.Name, provider, d,
		WithTurnLimit(o.turnLimit),
		WithInstructions(spec.Instructions),
		WithLoopLogger(o.logger),
		WithLoopTracer(o.tracer),
	)
	return &Agent{spec: spec, loop: loop}, nil
}

// Name returns the agent's name.
func (a *Agent) Name() string {
	return a.spec.Name
}

// Spec returns the agent's definition.
func (a *Agent) Spec() Spec {
	return a.spec
}

// Run runs the loop on a copy of conv, which must already end with the
// request to answer. The caller's conversation is not modified.
func (a *Agent) Run(ctx context.Context, conv *Conversation) (*Result, error) {
	return a.loop.Run(ctx, conv.Clone())
}

// Ask runs the loop on a fresh conversation holding question.
func (a *Agent) Ask(ctx context.Context, question string) (*Result, error) {
	conv, err := NewConversation(llm.NewUserMessage(question))
	if err != nil {
		return nil, err
	}
	return a.loop.Run(ctx, conv)
}

// ToolDefs converts descriptors to the catalog format sent to models.
// Descriptors whose schema cannot be built are skipped and returned in
// skipped.
func ToolDefs(descs []tool.Descriptor) (defs []llm.ToolDef, skipped []string) {
	defs = make([]llm.ToolDef, 0, len(descs))
	for _, d := range descs {
		schema, err := d.Schema()
		if err != nil {
			skipped = append(skipped, d.Name)
			continue
		}
		defs = append(defs, llm.ToolDef{Name: d.Name, Description: d.Description, Parameters: schema})
	}
	return defs, skipped
}

// toolDispatcher runs an agent's tool calls through a tool.Invoker.
type toolDispatcher struct {
	tools       tool.Invoker
	maxParallel int
	logger      *slog.Logger
}

func (d *toolDispatcher) Tools() []llm.ToolDef {
	if d.tools == nil {
		return nil
	}
	defs, skipped := ToolDefs(d.tools.List())
	for _, name := range skipped {
		d.logger.Warn("tool omitted from catalog: schema unavailable", "tool", name)
	}
	return defs
}

// Dispatch runs calls concurrently, at most maxParallel at a time. Results
// are stored by call index so they fold back in call order.
func (d *toolDispatcher) Dispatch(ctx context.Context, conv *Conversation, calls []llm.ToolCall) ([]string, error) {
	outputs := make([]string, len(calls))

	var g errgroup.Group
	g.SetLimit(d.maxParallel)
	for i, call := range calls {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if d.tools == nil {
				outputs[i] = tool.Failure(tool.NewNotFoundError(call.Name)).String()
				return nil
			}
			resp := d.tools.Invoke(ctx, call.Name, json.RawMessage(call.Arguments))
			if !resp.Success {
				d.logger.Debug("tool call failed", "tool", call.Name, "call_id", call.ID, "code", string(resp.Code))
			}
			outputs[i] = resp.String()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, types.WrapError(types.ErrCodeCancelled, "tool execution cancelled", err)
	}
	return outputs, nil
}
