package agent

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/barabonda/linkbrain/internal/contextkeys"
	"github.com/barabonda/linkbrain/internal/llm"
	"github.com/barabonda/linkbrain/internal/types"
)

const (
	tracerName = "github.com/barabonda/linkbrain/internal/agent"

	// DefaultTurnLimit bounds model calls per run.
	DefaultTurnLimit = 10
)

// Dispatcher resolves the tool calls of one turn.
type Dispatcher interface {
	// Tools returns the catalog offered to the model.
	Tools() []llm.ToolDef

	// Dispatch resolves calls and returns one result text per call, in call
	// order. conv is the conversation up to and including the assistant
	// message that made the calls. The only error returned is cancellation.
	Dispatch(ctx context.Context, conv *Conversation, calls []llm.ToolCall) ([]string, error)
}

// Loop is the Awaiting-Model / Executing-Tool / Done state machine shared
// by agents and supervisors. It is safe for concurrent runs; all run state
// lives in the Result and Conversation of each run.
type Loop struct {
	name         string
	instructions string
	provider     llm.Provider
	dispatcher   Dispatcher
	turnLimit    int
	logger       *slog.Logger
	tracer       trace.Tracer
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithTurnLimit sets the maximum number of model calls per run.
// Default: 10
func WithTurnLimit(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.turnLimit = n
		}
	}
}

// WithInstructions sets the system message sent ahead of the conversation.
func WithInstructions(text string) LoopOption {
	return func(l *Loop) {
		l.instructions = text
	}
}

// WithLoopLogger sets the logger.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithLoopTracer sets the tracer.
func WithLoopTracer(tracer trace.Tracer) LoopOption {
	return func(l *Loop) {
		if tracer != nil {
			l.tracer = tracer
		}
	}
}

// NewLoop creates a loop named name.
func NewLoop(name string, provider llm.Provider, dispatcher Dispatcher, opts ...LoopOption) *Loop {
	l := &Loop{
		name:       name,
		provider:   provider,
		dispatcher: dispatcher,
		turnLimit:  DefaultTurnLimit,
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the loop's name.
func (l *Loop) Name() string {
	return l.name
}

// TurnLimit returns the maximum number of model calls per run.
func (l *Loop) TurnLimit() int {
	return l.turnLimit
}

// Run drives conv to StateDone. conv is appended to in place.
//
// The run ends when:
//   - the model answers without calling tools (StatusCompleted)
//   - turnLimit model calls have all requested tools (StatusTruncated)
//   - ctx is cancelled (StatusCancelled, RUN_CANCELLED error)
//   - a model call fails (StatusFailed, MODEL_FAILED error)
//
// Tool failures are not run failures; they reach the model as tool
// results. A Result is returned in every case.
func (l *Loop) Run(ctx context.Context, conv *Conversation) (*Result, error) {
	result := newResult(l.name)

	ctx, span := l.tracer.Start(ctx, "agent.run",
		trace.WithAttributes(
			attribute.String("agent.name", l.name),
			attribute.String("agent.run_id", result.RunID),
			attribute.Int("agent.turn_limit", l.turnLimit),
		))
	defer span.End()
	ctx = contextkeys.WithRun(ctx, result.RunID, l.name)

	logger := l.logger.With("run_id", result.RunID, "agent", l.name)
	logger.DebugContext(ctx, "run starting", "turn_limit", l.turnLimit, "messages", conv.Len())

	for turn := 1; turn <= l.turnLimit; turn++ {
		if ctx.Err() != nil {
			return l.cancelled(ctx, span, logger, result, conv)
		}

		result.State = StateAwaitingModel
		result.Turns = turn
		logger.DebugContext(ctx, "turn starting", "turn", turn, "state", result.State.String())

		resp, err := l.complete(ctx, turn, conv)
		if err != nil {
			if ctx.Err() != nil || types.IsCancelled(err) {
				return l.cancelled(ctx, span, logger, result, conv)
			}
			return l.failed(span, logger, result, conv, err)
		}
		result.Usage = result.Usage.Add(resp.Usage)

		msg := resp.Message
		msg.Role = llm.RoleAssistant
		msg.Name = l.name
		msg.ToolCallID = ""

		if !msg.HasToolCalls() {
			if msg.Content == "" {
				msg.Content = EmptyAnswerNotice
			}
			if err := conv.Append(msg); err != nil {
				return l.failed(span, logger, result, conv, err)
			}
			result.finish(StatusCompleted, msg, conv)
			span.SetAttributes(attribute.Int("agent.turns", turn), attribute.String("agent.status", string(StatusCompleted)))
			logger.InfoContext(ctx, "run completed", "turns", turn)
			return result, nil
		}

		if err := conv.Append(msg); err != nil {
			return l.failed(span, logger, result, conv, err)
		}

		result.State = StateExecutingTool
		logger.DebugContext(ctx, "executing tools", "turn", turn, "state", result.State.String(), "calls", len(msg.ToolCalls))

		outputs, err := l.dispatcher.Dispatch(ctx, conv, msg.ToolCalls)
		if err != nil {
			return l.cancelled(ctx, span, logger, result, conv)
		}
		for i, call := range msg.ToolCalls {
			if err := conv.Append(llm.NewToolResultMessage(call.ID, outputs[i]).WithName(call.Name)); err != nil {
				return l.failed(span, logger, result, conv, err)
			}
		}
	}

	final := llm.NewAssistantMessage(TruncationNotice).WithName(l.name)
	if err := conv.Append(final); err != nil {
		logger.Warn("failed to record truncation notice", "error", err)
	}
	result.finish(StatusTruncated, final, conv)
	span.SetAttributes(attribute.Int("agent.turns", result.Turns), attribute.String("agent.status", string(StatusTruncated)))
	logger.WarnContext(ctx, "turn limit reached", "turns", result.Turns, "turn_limit", l.turnLimit)
	return result, nil
}

func (l *Loop) complete(ctx context.Context, turn int, conv *Conversation) (*llm.CompletionResponse, error) {
	ctx, span := l.tracer.Start(ctx, "agent.turn",
		trace.WithAttributes(
			attribute.String("agent.name", l.name),
			attribute.Int("agent.turn", turn),
		))
	defer span.End()

	history := conv.Messages()
	messages := make([]llm.Message, 0, len(history)+1)
	if l.instructions != "" {
		messages = append(messages, llm.NewSystemMessage(l.instructions))
	}
	messages = append(messages, history...)

	resp, err := l.provider.CompleteWithTools(ctx, llm.CompletionRequest{Messages: messages}, l.dispatcher.Tools())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("agent.tool_calls", len(resp.Message.ToolCalls)))
	return resp, nil
}

func (l *Loop) cancelled(ctx context.Context, span trace.Span, logger *slog.Logger, result *Result, conv *Conversation) (*Result, error) {
	final := llm.NewAssistantMessage(CancellationNotice).WithName(l.name)
	result.finish(StatusCancelled, final, conv)

	cause := ctx.Err()
	if cause == nil {
		cause = context.Canceled
	}
	err := types.WrapError(types.ErrCodeCancelled, "run cancelled", cause)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Warn("run cancelled", "turns", result.Turns)
	return result, err
}

func (l *Loop) failed(span trace.Span, logger *slog.Logger, result *Result, conv *Conversation, cause error) (*Result, error) {
	final := llm.NewAssistantMessage(FailureNotice).WithName(l.name)
	result.finish(StatusFailed, final, conv)

	err := types.WrapError(types.ErrCodeModelFailed, "model call failed", cause)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Error("run failed", "turns", result.Turns, "error", cause)
	return result, err
}
