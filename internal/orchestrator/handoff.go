package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/barabonda/linkbrain/internal/agent"
	"github.com/barabonda/linkbrain/internal/llm"
	"github.com/barabonda/linkbrain/internal/tool"
	"github.com/barabonda/linkbrain/internal/types"
)

// HandoffPrefix prefixes the hand-off tool of each member.
const HandoffPrefix = "transfer_to_"

var handoffSchema = json.RawMessage(`{"type":"object","properties":{"task":{"type":"string","description":"Optional restatement of what the member should do."}},"additionalProperties":false}`)

// HandoffToolName returns the hand-off tool name for member.
func HandoffToolName(member string) string {
	return HandoffPrefix + member
}

// handoffOutcome is the tool result the supervisor sees after a hand-off.
type handoffOutcome struct {
	Agent  string       `json:"agent"`
	Status agent.Status `json:"status"`
	Turns  int          `json:"turns"`
	Answer string       `json:"answer"`
}

// handoffDispatcher resolves hand-off calls for one supervisor run.
type handoffDispatcher struct {
	members     []Member
	byTool      map[string]Member
	logger      *slog.Logger
	tracer      trace.Tracer
	delegations []agent.Delegation
}

func (d *handoffDispatcher) Tools() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(d.members))
	for _, m := range d.members {
		spec := m.Spec()
		desc := fmt.Sprintf("Hand the request to %s.", spec.Name)
		if spec.Description != "" {
			desc = fmt.Sprintf("Hand the request to %s: %s", spec.Name, spec.Description)
		}
		defs = append(defs, llm.ToolDef{
			Name:        HandoffToolName(spec.Name),
			Description: desc,
			Parameters:  handoffSchema,
		})
	}
	return defs
}

// Dispatch runs hand-offs one after another, in call order. A later
// member sees the answers of earlier members of the same turn.
func (d *handoffDispatcher) Dispatch(ctx context.Context, conv *agent.Conversation, calls []llm.ToolCall) ([]string, error) {
	outputs := make([]string, len(calls))
	var earlier []llm.Message
	for i, call := range calls {
		out, err := d.handoff(ctx, conv, earlier, call)
		if err != nil {
			return nil, err
		}
		outputs[i] = out
		earlier = append(earlier, llm.NewToolResultMessage(call.ID, out).WithName(call.Name))
	}
	return outputs, nil
}

func (d *handoffDispatcher) handoff(ctx context.Context, conv *agent.Conversation, earlier []llm.Message, call llm.ToolCall) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", types.WrapError(types.ErrCodeCancelled, "hand-off cancelled", err)
	}

	member, ok := d.byTool[call.Name]
	if !ok {
		d.logger.WarnContext(ctx, "unknown hand-off requested", "tool", call.Name)
		return tool.Failure(tool.NewNotFoundError(call.Name)).String(), nil
	}

	task, err := parseTask(call.Arguments)
	if err != nil {
		return tool.Failure(tool.NewValidationError(call.Name, err)).String(), nil
	}

	memberConv, err := memberConversation(conv, earlier, task)
	if err != nil {
		return tool.Failure(err).String(), nil
	}

	ctx, span := d.tracer.Start(ctx, "supervisor.handoff",
		trace.WithAttributes(
			attribute.String("handoff.member", member.Name()),
			attribute.Bool("handoff.has_task", task != ""),
		))
	defer span.End()

	d.logger.InfoContext(ctx, "delegating", "member", member.Name(), "task", task)
	res, runErr := member.Run(ctx, memberConv)

	delegation := agent.Delegation{Member: member.Name(), Task: task}
	if res != nil {
		delegation.RunID = res.RunID
		delegation.Status = res.Status
		delegation.Turns = res.Turns
		delegation.Final = res.Answer()
	}
	d.delegations = append(d.delegations, delegation)

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		if ctx.Err() != nil || types.IsCancelled(runErr) {
			return "", types.WrapError(types.ErrCodeCancelled, "hand-off cancelled", runErr)
		}
		d.logger.WarnContext(ctx, "member run failed", "member", member.Name(), "error", runErr)
		return tool.Failure(runErr).String(), nil
	}

	span.SetAttributes(
		attribute.String("handoff.status", string(res.Status)),
		attribute.Int("handoff.turns", res.Turns),
	)
	encoded, err := json.Marshal(handoffOutcome{
		Agent:  member.Name(),
		Status: res.Status,
		Turns:  res.Turns,
		Answer: res.Answer(),
	})
	if err != nil {
		return tool.Failure(types.WrapError(types.ErrCodeSerialization, "hand-off outcome not serializable", err)).String(), nil
	}
	return tool.Success(encoded).String(), nil
}

// parseTask reads the optional task argument of a hand-off call.
func parseTask(arguments string) (string, error) {
	if strings.TrimSpace(arguments) == "" {
		return "", nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	raw, ok := args["task"]
	if !ok || raw == nil {
		return "", nil
	}
	task, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("task must be a string")
	}
	return strings.TrimSpace(task), nil
}

// memberConversation builds what a member sees: the user-visible history,
// ending with a user message. With a task, the task is that message;
// without one the latest user request is repeated when the history ends
// with assistant text. earlier holds hand-off results of the current turn
// that are not yet part of conv.
func memberConversation(conv *agent.Conversation, earlier []llm.Message, task string) (*agent.Conversation, error) {
	history := visibleHistory(append(conv.Messages(), earlier...))

	switch {
	case task != "":
		history = append(history, llm.NewUserMessage(task))
	case len(history) > 0 && history[len(history)-1].Role != llm.RoleUser:
		if last, ok := conv.LastUserMessage(); ok {
			history = append(history, llm.NewUserMessage(last))
		}
	}
	return agent.NewConversation(history...)
}

// visibleHistory keeps user messages, assistant text and the answers of
// earlier successful hand-offs, attributed to the member that gave them.
// Tool calls and other tool traffic are dropped.
func visibleHistory(msgs []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case llm.RoleUser:
			out = append(out, msg)
		case llm.RoleAssistant:
			if msg.Content != "" {
				out = append(out, llm.NewAssistantMessage(msg.Content).WithName(msg.Name))
			}
		case llm.RoleTool:
			if !strings.HasPrefix(msg.Name, HandoffPrefix) {
				continue
			}
			var resp tool.Response
			if err := json.Unmarshal([]byte(msg.Content), &resp); err != nil || !resp.Success {
				continue
			}
			var outcome handoffOutcome
			if err := json.Unmarshal(resp.Result, &outcome); err != nil || outcome.Answer == "" {
				continue
			}
			out = append(out, llm.NewAssistantMessage(outcome.Answer).WithName(outcome.Agent))
		}
	}
	return out
}
