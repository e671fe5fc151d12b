package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barabonda/linkbrain/internal/contextkeys"
	"github.com/barabonda/linkbrain/internal/llm"
	"github.com/barabonda/linkbrain/internal/llm/providers"
	"github.com/barabonda/linkbrain/internal/tool"
	"github.com/barabonda/linkbrain/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func lookupDescriptor(name string) tool.Descriptor {
	return tool.Descriptor{
		Name:        name,
		Description: "looks something up",
		Parameters: []tool.Parameter{
			{Name: "key", Types: []string{"string"}, Required: true},
		},
	}
}

func newTestRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry(tool.WithLogger(discardLogger()))
	require.NoError(t, reg.Register(lookupDescriptor("lookup"), tool.HandlerFunc(
		func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"key": args["key"], "value": 42}, nil
		})))
	require.NoError(t, reg.Register(lookupDescriptor("broken"), tool.HandlerFunc(
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, types.NewError(types.ErrCodeQuery, "syntax error near MATCH")
		})))
	return reg
}

func newTestAgent(t *testing.T, provider llm.Provider, invoker tool.Invoker, opts ...Option) *Agent {
	t.Helper()
	spec := Spec{Name: "graph_agent", Tools: []string{"lookup"}, Instructions: "Answer from the graph."}
	a, err := New(spec, provider, invoker, append([]Option{WithLogger(discardLogger())}, opts...)...)
	require.NoError(t, err)
	return a
}

func decodeEnvelope(t *testing.T, content string) tool.Response {
	t.Helper()
	var resp tool.Response
	require.NoError(t, json.Unmarshal([]byte(content), &resp))
	return resp
}

func TestAgent_CompletesAfterToolCall(t *testing.T) {
	reg := newTestRegistry(t)
	subset, err := reg.Subset([]string{"lookup"})
	require.NoError(t, err)

	model := providers.NewScriptedProvider(
		providers.CallTool("lookup", map[string]any{"key": "plants"}),
		providers.FinalAnswer("There are 42 plants."),
	)
	a := newTestAgent(t, model, subset)

	result, err := a.Ask(context.Background(), "How many plants?")
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "There are 42 plants.", result.Answer())
	assert.Equal(t, "graph_agent", result.Final.Name)
	assert.Equal(t, 2, result.Turns)
	assert.NotEmpty(t, result.RunID)

	conv := result.Conversation
	require.Len(t, conv, 4)
	assert.Equal(t, llm.RoleUser, conv[0].Role)
	assert.Equal(t, llm.RoleAssistant, conv[1].Role)
	require.Len(t, conv[1].ToolCalls, 1)
	assert.Equal(t, llm.RoleTool, conv[2].Role)
	assert.Equal(t, conv[1].ToolCalls[0].ID, conv[2].ToolCallID)
	assert.Equal(t, "lookup", conv[2].Name)
	assert.JSONEq(t, `{"success":true,"result":{"key":"plants","value":42},"error":null}`, conv[2].Content)
	assert.Equal(t, llm.RoleAssistant, conv[3].Role)
}

func TestAgent_SendsInstructionsAndAllowedTools(t *testing.T) {
	reg := newTestRegistry(t)
	subset, err := reg.Subset([]string{"lookup"})
	require.NoError(t, err)

	model := providers.NewScriptedProvider(providers.FinalAnswer("done"))
	a := newTestAgent(t, model, subset)

	_, err = a.Ask(context.Background(), "hi")
	require.NoError(t, err)

	calls := model.Calls()
	require.Len(t, calls, 1)
	msgs := calls[0].Request.Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.NewSystemMessage("Answer from the graph."), msgs[0])
	assert.Equal(t, llm.NewUserMessage("hi"), msgs[1])

	require.Len(t, calls[0].Tools, 1)
	assert.Equal(t, "lookup", calls[0].Tools[0].Name)
	assert.JSONEq(t,
		`{"type":"object","properties":{"key":{"type":"string"}},"required":["key"],"additionalProperties":false}`,
		string(calls[0].Tools[0].Parameters))
}

func TestAgent_TruncatesAtTurnLimit(t *testing.T) {
	for _, limit := range []int{1, 3, 10} {
		t.Run("limit", func(t *testing.T) {
			reg := newTestRegistry(t)
			model := providers.NewScriptedProvider(providers.CallTool("lookup", map[string]any{"key": "again"}))
			a := newTestAgent(t, model, reg, WithAgentTurnLimit(limit))

			result, err := a.Ask(context.Background(), "loop forever")
			require.NoError(t, err)

			assert.Equal(t, StateDone, result.State)
			assert.Equal(t, StatusTruncated, result.Status)
			assert.Equal(t, TruncationNotice, result.Answer())
			assert.Equal(t, limit, result.Turns)
			assert.Equal(t, limit, model.CallCount())

			m, err := reg.Metrics("lookup")
			require.NoError(t, err)
			assert.Equal(t, int64(limit), m.TotalCalls)
		})
	}
}

func TestAgent_ToolErrorsAreFedBack(t *testing.T) {
	reg := newTestRegistry(t)

	tests := []struct {
		name string
		call llm.ToolCall
		code types.ErrorCode
	}{
		{"handler error", providers.ToolCall("broken", map[string]any{"key": "x"}), types.ErrCodeQuery},
		{"missing argument", providers.ToolCall("lookup", map[string]any{}), types.ErrCodeValidation},
		{"unknown tool", providers.ToolCall("drop_database", nil), types.ErrCodeToolNotFound},
		{"malformed arguments", llm.ToolCall{Name: "lookup", Arguments: `{"key":`}, types.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := providers.NewScriptedProvider(
				providers.CallTools(tt.call),
				providers.FinalAnswer("I could not do that."),
			)
			a := newTestAgent(t, model, reg)

			result, err := a.Ask(context.Background(), "try it")
			require.NoError(t, err)
			assert.Equal(t, StatusCompleted, result.Status)

			second := model.Calls()[1].Request.Messages
			toolMsg := second[len(second)-1]
			assert.Equal(t, llm.RoleTool, toolMsg.Role)

			env := decodeEnvelope(t, toolMsg.Content)
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Code)
			assert.Nil(t, env.Result)
		})
	}
}

func TestAgent_ParallelToolCallsFoldBackInCallOrder(t *testing.T) {
	reg := tool.NewRegistry(tool.WithLogger(discardLogger()))
	var inFlight, peak atomic.Int32
	require.NoError(t, reg.Register(lookupDescriptor("slow"), tool.HandlerFunc(
		func(ctx context.Context, args map[string]any) (any, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			key, _ := tool.StringArg(args, "key")
			if key == "first" {
				time.Sleep(30 * time.Millisecond)
			}
			return key, nil
		})))

	model := providers.NewScriptedProvider(
		providers.CallTools(
			providers.ToolCall("slow", map[string]any{"key": "first"}),
			providers.ToolCall("slow", map[string]any{"key": "second"}),
			providers.ToolCall("slow", map[string]any{"key": "third"}),
		),
		providers.FinalAnswer("done"),
	)
	a := newTestAgent(t, model, reg, WithMaxParallelTools(2))

	result, err := a.Ask(context.Background(), "go")
	require.NoError(t, err)

	var got []string
	for _, msg := range result.Conversation {
		if msg.Role == llm.RoleTool {
			var v string
			require.NoError(t, json.Unmarshal(decodeEnvelope(t, msg.Content).Result, &v))
			got = append(got, v)
		}
	}
	assert.Equal(t, []string{"first", "second", "third"}, got)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestAgent_Cancellation(t *testing.T) {
	model := providers.NewScriptedProvider(providers.Step{Block: true})
	a := newTestAgent(t, model, newTestRegistry(t))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	result, err := a.Ask(ctx, "wait")
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeCancelled, types.CodeOf(err))
	require.NotNil(t, result)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, StatusCancelled, result.Status)
	assert.Equal(t, CancellationNotice, result.Answer())
}

func TestAgent_CancellationDuringToolsStopsTheRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := tool.NewRegistry(tool.WithLogger(discardLogger()))
	require.NoError(t, reg.Register(lookupDescriptor("lookup"), tool.HandlerFunc(
		func(ctx context.Context, args map[string]any) (any, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		})))

	model := providers.NewScriptedProvider(
		providers.CallTool("lookup", map[string]any{"key": "k"}),
		providers.FinalAnswer("never"),
	)
	a := newTestAgent(t, model, reg)

	result, err := a.Ask(ctx, "go")
	assert.True(t, types.IsCancelled(err))
	assert.Equal(t, StatusCancelled, result.Status)
	assert.Equal(t, 1, model.CallCount(), "no model call after cancellation")
}

func TestAgent_ModelFailure(t *testing.T) {
	model := providers.NewScriptedProvider(providers.Fail(errors.New("503 service unavailable")))
	a := newTestAgent(t, model, newTestRegistry(t))

	result, err := a.Ask(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeModelFailed, types.CodeOf(err))
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, FailureNotice, result.Answer())
	assert.Equal(t, 1, result.Turns)
}

func TestAgent_EmptyAnswer(t *testing.T) {
	model := providers.NewScriptedProvider(providers.FinalAnswer(""))
	a := newTestAgent(t, model, newTestRegistry(t))

	result, err := a.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, EmptyAnswerNotice, result.Answer())
}

func TestAgent_RunLeavesCallerConversationUntouched(t *testing.T) {
	conv, err := NewConversation(llm.NewUserMessage("hi"))
	require.NoError(t, err)

	a := newTestAgent(t, providers.NewScriptedProvider(providers.FinalAnswer("hello")), newTestRegistry(t))
	result, err := a.Run(context.Background(), conv)
	require.NoError(t, err)

	assert.Equal(t, 1, conv.Len())
	assert.Len(t, result.Conversation, 2)
}

func TestNew_RejectsInvalidSpec(t *testing.T) {
	_, err := New(Spec{Name: "bad name!"}, providers.NewScriptedProvider(), nil)
	assert.True(t, types.HasCode(err, ErrCodeInvalidTeam))
}

func TestAgent_ToolHandlersSeeTheRun(t *testing.T) {
	var seenRun, seenAgent string
	reg := tool.NewRegistry(tool.WithLogger(discardLogger()))
	require.NoError(t, reg.Register(lookupDescriptor("lookup"), tool.HandlerFunc(
		func(ctx context.Context, args map[string]any) (any, error) {
			seenRun, seenAgent = contextkeys.GetRunID(ctx), contextkeys.GetAgentName(ctx)
			return "ok", nil
		})))

	model := providers.NewScriptedProvider(
		providers.CallTool("lookup", map[string]any{"key": "plants"}),
		providers.FinalAnswer("done"),
	)
	a := newTestAgent(t, model, reg)

	result, err := a.Ask(context.Background(), "How many plants?")
	require.NoError(t, err)
	assert.Equal(t, result.RunID, seenRun)
	assert.Equal(t, "graph_agent", seenAgent)
}
