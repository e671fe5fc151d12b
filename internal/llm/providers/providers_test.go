package providers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/barabonda/linkbrain/internal/llm"
	"github.com/barabonda/linkbrain/internal/types"
)

// fakeModel records what a langchaingo model receives.
type fakeModel struct {
	messages []llms.MessageContent
	options  llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.options)
	}
	return m.resp, m.err
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLangchainProvider_SendsToolCallsAndResults(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:    "There are 3 plants.",
		StopReason: "stop",
		GenerationInfo: map[string]any{
			"PromptTokens":     12,
			"CompletionTokens": 5,
		},
	}}}}
	p := NewLangchainProvider("openai", model, llm.ProviderConfig{Model: "gpt-4o", Temperature: 0.2})

	req := llm.CompletionRequest{Messages: []llm.Message{
		llm.NewSystemMessage("You query graphs."),
		llm.NewUserMessage("How many plants?"),
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "read_cypher", Arguments: `{"query":"MATCH (p:Plant) RETURN count(p)"}`}}},
		llm.NewToolResultMessage("call_1", `{"success":true,"result":[{"count(p)":3}],"error":null}`),
	}}
	tools := []llm.ToolDef{{Name: "read_cypher", Description: "run", Parameters: json.RawMessage(`{"type":"object"}`)}}

	resp, err := p.CompleteWithTools(context.Background(), req, tools)
	require.NoError(t, err)

	assert.Equal(t, "There are 3 plants.", resp.Message.Content)
	assert.Equal(t, llm.RoleAssistant, resp.Message.Role)
	assert.Equal(t, llm.FinishReasonStop, resp.FinishReason)
	assert.Equal(t, llm.TokenUsage{PromptTokens: 12, CompletionTokens: 5, TotalTokens: 17}, resp.Usage)
	assert.Equal(t, "gpt-4o", resp.Model)

	require.Len(t, model.messages, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)

	assert.Equal(t, llms.ChatMessageTypeAI, model.messages[2].Role)
	require.Len(t, model.messages[2].Parts, 1)
	call, ok := model.messages[2].Parts[0].(llms.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "read_cypher", call.FunctionCall.Name)

	assert.Equal(t, llms.ChatMessageTypeTool, model.messages[3].Role)
	result, ok := model.messages[3].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "call_1", result.ToolCallID)

	assert.Equal(t, "gpt-4o", model.options.Model)
	assert.InDelta(t, 0.2, model.options.Temperature, 1e-9)
	require.Len(t, model.options.Tools, 1)
	assert.Equal(t, "read_cypher", model.options.Tools[0].Function.Name)
	assert.Equal(t, map[string]any{"type": "object"}, model.options.Tools[0].Function.Parameters)
}

func TestLangchainProvider_ParsesToolCalls(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{
			{ID: "call_a", Type: "function", FunctionCall: &llms.FunctionCall{Name: "get_schema", Arguments: "{}"}},
			{Type: "function", FunctionCall: &llms.FunctionCall{Name: "get_node_counts", Arguments: "{}"}},
		},
	}}}}
	p := NewLangchainProvider("anthropic", model, llm.ProviderConfig{Model: "claude"})

	resp, err := p.CompleteWithTools(context.Background(),
		llm.CompletionRequest{Messages: []llm.Message{llm.NewUserMessage("schema?")}}, nil)
	require.NoError(t, err)

	assert.Equal(t, llm.FinishReasonToolCalls, resp.FinishReason)
	require.Len(t, resp.Message.ToolCalls, 2)
	assert.Equal(t, "call_a", resp.Message.ToolCalls[0].ID)
	assert.Equal(t, "get_node_counts", resp.Message.ToolCalls[1].Name)
	assert.NotEmpty(t, resp.Message.ToolCalls[1].ID, "missing ids are generated")
	assert.Empty(t, model.options.Tools)
}

func TestLangchainProvider_Errors(t *testing.T) {
	t.Run("invalid request", func(t *testing.T) {
		p := NewLangchainProvider("openai", &fakeModel{}, llm.ProviderConfig{Model: "m"})
		_, err := p.CompleteWithTools(context.Background(), llm.CompletionRequest{}, nil)
		assert.Equal(t, llm.ErrInvalidRequest, types.CodeOf(err))
	})

	t.Run("provider failure is translated", func(t *testing.T) {
		p := NewLangchainProvider("openai", &fakeModel{err: errors.New("429 Too Many Requests")}, llm.ProviderConfig{Model: "m"})
		_, err := p.CompleteWithTools(context.Background(),
			llm.CompletionRequest{Messages: []llm.Message{llm.NewUserMessage("hi")}}, nil)
		assert.Equal(t, llm.ErrProviderRateLimited, types.CodeOf(err))
		assert.True(t, types.IsRetryable(err))
	})

	t.Run("bad tool schema", func(t *testing.T) {
		p := NewLangchainProvider("openai", &fakeModel{}, llm.ProviderConfig{Model: "m"})
		_, err := p.CompleteWithTools(context.Background(),
			llm.CompletionRequest{Messages: []llm.Message{llm.NewUserMessage("hi")}},
			[]llm.ToolDef{{Name: "x", Parameters: json.RawMessage(`[`)}})
		assert.Equal(t, llm.ErrInvalidRequest, types.CodeOf(err))
	})
}

func TestNewProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := NewProvider(llm.ProviderConfig{Type: "bogus"})
	assert.Equal(t, llm.ErrProviderNotFound, types.CodeOf(err))

	_, err = NewProvider(llm.ProviderConfig{Type: llm.ProviderOpenAI, Model: "gpt-4o"})
	assert.Equal(t, llm.ErrProviderInitFailed, types.CodeOf(err))

	_, err = NewProvider(llm.ProviderConfig{Type: llm.ProviderAnthropic, Model: "claude"})
	assert.Equal(t, llm.ErrProviderInitFailed, types.CodeOf(err))

	p, err := NewProvider(llm.ProviderConfig{Type: llm.ProviderOpenAI, Model: "gpt-4o", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestScriptedProvider(t *testing.T) {
	boom := errors.New("boom")
	p := NewScriptedProvider(
		CallTool("read_cypher", map[string]any{"query": "RETURN 1"}),
		Fail(boom),
		FinalAnswer("done"),
	)
	req := llm.CompletionRequest{Messages: []llm.Message{llm.NewUserMessage("q")}}

	first, err := p.CompleteWithTools(context.Background(), req, nil)
	require.NoError(t, err)
	require.Len(t, first.Message.ToolCalls, 1)
	assert.Equal(t, "read_cypher", first.Message.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"RETURN 1"}`, first.Message.ToolCalls[0].Arguments)
	assert.Equal(t, llm.FinishReasonToolCalls, first.FinishReason)

	_, err = p.CompleteWithTools(context.Background(), req, nil)
	assert.ErrorIs(t, err, boom)

	for i := 0; i < 2; i++ {
		last, err := p.CompleteWithTools(context.Background(), req, nil)
		require.NoError(t, err)
		assert.Equal(t, "done", last.Message.Content)
	}
	assert.Equal(t, 4, p.CallCount())
}

func TestScriptedProvider_RepeatedToolCallsGetFreshIDs(t *testing.T) {
	p := NewScriptedProvider(CallTool("get_schema", nil))
	req := llm.CompletionRequest{Messages: []llm.Message{llm.NewUserMessage("q")}}

	a, err := p.CompleteWithTools(context.Background(), req, nil)
	require.NoError(t, err)
	b, err := p.CompleteWithTools(context.Background(), req, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.Message.ToolCalls[0].ID, b.Message.ToolCalls[0].ID)
}
