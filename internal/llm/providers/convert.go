package providers

import (
	"context"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/barabonda/linkbrain/internal/llm"
)

// LangchainProvider adapts a langchaingo model to llm.Provider.
type LangchainProvider struct {
	name  string
	model llms.Model
	cfg   llm.ProviderConfig
}

// NewLangchainProvider wraps any langchaingo model.
func NewLangchainProvider(name string, model llms.Model, cfg llm.ProviderConfig) *LangchainProvider {
	return &LangchainProvider{name: name, model: model, cfg: cfg}
}

// Name returns the provider name
func (p *LangchainProvider) Name() string {
	return p.name
}

// CompleteWithTools sends a completion request with tool definitions
func (p *LangchainProvider) CompleteWithTools(ctx context.Context, req llm.CompletionRequest, tools []llm.ToolDef) (*llm.CompletionResponse, error) {
	if req.Model == "" {
		req.Model = p.cfg.Model
	}
	if req.Temperature == 0 {
		req.Temperature = p.cfg.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = p.cfg.MaxTokens
	}
	if err := req.Validate(); err != nil {
		return nil, llm.NewInvalidRequestError(err.Error())
	}

	callOpts, err := buildCallOptionsWithTools(req, tools)
	if err != nil {
		return nil, llm.NewInvalidRequestError(err.Error())
	}

	resp, err := p.model.GenerateContent(ctx, toMessageContents(req.Messages), callOpts...)
	if err != nil {
		return nil, llm.TranslateError(p.name, err)
	}

	return fromLangchainResponse(resp, req.Model), nil
}

// toMessageContents converts a conversation to langchaingo messages. Tool
// calls and tool results are sent as structured parts so providers can
// pair them by id.
func toMessageContents(messages []llm.Message) []llms.MessageContent {
	result := make([]llms.MessageContent, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			result = append(result, llms.TextParts(llms.ChatMessageTypeSystem, msg.Content))

		case llm.RoleAssistant:
			parts := make([]llms.ContentPart, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				parts = append(parts, llms.TextPart(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			result = append(result, llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts})

		case llm.RoleTool:
			result = append(result, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: msg.ToolCallID,
						Name:       msg.Name,
						Content:    msg.Content,
					},
				},
			})

		default:
			result = append(result, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))
		}
	}

	return result
}

// fromLangchainResponse converts the first choice of resp.
func fromLangchainResponse(resp *llms.ContentResponse, model string) *llm.CompletionResponse {
	out := &llm.CompletionResponse{
		ID:           uuid.New().String(),
		Model:        model,
		Message:      llm.Message{Role: llm.RoleAssistant},
		FinishReason: llm.FinishReasonStop,
	}
	if resp == nil || len(resp.Choices) == 0 {
		return out
	}

	choice := resp.Choices[0]
	out.Message.Content = choice.Content

	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.New().String()
		}
		out.Message.ToolCalls = append(out.Message.ToolCalls, llm.ToolCall{
			ID:        id,
			Type:      tc.Type,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		})
	}

	switch choice.StopReason {
	case "length", "max_tokens":
		out.FinishReason = llm.FinishReasonLength
	case "tool_calls", "function_call", "tool_use":
		out.FinishReason = llm.FinishReasonToolCalls
	case "content_filter":
		out.FinishReason = llm.FinishReasonContentFilter
	}
	if len(out.Message.ToolCalls) > 0 {
		out.FinishReason = llm.FinishReasonToolCalls
	}

	out.Usage = usageFrom(choice.GenerationInfo)
	return out
}

// usageFrom reads token counts from GenerationInfo, whose keys differ
// between providers.
func usageFrom(info map[string]any) llm.TokenUsage {
	var u llm.TokenUsage
	u.PromptTokens = firstInt(info, "PromptTokens", "InputTokens", "prompt_tokens")
	u.CompletionTokens = firstInt(info, "CompletionTokens", "OutputTokens", "completion_tokens")
	u.TotalTokens = firstInt(info, "TotalTokens", "total_tokens")
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

func firstInt(info map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

// buildCallOptions converts request settings to langchaingo call options
func buildCallOptions(req llm.CompletionRequest) []llms.CallOption {
	callOpts := make([]llms.CallOption, 0, 3)

	if req.Model != "" {
		callOpts = append(callOpts, llms.WithModel(req.Model))
	}
	if req.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(req.Temperature))
	}
	if req.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(req.MaxTokens))
	}

	return callOpts
}

// buildCallOptionsWithTools adds tools to call options
func buildCallOptionsWithTools(req llm.CompletionRequest, tools []llm.ToolDef) ([]llms.CallOption, error) {
	callOpts := buildCallOptions(req)
	if len(tools) == 0 {
		return callOpts, nil
	}

	schemaTools := make([]llms.Tool, 0, len(tools))
	for _, tool := range tools {
		params, err := tool.ParametersMap()
		if err != nil {
			return nil, err
		}
		schemaTools = append(schemaTools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		})
	}
	return append(callOpts, llms.WithTools(schemaTools)), nil
}
