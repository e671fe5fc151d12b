package llm

import (
	"context"
)

// Provider is the model boundary: given a conversation and a tool catalog,
// it returns either a final answer or a request for tool calls.
type Provider interface {
	// Name returns the provider name (e.g., "openai", "anthropic", "ollama")
	Name() string

	// CompleteWithTools sends one completion request. The response message
	// carries ToolCalls when the model wants tools run before answering.
	CompleteWithTools(ctx context.Context, req CompletionRequest, tools []ToolDef) (*CompletionResponse, error)
}
