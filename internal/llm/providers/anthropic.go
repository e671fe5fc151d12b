package providers

import (
	"os"

	"github.com/tmc/langchaingo/llms/anthropic"

	"github.com/barabonda/linkbrain/internal/llm"
)

// NewAnthropicProvider creates a provider for Anthropic Claude models.
func NewAnthropicProvider(cfg llm.ProviderConfig) (*LangchainProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, llm.NewProviderInitError("anthropic", errMissingAPIKey)
	}

	opts := []anthropic.Option{
		anthropic.WithToken(apiKey),
	}
	if cfg.Model != "" {
		opts = append(opts, anthropic.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	client, err := anthropic.New(opts...)
	if err != nil {
		return nil, llm.NewProviderInitError("anthropic", err)
	}

	// The Messages API requires max_tokens.
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	return NewLangchainProvider("anthropic", client, cfg), nil
}
