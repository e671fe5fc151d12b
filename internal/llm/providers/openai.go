package providers

import (
	"os"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/barabonda/linkbrain/internal/llm"
)

// NewOpenAIProvider creates a provider for OpenAI chat models.
func NewOpenAIProvider(cfg llm.ProviderConfig) (*LangchainProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, llm.NewProviderInitError("openai", errMissingAPIKey)
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, llm.NewProviderInitError("openai", err)
	}
	return NewLangchainProvider("openai", client, cfg), nil
}
