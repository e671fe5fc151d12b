package providers

import (
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/barabonda/linkbrain/internal/llm"
)

const defaultOllamaURL = "http://localhost:11434"

// NewOllamaProvider creates a provider for a local Ollama server.
func NewOllamaProvider(cfg llm.ProviderConfig) (*LangchainProvider, error) {
	serverURL := cfg.BaseURL
	if serverURL == "" {
		serverURL = defaultOllamaURL
	}

	opts := []ollama.Option{
		ollama.WithServerURL(serverURL),
	}
	if cfg.Model != "" {
		opts = append(opts, ollama.WithModel(cfg.Model))
	}

	client, err := ollama.New(opts...)
	if err != nil {
		return nil, llm.NewProviderInitError("ollama", err)
	}
	return NewLangchainProvider("ollama", client, cfg), nil
}
