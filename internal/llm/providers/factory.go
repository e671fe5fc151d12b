package providers

import (
	"errors"

	"github.com/barabonda/linkbrain/internal/llm"
)

var errMissingAPIKey = errors.New("api key not configured")

// NewProvider creates the provider selected by cfg.Type, wrapped with the
// configured timeout and rate limit.
func NewProvider(cfg llm.ProviderConfig) (llm.Provider, error) {
	var (
		p   llm.Provider
		err error
	)

	switch cfg.Type {
	case llm.ProviderOpenAI:
		p, err = NewOpenAIProvider(cfg)
	case llm.ProviderAnthropic:
		p, err = NewAnthropicProvider(cfg)
	case llm.ProviderOllama:
		p, err = NewOllamaProvider(cfg)
	default:
		return nil, llm.NewProviderNotFoundError(string(cfg.Type))
	}
	if err != nil {
		return nil, err
	}

	return llm.GuardFromConfig(p, cfg), nil
}
