package llm

import (
	"fmt"
	"time"

	"github.com/barabonda/linkbrain/internal/types"
)

// ProviderType represents the type of LLM provider.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOllama    ProviderType = "ollama"
)

// ProviderConfig configures the model provider used by every agent.
type ProviderConfig struct {
	Type        ProviderType  `mapstructure:"provider" yaml:"provider" validate:"required,oneof=openai anthropic ollama"`
	Model       string        `mapstructure:"model" yaml:"model" validate:"required"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gte=0"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`

	// RequestsPerSecond limits model calls across all agents; 0 is unlimited.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" yaml:"burst" validate:"gte=0"`
}

// DefaultProviderConfig returns the defaults: OpenAI gpt-4o, 60s timeout.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Type:    ProviderOpenAI,
		Model:   "gpt-4o",
		Timeout: 60 * time.Second,
		Burst:   1,
	}
}

// Validate performs the checks struct tags cannot express.
func (p ProviderConfig) Validate() error {
	switch p.Type {
	case ProviderOpenAI, ProviderAnthropic:
		if p.APIKey == "" {
			return types.NewError(types.CONFIG_VALIDATION_FAILED,
				fmt.Sprintf("llm.api_key is required for provider %q", p.Type))
		}
	case ProviderOllama:
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("invalid provider type %q, must be one of: openai, anthropic, ollama", p.Type))
	}

	if p.Model == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "llm.model cannot be empty")
	}
	if p.Timeout <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "llm.timeout must be positive")
	}
	return nil
}
