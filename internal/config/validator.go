package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/barabonda/linkbrain/internal/types"
)

// ConfigValidator validates configuration values.
type ConfigValidator interface {
	Validate(cfg *Config) error
}

// validatorImpl implements ConfigValidator using go-playground/validator.
type validatorImpl struct {
	validate *validator.Validate
}

// NewValidator creates a new ConfigValidator instance.
func NewValidator() ConfigValidator {
	return &validatorImpl{
		validate: validator.New(),
	}
}

// Validate checks struct tags first, then the cross-field rules. Every
// problem found is listed in one CONFIG_VALIDATION_FAILED error.
func (v *validatorImpl) Validate(cfg *Config) error {
	if cfg == nil {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "configuration is nil")
	}

	var problems []string
	if err := v.validate.Struct(cfg); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return types.WrapError(types.CONFIG_VALIDATION_FAILED, "validation error", err)
		}
		for _, e := range validationErrs {
			problems = append(problems, formatValidationError(e))
		}
	}
	problems = append(problems, crossFieldProblems(cfg)...)

	if len(problems) == 0 {
		return nil
	}
	return types.NewError(types.CONFIG_VALIDATION_FAILED,
		fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - ")))
}

func crossFieldProblems(cfg *Config) []string {
	var problems []string

	if cfg.Server.Transport == "http" && cfg.Server.Address == "" {
		problems = append(problems, "server.address is required when server.transport is 'http'")
	}

	seen := make(map[string]bool, len(cfg.RemoteTools))
	for i, rt := range cfg.RemoteTools {
		if seen[rt.Name] {
			problems = append(problems, fmt.Sprintf("remote_tools[%d].name %q is duplicated", i, rt.Name))
		}
		seen[rt.Name] = true

		switch rt.Transport {
		case "stdio":
			if rt.Command == "" {
				problems = append(problems, fmt.Sprintf("remote_tools[%d].command is required when transport is 'stdio'", i))
			}
		case "http":
			if rt.URL == "" {
				problems = append(problems, fmt.Sprintf("remote_tools[%d].url is required when transport is 'http'", i))
			}
		}
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Exporter == "otlp" && cfg.Tracing.Endpoint == "" {
		problems = append(problems, "tracing.endpoint is required when tracing.exporter is 'otlp'")
	}
	return problems
}

// formatValidationError formats a single validation error with field path and details.
func formatValidationError(e validator.FieldError) string {
	fieldPath := formatFieldPath(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldPath)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", fieldPath, e.Param(), e.Value())
	case "url":
		return fmt.Sprintf("%s must be a valid URL (got: %v)", fieldPath, e.Value())
	default:
		return fmt.Sprintf("%s failed validation '%s' (got: %v)", fieldPath, e.Tag(), e.Value())
	}
}

// formatFieldPath converts validator namespace to a more readable field path.
// Example: "Config.Agent.TurnLimit" -> "agent.turn_limit"
func formatFieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) <= 1 {
		return namespace
	}

	result := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		result = append(result, camelToSnake(parts[i]))
	}
	return strings.Join(result, ".")
}

// camelToSnake converts CamelCase to snake_case. Runs of capitals such as
// "URI" or "LLM" stay together.
func camelToSnake(s string) string {
	runes := []rune(s)
	var result strings.Builder
	for i, r := range runes {
		if i > 0 && isUpper(r) {
			prevLower := !isUpper(runes[i-1])
			nextLower := i+1 < len(runes) && !isUpper(runes[i+1]) && runes[i+1] != '['
			if prevLower || nextLower {
				result.WriteRune('_')
			}
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}
