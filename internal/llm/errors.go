package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/barabonda/linkbrain/internal/types"
)

// LLM error codes
const (
	ErrProviderNotFound     types.ErrorCode = "LLM_PROVIDER_NOT_FOUND"
	ErrProviderInitFailed   types.ErrorCode = "LLM_PROVIDER_INIT_FAILED"
	ErrProviderUnavailable  types.ErrorCode = "LLM_PROVIDER_UNAVAILABLE"
	ErrProviderUnauthorized types.ErrorCode = "LLM_PROVIDER_UNAUTHORIZED"
	ErrProviderRateLimited  types.ErrorCode = "LLM_PROVIDER_RATE_LIMITED"
	ErrInvalidRequest       types.ErrorCode = "LLM_INVALID_REQUEST"
	ErrTimeoutExceeded      types.ErrorCode = "LLM_TIMEOUT_EXCEEDED"
	ErrNetworkFailed        types.ErrorCode = "LLM_NETWORK_FAILED"
)

// NewProviderNotFoundError creates an error for an unknown provider type.
func NewProviderNotFoundError(providerName string) *types.LinkbrainError {
	return types.NewError(ErrProviderNotFound, "provider not found: "+providerName)
}

// NewProviderInitError wraps a provider construction failure.
func NewProviderInitError(providerName string, cause error) *types.LinkbrainError {
	return types.WrapError(ErrProviderInitFailed, "failed to initialize provider: "+providerName, cause)
}

// NewInvalidRequestError creates an error for invalid requests
func NewInvalidRequestError(message string) *types.LinkbrainError {
	return types.NewError(ErrInvalidRequest, message)
}

// TranslateError maps a provider failure onto an LLM error code. Caller
// cancellation is reported as RUN_CANCELLED so loops can stop without
// treating it as a model failure.
func TranslateError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var le *types.LinkbrainError
	if errors.As(err, &le) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return types.WrapError(types.ErrCodeCancelled, "model call cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.WrapRetryableError(ErrTimeoutExceeded, fmt.Sprintf("provider %q timed out", provider), err)
	}

	lowerMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerMsg, "unauthorized") || strings.Contains(lowerMsg, "authentication") || strings.Contains(lowerMsg, "api key"):
		return types.WrapError(ErrProviderUnauthorized, fmt.Sprintf("provider %q authentication failed", provider), err)
	case strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests"):
		return types.WrapRetryableError(ErrProviderRateLimited, fmt.Sprintf("rate limit exceeded for provider %q", provider), err)
	case strings.Contains(lowerMsg, "timeout") || strings.Contains(lowerMsg, "deadline"):
		return types.WrapRetryableError(ErrTimeoutExceeded, fmt.Sprintf("provider %q timed out", provider), err)
	case strings.Contains(lowerMsg, "network") || strings.Contains(lowerMsg, "connection"):
		return types.WrapRetryableError(ErrNetworkFailed, fmt.Sprintf("network failure calling provider %q", provider), err)
	default:
		return types.WrapRetryableError(ErrProviderUnavailable, fmt.Sprintf("provider %q unavailable", provider), err)
	}
}
