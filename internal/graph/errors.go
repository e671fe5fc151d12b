package graph

import "github.com/barabonda/linkbrain/internal/types"

// Graph-specific error codes. Runtime failures use the shared taxonomy in
// the types package.
const (
	ErrCodeGraphInvalidConfig types.ErrorCode = "GRAPH_INVALID_CONFIG"
)

// NewConnectivityError creates a retryable connectivity error.
func NewConnectivityError(message string, cause error) *types.LinkbrainError {
	return types.WrapRetryableError(types.ErrCodeConnectivity, message, cause)
}

// NewQueryError creates an error for a malformed or rejected query.
func NewQueryError(message string, cause error) *types.LinkbrainError {
	return types.WrapError(types.ErrCodeQuery, message, cause)
}

// NewSerializationError creates an error for a value that cannot be made transport-safe.
func NewSerializationError(message string, cause error) *types.LinkbrainError {
	return types.WrapError(types.ErrCodeSerialization, message, cause)
}

// NewValidationError creates an error for invalid query parameters.
func NewValidationError(message string) *types.LinkbrainError {
	return types.NewError(types.ErrCodeValidation, message)
}

// NewUnknownError wraps an unclassified backend fault.
func NewUnknownError(message string, cause error) *types.LinkbrainError {
	return types.WrapError(types.ErrCodeUnknown, message, cause)
}

// NewCancelledError reports that the caller abandoned the operation.
func NewCancelledError(cause error) *types.LinkbrainError {
	return types.WrapError(types.ErrCodeCancelled, "operation cancelled", cause)
}
