package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for linkbrain errors.
type ErrorCode string

// Failure taxonomy surfaced by the graph and tool layers.
const (
	// ErrCodeConnectivity marks a transient store fault that survived the single retry.
	ErrCodeConnectivity ErrorCode = "CONNECTIVITY_ERROR"
	// ErrCodeQuery marks a malformed or constraint-violating query. Never retried.
	ErrCodeQuery ErrorCode = "QUERY_ERROR"
	// ErrCodeSerialization marks a value that could not be made transport-safe.
	ErrCodeSerialization ErrorCode = "SERIALIZATION_ERROR"
	// ErrCodeValidation marks tool arguments that failed the descriptor schema.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrCodeUnknown marks an unclassified backend fault.
	ErrCodeUnknown ErrorCode = "UNKNOWN_ERROR"
)

// Run lifecycle error codes
const (
	ErrCodeCancelled    ErrorCode = "RUN_CANCELLED"
	ErrCodeModelFailed  ErrorCode = "MODEL_FAILED"
	ErrCodeToolNotFound ErrorCode = "TOOL_NOT_FOUND"
)

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// LinkbrainError represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type LinkbrainError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *LinkbrainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *LinkbrainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a LinkbrainError with the same Code.
func (e *LinkbrainError) Is(target error) bool {
	var other *LinkbrainError
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// NewError creates a new non-retryable LinkbrainError.
func NewError(code ErrorCode, message string) *LinkbrainError {
	return &LinkbrainError{
		Code:    code,
		Message: message,
	}
}

// NewRetryableError creates a new retryable LinkbrainError.
func NewRetryableError(code ErrorCode, message string) *LinkbrainError {
	return &LinkbrainError{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// WrapError creates a new non-retryable LinkbrainError that wraps cause.
func WrapError(code ErrorCode, message string, cause error) *LinkbrainError {
	return &LinkbrainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapRetryableError creates a new retryable LinkbrainError that wraps cause.
func WrapRetryableError(code ErrorCode, message string, cause error) *LinkbrainError {
	return &LinkbrainError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// CodeOf returns the code of the outermost LinkbrainError in err's chain,
// or the empty code when there is none.
func CodeOf(err error) ErrorCode {
	var le *LinkbrainError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// HasCode reports whether any LinkbrainError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	return errors.Is(err, NewError(code, ""))
}

// IsRetryable reports whether err carries a retryable LinkbrainError.
func IsRetryable(err error) bool {
	var le *LinkbrainError
	if errors.As(err, &le) {
		return le.Retryable
	}
	return false
}

// IsCancelled reports whether err stems from caller cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || HasCode(err, ErrCodeCancelled)
}
