package tool

import (
	"fmt"

	"github.com/barabonda/linkbrain/internal/types"
)

// Tool error codes
const (
	ErrToolNotFound          = types.ErrCodeToolNotFound
	ErrToolInvalidDescriptor types.ErrorCode = "TOOL_INVALID_DESCRIPTOR"
)

// NewValidationError reports arguments that do not satisfy a tool's schema.
func NewValidationError(name string, cause error) *types.LinkbrainError {
	return types.WrapError(types.ErrCodeValidation, fmt.Sprintf("invalid arguments for tool %q", name), cause)
}

// NewNotFoundError reports an invocation of an unregistered tool.
func NewNotFoundError(name string) *types.LinkbrainError {
	return types.NewError(ErrToolNotFound, fmt.Sprintf("tool %q not found", name))
}
