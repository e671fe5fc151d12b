package types

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinkbrainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *LinkbrainError
		expected string
	}{
		{
			name:     "without cause",
			err:      NewError(ErrCodeQuery, "invalid syntax"),
			expected: "[QUERY_ERROR] invalid syntax",
		},
		{
			name:     "with cause",
			err:      WrapError(ErrCodeConnectivity, "store unreachable", errors.New("dial tcp: refused")),
			expected: "[CONNECTIVITY_ERROR] store unreachable: dial tcp: refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestLinkbrainError_IsMatchesByCode(t *testing.T) {
	err := WrapError(ErrCodeValidation, "missing query", errors.New("required"))
	wrapped := fmt.Errorf("invoke: %w", err)

	assert.True(t, errors.Is(wrapped, NewError(ErrCodeValidation, "")))
	assert.False(t, errors.Is(wrapped, NewError(ErrCodeQuery, "")))
	assert.True(t, HasCode(wrapped, ErrCodeValidation))
	assert.Equal(t, ErrCodeValidation, CodeOf(wrapped))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestLinkbrainError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := WrapError(ErrCodeUnknown, "backend fault", cause)

	assert.Same(t, cause, errors.Unwrap(err))
	assert.Nil(t, NewError(ErrCodeUnknown, "x").Unwrap())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewRetryableError(ErrCodeConnectivity, "down")))
	assert.True(t, IsRetryable(fmt.Errorf("ctx: %w", WrapRetryableError(ErrCodeConnectivity, "down", errors.New("eof")))))
	assert.False(t, IsRetryable(NewError(ErrCodeQuery, "bad")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, IsCancelled(context.Canceled))
	assert.True(t, IsCancelled(WrapError(ErrCodeCancelled, "run cancelled", context.Canceled)))
	assert.True(t, IsCancelled(NewError(ErrCodeCancelled, "run cancelled")))
	assert.False(t, IsCancelled(context.DeadlineExceeded))
}
