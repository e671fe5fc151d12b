package types

import (
	"fmt"

	"github.com/google/uuid"
)

// ID identifies a run or a synthesized tool call. It wraps a UUID string.
type ID string

// NewID generates a new random UUID-backed ID.
func NewID() ID {
	return ID(uuid.New().String())
}

// ParseID parses and validates s as a UUID.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", fmt.Errorf("ID cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID format: %w", err)
	}
	return ID(parsed.String()), nil
}

// String returns the string representation of the ID.
func (id ID) String() string {
	return string(id)
}

// Short returns the first eight characters, enough to tell runs apart in logs.
func (id ID) Short() string {
	if len(id) < 8 {
		return string(id)
	}
	return string(id[:8])
}

// IsZero checks if the ID is empty.
func (id ID) IsZero() bool {
	return id == ""
}
