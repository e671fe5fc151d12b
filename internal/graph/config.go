package graph

import (
	"fmt"
	"time"

	"github.com/barabonda/linkbrain/internal/types"
)

// Config contains connection and execution settings for the graph store.
type Config struct {
	// URI is the connection target, e.g. "neo4j://localhost:7687" or
	// "bolt+s://host:7687" for TLS.
	URI string

	// Username and Password authenticate the session. An empty Username
	// connects without authentication.
	Username string
	Password string

	// Database selects the target database. Empty uses the server default.
	Database string

	// MaxConnectionPoolSize limits the driver pool. Zero uses the driver default.
	MaxConnectionPoolSize int

	// MaxConnectionLifetime recycles pooled connections older than this.
	MaxConnectionLifetime time.Duration

	// ConnectTimeout bounds a single connect attempt including the liveness probe.
	ConnectTimeout time.Duration

	// QueryTimeout is the per-call deadline for every store round trip.
	QueryTimeout time.Duration

	// RetryBudget is the maximum number of connect attempts per reconnect cycle.
	RetryBudget int

	// RetryDelay is the fixed pause between connect attempts.
	RetryDelay time.Duration

	// ReconnectCooldown is how long operations fail fast after a reconnect
	// cycle exhausted its budget. Zero disables the fail-fast window.
	ReconnectCooldown time.Duration

	// RetryWrites re-issues a write query once after a connectivity fault
	// during execution. Off by default because the first attempt may have
	// committed server-side.
	RetryWrites bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URI:                   "neo4j://localhost:7687",
		Username:              "neo4j",
		MaxConnectionPoolSize: 50,
		MaxConnectionLifetime: 300 * time.Second,
		ConnectTimeout:        10 * time.Second,
		QueryTimeout:          30 * time.Second,
		RetryBudget:           3,
		RetryDelay:            time.Second,
		ReconnectCooldown:     5 * time.Second,
	}
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.URI == "" {
		return types.NewError(ErrCodeGraphInvalidConfig, "URI cannot be empty")
	}
	if c.RetryBudget < 1 {
		return types.NewError(ErrCodeGraphInvalidConfig,
			fmt.Sprintf("RetryBudget must be at least 1, got %d", c.RetryBudget))
	}
	if c.RetryDelay < 0 {
		return types.NewError(ErrCodeGraphInvalidConfig, "RetryDelay cannot be negative")
	}
	if c.ConnectTimeout <= 0 {
		return types.NewError(ErrCodeGraphInvalidConfig, "ConnectTimeout must be positive")
	}
	if c.QueryTimeout <= 0 {
		return types.NewError(ErrCodeGraphInvalidConfig, "QueryTimeout must be positive")
	}
	if c.ReconnectCooldown < 0 {
		return types.NewError(ErrCodeGraphInvalidConfig, "ReconnectCooldown cannot be negative")
	}
	return nil
}
