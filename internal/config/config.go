// Package config loads the linkbrain configuration from YAML, .env files and
// the environment.
package config

import (
	"time"

	"github.com/barabonda/linkbrain/internal/graph"
	"github.com/barabonda/linkbrain/internal/llm"
)

// Config is the root configuration. It is built once at startup and treated
// as read-only afterwards.
type Config struct {
	Graph       GraphConfig        `mapstructure:"graph" yaml:"graph"`
	LLM         llm.ProviderConfig `mapstructure:"llm" yaml:"llm"`
	Agent       AgentConfig        `mapstructure:"agent" yaml:"agent"`
	Server      ServerConfig       `mapstructure:"server" yaml:"server"`
	RemoteTools []RemoteToolConfig `mapstructure:"remote_tools" yaml:"remote_tools" validate:"dive"`
	Logging     LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Tracing     TracingConfig      `mapstructure:"tracing" yaml:"tracing"`
}

// GraphConfig holds graph store connection and introspection settings.
type GraphConfig struct {
	URI                   string        `mapstructure:"uri" yaml:"uri" validate:"required"`
	Username              string        `mapstructure:"username" yaml:"username"`
	Password              string        `mapstructure:"password" yaml:"password"`
	Database              string        `mapstructure:"database" yaml:"database"`
	RetryBudget           int           `mapstructure:"retry_budget" yaml:"retry_budget" validate:"min=1"`
	RetryDelay            time.Duration `mapstructure:"retry_delay" yaml:"retry_delay" validate:"gte=0"`
	QueryTimeout          time.Duration `mapstructure:"query_timeout" yaml:"query_timeout" validate:"gt=0"`
	ConnectTimeout        time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout" validate:"gt=0"`
	MaxConnectionLifetime time.Duration `mapstructure:"max_connection_lifetime" yaml:"max_connection_lifetime" validate:"gte=0"`
	MaxPoolSize           int           `mapstructure:"max_pool_size" yaml:"max_pool_size" validate:"gte=0"`
	ReconnectCooldown     time.Duration `mapstructure:"reconnect_cooldown" yaml:"reconnect_cooldown" validate:"gte=0"`
	RetryWrites           bool          `mapstructure:"retry_writes" yaml:"retry_writes"`

	// SchemaSampleNodes and SchemaPropertyCap bound schema introspection.
	SchemaSampleNodes int `mapstructure:"schema_sample_nodes" yaml:"schema_sample_nodes" validate:"min=1"`
	SchemaPropertyCap int `mapstructure:"schema_property_cap" yaml:"schema_property_cap" validate:"min=1"`
}

// Connection converts the section into the graph package's Config.
func (g GraphConfig) Connection() graph.Config {
	return graph.Config{
		URI:                   g.URI,
		Username:              g.Username,
		Password:              g.Password,
		Database:              g.Database,
		MaxConnectionPoolSize: g.MaxPoolSize,
		MaxConnectionLifetime: g.MaxConnectionLifetime,
		ConnectTimeout:        g.ConnectTimeout,
		QueryTimeout:          g.QueryTimeout,
		RetryBudget:           g.RetryBudget,
		RetryDelay:            g.RetryDelay,
		ReconnectCooldown:     g.ReconnectCooldown,
		RetryWrites:           g.RetryWrites,
	}
}

// AgentConfig bounds agent and supervisor loops.
type AgentConfig struct {
	TurnLimit           int    `mapstructure:"turn_limit" yaml:"turn_limit" validate:"min=1"`
	SupervisorTurnLimit int    `mapstructure:"supervisor_turn_limit" yaml:"supervisor_turn_limit" validate:"min=1"`
	TeamFile            string `mapstructure:"team_file" yaml:"team_file"`
	MaxParallelTools    int    `mapstructure:"max_parallel_tools" yaml:"max_parallel_tools" validate:"min=1"`
}

// ServerConfig configures the MCP tool server.
type ServerConfig struct {
	Transport string `mapstructure:"transport" yaml:"transport" validate:"required,oneof=stdio http"`
	Address   string `mapstructure:"address" yaml:"address"`
	Name      string `mapstructure:"name" yaml:"name" validate:"required"`
}

// RemoteToolConfig describes an external MCP server whose tools are proxied
// into the local registry.
type RemoteToolConfig struct {
	Name      string            `mapstructure:"name" yaml:"name" validate:"required"`
	Transport string            `mapstructure:"transport" yaml:"transport" validate:"required,oneof=stdio http"`
	Command   string            `mapstructure:"command" yaml:"command"`
	Args      []string          `mapstructure:"args" yaml:"args"`
	Env       map[string]string `mapstructure:"env" yaml:"env"`
	URL       string            `mapstructure:"url" yaml:"url" validate:"omitempty,url"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=json text"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Exporter   string  `mapstructure:"exporter" yaml:"exporter" validate:"omitempty,oneof=stdout otlp"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
}
