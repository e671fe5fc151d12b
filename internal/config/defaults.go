package config

import (
	"github.com/barabonda/linkbrain/internal/agent"
	"github.com/barabonda/linkbrain/internal/graph"
	"github.com/barabonda/linkbrain/internal/llm"
)

// DefaultConfigFile is read when --config is not given.
const DefaultConfigFile = "linkbrain.yaml"

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	conn := graph.DefaultConfig()

	return &Config{
		Graph: GraphConfig{
			URI:                   conn.URI,
			Username:              conn.Username,
			RetryBudget:           conn.RetryBudget,
			RetryDelay:            conn.RetryDelay,
			QueryTimeout:          conn.QueryTimeout,
			ConnectTimeout:        conn.ConnectTimeout,
			MaxConnectionLifetime: conn.MaxConnectionLifetime,
			MaxPoolSize:           conn.MaxConnectionPoolSize,
			ReconnectCooldown:     conn.ReconnectCooldown,
			RetryWrites:           conn.RetryWrites,
			SchemaSampleNodes:     graph.DefaultSampleNodes,
			SchemaPropertyCap:     graph.DefaultPropertyCap,
		},
		LLM: llm.DefaultProviderConfig(),
		Agent: AgentConfig{
			TurnLimit:           agent.DefaultTurnLimit,
			SupervisorTurnLimit: agent.DefaultTurnLimit,
			MaxParallelTools:    agent.DefaultMaxParallelTools,
		},
		Server: ServerConfig{
			Transport: "stdio",
			Address:   ":8000",
			Name:      "linkbrain",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "stdout",
			SampleRate: 1.0,
		},
	}
}

// defaultSettings flattens cfg into viper keys. Every key listed here can
// also be set through a LINKBRAIN_ environment variable.
func defaultSettings(cfg *Config) map[string]any {
	return map[string]any{
		"graph.uri":                     cfg.Graph.URI,
		"graph.username":                cfg.Graph.Username,
		"graph.password":                cfg.Graph.Password,
		"graph.database":                cfg.Graph.Database,
		"graph.retry_budget":            cfg.Graph.RetryBudget,
		"graph.retry_delay":             cfg.Graph.RetryDelay,
		"graph.query_timeout":           cfg.Graph.QueryTimeout,
		"graph.connect_timeout":         cfg.Graph.ConnectTimeout,
		"graph.max_connection_lifetime": cfg.Graph.MaxConnectionLifetime,
		"graph.max_pool_size":           cfg.Graph.MaxPoolSize,
		"graph.reconnect_cooldown":      cfg.Graph.ReconnectCooldown,
		"graph.retry_writes":            cfg.Graph.RetryWrites,
		"graph.schema_sample_nodes":     cfg.Graph.SchemaSampleNodes,
		"graph.schema_property_cap":     cfg.Graph.SchemaPropertyCap,

		"llm.provider":            string(cfg.LLM.Type),
		"llm.model":               cfg.LLM.Model,
		"llm.api_key":             cfg.LLM.APIKey,
		"llm.base_url":            cfg.LLM.BaseURL,
		"llm.temperature":         cfg.LLM.Temperature,
		"llm.max_tokens":          cfg.LLM.MaxTokens,
		"llm.timeout":             cfg.LLM.Timeout,
		"llm.requests_per_second": cfg.LLM.RequestsPerSecond,
		"llm.burst":               cfg.LLM.Burst,

		"agent.turn_limit":            cfg.Agent.TurnLimit,
		"agent.supervisor_turn_limit": cfg.Agent.SupervisorTurnLimit,
		"agent.team_file":             cfg.Agent.TeamFile,
		"agent.max_parallel_tools":    cfg.Agent.MaxParallelTools,

		"server.transport": cfg.Server.Transport,
		"server.address":   cfg.Server.Address,
		"server.name":      cfg.Server.Name,

		"logging.level":  cfg.Logging.Level,
		"logging.format": cfg.Logging.Format,

		"tracing.enabled":     cfg.Tracing.Enabled,
		"tracing.exporter":    cfg.Tracing.Exporter,
		"tracing.endpoint":    cfg.Tracing.Endpoint,
		"tracing.sample_rate": cfg.Tracing.SampleRate,
		"tracing.insecure":    cfg.Tracing.Insecure,
	}
}

// envAliases are conventional variable names accepted alongside the
// LINKBRAIN_ form. The LINKBRAIN_ form wins when both are set.
var envAliases = map[string]string{
	"graph.uri":      "NEO4J_URI",
	"graph.username": "NEO4J_USERNAME",
	"graph.password": "NEO4J_PASSWORD",
	"graph.database": "NEO4J_DATABASE",
}

// providerKeyEnv names the variable holding each provider's API key when
// llm.api_key is not set.
var providerKeyEnv = map[llm.ProviderType]string{
	llm.ProviderOpenAI:    "OPENAI_API_KEY",
	llm.ProviderAnthropic: "ANTHROPIC_API_KEY",
}
