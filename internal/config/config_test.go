package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barabonda/linkbrain/internal/llm"
	"github.com/barabonda/linkbrain/internal/types"
)

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for key := range defaultSettings(DefaultConfig()) {
		t.Setenv(envName(key), "")
		os.Unsetenv(envName(key))
	}
	for _, alias := range envAliases {
		t.Setenv(alias, "")
		os.Unsetenv(alias)
	}
	for _, name := range providerKeyEnv {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newLoader() ConfigLoader {
	return NewConfigLoader(NewValidator(), WithEnvFiles())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "neo4j://localhost:7687", cfg.Graph.URI)
	assert.Equal(t, "neo4j", cfg.Graph.Username)
	assert.Equal(t, "", cfg.Graph.Database)
	assert.Equal(t, 3, cfg.Graph.RetryBudget)
	assert.Equal(t, time.Second, cfg.Graph.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.Graph.QueryTimeout)
	assert.Equal(t, 10*time.Second, cfg.Graph.ConnectTimeout)
	assert.Equal(t, 300*time.Second, cfg.Graph.MaxConnectionLifetime)
	assert.Equal(t, 50, cfg.Graph.MaxPoolSize)
	assert.Equal(t, 5*time.Second, cfg.Graph.ReconnectCooldown)
	assert.False(t, cfg.Graph.RetryWrites)
	assert.Equal(t, 100, cfg.Graph.SchemaSampleNodes)
	assert.Equal(t, 20, cfg.Graph.SchemaPropertyCap)

	assert.Equal(t, llm.ProviderOpenAI, cfg.LLM.Type)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 1, cfg.LLM.Burst)

	assert.Equal(t, 10, cfg.Agent.TurnLimit)
	assert.Equal(t, 10, cfg.Agent.SupervisorTurnLimit)
	assert.Equal(t, 4, cfg.Agent.MaxParallelTools)

	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, ":8000", cfg.Server.Address)

	assert.NoError(t, NewValidator().Validate(cfg))
}

func TestGraphConfig_Connection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Graph.Password = "secret"
	cfg.Graph.RetryWrites = true

	conn := cfg.Graph.Connection()
	assert.Equal(t, cfg.Graph.URI, conn.URI)
	assert.Equal(t, "secret", conn.Password)
	assert.Equal(t, 50, conn.MaxConnectionPoolSize)
	assert.True(t, conn.RetryWrites)
	assert.NoError(t, conn.Validate())
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "linkbrain.yaml", `
graph:
  uri: bolt://db:7687
  database: movies
  retry_budget: 5
  query_timeout: 2s
llm:
  provider: ollama
  model: llama3
agent:
  turn_limit: 4
server:
  transport: http
  address: ":9000"
remote_tools:
  - name: search
    transport: http
    url: http://localhost:3001/mcp
  - name: files
    transport: stdio
    command: mcp-files
    args: ["--root", "/data"]
    env:
      MODE: ro
logging:
  level: debug
  format: json
`)

	cfg, err := newLoader().Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bolt://db:7687", cfg.Graph.URI)
	assert.Equal(t, "movies", cfg.Graph.Database)
	assert.Equal(t, 5, cfg.Graph.RetryBudget)
	assert.Equal(t, 2*time.Second, cfg.Graph.QueryTimeout)
	assert.Equal(t, 10*time.Second, cfg.Graph.ConnectTimeout, "unset keys keep defaults")
	assert.Equal(t, llm.ProviderOllama, cfg.LLM.Type)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, 4, cfg.Agent.TurnLimit)
	assert.Equal(t, 10, cfg.Agent.SupervisorTurnLimit)
	assert.Equal(t, "http", cfg.Server.Transport)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)

	require.Len(t, cfg.RemoteTools, 2)
	assert.Equal(t, "search", cfg.RemoteTools[0].Name)
	assert.Equal(t, "http://localhost:3001/mcp", cfg.RemoteTools[0].URL)
	assert.Equal(t, []string{"--root", "/data"}, cfg.RemoteTools[1].Args)
	assert.Equal(t, "ro", cfg.RemoteTools[1].Env["MODE"])
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "linkbrain.yaml", `
graph:
  uri: bolt://from-file:7687
agent:
  turn_limit: 4
`)

	t.Setenv("NEO4J_URI", "neo4j://from-env:7687")
	t.Setenv("NEO4J_PASSWORD", "pw")
	t.Setenv("LINKBRAIN_AGENT_TURN_LIMIT", "7")
	t.Setenv("LINKBRAIN_GRAPH_QUERY_TIMEOUT", "5s")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := newLoader().Load(path)
	require.NoError(t, err)

	assert.Equal(t, "neo4j://from-env:7687", cfg.Graph.URI)
	assert.Equal(t, "pw", cfg.Graph.Password)
	assert.Equal(t, 7, cfg.Agent.TurnLimit)
	assert.Equal(t, 5*time.Second, cfg.Graph.QueryTimeout)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestLoad_PrefixedVariableWinsOverAlias(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEO4J_URI", "neo4j://alias:7687")
	t.Setenv("LINKBRAIN_GRAPH_URI", "neo4j://prefixed:7687")

	cfg, err := newLoader().LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "neo4j://prefixed:7687", cfg.Graph.URI)
}

func TestLoad_ProviderKeyFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("ANTHROPIC_API_KEY", "sk-anthropic")

	path := writeFile(t, "linkbrain.yaml", "llm:\n  provider: anthropic\n  model: claude\n")
	cfg, err := newLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-anthropic", cfg.LLM.APIKey)

	path = writeFile(t, "linkbrain.yaml", "llm:\n  api_key: explicit\n")
	cfg, err = newLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.LLM.APIKey)
}

func TestLoadWithEnvironmentVariableInterpolation(t *testing.T) {
	clearEnv(t)
	t.Setenv("GRAPH_HOST", "graph.internal")
	t.Setenv("TOOL_TOKEN", "abc")

	path := writeFile(t, "linkbrain.yaml", `
graph:
  uri: neo4j://${GRAPH_HOST}:7687
  password: ${UNSET_PASSWORD_VAR}
remote_tools:
  - name: search
    transport: stdio
    command: search-mcp
    env:
      TOKEN: ${TOOL_TOKEN}
`)

	cfg, err := newLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, "neo4j://graph.internal:7687", cfg.Graph.URI)
	assert.Equal(t, "${UNSET_PASSWORD_VAR}", cfg.Graph.Password)
	assert.Equal(t, "abc", cfg.RemoteTools[0].Env["TOKEN"])
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	envFile := writeFile(t, ".env", "NEO4J_DATABASE=fromdotenv\nNEO4J_USERNAME=dotenv-user\n")
	t.Setenv("NEO4J_USERNAME", "shell-user")
	t.Cleanup(func() { os.Unsetenv("NEO4J_DATABASE") })

	loader := NewConfigLoader(NewValidator(), WithEnvFiles(envFile, filepath.Join(t.TempDir(), "absent.env")))
	cfg, err := loader.LoadWithDefaults("")
	require.NoError(t, err)

	assert.Equal(t, "fromdotenv", cfg.Graph.Database)
	assert.Equal(t, "shell-user", cfg.Graph.Username, "dotenv does not override the environment")
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		content string
		missing bool
		code    types.ErrorCode
	}{
		{name: "missing file", missing: true, code: types.CONFIG_LOAD_FAILED},
		{name: "malformed yaml", content: "graph: [unclosed", code: types.CONFIG_PARSE_FAILED},
		{name: "bad duration", content: "graph:\n  query_timeout: soon\n", code: types.CONFIG_PARSE_FAILED},
		{name: "invalid value", content: "agent:\n  turn_limit: 0\n", code: types.CONFIG_VALIDATION_FAILED},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing.yaml")
			if !tt.missing {
				path = writeFile(t, "linkbrain.yaml", tt.content)
			}
			_, err := newLoader().Load(path)
			require.Error(t, err)
			assert.Equal(t, tt.code, types.CodeOf(err))
		})
	}
}

func TestLoadWithDefaults_MissingFile(t *testing.T) {
	clearEnv(t)
	cfg, err := newLoader().LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "empty uri",
			mutate:  func(c *Config) { c.Graph.URI = "" },
			wantErr: "graph.uri is required",
		},
		{
			name:    "retry budget",
			mutate:  func(c *Config) { c.Graph.RetryBudget = 0 },
			wantErr: "graph.retry_budget must be at least 1",
		},
		{
			name:    "transport",
			mutate:  func(c *Config) { c.Server.Transport = "grpc" },
			wantErr: "server.transport must be one of [stdio http]",
		},
		{
			name:    "log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: "logging.level must be one of",
		},
		{
			name:    "sample rate",
			mutate:  func(c *Config) { c.Tracing.SampleRate = 2 },
			wantErr: "tracing.sample_rate must be at most 1",
		},
		{
			name: "stdio remote tool without command",
			mutate: func(c *Config) {
				c.RemoteTools = []RemoteToolConfig{{Name: "x", Transport: "stdio"}}
			},
			wantErr: "remote_tools[0].command is required",
		},
		{
			name: "http remote tool without url",
			mutate: func(c *Config) {
				c.RemoteTools = []RemoteToolConfig{{Name: "x", Transport: "http"}}
			},
			wantErr: "remote_tools[0].url is required",
		},
		{
			name: "duplicate remote tool",
			mutate: func(c *Config) {
				c.RemoteTools = []RemoteToolConfig{
					{Name: "x", Transport: "stdio", Command: "a"},
					{Name: "x", Transport: "stdio", Command: "b"},
				}
			},
			wantErr: `remote_tools[1].name "x" is duplicated`,
		},
		{
			name: "otlp without endpoint",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "otlp"
			},
			wantErr: "tracing.endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := NewValidator().Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, types.HasCode(err, types.CONFIG_VALIDATION_FAILED))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCamelToSnake(t *testing.T) {
	tests := map[string]string{
		"TurnLimit":      "turn_limit",
		"URI":            "uri",
		"RemoteTools[0]": "remote_tools[0]",
		"MaxPoolSize":    "max_pool_size",
		"BaseURL":        "base_url",
	}
	for in, want := range tests {
		assert.Equal(t, want, camelToSnake(in), in)
	}
}

func TestLoad_DurationsAsSeconds(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "linkbrain.yaml", `
graph:
  query_timeout: 45
  retry_delay: 0.5
llm:
  provider: ollama
`)
	t.Setenv("LINKBRAIN_GRAPH_CONNECT_TIMEOUT", "20")

	cfg, err := newLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Graph.QueryTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Graph.RetryDelay)
	assert.Equal(t, 20*time.Second, cfg.Graph.ConnectTimeout)
}
