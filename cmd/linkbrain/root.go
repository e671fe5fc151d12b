package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/barabonda/linkbrain/cmd/linkbrain/internal"
	"github.com/barabonda/linkbrain/internal/config"
	"github.com/barabonda/linkbrain/internal/observability"
	"github.com/barabonda/linkbrain/internal/util"
	"github.com/barabonda/linkbrain/pkg/version"
)

const tracingShutdownTimeout = 5 * time.Second

// session is the state built once by loadConfig for the running command.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	tracing *sdktrace.TracerProvider
}

var current *session

var rootCmd = &cobra.Command{
	Use:   "linkbrain",
	Short: "linkbrain - natural-language questions over a Neo4j graph",
	Long: `linkbrain answers questions about a Neo4j graph database with a
supervised team of tool-using model agents, and serves its graph tools
to other agents over MCP.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)

	if current != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		defer shutdownCancel()
		if shutdownErr := observability.ShutdownTracing(shutdownCtx, current.tracing); shutdownErr != nil {
			current.logger.Warn("tracing shutdown failed", "error", shutdownErr)
		}
	}
	return err
}

// loadConfig runs before every command. It loads configuration, builds the
// logger and starts tracing. Commands that need none of it skip loading.
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := globalFlags.Validate(); err != nil {
		return err
	}
	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	cfg, err := readConfig(globalFlags.ConfigFile)
	if err != nil {
		return err
	}
	if globalFlags.IsVerbose() {
		cfg.Logging.Level = "debug"
	}

	// stdout is reserved for command output and the MCP stdio transport.
	logger, err := observability.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	tp, err := observability.InitTracing(cmd.Context(), cfg.Tracing)
	if err != nil {
		return err
	}

	current = &session{cfg: cfg, logger: logger, tracing: tp}
	logger.Debug("configuration loaded", "config_file", globalFlags.ConfigFile, "graph_uri", cfg.Graph.URI,
		"llm_provider", string(cfg.LLM.Type), "remote_tools", len(cfg.RemoteTools))
	return nil
}

// readConfig loads path, which must exist when given. Without a path the
// default file is used if present. A relative agent.team_file is resolved
// against the directory of the config file.
func readConfig(path string) (*config.Config, error) {
	loader := config.NewConfigLoader(config.NewValidator())

	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		path = config.DefaultConfigFile
		cfg, err = loader.LoadWithDefaults(path)
	} else {
		path, err = util.ExpandPath(path)
		if err != nil {
			return nil, internal.WrapError(internal.ExitConfigError, "invalid config path", err)
		}
		cfg, err = loader.Load(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, internal.WrapError(internal.ExitConfigError, "config file not found: "+path, err)
		}
	}
	if err != nil {
		return nil, err
	}

	cfg.Agent.TeamFile, err = util.ResolvePath(cfg.Agent.TeamFile, filepath.Dir(path))
	if err != nil {
		return nil, internal.WrapError(internal.ExitConfigError, "invalid agent.team_file", err)
	}
	return cfg, nil
}

func init() {
	RegisterGlobalFlags(rootCmd, globalFlags)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(toolsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())
		if globalFlags.GetOutputFormat() == internal.FormatJSON {
			return out.PrintJSON(version.Info())
		}
		return out.PrintText(version.String())
	},
}
