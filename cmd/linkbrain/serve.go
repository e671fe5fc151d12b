package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/barabonda/linkbrain/cmd/linkbrain/internal"
	"github.com/barabonda/linkbrain/internal/protocol"
	"github.com/barabonda/linkbrain/internal/tool"
)

var serveFlags struct {
	transport string
	address   string
	readOnly  bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the graph tools over MCP",
	Long: `Serve every registered tool, including proxied remote tools, over the
Model Context Protocol. The stdio transport speaks on stdin and stdout;
logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.transport, "transport", "", "Transport (stdio|http); overrides server.transport")
	serveCmd.Flags().StringVar(&serveFlags.address, "address", "", "Listen address for http; overrides server.address")
	serveCmd.Flags().BoolVar(&serveFlags.readOnly, "read-only", false, "Do not expose write_cypher")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := current.cfg

	transport := cfg.Server.Transport
	if serveFlags.transport != "" {
		transport = serveFlags.transport
	}
	address := cfg.Server.Address
	if serveFlags.address != "" {
		address = serveFlags.address
	}

	a, err := newApp(ctx, current, appOptions{connect: true, remoteTools: true, readOnly: serveFlags.readOnly})
	if err != nil {
		return err
	}
	defer closeApp(a)
	defer logToolMetrics(a.logger, a.registry)

	srv, err := protocol.NewServer(a.registry,
		protocol.WithServerName(cfg.Server.Name),
		protocol.WithServerLogger(a.logger),
	)
	if err != nil {
		return err
	}

	switch transport {
	case "stdio":
		return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
	case "http":
		if address == "" {
			return internal.NewCLIError(internal.ExitConfigError, "http transport needs an address")
		}
		return srv.ServeHTTP(ctx, address)
	default:
		return internal.NewCLIError(internal.ExitConfigError,
			fmt.Sprintf("unsupported transport %q (want stdio or http)", transport))
	}
}

// logToolMetrics logs the usage of every tool called while serving.
func logToolMetrics(logger *slog.Logger, registry *tool.Registry) {
	for _, desc := range registry.List() {
		m, err := registry.Metrics(desc.Name)
		if err != nil || m.TotalCalls == 0 {
			continue
		}
		logger.Info("tool usage",
			"tool", desc.Name,
			"calls", m.TotalCalls,
			"failed", m.FailedCalls,
			"success_rate", fmt.Sprintf("%.2f", m.SuccessRate()),
			"avg_duration", m.AvgDuration,
		)
	}
}
