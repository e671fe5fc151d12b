package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/barabonda/linkbrain/internal/agent"
	"github.com/barabonda/linkbrain/internal/config"
	"github.com/barabonda/linkbrain/internal/graph"
	"github.com/barabonda/linkbrain/internal/llm/providers"
	"github.com/barabonda/linkbrain/internal/orchestrator"
	"github.com/barabonda/linkbrain/internal/protocol"
	"github.com/barabonda/linkbrain/internal/tool"
	"github.com/barabonda/linkbrain/internal/tool/builtins"
)

// app holds the components one command runs against.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	conn     *graph.ConnectionManager
	executor *graph.Executor
	schema   *graph.Introspector
	registry *tool.Registry
	remote   *protocol.RemoteTools
}

type appOptions struct {
	// connect opens the graph connection up front. A failure is logged,
	// not returned; the first query reconnects.
	connect bool
	// remoteTools attaches the configured remote MCP servers.
	remoteTools bool
	// readOnly leaves write_cypher out of the registry.
	readOnly bool
}

// newApp wires the graph layer and the tool registry from s.
func newApp(ctx context.Context, s *session, opts appOptions) (*app, error) {
	a := &app{cfg: s.cfg, logger: s.logger}

	conn, err := graph.NewConnectionManager(s.cfg.Graph.Connection(), graph.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	a.conn = conn
	a.executor = graph.NewExecutor(conn, graph.WithExecutorLogger(s.logger))
	a.schema = graph.NewIntrospector(a.executor,
		graph.WithSampling(s.cfg.Graph.SchemaSampleNodes, s.cfg.Graph.SchemaPropertyCap),
		graph.WithIntrospectorLogger(s.logger),
	)

	a.registry = tool.NewRegistry(tool.WithLogger(s.logger))
	if err := builtins.RegisterGraphTools(a.registry, builtins.GraphToolsConfig{
		Runner:     a.executor,
		Schema:     a.schema,
		Connection: conn,
		ReadOnly:   opts.readOnly,
	}); err != nil {
		return nil, err
	}

	if opts.connect {
		if err := conn.Connect(ctx); err != nil {
			s.logger.Warn("graph store not reachable at startup", "uri", s.cfg.Graph.URI, "error", err)
		}
	}

	if opts.remoteTools && len(s.cfg.RemoteTools) > 0 {
		a.remote = protocol.NewRemoteTools(a.registry, protocol.WithRemoteLogger(s.logger))
		if err := a.remote.Connect(ctx, s.cfg.RemoteTools); err != nil {
			_ = a.Close(context.Background())
			return nil, err
		}
	}
	return a, nil
}

// supervisor builds the team from configuration over the registry.
func (a *app) supervisor() (*orchestrator.Supervisor, error) {
	if err := a.cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	provider, err := providers.NewProvider(a.cfg.LLM)
	if err != nil {
		return nil, err
	}

	team := agent.DefaultTeam(builtins.GraphToolNames())
	if a.cfg.Agent.TeamFile != "" {
		team, err = agent.LoadTeam(a.cfg.Agent.TeamFile)
		if err != nil {
			return nil, err
		}
	}

	return orchestrator.NewFromTeam(team, provider, a.registry,
		orchestrator.WithTurnLimit(a.cfg.Agent.SupervisorTurnLimit),
		orchestrator.WithMemberTurnLimit(a.cfg.Agent.TurnLimit),
		orchestrator.WithMaxParallelTools(a.cfg.Agent.MaxParallelTools),
		orchestrator.WithLogger(a.logger),
	)
}

// Close releases remote tool servers and the graph connection.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.remote != nil {
		errs = append(errs, a.remote.Close())
	}
	if a.conn != nil {
		errs = append(errs, a.conn.Disconnect(ctx))
	}
	return errors.Join(errs...)
}

// closeApp closes a and logs a failure; used in defers.
func closeApp(a *app) {
	if err := a.Close(context.Background()); err != nil {
		a.logger.Warn("shutdown incomplete", "error", err)
	}
}
