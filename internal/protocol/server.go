// Package protocol serves registry tools over MCP and proxies tools of
// external MCP servers into a registry.
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/barabonda/linkbrain/internal/tool"
	"github.com/barabonda/linkbrain/internal/types"
	"github.com/barabonda/linkbrain/pkg/version"
)

// ErrCodeServe marks a failure to start or run the tool server.
const ErrCodeServe types.ErrorCode = "PROTOCOL_SERVE_FAILED"

const shutdownTimeout = 5 * time.Second

// Server exposes the tools of a registry over MCP. Every tool answers with
// the JSON response envelope as a single text content; failures also set
// isError.
type Server struct {
	mcp      *server.MCPServer
	registry *tool.Registry
	name     string
	logger   *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerName sets the implementation name announced at initialization.
// Default: "linkbrain"
func WithServerName(name string) ServerOption {
	return func(s *Server) {
		if name != "" {
			s.name = name
		}
	}
}

// WithServerLogger sets the logger for server operations.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer registers every tool currently in registry. Tools registered
// later are not exposed.
func NewServer(registry *tool.Registry, opts ...ServerOption) (*Server, error) {
	s := &Server{
		registry: registry,
		name:     "linkbrain",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(s.name, version.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	for _, desc := range registry.List() {
		schema, err := desc.Schema()
		if err != nil {
			return nil, types.WrapError(ErrCodeServe, fmt.Sprintf("tool %q has no usable schema", desc.Name), err)
		}
		s.mcp.AddTool(mcp.NewToolWithRawSchema(desc.Name, desc.Description, schema), s.handler(desc.Name))
	}
	s.logger.Debug("mcp tools exposed", "count", len(registry.List()))
	return s, nil
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := json.Marshal(request.GetArguments())
		if err != nil {
			resp := tool.Failure(tool.NewValidationError(name, err))
			return envelope(resp), nil
		}

		resp := s.registry.Invoke(ctx, name, raw)
		s.logger.DebugContext(ctx, "mcp tool call", "tool", name, "success", resp.Success)
		return envelope(resp), nil
	}
}

func envelope(resp tool.Response) *mcp.CallToolResult {
	result := mcp.NewToolResultText(resp.String())
	result.IsError = !resp.Success
	return result
}

// ServeStdio speaks MCP over in and out until ctx is done or in closes.
// Nothing else may write to out.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Info("mcp server listening", "transport", "stdio", "name", s.name)
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return types.WrapError(ErrCodeServe, "stdio transport failed", err)
	}
	return nil
}

// ServeHTTP serves the streamable HTTP transport on address until ctx is
// done, then shuts down gracefully.
func (s *Server) ServeHTTP(ctx context.Context, address string) error {
	httpServer := &http.Server{
		Addr:              address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening", "transport", "http", "address", address, "name", s.name)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return types.WrapError(ErrCodeServe, fmt.Sprintf("http transport failed on %s", address), err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return types.WrapError(ErrCodeServe, "http shutdown failed", err)
	}
	s.logger.Info("mcp server stopped", "transport", "http")
	return nil
}

// Handler returns the streamable HTTP transport as an http.Handler.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}
