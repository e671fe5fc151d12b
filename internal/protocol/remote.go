package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/barabonda/linkbrain/internal/config"
	"github.com/barabonda/linkbrain/internal/tool"
	"github.com/barabonda/linkbrain/internal/types"
	"github.com/barabonda/linkbrain/pkg/version"
)

// Remote tool error codes.
const (
	ErrCodeRemoteConnect types.ErrorCode = "REMOTE_TOOL_CONNECT_FAILED"
	ErrCodeRemoteTool    types.ErrorCode = "REMOTE_TOOL_ERROR"
)

// DefaultCallTimeout bounds one proxied tool call.
const DefaultCallTimeout = 30 * time.Second

// Client is the part of an MCP client the proxies use.
type Client interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// RemoteTools registers proxies for the tools of external MCP servers.
// Proxy names are "<server>_<tool>".
type RemoteTools struct {
	registry    *tool.Registry
	logger      *slog.Logger
	callTimeout time.Duration

	mu      sync.Mutex
	servers map[string]Client
}

// RemoteOption configures RemoteTools.
type RemoteOption func(*RemoteTools)

// WithRemoteLogger sets the logger for remote tool operations.
func WithRemoteLogger(logger *slog.Logger) RemoteOption {
	return func(r *RemoteTools) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithCallTimeout bounds each proxied call.
// Default: 30s
func WithCallTimeout(d time.Duration) RemoteOption {
	return func(r *RemoteTools) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

// NewRemoteTools creates a manager that registers proxies into registry.
func NewRemoteTools(registry *tool.Registry, opts ...RemoteOption) *RemoteTools {
	r := &RemoteTools{
		registry:    registry,
		logger:      slog.Default(),
		callTimeout: DefaultCallTimeout,
		servers:     make(map[string]Client),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect dials every configured server and attaches it. On failure the
// servers attached so far stay attached; call Close to release them.
func (r *RemoteTools) Connect(ctx context.Context, servers []config.RemoteToolConfig) error {
	for _, srv := range servers {
		c, err := dial(ctx, srv)
		if err != nil {
			return types.WrapRetryableError(ErrCodeRemoteConnect,
				fmt.Sprintf("remote tool server %q", srv.Name), err)
		}
		if err := r.Attach(ctx, srv.Name, c); err != nil {
			_ = c.Close()
			return err
		}
	}
	return nil
}

// dial creates and starts a client for srv. The stdio client starts its
// subprocess immediately; the HTTP client is started explicitly.
func dial(ctx context.Context, srv config.RemoteToolConfig) (Client, error) {
	switch srv.Transport {
	case "stdio":
		c, err := mcpclient.NewStdioMCPClient(srv.Command, envSlice(srv.Env), srv.Args...)
		if err != nil {
			return nil, fmt.Errorf("start stdio client: %w", err)
		}
		return c, nil
	case "http":
		t, err := transport.NewStreamableHTTP(srv.URL)
		if err != nil {
			return nil, fmt.Errorf("create http transport: %w", err)
		}
		c := mcpclient.NewClient(t)
		if err := c.Start(ctx); err != nil {
			return nil, fmt.Errorf("start http client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", srv.Transport)
	}
}

// Attach initializes c, lists its tools and registers a proxy for each.
// c is closed by Close once attached.
func (r *RemoteTools) Attach(ctx context.Context, serverName string, c Client) error {
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "linkbrain", Version: version.Version}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return types.WrapRetryableError(ErrCodeRemoteConnect,
			fmt.Sprintf("initialize remote tool server %q", serverName), err)
	}

	listed, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return types.WrapRetryableError(ErrCodeRemoteConnect,
			fmt.Sprintf("list tools of remote server %q", serverName), err)
	}

	registered := make([]string, 0, len(listed.Tools))
	for _, t := range listed.Tools {
		desc, err := remoteDescriptor(serverName, t)
		if err == nil {
			p := &proxy{server: serverName, remoteName: t.Name, client: c, timeout: r.callTimeout, logger: r.logger}
			err = r.registry.Register(desc, p)
		}
		if err != nil {
			r.rollback(serverName, registered)
			return err
		}
		registered = append(registered, desc.Name)
		r.logger.Debug("remote tool registered", "server", serverName, "tool", t.Name, "name", desc.Name)
	}

	r.mu.Lock()
	r.servers[serverName] = c
	r.mu.Unlock()

	r.logger.Info("remote tools attached", "server", serverName, "count", len(listed.Tools))
	return nil
}

// rollback removes the proxies of a server whose attach failed part way, so
// none of them outlive the client they call.
func (r *RemoteTools) rollback(serverName string, names []string) {
	for _, name := range names {
		if err := r.registry.Unregister(name); err != nil {
			r.logger.Warn("remote tool rollback failed", "server", serverName, "name", name, "error", err)
		}
	}
}

// Close closes every attached client.
func (r *RemoteTools) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, c := range r.servers {
		if err := c.Close(); err != nil {
			r.logger.Warn("remote tool server close failed", "server", name, "error", err)
			errs = append(errs, err)
		}
		delete(r.servers, name)
	}
	return errors.Join(errs...)
}

// RemoteToolName returns the local name of a proxied tool.
func RemoteToolName(serverName, toolName string) string {
	return sanitizeName(serverName) + "_" + sanitizeName(toolName)
}

func remoteDescriptor(serverName string, t mcp.Tool) (tool.Descriptor, error) {
	schema := t.RawInputSchema
	if len(schema) == 0 {
		encoded, err := json.Marshal(t.InputSchema)
		if err != nil {
			return tool.Descriptor{}, types.WrapError(types.ErrCodeSerialization,
				fmt.Sprintf("schema of remote tool %q", t.Name), err)
		}
		schema = encoded
	}

	desc := t.Description
	if desc == "" {
		desc = fmt.Sprintf("Tool %q of server %q.", t.Name, serverName)
	}
	return tool.Descriptor{
		Name:        RemoteToolName(serverName, t.Name),
		Description: desc,
		InputSchema: schema,
		Remote:      true,
	}, nil
}

// proxy forwards invocations to a remote server.
type proxy struct {
	server     string
	remoteName string
	client     Client
	timeout    time.Duration
	logger     *slog.Logger
}

func (p *proxy) Invoke(ctx context.Context, args map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: p.remoteName, Arguments: args},
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, types.WrapError(types.ErrCodeCancelled, "remote tool call cancelled", err)
		}
		p.logger.WarnContext(ctx, "remote tool call failed", "server", p.server, "tool", p.remoteName, "error", err)
		return nil, types.WrapRetryableError(types.ErrCodeConnectivity,
			fmt.Sprintf("call %q on server %q", p.remoteName, p.server), err)
	}
	return decodeResult(result)
}

// decodeResult turns a remote result into a handler value. JSON text is
// passed through as JSON; a remote failure envelope keeps its code.
func decodeResult(result *mcp.CallToolResult) (any, error) {
	text := textContent(result)

	var resp tool.Response
	if json.Unmarshal([]byte(text), &resp) == nil && isEnvelope(text) {
		if !resp.Success {
			code := resp.Code
			if code == "" {
				code = ErrCodeRemoteTool
			}
			return nil, types.NewError(code, resp.Error)
		}
		return resp.Result, nil
	}

	if result.IsError {
		return nil, types.NewError(ErrCodeRemoteTool, text)
	}
	if json.Valid([]byte(text)) {
		return json.RawMessage(text), nil
	}
	return text, nil
}

// isEnvelope reports whether text is a JSON object carrying a success flag.
func isEnvelope(text string) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &probe); err != nil {
		return false
	}
	_, ok := probe["success"]
	return ok
}

func textContent(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}

// sanitizeName replaces characters that aren't valid in tool names.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	return result
}
