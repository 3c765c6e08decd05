package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/weaveflow/weaveflow/ir"
	"github.com/weaveflow/weaveflow/logging"
)

const protocolVersion = "2024-11-05"

// MCPOptions configure the MCP gateway.
type MCPOptions struct {
	// Logger receives connection lifecycle messages.
	Logger logging.Logger
	// CallTimeout bounds a single tool call. Zero means no per-call bound;
	// the run's policy deadline still applies through ctx.
	CallTimeout time.Duration
}

// MCPGateway launches stdio tool servers on demand and routes capability
// invocations to them over the Model Context Protocol. Connections are
// created on first use, shared across runs, and live until Close.
type MCPGateway struct {
	servers map[string]*ir.Server
	opts    MCPOptions

	mu    sync.Mutex
	conns map[string]*client.Client
}

// NewMCPGateway prepares a gateway over the bundle's server specs. Nothing
// is launched until the first invocation that needs a server.
func NewMCPGateway(servers map[string]*ir.Server, optFns ...func(o *MCPOptions)) *MCPGateway {
	opts := MCPOptions{
		Logger:      logging.NoOpLogger{},
		CallTimeout: 60 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &MCPGateway{
		servers: servers,
		opts:    opts,
		conns:   make(map[string]*client.Client),
	}
}

// Invoke implements Gateway.
func (g *MCPGateway) Invoke(ctx context.Context, req Request) (*Result, error) {
	conn, err := g.conn(ctx, req.Server)
	if err != nil {
		return nil, &Error{Capability: req.Capability, Message: err.Error(), Code: "server_unavailable"}
	}

	callCtx := ctx
	if g.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.opts.CallTimeout)
		defer cancel()
	}

	res, err := conn.CallTool(callCtx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      req.Method,
			Arguments: req.Args,
		},
	})
	if err != nil {
		return nil, &Error{Capability: req.Capability, Message: err.Error(), Code: "invocation_failed"}
	}
	if res.IsError {
		return nil, &Error{Capability: req.Capability, Message: joinText(res), Code: "tool_error"}
	}
	return &Result{Value: decodeResult(res)}, nil
}

// conn returns a live connection to the named server, launching it first if
// needed. The lock also serializes launches so a server starts exactly once.
func (g *MCPGateway) conn(ctx context.Context, name string) (*client.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.conns[name]; ok {
		return c, nil
	}
	spec, ok := g.servers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool server %q", name)
	}
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("tool server %q has no command", name)
	}

	mcpClient, err := client.NewStdioMCPClient(spec.Command[0], serverEnv(spec), spec.Command[1:]...)
	if err != nil {
		return nil, fmt.Errorf("launch tool server %q: %w", name, err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("start tool server %q: %w", name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = protocolVersion
	initReq.Params.Capabilities = mcp.ClientCapabilities{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "weaveflow",
		Version: "0.1.0",
	}
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("initialize tool server %q: %w", name, err)
	}

	g.opts.Logger.Info("tool server connected", "server", name)
	g.conns[name] = mcpClient
	return mcpClient, nil
}

// serverEnv builds the extra environment passed to the server process. The
// child inherits the parent environment; the declared env and the resolved
// auth token are layered on top. The token is exported under the conventional
// names tool servers look for.
func serverEnv(spec *ir.Server) []string {
	env := make([]string, 0, len(spec.Env)+3)
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}
	if token := spec.AuthToken.Resolve(); token != "" {
		env = append(env,
			"GITHUB_PERSONAL_ACCESS_TOKEN="+token,
			"GITHUB_TOKEN="+token,
			"API_TOKEN="+token,
		)
	}
	return env
}

// Close shuts down every running tool server.
func (g *MCPGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var errs []error
	for name, c := range g.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close tool server %q: %w", name, err))
		}
		delete(g.conns, name)
	}
	return errors.Join(errs...)
}

// decodeResult turns a tool result's text content into a step-visible value:
// decoded JSON when the server replied with JSON, raw text otherwise.
func decodeResult(res *mcp.CallToolResult) any {
	text := joinText(res)
	if text == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v
	}
	return text
}

func joinText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
