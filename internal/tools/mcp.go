package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"github.com/spiritledsoftware/ai/internal/logging"
)

// MCPConfig describes a stdio MCP server to launch and adapt.
type MCPConfig struct {
	// Command is the server executable.
	Command string

	// Args are passed to the command.
	Args []string

	// Env entries are KEY=VALUE pairs added to the server environment.
	Env []string

	// ClientName and ClientVersion identify us in the MCP handshake.
	ClientName    string
	ClientVersion string
}

// MCPServer is a connection to one MCP server whose tools are exposed as
// session tools.
type MCPServer struct {
	client *client.Client
	tools  []Tool
}

// ConnectMCP launches the server, performs the handshake with exponential
// backoff, and lists its tools. Close releases the connection and the
// child process.
func ConnectMCP(ctx context.Context, cfg MCPConfig) (*MCPServer, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("mcp: command is required")
	}
	name := cfg.ClientName
	if name == "" {
		name = "aichat"
	}
	version := cfg.ClientVersion
	if version == "" {
		version = "dev"
	}

	mcpClient, err := client.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("mcp: start %s: %w", cfg.Command, err)
	}

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: mcptypes.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    name,
				Version: version,
			},
		},
	}

	// The server process may need a moment before it answers the
	// handshake, so the initialize call is retried with backoff. Chat
	// requests themselves are never retried.
	initialize := func() error {
		_, ierr := mcpClient.Initialize(ctx, initReq)
		return ierr
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	if err := backoff.Retry(initialize, policy); err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("mcp: initialize %s: %w", cfg.Command, err)
	}

	listed, err := mcpClient.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("mcp: list tools: %w", err)
	}

	srv := &MCPServer{client: mcpClient}
	for _, t := range listed.Tools {
		srv.tools = append(srv.tools, newMCPTool(mcpClient, t))
	}
	logging.Debug().Str("command", cfg.Command).Int("tools", len(srv.tools)).Msg("mcp server connected")
	return srv, nil
}

// Tools returns the server's tools.
func (s *MCPServer) Tools() []Tool {
	return s.tools
}

// RegisterAll adds every server tool to the registry.
func (s *MCPServer) RegisterAll(r *Registry) {
	for _, t := range s.tools {
		r.Register(t)
	}
}

// Close shuts down the connection and the server process.
func (s *MCPServer) Close() error {
	return s.client.Close()
}

// mcpTool adapts one remote MCP tool to the Tool interface.
type mcpTool struct {
	client      *client.Client
	name        string
	description string
	parameters  json.RawMessage
}

func newMCPTool(c *client.Client, t mcptypes.Tool) *mcpTool {
	params, err := json.Marshal(t.InputSchema)
	if err != nil {
		params = json.RawMessage(`{"type":"object"}`)
	}
	return &mcpTool{client: c, name: t.Name, description: t.Description, parameters: params}
}

func (t *mcpTool) ID() string                  { return t.name }
func (t *mcpTool) Description() string         { return t.description }
func (t *mcpTool) Parameters() json.RawMessage { return t.parameters }

func (t *mcpTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var arguments map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
	}

	result, err := t.client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      t.name,
			Arguments: arguments,
		},
	})
	if err != nil {
		return nil, err
	}

	text := flattenTextContent(result.Content)
	if result.IsError {
		return nil, fmt.Errorf("tool error: %s", text)
	}
	return text, nil
}

// flattenTextContent joins the text parts of an MCP result.
func flattenTextContent(content []mcptypes.Content) string {
	var out strings.Builder
	for _, c := range content {
		if tc, ok := c.(mcptypes.TextContent); ok {
			out.WriteString(tc.Text)
		}
	}
	return out.String()
}
