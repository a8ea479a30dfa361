package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/relayforge/relay"
	"github.com/relayforge/relay/tool"
)

// Source is a connected MCP server whose tools can be mirrored into a
// tool.Registry. The tool list is cached; Refresh re-fetches it. Safe for
// concurrent use.
type Source struct {
	client *client.Client

	mu    sync.RWMutex
	tools map[string]relay.Tool
}

// Connect starts an MCP server subprocess and connects over stdio.
func Connect(ctx context.Context, command string, env []string, args ...string) (*Source, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp client: %w", err)
	}
	return NewSource(ctx, c)
}

// ConnectSSE connects to an MCP server over Server-Sent Events.
func ConnectSSE(ctx context.Context, baseURL string) (*Source, error) {
	c, err := client.NewSSEMCPClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create sse mcp client: %w", err)
	}
	return NewSource(ctx, c)
}

// NewSource wraps an existing MCP client: starts it, runs the protocol
// handshake, and fetches the initial tool list.
func NewSource(ctx context.Context, c *client.Client) (*Source, error) {
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start mcp client: %w", err)
	}

	_, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "relay-mcp-client",
				Version: "1.0.0",
			},
		},
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize mcp session: %w", err)
	}

	s := &Source{
		client: c,
		tools:  make(map[string]relay.Tool),
	}
	if err := s.Refresh(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to list mcp tools: %w", err)
	}
	return s, nil
}

// Close shuts down the connection.
func (s *Source) Close() error {
	return s.client.Close()
}

// Refresh re-fetches the server's tool list, replacing the cache.
func (s *Source) Refresh(ctx context.Context) error {
	result, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = make(map[string]relay.Tool, len(result.Tools))
	for _, t := range result.Tools {
		s.tools[t.Name] = ToolFromMCP(t)
	}
	return nil
}

// Tools returns the cached tool schemas.
func (s *Source) Tools() []relay.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]relay.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, t)
	}
	return tools
}

// Has reports whether the cache holds a tool with the given name.
func (s *Source) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tools[name]
	return ok
}

// Execute proxies one tool call to the remote server. Remote failures come
// back as error results, not errors, so the model can react to them.
func (s *Source) Execute(ctx context.Context, call relay.ToolCall) (relay.ToolResult, error) {
	result, err := s.client.CallTool(ctx, callToRequest(call))
	if err != nil {
		return relay.ToolResult{
			ToolCallID: call.ID,
			Content:    err.Error(),
			IsError:    true,
		}, nil
	}
	return resultFromMCP(call.ID, result), nil
}

// Mirror registers every cached tool into registry with a handler that
// proxies to the remote server. Call Refresh first to pick up changes;
// already registered names are an error.
func (s *Source) Mirror(registry *tool.Registry) error {
	for _, t := range s.Tools() {
		if err := registry.Register(t, s.proxyHandler()); err != nil {
			return fmt.Errorf("failed to mirror tool %s: %w", t.Name, err)
		}
	}
	return nil
}

func (s *Source) proxyHandler() tool.Handler {
	return func(ctx context.Context, call relay.ToolCall) (string, error) {
		result, err := s.Execute(ctx, call)
		if err != nil {
			return "", err
		}
		if result.IsError {
			return "", errors.New(result.Content)
		}
		return result.Content, nil
	}
}
