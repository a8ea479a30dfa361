// Package mcp bridges the tool registry and the Model Context Protocol.
// A Source mirrors a remote MCP server's tools into a local registry so
// runs can execute them like any registered tool; NewServer goes the other
// way and exposes a registry to MCP clients.
package mcp

import (
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/relayforge/relay"
)

// ToolToMCP converts a run tool schema to its MCP form. The Parameters
// JSON schema passes through untouched as the raw input schema.
func ToolToMCP(t relay.Tool) mcp.Tool {
	return mcp.NewToolWithRawSchema(t.Name, t.Description, t.Parameters)
}

// ToolFromMCP converts an MCP tool definition to a run tool schema,
// preferring the raw input schema over the structured one.
func ToolFromMCP(t mcp.Tool) relay.Tool {
	schema := json.RawMessage(t.RawInputSchema)
	if len(schema) == 0 {
		if data, err := json.Marshal(t.InputSchema); err == nil {
			schema = data
		}
	}
	return relay.Tool{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  schema,
	}
}

// callToRequest builds the MCP call for a run tool call. Arguments that
// fail to parse as JSON are passed through as a raw string.
func callToRequest(call relay.ToolCall) mcp.CallToolRequest {
	var args any
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			args = call.Arguments
		}
	}
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      call.Name,
			Arguments: args,
		},
	}
}

// resultFromMCP flattens an MCP call result into a tool result. Text
// content concatenates in order; non-text and structured content are
// rendered as JSON.
func resultFromMCP(callID string, result *mcp.CallToolResult) relay.ToolResult {
	if result == nil {
		return relay.ToolResult{ToolCallID: callID, IsError: true}
	}

	var parts []string
	for _, c := range result.Content {
		switch content := c.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		default:
			if data, err := json.Marshal(content); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	if result.StructuredContent != nil {
		if data, err := json.Marshal(result.StructuredContent); err == nil {
			parts = append(parts, string(data))
		}
	}

	return relay.ToolResult{
		ToolCallID: callID,
		Content:    strings.Join(parts, "\n"),
		IsError:    result.IsError,
	}
}
