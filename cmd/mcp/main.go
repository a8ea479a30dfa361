// Command mcp exposes the relay demo tools as an MCP server over stdio, so
// MCP clients can discover and call the same tools a relay deployment
// executes during runs.
//
// Usage:
//
//	go run ./cmd/mcp
//
// Point an MCP-capable client at the binary as a subprocess server, or set
// RELAY_MCP_URL on another relay instance to mirror these tools remotely.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/relayforge/relay/mcp"
	"github.com/relayforge/relay/tool"
)

func main() {
	registry := tool.NewRegistry().Add(
		tool.Func("echo", "Echo back the input text", echoHandler),
		tool.Func("get_time", "Get the current time", timeHandler),
		tool.NewHTTPTool(
			tool.WithMaxResponseSize(1<<20),
			tool.WithHTTPTimeout(10*time.Second),
		),
	)

	if err := mcp.ServeStdio(registry,
		mcp.WithName("relay-tools"),
		mcp.WithVersion("1.0.0"),
	); err != nil {
		log.Fatal(err)
	}
}

// EchoArgs are the arguments for the echo tool.
type EchoArgs struct {
	Text string `json:"text" desc:"The text to echo back" required:"true"`
}

func echoHandler(ctx context.Context, args EchoArgs) (string, error) {
	return args.Text, nil
}

// TimeArgs are the arguments for the get_time tool.
type TimeArgs struct {
	Format string `json:"format" desc:"Go time layout (optional), defaults to RFC 3339"`
}

func timeHandler(ctx context.Context, args TimeArgs) (string, error) {
	layout := args.Format
	if layout == "" {
		layout = time.RFC3339
	}
	return fmt.Sprintf(`{"time": %q, "timezone": "UTC"}`, time.Now().UTC().Format(layout)), nil
}
