package main

import (
	"context"
	"fmt"
	"time"

	"github.com/relayforge/relay/tool"
)

// SetupDemoTools registers a few locally executable tools so a fresh
// deployment can exercise the tool flow without external handlers.
// Enabled by default (RELAY_DEMO_TOOLS=true).
func SetupDemoTools(registry *tool.Registry) {
	tool.MustRegisterFunc(registry, "get_weather",
		"Get the current weather for a location",
		func(ctx context.Context, args struct {
			Location string `json:"location" desc:"City name, e.g. Paris" required:"true"`
		}) (string, error) {
			time.Sleep(50 * time.Millisecond) // Simulate API latency
			return fmt.Sprintf(`{"location": %q, "temperature": 22, "conditions": "Sunny", "unit": "celsius"}`, args.Location), nil
		},
	)

	tool.MustRegisterFunc(registry, "get_time",
		"Get the current time",
		func(ctx context.Context, args struct{}) (string, error) {
			return fmt.Sprintf(`{"time": %q, "timezone": "UTC"}`, time.Now().UTC().Format(time.RFC3339)), nil
		},
	)

	tool.MustRegisterFunc(registry, "echo",
		"Echo back the input message (useful for testing)",
		func(ctx context.Context, args struct {
			Message string `json:"message" desc:"Message to echo back" required:"true"`
		}) (string, error) {
			return fmt.Sprintf(`{"echo": %q}`, args.Message), nil
		},
	)

	// Fetch tool with conservative limits; deployments that need more
	// register their own via tool.NewHTTPTool options.
	registry.Add(tool.NewHTTPTool(
		tool.WithMaxResponseSize(1 << 20),
		tool.WithHTTPTimeout(10 * time.Second),
	))
}
