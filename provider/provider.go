// Package provider defines the inference provider contract consumed by the
// run execution engine. Adapter subpackages normalize vendor SDKs (Anthropic,
// OpenAI, Google GenAI) into this contract: unified request in, unified
// response out, errors wrapped into the relay taxonomy.
//
// Transient upstream failures (429, 5xx) are retried inside the adapters;
// the engine performs no retry of its own.
package provider

import (
	"context"

	"github.com/relayforge/relay"
)

// Provider is the normalized inference backend.
type Provider interface {
	// GenerateResponse runs one inference turn without tool schemas, even
	// when the request declares tools.
	GenerateResponse(ctx context.Context, req relay.Request, runID string) (*relay.Response, error)

	// GenerateWithTools runs one inference turn forwarding the request's
	// declared tool schemas, allowing the model to emit tool calls.
	GenerateWithTools(ctx context.Context, req relay.Request, runID string) (*relay.Response, error)

	// HealthCheck probes the upstream API.
	HealthCheck(ctx context.Context) Health
}

// Health is the result of a provider health probe.
type Health struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}
