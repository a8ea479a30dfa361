package tool

import (
	"context"
	"encoding/json"

	"github.com/relayforge/relay"
)

// Handler executes a tool call and returns its result content. The context
// carries the per-call timeout; the call carries the tool name, ID, and
// arguments as a JSON string.
type Handler func(ctx context.Context, call relay.ToolCall) (string, error)

// TypedHandler executes a tool call with arguments already unmarshaled
// into T.
type TypedHandler[T any] func(ctx context.Context, args T) (string, error)

// Validator checks a call's arguments before the handler runs. A rejection
// fails the call immediately, without retry.
type Validator func(args json.RawMessage) error
