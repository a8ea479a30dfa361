package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/relayforge/relay"
	"github.com/relayforge/relay/tool"
)

// DetectToolCalls returns true iff the response carries tool calls.
func DetectToolCalls(resp *relay.Response) bool {
	return resp.HasToolCalls()
}

// ExtractToolCalls validates the response's tool calls structurally: every
// call needs a non-empty id and name, and arguments that parse as a JSON
// object. One malformed entry fails the whole batch; a run never executes a
// partial batch.
func ExtractToolCalls(resp *relay.Response) ([]relay.ToolCall, error) {
	calls := resp.ToolCalls()
	for i, call := range calls {
		if call.ID == "" {
			return nil, invalidToolCalls(fmt.Sprintf("tool call %d has no id", i))
		}
		if call.Name == "" {
			return nil, invalidToolCalls(fmt.Sprintf("tool call %s has no name", call.ID))
		}
		if !isJSONObject(call.Arguments) {
			return nil, invalidToolCalls(fmt.Sprintf("tool call %s (%s): arguments are not a JSON object", call.ID, call.Name))
		}
	}
	return calls, nil
}

// RequiredActions matches each call against the declared tool schemas by
// exact name and converts the batch into pending tool actions, preserving
// response order and call ids. An unmatched name fails the whole batch.
func RequiredActions(calls []relay.ToolCall, declared []relay.Tool) ([]relay.RequiredToolAction, error) {
	names := make(map[string]struct{}, len(declared))
	for _, t := range declared {
		names[t.Name] = struct{}{}
	}

	actions := make([]relay.RequiredToolAction, 0, len(calls))
	for _, call := range calls {
		if _, ok := names[call.Name]; !ok {
			return nil, relay.NewValidationError(relay.CodeToolNotFound,
				fmt.Sprintf("tool %q is not declared on the run", call.Name))
		}
		actions = append(actions, relay.RequiredToolAction{
			ToolCallID: call.ID,
			Name:       call.Name,
			Arguments:  json.RawMessage(call.Arguments),
		})
	}
	return actions, nil
}

// ExecuteToolCalls runs the batch sequentially through the executor. One
// failing call does not abort the rest; the result slice matches the input
// order one to one.
func (e *Engine) ExecuteToolCalls(ctx context.Context, calls []relay.ToolCall) []tool.Execution {
	return e.executor.ExecuteAll(ctx, calls)
}

// ToolResultMessages converts executions back into tool-role messages, one
// per call in batch order. Each message pairs the originating call with a
// text rendering of its outcome so providers that cannot consume structured
// parts still see the result.
func ToolResultMessages(calls []relay.ToolCall, executions []tool.Execution) []relay.Message {
	msgs := make([]relay.Message, 0, len(executions))
	for i, exec := range executions {
		text := "Error: " + errMessage(exec.Err)
		if exec.Succeeded() {
			if b, err := json.Marshal(exec.Result.Content); err == nil {
				text = string(b)
			}
		}

		msg := relay.NewToolResultMessage(exec.Result)
		if i < len(calls) {
			msg.Parts = append(msg.Parts, relay.NewToolCallPart(calls[i]))
		}
		msg.Parts = append(msg.Parts, relay.NewTextPart(text))
		msgs = append(msgs, msg)
	}
	return msgs
}

func invalidToolCalls(msg string) *relay.Error {
	return relay.NewValidationError(relay.CodeInvalidToolCalls, msg)
}

func isJSONObject(args string) bool {
	trimmed := strings.TrimSpace(args)
	return strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed))
}

func errMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
