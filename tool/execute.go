package tool

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/relayforge/relay"
	"github.com/relayforge/relay/retry"
)

const (
	// DefaultTimeout bounds a single handler invocation.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of re-attempts after the first failure.
	DefaultMaxRetries = 2

	// DefaultBackoffBase is the delay before the first retry; it doubles on
	// each subsequent retry.
	DefaultBackoffBase = 100 * time.Millisecond
)

// Execution is the per-call report produced by an Executor. Exactly one
// Execution is produced for every tool call handed to ExecuteAll, in input
// order.
type Execution struct {
	ToolCallID string
	ToolName   string

	// Result carries the tool output. On failure, Result.IsError is true
	// and Result.Content holds the error message so the model can recover.
	Result relay.ToolResult

	// Err is the final error for calls that failed after all attempts,
	// nil on success.
	Err error

	// RetryCount is the number of re-attempts performed (0 when the first
	// attempt succeeded or the error was not retryable).
	RetryCount int

	// Duration is the wall time across all attempts, including backoff.
	Duration time.Duration
}

// Succeeded returns true if the call produced a usable result.
func (e Execution) Succeeded() bool {
	return e.Err == nil && !e.Result.IsError
}

// Executor runs tool calls against a registry with per-call timeouts and
// bounded retry. Validation failures, unknown tool names, and timeouts are
// not retried; other handler errors are.
type Executor struct {
	registry   *Registry
	timeout    time.Duration
	maxRetries int
	backoff    retry.Config
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithTimeout sets the per-call handler timeout.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = d
	}
}

// WithMaxRetries sets the number of re-attempts after a failed call.
func WithMaxRetries(n int) ExecutorOption {
	return func(e *Executor) {
		e.maxRetries = n
	}
}

// WithBackoffBase sets the delay before the first retry.
func WithBackoffBase(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.backoff.InitialDelay = d
	}
}

// NewExecutor creates an Executor over the given registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:   registry,
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		backoff: retry.Config{
			InitialDelay: DefaultBackoffBase,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one tool call to completion, retrying failed attempts up to
// the configured limit. Unknown tool names and malformed arguments fail
// immediately; a timeout consumes the call without retry since the handler
// already ran for the full budget.
func (e *Executor) Execute(ctx context.Context, call relay.ToolCall) Execution {
	start := time.Now()
	exec := Execution{
		ToolCallID: call.ID,
		ToolName:   call.Name,
	}

	handler, ok := e.registry.Get(call.Name)
	if !ok || e.registry.IsExternal(call.Name) {
		exec.Err = &ErrToolNotFound{Name: call.Name}
		exec.Result = errorResult(call.ID, exec.Err)
		exec.Duration = time.Since(start)
		return exec
	}

	if call.Arguments != "" && !json.Valid([]byte(call.Arguments)) {
		exec.Err = &ErrToolExecution{Name: call.Name, Err: errors.New("arguments are not valid JSON")}
		exec.Result = errorResult(call.ID, exec.Err)
		exec.Duration = time.Since(start)
		return exec
	}

	if v := e.registry.Validator(call.Name); v != nil {
		if err := v(json.RawMessage(call.Arguments)); err != nil {
			exec.Err = &ErrToolExecution{Name: call.Name, Err: err}
			exec.Result = errorResult(call.ID, exec.Err)
			exec.Duration = time.Since(start)
			return exec
		}
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		content, err := e.runOnce(ctx, handler, call)
		if err == nil {
			exec.Result = relay.ToolResult{ToolCallID: call.ID, Content: content}
			exec.RetryCount = attempt
			exec.Duration = time.Since(start)
			return exec
		}

		lastErr = err
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			break
		}

		if attempt < e.maxRetries {
			select {
			case <-ctx.Done():
				exec.Err = &ErrToolExecution{Name: call.Name, Err: ctx.Err()}
				exec.Result = errorResult(call.ID, exec.Err)
				exec.RetryCount = attempt
				exec.Duration = time.Since(start)
				return exec
			case <-time.After(e.backoff.Backoff(attempt)):
			}
			exec.RetryCount = attempt + 1
		}
	}

	exec.Err = &ErrToolExecution{Name: call.Name, Err: lastErr}
	exec.Result = errorResult(call.ID, exec.Err)
	exec.Duration = time.Since(start)
	return exec
}

// runOnce invokes the handler under the per-call timeout.
func (e *Executor) runOnce(ctx context.Context, handler Handler, call relay.ToolCall) (string, error) {
	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type outcome struct {
		content string
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		content, err := handler(callCtx, call)
		done <- outcome{content, err}
	}()

	select {
	case <-callCtx.Done():
		return "", callCtx.Err()
	case out := <-done:
		return out.content, out.err
	}
}

// ExecuteAll runs every call in order and returns one Execution per call,
// preserving input order. Failures do not stop later calls.
func (e *Executor) ExecuteAll(ctx context.Context, calls []relay.ToolCall) []Execution {
	execs := make([]Execution, 0, len(calls))
	for _, call := range calls {
		execs = append(execs, e.Execute(ctx, call))
	}
	return execs
}

// errorResult converts an execution error into a recoverable tool result.
func errorResult(callID string, err error) relay.ToolResult {
	return relay.ToolResult{
		ToolCallID: callID,
		Content:    err.Error(),
		IsError:    true,
	}
}
