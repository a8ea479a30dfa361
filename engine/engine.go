// Package engine executes runs against a provider: it advances the run
// state machine, persists every transition, pauses on tool calls, and
// resumes after tool outputs are submitted.
package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/relayforge/relay"
	"github.com/relayforge/relay/provider"
	"github.com/relayforge/relay/store"
	"github.com/relayforge/relay/tool"
)

// Engine drives run execution. All dependencies are injected; the engine
// holds no global state and is safe for concurrent use across distinct runs.
// Concurrent execution of the same run is not guarded.
type Engine struct {
	runs     store.RunStore
	messages store.MessageStore
	provider provider.Provider
	registry *tool.Registry
	executor *tool.Executor
	logger   *slog.Logger

	// localTools executes registered tool handlers inline instead of
	// pausing the run. External tools still pause.
	localTools bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLocalToolExecution makes the engine execute tool calls inline when
// every called tool has a registered handler. Calls touching an external
// or unregistered tool still pause the run for submitted outputs.
func WithLocalToolExecution() Option {
	return func(e *Engine) {
		e.localTools = true
	}
}

// WithExecutor replaces the default tool executor, e.g. to change the
// per-call timeout or retry budget.
func WithExecutor(executor *tool.Executor) Option {
	return func(e *Engine) {
		e.executor = executor
	}
}

// New creates an engine from its dependencies. The registry may be empty
// when every run tool is fulfilled by submitted outputs.
func New(runs store.RunStore, messages store.MessageStore, p provider.Provider, registry *tool.Registry, opts ...Option) *Engine {
	e := &Engine{
		runs:     runs,
		messages: messages,
		provider: p,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.executor == nil {
		e.executor = tool.NewExecutor(registry)
	}
	return e
}

// emitFunc receives a snapshot event after each persisted transition. It
// returns false when the consumer is gone, which stops the loop at the next
// boundary.
type emitFunc func(relay.RunExecutionEvent) bool

// ExecuteRun executes a run to its next pause or terminal state and returns
// the resulting run. Provider and tool failures are recorded on the run
// (status failed, LastError set) and do not surface as an error; only
// load/persist problems do.
func (e *Engine) ExecuteRun(ctx context.Context, threadID, runID string) (*relay.Run, error) {
	run, err := e.runs.GetRun(ctx, threadID, runID)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, threadID, run, nil)
}

func (e *Engine) execute(ctx context.Context, threadID string, run *relay.Run, emit emitFunc) (*relay.Run, error) {
	switch run.Status {
	case relay.RunStatusQueued:
		if err := e.transition(ctx, threadID, run, relay.RunStatusInProgress, emit); err != nil {
			return nil, err
		}
	case relay.RunStatusInProgress:
		// Resuming, e.g. after a tool output submission.
	default:
		return nil, relay.NewValidationError(relay.CodeInvalidTransition,
			"run "+run.ID+" is not executable in status "+string(run.Status))
	}

	for run.Status == relay.RunStatusInProgress {
		// Soft cancel: an external cancel writes the store; we observe it
		// here and stop without another transition.
		stored, err := e.runs.GetRun(ctx, threadID, run.ID)
		if err != nil {
			return nil, err
		}
		if stored.Status == relay.RunStatusCancelled {
			e.logger.Info("run cancelled externally", "run_id", run.ID, "thread_id", threadID)
			return stored, nil
		}

		done, err := e.step(ctx, threadID, run, emit)
		if err != nil {
			return e.fail(ctx, threadID, run, err, emit)
		}
		if done {
			break
		}
	}
	return run, nil
}

// step performs one provider turn. It returns done=true when the run left
// in_progress (paused or completed) and done=false when the loop should
// take another turn (inline tool execution).
func (e *Engine) step(ctx context.Context, threadID string, run *relay.Run, emit emitFunc) (bool, error) {
	history, err := e.messages.Messages(ctx, threadID)
	if err != nil {
		return false, err
	}
	req := e.buildRequest(run, history)

	if len(run.SubmittedToolOutputs) > 0 {
		return true, e.consumeToolOutputs(ctx, threadID, run, req, emit)
	}

	resp, err := e.provider.GenerateWithTools(ctx, req, run.ID)
	if err != nil {
		return false, err
	}

	if !DetectToolCalls(resp) {
		if err := e.messages.AppendMessages(ctx, threadID, assistantTextMessage(resp)); err != nil {
			return false, err
		}
		return true, e.transition(ctx, threadID, run, relay.RunStatusCompleted, emit)
	}

	calls, err := ExtractToolCalls(resp)
	if err != nil {
		return false, err
	}
	actions, err := RequiredActions(calls, run.Tools)
	if err != nil {
		return false, err
	}

	if err := e.messages.AppendMessages(ctx, threadID, assistantToolCallMessage(resp, calls)); err != nil {
		return false, err
	}

	if e.localTools && e.allRegistered(calls) {
		executions := e.ExecuteToolCalls(ctx, calls)
		if err := e.messages.AppendMessages(ctx, threadID, ToolResultMessages(calls, executions)...); err != nil {
			return false, err
		}
		e.logger.Debug("tool calls executed inline", "run_id", run.ID, "count", len(executions))
		return false, nil
	}

	run.RequiredToolActions = actions
	if err := e.transition(ctx, threadID, run, relay.RunStatusRequiresToolActions, emit); err != nil {
		run.RequiredToolActions = nil
		return false, err
	}
	return true, nil
}

// consumeToolOutputs appends the submitted outputs as tool messages and
// takes one final turn without tool schemas.
func (e *Engine) consumeToolOutputs(ctx context.Context, threadID string, run *relay.Run, req relay.Request, emit emitFunc) error {
	toolMsgs := make([]relay.Message, 0, len(run.SubmittedToolOutputs))
	for _, out := range run.SubmittedToolOutputs {
		toolMsgs = append(toolMsgs, relay.NewToolResultMessage(relay.ToolResult{
			ToolCallID: out.ToolCallID,
			Content:    out.Output,
		}))
	}
	if err := e.messages.AppendMessages(ctx, threadID, toolMsgs...); err != nil {
		return err
	}
	req.Messages = append(req.Messages, toolMsgs...)
	run.SubmittedToolOutputs = nil

	resp, err := e.provider.GenerateResponse(ctx, req, run.ID)
	if err != nil {
		return err
	}
	if err := e.messages.AppendMessages(ctx, threadID, assistantTextMessage(resp)); err != nil {
		return err
	}
	return e.transition(ctx, threadID, run, relay.RunStatusCompleted, emit)
}

// transition applies the state change, persists it, and emits a snapshot.
// A failed put rolls the in-memory state back so the caller can still fail
// the run from its pre-transition status.
func (e *Engine) transition(ctx context.Context, threadID string, run *relay.Run, next relay.RunStatus, emit emitFunc) error {
	prevStatus := run.Status
	prevStarted, prevCompleted := run.StartedAt, run.CompletedAt
	if err := run.Transition(next); err != nil {
		return err
	}
	if err := e.runs.PutRun(ctx, threadID, run); err != nil {
		run.Status = prevStatus
		run.StartedAt, run.CompletedAt = prevStarted, prevCompleted
		return err
	}
	e.logger.Debug("run transition", "run_id", run.ID, "thread_id", threadID, "status", next)
	if emit != nil {
		if evType, ok := relay.EventForStatus(next); ok {
			emit(relay.RunExecutionEvent{Type: evType, Run: run.Clone()})
		}
	}
	return nil
}

// fail records err on the run and persists the failed state. The failure is
// part of the run's result, not an error of the engine, so the run is
// returned with a nil error unless persisting itself broke.
func (e *Engine) fail(ctx context.Context, threadID string, run *relay.Run, cause error, emit emitFunc) (*relay.Run, error) {
	if errors.Is(cause, context.Canceled) && ctx.Err() != nil {
		// Consumer gave up mid-step. Leave the run as the store has it.
		return run, nil
	}

	e.logger.Error("run failed", "run_id", run.ID, "thread_id", threadID, "error", cause)
	run.RequiredToolActions = nil
	if err := run.Fail(cause); err != nil {
		return nil, err
	}
	if err := e.runs.PutRun(ctx, threadID, run); err != nil {
		return nil, err
	}
	if emit != nil {
		emit(relay.RunExecutionEvent{Type: relay.RunEventFailed, Run: run.Clone()})
	}
	return run, nil
}

func (e *Engine) buildRequest(run *relay.Run, history []relay.Message) relay.Request {
	msgs := history
	if run.Instructions != "" {
		msgs = append([]relay.Message{{Role: relay.RoleSystem, Content: run.Instructions}}, history...)
	}
	return relay.Request{
		Model:    run.Model,
		Messages: msgs,
		Tools:    run.Tools,
	}
}

// allRegistered reports whether every call has a locally executable handler.
func (e *Engine) allRegistered(calls []relay.ToolCall) bool {
	if e.registry == nil {
		return false
	}
	for _, call := range calls {
		if _, ok := e.registry.Get(call.Name); !ok {
			return false
		}
		if e.registry.IsExternal(call.Name) {
			return false
		}
	}
	return true
}

func assistantTextMessage(resp *relay.Response) relay.Message {
	return relay.Message{
		ID:      relay.NewMessageID(),
		Role:    relay.RoleAssistant,
		Content: resp.FirstMessage().Content,
	}
}

func assistantToolCallMessage(resp *relay.Response, calls []relay.ToolCall) relay.Message {
	msg := relay.Message{
		ID:        relay.NewMessageID(),
		Role:      relay.RoleAssistant,
		Content:   resp.FirstMessage().Content,
		ToolCalls: calls,
	}
	for _, call := range calls {
		msg.Parts = append(msg.Parts, relay.NewToolCallPart(call))
	}
	return msg
}
