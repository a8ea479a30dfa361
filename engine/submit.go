package engine

import (
	"context"
	"fmt"

	"github.com/relayforge/relay"
)

// SubmitToolOutputs records caller-supplied outputs for a paused run and
// moves it back to in_progress. Every pending tool call id must be covered
// exactly; extra, unknown, duplicate, or missing ids reject the whole
// submission and leave the run unchanged.
func (e *Engine) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []relay.ToolOutput) (*relay.Run, error) {
	run, err := e.runs.GetRun(ctx, threadID, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != relay.RunStatusRequiresToolActions {
		return nil, relay.NewValidationError(relay.CodeInvalidTransition,
			fmt.Sprintf("run %s is not waiting for tool outputs (status %s)", runID, run.Status))
	}

	pending := make(map[string]bool, len(run.RequiredToolActions))
	for _, action := range run.RequiredToolActions {
		pending[action.ToolCallID] = false
	}
	for _, out := range outputs {
		seen, ok := pending[out.ToolCallID]
		if !ok {
			return nil, relay.NewValidationError(relay.CodeMissingToolOutputs,
				fmt.Sprintf("tool output %s does not match a pending tool call", out.ToolCallID))
		}
		if seen {
			return nil, relay.NewValidationError(relay.CodeMissingToolOutputs,
				fmt.Sprintf("duplicate tool output for call %s", out.ToolCallID))
		}
		pending[out.ToolCallID] = true
	}
	for id, seen := range pending {
		if !seen {
			return nil, relay.NewValidationError(relay.CodeMissingToolOutputs,
				fmt.Sprintf("missing tool output for pending call %s", id))
		}
	}

	run.SubmittedToolOutputs = outputs
	run.RequiredToolActions = nil
	if err := run.Transition(relay.RunStatusInProgress); err != nil {
		return nil, err
	}
	if err := e.runs.PutRun(ctx, threadID, run); err != nil {
		return nil, err
	}
	e.logger.Info("tool outputs submitted", "run_id", runID, "thread_id", threadID, "count", len(outputs))
	return run, nil
}

// CancelRun marks a run cancelled. Terminal runs are returned unchanged.
// The cancel is soft: an executor mid-step observes it at its next
// transition boundary.
func (e *Engine) CancelRun(ctx context.Context, threadID, runID string) (*relay.Run, error) {
	run, err := e.runs.GetRun(ctx, threadID, runID)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		return run, nil
	}

	run.RequiredToolActions = nil
	if err := run.Transition(relay.RunStatusCancelled); err != nil {
		return nil, err
	}
	if err := e.runs.PutRun(ctx, threadID, run); err != nil {
		return nil, err
	}
	e.logger.Info("run cancelled", "run_id", runID, "thread_id", threadID)
	return run, nil
}
