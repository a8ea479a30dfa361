package relay

import (
	"fmt"
	"time"
)

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	RunStatusQueued              RunStatus = "queued"
	RunStatusInProgress          RunStatus = "in_progress"
	RunStatusRequiresToolActions RunStatus = "requires_tool_actions"
	RunStatusCompleted           RunStatus = "completed"
	RunStatusFailed              RunStatus = "failed"
	RunStatusCancelled           RunStatus = "cancelled"
)

// Terminal returns true for states with no outgoing transitions.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// legalTransitions is the complete transition table. Any transition not
// listed here is rejected.
var legalTransitions = map[RunStatus][]RunStatus{
	RunStatusQueued:              {RunStatusInProgress, RunStatusCancelled},
	RunStatusInProgress:          {RunStatusRequiresToolActions, RunStatusCompleted, RunStatusFailed, RunStatusCancelled},
	RunStatusRequiresToolActions: {RunStatusInProgress, RunStatusCancelled},
}

// CanTransition returns true if the table permits moving from s to next.
func (s RunStatus) CanTransition(next RunStatus) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RunError is the persisted failure detail on a run. Set iff the run status
// is failed.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Run is one execution attempt of an assistant against a thread's message
// history. Runs are created queued by the entity layer and mutated
// exclusively by the execution engine thereafter, except for cancellation,
// which an external cancel operation may apply directly.
type Run struct {
	ID          string `json:"id"`
	ThreadID    string `json:"thread_id"`
	AssistantID string `json:"assistant_id,omitempty"`

	Status RunStatus `json:"status"`

	// RequiredToolActions lists pending tool invocations, in provider
	// response order. Invariant: non-empty iff Status is
	// requires_tool_actions.
	RequiredToolActions []RequiredToolAction `json:"required_tool_actions,omitempty"`

	// SubmittedToolOutputs holds outputs accepted by a tool-output
	// submission that the next execution step has not yet consumed.
	SubmittedToolOutputs []ToolOutput `json:"submitted_tool_outputs,omitempty"`

	// LastError is set iff Status is failed.
	LastError *RunError `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	// StartedAt is set once, on first entry to in_progress.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is set once, on entering any terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Model        string            `json:"model,omitempty"`
	Instructions string            `json:"instructions,omitempty"`
	// Tools are the declared tool schemas available to this run.
	Tools    []Tool            `json:"tools,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewRun creates a run in the queued state.
func NewRun(threadID, assistantID string) *Run {
	return &Run{
		ID:          NewRunID(),
		ThreadID:    threadID,
		AssistantID: assistantID,
		Status:      RunStatusQueued,
		CreatedAt:   time.Now().UTC(),
	}
}

// Transition moves the run to next, enforcing the legal-transition table
// and maintaining timestamps. It does not touch RequiredToolActions or
// LastError; callers set those alongside the matching transition (see
// Validate for the invariants).
func (r *Run) Transition(next RunStatus) error {
	if !r.Status.CanTransition(next) {
		return &Error{
			Kind: KindExecution,
			Code: CodeInvalidTransition,
			Msg:  fmt.Sprintf("illegal run transition %s -> %s", r.Status, next),
		}
	}

	now := time.Now().UTC()
	if next == RunStatusInProgress && r.StartedAt == nil {
		r.StartedAt = &now
	}
	if next.Terminal() && r.CompletedAt == nil {
		r.CompletedAt = &now
	}

	r.Status = next
	return nil
}

// Fail transitions the run to failed and records err as LastError.
func (r *Run) Fail(err error) error {
	if terr := r.Transition(RunStatusFailed); terr != nil {
		return terr
	}
	r.LastError = &RunError{Code: CodeOf(err), Message: err.Error()}
	return nil
}

// Validate checks the run's structural invariants. It is called after every
// persisted transition in tests.
func (r *Run) Validate() error {
	hasActions := len(r.RequiredToolActions) > 0
	if hasActions != (r.Status == RunStatusRequiresToolActions) {
		return NewExecutionError(fmt.Sprintf(
			"run %s: required_tool_actions non-empty (%v) does not match status %s",
			r.ID, hasActions, r.Status), nil)
	}
	if (r.LastError != nil) != (r.Status == RunStatusFailed) {
		return NewExecutionError(fmt.Sprintf(
			"run %s: last_error set (%v) does not match status %s",
			r.ID, r.LastError != nil, r.Status), nil)
	}
	return nil
}

// Clone returns a deep copy of the run, used for event snapshots so later
// mutations do not leak into already-emitted events.
func (r *Run) Clone() *Run {
	c := *r
	if r.RequiredToolActions != nil {
		c.RequiredToolActions = make([]RequiredToolAction, len(r.RequiredToolActions))
		copy(c.RequiredToolActions, r.RequiredToolActions)
	}
	if r.SubmittedToolOutputs != nil {
		c.SubmittedToolOutputs = make([]ToolOutput, len(r.SubmittedToolOutputs))
		copy(c.SubmittedToolOutputs, r.SubmittedToolOutputs)
	}
	if r.LastError != nil {
		le := *r.LastError
		c.LastError = &le
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	if r.Tools != nil {
		c.Tools = make([]Tool, len(r.Tools))
		copy(c.Tools, r.Tools)
	}
	if r.Metadata != nil {
		c.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// RunEventType identifies the kind of run execution event.
type RunEventType string

const (
	RunEventCreated             RunEventType = "run.created"
	RunEventInProgress          RunEventType = "run.in_progress"
	RunEventRequiresToolActions RunEventType = "run.requires_tool_actions"
	RunEventCompleted           RunEventType = "run.completed"
	RunEventFailed              RunEventType = "run.failed"
	RunEventCancelled           RunEventType = "run.cancelled"
)

// Terminal returns true for event types that end a streamed execution.
func (t RunEventType) Terminal() bool {
	switch t {
	case RunEventCompleted, RunEventFailed, RunEventCancelled:
		return true
	}
	return false
}

// RunExecutionEvent is the unit emitted by the streaming execution path.
// Each event carries a snapshot of the run at the moment of the transition.
type RunExecutionEvent struct {
	Type RunEventType `json:"type"`
	Run  *Run         `json:"run"`
}

// eventTypeFor maps a run status to its execution event type.
var eventTypeFor = map[RunStatus]RunEventType{
	RunStatusInProgress:          RunEventInProgress,
	RunStatusRequiresToolActions: RunEventRequiresToolActions,
	RunStatusCompleted:           RunEventCompleted,
	RunStatusFailed:              RunEventFailed,
	RunStatusCancelled:           RunEventCancelled,
}

// EventForStatus returns the execution event type for a run status.
// The created event has no corresponding status; it marks stream start.
func EventForStatus(s RunStatus) (RunEventType, bool) {
	t, ok := eventTypeFor[s]
	return t, ok
}
