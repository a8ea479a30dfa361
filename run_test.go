package relay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatusCanTransition(t *testing.T) {
	all := []RunStatus{
		RunStatusQueued, RunStatusInProgress, RunStatusRequiresToolActions,
		RunStatusCompleted, RunStatusFailed, RunStatusCancelled,
	}

	legal := map[RunStatus][]RunStatus{
		RunStatusQueued:              {RunStatusInProgress, RunStatusCancelled},
		RunStatusInProgress:          {RunStatusRequiresToolActions, RunStatusCompleted, RunStatusFailed, RunStatusCancelled},
		RunStatusRequiresToolActions: {RunStatusInProgress, RunStatusCancelled},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, allowed := range legal[from] {
				if allowed == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestRunTransition(t *testing.T) {
	t.Run("sets started_at once on first in_progress", func(t *testing.T) {
		run := NewRun("thread-1", "asst-1")
		require.NoError(t, run.Transition(RunStatusInProgress))
		require.NotNil(t, run.StartedAt)

		first := *run.StartedAt
		run.RequiredToolActions = []RequiredToolAction{{ToolCallID: "c1", Name: "t"}}
		require.NoError(t, run.Transition(RunStatusRequiresToolActions))
		run.RequiredToolActions = nil
		require.NoError(t, run.Transition(RunStatusInProgress))

		assert.Equal(t, first, *run.StartedAt)
	})

	t.Run("sets completed_at on terminal entry", func(t *testing.T) {
		run := NewRun("thread-1", "asst-1")
		require.NoError(t, run.Transition(RunStatusInProgress))
		assert.Nil(t, run.CompletedAt)
		require.NoError(t, run.Transition(RunStatusCompleted))
		assert.NotNil(t, run.CompletedAt)
	})

	t.Run("rejects illegal transition", func(t *testing.T) {
		run := NewRun("thread-1", "asst-1")
		err := run.Transition(RunStatusCompleted)
		require.Error(t, err)

		var e *Error
		require.True(t, errors.As(err, &e))
		assert.Equal(t, CodeInvalidTransition, e.Code)
		assert.Equal(t, RunStatusQueued, run.Status)
	})

	t.Run("terminal states have no outgoing transitions", func(t *testing.T) {
		for _, s := range []RunStatus{RunStatusCompleted, RunStatusFailed, RunStatusCancelled} {
			run := &Run{Status: s}
			for _, next := range []RunStatus{
				RunStatusQueued, RunStatusInProgress, RunStatusRequiresToolActions,
				RunStatusCompleted, RunStatusFailed, RunStatusCancelled,
			} {
				assert.Error(t, run.Transition(next), "%s -> %s", s, next)
			}
		}
	})
}

func TestRunFail(t *testing.T) {
	run := NewRun("thread-1", "asst-1")
	require.NoError(t, run.Transition(RunStatusInProgress))
	require.NoError(t, run.Fail(NewProviderError("upstream exploded", 502, nil)))

	assert.Equal(t, RunStatusFailed, run.Status)
	require.NotNil(t, run.LastError)
	assert.Equal(t, CodeProviderError, run.LastError.Code)
	assert.NoError(t, run.Validate())
}

func TestRunValidate(t *testing.T) {
	t.Run("required actions iff requires_tool_actions", func(t *testing.T) {
		run := NewRun("thread-1", "asst-1")
		require.NoError(t, run.Transition(RunStatusInProgress))
		assert.NoError(t, run.Validate())

		run.RequiredToolActions = []RequiredToolAction{{ToolCallID: "c1", Name: "t"}}
		assert.Error(t, run.Validate(), "actions set while in_progress")

		require.NoError(t, run.Transition(RunStatusRequiresToolActions))
		assert.NoError(t, run.Validate())

		run.RequiredToolActions = nil
		assert.Error(t, run.Validate(), "no actions while requires_tool_actions")
	})

	t.Run("last_error iff failed", func(t *testing.T) {
		run := NewRun("thread-1", "asst-1")
		run.LastError = &RunError{Code: CodeExecutionError, Message: "boom"}
		assert.Error(t, run.Validate())
	})
}

func TestRunClone(t *testing.T) {
	run := NewRun("thread-1", "asst-1")
	require.NoError(t, run.Transition(RunStatusInProgress))
	run.RequiredToolActions = []RequiredToolAction{{ToolCallID: "c1", Name: "get_weather"}}
	require.NoError(t, run.Transition(RunStatusRequiresToolActions))

	snap := run.Clone()
	run.RequiredToolActions[0].Name = "mutated"
	run.RequiredToolActions = nil

	require.Len(t, snap.RequiredToolActions, 1)
	assert.Equal(t, "get_weather", snap.RequiredToolActions[0].Name)
}

func TestEventForStatus(t *testing.T) {
	tests := []struct {
		status RunStatus
		want   RunEventType
	}{
		{RunStatusInProgress, RunEventInProgress},
		{RunStatusRequiresToolActions, RunEventRequiresToolActions},
		{RunStatusCompleted, RunEventCompleted},
		{RunStatusFailed, RunEventFailed},
		{RunStatusCancelled, RunEventCancelled},
	}
	for _, tt := range tests {
		got, ok := EventForStatus(tt.status)
		require.True(t, ok)
		assert.Equal(t, tt.want, got)
	}

	_, ok := EventForStatus(RunStatusQueued)
	assert.False(t, ok)
}
