package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayforge/relay"
)

func TestMemoryRuns(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	run := relay.NewRun("thread-1", "asst-1")
	require.NoError(t, s.PutRun(ctx, "thread-1", run))

	got, err := s.GetRun(ctx, "thread-1", run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, relay.RunStatusQueued, got.Status)

	// Mutating the returned copy must not affect stored state.
	got.Status = relay.RunStatusCompleted
	again, err := s.GetRun(ctx, "thread-1", run.ID)
	require.NoError(t, err)
	assert.Equal(t, relay.RunStatusQueued, again.Status)

	ok, err := s.RunExists(ctx, "thread-1", run.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.RunExists(ctx, "thread-1", "run-missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryGetRunNotFound(t *testing.T) {
	s := NewMemory()

	_, err := s.GetRun(context.Background(), "thread-1", "run-missing")
	require.Error(t, err)
	assert.Equal(t, relay.CodeRunNotFound, relay.CodeOf(err))
	assert.Equal(t, relay.KindNotFound, relay.KindOf(err))
}

func TestMemoryListRunsOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	first := relay.NewRun("thread-1", "")
	second := relay.NewRun("thread-1", "")
	require.NoError(t, s.PutRun(ctx, "thread-1", first))
	require.NoError(t, s.PutRun(ctx, "thread-1", second))

	// Re-putting must not change position.
	require.NoError(t, first.Transition(relay.RunStatusInProgress))
	require.NoError(t, s.PutRun(ctx, "thread-1", first))

	runs, err := s.ListRuns(ctx, "thread-1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first.ID, runs[0].ID)
	assert.Equal(t, relay.RunStatusInProgress, runs[0].Status)
	assert.Equal(t, second.ID, runs[1].ID)
}

func TestMemoryMessages(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	msgs, err := s.Messages(ctx, "thread-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, s.AppendMessages(ctx, "thread-1",
		relay.Message{Role: relay.RoleUser, Content: "Hello"},
	))
	require.NoError(t, s.AppendMessages(ctx, "thread-1",
		relay.Message{Role: relay.RoleAssistant, Content: "Hi"},
	))

	msgs, err = s.Messages(ctx, "thread-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, relay.RoleUser, msgs[0].Role)
	assert.Equal(t, relay.RoleAssistant, msgs[1].Role)
}

func TestMemoryThreads(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	th := relay.NewThread()
	require.NoError(t, s.CreateThread(ctx, th))

	got, err := s.GetThread(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, th.ID, got.ID)

	ok, err := s.ThreadExists(ctx, th.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.GetThread(ctx, "thread-missing")
	require.Error(t, err)
	assert.Equal(t, relay.CodeThreadNotFound, relay.CodeOf(err))
}
