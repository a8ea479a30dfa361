package sqlite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayforge/relay"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	run := relay.NewRun("thread-1", "asst-1")
	run.Model = "gpt-4o"
	run.Instructions = "Be concise."
	run.Tools = []relay.Tool{{Name: "get_weather", Parameters: json.RawMessage(`{"type":"object"}`)}}
	run.Metadata = map[string]string{"source": "test"}
	require.NoError(t, s.PutRun(ctx, "thread-1", run))

	got, err := s.GetRun(ctx, "thread-1", run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "thread-1", got.ThreadID)
	assert.Equal(t, relay.RunStatusQueued, got.Status)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, "Be concise.", got.Instructions)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "get_weather", got.Tools[0].Name)
	assert.Equal(t, map[string]string{"source": "test"}, got.Metadata)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
	assert.Nil(t, got.LastError)
}

func TestRunUpdatePreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := relay.NewRun("thread-1", "")
	second := relay.NewRun("thread-1", "")
	require.NoError(t, s.PutRun(ctx, "thread-1", first))
	require.NoError(t, s.PutRun(ctx, "thread-1", second))

	require.NoError(t, first.Transition(relay.RunStatusInProgress))
	first.RequiredToolActions = []relay.RequiredToolAction{
		{ToolCallID: "c1", Name: "get_weather", Arguments: json.RawMessage(`{"location":"Paris"}`)},
	}
	require.NoError(t, first.Transition(relay.RunStatusRequiresToolActions))
	require.NoError(t, s.PutRun(ctx, "thread-1", first))

	runs, err := s.ListRuns(ctx, "thread-1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first.ID, runs[0].ID)
	assert.Equal(t, relay.RunStatusRequiresToolActions, runs[0].Status)
	require.Len(t, runs[0].RequiredToolActions, 1)
	assert.Equal(t, "c1", runs[0].RequiredToolActions[0].ToolCallID)
	require.NotNil(t, runs[0].StartedAt)
	assert.Equal(t, second.ID, runs[1].ID)
}

func TestRunFailureRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	run := relay.NewRun("thread-1", "")
	require.NoError(t, run.Transition(relay.RunStatusInProgress))
	require.NoError(t, run.Fail(relay.NewProviderError("upstream exploded", 500, nil)))
	require.NoError(t, s.PutRun(ctx, "thread-1", run))

	got, err := s.GetRun(ctx, "thread-1", run.ID)
	require.NoError(t, err)
	assert.Equal(t, relay.RunStatusFailed, got.Status)
	require.NotNil(t, got.LastError)
	assert.Equal(t, relay.CodeProviderError, got.LastError.Code)
	require.NotNil(t, got.CompletedAt)
	require.NoError(t, got.Validate())
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "thread-1", "run-missing")
	require.Error(t, err)
	assert.Equal(t, relay.CodeRunNotFound, relay.CodeOf(err))

	ok, err := s.RunExists(context.Background(), "thread-1", "run-missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMessagesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.AppendMessages(ctx, "thread-1",
		relay.Message{ID: relay.NewMessageID(), Role: relay.RoleUser, Content: "Hello"},
		relay.Message{
			Role: relay.RoleAssistant,
			ToolCalls: []relay.ToolCall{
				{ID: "c1", Name: "get_weather", Arguments: `{"location":"Paris"}`},
			},
			Parts: []relay.ContentPart{
				relay.NewToolCallPart(relay.ToolCall{ID: "c1", Name: "get_weather", Arguments: `{"location":"Paris"}`}),
			},
		},
	))

	msgs, err := s.Messages(ctx, "thread-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello", msgs[0].Content)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, "c1", msgs[1].ToolCalls[0].ID)
	require.Len(t, msgs[1].Parts, 1)
	assert.Equal(t, relay.ContentPartTypeToolCall, msgs[1].Parts[0].Type)
}

func TestThreadsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	th := relay.NewThread()
	th.Metadata = map[string]string{"owner": "alice"}
	require.NoError(t, s.CreateThread(ctx, th))

	got, err := s.GetThread(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, th.ID, got.ID)
	assert.Equal(t, map[string]string{"owner": "alice"}, got.Metadata)

	ok, err := s.ThreadExists(ctx, th.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.GetThread(ctx, "thread-missing")
	require.Error(t, err)
	assert.Equal(t, relay.CodeThreadNotFound, relay.CodeOf(err))
}
