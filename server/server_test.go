package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayforge/relay"
	"github.com/relayforge/relay/engine"
	"github.com/relayforge/relay/provider"
	"github.com/relayforge/relay/store"
	"github.com/relayforge/relay/tool"
)

type turn struct {
	resp *relay.Response
	err  error
}

type mockProvider struct {
	mu        sync.Mutex
	withTools []turn
	plain     []turn
	healthy   bool
	healthErr string
}

func (m *mockProvider) GenerateResponse(context.Context, relay.Request, string) (*relay.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.plain) == 0 {
		return textResponse(""), nil
	}
	t := m.plain[0]
	m.plain = m.plain[1:]
	return t.resp, t.err
}

func (m *mockProvider) GenerateWithTools(context.Context, relay.Request, string) (*relay.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.withTools) == 0 {
		return textResponse(""), nil
	}
	t := m.withTools[0]
	m.withTools = m.withTools[1:]
	return t.resp, t.err
}

func (m *mockProvider) HealthCheck(context.Context) provider.Health {
	return provider.Health{Healthy: m.healthy, Error: m.healthErr}
}

func textResponse(content string) *relay.Response {
	return &relay.Response{Choices: []relay.Choice{
		{Message: relay.ResponseMessage{Content: content}, FinishReason: "stop"},
	}}
}

func toolCallResponse(calls ...relay.ToolCall) *relay.Response {
	return &relay.Response{Choices: []relay.Choice{
		{Message: relay.ResponseMessage{ToolCalls: calls}, FinishReason: "tool_calls"},
	}}
}

func newTestServer(t *testing.T, p *mockProvider) (*Server, *store.Memory) {
	t.Helper()
	s := store.NewMemory()
	logger := slog.New(slog.DiscardHandler)
	eng := engine.New(s, s, p, tool.NewRegistry(), engine.WithLogger(logger))
	srv := New(s, eng, p, WithLogger(logger))
	srv.Echo().Logger.SetOutput(io.Discard)
	return srv, s
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func decodeRun(t *testing.T, rec *httptest.ResponseRecorder) *relay.Run {
	t.Helper()
	var run relay.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	return &run
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error
}

// seedThreadAndRun creates a thread with one user message and a queued run.
func seedThreadAndRun(t *testing.T, s *store.Memory, tools []relay.Tool) (*relay.Thread, *relay.Run) {
	t.Helper()
	ctx := context.Background()
	th := relay.NewThread()
	require.NoError(t, s.CreateThread(ctx, th))
	require.NoError(t, s.AppendMessages(ctx, th.ID, relay.Message{Role: relay.RoleUser, Content: "Hello"}))
	run := relay.NewRun(th.ID, "")
	run.Tools = tools
	require.NoError(t, s.PutRun(ctx, th.ID, run))
	return th, run
}

func TestThreadLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, &mockProvider{})

	rec := doRequest(srv, http.MethodPost, "/threads", `{"metadata":{"owner":"alice"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var th relay.Thread
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &th))
	assert.NotEmpty(t, th.ID)
	assert.Equal(t, "alice", th.Metadata["owner"])

	rec = doRequest(srv, http.MethodGet, "/threads/"+th.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/threads/thread-missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, relay.CodeThreadNotFound, decodeError(t, rec).Code)
}

func TestMessageEndpoints(t *testing.T) {
	srv, s := newTestServer(t, &mockProvider{})
	th := relay.NewThread()
	require.NoError(t, s.CreateThread(context.Background(), th))

	t.Run("append and list", func(t *testing.T) {
		rec := doRequest(srv, http.MethodPost, "/threads/"+th.ID+"/messages", `{"role":"user","content":"Hello"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doRequest(srv, http.MethodGet, "/threads/"+th.ID+"/messages", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Data []relay.Message `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Data, 1)
		assert.Equal(t, "Hello", body.Data[0].Content)
	})

	t.Run("content required", func(t *testing.T) {
		rec := doRequest(srv, http.MethodPost, "/threads/"+th.ID+"/messages", `{"role":"user"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, relay.CodeInvalidRequest, decodeError(t, rec).Code)
	})

	t.Run("missing thread", func(t *testing.T) {
		rec := doRequest(srv, http.MethodPost, "/threads/thread-missing/messages", `{"content":"hi"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCreateRun(t *testing.T) {
	srv, s := newTestServer(t, &mockProvider{})
	th := relay.NewThread()
	require.NoError(t, s.CreateThread(context.Background(), th))

	rec := doRequest(srv, http.MethodPost, "/threads/"+th.ID+"/runs",
		`{"model":"test-model","instructions":"Be nice.","tools":[{"name":"get_weather"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	run := decodeRun(t, rec)
	assert.Equal(t, relay.RunStatusQueued, run.Status)
	assert.Equal(t, "test-model", run.Model)
	require.Len(t, run.Tools, 1)

	rec = doRequest(srv, http.MethodPost, "/threads/thread-missing/runs", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExecuteRunSync(t *testing.T) {
	p := &mockProvider{withTools: []turn{{resp: textResponse("Hi there!")}}}
	srv, s := newTestServer(t, p)
	th, run := seedThreadAndRun(t, s, nil)

	rec := doRequest(srv, http.MethodPost, "/threads/"+th.ID+"/runs/"+run.ID+"/execute", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, relay.RunStatusCompleted, decodeRun(t, rec).Status)
}

func TestExecuteRunSyncFailureIsStill200(t *testing.T) {
	p := &mockProvider{withTools: []turn{{err: relay.NewProviderError("boom", 500, nil)}}}
	srv, s := newTestServer(t, p)
	th, run := seedThreadAndRun(t, s, nil)

	rec := doRequest(srv, http.MethodPost, "/threads/"+th.ID+"/runs/"+run.ID+"/execute", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeRun(t, rec)
	assert.Equal(t, relay.RunStatusFailed, got.Status)
	require.NotNil(t, got.LastError)
	assert.Equal(t, relay.CodeProviderError, got.LastError.Code)
}

func TestExecuteRunNotFound(t *testing.T) {
	srv, s := newTestServer(t, &mockProvider{})
	th := relay.NewThread()
	require.NoError(t, s.CreateThread(context.Background(), th))

	rec := doRequest(srv, http.MethodPost, "/threads/"+th.ID+"/runs/run-missing/execute", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, relay.CodeRunNotFound, decodeError(t, rec).Code)
}

func TestExecuteRunStreamSSE(t *testing.T) {
	p := &mockProvider{withTools: []turn{{resp: textResponse("Hi there!")}}}
	srv, s := newTestServer(t, p)
	th, run := seedThreadAndRun(t, s, nil)

	rec := doRequest(srv, http.MethodPost, "/threads/"+th.ID+"/runs/"+run.ID+"/execute?stream=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: run.created\n")
	assert.Contains(t, body, "event: run.in_progress\n")
	assert.Contains(t, body, "event: run.completed\n")
	assert.True(t, rec.Flushed)
}

func TestExecuteRunStreamJSONLines(t *testing.T) {
	p := &mockProvider{withTools: []turn{{resp: textResponse("Hi there!")}}}
	srv, s := newTestServer(t, p)
	th, run := seedThreadAndRun(t, s, nil)

	rec := doRequest(srv, http.MethodPost,
		"/threads/"+th.ID+"/runs/"+run.ID+"/execute?stream=true&encoding=jsonl", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	var ev relay.RunExecutionEvent
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &ev))
	assert.Equal(t, relay.RunEventCompleted, ev.Type)
}

func TestExecuteRunStreamNotFound(t *testing.T) {
	srv, s := newTestServer(t, &mockProvider{})
	th := relay.NewThread()
	require.NoError(t, s.CreateThread(context.Background(), th))

	rec := doRequest(srv, http.MethodPost, "/threads/"+th.ID+"/runs/run-missing/execute?stream=true", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToolOutputFlow(t *testing.T) {
	weather := relay.Tool{Name: "get_weather", Parameters: []byte(`{"type":"object"}`)}
	p := &mockProvider{
		withTools: []turn{{resp: toolCallResponse(
			relay.ToolCall{ID: "c1", Name: "get_weather", Arguments: `{"location":"Paris"}`},
		)}},
		plain: []turn{{resp: textResponse("21C and sunny.")}},
	}
	srv, s := newTestServer(t, p)
	th, run := seedThreadAndRun(t, s, []relay.Tool{weather})
	base := "/threads/" + th.ID + "/runs/" + run.ID

	rec := doRequest(srv, http.MethodPost, base+"/execute", "")
	require.Equal(t, http.StatusOK, rec.Code)
	paused := decodeRun(t, rec)
	require.Equal(t, relay.RunStatusRequiresToolActions, paused.Status)
	require.Len(t, paused.RequiredToolActions, 1)

	// Partial submissions bounce with 400 and leave the run paused.
	rec = doRequest(srv, http.MethodPost, base+"/submit_tool_outputs", `{"tool_outputs":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, relay.CodeMissingToolOutputs, decodeError(t, rec).Code)

	rec = doRequest(srv, http.MethodPost, base+"/submit_tool_outputs",
		`{"tool_outputs":[{"tool_call_id":"c1","output":"{\"temp\":21}"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, relay.RunStatusInProgress, decodeRun(t, rec).Status)

	rec = doRequest(srv, http.MethodPost, base+"/execute", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, relay.RunStatusCompleted, decodeRun(t, rec).Status)
}

func TestCancelRun(t *testing.T) {
	srv, s := newTestServer(t, &mockProvider{})
	th, run := seedThreadAndRun(t, s, nil)

	rec := doRequest(srv, http.MethodPost, "/threads/"+th.ID+"/runs/"+run.ID+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, relay.RunStatusCancelled, decodeRun(t, rec).Status)
}

func TestListRuns(t *testing.T) {
	srv, s := newTestServer(t, &mockProvider{})
	th, run := seedThreadAndRun(t, s, nil)

	rec := doRequest(srv, http.MethodGet, "/threads/"+th.ID+"/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []*relay.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, run.ID, body.Data[0].ID)
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv, _ := newTestServer(t, &mockProvider{healthy: true})
		rec := doRequest(srv, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unhealthy", func(t *testing.T) {
		srv, _ := newTestServer(t, &mockProvider{healthy: false, healthErr: "api key rejected"})
		rec := doRequest(srv, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var h provider.Health
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
		assert.Equal(t, "api key rejected", h.Error)
	})
}
