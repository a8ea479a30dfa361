package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/relayforge/relay"
	"github.com/relayforge/relay/stream"
)

type createRunRequest struct {
	AssistantID  string            `json:"assistant_id,omitempty"`
	Model        string            `json:"model,omitempty"`
	Instructions string            `json:"instructions,omitempty"`
	Tools        []relay.Tool      `json:"tools,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// CreateRun creates a run in the queued state. Execution is a separate call.
// POST /threads/:thread_id/runs
func (s *Server) CreateRun(c echo.Context) error {
	ctx := c.Request().Context()
	threadID := c.Param("thread_id")

	var req createRunRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, bindError("run", err))
	}
	if err := s.requireThread(ctx, threadID); err != nil {
		return errorJSON(c, err)
	}

	run := relay.NewRun(threadID, req.AssistantID)
	run.Model = req.Model
	run.Instructions = req.Instructions
	run.Tools = req.Tools
	run.Metadata = req.Metadata
	if err := s.store.PutRun(ctx, threadID, run); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, run)
}

// GetRun returns a run by id.
// GET /threads/:thread_id/runs/:run_id
func (s *Server) GetRun(c echo.Context) error {
	run, err := s.store.GetRun(c.Request().Context(), c.Param("thread_id"), c.Param("run_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, run)
}

// ListRuns returns a thread's runs in creation order.
// GET /threads/:thread_id/runs
func (s *Server) ListRuns(c echo.Context) error {
	ctx := c.Request().Context()
	threadID := c.Param("thread_id")

	if err := s.requireThread(ctx, threadID); err != nil {
		return errorJSON(c, err)
	}
	runs, err := s.store.ListRuns(ctx, threadID)
	if err != nil {
		return errorJSON(c, err)
	}
	if runs == nil {
		runs = []*relay.Run{}
	}
	return c.JSON(http.StatusOK, map[string]any{"data": runs})
}

// ExecuteRun executes a run to its next pause or terminal state. With
// ?stream=true the transitions are streamed live; otherwise the final run
// is returned once execution settles. A run that ends failed is still a
// 200: the failure lives on the run, not the transport.
// POST /threads/:thread_id/runs/:run_id/execute
func (s *Server) ExecuteRun(c echo.Context) error {
	ctx := c.Request().Context()
	threadID := c.Param("thread_id")
	runID := c.Param("run_id")

	if c.QueryParam("stream") == "true" {
		return s.executeStreaming(c, threadID, runID)
	}

	run, err := s.engine.ExecuteRun(ctx, threadID, runID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) executeStreaming(c echo.Context, threadID, runID string) error {
	ctx := c.Request().Context()

	// Validate before committing to stream headers.
	ok, err := s.store.RunExists(ctx, threadID, runID)
	if err != nil {
		return errorJSON(c, err)
	}
	if !ok {
		return errorJSON(c, relay.NewNotFoundError(relay.CodeRunNotFound, "run "+runID+" not found"))
	}

	encoding := stream.ParseEncoding(c.QueryParam("encoding"))
	streamer := stream.New(
		stream.WithEncoding(encoding),
		stream.WithHeartbeatInterval(s.heartbeat),
		stream.WithMaxDuration(s.maxDuration),
		stream.WithLogger(s.logger),
	)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, encoding.ContentType())
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	src := s.engine.StreamRunExecution(ctx, threadID, runID)
	if err := streamer.Stream(ctx, resp, src); err != nil {
		// Headers are out; all we can do is log and drop the connection.
		s.logger.Error("run stream aborted", "run_id", runID, "error", err)
	}
	if err := src.Err(); err != nil {
		s.logger.Error("run stream source failed", "run_id", runID, "error", err)
	}
	return nil
}

type submitToolOutputsRequest struct {
	ToolOutputs []relay.ToolOutput `json:"tool_outputs"`
}

// SubmitToolOutputs resumes a paused run with caller-supplied tool outputs.
// POST /threads/:thread_id/runs/:run_id/submit_tool_outputs
func (s *Server) SubmitToolOutputs(c echo.Context) error {
	ctx := c.Request().Context()

	var req submitToolOutputsRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, bindError("tool outputs", err))
	}

	run, err := s.engine.SubmitToolOutputs(ctx, c.Param("thread_id"), c.Param("run_id"), req.ToolOutputs)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, run)
}

// CancelRun marks a run cancelled; terminal runs come back unchanged.
// POST /threads/:thread_id/runs/:run_id/cancel
func (s *Server) CancelRun(c echo.Context) error {
	run, err := s.engine.CancelRun(c.Request().Context(), c.Param("thread_id"), c.Param("run_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, run)
}
