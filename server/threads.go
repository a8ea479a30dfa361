package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/relayforge/relay"
)

type createThreadRequest struct {
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CreateThread makes an empty thread.
// POST /threads
func (s *Server) CreateThread(c echo.Context) error {
	ctx := c.Request().Context()

	var req createThreadRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, bindError("thread", err))
	}

	th := relay.NewThread()
	th.Metadata = req.Metadata
	if err := s.store.CreateThread(ctx, th); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, th)
}

// GetThread returns a thread by id.
// GET /threads/:thread_id
func (s *Server) GetThread(c echo.Context) error {
	th, err := s.store.GetThread(c.Request().Context(), c.Param("thread_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, th)
}

type createMessageRequest struct {
	Role    relay.Role `json:"role"`
	Content string     `json:"content"`
}

// CreateMessage appends a message to a thread.
// POST /threads/:thread_id/messages
func (s *Server) CreateMessage(c echo.Context) error {
	ctx := c.Request().Context()
	threadID := c.Param("thread_id")

	var req createMessageRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, bindError("message", err))
	}
	if req.Role == "" {
		req.Role = relay.RoleUser
	}
	if req.Content == "" {
		return errorJSON(c, relay.NewValidationError(relay.CodeInvalidRequest, "content is required"))
	}

	if err := s.requireThread(ctx, threadID); err != nil {
		return errorJSON(c, err)
	}

	msg := relay.Message{
		ID:      relay.NewMessageID(),
		Role:    req.Role,
		Content: req.Content,
	}
	if err := s.store.AppendMessages(ctx, threadID, msg); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// ListMessages returns a thread's history in append order.
// GET /threads/:thread_id/messages
func (s *Server) ListMessages(c echo.Context) error {
	ctx := c.Request().Context()
	threadID := c.Param("thread_id")

	if err := s.requireThread(ctx, threadID); err != nil {
		return errorJSON(c, err)
	}
	msgs, err := s.store.Messages(ctx, threadID)
	if err != nil {
		return errorJSON(c, err)
	}
	if msgs == nil {
		msgs = []relay.Message{}
	}
	return c.JSON(http.StatusOK, map[string]any{"data": msgs})
}

func (s *Server) requireThread(ctx context.Context, threadID string) error {
	ok, err := s.store.ThreadExists(ctx, threadID)
	if err != nil {
		return err
	}
	if !ok {
		return relay.NewNotFoundError(relay.CodeThreadNotFound, "thread "+threadID+" not found")
	}
	return nil
}
