// Package server exposes the run execution engine over HTTP using echo.
// Errors surface as {"error":{"code","message"}} envelopes; a run that ends
// failed is a successful response carrying the failed run body.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/relayforge/relay"
	"github.com/relayforge/relay/engine"
	"github.com/relayforge/relay/provider"
	"github.com/relayforge/relay/store"
	"github.com/relayforge/relay/stream"
)

// Server wires the stores, engine, and provider behind HTTP routes.
type Server struct {
	echo     *echo.Echo
	store    store.Store
	engine   *engine.Engine
	provider provider.Provider
	logger   *slog.Logger

	heartbeat   time.Duration
	maxDuration time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreamHeartbeat overrides the streaming keepalive interval.
func WithStreamHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		s.heartbeat = d
	}
}

// WithStreamMaxDuration caps streamed executions' wall-clock lifetime.
func WithStreamMaxDuration(d time.Duration) Option {
	return func(s *Server) {
		s.maxDuration = d
	}
}

// New creates the server and registers all routes.
func New(st store.Store, eng *engine.Engine, p provider.Provider, opts ...Option) *Server {
	s := &Server{
		store:     st,
		engine:    eng,
		provider:  p,
		logger:    slog.Default(),
		heartbeat: stream.DefaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s.echo = e
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo

	e.GET("/health", s.Health)

	e.POST("/threads", s.CreateThread)
	e.GET("/threads/:thread_id", s.GetThread)
	e.POST("/threads/:thread_id/messages", s.CreateMessage)
	e.GET("/threads/:thread_id/messages", s.ListMessages)

	e.POST("/threads/:thread_id/runs", s.CreateRun)
	e.GET("/threads/:thread_id/runs", s.ListRuns)
	e.GET("/threads/:thread_id/runs/:run_id", s.GetRun)
	e.POST("/threads/:thread_id/runs/:run_id/execute", s.ExecuteRun)
	e.POST("/threads/:thread_id/runs/:run_id/submit_tool_outputs", s.SubmitToolOutputs)
	e.POST("/threads/:thread_id/runs/:run_id/cancel", s.CancelRun)
}

// Echo exposes the underlying router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Health reports provider reachability.
func (s *Server) Health(c echo.Context) error {
	h := s.provider.HealthCheck(c.Request().Context())
	status := http.StatusOK
	if !h.Healthy {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, h)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// errorJSON renders err as the error envelope with the taxonomy's status.
func errorJSON(c echo.Context, err error) error {
	return c.JSON(relay.HTTPStatus(err), errorEnvelope{Error: errorBody{
		Code:    relay.CodeOf(err),
		Message: err.Error(),
	}})
}

func bindError(what string, err error) error {
	return relay.NewValidationError(relay.CodeInvalidRequest,
		fmt.Sprintf("invalid %s body: %v", what, err))
}
