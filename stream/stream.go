// Package stream turns run execution events into a live transport stream,
// either Server-Sent Events or newline-delimited JSON, with heartbeats and
// an optional wall-clock cap.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/relayforge/relay"
)

// Encoding selects the wire format of a stream.
type Encoding string

const (
	// EncodingSSE frames every event as "event: <type>\ndata: <json>\n\n".
	EncodingSSE Encoding = "sse"
	// EncodingJSONLines writes one JSON object per line.
	EncodingJSONLines Encoding = "jsonl"
)

// DefaultHeartbeatInterval keeps idle connections alive through proxies.
const DefaultHeartbeatInterval = 15 * time.Second

// ParseEncoding maps a query-string value to an Encoding. Empty or unknown
// values default to SSE.
func ParseEncoding(s string) Encoding {
	if Encoding(s) == EncodingJSONLines {
		return EncodingJSONLines
	}
	return EncodingSSE
}

// ContentType returns the MIME type clients should expect.
func (e Encoding) ContentType() string {
	if e == EncodingJSONLines {
		return "application/x-ndjson"
	}
	return "text/event-stream"
}

// Source is the event producer side, satisfied by engine.EventStream.
type Source interface {
	Next(ctx context.Context) (relay.RunExecutionEvent, bool)
	Close()
}

// Streamer writes execution events to a transport. A single Streamer is
// reusable across streams; per-stream state lives on the stack.
type Streamer struct {
	encoding    Encoding
	heartbeat   time.Duration
	maxDuration time.Duration
	logger      *slog.Logger
}

// Option configures a Streamer.
type Option func(*Streamer)

// WithEncoding selects the wire format. Default is SSE.
func WithEncoding(e Encoding) Option {
	return func(s *Streamer) {
		s.encoding = e
	}
}

// WithHeartbeatInterval overrides the keepalive interval. Zero or negative
// disables heartbeats.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(s *Streamer) {
		s.heartbeat = d
	}
}

// WithMaxDuration caps the stream's wall-clock lifetime. The stream is
// force-closed when the cap is hit; already written events stand.
func WithMaxDuration(d time.Duration) Option {
	return func(s *Streamer) {
		s.maxDuration = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Streamer) {
		s.logger = logger
	}
}

// New creates a Streamer. Defaults: SSE, 15s heartbeats, no duration cap.
func New(opts ...Option) *Streamer {
	s := &Streamer{
		encoding:  EncodingSSE,
		heartbeat: DefaultHeartbeatInterval,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Encoding returns the streamer's wire format.
func (s *Streamer) Encoding() Encoding {
	return s.encoding
}

// Stream drains src into w until the source is exhausted, a terminal event
// is written, ctx is cancelled, or the duration cap fires. Execution events
// are never reordered; heartbeats only fill gaps between them. When w
// implements http.Flusher every write is flushed immediately.
func (s *Streamer) Stream(ctx context.Context, w io.Writer, src Source) error {
	defer src.Close()

	events := make(chan relay.RunExecutionEvent)
	go func() {
		defer close(events)
		for {
			ev, ok := src.Next(ctx)
			if !ok {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	var heartbeats <-chan time.Time
	if s.heartbeat > 0 {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		heartbeats = ticker.C
	}

	var deadline <-chan time.Time
	if s.maxDuration > 0 {
		timer := time.NewTimer(s.maxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			s.logger.Warn("stream hit duration cap", "max_duration", s.maxDuration)
			return nil
		case <-heartbeats:
			if err := s.writeHeartbeat(w); err != nil {
				return err
			}
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.writeEvent(w, ev); err != nil {
				return err
			}
			if ev.Type.Terminal() {
				return nil
			}
		}
	}
}

func (s *Streamer) writeEvent(w io.Writer, ev relay.RunExecutionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", ev.Type, err)
	}

	if s.encoding == EncodingJSONLines {
		if _, err := fmt.Fprintf(w, "%s\n", payload); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
			return err
		}
	}
	flush(w)
	return nil
}

func (s *Streamer) writeHeartbeat(w io.Writer) error {
	var err error
	if s.encoding == EncodingJSONLines {
		_, err = fmt.Fprint(w, "{\"type\":\"heartbeat\"}\n")
	} else {
		_, err = fmt.Fprint(w, ": heartbeat\n\n")
	}
	if err != nil {
		return err
	}
	flush(w)
	return nil
}

func flush(w io.Writer) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
