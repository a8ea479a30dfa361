package engine

import (
	"context"
	"sync"

	"github.com/relayforge/relay"
)

// EventStream is a finite, non-restartable pull iterator over run execution
// events. The producer runs in its own goroutine; consumers pull with Next
// and must Close when done early. After exhaustion Next keeps returning
// ok=false.
type EventStream struct {
	events chan relay.RunExecutionEvent
	cancel context.CancelFunc

	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// Next blocks for the next event. It returns ok=false when the stream is
// exhausted, closed, or ctx is done.
func (s *EventStream) Next(ctx context.Context) (relay.RunExecutionEvent, bool) {
	select {
	case <-ctx.Done():
		return relay.RunExecutionEvent{}, false
	case ev, ok := <-s.events:
		return ev, ok
	}
}

// Close stops the producer at its next boundary. Idempotent; safe to call
// concurrently with Next.
func (s *EventStream) Close() {
	s.closeOnce.Do(s.cancel)
}

// Err reports a store-level failure that ended the stream early, nil for
// normal exhaustion. Run failures are not stream errors; they arrive as a
// run.failed event.
func (s *EventStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *EventStream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// StreamRunExecution executes a run like ExecuteRun, but yields one
// run.created event followed by one event per persisted transition. The
// stream stops without error at requires_tool_actions or any terminal
// state. Events carry run snapshots; later mutations never leak back.
func (e *Engine) StreamRunExecution(ctx context.Context, threadID, runID string) *EventStream {
	prodCtx, cancel := context.WithCancel(ctx)
	s := &EventStream{
		events: make(chan relay.RunExecutionEvent),
		cancel: cancel,
	}

	emit := func(ev relay.RunExecutionEvent) bool {
		select {
		case s.events <- ev:
			return true
		case <-prodCtx.Done():
			return false
		}
	}

	go func() {
		defer close(s.events)

		run, err := e.runs.GetRun(prodCtx, threadID, runID)
		if err != nil {
			s.setErr(err)
			return
		}
		emit(relay.RunExecutionEvent{Type: relay.RunEventCreated, Run: run.Clone()})

		if _, err := e.execute(prodCtx, threadID, run, emit); err != nil {
			s.setErr(err)
		}
	}()

	return s
}
