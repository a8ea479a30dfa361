package retry

import (
	"context"
	"errors"
	"time"
)

// delayHinter is satisfied by errors carrying a server-suggested retry
// delay, typically parsed from a Retry-After header.
type delayHinter interface {
	RetryAfter() time.Duration
}

// delayFor picks the backoff for a failed attempt. A server-suggested delay
// wins over the computed exponential backoff when it is longer.
func delayFor(cfg Config, attempt int, err error) time.Duration {
	delay := cfg.Backoff(attempt)
	var h delayHinter
	if errors.As(err, &h) {
		if hint := h.RetryAfter(); hint > delay {
			delay = hint
		}
	}
	return delay
}

// Do executes fn with retry on transient errors, respecting context
// cancellation during backoff waits. It returns the result on success, or
// the last error once attempts are exhausted.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !IsTransient(err) {
			return zero, err
		}

		// Don't sleep after the last attempt
		if attempt < cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delayFor(cfg, attempt, err)):
			}
		}
	}

	return zero, lastErr
}

// DoStream is like Do but for functions that return a channel. It retries
// the stream connection establishment, not individual items.
func DoStream[T any](ctx context.Context, cfg Config, fn func() (<-chan T, error)) (<-chan T, error) {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		ch, err := fn()
		if err == nil {
			return ch, nil
		}

		lastErr = err

		if !IsTransient(err) {
			return nil, err
		}

		if attempt < cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delayFor(cfg, attempt, err)):
			}
		}
	}

	return nil, lastErr
}
