// Package retry implements bounded exponential backoff for transient
// provider errors.
package retry

import (
	"math/rand"
	"time"
)

// Config is the backoff schedule for retried upstream calls.
type Config struct {
	// MaxAttempts is the total number of attempts, counting the first
	// request. 1 disables retries.
	MaxAttempts int

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the computed backoff; a longer server-suggested delay
	// still wins (see delayFor).
	MaxDelay time.Duration

	// Multiplier grows the delay between consecutive retries.
	Multiplier float64

	// Jitter spreads the delay uniformly across [1-Jitter, 1+Jitter] to
	// avoid synchronized retries.
	Jitter float64
}

// DefaultConfig is the policy the provider adapters ship with: three
// attempts with a short exponential backoff. Inference calls sit on a
// waiting run, so the schedule stays well under typical request deadlines.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

// Disabled is a single-attempt configuration.
func Disabled() Config {
	return Config{MaxAttempts: 1}
}

// Backoff returns the wait before retrying the given attempt (0-indexed).
// The exponential delay is capped at MaxDelay before jitter is applied.
func (c Config) Backoff(attempt int) time.Duration {
	delay := float64(c.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= c.Multiplier
		if delay >= float64(c.MaxDelay) {
			delay = float64(c.MaxDelay)
			break
		}
	}
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}

	if c.Jitter > 0 {
		delay *= 1 + c.Jitter*(rand.Float64()*2-1)
	}
	return time.Duration(delay)
}
