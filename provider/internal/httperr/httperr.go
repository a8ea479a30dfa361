// Package httperr holds status-code categorization and Retry-After parsing
// shared by the provider adapters.
package httperr

import (
	"net/http"
	"strconv"
	"time"
)

// Transient returns true for status codes worth retrying: rate limits and
// server errors.
func Transient(code int) bool {
	return code == 429 || (code >= 500 && code < 600)
}

// RetryAfter extracts the Retry-After duration from an HTTP response.
// Returns 0 if the header is not present or cannot be parsed.
func RetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}

	// Seconds form is the most common
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// HTTP-date form (RFC 7231)
	if t, err := http.ParseTime(header); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return 0
}
