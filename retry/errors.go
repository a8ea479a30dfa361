package retry

import (
	"errors"
	"net"
	"strings"
)

// retryable is satisfied by errors that carry their own retry decision.
type retryable interface {
	Retryable() bool
}

// statusCoder is satisfied by SDK errors that expose an HTTP status code.
type statusCoder interface {
	StatusCode() int
}

// transientPatterns are substrings that mark an error message as transient
// when no structured signal is available. Matched case-insensitively.
var transientPatterns = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"timeout",
	"timed out",
	"temporary failure",
	"rate limit",
	"too many requests",
	"service unavailable",
	"bad gateway",
	"gateway timeout",
	"internal server error",
	"overloaded",
	"eof",
}

// IsTransient reports whether err is worth retrying. Structured signals win:
// an error that implements Retryable or exposes an HTTP status code is
// classified from that; otherwise network timeouts and a set of message
// patterns are used as a fallback.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		return isTransientStatusCode(sc.StatusCode())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}

// isTransientStatusCode returns true for HTTP status codes that indicate a
// retryable upstream condition.
func isTransientStatusCode(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}
