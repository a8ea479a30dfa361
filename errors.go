package relay

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies errors by where in the system they originate and how the
// HTTP boundary should surface them.
type Kind string

const (
	// KindValidation indicates malformed input: tool-call shape, unknown tool
	// name, missing tool outputs. Surfaced immediately without mutating run state.
	KindValidation Kind = "validation"

	// KindNotFound indicates a referenced run, thread, or assistant is absent.
	KindNotFound Kind = "not_found"

	// KindProvider indicates an upstream inference failure. Carries the
	// upstream status code and, when available, a suggested retry delay.
	KindProvider Kind = "provider"

	// KindToolExecution indicates a tool implementation threw or timed out.
	KindToolExecution Kind = "tool_execution"

	// KindExecution indicates an unexpected engine-level failure.
	KindExecution Kind = "execution"
)

// Machine-readable error codes carried on Error.Code.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidToolCalls   = "INVALID_TOOL_CALLS"
	CodeToolNotFound       = "TOOL_NOT_FOUND"
	CodeMissingToolOutputs = "MISSING_TOOL_OUTPUTS"
	CodeRunNotFound        = "RUN_NOT_FOUND"
	CodeThreadNotFound     = "THREAD_NOT_FOUND"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeProviderError      = "PROVIDER_ERROR"
	CodeToolExecutionError = "TOOL_EXECUTION_ERROR"
	CodeExecutionError     = "EXECUTION_ERROR"
)

// Error is the tagged error variant used across the run execution core.
// The Kind discriminant replaces shape probing: callers branch on Kind or
// Code, never on the presence of fields.
type Error struct {
	Kind Kind   `json:"kind"`
	Code string `json:"code"`
	Msg  string `json:"message"`

	// StatusCode is the upstream HTTP status for provider errors, 0 otherwise.
	StatusCode int `json:"-"`
	// RetryDelay is the server-suggested retry delay for transient provider
	// errors, 0 if not available.
	RetryDelay time.Duration `json:"-"`
	// Transient marks provider errors that may succeed on retry.
	Transient bool `json:"-"`

	Cause error `json:"-"`
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable returns true for transient provider errors.
func (e *Error) Retryable() bool {
	return e.Transient
}

// RetryAfter returns the server-suggested retry delay, 0 if none.
func (e *Error) RetryAfter() time.Duration {
	return e.RetryDelay
}

// NewValidationError creates a validation error with the given code.
func NewValidationError(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Msg: msg}
}

// NewNotFoundError creates a not-found error with the given code.
func NewNotFoundError(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Msg: msg}
}

// NewProviderError creates a permanent provider error.
func NewProviderError(msg string, statusCode int, cause error) *Error {
	return &Error{
		Kind:       KindProvider,
		Code:       CodeProviderError,
		Msg:        msg,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// NewTransientProviderError creates a provider error that may be retried.
// retryAfter is the server-suggested delay, 0 if the upstream gave none.
func NewTransientProviderError(msg string, statusCode int, retryAfter time.Duration, cause error) *Error {
	return &Error{
		Kind:       KindProvider,
		Code:       CodeProviderError,
		Msg:        msg,
		StatusCode: statusCode,
		RetryDelay: retryAfter,
		Transient:  true,
		Cause:      cause,
	}
}

// NewToolExecutionError creates a tool execution error.
func NewToolExecutionError(msg string, cause error) *Error {
	return &Error{Kind: KindToolExecution, Code: CodeToolExecutionError, Msg: msg, Cause: cause}
}

// NewExecutionError creates an unexpected engine-level error.
func NewExecutionError(msg string, cause error) *Error {
	return &Error{Kind: KindExecution, Code: CodeExecutionError, Msg: msg, Cause: cause}
}

// KindOf returns the Kind of err, or KindExecution if err carries no taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindExecution
}

// CodeOf returns the machine-readable code of err, or CodeExecutionError.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeExecutionError
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsTransient returns true if err is a transient provider error.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Transient
	}
	return false
}

// RetryAfterOf returns the suggested retry delay carried on err, or 0.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryDelay
	}
	return 0
}

// HTTPStatus maps an error to the status the HTTP boundary should return.
// Run failures are not transport errors: a run that ends failed is returned
// with HTTP 200 and LastError set; this mapping is for errors surfaced as
// error envelopes only.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
