package relay

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		code     string
		status   int
		retrying bool
	}{
		{
			name:   "validation",
			err:    NewValidationError(CodeInvalidToolCalls, "tool call c1 missing name"),
			kind:   KindValidation,
			code:   CodeInvalidToolCalls,
			status: http.StatusBadRequest,
		},
		{
			name:   "not found",
			err:    NewNotFoundError(CodeRunNotFound, "run run-1 not found"),
			kind:   KindNotFound,
			code:   CodeRunNotFound,
			status: http.StatusNotFound,
		},
		{
			name:   "permanent provider",
			err:    NewProviderError("invalid model", 400, nil),
			kind:   KindProvider,
			code:   CodeProviderError,
			status: http.StatusInternalServerError,
		},
		{
			name:     "transient provider",
			err:      NewTransientProviderError("overloaded", 529, 2*time.Second, nil),
			kind:     KindProvider,
			code:     CodeProviderError,
			status:   http.StatusInternalServerError,
			retrying: true,
		},
		{
			name:   "tool execution",
			err:    NewToolExecutionError("get_weather panicked", nil),
			kind:   KindToolExecution,
			code:   CodeToolExecutionError,
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.code, CodeOf(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.Equal(t, tt.retrying, IsTransient(tt.err))
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := NewTransientProviderError("request failed", 503, time.Second, cause)

	wrapped := fmt.Errorf("step 2: %w", err)

	assert.True(t, IsTransient(wrapped))
	assert.Equal(t, time.Second, RetryAfterOf(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, err.Error(), "connection reset by peer")
}

func TestKindOfPlainError(t *testing.T) {
	err := errors.New("plain")
	assert.Equal(t, KindExecution, KindOf(err))
	assert.Equal(t, CodeExecutionError, CodeOf(err))
	assert.False(t, IsTransient(err))
	assert.Equal(t, time.Duration(0), RetryAfterOf(err))
}
