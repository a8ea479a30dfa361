package relay

import "github.com/google/uuid"

// NewRunID creates a unique run identifier.
func NewRunID() string {
	return "run-" + uuid.New().String()
}

// NewThreadID creates a unique thread identifier.
func NewThreadID() string {
	return "thread-" + uuid.New().String()
}

// NewMessageID creates a unique message identifier.
func NewMessageID() string {
	return "msg-" + uuid.New().String()
}

// NewToolCallID creates a unique tool call identifier.
func NewToolCallID() string {
	return "call-" + uuid.New().String()
}
