package relay

import "time"

// Thread is an append-only conversation container. Messages belonging to a
// thread are held by the message store in append order.
type Thread struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewThread creates an empty thread.
func NewThread() *Thread {
	return &Thread{
		ID:        NewThreadID(),
		CreatedAt: time.Now().UTC(),
	}
}
