// Package store defines the persistence contracts consumed by the run
// execution engine and provides the in-memory implementation. The sqlite
// subpackage provides the durable one.
package store

import (
	"context"

	"github.com/relayforge/relay"
)

// RunStore persists runs, keyed by thread and run id. Implementations must
// be safe for concurrent use. GetRun returns a copy; mutations are only
// made durable by PutRun.
type RunStore interface {
	GetRun(ctx context.Context, threadID, runID string) (*relay.Run, error)
	PutRun(ctx context.Context, threadID string, run *relay.Run) error
	ListRuns(ctx context.Context, threadID string) ([]*relay.Run, error)
	RunExists(ctx context.Context, threadID, runID string) (bool, error)
}

// MessageStore persists the append-only message history of a thread.
type MessageStore interface {
	Messages(ctx context.Context, threadID string) ([]relay.Message, error)
	AppendMessages(ctx context.Context, threadID string, messages ...relay.Message) error
}

// ThreadStore persists thread records.
type ThreadStore interface {
	CreateThread(ctx context.Context, thread *relay.Thread) error
	GetThread(ctx context.Context, threadID string) (*relay.Thread, error)
	ThreadExists(ctx context.Context, threadID string) (bool, error)
}

// Store combines the three contracts. Both implementations satisfy it.
type Store interface {
	RunStore
	MessageStore
	ThreadStore
}
