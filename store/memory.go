package store

import (
	"context"
	"sync"

	"github.com/relayforge/relay"
)

// Memory is a thread-safe in-memory store. Runs are deep-copied on the way
// in and out so callers never share state with the store.
type Memory struct {
	mu       sync.RWMutex
	threads  map[string]*relay.Thread
	runs     map[string]map[string]*relay.Run // threadID -> runID -> run
	runOrder map[string][]string              // threadID -> runIDs in first-put order
	messages map[string][]relay.Message
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		threads:  make(map[string]*relay.Thread),
		runs:     make(map[string]map[string]*relay.Run),
		runOrder: make(map[string][]string),
		messages: make(map[string][]relay.Message),
	}
}

// GetRun retrieves a run snapshot.
func (m *Memory) GetRun(_ context.Context, threadID, runID string) (*relay.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[threadID][runID]
	if !ok {
		return nil, relay.NewNotFoundError(relay.CodeRunNotFound, "run "+runID+" not found in thread "+threadID)
	}
	return run.Clone(), nil
}

// PutRun stores a run snapshot, overwriting any prior state.
func (m *Memory) PutRun(_ context.Context, threadID string, run *relay.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.runs[threadID]
	if !ok {
		byID = make(map[string]*relay.Run)
		m.runs[threadID] = byID
	}
	if _, exists := byID[run.ID]; !exists {
		m.runOrder[threadID] = append(m.runOrder[threadID], run.ID)
	}
	byID[run.ID] = run.Clone()
	return nil
}

// ListRuns returns run snapshots in first-put order.
func (m *Memory) ListRuns(_ context.Context, threadID string) ([]*relay.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.runOrder[threadID]
	runs := make([]*relay.Run, 0, len(ids))
	for _, id := range ids {
		runs = append(runs, m.runs[threadID][id].Clone())
	}
	return runs, nil
}

// RunExists reports whether a run is present.
func (m *Memory) RunExists(_ context.Context, threadID, runID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.runs[threadID][runID]
	return ok, nil
}

// Messages returns the thread's message history in append order.
func (m *Memory) Messages(_ context.Context, threadID string) ([]relay.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[threadID]
	out := make([]relay.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// AppendMessages adds messages to the end of the thread's history.
func (m *Memory) AppendMessages(_ context.Context, threadID string, messages ...relay.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages[threadID] = append(m.messages[threadID], messages...)
	return nil
}

// CreateThread stores a thread record.
func (m *Memory) CreateThread(_ context.Context, thread *relay.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := *thread
	m.threads[thread.ID] = &t
	return nil
}

// GetThread retrieves a thread record by id.
func (m *Memory) GetThread(_ context.Context, threadID string) (*relay.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.threads[threadID]
	if !ok {
		return nil, relay.NewNotFoundError(relay.CodeThreadNotFound, "thread "+threadID+" not found")
	}
	out := *t
	return &out, nil
}

// ThreadExists reports whether a thread record is present.
func (m *Memory) ThreadExists(_ context.Context, threadID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.threads[threadID]
	return ok, nil
}

var _ Store = (*Memory)(nil)
