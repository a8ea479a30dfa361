// Package sqlite provides a SQLite-backed implementation of the store
// contracts. Nested run fields (tool actions, outputs, errors, tools,
// metadata) are serialized as JSON in TEXT columns.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/relayforge/relay"
	"github.com/relayforge/relay/store"
)

// Store implements store.Store on a SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dsn and runs migrations.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection so the schema survives across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS threads (
			thread_id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			metadata TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			message_id TEXT,
			role TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, seq)`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			assistant_id TEXT,
			status TEXT NOT NULL,
			required_tool_actions TEXT,
			submitted_tool_outputs TEXT,
			last_error TEXT,
			created_at DATETIME NOT NULL,
			started_at DATETIME,
			completed_at DATETIME,
			model TEXT,
			instructions TEXT,
			tools TEXT,
			metadata TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_thread ON runs(thread_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const runColumns = `run_id, thread_id, assistant_id, status, required_tool_actions,
	submitted_tool_outputs, last_error, created_at, started_at, completed_at,
	model, instructions, tools, metadata`

// GetRun retrieves a run by thread and id.
func (s *Store) GetRun(ctx context.Context, threadID, runID string) (*relay.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE thread_id = ? AND run_id = ?`,
		threadID, runID)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, relay.NewNotFoundError(relay.CodeRunNotFound, "run "+runID+" not found in thread "+threadID)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// PutRun inserts or updates a run. Updates keep the run's position in
// ListRuns because the original rowid is preserved.
func (s *Store) PutRun(ctx context.Context, threadID string, run *relay.Run) error {
	actions, err := marshalNullable(run.RequiredToolActions, len(run.RequiredToolActions) > 0)
	if err != nil {
		return err
	}
	outputs, err := marshalNullable(run.SubmittedToolOutputs, len(run.SubmittedToolOutputs) > 0)
	if err != nil {
		return err
	}
	lastError, err := marshalNullable(run.LastError, run.LastError != nil)
	if err != nil {
		return err
	}
	tools, err := marshalNullable(run.Tools, len(run.Tools) > 0)
	if err != nil {
		return err
	}
	metadata, err := marshalNullable(run.Metadata, len(run.Metadata) > 0)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			required_tool_actions = excluded.required_tool_actions,
			submitted_tool_outputs = excluded.submitted_tool_outputs,
			last_error = excluded.last_error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			model = excluded.model,
			instructions = excluded.instructions,
			tools = excluded.tools,
			metadata = excluded.metadata`,
		run.ID, threadID, run.AssistantID, string(run.Status), actions,
		outputs, lastError, run.CreatedAt, nullTime(run.StartedAt), nullTime(run.CompletedAt),
		run.Model, run.Instructions, tools, metadata)
	return err
}

// ListRuns returns a thread's runs in insertion order.
func (s *Store) ListRuns(ctx context.Context, threadID string) ([]*relay.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE thread_id = ? ORDER BY rowid ASC`,
		threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*relay.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunExists reports whether a run row is present.
func (s *Store) RunExists(ctx context.Context, threadID, runID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM runs WHERE thread_id = ? AND run_id = ?`,
		threadID, runID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*relay.Run, error) {
	var run relay.Run
	var status string
	var assistantID, actions, outputs, lastError, model, instructions, tools, metadata sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(&run.ID, &run.ThreadID, &assistantID, &status, &actions,
		&outputs, &lastError, &run.CreatedAt, &startedAt, &completedAt,
		&model, &instructions, &tools, &metadata)
	if err != nil {
		return nil, err
	}

	run.Status = relay.RunStatus(status)
	run.AssistantID = assistantID.String
	run.Model = model.String
	run.Instructions = instructions.String
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		run.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		run.CompletedAt = &t
	}
	if err := unmarshalNullable(actions, &run.RequiredToolActions); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(outputs, &run.SubmittedToolOutputs); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(lastError, &run.LastError); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(tools, &run.Tools); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(metadata, &run.Metadata); err != nil {
		return nil, err
	}
	return &run, nil
}

// Messages returns a thread's message history in append order.
func (s *Store) Messages(ctx context.Context, threadID string) ([]relay.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM messages WHERE thread_id = ? ORDER BY seq ASC`,
		threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []relay.Message
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var msg relay.Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// AppendMessages appends messages to a thread's history.
func (s *Store) AppendMessages(ctx context.Context, threadID string, messages ...relay.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, msg := range messages {
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (thread_id, message_id, role, content, payload) VALUES (?, ?, ?, ?, ?)`,
			threadID, msg.ID, string(msg.Role), msg.Content, string(payload)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CreateThread inserts a thread row.
func (s *Store) CreateThread(ctx context.Context, thread *relay.Thread) error {
	metadata, err := marshalNullable(thread.Metadata, len(thread.Metadata) > 0)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO threads (thread_id, created_at, metadata) VALUES (?, ?, ?)`,
		thread.ID, thread.CreatedAt, metadata)
	return err
}

// GetThread retrieves a thread by id.
func (s *Store) GetThread(ctx context.Context, threadID string) (*relay.Thread, error) {
	var thread relay.Thread
	var metadata sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT thread_id, created_at, metadata FROM threads WHERE thread_id = ?`,
		threadID).Scan(&thread.ID, &thread.CreatedAt, &metadata)
	if err == sql.ErrNoRows {
		return nil, relay.NewNotFoundError(relay.CodeThreadNotFound, "thread "+threadID+" not found")
	}
	if err != nil {
		return nil, err
	}
	thread.CreatedAt = thread.CreatedAt.UTC()
	if err := unmarshalNullable(metadata, &thread.Metadata); err != nil {
		return nil, err
	}
	return &thread, nil
}

// ThreadExists reports whether a thread row is present.
func (s *Store) ThreadExists(ctx context.Context, threadID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM threads WHERE thread_id = ?`, threadID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func marshalNullable(v any, present bool) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalNullable(s sql.NullString, dest any) error {
	if !s.Valid {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dest)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ store.Store = (*Store)(nil)
