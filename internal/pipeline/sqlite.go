package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteCheckpointer stores checkpoints in a local SQLite file, so CLI sessions
// survive process exit.
type SQLiteCheckpointer struct {
	db *sql.DB
}

// OpenSQLiteCheckpointer opens (or creates) the checkpoint database at path.
func OpenSQLiteCheckpointer(path string) (*SQLiteCheckpointer, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("checkpoints: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoints: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if err := initCheckpointSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoints: init schema: %w", err)
	}
	return &SQLiteCheckpointer{db: db}, nil
}

func initCheckpointSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS graph_checkpoints (
		graph      TEXT NOT NULL,
		thread_id  TEXT NOT NULL,
		next       TEXT NOT NULL,
		status     TEXT NOT NULL,
		step       INTEGER NOT NULL DEFAULT 0,
		state      BLOB NOT NULL,
		error      TEXT,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (graph, thread_id)
	)`)
	return err
}

// Close closes the underlying database.
func (s *SQLiteCheckpointer) Close() error {
	return s.db.Close()
}

// Save upserts the checkpoint for its thread.
func (s *SQLiteCheckpointer) Save(ctx context.Context, cp *Checkpoint) error {
	updatedAt := cp.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO graph_checkpoints (graph, thread_id, next, status, step, state, error, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (graph, thread_id) DO UPDATE SET
		   next = excluded.next, status = excluded.status, step = excluded.step,
		   state = excluded.state, error = excluded.error, updated_at = excluded.updated_at`,
		cp.Graph, cp.ThreadID, cp.Next, string(cp.Status), cp.Step, []byte(cp.State),
		nullString(cp.Error), updatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load returns the checkpoint for a thread.
func (s *SQLiteCheckpointer) Load(ctx context.Context, graph, threadID string) (*Checkpoint, error) {
	var (
		cp        Checkpoint
		status    string
		state     []byte
		errText   sql.NullString
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT graph, thread_id, next, status, step, state, error, updated_at
		 FROM graph_checkpoints WHERE graph = ? AND thread_id = ?`,
		graph, threadID,
	).Scan(&cp.Graph, &cp.ThreadID, &cp.Next, &status, &cp.Step, &state, &errText, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	cp.Status = Status(status)
	cp.State = state
	cp.Error = errText.String
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		cp.UpdatedAt = t
	}
	return &cp, nil
}

// Delete removes a thread's checkpoint.
func (s *SQLiteCheckpointer) Delete(ctx context.Context, graph, threadID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM graph_checkpoints WHERE graph = ? AND thread_id = ?`, graph, threadID)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
