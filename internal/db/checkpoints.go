package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/job-matcher/internal/pipeline"
)

// Checkpoints adapts the database to pipeline.Checkpointer, so sessions started
// by one server process can be resumed by another.
type Checkpoints struct {
	db *DB
}

// Checkpoints returns a checkpointer backed by the graph_checkpoints table.
func (db *DB) Checkpoints() *Checkpoints {
	return &Checkpoints{db: db}
}

// Save upserts the checkpoint for its thread.
func (c *Checkpoints) Save(ctx context.Context, cp *pipeline.Checkpoint) error {
	if cp == nil {
		return fmt.Errorf("nil checkpoint")
	}
	updatedAt := cp.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := c.db.pool.Exec(ctx,
		`INSERT INTO graph_checkpoints (graph, thread_id, next, status, step, state, error, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (graph, thread_id) DO UPDATE SET
		     next = EXCLUDED.next,
		     status = EXCLUDED.status,
		     step = EXCLUDED.step,
		     state = EXCLUDED.state,
		     error = EXCLUDED.error,
		     updated_at = EXCLUDED.updated_at`,
		cp.Graph, cp.ThreadID, cp.Next, string(cp.Status), cp.Step, []byte(cp.State),
		nullIfEmpty(cp.Error), updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load returns the checkpoint for a thread or pipeline.ErrCheckpointNotFound.
func (c *Checkpoints) Load(ctx context.Context, graph, threadID string) (*pipeline.Checkpoint, error) {
	var (
		cp      pipeline.Checkpoint
		status  string
		state   []byte
		errText *string
	)
	err := c.db.pool.QueryRow(ctx,
		`SELECT graph, thread_id, next, status, step, state, error, updated_at
		 FROM graph_checkpoints WHERE graph = $1 AND thread_id = $2`,
		graph, threadID,
	).Scan(&cp.Graph, &cp.ThreadID, &cp.Next, &status, &cp.Step, &state, &errText, &cp.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, pipeline.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	cp.Status = pipeline.Status(status)
	cp.State = state
	cp.Error = derefString(errText)
	return &cp, nil
}

// Delete removes a thread's checkpoint.
func (c *Checkpoints) Delete(ctx context.Context, graph, threadID string) error {
	_, err := c.db.pool.Exec(ctx,
		`DELETE FROM graph_checkpoints WHERE graph = $1 AND thread_id = $2`, graph, threadID)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
