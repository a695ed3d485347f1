package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Status is the lifecycle state of a checkpointed thread.
type Status string

// Thread statuses.
const (
	StatusRunning     Status = "running"
	StatusInterrupted Status = "interrupted"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// ErrCheckpointNotFound is returned by Checkpointer.Load for unknown threads.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// Checkpoint is the persisted state of one thread after its last committed transition.
type Checkpoint struct {
	Graph     string          `json:"graph"`
	ThreadID  string          `json:"thread_id"`
	Next      string          `json:"next"`
	Status    Status          `json:"status"`
	Step      int             `json:"step"`
	State     json.RawMessage `json:"state"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Checkpointer persists checkpoints keyed by graph name and thread ID.
type Checkpointer interface {
	Save(ctx context.Context, cp *Checkpoint) error
	// Load returns ErrCheckpointNotFound when the thread does not exist.
	Load(ctx context.Context, graph, threadID string) (*Checkpoint, error)
	Delete(ctx context.Context, graph, threadID string) error
}

// MemoryCheckpointer keeps checkpoints in process memory.
type MemoryCheckpointer struct {
	mu          sync.RWMutex
	checkpoints map[string]Checkpoint
}

// NewMemoryCheckpointer creates an empty in-memory checkpointer.
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{checkpoints: make(map[string]Checkpoint)}
}

func checkpointKey(graph, threadID string) string {
	return graph + "/" + threadID
}

// Save stores a copy of cp.
func (m *MemoryCheckpointer) Save(_ context.Context, cp *Checkpoint) error {
	if cp == nil {
		return fmt.Errorf("nil checkpoint")
	}
	c := *cp
	c.State = append(json.RawMessage(nil), cp.State...)
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	m.checkpoints[checkpointKey(cp.Graph, cp.ThreadID)] = c
	m.mu.Unlock()
	return nil
}

// Load returns a copy of the stored checkpoint.
func (m *MemoryCheckpointer) Load(_ context.Context, graph, threadID string) (*Checkpoint, error) {
	m.mu.RLock()
	c, ok := m.checkpoints[checkpointKey(graph, threadID)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrCheckpointNotFound
	}
	c.State = append(json.RawMessage(nil), c.State...)
	return &c, nil
}

// Delete removes a checkpoint. Deleting an unknown thread is not an error.
func (m *MemoryCheckpointer) Delete(_ context.Context, graph, threadID string) error {
	m.mu.Lock()
	delete(m.checkpoints, checkpointKey(graph, threadID))
	m.mu.Unlock()
	return nil
}
