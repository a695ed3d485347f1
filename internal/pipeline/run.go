package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/job-matcher/internal/logger"
)

// ErrThreadExists is returned by Invoke when the thread already has a checkpoint.
var ErrThreadExists = errors.New("thread already exists")

// NodeError identifies the node that aborted a run.
type NodeError struct {
	Graph    string
	ThreadID string
	Node     string
	Err      error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s: node %s failed: %v", e.Graph, e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// Snapshot is the state of a thread as returned to callers.
type Snapshot[S any] struct {
	ThreadID string
	State    S
	Next     string
	Status   Status
	Step     int
	Error    string
}

// Interrupted reports whether the thread is suspended waiting for Resume.
func (s *Snapshot[S]) Interrupted() bool {
	return s.Status == StatusInterrupted
}

// Runnable is a compiled graph bound to a checkpoint store.
type Runnable[S any] struct {
	graph  *Graph[S]
	store  Checkpointer
	logger *zap.Logger
}

// Compile validates the graph and binds it to a checkpointer.
func (g *Graph[S]) Compile(store Checkpointer, log *zap.Logger) (*Runnable[S], error) {
	if store == nil {
		return nil, fmt.Errorf("graph %s: checkpointer is required", g.name)
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return &Runnable[S]{
		graph:  g,
		store:  store,
		logger: logger.OrNop(log).With(zap.String("graph", g.name)),
	}, nil
}

// Invoke starts a new thread from the entry node with the given initial state.
func (r *Runnable[S]) Invoke(ctx context.Context, threadID string, initial S) (*Snapshot[S], error) {
	if threadID == "" {
		return nil, fmt.Errorf("thread ID is required")
	}

	_, err := r.store.Load(ctx, r.graph.name, threadID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrThreadExists, threadID)
	case !errors.Is(err, ErrCheckpointNotFound):
		return nil, fmt.Errorf("failed to check thread %s: %w", threadID, err)
	}

	state := initial
	return r.run(ctx, threadID, &state, r.graph.entry, 0, false)
}

// Resume continues a thread from its last committed transition. update, when
// non-nil, is applied to the state first (for example to inject user input).
// A completed thread is returned as is and update is not applied.
func (r *Runnable[S]) Resume(ctx context.Context, threadID string, update func(*S)) (*Snapshot[S], error) {
	cp, state, err := r.load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if cp.Status == StatusCompleted {
		return &Snapshot[S]{ThreadID: threadID, State: state, Next: End, Status: StatusCompleted, Step: cp.Step, Error: cp.Error}, nil
	}

	if update != nil {
		update(&state)
	}
	return r.run(ctx, threadID, &state, cp.Next, cp.Step, cp.Status == StatusInterrupted)
}

// RunFrom re-enters a thread at node regardless of its status, applying update first.
// It does not suspend before node itself.
func (r *Runnable[S]) RunFrom(ctx context.Context, threadID, node string, update func(*S)) (*Snapshot[S], error) {
	if _, ok := r.graph.nodes[node]; !ok {
		return nil, fmt.Errorf("graph %s: unknown node %q", r.graph.name, node)
	}
	cp, state, err := r.load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if update != nil {
		update(&state)
	}
	return r.run(ctx, threadID, &state, node, cp.Step, true)
}

// Update applies update to the thread's committed state without running any
// node. Next, status and step are kept.
func (r *Runnable[S]) Update(ctx context.Context, threadID string, update func(*S)) (*Snapshot[S], error) {
	cp, state, err := r.load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	update(&state)

	encoded, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	if err := r.save(ctx, threadID, cp.Next, cp.Status, cp.Step, encoded, cp.Error); err != nil {
		return nil, err
	}
	return &Snapshot[S]{ThreadID: threadID, State: state, Next: cp.Next, Status: cp.Status, Step: cp.Step, Error: cp.Error}, nil
}

// Get returns the thread's last committed snapshot.
func (r *Runnable[S]) Get(ctx context.Context, threadID string) (*Snapshot[S], error) {
	cp, state, err := r.load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return &Snapshot[S]{ThreadID: threadID, State: state, Next: cp.Next, Status: cp.Status, Step: cp.Step, Error: cp.Error}, nil
}

// Delete removes the thread's checkpoint.
func (r *Runnable[S]) Delete(ctx context.Context, threadID string) error {
	return r.store.Delete(ctx, r.graph.name, threadID)
}

func (r *Runnable[S]) load(ctx context.Context, threadID string) (*Checkpoint, S, error) {
	var state S
	cp, err := r.store.Load(ctx, r.graph.name, threadID)
	if err != nil {
		return nil, state, fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return nil, state, fmt.Errorf("failed to decode state of thread %s: %w", threadID, err)
	}
	return cp, state, nil
}

func (r *Runnable[S]) run(ctx context.Context, threadID string, state *S, current string, step int, resuming bool) (*Snapshot[S], error) {
	log := r.logger.With(zap.String("thread_id", threadID))
	ctx = withRunInfo(ctx, r.graph.name, threadID)
	// Work a node finished is committed even if ctx was cancelled meanwhile.
	commitCtx := context.WithoutCancel(ctx)

	committed, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	if err := r.save(commitCtx, threadID, current, StatusRunning, step, committed, ""); err != nil {
		return nil, err
	}

	for current != End {
		if r.graph.interrupts[current] && !resuming {
			if err := r.save(commitCtx, threadID, current, StatusInterrupted, step, committed, ""); err != nil {
				return nil, err
			}
			log.Info("suspended", zap.String(logger.FieldNode, current))
			Emit(ctx, ProgressEvent{Step: current, Status: EventInterrupted})
			return &Snapshot[S]{ThreadID: threadID, State: *state, Next: current, Status: StatusInterrupted, Step: step}, nil
		}
		resuming = false

		if err := ctx.Err(); err != nil {
			return nil, r.fail(ctx, log, threadID, current, step, committed, err)
		}

		Emit(ctx, ProgressEvent{Step: current, Status: EventStarted})
		start := time.Now()

		if err := r.graph.nodes[current](ctx, state); err != nil {
			return nil, r.fail(ctx, log, threadID, current, step, committed, err)
		}

		next, err := r.graph.next(current, state)
		if err != nil {
			return nil, r.fail(ctx, log, threadID, current, step, committed, err)
		}

		encoded, err := json.Marshal(state)
		if err != nil {
			return nil, r.fail(ctx, log, threadID, current, step, committed, fmt.Errorf("failed to encode state: %w", err))
		}
		committed = encoded
		step++

		status := StatusRunning
		if next == End {
			status = StatusCompleted
		}
		if err := r.save(commitCtx, threadID, next, status, step, committed, ""); err != nil {
			return nil, &NodeError{Graph: r.graph.name, ThreadID: threadID, Node: current, Err: err}
		}

		log.Debug("node completed",
			zap.String(logger.FieldNode, current),
			zap.String("next", next),
			zap.Duration("elapsed", time.Since(start)))
		Emit(ctx, ProgressEvent{Step: current, Status: EventCompleted})
		current = next
	}

	return &Snapshot[S]{ThreadID: threadID, State: *state, Next: End, Status: StatusCompleted, Step: step}, nil
}

// fail records the last committed state with the failing node as the resume point.
func (r *Runnable[S]) fail(ctx context.Context, log *zap.Logger, threadID, node string, step int, committed []byte, cause error) error {
	log.Error("node failed", zap.String(logger.FieldNode, node), zap.Error(cause))
	Emit(ctx, ProgressEvent{Step: node, Status: EventFailed, Message: cause.Error()})

	if err := r.save(context.WithoutCancel(ctx), threadID, node, StatusFailed, step, committed, cause.Error()); err != nil {
		log.Error("failed to record node failure", zap.Error(err))
	}
	return &NodeError{Graph: r.graph.name, ThreadID: threadID, Node: node, Err: cause}
}

func (r *Runnable[S]) save(ctx context.Context, threadID, next string, status Status, step int, state []byte, errText string) error {
	err := r.store.Save(ctx, &Checkpoint{
		Graph:     r.graph.name,
		ThreadID:  threadID,
		Next:      next,
		Status:    status,
		Step:      step,
		State:     state,
		Error:     errText,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to checkpoint thread %s: %w", threadID, err)
	}
	return nil
}
