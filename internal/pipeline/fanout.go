package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/job-matcher/internal/logger"
)

// DefaultConcurrency bounds FanOut when no limit is given.
const DefaultConcurrency = 8

// FanOutOptions configures FanOut.
type FanOutOptions struct {
	// Concurrency caps in-flight tasks. Zero means DefaultConcurrency.
	Concurrency int
	// Step labels task progress events, usually the calling node.
	Step   string
	Logger *zap.Logger
}

// TaskError records a failed fan-out task.
type TaskError struct {
	Key string
	Err error
}

func (e TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.Key, e.Err)
}

// FanOutResult holds the merged outcome of a fan-out. Results and Failures are
// disjoint, and their keys cover every input item.
type FanOutResult[R any] struct {
	Results  map[string]R
	Failures []TaskError
}

type taskOutcome[R any] struct {
	key    string
	result R
	err    error
}

// FanOut runs task once per item with bounded concurrency. Each task is
// independent: a failure is recorded against its key and does not cancel the
// others. Outcomes are merged by a single reducer, so callers never share
// mutable state between tasks. Items with duplicate keys run once.
func FanOut[T, R any](ctx context.Context, items []T, opts FanOutOptions, key func(T) string, task func(context.Context, T) (R, error)) FanOutResult[R] {
	log := logger.OrNop(opts.Logger)
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	unique := make([]T, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		k := key(item)
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, item)
	}

	outcomes := make(chan taskOutcome[R])
	result := FanOutResult[R]{Results: make(map[string]R, len(unique))}
	done := make(chan struct{})

	go func() {
		defer close(done)
		for o := range outcomes {
			if o.err != nil {
				result.Failures = append(result.Failures, TaskError{Key: o.key, Err: o.err})
				log.Warn("task failed", zap.String("key", o.key), zap.Error(o.err))
				Emit(ctx, ProgressEvent{Step: opts.Step, Status: EventTaskFailed, Message: o.key, Content: o.err.Error()})
				continue
			}
			result.Results[o.key] = o.result
			Emit(ctx, ProgressEvent{Step: opts.Step, Status: EventTaskCompleted, Message: o.key, Content: o.result})
		}
	}()

	var g errgroup.Group
	g.SetLimit(limit)
	for _, item := range unique {
		item := item
		k := key(item)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes <- taskOutcome[R]{key: k, err: err}
				return nil
			}
			r, err := task(ctx, item)
			outcomes <- taskOutcome[R]{key: k, result: r, err: err}
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)
	<-done

	return result
}
