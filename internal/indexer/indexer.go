// Package indexer embeds job postings that have no vector yet so the
// similarity index can retrieve them.
package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/job-matcher/internal/jobtext"
	"github.com/jonathan/job-matcher/internal/llm"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/pipeline"
	"github.com/jonathan/job-matcher/internal/types"
)

// DefaultBatchSize is the number of jobs listed per page.
const DefaultBatchSize = 100

// DefaultDimensions matches the vector column of the jobs table.
const DefaultDimensions = 768

// JobStore lists unindexed jobs and stores their vectors.
type JobStore interface {
	ListJobsWithoutEmbedding(ctx context.Context, afterID string, limit int) ([]types.JobRecord, error)
	SaveJobEmbedding(ctx context.Context, jobID string, embedding []float32) error
}

// Options configures an Indexer.
type Options struct {
	Logger *zap.Logger
	// Dimensions is the expected vector length. Defaults to DefaultDimensions.
	Dimensions int
	// Concurrency caps parallel embedding calls. Defaults to pipeline.DefaultConcurrency.
	Concurrency int
}

// Result counts the jobs handled by a Run.
type Result struct {
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
}

// Indexer computes job embeddings.
type Indexer struct {
	store    JobStore
	embedder llm.Embedder
	opts     Options
	logger   *zap.Logger
}

// New creates an Indexer.
func New(store JobStore, embedder llm.Embedder, opts Options) (*Indexer, error) {
	if store == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = DefaultDimensions
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = pipeline.DefaultConcurrency
	}
	return &Indexer{store: store, embedder: embedder, opts: opts, logger: logger.OrNop(opts.Logger)}, nil
}

// Run pages through every unindexed job and stores its embedding. Jobs that
// fail are logged, counted and left for the next run. Only listing errors and
// cancellation abort the run.
func (ix *Indexer) Run(ctx context.Context, batchSize int) (Result, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var (
		res     Result
		afterID string
	)
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		batch, err := ix.store.ListJobsWithoutEmbedding(ctx, afterID, batchSize)
		if err != nil {
			return res, fmt.Errorf("failed to list unindexed jobs: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		afterID = batch[len(batch)-1].ID

		out := pipeline.FanOut(ctx, batch, pipeline.FanOutOptions{
			Concurrency: ix.opts.Concurrency,
			Step:        "IndexJobs",
			Logger:      ix.logger,
		}, func(j types.JobRecord) string { return j.ID }, ix.indexJob)

		res.Indexed += len(out.Results)
		res.Failed += len(out.Failures)
		ix.logger.Info("indexed job batch",
			zap.Int("batch", len(batch)),
			zap.Int("indexed", len(out.Results)),
			zap.Int("failed", len(out.Failures)),
		)

		if len(batch) < batchSize {
			break
		}
	}
	return res, ctx.Err()
}

func (ix *Indexer) indexJob(ctx context.Context, job types.JobRecord) (struct{}, error) {
	text := jobtext.EmbeddingText(job)
	if text == "" {
		return struct{}{}, fmt.Errorf("job has no text to embed")
	}

	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return struct{}{}, fmt.Errorf("failed to embed: %w", err)
	}
	if len(vec) != ix.opts.Dimensions {
		return struct{}{}, fmt.Errorf("embedding has %d dimensions, want %d", len(vec), ix.opts.Dimensions)
	}

	if err := ix.store.SaveJobEmbedding(ctx, job.ID, vec); err != nil {
		return struct{}{}, err
	}
	return struct{}{}, nil
}
