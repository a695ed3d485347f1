package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/job-matcher/internal/llm"
	"github.com/jonathan/job-matcher/internal/types"
)

// VectorIndex answers text similarity queries against the job embeddings.
type VectorIndex struct {
	db       *DB
	embedder llm.Embedder
}

// NewVectorIndex creates a VectorIndex that embeds queries with embedder.
func NewVectorIndex(db *DB, embedder llm.Embedder) *VectorIndex {
	return &VectorIndex{db: db, embedder: embedder}
}

// TopK embeds the query and returns the k nearest active jobs.
func (v *VectorIndex) TopK(ctx context.Context, query string, k int) ([]types.ScoredJob, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return nil, nil
	}
	vec, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return v.db.NearestJobs(ctx, vec, k)
}
