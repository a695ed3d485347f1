// Package evaluator scores how well a candidate fits the job postings most
// similar to their profile. A run retrieves the stored profile, turns it into a
// keyword query, pulls the nearest jobs from the similarity index and scores
// every job with one model call, in parallel.
package evaluator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/job-matcher/internal/llm"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/pipeline"
	"github.com/jonathan/job-matcher/internal/types"
)

// GraphName namespaces evaluator checkpoints.
const GraphName = "job_evaluator"

// DefaultTopK is the number of jobs retrieved per similarity search.
const DefaultTopK = 20

// Node names.
const (
	NodeRetrieveProfile         = "RetrieveProfile"
	NodePrepareSimilaritySearch = "PrepareSimilaritySearch"
	NodeRetrieveBySimilarity    = "RetrieveBySimilarity"
	NodeHydrateJobs             = "HydrateJobs"
	NodeEvaluateFit             = "EvaluateFit"
)

// SimilarityIndex finds the jobs nearest to a query text.
type SimilarityIndex interface {
	TopK(ctx context.Context, query string, k int) ([]types.ScoredJob, error)
}

// JobStore loads job records.
type JobStore interface {
	// GetJobsByIDs returns the records that exist, in store order.
	GetJobsByIDs(ctx context.Context, ids []string) ([]types.JobRecord, error)
}

// ProfileReader loads stored profiles.
type ProfileReader interface {
	// GetProfileByUser returns nil, nil when the user has no profile.
	GetProfileByUser(ctx context.Context, userID string) (*types.UserProfile, error)
}

// EvaluationStore persists evaluations and user ratings.
type EvaluationStore interface {
	SaveEvaluations(ctx context.Context, userID string, evaluations []types.JobEvaluation) ([]types.StoredEvaluation, error)
	ListEvaluations(ctx context.Context, userID string) ([]types.StoredEvaluation, error)
	// RateEvaluation returns nil, nil when the evaluation does not exist.
	RateEvaluation(ctx context.Context, id string, score int, feedback *string) (*types.StoredEvaluation, error)
}

// Options configures an Evaluator.
type Options struct {
	Logger *zap.Logger
	// Checkpointer persists runs. Defaults to an in-memory store.
	Checkpointer pipeline.Checkpointer
	// TopK defaults to DefaultTopK.
	TopK int
	// Concurrency caps parallel scoring calls. Zero runs one task per job.
	Concurrency int
	// Evaluations enables SaveResults, History and RateEvaluation.
	Evaluations EvaluationStore
}

// Evaluator runs job evaluations.
type Evaluator struct {
	llm      llm.Client
	profiles ProfileReader
	index    SimilarityIndex
	jobs     JobStore
	opts     Options
	logger   *zap.Logger
	runner   *pipeline.Runnable[types.MultiJobEvaluationState]
}

// New creates an Evaluator and compiles its pipeline.
func New(client llm.Client, profiles ProfileReader, index SimilarityIndex, jobs JobStore, opts Options) (*Evaluator, error) {
	switch {
	case client == nil:
		return nil, fmt.Errorf("llm client is required")
	case profiles == nil:
		return nil, fmt.Errorf("profile reader is required")
	case index == nil:
		return nil, fmt.Errorf("similarity index is required")
	case jobs == nil:
		return nil, fmt.Errorf("job store is required")
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Checkpointer == nil {
		opts.Checkpointer = pipeline.NewMemoryCheckpointer()
	}

	e := &Evaluator{
		llm:      client,
		profiles: profiles,
		index:    index,
		jobs:     jobs,
		opts:     opts,
		logger:   logger.OrNop(opts.Logger),
	}

	g := pipeline.NewGraph[types.MultiJobEvaluationState](GraphName).
		AddNode(NodeRetrieveProfile, e.retrieveProfile).
		AddNode(NodePrepareSimilaritySearch, e.prepareSimilaritySearch).
		AddNode(NodeRetrieveBySimilarity, e.retrieveBySimilarity).
		AddNode(NodeHydrateJobs, e.hydrateJobs).
		AddNode(NodeEvaluateFit, e.evaluateFit).
		SetEntry(NodeRetrieveProfile).
		AddEdge(NodeRetrieveProfile, NodePrepareSimilaritySearch).
		AddEdge(NodePrepareSimilaritySearch, NodeRetrieveBySimilarity).
		AddEdge(NodeRetrieveBySimilarity, NodeHydrateJobs).
		AddEdge(NodeHydrateJobs, NodeEvaluateFit).
		AddEdge(NodeEvaluateFit, pipeline.End)

	runner, err := g.Compile(opts.Checkpointer, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to compile job evaluator: %w", err)
	}
	e.runner = runner
	return e, nil
}

// Run evaluates the jobs nearest to the user's profile under a new run ID.
func (e *Evaluator) Run(ctx context.Context, userID string) (*types.MultiJobEvaluationState, error) {
	return e.RunWithID(ctx, uuid.NewString(), userID)
}

// RunWithID is Run with a caller-chosen run ID. Fatal errors are *pipeline.NodeError
// naming the failed stage; failed scoring tasks are listed in the state instead.
func (e *Evaluator) RunWithID(ctx context.Context, runID, userID string) (*types.MultiJobEvaluationState, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	e.logger.Info("starting job evaluation",
		zap.String(logger.FieldRunID, runID),
		zap.String(logger.FieldUserID, userID))

	snap, err := e.runner.Invoke(ctx, runID, types.MultiJobEvaluationState{
		RunID:  runID,
		UserID: userID,
	})
	if err != nil {
		return nil, err
	}
	return e.finish(snap), nil
}

// Retry continues a failed run from the stage that failed.
func (e *Evaluator) Retry(ctx context.Context, runID string) (*types.MultiJobEvaluationState, error) {
	snap, err := e.runner.Resume(ctx, runID, nil)
	if err != nil {
		return nil, err
	}
	return e.finish(snap), nil
}

// Get returns the last committed state of a run.
func (e *Evaluator) Get(ctx context.Context, runID string) (*types.MultiJobEvaluationState, pipeline.Status, error) {
	snap, err := e.runner.Get(ctx, runID)
	if err != nil {
		return nil, "", err
	}
	state := snap.State
	return &state, snap.Status, nil
}

func (e *Evaluator) finish(snap *pipeline.Snapshot[types.MultiJobEvaluationState]) *types.MultiJobEvaluationState {
	state := snap.State
	e.logger.Info("job evaluation finished",
		zap.String(logger.FieldRunID, state.RunID),
		zap.Int("jobs", len(state.Jobs)),
		zap.Int("evaluations", len(state.Evaluations)),
		zap.Int("failures", len(state.Failures)))
	return &state
}

// SaveResults persists the run's evaluations, best first.
func (e *Evaluator) SaveResults(ctx context.Context, state *types.MultiJobEvaluationState) ([]types.StoredEvaluation, error) {
	if e.opts.Evaluations == nil {
		return nil, fmt.Errorf("no evaluation store configured")
	}
	if state == nil || len(state.Evaluations) == 0 {
		return nil, nil
	}
	saved, err := e.opts.Evaluations.SaveEvaluations(ctx, state.UserID, state.Ranked())
	if err != nil {
		return nil, fmt.Errorf("failed to save evaluations: %w", err)
	}
	return saved, nil
}

// History returns the user's stored evaluations.
func (e *Evaluator) History(ctx context.Context, userID string) ([]types.StoredEvaluation, error) {
	if e.opts.Evaluations == nil {
		return nil, fmt.Errorf("no evaluation store configured")
	}
	return e.opts.Evaluations.ListEvaluations(ctx, userID)
}

// RateEvaluation records the user's own 0-5 rating of a stored evaluation.
func (e *Evaluator) RateEvaluation(ctx context.Context, id string, req *types.RateEvaluationRequest) (*types.StoredEvaluation, error) {
	if e.opts.Evaluations == nil {
		return nil, fmt.Errorf("no evaluation store configured")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rated, err := e.opts.Evaluations.RateEvaluation(ctx, id, *req.UserScore, req.UserFeedback)
	if err != nil {
		return nil, fmt.Errorf("failed to rate evaluation: %w", err)
	}
	if rated == nil {
		return nil, &types.ErrEvaluationNotFound{ID: id}
	}
	return rated, nil
}

// RateRun records the user's 0-5 rating of a whole completed run in its state.
func (e *Evaluator) RateRun(ctx context.Context, runID string, req *types.RateEvaluationRequest) (*types.MultiJobEvaluationState, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	snap, err := e.runner.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if snap.Status != pipeline.StatusCompleted {
		return nil, fmt.Errorf("run %s is %s, only completed runs can be rated", runID, snap.Status)
	}

	snap, err = e.runner.Update(ctx, runID, func(s *types.MultiJobEvaluationState) {
		score := *req.UserScore
		s.UserScore = &score
		s.UserFeedback = req.UserFeedback
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rate run %s: %w", runID, err)
	}
	e.logger.Info("run rated",
		zap.String(logger.FieldRunID, runID),
		zap.Int("user_score", *req.UserScore))
	state := snap.State
	return &state, nil
}
