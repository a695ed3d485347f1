package evaluator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/job-matcher/internal/jobtext"
	"github.com/jonathan/job-matcher/internal/llm"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/pipeline"
	"github.com/jonathan/job-matcher/internal/prompts"
	"github.com/jonathan/job-matcher/internal/types"
	"github.com/jonathan/job-matcher/schemas"
)

func (e *Evaluator) runLogger(s *types.MultiJobEvaluationState, node string) *zap.Logger {
	return e.logger.With(
		zap.String(logger.FieldRunID, s.RunID),
		zap.String(logger.FieldUserID, s.UserID),
		zap.String(logger.FieldNode, node),
	)
}

func (e *Evaluator) retrieveProfile(ctx context.Context, s *types.MultiJobEvaluationState) error {
	profile, err := e.profiles.GetProfileByUser(ctx, s.UserID)
	if err != nil {
		return fmt.Errorf("failed to retrieve profile: %w", err)
	}
	if profile == nil {
		return &types.ErrProfileNotFound{UserID: s.UserID}
	}
	s.Profile = profile
	e.runLogger(s, NodeRetrieveProfile).Info("profile retrieved", zap.String("name", profile.Name))
	return nil
}

func (e *Evaluator) prepareSimilaritySearch(ctx context.Context, s *types.MultiJobEvaluationState) error {
	system, err := prompts.Render(prompts.EvaluationFile, "extract-keywords-system", map[string]string{
		"Profile": s.Profile.String(),
	})
	if err != nil {
		return err
	}
	user, err := prompts.Get(prompts.EvaluationFile, "extract-keywords-user")
	if err != nil {
		return err
	}

	keywords, err := llm.InvokeStructured[types.KeywordList](ctx, e.llm, llm.StructuredRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Schema:       schemas.KeywordList,
		Tier:         llm.TierStandard,
	})
	if err != nil {
		return fmt.Errorf("failed to extract keywords: %w", err)
	}
	keywords.Normalize()

	s.Keywords = keywords
	e.runLogger(s, NodePrepareSimilaritySearch).Info("keywords extracted", zap.Strings("keywords", keywords.Keywords))
	return nil
}

func (e *Evaluator) retrieveBySimilarity(ctx context.Context, s *types.MultiJobEvaluationState) error {
	log := e.runLogger(s, NodeRetrieveBySimilarity)
	if s.Keywords == nil || len(s.Keywords.Keywords) == 0 {
		log.Info("no keywords, skipping similarity search")
		return nil
	}

	query := strings.Join(s.Keywords.Keywords, ", ")
	hits, err := e.index.TopK(ctx, query, e.opts.TopK)
	if err != nil {
		return fmt.Errorf("similarity search failed: %w", err)
	}

	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.JobID)
		log.Debug("matching job", zap.String(logger.FieldJobID, hit.JobID), zap.Float64("score", hit.Score))
	}
	s.JobIDs = append(s.JobIDs, ids)
	log.Info("similarity search complete", zap.Int("hits", len(ids)))
	return nil
}

func (e *Evaluator) hydrateJobs(ctx context.Context, s *types.MultiJobEvaluationState) error {
	log := e.runLogger(s, NodeHydrateJobs)
	ids := UniqueJobIDs(s.JobIDs)
	if len(ids) == 0 {
		s.Jobs = nil
		log.Info("no candidate jobs")
		return nil
	}

	records, err := e.jobs.GetJobsByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load jobs: %w", err)
	}

	seen := make(map[string]bool, len(records))
	jobs := make([]types.JobRecord, 0, len(records))
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		jobs = append(jobs, r)
	}
	s.Jobs = jobs
	log.Info("jobs hydrated", zap.Int("requested", len(ids)), zap.Int("found", len(jobs)))
	return nil
}

func (e *Evaluator) evaluateFit(ctx context.Context, s *types.MultiJobEvaluationState) error {
	log := e.runLogger(s, NodeEvaluateFit)
	s.Evaluations = nil
	s.Failures = nil
	if len(s.Jobs) == 0 {
		log.Info("no jobs to evaluate")
		return nil
	}

	concurrency := e.opts.Concurrency
	if concurrency <= 0 {
		concurrency = len(s.Jobs)
	}

	profile := s.Profile.String()
	res := pipeline.FanOut(ctx, s.Jobs,
		pipeline.FanOutOptions{Concurrency: concurrency, Step: NodeEvaluateFit, Logger: log},
		func(j types.JobRecord) string { return j.ID },
		func(ctx context.Context, job types.JobRecord) (types.JobEvaluation, error) {
			return e.evaluateJob(ctx, log, profile, job)
		})

	for _, ev := range res.Results {
		s.MergeEvaluation(ev)
	}
	for _, f := range res.Failures {
		s.Failures = append(s.Failures, types.TaskFailure{JobID: f.Key, Error: f.Err.Error()})
	}
	sort.Slice(s.Failures, func(i, j int) bool { return s.Failures[i].JobID < s.Failures[j].JobID })

	log.Info("fit evaluation complete",
		zap.Int("evaluated", len(s.Evaluations)),
		zap.Int("failed", len(s.Failures)))
	return nil
}

func (e *Evaluator) evaluateJob(ctx context.Context, log *zap.Logger, profile string, job types.JobRecord) (types.JobEvaluation, error) {
	system, err := prompts.Render(prompts.EvaluationFile, "evaluate-fit-system", map[string]string{
		"CompanyName":    job.CompanyName,
		"Profile":        profile,
		"JobID":          job.ID,
		"JobTitle":       job.Title,
		"JobDescription": jobtext.FromHTML(job.Description),
	})
	if err != nil {
		return types.JobEvaluation{}, err
	}
	user, err := prompts.Get(prompts.EvaluationFile, "evaluate-fit-user")
	if err != nil {
		return types.JobEvaluation{}, err
	}

	ev, err := llm.InvokeStructured[types.JobEvaluation](ctx, e.llm, llm.StructuredRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Schema:       schemas.JobEvaluation,
		Tier:         llm.TierLite,
	})
	if err != nil {
		return types.JobEvaluation{}, err
	}

	ev.JobID = job.ID
	log.Debug("job evaluated",
		zap.String(logger.FieldJobID, job.ID),
		zap.Int("fit_score", ev.FitScore),
		zap.String("rationale", logger.TruncateForLog(ev.Rationale, 200)))
	return *ev, nil
}

// UniqueJobIDs flattens similarity batches, dropping blanks and repeats while
// keeping first-seen order.
func UniqueJobIDs(batches [][]string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, batch := range batches {
		for _, id := range batch {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
