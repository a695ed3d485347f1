//nolint:revive // types is a standard Go package name pattern
package types

import (
	"sort"
	"time"
)

// Fit score bounds produced by the evaluator.
const (
	MinFitScore = 1
	MaxFitScore = 100
)

// JobEvaluation is the model's assessment of one (user, job) pair.
// JobID is always stamped from the evaluated record, never taken from the model.
type JobEvaluation struct {
	JobID     string `json:"job_id"`
	FitScore  int    `json:"fit_score" validate:"min=1,max=100"`
	Rationale string `json:"rationale" validate:"required"`
}

// StoredEvaluation is a persisted JobEvaluation with the optional user rating.
type StoredEvaluation struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	JobID        string    `json:"job_id"`
	FitScore     int       `json:"fit_score"`
	Rationale    string    `json:"rationale"`
	UserScore    *int      `json:"user_score,omitempty"`
	UserFeedback *string   `json:"user_feedback,omitempty"`
	CompanyName  string    `json:"company_name,omitempty"`
	Title        string    `json:"title,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TaskFailure records a fan-out task that produced no evaluation.
type TaskFailure struct {
	JobID string `json:"job_id"`
	Error string `json:"error"`
}

// MultiJobEvaluationState is the state threaded through the job evaluator.
type MultiJobEvaluationState struct {
	RunID       string                   `json:"run_id"`
	UserID      string                   `json:"user_id"`
	Profile     *UserProfile             `json:"profile,omitempty"`
	Keywords    *KeywordList             `json:"keywords,omitempty"`
	JobIDs      [][]string               `json:"job_ids,omitempty"`
	Jobs        []JobRecord              `json:"jobs,omitempty"`
	Evaluations map[string]JobEvaluation `json:"evaluations,omitempty"`
	Failures    []TaskFailure            `json:"failures,omitempty"`

	// Run-level rating given after the results were shown.
	UserScore    *int    `json:"user_score,omitempty"`
	UserFeedback *string `json:"user_feedback,omitempty"`
}

// MergeEvaluation adds or replaces the evaluation for its job ID.
func (s *MultiJobEvaluationState) MergeEvaluation(e JobEvaluation) {
	if s.Evaluations == nil {
		s.Evaluations = make(map[string]JobEvaluation)
	}
	s.Evaluations[e.JobID] = e
}

// Ranked returns the evaluations ordered by descending fit score, ties broken by job ID.
func (s *MultiJobEvaluationState) Ranked() []JobEvaluation {
	out := make([]JobEvaluation, 0, len(s.Evaluations))
	for _, e := range s.Evaluations {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FitScore != out[j].FitScore {
			return out[i].FitScore > out[j].FitScore
		}
		return out[i].JobID < out[j].JobID
	})
	return out
}

// JobByID returns the hydrated record with the given ID.
func (s *MultiJobEvaluationState) JobByID(id string) (JobRecord, bool) {
	for _, j := range s.Jobs {
		if j.ID == id {
			return j, true
		}
	}
	return JobRecord{}, false
}

// RankedJob is an evaluation joined with the job it scores.
type RankedJob struct {
	JobEvaluation
	CompanyName string `json:"company_name,omitempty"`
	Title       string `json:"title,omitempty"`
	ExternalURL string `json:"external_url,omitempty"`
}

// RankedJobs returns Ranked with the hydrated job details attached.
func (s *MultiJobEvaluationState) RankedJobs() []RankedJob {
	ranked := s.Ranked()
	out := make([]RankedJob, 0, len(ranked))
	for _, e := range ranked {
		rj := RankedJob{JobEvaluation: e}
		if job, ok := s.JobByID(e.JobID); ok {
			rj.CompanyName = job.CompanyName
			rj.Title = job.Title
			rj.ExternalURL = job.ExternalURL
		}
		out = append(out, rj)
	}
	return out
}
