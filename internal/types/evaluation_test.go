//nolint:revive // types is a standard Go package name pattern
package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobEvaluation_ValidationTags(t *testing.T) {
	tests := []struct {
		name    string
		eval    JobEvaluation
		wantErr bool
	}{
		{name: "lower bound", eval: JobEvaluation{JobID: "j", FitScore: 1, Rationale: "ok"}},
		{name: "upper bound", eval: JobEvaluation{JobID: "j", FitScore: 100, Rationale: "ok"}},
		{name: "zero", eval: JobEvaluation{JobID: "j", FitScore: 0, Rationale: "ok"}, wantErr: true},
		{name: "over range", eval: JobEvaluation{JobID: "j", FitScore: 150, Rationale: "ok"}, wantErr: true},
		{name: "missing rationale", eval: JobEvaluation{JobID: "j", FitScore: 50}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(&tt.eval)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMultiJobEvaluationState_MergeIsKeyedByJobID(t *testing.T) {
	s := &MultiJobEvaluationState{}
	s.MergeEvaluation(JobEvaluation{JobID: "job1", FitScore: 40, Rationale: "a"})
	s.MergeEvaluation(JobEvaluation{JobID: "job2", FitScore: 90, Rationale: "b"})
	s.MergeEvaluation(JobEvaluation{JobID: "job1", FitScore: 70, Rationale: "c"})

	assert.Len(t, s.Evaluations, 2)
	assert.Equal(t, 70, s.Evaluations["job1"].FitScore)
}

func TestMultiJobEvaluationState_Ranked(t *testing.T) {
	s := &MultiJobEvaluationState{}
	s.MergeEvaluation(JobEvaluation{JobID: "b", FitScore: 50, Rationale: "x"})
	s.MergeEvaluation(JobEvaluation{JobID: "a", FitScore: 50, Rationale: "x"})
	s.MergeEvaluation(JobEvaluation{JobID: "c", FitScore: 80, Rationale: "x"})

	ranked := s.Ranked()
	ids := []string{ranked[0].JobID, ranked[1].JobID, ranked[2].JobID}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestMultiJobEvaluationState_JobByID(t *testing.T) {
	s := &MultiJobEvaluationState{Jobs: []JobRecord{{ID: "job1", Title: "Engineer"}}}

	job, ok := s.JobByID("job1")
	assert.True(t, ok)
	assert.Equal(t, "Engineer", job.Title)

	_, ok = s.JobByID("missing")
	assert.False(t, ok)
}

func TestRequests_Validate(t *testing.T) {
	score := 4
	tooHigh := 6

	assert.NoError(t, (&RateEvaluationRequest{UserScore: &score}).Validate())
	assert.Error(t, (&RateEvaluationRequest{UserScore: &tooHigh}).Validate())
	assert.Error(t, (&RateEvaluationRequest{}).Validate())

	valid := &StartProfileRequest{UserID: "550e8400-e29b-41d4-a716-446655440000", CV: "cv"}
	assert.NoError(t, valid.Validate())

	noDocs := &StartProfileRequest{UserID: "550e8400-e29b-41d4-a716-446655440000"}
	assert.Error(t, noDocs.Validate())

	badUser := &StartProfileRequest{UserID: "not-a-uuid", CV: "cv"}
	assert.Error(t, badUser.Validate())
}

func TestMultiJobEvaluationState_RankedJobs(t *testing.T) {
	s := &MultiJobEvaluationState{
		Jobs: []JobRecord{
			{ID: "a", CompanyName: "Acme", Title: "Engineer", ExternalURL: "https://acme.example/a"},
			{ID: "b", CompanyName: "Initech", Title: "Analyst"},
		},
	}
	s.MergeEvaluation(JobEvaluation{JobID: "a", FitScore: 40, Rationale: "ok"})
	s.MergeEvaluation(JobEvaluation{JobID: "b", FitScore: 90, Rationale: "great"})
	s.MergeEvaluation(JobEvaluation{JobID: "gone", FitScore: 10, Rationale: "no record"})

	got := s.RankedJobs()

	if assert.Len(t, got, 3) {
		assert.Equal(t, "b", got[0].JobID)
		assert.Equal(t, "Initech", got[0].CompanyName)
		assert.Equal(t, "https://acme.example/a", got[1].ExternalURL)
		assert.Empty(t, got[2].Title)
	}
}
