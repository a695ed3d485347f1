package evaluator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-matcher/internal/llm"
	"github.com/jonathan/job-matcher/internal/pipeline"
	"github.com/jonathan/job-matcher/internal/types"
	"github.com/jonathan/job-matcher/schemas"
)

// MockLLMClient implements llm.Client for testing
type MockLLMClient struct {
	GenerateStructuredFunc func(ctx context.Context, req llm.StructuredRequest) (string, error)
}

func (m *MockLLMClient) GenerateStructured(ctx context.Context, req llm.StructuredRequest) (string, error) {
	if m.GenerateStructuredFunc != nil {
		return m.GenerateStructuredFunc(ctx, req)
	}
	return "{}", nil
}

func (m *MockLLMClient) Embed(context.Context, string) ([]float32, error) { return nil, nil }

func (m *MockLLMClient) GetModel(llm.ModelTier) string { return "mock-model" }

func (m *MockLLMClient) Close() error { return nil }

// scriptedModel answers keyword requests with keywordsJSON and evaluation
// requests with the entry for the job named in the prompt.
func scriptedModel(keywordsJSON string, answers map[string]string) *MockLLMClient {
	return &MockLLMClient{
		GenerateStructuredFunc: func(_ context.Context, req llm.StructuredRequest) (string, error) {
			switch req.Schema {
			case schemas.KeywordList:
				return keywordsJSON, nil
			case schemas.JobEvaluation:
				for id, answer := range answers {
					if strings.Contains(req.SystemPrompt, "Job ID: "+id+"\n") {
						if strings.HasPrefix(answer, "error:") {
							return "", errors.New(strings.TrimPrefix(answer, "error:"))
						}
						return answer, nil
					}
				}
				return "", errors.New("no scripted answer")
			}
			return "", fmt.Errorf("unexpected schema %s", req.Schema)
		},
	}
}

type fakeProfiles struct {
	profiles map[string]*types.UserProfile
	err      error
}

func (f *fakeProfiles) GetProfileByUser(_ context.Context, userID string) (*types.UserProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profiles[userID], nil
}

type fakeIndex struct {
	mu      sync.Mutex
	hits    []types.ScoredJob
	err     error
	queries []string
	ks      []int
}

func (f *fakeIndex) TopK(_ context.Context, query string, k int) ([]types.ScoredJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.ks = append(f.ks, k)
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

type fakeJobs struct {
	mu    sync.Mutex
	jobs  map[string]types.JobRecord
	calls [][]string
	dupes bool
}

func (f *fakeJobs) GetJobsByIDs(_ context.Context, ids []string) ([]types.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), ids...))
	var out []types.JobRecord
	for _, id := range ids {
		if j, ok := f.jobs[id]; ok {
			out = append(out, j)
			if f.dupes {
				out = append(out, j)
			}
		}
	}
	return out, nil
}

func newJobs(ids ...string) *fakeJobs {
	f := &fakeJobs{jobs: map[string]types.JobRecord{}}
	for _, id := range ids {
		f.jobs[id] = types.JobRecord{
			ID:          id,
			CompanyName: "Company " + id,
			Title:       "Go Engineer " + id,
			Description: "<p>Build services in <b>Go</b></p>",
		}
	}
	return f
}

var janeProfile = &types.UserProfile{
	Name:           "Jane Doe",
	WorkExperience: "Software Engineer at Acme Corp",
	Skills:         "Go, Python",
}

func evalJSON(score int, rationale string) string {
	return fmt.Sprintf(`{"job_id":"not-trusted","fit_score":%d,"rationale":%q}`, score, rationale)
}

func newTestEvaluator(t *testing.T, model llm.Client, index SimilarityIndex, jobs JobStore, opts Options) *Evaluator {
	t.Helper()
	e, err := New(model, &fakeProfiles{profiles: map[string]*types.UserProfile{"user-1": janeProfile}}, index, jobs, opts)
	require.NoError(t, err)
	return e
}

func TestEvaluator_EndToEnd(t *testing.T) {
	index := &fakeIndex{hits: []types.ScoredJob{{JobID: "job1", Score: 0.9}, {JobID: "job2", Score: 0.5}}}
	jobs := newJobs("job1", "job2", "job3")
	model := scriptedModel(`{"keywords":["Go"," go ","Python",""]}`, map[string]string{
		"job1": evalJSON(85, "Strong Go background"),
		"job2": evalJSON(40, "Partial overlap"),
	})
	e := newTestEvaluator(t, model, index, jobs, Options{})

	state, err := e.Run(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"Go, Python"}, index.queries)
	assert.Equal(t, []int{DefaultTopK}, index.ks)
	assert.Equal(t, [][]string{{"job1", "job2"}}, state.JobIDs)
	assert.Len(t, state.Jobs, 2)
	require.Len(t, state.Evaluations, 2)
	assert.Equal(t, "job1", state.Evaluations["job1"].JobID)
	assert.Equal(t, 85, state.Evaluations["job1"].FitScore)
	assert.Equal(t, "job2", state.Evaluations["job2"].JobID)
	assert.Empty(t, state.Failures)
	assert.NotEmpty(t, state.RunID)

	ranked := state.Ranked()
	assert.Equal(t, "job1", ranked[0].JobID)
}

func TestEvaluator_PartialFailureIsIsolated(t *testing.T) {
	index := &fakeIndex{hits: []types.ScoredJob{{JobID: "a"}, {JobID: "b"}, {JobID: "c"}, {JobID: "d"}}}
	model := scriptedModel(`{"keywords":["Go"]}`, map[string]string{
		"a": evalJSON(70, "ok"),
		"b": evalJSON(60, "ok"),
		"c": "error:model overloaded",
		"d": evalJSON(50, "ok"),
	})
	e := newTestEvaluator(t, model, index, newJobs("a", "b", "c", "d"), Options{Concurrency: 2})

	state, err := e.Run(context.Background(), "user-1")
	require.NoError(t, err)

	require.Len(t, state.Evaluations, 3)
	for id, ev := range state.Evaluations {
		assert.Equal(t, id, ev.JobID)
	}
	assert.NotContains(t, state.Evaluations, "c")
	require.Len(t, state.Failures, 1)
	assert.Equal(t, "c", state.Failures[0].JobID)
	assert.Contains(t, state.Failures[0].Error, "model overloaded")
}

func TestEvaluator_OutOfRangeScoreIsRejected(t *testing.T) {
	index := &fakeIndex{hits: []types.ScoredJob{{JobID: "job1"}, {JobID: "job2"}}}
	model := scriptedModel(`{"keywords":["Go"]}`, map[string]string{
		"job1": evalJSON(90, "great"),
		"job2": evalJSON(150, "off the charts"),
	})
	e := newTestEvaluator(t, model, index, newJobs("job1", "job2"), Options{})

	state, err := e.Run(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Len(t, state.Evaluations, 1)
	assert.NotContains(t, state.Evaluations, "job2")
	for _, ev := range state.Evaluations {
		assert.GreaterOrEqual(t, ev.FitScore, types.MinFitScore)
		assert.LessOrEqual(t, ev.FitScore, types.MaxFitScore)
	}
	require.Len(t, state.Failures, 1)
	assert.Equal(t, "job2", state.Failures[0].JobID)
	assert.Contains(t, state.Failures[0].Error, "validation")
}

func TestEvaluator_EmptyKeywordsSkipsRetrieval(t *testing.T) {
	index := &fakeIndex{}
	jobs := newJobs("job1")
	e := newTestEvaluator(t, scriptedModel(`{"keywords":["  "]}`, nil), index, jobs, Options{})

	state, err := e.Run(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Empty(t, index.queries)
	assert.Empty(t, jobs.calls)
	assert.Empty(t, state.JobIDs)
	assert.Empty(t, state.Evaluations)
	assert.Empty(t, state.Failures)
}

func TestEvaluator_MissingProfileIsFatal(t *testing.T) {
	model := scriptedModel(`{"keywords":["Go"]}`, nil)
	e := newTestEvaluator(t, model, &fakeIndex{}, newJobs(), Options{})

	_, err := e.Run(context.Background(), "nobody")
	require.Error(t, err)

	var nodeErr *pipeline.NodeError
	require.True(t, errors.As(err, &nodeErr))
	assert.Equal(t, NodeRetrieveProfile, nodeErr.Node)

	var notFound *types.ErrProfileNotFound
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "nobody", notFound.UserID)
}

func TestEvaluator_ProfileStoreErrorIsFatal(t *testing.T) {
	model := scriptedModel(`{"keywords":["Go"]}`, nil)
	e, err := New(model, &fakeProfiles{err: errors.New("connection refused")}, &fakeIndex{}, newJobs(), Options{})
	require.NoError(t, err)

	_, err = e.Run(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEvaluator_IndexFailureThenRetry(t *testing.T) {
	ctx := context.Background()
	index := &fakeIndex{err: errors.New("index unavailable"), hits: []types.ScoredJob{{JobID: "job1"}}}
	model := scriptedModel(`{"keywords":["Go"]}`, map[string]string{"job1": evalJSON(77, "fine")})
	e := newTestEvaluator(t, model, index, newJobs("job1"), Options{})

	_, err := e.RunWithID(ctx, "run-1", "user-1")
	require.Error(t, err)
	var nodeErr *pipeline.NodeError
	require.True(t, errors.As(err, &nodeErr))
	assert.Equal(t, NodeRetrieveBySimilarity, nodeErr.Node)

	_, status, err := e.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusFailed, status)

	index.err = nil
	state, err := e.Retry(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, state.Evaluations, 1)
	assert.Equal(t, 77, state.Evaluations["job1"].FitScore)
}

func TestEvaluator_HydrateDeduplicatesAcrossBatches(t *testing.T) {
	jobs := newJobs("a", "b", "c")
	jobs.dupes = true
	e := newTestEvaluator(t, scriptedModel(`{"keywords":[]}`, nil), &fakeIndex{}, jobs, Options{})

	state := &types.MultiJobEvaluationState{
		RunID:  "run-1",
		UserID: "user-1",
		JobIDs: [][]string{{"a", "b"}, {"b", "c", "a"}, {"c"}},
	}
	require.NoError(t, e.hydrateJobs(context.Background(), state))

	require.Len(t, jobs.calls, 1)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, jobs.calls[0])
	assert.Len(t, state.Jobs, 3)

	ids := map[string]int{}
	for _, j := range state.Jobs {
		ids[j.ID]++
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, ids)
}

func TestUniqueJobIDs(t *testing.T) {
	tests := []struct {
		name    string
		batches [][]string
		want    []string
	}{
		{name: "nil", batches: nil, want: nil},
		{name: "single batch", batches: [][]string{{"a", "b"}}, want: []string{"a", "b"}},
		{name: "repeats across batches", batches: [][]string{{"a", "b"}, {"b", "c"}}, want: []string{"a", "b", "c"}},
		{name: "blanks dropped", batches: [][]string{{"", "a", ""}}, want: []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UniqueJobIDs(tt.batches))
		})
	}
}

func TestEvaluator_PromptCarriesFlattenedDescription(t *testing.T) {
	var (
		mu      sync.Mutex
		prompts []string
	)
	base := scriptedModel(`{"keywords":["Go"]}`, map[string]string{"job1": evalJSON(60, "ok")})
	model := &MockLLMClient{
		GenerateStructuredFunc: func(ctx context.Context, req llm.StructuredRequest) (string, error) {
			if req.Schema == schemas.JobEvaluation {
				mu.Lock()
				prompts = append(prompts, req.SystemPrompt)
				mu.Unlock()
			}
			return base.GenerateStructuredFunc(ctx, req)
		},
	}
	e := newTestEvaluator(t, model, &fakeIndex{hits: []types.ScoredJob{{JobID: "job1"}}}, newJobs("job1"), Options{})

	_, err := e.Run(context.Background(), "user-1")
	require.NoError(t, err)

	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Build services in Go")
	assert.NotContains(t, prompts[0], "<p>")
	assert.Contains(t, prompts[0], "Company job1")
	assert.Contains(t, prompts[0], "Skills: Go, Python")
}

func TestEvaluator_ProgressEvents(t *testing.T) {
	index := &fakeIndex{hits: []types.ScoredJob{{JobID: "job1"}, {JobID: "job2"}}}
	model := scriptedModel(`{"keywords":["Go"]}`, map[string]string{
		"job1": evalJSON(80, "ok"),
		"job2": "error:boom",
	})
	e := newTestEvaluator(t, model, index, newJobs("job1", "job2"), Options{})

	var (
		mu     sync.Mutex
		events []pipeline.ProgressEvent
	)
	ctx := pipeline.WithProgress(context.Background(), func(ev pipeline.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})

	_, err := e.RunWithID(ctx, "run-1", "user-1")
	require.NoError(t, err)

	counts := map[string]int{}
	for _, ev := range events {
		assert.Equal(t, GraphName, ev.Graph)
		assert.Equal(t, "run-1", ev.ThreadID)
		counts[ev.Status]++
	}
	assert.Equal(t, 5, counts[pipeline.EventStarted])
	assert.Equal(t, 5, counts[pipeline.EventCompleted])
	assert.Equal(t, 1, counts[pipeline.EventTaskCompleted])
	assert.Equal(t, 1, counts[pipeline.EventTaskFailed])
}

type fakeEvaluations struct {
	saved map[string]types.StoredEvaluation
}

func (f *fakeEvaluations) SaveEvaluations(_ context.Context, userID string, evs []types.JobEvaluation) ([]types.StoredEvaluation, error) {
	if f.saved == nil {
		f.saved = map[string]types.StoredEvaluation{}
	}
	out := make([]types.StoredEvaluation, 0, len(evs))
	for i, ev := range evs {
		s := types.StoredEvaluation{
			ID:        fmt.Sprintf("eval-%d", i+1),
			UserID:    userID,
			JobID:     ev.JobID,
			FitScore:  ev.FitScore,
			Rationale: ev.Rationale,
			CreatedAt: time.Now(),
		}
		f.saved[s.ID] = s
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeEvaluations) ListEvaluations(_ context.Context, userID string) ([]types.StoredEvaluation, error) {
	var out []types.StoredEvaluation
	for _, s := range f.saved {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeEvaluations) RateEvaluation(_ context.Context, id string, score int, feedback *string) (*types.StoredEvaluation, error) {
	s, ok := f.saved[id]
	if !ok {
		return nil, nil
	}
	s.UserScore = &score
	s.UserFeedback = feedback
	f.saved[id] = s
	return &s, nil
}

func TestEvaluator_SaveAndRate(t *testing.T) {
	ctx := context.Background()
	store := &fakeEvaluations{}
	index := &fakeIndex{hits: []types.ScoredJob{{JobID: "job1"}, {JobID: "job2"}}}
	model := scriptedModel(`{"keywords":["Go"]}`, map[string]string{
		"job1": evalJSON(55, "ok"),
		"job2": evalJSON(95, "great"),
	})
	e := newTestEvaluator(t, model, index, newJobs("job1", "job2"), Options{Evaluations: store})

	state, err := e.Run(ctx, "user-1")
	require.NoError(t, err)

	saved, err := e.SaveResults(ctx, state)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "job2", saved[0].JobID, "saved best first")

	history, err := e.History(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	score := 4
	rated, err := e.RateEvaluation(ctx, saved[0].ID, &types.RateEvaluationRequest{UserScore: &score})
	require.NoError(t, err)
	require.NotNil(t, rated.UserScore)
	assert.Equal(t, 4, *rated.UserScore)

	_, err = e.RateEvaluation(ctx, "missing", &types.RateEvaluationRequest{UserScore: &score})
	var notFound *types.ErrEvaluationNotFound
	assert.True(t, errors.As(err, &notFound))

	tooHigh := 6
	_, err = e.RateEvaluation(ctx, saved[0].ID, &types.RateEvaluationRequest{UserScore: &tooHigh})
	assert.Error(t, err)
}

func TestEvaluator_SaveWithoutStore(t *testing.T) {
	e := newTestEvaluator(t, scriptedModel(`{"keywords":[]}`, nil), &fakeIndex{}, newJobs(), Options{})
	_, err := e.SaveResults(context.Background(), &types.MultiJobEvaluationState{})
	assert.Error(t, err)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	model := scriptedModel("", nil)
	profiles := &fakeProfiles{}
	index := &fakeIndex{}
	jobs := newJobs()

	_, err := New(nil, profiles, index, jobs, Options{})
	assert.Error(t, err)
	_, err = New(model, nil, index, jobs, Options{})
	assert.Error(t, err)
	_, err = New(model, profiles, nil, jobs, Options{})
	assert.Error(t, err)
	_, err = New(model, profiles, index, nil, Options{})
	assert.Error(t, err)
}

func TestEvaluator_CancelDuringFitKeepsFinishedEvaluations(t *testing.T) {
	cp, err := pipeline.OpenSQLiteCheckpointer(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cp.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	model := &MockLLMClient{
		GenerateStructuredFunc: func(_ context.Context, req llm.StructuredRequest) (string, error) {
			if req.Schema == schemas.KeywordList {
				return `{"keywords":["Go"]}`, nil
			}
			once.Do(cancel)
			return evalJSON(75, "solid"), nil
		},
	}
	index := &fakeIndex{hits: []types.ScoredJob{{JobID: "a"}, {JobID: "b"}, {JobID: "c"}}}
	e := newTestEvaluator(t, model, index, newJobs("a", "b", "c"), Options{Checkpointer: cp, Concurrency: 1})

	state, err := e.RunWithID(ctx, "run-1", "user-1")
	require.NoError(t, err)
	assert.Len(t, state.Evaluations, 1)
	require.Len(t, state.Failures, 2)
	for _, f := range state.Failures {
		assert.Contains(t, f.Error, context.Canceled.Error())
	}

	stored, status, err := e.Get(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCompleted, status)
	assert.Len(t, stored.Evaluations, 1)
	assert.Len(t, stored.Failures, 2)
}

func TestEvaluator_RateRun(t *testing.T) {
	index := &fakeIndex{hits: []types.ScoredJob{{JobID: "job1"}}}
	model := scriptedModel(`{"keywords":["Go"]}`, map[string]string{"job1": evalJSON(80, "good")})
	e := newTestEvaluator(t, model, index, newJobs("job1"), Options{})
	ctx := context.Background()

	_, err := e.RunWithID(ctx, "done", "user-1")
	require.NoError(t, err)
	_, err = e.RunWithID(ctx, "broken", "nobody")
	require.Error(t, err)

	score, tooHigh := 4, 9
	feedback := "spot on"

	tests := []struct {
		name    string
		runID   string
		req     *types.RateEvaluationRequest
		wantErr string
	}{
		{name: "completed run", runID: "done", req: &types.RateEvaluationRequest{UserScore: &score, UserFeedback: &feedback}},
		{name: "score out of range", runID: "done", req: &types.RateEvaluationRequest{UserScore: &tooHigh}, wantErr: "UserScore"},
		{name: "failed run", runID: "broken", req: &types.RateEvaluationRequest{UserScore: &score}, wantErr: "only completed runs"},
		{name: "unknown run", runID: "nope", req: &types.RateEvaluationRequest{UserScore: &score}, wantErr: "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := e.RateRun(ctx, tt.runID, tt.req)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, state.UserScore)
			assert.Equal(t, 4, *state.UserScore)
			assert.Equal(t, &feedback, state.UserFeedback)
			assert.Len(t, state.Evaluations, 1)

			stored, status, err := e.Get(ctx, tt.runID)
			require.NoError(t, err)
			assert.Equal(t, pipeline.StatusCompleted, status)
			require.NotNil(t, stored.UserScore)
			assert.Equal(t, 4, *stored.UserScore)
		})
	}
}
