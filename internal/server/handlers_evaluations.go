package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/job-matcher/internal/pipeline"
	"github.com/jonathan/job-matcher/internal/types"
)

// EvaluationResponse is the result of an evaluation run
type EvaluationResponse struct {
	RunID    string                   `json:"run_id"`
	UserID   string                   `json:"user_id"`
	Results  []types.RankedJob        `json:"results"`
	Failures []types.TaskFailure      `json:"failures,omitempty"`
	Saved    []types.StoredEvaluation `json:"saved,omitempty"`
}

func newEvaluationResponse(state *types.MultiJobEvaluationState) EvaluationResponse {
	return EvaluationResponse{
		RunID:    state.RunID,
		UserID:   state.UserID,
		Results:  state.RankedJobs(),
		Failures: state.Failures,
	}
}

// saveRequested reports whether the caller asked for results to be stored.
func saveRequested(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("save")
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

// handleEvaluate runs the job evaluator for a user
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	save, err := saveRequested(r)
	if err != nil {
		s.serviceError(w, r, &ErrValidation{Field: "save", Message: "must be a boolean"})
		return
	}

	state, err := s.deps.Evaluations.RunWithID(r.Context(), uuid.New().String(), userID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	resp := newEvaluationResponse(state)
	if save {
		saved, err := s.deps.Evaluations.SaveResults(r.Context(), state)
		if err != nil {
			s.serviceError(w, r, err)
			return
		}
		resp.Saved = saved
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleEvaluateStream runs the job evaluator and streams progress over SSE.
// Events: started, progress (one per node and scoring task), result, then
// complete, or error.
func (s *Server) handleEvaluateStream(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	save, err := saveRequested(r)
	if err != nil {
		s.serviceError(w, r, &ErrValidation{Field: "save", Message: "must be a boolean"})
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	runID := uuid.New().String()
	sse.WriteEvent("started", map[string]string{"run_id": runID, "user_id": userID}) //nolint:errcheck

	ctx := pipeline.WithProgress(r.Context(), func(ev pipeline.ProgressEvent) {
		if err := sse.WriteEvent("progress", ev); err != nil {
			s.logger.Debug("dropping progress event", zap.Error(err))
		}
	})

	state, err := s.deps.Evaluations.RunWithID(ctx, runID, userID)
	if err != nil {
		s.logger.Warn("streamed evaluation failed", zap.String("run_id", runID), zap.Error(err))
		sse.WriteError(err.Error(), HTTPStatus(err))
		return
	}

	resp := newEvaluationResponse(state)
	if save {
		saved, err := s.deps.Evaluations.SaveResults(r.Context(), state)
		if err != nil {
			sse.WriteError(err.Error(), HTTPStatus(err))
			return
		}
		resp.Saved = saved
	}
	sse.WriteEvent("result", resp) //nolint:errcheck
	sse.WriteComplete(runID, string(pipeline.StatusCompleted))
}

// handleListEvaluations returns the user's stored evaluations, best first
func (s *Server) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	evaluations, err := s.deps.Evaluations.History(r.Context(), r.PathValue("user_id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if evaluations == nil {
		evaluations = []types.StoredEvaluation{}
	}
	s.jsonResponse(w, http.StatusOK, evaluations)
}

// handleRateEvaluation records the user's rating of a stored evaluation
func (s *Server) handleRateEvaluation(w http.ResponseWriter, r *http.Request) {
	var req types.RateEvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	rated, err := s.deps.Evaluations.RateEvaluation(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, rated)
}
