package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/job-matcher/internal/types"
)

// handleStartSession starts a profile builder session and returns once the
// first draft awaits feedback.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req types.StartProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	req.CV = strings.TrimSpace(req.CV)
	req.CoverLetter = strings.TrimSpace(req.CoverLetter)
	if err := req.Validate(); err != nil {
		s.serviceError(w, r, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	handle, err := s.deps.Profiles.Run(r.Context(), [2]string{req.CV, req.CoverLetter}, req.SessionID, req.UserID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, handle)
}

// handleGetSession returns a session snapshot
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	handle, err := s.deps.Profiles.Get(r.Context(), r.PathValue("session_id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, handle)
}

// handleSessionFeedback resumes a session. An empty body, a null feedback or
// an empty string accepts the current profile.
func (s *Server) handleSessionFeedback(w http.ResponseWriter, r *http.Request) {
	var req types.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	handle, err := s.deps.Profiles.Resume(r.Context(), r.PathValue("session_id"), req.Feedback)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, handle)
}

// handleRetryWrite retries storing the profile of a completed session
func (s *Server) handleRetryWrite(w http.ResponseWriter, r *http.Request) {
	handle, err := s.deps.Profiles.RetryWrite(r.Context(), r.PathValue("session_id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, handle)
}
