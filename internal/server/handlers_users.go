package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/job-matcher/internal/types"
)

// CreateUserResponse is the response for POST /users
type CreateUserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name"`
}

// handleCreateUser registers a user
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req types.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := req.Validate(); err != nil {
		s.serviceError(w, r, err)
		return
	}

	id, err := s.deps.Users.CreateUser(r.Context(), req.Email, req.Name)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	s.logger.Info("user created", zap.String("user_id", id.String()))
	s.jsonResponse(w, http.StatusCreated, CreateUserResponse{ID: id.String(), Email: req.Email, Name: req.Name})
}

// handleGetProfile returns the user's stored profile
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	p, err := s.deps.Users.GetProfileByUser(r.Context(), userID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if p == nil {
		s.serviceError(w, r, &types.ErrProfileNotFound{UserID: userID})
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}
