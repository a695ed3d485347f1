//nolint:revive // types is a standard Go package name pattern
package types

import "github.com/go-playground/validator/v10"

// validate caches struct metadata across calls; it is safe for concurrent use.
var validate = validator.New()

// StartProfileRequest starts a profile-building session.
type StartProfileRequest struct {
	SessionID   string `json:"session_id,omitempty"`
	UserID      string `json:"user_id" validate:"required,uuid"`
	CV          string `json:"cv" validate:"required_without=CoverLetter"`
	CoverLetter string `json:"cover_letter" validate:"required_without=CV"`
}

// FeedbackRequest resumes a suspended session. A null or empty feedback accepts the profile.
type FeedbackRequest struct {
	Feedback *string `json:"feedback"`
}

// RateEvaluationRequest records the user's own rating of an evaluation.
type RateEvaluationRequest struct {
	UserScore    *int    `json:"user_score" validate:"required,min=0,max=5"`
	UserFeedback *string `json:"user_feedback,omitempty" validate:"omitempty,max=4000"`
}

// CreateUserRequest registers a user that profiles and evaluations belong to.
type CreateUserRequest struct {
	Email string `json:"email,omitempty" validate:"omitempty,email,max=320"`
	Name  string `json:"name" validate:"required,max=200"`
}

// Validate validates the CreateUserRequest using the validator.
func (r *CreateUserRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the StartProfileRequest using the validator.
func (r *StartProfileRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the RateEvaluationRequest using the validator.
func (r *RateEvaluationRequest) Validate() error {
	return validate.Struct(r)
}
