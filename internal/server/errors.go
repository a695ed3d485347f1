package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/job-matcher/internal/llm"
	"github.com/jonathan/job-matcher/internal/pipeline"
	"github.com/jonathan/job-matcher/internal/profile"
	"github.com/jonathan/job-matcher/internal/types"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error. Errors are
// matched through wrapping, so a pipeline NodeError maps to its cause.
func HTTPStatus(err error) int {
	var (
		modelErr    *llm.ValidationError
		reqErr      *ErrValidation
		fieldErrs   validator.ValidationErrors
		userErr     *types.ErrUserNotFound
		profileErr  *types.ErrProfileNotFound
		evalErr     *types.ErrEvaluationNotFound
		emailExists *types.ErrEmailAlreadyExists
	)

	switch {
	case err == nil:
		return http.StatusOK
	// Model output that fails its schema is an upstream fault, even when the
	// cause is a struct validation error.
	case errors.As(err, &modelErr):
		return http.StatusBadGateway
	case errors.As(err, &reqErr), errors.As(err, &fieldErrs):
		return http.StatusBadRequest
	case errors.As(err, &userErr), errors.As(err, &profileErr), errors.As(err, &evalErr),
		errors.Is(err, pipeline.ErrCheckpointNotFound):
		return http.StatusNotFound
	case errors.As(err, &emailExists), errors.Is(err, pipeline.ErrThreadExists),
		errors.Is(err, profile.ErrNothingToRetry):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
