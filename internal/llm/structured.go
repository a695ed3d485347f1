package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/job-matcher/internal/schemas"
)

// ValidationError reports model output that does not conform to the requested schema.
// It is never retried automatically.
type ValidationError struct {
	Schema string
	Raw    string
	Cause  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("model output failed %s validation: %v", e.Schema, e.Cause)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

var validate = validator.New()

// InvokeStructured performs a structured call and decodes the answer into T.
// The raw JSON is checked against the request schema, decoded, and then checked
// against T's validate tags. Any mismatch is a *ValidationError.
func InvokeStructured[T any](ctx context.Context, client Client, req StructuredRequest) (*T, error) {
	raw, err := client.GenerateStructured(ctx, req)
	if err != nil {
		return nil, err
	}
	raw = CleanJSONBlock(raw)

	if req.Schema != "" {
		if err := schemas.Validate(req.Schema, raw); err != nil {
			var loadErr *schemas.SchemaLoadError
			if errors.As(err, &loadErr) {
				return nil, err
			}
			return nil, &ValidationError{Schema: req.Schema, Raw: raw, Cause: err}
		}
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, &ValidationError{Schema: req.Schema, Raw: raw, Cause: fmt.Errorf("failed to decode: %w", err)}
	}

	if err := validate.Struct(&out); err != nil {
		var invalid *validator.InvalidValidationError
		if !errors.As(err, &invalid) {
			return nil, &ValidationError{Schema: req.Schema, Raw: raw, Cause: err}
		}
	}

	return &out, nil
}

// IsValidationError reports whether err is, or wraps, a model output validation failure.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
