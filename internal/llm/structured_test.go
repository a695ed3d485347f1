package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-matcher/internal/schemas"
	"github.com/jonathan/job-matcher/internal/types"
	schemafiles "github.com/jonathan/job-matcher/schemas"
)

// MockLLMClient implements Client for testing
type MockLLMClient struct {
	GenerateStructuredFunc func(ctx context.Context, req StructuredRequest) (string, error)
	EmbedFunc              func(ctx context.Context, text string) ([]float32, error)
}

func (m *MockLLMClient) GenerateStructured(ctx context.Context, req StructuredRequest) (string, error) {
	return m.GenerateStructuredFunc(ctx, req)
}

func (m *MockLLMClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.EmbedFunc(ctx, text)
}

func (m *MockLLMClient) GetModel(ModelTier) string { return "mock-model" }

func (m *MockLLMClient) Close() error { return nil }

func respond(body string) *MockLLMClient {
	return &MockLLMClient{
		GenerateStructuredFunc: func(context.Context, StructuredRequest) (string, error) {
			return body, nil
		},
	}
}

func TestInvokeStructured_Success(t *testing.T) {
	client := respond("```json\n{\"fit_score\": 87, \"rationale\": \"Go and SQL match\"}\n```")

	eval, err := InvokeStructured[types.JobEvaluation](context.Background(), client, StructuredRequest{
		SystemPrompt: "sys",
		UserPrompt:   "user",
		Schema:       schemafiles.JobEvaluation,
	})
	require.NoError(t, err)
	assert.Equal(t, 87, eval.FitScore)
	assert.Equal(t, "Go and SQL match", eval.Rationale)
}

func TestInvokeStructured_PassesRequestThrough(t *testing.T) {
	var got StructuredRequest
	client := &MockLLMClient{
		GenerateStructuredFunc: func(_ context.Context, req StructuredRequest) (string, error) {
			got = req
			return `{"keywords": ["Go"]}`, nil
		},
	}

	req := StructuredRequest{SystemPrompt: "s", UserPrompt: "u", Schema: schemafiles.KeywordList, Tier: TierStandard}
	_, err := InvokeStructured[types.KeywordList](context.Background(), client, req)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestInvokeStructured_ScoreOutOfRangeIsRejected(t *testing.T) {
	client := respond(`{"fit_score": 150, "rationale": "perfect"}`)

	eval, err := InvokeStructured[types.JobEvaluation](context.Background(), client, StructuredRequest{
		Schema: schemafiles.JobEvaluation,
	})
	assert.Nil(t, eval)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	var schemaErr *schemas.ValidationError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "fit_score", schemaErr.Errors[0].Field)
}

func TestInvokeStructured_StructTagsCheckedWithoutSchema(t *testing.T) {
	client := respond(`{"fit_score": 0, "rationale": "none"}`)

	_, err := InvokeStructured[types.JobEvaluation](context.Background(), client, StructuredRequest{})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestInvokeStructured_MalformedOutput(t *testing.T) {
	client := respond(`I am unable to produce JSON today.`)

	_, err := InvokeStructured[types.KeywordList](context.Background(), client, StructuredRequest{
		Schema: schemafiles.KeywordList,
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestInvokeStructured_CallErrorIsNotValidationError(t *testing.T) {
	callErr := errors.New("deadline exceeded")
	client := &MockLLMClient{
		GenerateStructuredFunc: func(context.Context, StructuredRequest) (string, error) {
			return "", callErr
		},
	}

	_, err := InvokeStructured[types.KeywordList](context.Background(), client, StructuredRequest{Schema: schemafiles.KeywordList})
	assert.ErrorIs(t, err, callErr)
	assert.False(t, IsValidationError(err))
}

func TestInvokeStructured_UnknownSchema(t *testing.T) {
	client := respond(`{}`)

	_, err := InvokeStructured[types.KeywordList](context.Background(), client, StructuredRequest{Schema: "missing"})
	var loadErr *schemas.SchemaLoadError
	assert.True(t, errors.As(err, &loadErr))
	assert.False(t, IsValidationError(err))
}

func TestNewClient_Errors(t *testing.T) {
	_, err := NewClient(context.Background(), DefaultConfig(), "")
	assert.ErrorContains(t, err, "API key is required")

	cfg := DefaultConfig()
	cfg.Provider = "other"
	_, err = NewClient(context.Background(), cfg, "key")
	assert.ErrorContains(t, err, "unsupported")
}
