package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/job-matcher/internal/logger"
)

// StructuredRequest is one structured model call: a system prompt, a user prompt
// and the name of the JSON Schema the answer must satisfy.
type StructuredRequest struct {
	SystemPrompt string
	UserPrompt   string
	Schema       string
	Tier         ModelTier
}

// Client is an abstraction over LLM providers
type Client interface {
	// GenerateStructured returns the raw JSON text produced for the request.
	// Validation against the schema is done by InvokeStructured.
	GenerateStructured(ctx context.Context, req StructuredRequest) (string, error)
	// Embed returns the embedding vector for a text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// GetModel returns the provider model name for a tier
	GetModel(tier ModelTier) string
	// Close releases any resources held by the client
	Close() error
}

// Embedder is the subset of Client used by vector indexing and search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Option configures a client.
type Option func(*clientOptions)

type clientOptions struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for call diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string, opts ...Option) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid LLM config: %w", err)
	}

	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey, logger.OrNop(o.logger))
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", config.Provider)
	}
}
