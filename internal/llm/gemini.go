package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/schemas"
)

const previewLimit = 300

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client  *genai.Client
	config  *Config
	limiter *rate.Limiter
	logger  *zap.Logger

	schemaMu sync.Mutex
	schemas  map[string]*genai.Schema
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string, log *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return &GeminiClient{
		client:  client,
		config:  config,
		limiter: limiter,
		logger:  logger.WithCommonFields(log, string(ProviderGemini), ""),
		schemas: make(map[string]*genai.Schema),
	}, nil
}

// GenerateStructured runs one JSON-mode generation constrained by the request schema.
func (c *GeminiClient) GenerateStructured(ctx context.Context, req StructuredRequest) (string, error) {
	modelName := c.config.GetModel(req.Tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", req.Tier)
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	if err := c.wait(ctx); err != nil {
		return "", err
	}

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(c.config.Temperature)
	model.ResponseMIMEType = "application/json"
	if req.SystemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemPrompt))
	}
	if req.Schema != "" {
		schema, err := c.responseSchema(req.Schema)
		if err != nil {
			return "", err
		}
		model.ResponseSchema = schema
	}

	log := c.logger.With(zap.String(logger.FieldModel, modelName), zap.String("schema", req.Schema))
	log.Debug("sending structured request",
		zap.String("prompt_preview", logger.TruncateForLog(req.SystemPrompt, previewLimit)))

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(req.UserPrompt))
	if err != nil {
		log.Warn("structured request failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", err
	}

	log.Debug("received structured response",
		zap.Duration("elapsed", time.Since(start)),
		zap.String("response_preview", logger.TruncateForLog(text, previewLimit)))

	return CleanJSONBlock(text), nil
}

// Embed returns the embedding vector for text using the configured embedding model.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.config.EmbeddingModel == "" {
		return nil, fmt.Errorf("no embedding model configured")
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	em := c.client.EmbeddingModel(c.config.EmbeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}
	return res.Embedding.Values, nil
}

// GetModel returns the model name for a tier
func (c *GeminiClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *GeminiClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.Timeout > 0 {
		return context.WithTimeout(ctx, c.config.Timeout)
	}
	return context.WithCancel(ctx)
}

func (c *GeminiClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

func (c *GeminiClient) responseSchema(name string) (*genai.Schema, error) {
	c.schemaMu.Lock()
	defer c.schemaMu.Unlock()

	if s, ok := c.schemas[name]; ok {
		return s, nil
	}

	raw, err := schemas.Load(name)
	if err != nil {
		return nil, err
	}
	s, err := toGenaiSchema(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert schema %s: %w", name, err)
	}
	c.schemas[name] = s
	return s, nil
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
