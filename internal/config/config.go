// Package config loads job-matcher settings from an optional config file and
// the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonathan/job-matcher/internal/llm"
)

// EnvPrefix prefixes every environment override, e.g. JOB_MATCHER_EVALUATOR_TOP_K.
const EnvPrefix = "JOB_MATCHER"

// Config is the full application configuration.
type Config struct {
	DatabaseURL string `mapstructure:"database_url" json:"database_url,omitempty"`
	// CheckpointPath is the SQLite file used for CLI sessions when no database is configured.
	CheckpointPath string `mapstructure:"checkpoint_path" json:"checkpoint_path,omitempty"`
	APIKey         string `mapstructure:"api_key" json:"-"`

	LLM       LLMConfig       `mapstructure:"llm" json:"llm"`
	Evaluator EvaluatorConfig `mapstructure:"evaluator" json:"evaluator"`
	Profile   ProfileConfig   `mapstructure:"profile" json:"profile"`
	Server    ServerConfig    `mapstructure:"server" json:"server"`
	Log       LogConfig       `mapstructure:"log" json:"log"`
}

// LLMConfig selects the models and call limits.
type LLMConfig struct {
	Provider            string        `mapstructure:"provider" json:"provider"`
	LiteModel           string        `mapstructure:"lite_model" json:"lite_model"`
	StandardModel       string        `mapstructure:"standard_model" json:"standard_model"`
	AdvancedModel       string        `mapstructure:"advanced_model" json:"advanced_model"`
	EmbeddingModel      string        `mapstructure:"embedding_model" json:"embedding_model"`
	EmbeddingDimensions int           `mapstructure:"embedding_dimensions" json:"embedding_dimensions"`
	Temperature         float32       `mapstructure:"temperature" json:"temperature"`
	Timeout             time.Duration `mapstructure:"timeout" json:"timeout"`
	RequestsPerSecond   float64       `mapstructure:"requests_per_second" json:"requests_per_second"`
	Burst               int           `mapstructure:"burst" json:"burst"`
}

// EvaluatorConfig tunes retrieval and scoring.
type EvaluatorConfig struct {
	TopK        int `mapstructure:"top_k" json:"top_k"`
	Concurrency int `mapstructure:"concurrency" json:"concurrency"`
}

// ProfileConfig tunes the profile builder.
type ProfileConfig struct {
	StrictGrounding       bool `mapstructure:"strict_grounding" json:"strict_grounding"`
	FallbackOnLookupError bool `mapstructure:"fallback_on_lookup_error" json:"fallback_on_lookup_error"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `mapstructure:"port" json:"port"`
	// RateLimit is the sustained requests per second allowed per client. Zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" json:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" json:"rate_burst"`
}

// LogConfig selects the log encoder and level.
type LogConfig struct {
	JSON  bool `mapstructure:"json" json:"json"`
	Debug bool `mapstructure:"debug" json:"debug"`
}

// Default returns the built-in configuration.
func Default() Config {
	lc := llm.DefaultConfig()
	return Config{
		CheckpointPath: ".job-matcher/checkpoints.db",
		LLM: LLMConfig{
			Provider:            string(lc.Provider),
			LiteModel:           lc.Models[llm.TierLite],
			StandardModel:       lc.Models[llm.TierStandard],
			AdvancedModel:       lc.Models[llm.TierAdvanced],
			EmbeddingModel:      lc.EmbeddingModel,
			EmbeddingDimensions: 768,
			Temperature:         lc.Temperature,
			Timeout:             lc.Timeout,
			RequestsPerSecond:   lc.RequestsPerSecond,
			Burst:               lc.Burst,
		},
		Evaluator: EvaluatorConfig{TopK: 20, Concurrency: 8},
		Server:    ServerConfig{Port: 8080, RateLimit: 2, RateBurst: 5},
	}
}

// NewViper returns a viper instance with the defaults registered and the
// environment bound. Callers may bind command-line flags before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("database_url", d.DatabaseURL)
	v.SetDefault("checkpoint_path", d.CheckpointPath)
	v.SetDefault("api_key", "")
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.lite_model", d.LLM.LiteModel)
	v.SetDefault("llm.standard_model", d.LLM.StandardModel)
	v.SetDefault("llm.advanced_model", d.LLM.AdvancedModel)
	v.SetDefault("llm.embedding_model", d.LLM.EmbeddingModel)
	v.SetDefault("llm.embedding_dimensions", d.LLM.EmbeddingDimensions)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.requests_per_second", d.LLM.RequestsPerSecond)
	v.SetDefault("llm.burst", d.LLM.Burst)
	v.SetDefault("evaluator.top_k", d.Evaluator.TopK)
	v.SetDefault("evaluator.concurrency", d.Evaluator.Concurrency)
	v.SetDefault("profile.strict_grounding", d.Profile.StrictGrounding)
	v.SetDefault("profile.fallback_on_lookup_error", d.Profile.FallbackOnLookupError)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.rate_burst", d.Server.RateBurst)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.debug", d.Log.Debug)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The prefixed variable takes precedence over the conventional name.
	_ = v.BindEnv("database_url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("api_key", EnvPrefix+"_API_KEY", "GEMINI_API_KEY")
	return v
}

// Load reads the config file at path (JSON or YAML, optional) into v and
// returns the merged configuration. An empty path loads defaults and
// environment only.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	merged := cfg.MergeWithDefaults(Default())
	return &merged, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields such as the database URL since
// those depend on the command being run.
func (c *Config) Validate() error {
	if c.Evaluator.TopK < 0 {
		return fmt.Errorf("config error: 'evaluator.top_k' must be non-negative")
	}
	if c.Evaluator.Concurrency < 0 {
		return fmt.Errorf("config error: 'evaluator.concurrency' must be non-negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config error: 'server.port' must be between 0 and 65535")
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("config error: 'server.rate_limit' and 'server.rate_burst' must be non-negative")
	}
	if c.LLM.EmbeddingDimensions <= 0 {
		return fmt.Errorf("config error: 'llm.embedding_dimensions' must be positive")
	}
	if err := c.LLM.ToLLM().Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.CheckpointPath == "" {
		result.CheckpointPath = defaults.CheckpointPath
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.LLM.Provider == "" {
		result.LLM.Provider = defaults.LLM.Provider
	}
	if result.LLM.LiteModel == "" {
		result.LLM.LiteModel = defaults.LLM.LiteModel
	}
	if result.LLM.StandardModel == "" {
		result.LLM.StandardModel = defaults.LLM.StandardModel
	}
	if result.LLM.AdvancedModel == "" {
		result.LLM.AdvancedModel = defaults.LLM.AdvancedModel
	}
	if result.LLM.EmbeddingModel == "" {
		result.LLM.EmbeddingModel = defaults.LLM.EmbeddingModel
	}

	// Numeric fields: use default if zero
	if result.LLM.EmbeddingDimensions == 0 {
		result.LLM.EmbeddingDimensions = defaults.LLM.EmbeddingDimensions
	}
	if result.LLM.Timeout == 0 {
		result.LLM.Timeout = defaults.LLM.Timeout
	}
	if result.LLM.Burst == 0 {
		result.LLM.Burst = defaults.LLM.Burst
	}
	if result.Evaluator.TopK == 0 {
		result.Evaluator.TopK = defaults.Evaluator.TopK
	}
	if result.Evaluator.Concurrency == 0 {
		result.Evaluator.Concurrency = defaults.Evaluator.Concurrency
	}
	if result.Server.Port == 0 {
		result.Server.Port = defaults.Server.Port
	}
	if result.Server.RateBurst == 0 {
		result.Server.RateBurst = defaults.Server.RateBurst
	}

	// Temperature, rate limits and bools: zero is meaningful, so we don't merge

	return result
}

// ToLLM converts the section to the gateway configuration. Tiers without a
// model are left out so the gateway falls back to another tier.
func (c LLMConfig) ToLLM() *llm.Config {
	cfg := &llm.Config{
		Provider:          llm.Provider(c.Provider),
		Models:            map[llm.ModelTier]string{},
		EmbeddingModel:    c.EmbeddingModel,
		Temperature:       c.Temperature,
		Timeout:           c.Timeout,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
	}
	for tier, model := range map[llm.ModelTier]string{
		llm.TierLite:     c.LiteModel,
		llm.TierStandard: c.StandardModel,
		llm.TierAdvanced: c.AdvancedModel,
	} {
		if model != "" {
			cfg = cfg.WithModel(tier, model)
		}
	}
	return cfg
}
