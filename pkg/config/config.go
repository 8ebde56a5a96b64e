package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ErrMissingCredential is returned when the provider selected by the model
// name has no API key configured.
var ErrMissingCredential = errors.New("missing credential")

const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
)

// Config is built once at process start and handed to constructors.
type Config struct {
	Model         string `toml:"model" envconfig:"LANGEXTRACT_MODEL"`
	OpenAIAPIKey  string `toml:"-" envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `toml:"openai_base_url" envconfig:"OPENAI_BASE_URL"`
	GoogleAPIKey  string `toml:"-" envconfig:"GOOGLE_API_KEY"`

	ResultsDir string `toml:"results_dir" envconfig:"BUNSEKI_RESULTS_DIR"`
	LogLevel   string `toml:"log_level" envconfig:"BUNSEKI_LOG_LEVEL"`

	Extract ExtractConfig `toml:"extract"`
	Fetch   FetchConfig   `toml:"fetch"`
	S3      S3Config      `toml:"s3"`
}

// ExtractConfig holds the orchestrator and scaling-mode tunables.
type ExtractConfig struct {
	MaxChunkSize      int           `toml:"max_chunk_size" envconfig:"BUNSEKI_MAX_CHUNK_SIZE"`
	UseScaling        bool          `toml:"use_scaling" envconfig:"BUNSEKI_USE_SCALING"`
	ExtractionPasses  int           `toml:"extraction_passes" envconfig:"BUNSEKI_EXTRACTION_PASSES"`
	MaxWorkers        int           `toml:"max_workers" envconfig:"BUNSEKI_MAX_WORKERS"`
	MaxCharBuffer     int           `toml:"max_char_buffer" envconfig:"BUNSEKI_MAX_CHAR_BUFFER"`
	ChunkDelay        time.Duration `toml:"chunk_delay" envconfig:"BUNSEKI_CHUNK_DELAY"`
	RateLimitCooldown time.Duration `toml:"rate_limit_cooldown" envconfig:"BUNSEKI_RATE_LIMIT_COOLDOWN"`
	NarrowSize        int           `toml:"narrow_size" envconfig:"BUNSEKI_NARROW_SIZE"`
	NarrowAttempts    int           `toml:"narrow_attempts" envconfig:"BUNSEKI_NARROW_ATTEMPTS"`
}

type FetchConfig struct {
	Timeout   time.Duration `toml:"timeout" envconfig:"BUNSEKI_FETCH_TIMEOUT"`
	RateLimit float64       `toml:"rate_limit" envconfig:"BUNSEKI_FETCH_RATE_LIMIT"`
	BaseURL   string        `toml:"base_url" envconfig:"BUNSEKI_AOZORA_BASE_URL"`
}

// S3Config enables mirroring of saved results. An empty Bucket disables it.
type S3Config struct {
	Bucket   string `toml:"bucket" envconfig:"BUNSEKI_S3_BUCKET"`
	Prefix   string `toml:"prefix" envconfig:"BUNSEKI_S3_PREFIX"`
	Region   string `toml:"region" envconfig:"BUNSEKI_S3_REGION"`
	Endpoint string `toml:"endpoint" envconfig:"BUNSEKI_S3_ENDPOINT"`
	Key      string `toml:"-" envconfig:"BUNSEKI_S3_KEY"`
	Secret   string `toml:"-" envconfig:"BUNSEKI_S3_SECRET"`
}

// Defaults returns a Config populated with built-in default values.
func Defaults() *Config {
	return &Config{
		Model:      "gemini-2.0-flash-exp",
		ResultsDir: "data/results",
		LogLevel:   "info",
		Extract: ExtractConfig{
			MaxChunkSize:      3000,
			UseScaling:        true,
			ExtractionPasses:  2,
			MaxWorkers:        10,
			MaxCharBuffer:     1000,
			ChunkDelay:        2 * time.Second,
			RateLimitCooldown: 60 * time.Second,
			NarrowSize:        1000,
			NarrowAttempts:    3,
		},
		Fetch: FetchConfig{
			Timeout:   30 * time.Second,
			RateLimit: 1.0,
		},
		S3: S3Config{
			Prefix: "bunseki",
			Region: "us-east-1",
		},
	}
}

// Load layers defaults, an optional TOML file, a .env file and the process
// environment, in that order. A missing TOML file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	_ = godotenv.Load()

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	return cfg, nil
}

// Provider reports which credential family the model name selects.
func (c *Config) Provider() string {
	if strings.Contains(strings.ToLower(c.Model), "gpt") {
		return ProviderOpenAI
	}
	return ProviderGoogle
}

// Credential returns the API key for the selected provider.
func (c *Config) Credential() (string, error) {
	switch c.Provider() {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return "", fmt.Errorf("%w: OPENAI_API_KEY is required for model %q", ErrMissingCredential, c.Model)
		}
		return c.OpenAIAPIKey, nil
	default:
		if c.GoogleAPIKey == "" {
			return "", fmt.Errorf("%w: GOOGLE_API_KEY is required for model %q", ErrMissingCredential, c.Model)
		}
		return c.GoogleAPIKey, nil
	}
}

// Validate checks the settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Model == "" {
		return errors.New("model must not be empty")
	}
	if _, err := c.Credential(); err != nil {
		return err
	}
	if c.Extract.MaxChunkSize <= 0 {
		return fmt.Errorf("max_chunk_size must be positive, got %d", c.Extract.MaxChunkSize)
	}
	if c.Extract.NarrowSize <= 0 {
		return fmt.Errorf("narrow_size must be positive, got %d", c.Extract.NarrowSize)
	}
	return nil
}
