package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// unsetenv clears keys for the duration of the test; an empty value would
// still count as set for envconfig.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	unsetenv(t, "LANGEXTRACT_MODEL", "BUNSEKI_RESULTS_DIR")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model != "gemini-2.0-flash-exp" {
		t.Errorf("model = %q", cfg.Model)
	}
	if cfg.Extract.MaxChunkSize != 3000 {
		t.Errorf("max chunk size = %d", cfg.Extract.MaxChunkSize)
	}
	if cfg.Extract.ChunkDelay != 2*time.Second {
		t.Errorf("chunk delay = %v", cfg.Extract.ChunkDelay)
	}
	if cfg.Extract.RateLimitCooldown != time.Minute {
		t.Errorf("cooldown = %v", cfg.Extract.RateLimitCooldown)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bunseki.toml")
	body := `model = "gpt-4o"
results_dir = "out"

[extract]
max_chunk_size = 1500
chunk_delay = "500ms"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	unsetenv(t, "LANGEXTRACT_MODEL")
	t.Setenv("BUNSEKI_RESULTS_DIR", "env-out")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model != "gpt-4o" {
		t.Errorf("model = %q, want value from file", cfg.Model)
	}
	if cfg.ResultsDir != "env-out" {
		t.Errorf("results dir = %q, want env override", cfg.ResultsDir)
	}
	if cfg.Extract.MaxChunkSize != 1500 {
		t.Errorf("max chunk size = %d", cfg.Extract.MaxChunkSize)
	}
	if cfg.Extract.ChunkDelay != 500*time.Millisecond {
		t.Errorf("chunk delay = %v", cfg.Extract.ChunkDelay)
	}
	if cfg.Extract.NarrowAttempts != 3 {
		t.Errorf("narrow attempts = %d, want default kept", cfg.Extract.NarrowAttempts)
	}
}

func TestCredential_SelectsProviderByModel(t *testing.T) {
	tests := []struct {
		model    string
		openai   string
		google   string
		provider string
		wantErr  bool
	}{
		{model: "gpt-4o", openai: "sk-1", provider: ProviderOpenAI},
		{model: "GPT-4o-mini", google: "g-1", provider: ProviderOpenAI, wantErr: true},
		{model: "gemini-2.0-flash-exp", google: "g-1", provider: ProviderGoogle},
		{model: "gemini-2.5-pro", openai: "sk-1", provider: ProviderGoogle, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			cfg := Defaults()
			cfg.Model = tt.model
			cfg.OpenAIAPIKey = tt.openai
			cfg.GoogleAPIKey = tt.google

			if got := cfg.Provider(); got != tt.provider {
				t.Errorf("provider = %q, want %q", got, tt.provider)
			}
			_, err := cfg.Credential()
			if tt.wantErr {
				if !errors.Is(err, ErrMissingCredential) {
					t.Errorf("expected ErrMissingCredential, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.GoogleAPIKey = "g-1"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Extract.MaxChunkSize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero chunk size")
	}
}
