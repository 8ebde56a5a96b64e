package inference

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"

	"bunseki/pkg/config"
)

// Inferencer runs a single system + user prompt against a model and returns
// the raw text of the reply.
type Inferencer interface {
	Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error)
}

// New picks the provider from the configured model name. A missing key for
// that provider is reported as config.ErrMissingCredential.
func New(ctx context.Context, cfg *config.Config) (Inferencer, error) {
	key, err := cfg.Credential()
	if err != nil {
		return nil, err
	}
	switch cfg.Provider() {
	case config.ProviderOpenAI:
		o := NewOpenAIInferencer(key, cfg.Model)
		if cfg.OpenAIBaseURL != "" {
			o.ChangeBaseURL(cfg.OpenAIBaseURL)
		}
		return o, nil
	case config.ProviderGoogle:
		g, err := NewGeminiInferencer(ctx, key, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		return g, nil
	}
	return nil, fmt.Errorf("no inferencer for provider %q", cfg.Provider())
}
