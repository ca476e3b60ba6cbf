package provider

import (
	"context"
	"errors"

	"github.com/dumb-meh/Sui-Amor/config"
	openai_provider "github.com/dumb-meh/Sui-Amor/provider/openai"
)

// Provider is the interface the orchestration core depends on. Failures are
// classified by the implementation into models.ProviderError so the retry
// policy can distinguish transient from permanent ones.
type Provider interface {
	// Complete runs one chat completion and returns the assistant text.
	Complete(ctx context.Context, system, user string) (string, error)
	// CreateEmbedding embeds the given texts, one vector per input.
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates an LLM client from configuration.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, errors.New("llm.api_key not set")
		}
		return openai_provider.NewClient(openai_provider.Options{
			APIKey:          cfg.APIKey,
			BaseURL:         cfg.BaseURL,
			CompletionModel: cfg.CompletionModel,
			EmbeddingModel:  cfg.EmbeddingModel,
			Temperature:     cfg.Temperature,
			MaxTokens:       cfg.MaxTokens,
			Timeout:         cfg.Timeout,
		}), nil
	default:
		return nil, errors.New("unsupported LLM provider: " + cfg.Provider)
	}
}
