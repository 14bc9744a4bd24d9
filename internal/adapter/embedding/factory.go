package embedding

import (
	"fmt"

	"kbrag/config"
	"kbrag/internal/port"
)

// New builds the embedder selected by cfg.Embedding.Provider. apiKey is the
// default key used when a call does not supply its own.
func New(cfg *config.Config, apiKey string) (port.Embedder, error) {
	opts := Options{
		APIKey:    apiKey,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout,
	}

	switch cfg.Embedding.Provider {
	case "openai", "":
		return NewOpenAIEmbedder(opts), nil
	case "sdk":
		return NewSDKEmbedder(opts), nil
	case "mock":
		return NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}
