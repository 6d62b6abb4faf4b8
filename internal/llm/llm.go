// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides the language-model collaborators used by the search
// and chat stages: text completion, vision completion over a page image, and
// the embedding gateway. Two providers implement them: OpenRouter over its
// OpenAI-compatible HTTP API, and Gemini through the genai SDK.
package llm

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/papermap/pkg/types"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Completer produces a text completion for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []types.ChatMessage, temperature float64) (string, error)
}

// VisionCompleter answers a prompt about a single PNG image.
type VisionCompleter interface {
	CompleteWithImage(ctx context.Context, prompt string, png []byte) (string, error)
}

// Embedder turns texts into fixed-length vectors. The i-th vector belongs to
// the i-th text regardless of the order the provider answered in.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Provider bundles the three capabilities a configured backend offers.
type Provider interface {
	Completer
	VisionCompleter
	Embedder
	Name() string
}

// New builds the provider selected by cfg.Provider. The embedder side is
// wrapped in an LRU cache when cfg.EmbeddingCacheSize is positive.
func New(ctx context.Context, cfg types.LLMConfig, httpCfg types.HTTPConfig, pageMaxTokens int, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var p Provider
	switch cfg.Provider {
	case types.ProviderOpenRouter, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: openrouter API key is required", types.ErrValidation)
		}
		p = &OpenRouter{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			ChatModel:      cfg.ChatModel,
			VisionModel:    cfg.VisionModel,
			EmbeddingModel: cfg.EmbeddingModel,
			ChatTimeout:    cfg.ChatTimeout,
			EmbedTimeout:   cfg.EmbedTimeout,
			PageMaxTokens:  pageMaxTokens,
			MaxRetries:     cfg.MaxRetries,
			UserAgent:      httpCfg.UserAgent,
			Client:         &http.Client{},
		}
	case types.ProviderGemini:
		g, err := NewGemini(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p = g
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", types.ErrValidation, cfg.Provider)
	}

	logger.Debug("llm provider ready",
		zap.String("provider", p.Name()),
		zap.String("chat_model", cfg.ChatModel),
		zap.String("embedding_model", cfg.EmbeddingModel))

	if cfg.EmbeddingCacheSize > 0 {
		return &cachedProvider{
			Provider: p,
			embedder: NewCachedEmbedder(p, cfg.EmbeddingModel, cfg.EmbeddingCacheSize),
		}, nil
	}
	return p, nil
}

// cachedProvider routes Embed through a CachedEmbedder and everything else
// straight to the wrapped provider.
type cachedProvider struct {
	Provider
	embedder *CachedEmbedder
}

func (c *cachedProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	return c.embedder.Embed(ctx, texts)
}
