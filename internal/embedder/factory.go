package embedder

import (
	"fmt"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	Timeout   time.Duration
	CacheSize int            // LRU entries; zero disables the local tier
	Shared    EmbeddingCache // Optional shared tier, e.g. *RedisCache
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	cache := buildCache(cfg)

	opts := ProviderOptions{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		Dimension: cfg.Dimension,
		Timeout:   cfg.Timeout,
	}

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderJina:
		return NewJinaProvider(opts, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(opts, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrUnsupportedModel, cfg.Provider)
	}
}

// buildCache returns a nil interface when caching is disabled
func buildCache(cfg Config) EmbeddingCache {
	switch {
	case cfg.CacheSize > 0 && cfg.Shared != nil:
		return NewTieredCache(NewCache(cfg.CacheSize), cfg.Shared)
	case cfg.CacheSize > 0:
		return NewCache(cfg.CacheSize)
	case cfg.Shared != nil:
		return cfg.Shared
	default:
		return nil
	}
}

// DetectProvider picks a provider from the credentials that are available.
// OpenAI takes precedence, then Jina; without keys the local hasher is used.
func DetectProvider(openaiKey, jinaKey string) string {
	if openaiKey != "" {
		return ProviderOpenAI
	}
	if jinaKey != "" {
		return ProviderJina
	}
	return ProviderLocal
}
