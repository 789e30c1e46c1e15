// Package app assembles the engine, its backends and the chat service from
// an AppConfig. The command line front ends share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dshills/ticketsearch/internal/chat"
	"github.com/dshills/ticketsearch/internal/config"
	"github.com/dshills/ticketsearch/internal/embedder"
	"github.com/dshills/ticketsearch/internal/retrieval"
	"github.com/dshills/ticketsearch/internal/vectorindex"
)

// App holds the wired components. Chat is nil when no completion key is set.
type App struct {
	Config *config.AppConfig
	Engine *retrieval.Engine
	Chat   *chat.Service
	Logger *slog.Logger

	closers []func() error
}

// Build wires components in dependency order and unwinds on failure
func Build(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	var shared embedder.EmbeddingCache
	if cfg.Cache.Redis.Enabled {
		rc, rerr := embedder.NewRedisCache(ctx, embedder.RedisOptions{
			Address:   cfg.Cache.Redis.Address,
			Password:  cfg.Cache.Redis.Password,
			DB:        cfg.Cache.Redis.DB,
			KeyPrefix: cfg.Cache.Redis.KeyPrefix,
			TTL:       config.Seconds(cfg.Cache.Redis.TTLSecs),
		}, logger)
		if rerr != nil {
			logger.Warn("redis embedding cache unavailable, continuing without it", "address", cfg.Cache.Redis.Address, "error", rerr)
		} else {
			shared = rc
			a.closers = append(a.closers, rc.Close)
		}
	}

	emb, err := NewEmbedder(cfg, shared)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, emb.Close)
	logger.Info("embedder ready", "provider", emb.Provider(), "model", emb.Model(), "dimension", emb.Dimension())

	idx, err := vectorindex.New(ctx, vectorindex.Config{
		Backend:   cfg.VectorStore.Type,
		Dimension: emb.Dimension(),
		SQLite:    vectorindex.SQLiteConfig{Path: cfg.VectorStore.SQLite.Path},
		Qdrant: vectorindex.QdrantConfig{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     cfg.VectorStore.Qdrant.APIKey,
			Collection: cfg.VectorStore.Qdrant.Collection,
			Timeout:    config.Seconds(cfg.VectorStore.Qdrant.TimeoutSecs),
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	a.closers = append(a.closers, idx.Close)
	logger.Info("vector store ready", "backend", idx.Name(), "dimension", idx.Dimension())

	a.Engine, err = retrieval.New(retrieval.Config{
		Embedder:  emb,
		Index:     idx,
		BatchSize: cfg.Ingest.BatchSize,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Chat.APIKey != "" {
		completer, err := chat.NewOpenAICompleter(chat.OpenAIConfig{
			APIKey:  cfg.Chat.APIKey,
			BaseURL: cfg.Chat.BaseURL,
			Model:   cfg.Chat.Model,
			Timeout: config.Seconds(cfg.Chat.TimeoutSecs),
		})
		if err != nil {
			return nil, err
		}
		a.Chat = chat.NewService(completer)
	} else {
		logger.Info("chat disabled: no OpenAI API key configured")
	}

	return a, nil
}

// NewEmbedder resolves the provider ("auto" uses whichever key is present)
// and builds the embedder
func NewEmbedder(cfg *config.AppConfig, shared embedder.EmbeddingCache) (embedder.Embedder, error) {
	ec := cfg.Embedder
	provider := strings.ToLower(ec.Provider)
	if provider == "auto" {
		provider = embedder.DetectProvider(ec.OpenAIAPIKey, ec.JinaAPIKey)
	}

	var key string
	switch provider {
	case embedder.ProviderOpenAI:
		key = ec.OpenAIAPIKey
	case embedder.ProviderJina:
		key = ec.JinaAPIKey
	}

	emb, err := embedder.New(embedder.Config{
		Provider:  provider,
		APIKey:    key,
		BaseURL:   ec.BaseURL,
		Model:     ec.Model,
		Dimension: ec.Dimension,
		Timeout:   config.Seconds(ec.TimeoutSecs),
		CacheSize: cfg.Cache.Size,
		Shared:    shared,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return emb, nil
}

// Close releases components in reverse construction order
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
