// Package config loads application configuration from YAML, .env files and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EmbedderConfig selects the embedding provider.
// Provider "auto" picks openai, then jina, then local based on available keys.
type EmbedderConfig struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"base_url"`
	OpenAIAPIKey string `yaml:"openai_api_key"`
	JinaAPIKey   string `yaml:"jina_api_key"`
	Dimension    int    `yaml:"dimension"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
}

// SQLiteConfig locates the persistent index
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// VectorStoreConfig selects and configures the index backend
type VectorStoreConfig struct {
	Type   string       `yaml:"type"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// IngestConfig controls batch ingestion
type IngestConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// ChatConfig configures the LLM used by /chat. An empty key disables chat.
type ChatConfig struct {
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	DefaultK        int    `yaml:"default_k"`
	SeedDemo        bool   `yaml:"seed_demo"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_secs"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// RedisConfig configures the shared embedding cache tier
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	TTLSecs   int    `yaml:"ttl_secs"`
}

// CacheConfig configures embedding caches
type CacheConfig struct {
	Size  int         `yaml:"size"`
	Redis RedisConfig `yaml:"redis"`
}

// AppConfig is the root application configuration structure
type AppConfig struct {
	ProjectName string            `yaml:"project_name"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Chat        ChatConfig        `yaml:"chat"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Cache       CacheConfig       `yaml:"cache"`
}

// maxBatchSize is the largest batch the embedding providers accept
const maxBatchSize = 100

// Load reads a config from path. If the file does not exist, defaults are
// used. Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// LoadEnv loads variables from .env files into the process environment.
// Missing files are ignored; variables already set are not overwritten.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Save writes the config to path, creating directories as needed
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Default returns the built-in configuration
func Default() *AppConfig {
	return &AppConfig{
		ProjectName: "TicketSearch",
		Embedder:    EmbedderConfig{Provider: "auto", TimeoutSecs: 30},
		VectorStore: VectorStoreConfig{
			Type:   "memory",
			SQLite: SQLiteConfig{Path: "data/tickets.db"},
			Qdrant: QdrantConfig{Collection: "ticket-search", TimeoutSecs: 15},
		},
		Ingest: IngestConfig{BatchSize: 50},
		Chat:   ChatConfig{Model: "gpt-3.5-turbo", TimeoutSecs: 60},
		Server: ServerConfig{Addr: ":8000", DefaultK: 3, ShutdownTimeout: 10},
		Log:    LogConfig{Level: "info", Format: "text"},
		Cache:  CacheConfig{Size: 10000, Redis: RedisConfig{Address: "localhost:6379", KeyPrefix: "emb:", TTLSecs: 86400}},
	}
}

func applyDefaults(cfg *AppConfig) {
	d := Default()
	if cfg.ProjectName == "" {
		cfg.ProjectName = d.ProjectName
	}
	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = d.Embedder.Provider
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = d.Embedder.TimeoutSecs
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = d.VectorStore.Type
	}
	if cfg.VectorStore.SQLite.Path == "" {
		cfg.VectorStore.SQLite.Path = d.VectorStore.SQLite.Path
	}
	if cfg.VectorStore.Qdrant.Collection == "" {
		cfg.VectorStore.Qdrant.Collection = d.VectorStore.Qdrant.Collection
	}
	if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
		cfg.VectorStore.Qdrant.TimeoutSecs = d.VectorStore.Qdrant.TimeoutSecs
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = d.Ingest.BatchSize
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = d.Chat.Model
	}
	if cfg.Chat.TimeoutSecs == 0 {
		cfg.Chat.TimeoutSecs = d.Chat.TimeoutSecs
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = d.Server.Addr
	}
	if cfg.Server.DefaultK == 0 {
		cfg.Server.DefaultK = d.Server.DefaultK
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = d.Log.Format
	}
	if cfg.Cache.Redis.Address == "" {
		cfg.Cache.Redis.Address = d.Cache.Redis.Address
	}
	if cfg.Cache.Redis.KeyPrefix == "" {
		cfg.Cache.Redis.KeyPrefix = d.Cache.Redis.KeyPrefix
	}
}

// applyEnv overlays environment variables onto cfg
func applyEnv(cfg *AppConfig) {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := os.LookupEnv(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	setInt := func(dst *int, key string) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(dst *bool, key string) {
		if v, ok := os.LookupEnv(key); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}

	setString(&cfg.ProjectName, "TICKETSEARCH_PROJECT_NAME", "PROJECT_NAME")

	setString(&cfg.Embedder.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.Embedder.JinaAPIKey, "JINA_API_KEY")
	setString(&cfg.Embedder.Provider, "TICKETSEARCH_EMBEDDER")
	setString(&cfg.Embedder.Model, "TICKETSEARCH_EMBEDDING_MODEL")

	setString(&cfg.VectorStore.Type, "TICKETSEARCH_VECTOR_STORE")
	setString(&cfg.VectorStore.SQLite.Path, "TICKETSEARCH_SQLITE_PATH")
	setString(&cfg.VectorStore.Qdrant.URL, "QDRANT_URL")
	setString(&cfg.VectorStore.Qdrant.APIKey, "QDRANT_API_KEY")
	setString(&cfg.VectorStore.Qdrant.Collection, "TICKETSEARCH_QDRANT_COLLECTION")

	setInt(&cfg.Ingest.BatchSize, "TICKETSEARCH_BATCH_SIZE")

	setString(&cfg.Chat.APIKey, "OPENAI_API_KEY")
	setString(&cfg.Chat.Model, "OPENAI_MODEL")

	setString(&cfg.Server.Addr, "TICKETSEARCH_ADDR")
	setBool(&cfg.Server.SeedDemo, "TICKETSEARCH_SEED_DEMO")

	setString(&cfg.Log.Level, "TICKETSEARCH_LOG_LEVEL")
	setString(&cfg.Log.Format, "TICKETSEARCH_LOG_FORMAT")
	setString(&cfg.Log.File, "TICKETSEARCH_LOG_FILE")

	setInt(&cfg.Cache.Size, "TICKETSEARCH_CACHE_SIZE")
	if v, ok := os.LookupEnv("TICKETSEARCH_REDIS_ADDR"); ok && v != "" {
		cfg.Cache.Redis.Address = v
		cfg.Cache.Redis.Enabled = true
	}
	setString(&cfg.Cache.Redis.Password, "TICKETSEARCH_REDIS_PASSWORD")
}

// Validate checks enumerated values and required settings
func (c *AppConfig) Validate() error {
	var errs []error

	switch strings.ToLower(c.Embedder.Provider) {
	case "auto", "openai", "jina", "local":
	default:
		errs = append(errs, fmt.Errorf("embedder.provider: unknown provider %q", c.Embedder.Provider))
	}
	if c.Embedder.Dimension < 0 {
		errs = append(errs, errors.New("embedder.dimension must not be negative"))
	}

	switch strings.ToLower(c.VectorStore.Type) {
	case "memory":
	case "sqlite":
		if c.VectorStore.SQLite.Path == "" {
			errs = append(errs, errors.New("vector_store.sqlite.path is required"))
		}
	case "qdrant":
		if c.VectorStore.Qdrant.URL == "" {
			errs = append(errs, errors.New("vector_store.qdrant.url is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("vector_store.type: unknown backend %q", c.VectorStore.Type))
	}

	if c.Ingest.BatchSize < 1 || c.Ingest.BatchSize > maxBatchSize {
		errs = append(errs, fmt.Errorf("ingest.batch_size must be between 1 and %d", maxBatchSize))
	}
	if c.Server.DefaultK < 1 {
		errs = append(errs, errors.New("server.default_k must be positive"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	if c.Cache.Size < 0 {
		errs = append(errs, errors.New("cache.size must not be negative"))
	}
	if c.Cache.Redis.Enabled && c.Cache.Redis.Address == "" {
		errs = append(errs, errors.New("cache.redis.address is required when redis is enabled"))
	}

	return errors.Join(errs...)
}

// Seconds converts a seconds setting to a duration
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
