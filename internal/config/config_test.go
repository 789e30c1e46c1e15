package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable applyEnv reads for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"TICKETSEARCH_PROJECT_NAME", "PROJECT_NAME",
		"OPENAI_API_KEY", "JINA_API_KEY", "OPENAI_MODEL",
		"TICKETSEARCH_EMBEDDER", "TICKETSEARCH_EMBEDDING_MODEL",
		"TICKETSEARCH_VECTOR_STORE", "TICKETSEARCH_SQLITE_PATH",
		"QDRANT_URL", "QDRANT_API_KEY", "TICKETSEARCH_QDRANT_COLLECTION",
		"TICKETSEARCH_BATCH_SIZE", "TICKETSEARCH_ADDR", "TICKETSEARCH_SEED_DEMO",
		"TICKETSEARCH_LOG_LEVEL", "TICKETSEARCH_LOG_FORMAT", "TICKETSEARCH_LOG_FILE",
		"TICKETSEARCH_CACHE_SIZE", "TICKETSEARCH_REDIS_ADDR", "TICKETSEARCH_REDIS_PASSWORD",
	}
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			require.NoError(t, os.Unsetenv(k))
			t.Cleanup(func() { _ = os.Setenv(k, v) })
		}
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
project_name: Helpdesk
embedder:
  provider: jina
  dimension: 1024
vector_store:
  type: sqlite
  sqlite:
    path: /tmp/tickets.db
ingest:
  batch_size: 25
server:
  seed_demo: true
log:
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Helpdesk", cfg.ProjectName)
	assert.Equal(t, "jina", cfg.Embedder.Provider)
	assert.Equal(t, 1024, cfg.Embedder.Dimension)
	assert.Equal(t, "sqlite", cfg.VectorStore.Type)
	assert.Equal(t, "/tmp/tickets.db", cfg.VectorStore.SQLite.Path)
	assert.Equal(t, 25, cfg.Ingest.BatchSize)
	assert.True(t, cfg.Server.SeedDemo)
	assert.Equal(t, "json", cfg.Log.Format)
	// Untouched sections keep defaults
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("QDRANT_URL", "http://qdrant:6334")
	t.Setenv("TICKETSEARCH_VECTOR_STORE", "qdrant")
	t.Setenv("TICKETSEARCH_BATCH_SIZE", "10")
	t.Setenv("TICKETSEARCH_REDIS_ADDR", "redis:6379")
	t.Setenv("TICKETSEARCH_SEED_DEMO", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.Embedder.OpenAIAPIKey)
	assert.Equal(t, "sk-env", cfg.Chat.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.Chat.Model)
	assert.Equal(t, "qdrant", cfg.VectorStore.Type)
	assert.Equal(t, "http://qdrant:6334", cfg.VectorStore.Qdrant.URL)
	assert.Equal(t, 10, cfg.Ingest.BatchSize)
	assert.True(t, cfg.Cache.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Address)
	assert.True(t, cfg.Server.SeedDemo)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("JINA_API_KEY=jina-from-dotenv\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("JINA_API_KEY") })

	require.NoError(t, LoadEnv(envFile, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "jina-from-dotenv", os.Getenv("JINA_API_KEY"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "jina-from-dotenv", cfg.Embedder.JinaAPIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		errMsg string
	}{
		{name: "unknown provider", mutate: func(c *AppConfig) { c.Embedder.Provider = "word2vec" }, errMsg: "embedder.provider"},
		{name: "unknown backend", mutate: func(c *AppConfig) { c.VectorStore.Type = "faiss" }, errMsg: "vector_store.type"},
		{name: "qdrant without url", mutate: func(c *AppConfig) { c.VectorStore.Type = "qdrant" }, errMsg: "qdrant.url"},
		{name: "sqlite without path", mutate: func(c *AppConfig) { c.VectorStore.Type = "sqlite"; c.VectorStore.SQLite.Path = "" }, errMsg: "sqlite.path"},
		{name: "batch too large", mutate: func(c *AppConfig) { c.Ingest.BatchSize = 500 }, errMsg: "batch_size"},
		{name: "bad log level", mutate: func(c *AppConfig) { c.Log.Level = "loud" }, errMsg: "log.level"},
		{name: "bad log format", mutate: func(c *AppConfig) { c.Log.Format = "xml" }, errMsg: "log.format"},
		{name: "zero k", mutate: func(c *AppConfig) { c.Server.DefaultK = 0 }, errMsg: "default_k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.VectorStore.Type = "sqlite"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
