package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ticketsearch/internal/config"
	"github.com/dshills/ticketsearch/internal/loader"
	"github.com/dshills/ticketsearch/internal/retrieval"
	"github.com/dshills/ticketsearch/internal/vectorindex"
	"github.com/dshills/ticketsearch/pkg/types"
)

// writeConfig stores a local-embedder config in a temp dir and returns its path
func writeConfig(t *testing.T, mutate func(*config.AppConfig)) string {
	t.Helper()
	t.Setenv("TICKETSEARCH_EMBEDDER", "local")
	t.Setenv("TICKETSEARCH_REDIS_ADDR", "")

	cfg := config.Default()
	cfg.Embedder.Provider = "local"
	cfg.Log.Level = "error"
	if mutate != nil {
		mutate(cfg)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.Save(path, cfg))
	return path
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRunUsage(t *testing.T) {
	stdout, stderr, err := runCLI(t)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Commands:")
	assert.Contains(t, stderr, "generate")
}

func TestRunUnknownCommand(t *testing.T) {
	_, stderr, err := runCLI(t, "reindex")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reindex")
	assert.Contains(t, stderr, "Usage:")
}

func TestRunVersion(t *testing.T) {
	for _, args := range [][]string{{"version"}, {"--version"}} {
		stdout, _, err := runCLI(t, args...)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Build Mode: "+vectorindex.BuildMode)
		assert.Contains(t, stdout, "SQLite Driver: "+vectorindex.DriverName)
		assert.Contains(t, stdout, "Schema Version: "+vectorindex.CurrentSchemaVersion)
	}
}

func TestRunGenerate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "data", "tickets.json")

	stdout, _, err := runCLI(t, "generate", "--count", "25", "--seed", "7", "--output", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote 25 tickets")

	tickets, err := loader.LoadFile(out)
	require.NoError(t, err)
	assert.Equal(t, loader.Generate(25, 7), tickets)
}

func TestRunGenerateStdout(t *testing.T) {
	stdout, _, err := runCLI(t, "generate", "-n", "3", "-o", "-")
	require.NoError(t, err)

	var tickets []types.Ticket
	require.NoError(t, json.Unmarshal([]byte(stdout), &tickets))
	assert.Len(t, tickets, 3)
}

func TestRunSearchDemo(t *testing.T) {
	cfgPath := writeConfig(t, nil)
	demo := loader.DemoTickets()

	stdout, _, err := runCLI(t, "search", "--config", cfgPath, "--demo", "--json", "-k", "2", demo[0].Title)
	require.NoError(t, err)

	var results []types.Ticket
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 2)
	for _, r := range results {
		require.NotNil(t, r.SimilarityScore)
		assert.Greater(t, *r.SimilarityScore, 0.0)
		assert.LessOrEqual(t, *r.SimilarityScore, 1.0)
	}
	assert.GreaterOrEqual(t, *results[0].SimilarityScore, *results[1].SimilarityScore)
}

func TestRunSearchTable(t *testing.T) {
	cfgPath := writeConfig(t, nil)

	stdout, _, err := runCLI(t, "search", "--config", cfgPath, "--demo", "vpn", "timeout")
	require.NoError(t, err)
	assert.Contains(t, stdout, "SCORE")
	assert.Contains(t, stdout, "T-10")
}

func TestRunSearchRequiresQuery(t *testing.T) {
	cfgPath := writeConfig(t, nil)
	_, _, err := runCLI(t, "search", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage")
}

func TestRunIngestThenSearchSQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tickets.db")
	cfgPath := writeConfig(t, func(cfg *config.AppConfig) {
		cfg.VectorStore.Type = vectorindex.BackendSQLite
		cfg.VectorStore.SQLite.Path = dbPath
	})

	dataPath := filepath.Join(dir, "tickets.json")
	require.NoError(t, loader.WriteFile(dataPath, loader.Generate(30, 3)))

	stdout, _, err := runCLI(t, "ingest", "--config", cfgPath, "--batch-size", "8", dataPath)
	require.NoError(t, err)

	var stats retrieval.IngestStats
	require.NoError(t, json.Unmarshal([]byte(stdout), &stats))
	assert.Equal(t, 30, stats.Total)
	assert.Equal(t, 30, stats.Ingested)
	assert.Equal(t, 4, stats.Batches)

	// a second process sees the persisted index
	stdout, _, err = runCLI(t, "search", "--config", cfgPath, "--json", "-k", "5", "printer offline")
	require.NoError(t, err)

	var results []types.Ticket
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	assert.Len(t, results, 5)
}

func TestRunIngestRequiresFile(t *testing.T) {
	cfgPath := writeConfig(t, nil)
	_, _, err := runCLI(t, "ingest", "--config", cfgPath)
	require.Error(t, err)

	_, _, err = runCLI(t, "ingest", "--config", cfgPath, filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestRunHelpFlag(t *testing.T) {
	_, stderr, err := runCLI(t, "generate", "--help")
	require.Error(t, err)
	assert.Contains(t, stderr, "--count")
}
