package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/ticketsearch/internal/embedder"
	"github.com/dshills/ticketsearch/internal/vectorindex"
	"github.com/dshills/ticketsearch/pkg/types"
)

// DefaultBatchSize is the number of tickets embedded per provider call
const DefaultBatchSize = 50

// Config wires an Engine to its embedder and index
type Config struct {
	Embedder  embedder.Embedder
	Index     vectorindex.Index
	BatchSize int // default: DefaultBatchSize
	Logger    *slog.Logger
}

// Engine ingests tickets into a vector index and answers similarity queries
type Engine struct {
	embedder  embedder.Embedder
	index     vectorindex.Index
	batchSize int
	logger    *slog.Logger
}

// IngestStats summarizes one ingestion run
type IngestStats struct {
	Total         int           `json:"total"`
	Ingested      int           `json:"ingested"`
	Invalid       int           `json:"invalid"`
	Failed        int           `json:"failed"`
	Batches       int           `json:"batches"`
	FailedBatches int           `json:"failed_batches"`
	Duration      time.Duration `json:"duration_ns"`
}

// Status describes the engine's backend and contents
type Status struct {
	Backend   string             `json:"backend"`
	Metric    vectorindex.Metric `json:"metric"`
	Dimension int                `json:"dimension"`
	Count     int                `json:"count"`
	Provider  string             `json:"provider"`
	Model     string             `json:"model"`
	SizeBytes int64              `json:"size_bytes,omitempty"` // backends implementing vectorindex.Sizer
}

// New creates an Engine
func New(cfg Config) (*Engine, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("retrieval: embedder is required")
	}
	if cfg.Index == nil {
		return nil, errors.New("retrieval: index is required")
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > embedder.MaxBatchSize {
		return nil, fmt.Errorf("retrieval: %w: batch size %d, max %d", embedder.ErrBatchTooLarge, batchSize, embedder.MaxBatchSize)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		embedder:  cfg.Embedder,
		index:     cfg.Index,
		batchSize: batchSize,
		logger:    logger,
	}, nil
}

// Ingest embeds and stores tickets batch by batch.
//
// Invalid tickets are skipped. A batch whose embedding call or index write
// fails is skipped and counted in the stats while later batches continue.
// Only a dimension mismatch or context cancellation stops the run; the
// stats collected so far are returned alongside that error.
func (e *Engine) Ingest(ctx context.Context, tickets []types.Ticket) (*IngestStats, error) {
	start := time.Now()
	stats := &IngestStats{Total: len(tickets)}
	defer func() { stats.Duration = time.Since(start) }()

	for offset := 0; offset < len(tickets); offset += e.batchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		end := offset + e.batchSize
		if end > len(tickets) {
			end = len(tickets)
		}
		batchNum := offset/e.batchSize + 1

		valid := e.prepareBatch(tickets[offset:end], batchNum, stats)
		if len(valid) == 0 {
			continue
		}
		stats.Batches++

		if err := e.ingestBatch(ctx, valid); err != nil {
			if errors.Is(err, vectorindex.ErrDimensionMismatch) {
				return stats, fmt.Errorf("batch %d: %w", batchNum, err)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			stats.FailedBatches++
			stats.Failed += len(valid)
			e.logger.Warn("skipping batch",
				"batch", batchNum,
				"tickets", len(valid),
				"error", err)
			continue
		}
		stats.Ingested += len(valid)
	}

	e.logger.Info("ingestion complete",
		"total", stats.Total,
		"ingested", stats.Ingested,
		"invalid", stats.Invalid,
		"failed", stats.Failed,
		"batches", stats.Batches,
		"failed_batches", stats.FailedBatches)
	return stats, nil
}

// prepareBatch validates and normalizes one slice of tickets.
// The input slice is not modified.
func (e *Engine) prepareBatch(batch []types.Ticket, batchNum int, stats *IngestStats) []types.Ticket {
	valid := make([]types.Ticket, 0, len(batch))
	for _, t := range batch {
		if err := t.Validate(); err != nil {
			stats.Invalid++
			e.logger.Warn("skipping invalid ticket", "batch", batchNum, "id", t.ID, "error", err)
			continue
		}
		t.Tags = append([]string(nil), t.Tags...)
		t.ApplyDefaults()
		t.SimilarityScore = nil
		valid = append(valid, t)
	}
	return valid
}

func (e *Engine) ingestBatch(ctx context.Context, batch []types.Ticket) error {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].EmbeddingText()
	}

	resp, err := e.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	if len(resp.Embeddings) != len(batch) {
		return fmt.Errorf("%w: got %d embeddings for %d tickets", embedder.ErrMalformedResponse, len(resp.Embeddings), len(batch))
	}

	dim := e.index.Dimension()
	entries := make([]vectorindex.Entry, len(batch))
	for i := range batch {
		emb := resp.Embeddings[i]
		if emb == nil || len(emb.Vector) == 0 {
			return fmt.Errorf("%w: empty embedding for ticket %s", embedder.ErrMalformedResponse, batch[i].ID)
		}
		if dim != 0 && len(emb.Vector) != dim {
			return fmt.Errorf("%w: embedder produced %d, index has %d", vectorindex.ErrDimensionMismatch, len(emb.Vector), dim)
		}
		entries[i] = vectorindex.Entry{
			ID:       batch[i].ID,
			Vector:   emb.Vector,
			Metadata: batch[i].Metadata(),
		}
	}

	if err := e.index.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("index upsert failed: %w", err)
	}
	return nil
}

// Search returns up to k tickets closest to query, best first, each with a
// similarity score in (0, 1]. Failures are logged and yield an empty result.
func (e *Engine) Search(ctx context.Context, query string, k int) []types.Ticket {
	results := []types.Ticket{}
	if k <= 0 || strings.TrimSpace(query) == "" {
		return results
	}

	emb, err := e.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		e.logger.Warn("query embedding failed", "error", err)
		return results
	}

	matches, err := e.index.Query(ctx, emb.Vector, k)
	if err != nil {
		e.logger.Warn("index query failed", "backend", e.index.Name(), "error", err)
		return results
	}

	metric := e.index.Metric()
	for _, m := range matches {
		if m.ID == "" {
			continue
		}
		t := types.FromMetadata(m.ID, m.Metadata)
		results = append(results, t.WithScore(score(metric, m)))
	}

	e.logger.Debug("search complete", "k", k, "results", len(results))
	return results
}

// score converts a match to a similarity where higher is closer
func score(metric vectorindex.Metric, m vectorindex.Match) float64 {
	if metric == vectorindex.MetricSimilarity {
		return m.Score
	}
	d := m.Distance
	if d < 0 {
		d = 0
	}
	return 1 / (1 + d)
}

// Status reports the backend and embedder behind the engine
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	count, err := e.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}
	status := &Status{
		Backend:   e.index.Name(),
		Metric:    e.index.Metric(),
		Dimension: e.index.Dimension(),
		Count:     count,
		Provider:  e.embedder.Provider(),
		Model:     e.embedder.Model(),
	}
	if sizer, ok := e.index.(vectorindex.Sizer); ok {
		if status.SizeBytes, err = sizer.SizeBytes(ctx); err != nil {
			return nil, fmt.Errorf("failed to read index size: %w", err)
		}
	}
	return status, nil
}

// Close releases the embedder and the index
func (e *Engine) Close() error {
	return errors.Join(e.embedder.Close(), e.index.Close())
}
