package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrDimensionMismatch is returned when a vector does not match the index dimension
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidEntry is returned for entries without an id or vector
	ErrInvalidEntry = errors.New("invalid index entry")
	// ErrUnknownBackend is returned by New for unsupported backend names
	ErrUnknownBackend = errors.New("unknown vector index backend")
)

// Metric describes what Match values a backend produces
type Metric string

const (
	// MetricL2 backends fill Match.Distance (Euclidean, lower is closer)
	MetricL2 Metric = "l2"
	// MetricSimilarity backends fill Match.Score natively (higher is closer)
	MetricSimilarity Metric = "similarity"
)

// Backend names
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
)

// Entry is one indexed ticket: its id, vector and metadata snapshot
type Entry struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// Match is a query hit, best first
type Match struct {
	ID       string
	Distance float64 // set by MetricL2 backends
	Score    float64 // set by MetricSimilarity backends
	Metadata map[string]any
}

// Index is the capability every vector store backend provides
type Index interface {
	// Upsert inserts or replaces entries keyed by ID
	Upsert(ctx context.Context, entries []Entry) error

	// Query returns up to k nearest entries, best first
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)

	// Count returns the number of stored entries
	Count(ctx context.Context) (int, error)

	// Dimension returns the fixed vector dimension, or 0 before the first insert
	Dimension() int

	// Metric reports whether matches carry distances or native scores
	Metric() Metric

	// Name returns the backend name
	Name() string

	// Close releases backend resources
	Close() error
}

// Sizer is implemented by backends that can report their storage footprint
type Sizer interface {
	SizeBytes(ctx context.Context) (int64, error)
}

// Config selects and configures a backend
type Config struct {
	Backend   string
	Dimension int // 0 lets memory and sqlite adopt the first vector's dimension
	SQLite    SQLiteConfig
	Qdrant    QdrantConfig
	Logger    *slog.Logger
}

// New opens the configured backend
func New(ctx context.Context, cfg Config) (Index, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(cfg.Backend) {
	case BackendMemory, "":
		return NewMemoryIndex(cfg.Dimension), nil
	case BackendSQLite:
		return NewSQLiteIndex(ctx, cfg.SQLite.Path, cfg.Dimension)
	case BackendQdrant:
		return NewQdrantIndex(ctx, cfg.Qdrant, cfg.Dimension, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// validateEntries checks ids and dimensions for a whole batch before any write.
// dim is the current index dimension; 0 adopts the first entry's length.
// It returns the dimension the batch agrees on.
func validateEntries(entries []Entry, dim int) (int, error) {
	for _, e := range entries {
		if e.ID == "" {
			return dim, fmt.Errorf("%w: empty id", ErrInvalidEntry)
		}
		if len(e.Vector) == 0 {
			return dim, fmt.Errorf("%w: entry %s has no vector", ErrInvalidEntry, e.ID)
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim {
			return dim, fmt.Errorf("%w: entry %s has %d, index has %d", ErrDimensionMismatch, e.ID, len(e.Vector), dim)
		}
	}
	return dim, nil
}

// checkQueryVector rejects query vectors of the wrong length
func checkQueryVector(vector []float32, dim int) error {
	if dim != 0 && len(vector) != dim {
		return fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vector), dim)
	}
	return nil
}
