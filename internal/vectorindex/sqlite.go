package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// SQLiteConfig configures the persistent backend
type SQLiteConfig struct {
	Path string
}

// SQLiteIndex stores vectors as little-endian float32 blobs in a single table.
// Ranking uses sqlite-vec when compiled with the sqlite_vec tag and a Go
// scan otherwise; both rank by Euclidean distance.
type SQLiteIndex struct {
	db   *sql.DB
	path string

	mu        sync.RWMutex
	dimension int
}

// openDatabase opens a SQLite database with standard settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteIndex opens or creates the index database at path.
// A stored dimension must agree with a non-zero requested dimension.
func NewSQLiteIndex(ctx context.Context, path string, dimension int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, errors.New("sqlite index path is required")
	}

	db, err := openDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	idx := &SQLiteIndex{db: db, path: path}

	stored, err := idx.storedDimension(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	switch {
	case stored != 0 && dimension != 0 && stored != dimension:
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s was built with %d, requested %d", ErrDimensionMismatch, path, stored, dimension)
	case stored != 0:
		idx.dimension = stored
	case dimension != 0:
		if err := idx.storeDimension(ctx, db, dimension); err != nil {
			_ = db.Close()
			return nil, err
		}
		idx.dimension = dimension
	}

	return idx, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteIndex) storedDimension(ctx context.Context) (int, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = 'dimension'").Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read index dimension: %w", err)
	}
	dim, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid stored dimension %q: %w", value, err)
	}
	return dim, nil
}

func (s *SQLiteIndex) storeDimension(ctx context.Context, q execer, dim int) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO index_meta (key, value) VALUES ('dimension', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, strconv.Itoa(dim))
	if err != nil {
		return fmt.Errorf("failed to store index dimension: %w", err)
	}
	return nil
}

// Upsert writes the whole batch in one transaction
func (s *SQLiteIndex) Upsert(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := validateEntries(entries, s.dimension)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.dimension == 0 {
		if err := s.storeDimension(ctx, tx, dim); err != nil {
			return err
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (ticket_id, vector, dimension, metadata)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ticket_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		md, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, serializeVector(e.Vector), len(e.Vector), string(md)); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	s.dimension = dim
	return nil
}

// Query returns the k nearest entries by Euclidean distance
func (s *SQLiteIndex) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()

	if k <= 0 || dim == 0 {
		return []Match{}, nil
	}
	if err := checkQueryVector(vector, dim); err != nil {
		return nil, err
	}

	if VectorExtensionAvailable {
		return s.queryOptimized(ctx, vector, k)
	}
	return s.queryFallback(ctx, vector, k)
}

// queryOptimized ranks inside SQLite with sqlite-vec
func (s *SQLiteIndex) queryOptimized(ctx context.Context, vector []float32, k int) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticket_id, vec_distance_l2(vector, ?) AS distance, metadata
		FROM entries
		ORDER BY distance ASC, id ASC
		LIMIT ?
	`, serializeVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches := []Match{}
	for rows.Next() {
		var (
			m  Match
			md string
		)
		if err := rows.Scan(&m.ID, &m.Distance, &md); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		if m.Metadata, err = decodeMetadata(md); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// queryFallback loads every vector and ranks in Go
func (s *SQLiteIndex) queryFallback(ctx context.Context, vector []float32, k int) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT ticket_id, vector, metadata FROM entries ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type row struct {
		id string
		md string
	}
	var (
		stored     []row
		candidates []candidate
	)
	for rows.Next() {
		var (
			r    row
			blob []byte
		)
		if err := rows.Scan(&r.id, &blob, &r.md); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		candidates = append(candidates, candidate{
			pos:      len(stored),
			distance: l2Distance(vector, deserializeVector(blob)),
		})
		stored = append(stored, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	best := topK(candidates, k)
	matches := make([]Match, 0, len(best))
	for _, c := range best {
		md, err := decodeMetadata(stored[c.pos].md)
		if err != nil {
			return nil, err
		}
		matches = append(matches, Match{ID: stored[c.pos].id, Distance: c.distance, Metadata: md})
	}
	return matches, nil
}

func decodeMetadata(raw string) (map[string]any, error) {
	md := map[string]any{}
	if raw == "" {
		return md, nil
	}
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return md, nil
}

func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

func (s *SQLiteIndex) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *SQLiteIndex) Metric() Metric {
	return MetricL2
}

func (s *SQLiteIndex) Name() string {
	return BackendSQLite
}

// SizeBytes reports the database size from SQLite page statistics
func (s *SQLiteIndex) SizeBytes(ctx context.Context) (int64, error) {
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, err
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, err
	}
	return pageCount * pageSize, nil
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}
