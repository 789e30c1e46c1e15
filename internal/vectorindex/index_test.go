package vectorindex

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// l2Backends returns a fresh instance of every Euclidean backend
func l2Backends(t *testing.T) map[string]Index {
	t.Helper()
	sqlite, err := NewSQLiteIndex(context.Background(), filepath.Join(t.TempDir(), "index.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Index{
		BackendMemory: NewMemoryIndex(0),
		BackendSQLite: sqlite,
	}
}

func entry(id string, v ...float32) Entry {
	return Entry{ID: id, Vector: v, Metadata: map[string]any{"title": "ticket " + id}}
}

func TestIndexUpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	for name, idx := range l2Backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Upsert(ctx, []Entry{
				entry("a", 0, 0),
				entry("b", 3, 4),
				entry("c", 1, 0),
			}))

			assert.Equal(t, 2, idx.Dimension())
			assert.Equal(t, MetricL2, idx.Metric())
			assert.Equal(t, name, idx.Name())

			n, err := idx.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			matches, err := idx.Query(ctx, []float32{0, 0}, 2)
			require.NoError(t, err)
			require.Len(t, matches, 2)
			assert.Equal(t, "a", matches[0].ID)
			assert.InDelta(t, 0.0, matches[0].Distance, 1e-6)
			assert.Equal(t, "c", matches[1].ID)
			assert.InDelta(t, 1.0, matches[1].Distance, 1e-6)
			assert.Equal(t, "ticket a", matches[0].Metadata["title"])

			// k larger than the index returns everything, Euclidean not squared
			matches, err = idx.Query(ctx, []float32{0, 0}, 10)
			require.NoError(t, err)
			require.Len(t, matches, 3)
			assert.Equal(t, "b", matches[2].ID)
			assert.InDelta(t, 5.0, matches[2].Distance, 1e-6)
		})
	}
}

func TestIndexUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	for name, idx := range l2Backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Upsert(ctx, []Entry{entry("a", 1, 1)}))
			require.NoError(t, idx.Upsert(ctx, []Entry{{
				ID:       "a",
				Vector:   []float32{5, 5},
				Metadata: map[string]any{"title": "updated"},
			}}))

			n, err := idx.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			matches, err := idx.Query(ctx, []float32{5, 5}, 1)
			require.NoError(t, err)
			require.Len(t, matches, 1)
			assert.InDelta(t, 0.0, matches[0].Distance, 1e-6)
			assert.Equal(t, "updated", matches[0].Metadata["title"])
		})
	}
}

func TestIndexDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	for name, idx := range l2Backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Upsert(ctx, []Entry{entry("a", 1, 2, 3)}))

			err := idx.Upsert(ctx, []Entry{entry("b", 1, 2)})
			assert.ErrorIs(t, err, ErrDimensionMismatch)

			// Mixed batches are rejected whole
			err = idx.Upsert(ctx, []Entry{entry("c", 1, 2, 3), entry("d", 1)})
			assert.ErrorIs(t, err, ErrDimensionMismatch)
			n, err := idx.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			_, err = idx.Query(ctx, []float32{1, 2}, 1)
			assert.ErrorIs(t, err, ErrDimensionMismatch)
		})
	}
}

func TestIndexInvalidEntries(t *testing.T) {
	ctx := context.Background()
	for name, idx := range l2Backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, idx.Upsert(ctx, []Entry{entry("", 1)}), ErrInvalidEntry)
			assert.ErrorIs(t, idx.Upsert(ctx, []Entry{{ID: "x"}}), ErrInvalidEntry)
		})
	}
}

func TestIndexEmptyQueries(t *testing.T) {
	ctx := context.Background()
	for name, idx := range l2Backends(t) {
		t.Run(name, func(t *testing.T) {
			matches, err := idx.Query(ctx, []float32{1, 2}, 3)
			require.NoError(t, err)
			assert.Empty(t, matches)

			require.NoError(t, idx.Upsert(ctx, []Entry{entry("a", 1, 2)}))
			matches, err = idx.Query(ctx, []float32{1, 2}, 0)
			require.NoError(t, err)
			assert.Empty(t, matches)
		})
	}
}

func TestIndexTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	for name, idx := range l2Backends(t) {
		t.Run(name, func(t *testing.T) {
			var entries []Entry
			for i := 0; i < 5; i++ {
				entries = append(entries, entry(fmt.Sprintf("t%d", i), 1, 1))
			}
			require.NoError(t, idx.Upsert(ctx, entries))

			matches, err := idx.Query(ctx, []float32{1, 1}, 3)
			require.NoError(t, err)
			require.Len(t, matches, 3)
			assert.Equal(t, []string{"t0", "t1", "t2"}, []string{matches[0].ID, matches[1].ID, matches[2].ID})
		})
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	idx, err := New(ctx, Config{})
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, idx.Name())

	idx, err = New(ctx, Config{Backend: "SQLite", Dimension: 4, SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "x.db")}})
	require.NoError(t, err)
	defer idx.Close()
	assert.Equal(t, BackendSQLite, idx.Name())
	assert.Equal(t, 4, idx.Dimension())

	_, err = New(ctx, Config{Backend: "faiss"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
