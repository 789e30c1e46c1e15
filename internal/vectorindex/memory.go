package vectorindex

import (
	"context"
	"sync"
)

// MemoryIndex is a flat exact L2 index held in process memory.
// Queries scan every entry, which is fine up to tens of thousands of tickets.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   []Entry
	positions map[string]int // ticket id -> index into entries
}

// NewMemoryIndex creates an empty index. A zero dimension is fixed by the
// first upsert.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		positions: make(map[string]int),
	}
}

func (m *MemoryIndex) Upsert(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dim, err := validateEntries(entries, m.dimension)
	if err != nil {
		return err
	}
	m.dimension = dim

	for _, e := range entries {
		stored := Entry{
			ID:       e.ID,
			Vector:   append([]float32(nil), e.Vector...),
			Metadata: e.Metadata,
		}
		if pos, ok := m.positions[e.ID]; ok {
			m.entries[pos] = stored
			continue
		}
		m.positions[e.ID] = len(m.entries)
		m.entries = append(m.entries, stored)
	}
	return nil
}

func (m *MemoryIndex) Query(_ context.Context, vector []float32, k int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if k <= 0 || len(m.entries) == 0 {
		return []Match{}, nil
	}
	if err := checkQueryVector(vector, m.dimension); err != nil {
		return nil, err
	}

	candidates := make([]candidate, len(m.entries))
	for i, e := range m.entries {
		candidates[i] = candidate{pos: i, distance: l2Distance(vector, e.Vector)}
	}

	best := topK(candidates, k)
	matches := make([]Match, len(best))
	for i, c := range best {
		e := m.entries[c.pos]
		matches[i] = Match{ID: e.ID, Distance: c.distance, Metadata: e.Metadata}
	}
	return matches, nil
}

func (m *MemoryIndex) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *MemoryIndex) Dimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimension
}

func (m *MemoryIndex) Metric() Metric {
	return MetricL2
}

func (m *MemoryIndex) Name() string {
	return BackendMemory
}

func (m *MemoryIndex) Close() error {
	return nil
}
