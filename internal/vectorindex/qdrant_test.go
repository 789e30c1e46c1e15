package vectorindex

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQdrant keeps one collection in memory and answers the client calls
// the index makes
type fakeQdrant struct {
	mu          sync.Mutex
	collection  string
	size        uint64
	distance    qdrant.Distance
	points      map[string]*qdrant.PointStruct
	order       []string
	searchErr   error
	lastTimeout bool
	closed      bool
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{collection: "tickets", points: map[string]*qdrant.PointStruct{}}
}

func (f *fakeQdrant) noteDeadline(ctx context.Context) {
	_, f.lastTimeout = ctx.Deadline()
}

func (f *fakeQdrant) CollectionExists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noteDeadline(ctx)
	return name == f.collection && f.size != 0, nil
}

func (f *fakeQdrant) GetCollectionInfo(_ context.Context, name string) (*qdrant.CollectionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name != f.collection || f.size == 0 {
		return nil, errors.New("collection not found")
	}
	return &qdrant.CollectionInfo{
		Config: &qdrant.CollectionConfig{
			Params: &qdrant.CollectionParams{
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{Size: f.size, Distance: f.distance}),
			},
		},
	}, nil
}

func (f *fakeQdrant) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	params := req.GetVectorsConfig().GetParams()
	f.collection = req.GetCollectionName()
	f.size = params.GetSize()
	f.distance = params.GetDistance()
	return nil
}

func (f *fakeQdrant) Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noteDeadline(ctx)
	for _, p := range req.GetPoints() {
		id := p.GetId().GetUuid()
		if _, err := uuid.Parse(id); err != nil {
			return nil, errors.New("bad point id")
		}
		if uint64(len(p.GetVectors().GetVector().GetData())) != f.size {
			return nil, errors.New("wrong vector size")
		}
		if _, ok := f.points[id]; !ok {
			f.order = append(f.order, id)
		}
		f.points[id] = p
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeQdrant) Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noteDeadline(ctx)
	if f.searchErr != nil {
		return nil, f.searchErr
	}

	query := req.GetQuery().GetNearest().GetDense().GetData()
	hits := make([]*qdrant.ScoredPoint, 0, len(f.order))
	for _, id := range f.order {
		p := f.points[id]
		hit := &qdrant.ScoredPoint{
			Id:    p.GetId(),
			Score: float32(cosine(query, p.GetVectors().GetVector().GetData())),
		}
		if req.GetWithPayload().GetEnable() {
			hit.Payload = p.GetPayload()
		}
		hits = append(hits, hit)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit := int(req.GetLimit()); limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeQdrant) Count(context.Context, *qdrant.CountPoints) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.points)), nil
}

func (f *fakeQdrant) Close() error {
	f.closed = true
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestQdrantIndexRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeQdrant()

	idx, err := newQdrantIndex(ctx, fake, QdrantConfig{}, 0, nil)
	require.NoError(t, err)

	assert.Equal(t, MetricSimilarity, idx.Metric())
	assert.Equal(t, BackendQdrant, idx.Name())

	// No collection yet
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	matches, err := idx.Query(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, matches)

	require.NoError(t, idx.Upsert(ctx, []Entry{
		{ID: "T-1", Vector: []float32{1, 0}, Metadata: map[string]any{"title": "VPN", "tags": []string{"network", "vpn"}}},
		{ID: "T-2", Vector: []float32{0, 1}, Metadata: map[string]any{"title": "Printer"}},
	}))
	assert.Equal(t, uint64(2), fake.size)
	assert.Equal(t, qdrant.Distance_Cosine, fake.distance)
	assert.Equal(t, 2, idx.Dimension())

	// Re-upserting the same ticket id keeps one point
	require.NoError(t, idx.Upsert(ctx, []Entry{{
		ID:       "T-1",
		Vector:   []float32{1, 0.1},
		Metadata: map[string]any{"title": "VPN v2", "tags": []string{"vpn"}},
	}}))

	n, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	matches, err = idx.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "T-1", matches[0].ID)
	assert.Equal(t, "VPN v2", matches[0].Metadata["title"])
	assert.Equal(t, []any{"vpn"}, matches[0].Metadata["tags"])
	assert.NotContains(t, matches[0].Metadata, payloadTicketID)
	assert.Greater(t, matches[0].Score, 0.9)
	assert.True(t, fake.lastTimeout, "calls carry the configured timeout")

	require.NoError(t, idx.Close())
	assert.True(t, fake.closed)
}

func TestQdrantIndexExistingCollection(t *testing.T) {
	ctx := context.Background()
	fake := newFakeQdrant()
	fake.size = 4

	idx, err := newQdrantIndex(ctx, fake, QdrantConfig{}, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Dimension())

	_, err = newQdrantIndex(ctx, fake, QdrantConfig{}, 8, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	err = idx.Upsert(ctx, []Entry{{ID: "a", Vector: []float32{1, 2}}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestQdrantIndexCreatesCollectionWhenDimensionKnown(t *testing.T) {
	fake := newFakeQdrant()

	idx, err := newQdrantIndex(context.Background(), fake, QdrantConfig{Collection: "support", Timeout: time.Second}, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, "support", fake.collection)
	assert.Equal(t, uint64(3), fake.size)
	assert.Equal(t, 3, idx.Dimension())
}

func TestQdrantIndexSearchError(t *testing.T) {
	ctx := context.Background()
	fake := newFakeQdrant()
	fake.size = 2
	fake.searchErr = errors.New("unavailable")

	idx, err := newQdrantIndex(ctx, fake, QdrantConfig{}, 2, nil)
	require.NoError(t, err)

	_, err = idx.Query(ctx, []float32{1, 0}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
}

func TestQdrantClientConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     QdrantConfig
		want    qdrant.Config
		wantErr bool
	}{
		{name: "default port", cfg: QdrantConfig{URL: "http://qdrant"}, want: qdrant.Config{Host: "qdrant", Port: 6334}},
		{name: "explicit port", cfg: QdrantConfig{URL: "http://localhost:7334/"}, want: qdrant.Config{Host: "localhost", Port: 7334}},
		{name: "tls and key", cfg: QdrantConfig{URL: "https://cloud.example:6334", APIKey: "secret"}, want: qdrant.Config{Host: "cloud.example", Port: 6334, APIKey: "secret", UseTLS: true}},
		{name: "no scheme", cfg: QdrantConfig{URL: "qdrant:6334"}, want: qdrant.Config{Host: "qdrant", Port: 6334}},
		{name: "missing url", cfg: QdrantConfig{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := qdrantClientConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Host, got.Host)
			assert.Equal(t, tt.want.Port, got.Port)
			assert.Equal(t, tt.want.APIKey, got.APIKey)
			assert.Equal(t, tt.want.UseTLS, got.UseTLS)
		})
	}
}

func TestQdrantIndexRequiresURL(t *testing.T) {
	_, err := NewQdrantIndex(context.Background(), QdrantConfig{}, 0, nil)
	assert.Error(t, err)
}

func TestPointIDDeterministic(t *testing.T) {
	assert.Equal(t, PointID("T-1"), PointID("T-1"))
	assert.NotEqual(t, PointID("T-1"), PointID("T-2"))
	_, err := uuid.Parse(PointID("T-1"))
	assert.NoError(t, err)
}
