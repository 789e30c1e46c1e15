package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadTicketID carries the caller's id; Qdrant point ids must be uint or UUID
const payloadTicketID = "ticket_id"

// defaultQdrantPort is the Qdrant gRPC port
const defaultQdrantPort = 6334

// pointNamespace derives stable point UUIDs from ticket ids
var pointNamespace = uuid.MustParse("6f0b1c2e-8d3a-5e4f-9a7b-1c2d3e4f5a6b")

// QdrantConfig configures the Qdrant backend.
// URL names the gRPC endpoint, e.g. http://localhost:6334; https enables TLS.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// qdrantAPI is the subset of *qdrant.Client the index calls
type qdrantAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Close() error
}

// QdrantIndex stores tickets in a Qdrant collection.
// The collection uses cosine distance, so matches carry native scores.
type QdrantIndex struct {
	client     qdrantAPI
	collection string
	timeout    time.Duration
	logger     *slog.Logger

	mu        sync.RWMutex
	dimension int
	ready     bool
}

// NewQdrantIndex connects to the collection, creating it when dimension is
// known and the collection is missing.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig, dimension int, logger *slog.Logger) (*QdrantIndex, error) {
	clientCfg, err := qdrantClientConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	idx, err := newQdrantIndex(ctx, client, cfg, dimension, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return idx, nil
}

// qdrantClientConfig maps a URL onto the client's host, port and TLS settings
func qdrantClientConfig(cfg QdrantConfig) (*qdrant.Config, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant url is required")
	}
	raw := cfg.URL
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant url %q: %w", cfg.URL, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("invalid qdrant url %q: missing host", cfg.URL)
	}

	port := defaultQdrantPort
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return nil, fmt.Errorf("invalid qdrant port %q: %w", p, err)
		}
	}
	return &qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	}, nil
}

func newQdrantIndex(ctx context.Context, client qdrantAPI, cfg QdrantConfig, dimension int, logger *slog.Logger) (*QdrantIndex, error) {
	if cfg.Collection == "" {
		cfg.Collection = "tickets"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &QdrantIndex{
		client:     client,
		collection: cfg.Collection,
		timeout:    cfg.Timeout,
		logger:     logger,
		dimension:  dimension,
	}

	existing, err := q.collectionDimension(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case existing != 0 && dimension != 0 && existing != dimension:
		return nil, fmt.Errorf("%w: collection %s has %d, requested %d", ErrDimensionMismatch, q.collection, existing, dimension)
	case existing != 0:
		q.dimension = existing
		q.ready = true
	case dimension != 0:
		if err := q.createCollection(ctx, dimension); err != nil {
			return nil, err
		}
		q.ready = true
	}
	return q, nil
}

// PointID maps a ticket id to its deterministic Qdrant point id
func PointID(ticketID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(ticketID)).String()
}

func (q *QdrantIndex) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, q.timeout)
}

// collectionDimension returns the vector size of the collection, or 0 if missing
func (q *QdrantIndex) collectionDimension(ctx context.Context) (int, error) {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()

	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return 0, fmt.Errorf("qdrant collection lookup failed: %w", err)
	}
	if !exists {
		return 0, nil
	}
	info, err := q.client.GetCollectionInfo(ctx, q.collection)
	if err != nil {
		return 0, fmt.Errorf("qdrant collection info failed: %w", err)
	}
	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size == 0 {
		return 0, fmt.Errorf("qdrant collection %s has no single unnamed vector", q.collection)
	}
	return int(size), nil
}

func (q *QdrantIndex) createCollection(ctx context.Context, dimension int) error {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()

	err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", q.collection, err)
	}
	q.logger.Info("created qdrant collection", "collection", q.collection, "dimension", dimension)
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, entries []Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	dim, err := validateEntries(entries, q.dimension)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	if !q.ready {
		if err := q.createCollection(ctx, dim); err != nil {
			return err
		}
		q.ready = true
	}

	points := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		payload, err := toPayload(e)
		if err != nil {
			return fmt.Errorf("%w: entry %s: %v", ErrInvalidEntry, e.ID, err)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(e.ID)),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: payload,
		}
	}

	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	}); err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	q.dimension = dim
	return nil
}

func (q *QdrantIndex) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	q.mu.RLock()
	dim, ready := q.dimension, q.ready
	q.mu.RUnlock()

	if k <= 0 || !ready {
		return []Match{}, nil
	}
	if err := checkQueryVector(vector, dim); err != nil {
		return nil, err
	}

	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	matches := make([]Match, 0, len(points))
	for _, p := range points {
		md := fromPayload(p.GetPayload())
		id, _ := md[payloadTicketID].(string)
		delete(md, payloadTicketID)
		matches = append(matches, Match{ID: id, Score: float64(p.GetScore()), Metadata: md})
	}
	return matches, nil
}

func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	q.mu.RLock()
	ready := q.ready
	q.mu.RUnlock()
	if !ready {
		return 0, nil
	}

	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count failed: %w", err)
	}
	return int(n), nil
}

func (q *QdrantIndex) Dimension() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.dimension
}

func (q *QdrantIndex) Metric() Metric {
	return MetricSimilarity
}

func (q *QdrantIndex) Name() string {
	return BackendQdrant
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

// toPayload converts metadata to Qdrant values. Tags arrive as []string,
// which the value mapper does not take, so they are widened to []any.
func toPayload(e Entry) (map[string]*qdrant.Value, error) {
	payload := make(map[string]any, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		if ss, ok := v.([]string); ok {
			list := make([]any, len(ss))
			for i, s := range ss {
				list[i] = s
			}
			v = list
		}
		payload[k] = v
	}
	payload[payloadTicketID] = e.ID
	return qdrant.TryValueMap(payload)
}

// fromPayload decodes Qdrant values into the plain types JSON would produce
func fromPayload(payload map[string]*qdrant.Value) map[string]any {
	md := make(map[string]any, len(payload))
	for k, v := range payload {
		md[k] = fromValue(v)
	}
	return md
}

func fromValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		values := kind.ListValue.GetValues()
		list := make([]any, len(values))
		for i, item := range values {
			list[i] = fromValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return fromPayload(kind.StructValue.GetFields())
	default:
		return nil
	}
}
