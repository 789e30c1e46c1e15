package embedder

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the shared embedding cache
type RedisOptions struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string        // Default "emb:"
	TTL       time.Duration // Zero means no expiry
}

// RedisCache shares embeddings between processes through Redis.
// Vectors are stored as little-endian float32 blobs.
// Redis failures are logged and treated as cache misses.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache connects to Redis and verifies the connection with PING
func NewRedisCache(ctx context.Context, opts RedisOptions, logger *slog.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return newRedisCache(client, opts, logger), nil
}

func newRedisCache(client *redis.Client, opts RedisOptions, logger *slog.Logger) *RedisCache {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "emb:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: opts.TTL, logger: logger}
}

// key is the Redis hash holding one embedding: prefix + sha256(model NUL text)
func (r *RedisCache) key(hash string) string {
	return r.prefix + hash
}

func (r *RedisCache) Get(ctx context.Context, hash string) (*Embedding, bool) {
	vals, err := r.client.HGetAll(ctx, r.key(hash)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("redis embedding cache get failed", "error", err)
		}
		return nil, false
	}
	blob, ok := vals["v"]
	if !ok || len(blob)%4 != 0 {
		return nil, false
	}
	vector := decodeVector([]byte(blob))
	return &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  vals["p"],
		Model:     vals["m"],
		Hash:      hash,
	}, true
}

func (r *RedisCache) Set(ctx context.Context, hash string, emb *Embedding) {
	key := r.key(hash)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, "v", encodeVector(emb.Vector), "p", emb.Provider, "m", emb.Model)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("redis embedding cache set failed", "error", err)
	}
}

// Close closes the Redis client
func (r *RedisCache) Close() error {
	return r.client.Close()
}

func encodeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

func decodeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}
