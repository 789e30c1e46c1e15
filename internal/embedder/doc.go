// Package embedder turns ticket and query text into vector embeddings.
//
// Three providers implement the Embedder interface: OpenAI and Jina AI over
// their OpenAI-compatible /embeddings HTTP APIs, and an offline local
// provider based on feature hashing.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  embedder.ProviderOpenAI,
//	    APIKey:    apiKey,
//	    CacheSize: 10000,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "VPN not connecting",
//	})
//
// An empty text returns ErrEmptyText before any network call is made.
//
// # Batch Processing
//
// GenerateBatch sends up to MaxBatchSize texts in one request and returns
// the embeddings in input order. A batch is atomic: either every text gets a
// vector or the call fails, so callers retry or skip the whole batch.
// A response whose length or indexes do not match the request is
// ErrMalformedResponse.
//
// # Retries
//
// Rate limits (429), server errors (5xx) and transport failures are retried
// with capped exponential backoff. Client errors and malformed responses fail
// immediately. Exhausted retries are wrapped in ErrProviderFailed:
//
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // provider unavailable, degrade
//	}
//
// # Caching
//
// Providers accept an EmbeddingCache. Cache is an in-process LRU; RedisCache
// shares vectors between processes; TieredCache stacks the two. Keys are the
// SHA-256 of model name and normalized text. Cached embeddings are copied on
// the way in and out.
package embedder
