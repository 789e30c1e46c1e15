package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default endpoints
	DefaultJinaBaseURL   = "https://api.jina.ai/v1"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxAttempts      = 3
	InitialBackoffMs = 100
	MaxBackoffMs     = 5000

	DefaultTimeout = 30 * time.Second
)

// knownDimensions maps model names to their output dimension
var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"jina-embeddings-v3":     1024,
}

// shortenableModels accept a "dimensions" request field and return vectors
// truncated to that size
var shortenableModels = map[string]bool{
	"text-embedding-3-small": true,
	"text-embedding-3-large": true,
	"jina-embeddings-v3":     true,
}

// ProviderOptions configures an HTTP embedding provider
type ProviderOptions struct {
	APIKey    string
	BaseURL   string        // Optional: defaults to the provider's public endpoint
	Model     string        // Optional: defaults to the provider's default model
	Dimension int           // Optional: derived from the model when zero
	Timeout   time.Duration // Optional: defaults to 30s
	Retry     *RetryConfig  // Optional: defaults to DefaultRetryConfig
}

// apiProvider implements the OpenAI-compatible /embeddings protocol shared
// by OpenAI and Jina AI
type apiProvider struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	dimension  int
	sendDims   bool // request p.dimension instead of the model's native size
	httpClient *http.Client
	cache      EmbeddingCache
	retry      RetryConfig
}

func newAPIProvider(name string, opts ProviderOptions, defaultURL, defaultModel string, defaultDim int, cache EmbeddingCache) (*apiProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: %s api key not set", ErrNoProviderEnabled, name)
	}

	p := &apiProvider{
		name:      name,
		apiKey:    opts.APIKey,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		model:     opts.Model,
		dimension: opts.Dimension,
		cache:     cache,
		retry:     DefaultRetryConfig(),
	}
	if p.baseURL == "" {
		p.baseURL = defaultURL
	}
	if p.model == "" {
		p.model = defaultModel
	}
	native, known := knownDimensions[p.model]
	switch {
	case p.dimension <= 0 && known:
		p.dimension = native
	case p.dimension <= 0:
		p.dimension = defaultDim
	case known && p.dimension != native:
		if !shortenableModels[p.model] || p.dimension > native {
			return nil, fmt.Errorf("%w: %s returns %d dimensions, %d requested", ErrUnsupportedModel, p.model, native, p.dimension)
		}
		p.sendDims = true
	}
	if opts.Retry != nil {
		p.retry = *opts.Retry
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p.httpClient = &http.Client{Timeout: timeout}

	return p, nil
}

func (p *apiProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

func (p *apiProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	texts := make([]string, len(req.Texts))
	hashes := make([]string, len(req.Texts))
	for i, text := range req.Texts {
		texts[i] = NormalizeText(text)
		hashes[i] = ComputeHash(p.cacheModel(model) + "\x00" + texts[i])
	}

	// Serve what we can from cache and only send the misses
	embeddings := make([]*Embedding, len(texts))
	var missTexts []string
	var missIdx []int
	for i := range texts {
		if p.cache != nil {
			if emb, ok := p.cache.Get(ctx, hashes[i]); ok {
				embeddings[i] = emb
				continue
			}
		}
		missTexts = append(missTexts, texts[i])
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		fetched, err := retryWithBackoff(ctx, p.retry, func(ctx context.Context) ([]*Embedding, error) {
			return p.callAPI(ctx, missTexts, model)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrProviderFailed, p.name, err)
		}

		for j, emb := range fetched {
			i := missIdx[j]
			emb.Hash = hashes[i]
			embeddings[i] = emb
			if p.cache != nil {
				p.cache.Set(ctx, hashes[i], emb)
			}
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   p.name,
		Model:      model,
	}, nil
}

// callAPI performs one /embeddings round trip and returns vectors in input order
func (p *apiProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": model,
	}
	if p.sendDims && model == p.model {
		reqBody["dimensions"] = p.dimension
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrMalformedResponse, err)
	}

	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrMalformedResponse, len(apiResp.Data), len(texts))
	}

	respModel := apiResp.Model
	if respModel == "" {
		respModel = model
	}

	embeddings := make([]*Embedding, len(texts))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(texts) || embeddings[data.Index] != nil {
			return nil, fmt.Errorf("%w: bad index %d", ErrMalformedResponse, data.Index)
		}
		if len(data.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty vector at index %d", ErrMalformedResponse, data.Index)
		}
		embeddings[data.Index] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  p.name,
			Model:     respModel,
		}
	}

	return embeddings, nil
}

// cacheModel names the vector space for cache keys; shortened vectors of the
// same model must not share entries with full ones
func (p *apiProvider) cacheModel(model string) string {
	if p.sendDims && model == p.model {
		return fmt.Sprintf("%s/%d", model, p.dimension)
	}
	return model
}

func (p *apiProvider) Dimension() int {
	return p.dimension
}

func (p *apiProvider) Provider() string {
	return p.name
}

func (p *apiProvider) Model() string {
	return p.model
}

func (p *apiProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// OpenAIProvider implements Embedder using the OpenAI embeddings API
type OpenAIProvider struct {
	*apiProvider
}

// NewOpenAIProvider creates a new OpenAI embedder
func NewOpenAIProvider(opts ProviderOptions, cache EmbeddingCache) (*OpenAIProvider, error) {
	p, err := newAPIProvider(ProviderOpenAI, opts, DefaultOpenAIBaseURL, DefaultOpenAIModel, OpenAIDimension, cache)
	if err != nil {
		return nil, err
	}
	return &OpenAIProvider{apiProvider: p}, nil
}

// JinaProvider implements Embedder using the Jina AI embeddings API
type JinaProvider struct {
	*apiProvider
}

// NewJinaProvider creates a new Jina AI embedder
func NewJinaProvider(opts ProviderOptions, cache EmbeddingCache) (*JinaProvider, error) {
	p, err := newAPIProvider(ProviderJina, opts, DefaultJinaBaseURL, DefaultJinaModel, JinaDimension, cache)
	if err != nil {
		return nil, err
	}
	return &JinaProvider{apiProvider: p}, nil
}
