package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/ticketsearch/internal/embedder"
)

const (
	// DefaultModel is the chat completions model used when none is configured
	DefaultModel = "gpt-3.5-turbo"
	// DefaultBaseURL is the OpenAI API root
	DefaultBaseURL = "https://api.openai.com/v1"
)

// OpenAIConfig configures OpenAICompleter
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Retry   *embedder.RetryConfig
}

// OpenAICompleter calls the OpenAI chat completions API
type OpenAICompleter struct {
	apiKey     string
	baseURL    string
	model      string
	retry      embedder.RetryConfig
	httpClient *http.Client
}

// NewOpenAICompleter creates a completer; an API key is required
func NewOpenAICompleter(cfg OpenAIConfig) (*OpenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("chat: OpenAI API key is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	retry := embedder.DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}

	return &OpenAICompleter{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		retry:      retry,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Model returns the configured model
func (c *OpenAICompleter) Model() string {
	return c.model
}

func (c *OpenAICompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	return embedder.RetryWithBackoff(ctx, c.retry, func(ctx context.Context) (string, error) {
		return c.call(ctx, messages)
	})
}

func (c *OpenAICompleter) call(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":    c.model,
		"messages": messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &embedder.APIError{StatusCode: resp.StatusCode, Body: string(msg)}
	}

	var out struct {
		Choices []struct {
			Message Message `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", embedder.ErrMalformedResponse, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: %w", embedder.ErrMalformedResponse, ErrEmptyCompletion)
	}
	return out.Choices[0].Message.Content, nil
}
