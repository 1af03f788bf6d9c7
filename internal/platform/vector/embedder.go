package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// DefaultEmbedderBaseURL and DefaultEmbedderModel match the example
// pack's Ollama embedder defaults.
const (
	DefaultEmbedderBaseURL = "http://localhost:11434"
	DefaultEmbedderModel   = "nomic-embed-text"
	DefaultDimension       = 768
	// maxProjectionChars bounds the semantic projection handed to the
	// embedder, since nomic-embed-text's context window is conservatively
	// sized around 512 words (~3000 characters) per the example pack's
	// embedder.KnownModels table.
	maxProjectionChars = 3000
	// defaultEmbedRate bounds outbound calls to the embedding API to a
	// conservative rate so a debounce-window burst of document saves can't
	// overrun a locally-hosted Ollama instance.
	defaultEmbedRate  = 5 // requests per second
	defaultEmbedBurst = 5
)

// Embedder generates embedding vectors for text, grounded on the example
// pack's embedder.Embedder interface.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	ModelName() string
}

// OllamaEmbedder implements Embedder using Ollama's /api/embeddings
// endpoint.
type OllamaEmbedder struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
	limiter   *rate.Limiter
}

// OllamaEmbedderOption configures an OllamaEmbedder.
type OllamaEmbedderOption func(*OllamaEmbedder)

// WithEmbedderHTTPClient overrides the default http.Client.
func WithEmbedderHTTPClient(c *http.Client) OllamaEmbedderOption {
	return func(e *OllamaEmbedder) { e.client = c }
}

// WithEmbedderRateLimit overrides the default per-connection call rate
// applied against the embedding API.
func WithEmbedderRateLimit(requestsPerSecond float64, burst int) OllamaEmbedderOption {
	return func(e *OllamaEmbedder) { e.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst) }
}

// NewOllamaEmbedder builds an OllamaEmbedder; empty baseURL/model/
// dimension fall back to the package defaults.
func NewOllamaEmbedder(baseURL, model string, dimension int, opts ...OllamaEmbedderOption) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = DefaultEmbedderBaseURL
	}
	if model == "" {
		model = DefaultEmbedderModel
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	e := &OllamaEmbedder{
		baseURL:   baseURL,
		model:     model,
		dimension: dimension,
		client:    http.DefaultClient,
		limiter:   rate.NewLimiter(rate.Limit(defaultEmbedRate), defaultEmbedBurst),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed generates an embedding vector for text, truncated to
// maxProjectionChars before being sent.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > maxProjectionChars {
		text = text[:maxProjectionChars]
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for embed rate limiter: %w", err)
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama embeddings API error (status %d): %s", resp.StatusCode, string(errBody))
	}

	var decoded ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if len(decoded.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned from ollama")
	}

	out := make([]float32, len(decoded.Embedding))
	for i, v := range decoded.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// Dimension returns the embedder's declared vector dimension.
func (e *OllamaEmbedder) Dimension() int {
	return e.dimension
}

// ModelName returns the configured model.
func (e *OllamaEmbedder) ModelName() string {
	return e.model
}

var _ Embedder = (*OllamaEmbedder)(nil)
