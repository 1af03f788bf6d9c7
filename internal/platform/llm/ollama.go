package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/inspectra/platform-core/pkg/resilience"
)

const (
	// DefaultBaseURL is the default Ollama API endpoint.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultModel is used when a DynamicAgent declares none.
	DefaultModel = "llama3.2"
)

// OllamaClient implements Client against an Ollama-compatible HTTP API,
// following knoguchi-rag/server/internal/llm/ollama.go's request/response
// shape and functional-option construction.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	model      string
	breaker    *resilience.CircuitBreaker
}

// Option configures an OllamaClient.
type Option func(*OllamaClient)

// WithBaseURL overrides the default Ollama endpoint.
func WithBaseURL(url string) Option {
	return func(c *OllamaClient) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *OllamaClient) {
		c.httpClient = client
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *OllamaClient) {
		c.model = model
	}
}

// WithCircuitBreaker overrides the default circuit breaker guarding
// Generate calls.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *OllamaClient) {
		c.breaker = cb
	}
}

// NewOllamaClient constructs an OllamaClient with the given options.
func NewOllamaClient(opts ...Option) *OllamaClient {
	c := &OllamaClient{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		model:      DefaultModel,
		breaker:    resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("llm-ollama")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ollamaRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends prompt to Ollama's /api/generate and returns the
// complete response text.
func (c *OllamaClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	options := map[string]interface{}{}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}

	reqBody := ollamaRequest{Model: model, Prompt: prompt, Stream: false}
	if len(options) > 0 {
		reqBody.Options = options
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var result ollamaResponse
	err = c.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(respBody))
		}

		return json.NewDecoder(resp.Body).Decode(&result)
	})
	if err != nil {
		return "", err
	}
	return result.Response, nil
}

var _ Client = (*OllamaClient)(nil)
