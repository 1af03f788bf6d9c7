// Package llm defines the interface DynamicAgent uses to delegate to an
// external AI service, grounded on the example pack's
// knoguchi-rag/server/internal/llm.LLM interface.
package llm

import "context"

// GenerateOptions configures one generation request.
type GenerateOptions struct {
	Model       string
	Reasoning   string
	Temperature float32
	MaxTokens   int
}

// Client generates a completion for a prompt. DynamicAgent is the only
// caller; a concrete implementation may reach an Ollama-compatible
// endpoint, a hosted API, or a test double.
type Client interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
