package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/inspectra/platform-core/internal/platform/llm"
	"github.com/inspectra/platform-core/pkg/errors"
)

// dynamicAgent delegates to an external AI service, parameterized by
// metadata {prompt, model, reasoning, temperature, maxTokens} per
// spec.md §4.4.1. The Open Question on reply grammar is resolved
// JSON-only (SPEC_FULL.md §4.4): a JSON object reply populates
// structured Outputs; anything else is captured verbatim into "raw"
// rather than parsed with a best-effort text grammar.
type dynamicAgent struct {
	client      llm.Client
	prompt      string
	model       string
	reasoning   string
	temperature float32
	maxTokens   int
}

func newDynamicAgent(agentConfig map[string]interface{}, runtime Runtime) (Agent, error) {
	if runtime.LLM == nil {
		return nil, errors.ErrValidation("dynamic agent requires a configured LLM client")
	}

	prompt, _ := agentConfig["prompt"].(string)
	if prompt == "" {
		return nil, errors.ErrValidation("dynamic agent requires a non-empty prompt")
	}

	a := &dynamicAgent{
		client: runtime.LLM,
		prompt: prompt,
	}
	if model, ok := agentConfig["model"].(string); ok {
		a.model = model
	}
	if reasoning, ok := agentConfig["reasoning"].(string); ok {
		a.reasoning = reasoning
	}
	if temp, ok := toFloat(agentConfig["temperature"]); ok {
		a.temperature = float32(temp)
	}
	if maxTokens, ok := toFloat(agentConfig["maxTokens"]); ok {
		a.maxTokens = int(maxTokens)
	}
	return a, nil
}

func (a *dynamicAgent) Invoke(ctx context.Context, inputs map[string]interface{}, config map[string]interface{}) (map[string]interface{}, error) {
	rendered, err := renderPrompt(a.prompt, inputs)
	if err != nil {
		return nil, err
	}

	reply, err := a.client.Generate(ctx, rendered, llm.GenerateOptions{
		Model:       a.model,
		Reasoning:   a.reasoning,
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return nil, errors.ErrExternal(err, "llm")
	}

	var structured map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader([]byte(reply)))
	if err := dec.Decode(&structured); err != nil {
		return map[string]interface{}{"raw": reply}, nil
	}
	return structured, nil
}

// renderPrompt substitutes {{field}} placeholders in template with the
// string representation of inputs[field], following the plain
// string-substitution style the example pack's prompt templates use
// (no general templating engine, since prompts here are operator-authored
// metadata, not user-facing views).
func renderPrompt(template string, inputs map[string]interface{}) (string, error) {
	out := template
	for k, v := range inputs {
		placeholder := "{{" + k + "}}"
		out = strings.ReplaceAll(out, placeholder, fmt.Sprintf("%v", v))
	}
	return out, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

var _ Agent = (*dynamicAgent)(nil)
