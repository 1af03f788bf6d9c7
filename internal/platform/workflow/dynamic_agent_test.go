package workflow

import (
	"context"
	"testing"

	"github.com/inspectra/platform-core/internal/platform/llm"
)

type fakeLLMClient struct {
	reply       string
	lastPrompt  string
	generateErr error
}

func (f *fakeLLMClient) Generate(_ context.Context, prompt string, _ llm.GenerateOptions) (string, error) {
	f.lastPrompt = prompt
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return f.reply, nil
}

func TestDynamicAgent_ParsesJSONReply(t *testing.T) {
	client := &fakeLLMClient{reply: `{"verdict": "pass", "score": 9}`}
	agent, err := newDynamicAgent(map[string]interface{}{"prompt": "classify {{input}}"}, Runtime{LLM: client})
	if err != nil {
		t.Fatalf("newDynamicAgent returned error: %v", err)
	}

	out, err := agent.Invoke(context.Background(), map[string]interface{}{"input": "widget"}, nil)
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if out["verdict"] != "pass" {
		t.Errorf("verdict = %v, want %q", out["verdict"], "pass")
	}
	if client.lastPrompt != "classify widget" {
		t.Errorf("prompt = %q, want %q", client.lastPrompt, "classify widget")
	}
}

func TestDynamicAgent_FallsBackToRawOnNonJSONReply(t *testing.T) {
	client := &fakeLLMClient{reply: "not json at all"}
	agent, err := newDynamicAgent(map[string]interface{}{"prompt": "say something"}, Runtime{LLM: client})
	if err != nil {
		t.Fatalf("newDynamicAgent returned error: %v", err)
	}

	out, err := agent.Invoke(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if out["raw"] != "not json at all" {
		t.Errorf("raw = %v, want the verbatim reply", out["raw"])
	}
}

func TestNewDynamicAgent_RequiresLLMClient(t *testing.T) {
	if _, err := newDynamicAgent(map[string]interface{}{"prompt": "x"}, Runtime{}); err == nil {
		t.Error("expected an error when no LLM client is configured")
	}
}

func TestNewDynamicAgent_RequiresPrompt(t *testing.T) {
	if _, err := newDynamicAgent(map[string]interface{}{}, Runtime{LLM: &fakeLLMClient{}}); err == nil {
		t.Error("expected an error for a missing prompt")
	}
}
