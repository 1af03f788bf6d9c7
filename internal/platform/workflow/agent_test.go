package workflow

import (
	"context"
	"testing"
)

func TestAgentRegistry_CreatesBuiltins(t *testing.T) {
	registry := NewAgentRegistry()

	agent, err := registry.Create("data_aggregator", map[string]interface{}{
		"outputs": map[string]interface{}{"result": "1+1"},
	}, Runtime{})
	if err != nil {
		t.Fatalf("Create(data_aggregator) returned error: %v", err)
	}
	if agent == nil {
		t.Fatal("Create(data_aggregator) returned a nil agent")
	}
}

func TestAgentRegistry_RejectsUnknownType(t *testing.T) {
	registry := NewAgentRegistry()
	if _, err := registry.Create("no_such_type", nil, Runtime{}); err == nil {
		t.Error("expected an error for an unregistered agent type")
	}
}

func TestAgentRegistry_RegisterAddsCustomFactory(t *testing.T) {
	registry := NewAgentRegistry()
	called := false
	registry.Register("noop", func(agentConfig map[string]interface{}, runtime Runtime) (Agent, error) {
		called = true
		return noopAgent{}, nil
	})

	if _, err := registry.Create("noop", nil, Runtime{}); err != nil {
		t.Fatalf("Create(noop) returned error: %v", err)
	}
	if !called {
		t.Error("custom factory was not invoked")
	}
}

type noopAgent struct{}

func (noopAgent) Invoke(_ context.Context, _ map[string]interface{}, _ map[string]interface{}) (map[string]interface{}, error) {
	return nil, nil
}
