package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/inspectra/platform-core/internal/platform/llm"
	"github.com/inspectra/platform-core/pkg/errors"
)

// Agent is a runnable unit with signature invoke(inputs, config) ->
// outputs, per spec.md §4.4.1.
type Agent interface {
	Invoke(ctx context.Context, inputs map[string]interface{}, config map[string]interface{}) (map[string]interface{}, error)
}

// Runtime bundles the external services a built-in agent may need —
// currently only the LLM client DynamicAgent delegates to. New agent
// variants are not expected; this system only adds metadata, not code,
// per spec.md §4.4.1.
type Runtime struct {
	LLM llm.Client
}

// Factory constructs an Agent from its declared config and the shared
// Runtime.
type Factory func(agentConfig map[string]interface{}, runtime Runtime) (Agent, error)

// AgentRegistry is the single factory spec.md §4.4.1 describes:
// create(agentType, agentConfig, runtime). Built-in variants are
// registered by NewAgentRegistry; callers may register additional
// factories for agent types this deployment defines.
type AgentRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewAgentRegistry returns a registry with the built-in DynamicAgent and
// DataAggregatorAgent factories already registered.
func NewAgentRegistry() *AgentRegistry {
	r := &AgentRegistry{factories: map[string]Factory{}}
	r.Register("dynamic", newDynamicAgent)
	r.Register("data_aggregator", newDataAggregatorAgent)
	return r
}

// Register adds or replaces the factory for agentType.
func (r *AgentRegistry) Register(agentType string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[agentType] = f
}

// Create builds an Agent for agentType, per spec.md §4.4.1's single
// factory contract.
func (r *AgentRegistry) Create(agentType string, agentConfig map[string]interface{}, runtime Runtime) (Agent, error) {
	r.mu.RLock()
	f, ok := r.factories[agentType]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.ErrValidation(fmt.Sprintf("unknown agent type %q", agentType))
	}
	return f(agentConfig, runtime)
}
