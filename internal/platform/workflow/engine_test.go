package workflow

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/inspectra/platform-core/internal/platform/audit"
	"github.com/inspectra/platform-core/internal/platform/document"
	"github.com/inspectra/platform-core/internal/platform/tenancy"
	"github.com/inspectra/platform-core/pkg/logger"
	"github.com/inspectra/platform-core/pkg/testing/containers"
)

// noopTrail discards audit events; these tests exercise the engine's
// execution lifecycle, not the audit pipeline.
type noopTrail struct{}

func (noopTrail) Append(context.Context, audit.Event) {}
func (noopTrail) Close(context.Context) error          { return nil }

func newTestRequestContext(tenantID string) tenancy.RequestContext {
	return tenancy.NewRequestContext(logger.Global(), tenancy.NewTenantContext(tenantID, "user-1", ""), "")
}

func waitForTerminal(t *testing.T, engine *Engine, executionID string, rc tenancy.RequestContext) Execution {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		exec, ok, err := engine.GetExecutionStatus(context.Background(), executionID, rc)
		if err != nil {
			t.Fatalf("GetExecutionStatus returned error: %v", err)
		}
		if ok && IsTerminal(exec.Status) {
			return exec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("execution %q did not reach a terminal state in time", executionID)
	return Execution{}
}

func TestEngine_ExecuteWorkflow_RunsToCompletion(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a MongoDB instance")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mongoContainer, err := containers.NewMongoDBContainer(ctx, containers.DefaultMongoDBConfig())
	if err != nil {
		t.Skipf("no MongoDB instance available: %v", err)
	}
	defer mongoContainer.Close(ctx)

	meta := Metadata{
		Agents: []NodeMetadata{
			{
				ID:        "aggregate",
				AgentType: "data_aggregator",
				AgentConfig: map[string]interface{}{
					"sources":      map[string]interface{}{"amounts": "values[].amount"},
					"aggregations": map[string]interface{}{"total": map[string]interface{}{"op": "sum", "source": "amounts"}},
					"outputs":      map[string]interface{}{"total": "total"},
				},
			},
		},
		EntryPoint: "aggregate",
	}

	engine := NewEngine(mongoContainer.DB, noopTrail{}, nil, Runtime{}, nil, logger.Global())

	rc := newTestRequestContext("tenant-engine-test")
	inputs := map[string]interface{}{
		"values": []interface{}{
			map[string]interface{}{"amount": float64(10)},
			map[string]interface{}{"amount": float64(20)},
		},
	}

	exec, err := engine.ExecuteWorkflow(ctx, "workflow-1", meta, inputs, rc)
	if err != nil {
		t.Fatalf("ExecuteWorkflow returned error: %v", err)
	}

	final := waitForTerminal(t, engine, exec.ExecutionID, rc)
	if final.Status != StatusCompleted {
		t.Fatalf("final status = %q, want %q (error: %s)", final.Status, StatusCompleted, final.Error)
	}
	if final.Result["total"] != float64(30) {
		t.Errorf("result[total] = %v, want 30", final.Result["total"])
	}
	if len(final.Checkpoints) != 1 {
		t.Errorf("checkpoints = %d, want 1", len(final.Checkpoints))
	}
	if final.Metrics.AgentCalls != 1 {
		t.Errorf("agentCalls = %d, want 1", final.Metrics.AgentCalls)
	}

	if engine.GetActiveExecutionsCount() != 0 {
		t.Errorf("active executions = %d, want 0 after completion", engine.GetActiveExecutionsCount())
	}

	stats, err := engine.GetExecutionStats(ctx, map[string]interface{}{"workflowId": "workflow-1"}, rc)
	if err != nil {
		t.Fatalf("GetExecutionStats returned error: %v", err)
	}
	if stats.Completed < 1 {
		t.Errorf("stats.Completed = %d, want >= 1", stats.Completed)
	}

	page, total, err := engine.ListExecutions(ctx, nil, document.PageRequest{Page: 1, Limit: 10}, rc)
	if err != nil {
		t.Fatalf("ListExecutions returned error: %v", err)
	}
	if total < 1 || len(page) < 1 {
		t.Errorf("ListExecutions returned %d of %d total, want at least one", len(page), total)
	}
}

func TestEngine_CancelExecution_StopsABlockedWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a MongoDB instance")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mongoContainer, err := containers.NewMongoDBContainer(ctx, containers.DefaultMongoDBConfig())
	if err != nil {
		t.Skipf("no MongoDB instance available: %v", err)
	}
	defer mongoContainer.Close(ctx)

	meta := Metadata{
		Agents: []NodeMetadata{
			{ID: "a", AgentType: "dynamic", AgentConfig: map[string]interface{}{"prompt": "p"}, MaxIterations: 1000000},
			{ID: "b", AgentType: "dynamic", AgentConfig: map[string]interface{}{"prompt": "p"}, MaxIterations: 1000000},
		},
		Connections: []EdgeMetadata{
			{From: "a", To: "b"},
			{From: "b", To: "a"},
		},
		EntryPoint: "a",
	}

	engine := NewEngine(mongoContainer.DB, noopTrail{}, nil, Runtime{LLM: &fakeLLMClient{reply: "{}"}}, nil, logger.Global())

	rc := newTestRequestContext("tenant-engine-cancel")
	exec, err := engine.ExecuteWorkflow(ctx, "workflow-loop", meta, nil, rc)
	if err != nil {
		t.Fatalf("ExecuteWorkflow returned error: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	cancelled, err := engine.CancelExecution(exec.ExecutionID)
	if err != nil {
		t.Fatalf("CancelExecution returned error: %v", err)
	}
	if !cancelled {
		t.Fatal("CancelExecution reported the execution was not running")
	}

	final := waitForTerminal(t, engine, exec.ExecutionID, rc)
	if final.Status != StatusCancelled {
		t.Errorf("final status = %q, want %q", final.Status, StatusCancelled)
	}
}
