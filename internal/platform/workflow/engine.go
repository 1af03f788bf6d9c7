package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/inspectra/platform-core/internal/platform/audit"
	"github.com/inspectra/platform-core/internal/platform/document"
	"github.com/inspectra/platform-core/internal/platform/repository"
	"github.com/inspectra/platform-core/internal/platform/tenancy"
	"github.com/inspectra/platform-core/pkg/events"
	"github.com/inspectra/platform-core/pkg/logger"
	"github.com/inspectra/platform-core/pkg/metrics"
	"github.com/inspectra/platform-core/pkg/resilience"
)

const executionType = "execution"

// maxConcurrentExecutions bounds how many workflow graph walks run at
// once system-wide, so a burst of ExecuteWorkflow calls across tenants
// cannot spawn unbounded goroutines (spec.md §4.4.3 runs each execution
// on its own goroutine but never bounded how many could coexist).
const maxConcurrentExecutions = 50

// trackedExecution is the engine's in-memory handle onto a running
// execution: the cancellation flag checked before every node (spec.md
// §4.4.3's cooperative cancellation) and the last known snapshot served
// by GetExecutionStatus without a database round trip.
type trackedExecution struct {
	mu        sync.Mutex
	cancelled bool
	snapshot  Execution
}

// Engine is the execution engine from spec.md §4.4.3: lifecycle of
// executions (start, progress, persist, cancel, query) over a compiled
// Graph. Persistence goes through the repository kernel using
// type=execution documents so every execution is audited and
// tenant-scoped for free, per SPEC_FULL.md §4.4.
type Engine struct {
	db       *mongo.Database
	trail    audit.Trail
	registry *AgentRegistry
	runtime  Runtime
	metrics  *metrics.Metrics
	log      *logger.Logger
	bus      events.EventBus
	bulkhead *resilience.ThreadPoolBulkhead

	mu      sync.Mutex
	running map[string]*trackedExecution
}

// SetEventBus attaches bus so execution lifecycle transitions are
// published externally (spec.md §4.4 lifecycle; SPEC_FULL.md §4.8's
// RabbitMQ event bus). Optional — a nil bus (the default) simply skips
// publishing, matching the engine's existing nil-metrics/nil-log
// tolerance elsewhere in this file.
func (e *Engine) SetEventBus(bus events.EventBus) {
	e.bus = bus
}

func (e *Engine) publish(ctx context.Context, eventType events.EventType, exec Execution) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(exec)
	if err != nil {
		return
	}
	evt := &events.Event{
		ID:          exec.ExecutionID,
		Type:        eventType,
		TenantID:    exec.TenantID,
		AggregateID: exec.ExecutionID,
		Timestamp:   time.Now(),
		Payload:     payload,
	}
	if err := e.bus.Publish(ctx, evt); err != nil && e.log != nil {
		e.log.Error().Err(err).Str("executionId", exec.ExecutionID).Msg("failed to publish workflow event")
	}
}

// NewEngine constructs an Engine. registry may be nil, in which case
// NewAgentRegistry's built-ins are used.
func NewEngine(db *mongo.Database, trail audit.Trail, registry *AgentRegistry, runtime Runtime, m *metrics.Metrics, log *logger.Logger) *Engine {
	if registry == nil {
		registry = NewAgentRegistry()
	}
	return &Engine{
		db:       db,
		trail:    trail,
		registry: registry,
		runtime:  runtime,
		metrics:  m,
		log:      log,
		bulkhead: resilience.NewThreadPoolBulkhead(resilience.ThreadPoolConfig{
			Name:       "workflow-engine",
			MaxWorkers: maxConcurrentExecutions,
			MaxQueue:   maxConcurrentExecutions * 4,
		}),
		running: map[string]*trackedExecution{},
	}
}

func (e *Engine) repo(rc tenancy.RequestContext) *repository.Repository {
	return repository.New(e.db, executionType, e.trail, rc)
}

// ExecuteWorkflow starts a workflow run and returns as soon as the
// pending Execution record is durably created; the graph walk proceeds
// on a background goroutine per spec.md §4.4.3's cooperative-task
// concurrency model, so a caller can subsequently cancel a long-running
// execution (spec.md §8 scenario 4).
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID string, meta Metadata, inputs map[string]interface{}, rc tenancy.RequestContext) (Execution, error) {
	graph, err := Compile(meta)
	if err != nil {
		return Execution{}, err
	}

	exec := Execution{
		WorkflowID:  workflowID,
		TenantID:    rc.Tenant.TenantID,
		UserID:      rc.Tenant.UserID,
		Status:      StatusPending,
		Inputs:      inputs,
		Checkpoints: []Checkpoint{},
	}

	doc, err := e.repo(rc).Create(ctx, executionToFields(exec))
	if err != nil {
		return Execution{}, err
	}
	exec.ExecutionID = doc.ID
	e.publish(ctx, events.EventWorkflowStarted, exec)

	tracked := &trackedExecution{snapshot: exec}
	e.mu.Lock()
	e.running[exec.ExecutionID] = tracked
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.WorkflowExecutionsActive.Inc()
	}

	runCtx := context.WithoutCancel(ctx)
	if err := e.bulkhead.Submit(func() { e.run(runCtx, graph, exec, rc, tracked) }); err != nil {
		rejected := e.finish(ctx, e.repo(rc), exec, StatusFailed, nil, fmt.Sprintf("execution rejected: %v", err), tracked)
		return rejected, err
	}

	return exec, nil
}

func (e *Engine) run(ctx context.Context, graph *Graph, exec Execution, rc tenancy.RequestContext, tracked *trackedExecution) {
	repo := e.repo(rc)
	started := time.Now()

	exec.Status = StatusRunning
	exec.StartedAt = &started
	e.persistTerminalOrStart(ctx, repo, exec)
	e.updateSnapshot(tracked, exec)

	state := map[string]interface{}{}
	for k, v := range exec.Inputs {
		state[k] = v
	}

	nodeID := graph.Entry()
	iterations := map[string]int{}

	for nodeID != "" {
		if e.cancelRequested(tracked) {
			exec = e.finish(ctx, repo, exec, StatusCancelled, nil, "cancelled by request", tracked)
			return
		}

		node, ok := graph.Node(nodeID)
		if !ok {
			exec = e.finish(ctx, repo, exec, StatusFailed, nil, fmt.Sprintf("unknown node %q", nodeID), tracked)
			return
		}

		if node.MaxIterations > 0 {
			iterations[nodeID]++
			if iterations[nodeID] > node.MaxIterations {
				exec = e.finish(ctx, repo, exec, StatusFailed, nil, fmt.Sprintf("node %q exceeded maxIterations", nodeID), tracked)
				return
			}
		}

		agent, err := e.registry.Create(node.AgentType, node.AgentConfig, e.runtime)
		if err != nil {
			exec = e.finish(ctx, repo, exec, StatusFailed, nil, err.Error(), tracked)
			return
		}

		output, err := invokeWithRetry(ctx, agent, state, node)
		exec.Metrics.AgentCalls++
		if err != nil {
			exec = e.finish(ctx, repo, exec, StatusFailed, nil, err.Error(), tracked)
			return
		}

		for k, v := range output {
			state[k] = v
		}

		exec.Checkpoints = appendCheckpoint(exec.Checkpoints, Checkpoint{
			NodeID:    nodeID,
			State:     cloneState(state),
			Message:   fmt.Sprintf("node %q completed", nodeID),
			Timestamp: time.Now(),
		})
		e.persistCheckpoint(ctx, repo, exec)
		e.updateSnapshot(tracked, exec)

		next, hasNext, err := graph.NextNode(nodeID, state)
		if err != nil {
			exec = e.finish(ctx, repo, exec, StatusFailed, nil, err.Error(), tracked)
			return
		}
		if !hasNext {
			exec = e.finish(ctx, repo, exec, StatusCompleted, state, "", tracked)
			return
		}
		nodeID = next
	}
}

// invokeWithRetry runs agent.Invoke under a Retryer built from node's
// declared policy. The default is fail-fast (MaxAttempts: 1, i.e. no
// retry) per spec.md §4.4.1's synchronous invoke(inputs, config)
// contract; a node opts into retries by setting a positive
// "retryMaxAttempts" in its AgentConfig, per SPEC_FULL.md §4.4.
func invokeWithRetry(ctx context.Context, agent Agent, state map[string]interface{}, node NodeMetadata) (map[string]interface{}, error) {
	retryer := resilience.NewRetryer(withNodeRetryPolicy(node.AgentConfig)...)

	result, err := retryer.DoWithResult(ctx, func(ctx context.Context) (interface{}, error) {
		return agent.Invoke(ctx, state, node.AgentConfig)
	})
	if err != nil {
		return nil, err
	}
	output, _ := result.(map[string]interface{})
	return output, nil
}

// withNodeRetryPolicy translates an agent's declared retry settings into
// Retryer options. Absent a positive "retryMaxAttempts", the node runs
// fail-fast with a single attempt.
func withNodeRetryPolicy(agentConfig map[string]interface{}) []resilience.RetryConfigOption {
	opts := []resilience.RetryConfigOption{resilience.WithRetryMaxAttempts(1)}
	attempts, ok := agentConfig["retryMaxAttempts"].(float64)
	if !ok || attempts <= 1 {
		return opts
	}
	opts = []resilience.RetryConfigOption{resilience.WithRetryMaxAttempts(int(attempts))}
	if delayMs, ok := agentConfig["retryInitialDelayMs"].(float64); ok && delayMs > 0 {
		opts = append(opts, resilience.WithRetryInitialDelay(time.Duration(delayMs)*time.Millisecond))
	}
	return opts
}

func (e *Engine) cancelRequested(tracked *trackedExecution) bool {
	tracked.mu.Lock()
	defer tracked.mu.Unlock()
	return tracked.cancelled
}

func (e *Engine) updateSnapshot(tracked *trackedExecution, exec Execution) {
	tracked.mu.Lock()
	tracked.snapshot = exec
	tracked.mu.Unlock()
}

func (e *Engine) persistTerminalOrStart(ctx context.Context, repo *repository.Repository, exec Execution) {
	if _, err := repo.Update(ctx, exec.ExecutionID, executionToFields(exec)); err != nil && e.log != nil {
		e.log.Error().Err(err).Str("executionId", exec.ExecutionID).Msg("failed to persist execution start")
	}
}

func (e *Engine) persistCheckpoint(ctx context.Context, repo *repository.Repository, exec Execution) {
	if _, err := repo.UpdateQuiet(ctx, exec.ExecutionID, executionToFields(exec)); err != nil && e.log != nil {
		e.log.Error().Err(err).Str("executionId", exec.ExecutionID).Msg("failed to persist checkpoint")
	}
}

func (e *Engine) finish(ctx context.Context, repo *repository.Repository, exec Execution, status string, result map[string]interface{}, errMsg string, tracked *trackedExecution) Execution {
	now := time.Now()
	exec.Status = status
	exec.CompletedAt = &now
	exec.Result = result
	exec.Error = errMsg

	if _, err := repo.Update(ctx, exec.ExecutionID, executionToFields(exec)); err != nil && e.log != nil {
		e.log.Error().Err(err).Str("executionId", exec.ExecutionID).Msg("failed to persist execution outcome")
	}

	e.updateSnapshot(tracked, exec)

	e.mu.Lock()
	delete(e.running, exec.ExecutionID)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.WorkflowExecutionsActive.Dec()
		started := now
		if exec.StartedAt != nil {
			started = *exec.StartedAt
		}
		e.metrics.RecordWorkflowExecution(exec.WorkflowID, status, now.Sub(started))
	}

	e.publish(ctx, terminalEventType(status), exec)

	return exec
}

// terminalEventType maps an execution's terminal status to the event
// published on the bus. A cancellation is reported as a failure since
// pkg/events declares no dedicated cancelled event type.
func terminalEventType(status string) events.EventType {
	if status == StatusCompleted {
		return events.EventWorkflowCompleted
	}
	return events.EventWorkflowFailed
}

// GetExecutionStatus returns the execution's current state, preferring
// the in-memory snapshot for a running execution (avoids a read racing
// an in-flight checkpoint write) and falling back to the persisted
// record otherwise.
func (e *Engine) GetExecutionStatus(ctx context.Context, executionID string, rc tenancy.RequestContext) (Execution, bool, error) {
	e.mu.Lock()
	tracked, ok := e.running[executionID]
	e.mu.Unlock()
	if ok {
		tracked.mu.Lock()
		snapshot := tracked.snapshot
		tracked.mu.Unlock()
		return snapshot, true, nil
	}

	doc, err := e.repo(rc).FindByID(ctx, executionID)
	if err != nil {
		return Execution{}, false, err
	}
	if doc == nil {
		return Execution{}, false, nil
	}
	return executionFromDocument(*doc), true, nil
}

// CancelExecution acknowledges a cancellation request; the final state
// is reflected once the next checkpoint observes the flag, per spec.md
// §4.4.3.
func (e *Engine) CancelExecution(executionID string) (bool, error) {
	e.mu.Lock()
	tracked, ok := e.running[executionID]
	e.mu.Unlock()
	if !ok {
		return false, nil
	}
	tracked.mu.Lock()
	tracked.cancelled = true
	tracked.mu.Unlock()
	return true, nil
}

// ListExecutions returns a tenant-scoped page of executions.
func (e *Engine) ListExecutions(ctx context.Context, filter map[string]interface{}, req document.PageRequest, rc tenancy.RequestContext) ([]Execution, int64, error) {
	page, err := e.repo(rc).FindWithPagination(ctx, filter, req)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Execution, len(page.Data))
	for i, d := range page.Data {
		out[i] = executionFromDocument(d)
	}
	return out, page.Total, nil
}

// ExecutionStats is the result of GetExecutionStats: totals by terminal
// status, and the derived success rate from spec.md §4.4.3.
type ExecutionStats struct {
	Completed   int64   `json:"completed"`
	Failed      int64   `json:"failed"`
	Cancelled   int64   `json:"cancelled"`
	SuccessRate float64 `json:"successRate"`
}

// GetExecutionStats computes totals and successRate = completed /
// (completed+failed+cancelled).
func (e *Engine) GetExecutionStats(ctx context.Context, filter map[string]interface{}, rc tenancy.RequestContext) (ExecutionStats, error) {
	repo := e.repo(rc)

	completed, err := e.countByStatus(ctx, repo, filter, StatusCompleted)
	if err != nil {
		return ExecutionStats{}, err
	}
	failed, err := e.countByStatus(ctx, repo, filter, StatusFailed)
	if err != nil {
		return ExecutionStats{}, err
	}
	cancelled, err := e.countByStatus(ctx, repo, filter, StatusCancelled)
	if err != nil {
		return ExecutionStats{}, err
	}

	stats := ExecutionStats{Completed: completed, Failed: failed, Cancelled: cancelled}
	denominator := completed + failed + cancelled
	if denominator > 0 {
		stats.SuccessRate = float64(completed) / float64(denominator)
	}
	return stats, nil
}

func (e *Engine) countByStatus(ctx context.Context, repo *repository.Repository, filter map[string]interface{}, status string) (int64, error) {
	merged := map[string]interface{}{"status": status}
	for k, v := range filter {
		merged[k] = v
	}
	page, err := repo.FindWithPagination(ctx, merged, document.PageRequest{Page: 1, Limit: 1})
	if err != nil {
		return 0, err
	}
	return page.Total, nil
}

// GetActiveExecutionsCount returns the process-level gauge of
// currently-running executions.
func (e *Engine) GetActiveExecutionsCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.running)
}

// Shutdown marks every active execution cancelled with reason "server
// shutdown" and persists the final state, per spec.md §4.4.3.
func (e *Engine) Shutdown(ctx context.Context, rcFor func(tenantID string) tenancy.RequestContext) {
	e.mu.Lock()
	tracked := make([]*trackedExecution, 0, len(e.running))
	for _, t := range e.running {
		tracked = append(tracked, t)
	}
	e.mu.Unlock()

	for _, t := range tracked {
		t.mu.Lock()
		t.cancelled = true
		exec := t.snapshot
		t.mu.Unlock()

		now := time.Now()
		exec.Status = StatusCancelled
		exec.CompletedAt = &now
		exec.Error = "server shutdown"

		rc := rcFor(exec.TenantID)
		if _, err := e.repo(rc).Update(ctx, exec.ExecutionID, executionToFields(exec)); err != nil && e.log != nil {
			e.log.Error().Err(err).Str("executionId", exec.ExecutionID).Msg("failed to persist shutdown cancellation")
		}
	}
}

func cloneState(state map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}

// executionToFields flattens Execution into the patch map the repository
// kernel's Create/Update accept, landing every field into the document's
// open Attributes map (attribute-driven envelopes have no typed
// execution-specific fields).
func executionToFields(exec Execution) map[string]interface{} {
	return map[string]interface{}{
		"status":      exec.Status,
		"workflowId":  exec.WorkflowID,
		"userId":      exec.UserID,
		"inputs":      exec.Inputs,
		"result":      exec.Result,
		"error":       exec.Error,
		"startedAt":   exec.StartedAt,
		"completedAt": exec.CompletedAt,
		"checkpoints": exec.Checkpoints,
		"metrics":     exec.Metrics,
	}
}

func executionFromDocument(d document.Document) Execution {
	exec := Execution{
		ExecutionID: d.ID,
		TenantID:    d.TenantID,
		Status:      d.Status,
	}
	if v, ok := d.Attributes["workflowId"].(string); ok {
		exec.WorkflowID = v
	}
	if v, ok := d.Attributes["userId"].(string); ok {
		exec.UserID = v
	}
	if v, ok := d.Attributes["inputs"].(map[string]interface{}); ok {
		exec.Inputs = v
	}
	if v, ok := d.Attributes["result"].(map[string]interface{}); ok {
		exec.Result = v
	}
	if v, ok := d.Attributes["error"].(string); ok {
		exec.Error = v
	}
	if raw, ok := d.Attributes["checkpoints"]; ok {
		var w struct{ V []Checkpoint }
		if b, err := bson.Marshal(bson.M{"v": raw}); err == nil && bson.Unmarshal(b, &w) == nil {
			exec.Checkpoints = w.V
		}
	}
	if raw, ok := d.Attributes["metrics"]; ok {
		var w struct{ V Metrics }
		if b, err := bson.Marshal(bson.M{"v": raw}); err == nil && bson.Unmarshal(b, &w) == nil {
			exec.Metrics = w.V
		}
	}
	return exec
}
