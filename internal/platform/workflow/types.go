// Package workflow implements the agent registry, workflow-graph
// factory, and execution engine from spec.md §4.4. The graph-validation
// algorithms (cycle detection, topological ordering, connectivity) are
// grounded on eve.evalgo.org/graph.ValidateDAG /
// checkCycleRecursive / GetExecutionOrder in the example pack, adapted
// from dependency graphs over scheduled actions to connection graphs
// over workflow agents.
package workflow

import "time"

// Execution status values, per spec.md §3.3's state machine: pending ->
// running -> (completed | failed | cancelled); running <-> paused;
// terminal states are sinks.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusPaused    = "paused"
)

// IsTerminal reports whether status is a sink state.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed || status == StatusCancelled
}

// NodeMetadata declares one agent within a workflow graph.
type NodeMetadata struct {
	ID          string                 `json:"id"`
	AgentType   string                 `json:"agentType"`
	AgentConfig map[string]interface{} `json:"agentConfig"`
	// MaxIterations, when > 0, declares that this node may legally sit on
	// a cycle: the engine will walk through it at most MaxIterations
	// times before the execution fails rather than looping forever.
	MaxIterations int `json:"maxIterations,omitempty"`
}

// EdgeMetadata declares one directed connection between two nodes.
type EdgeMetadata struct {
	From string `json:"from"`
	To   string `json:"to"`
	// Condition, when non-empty, is a safeeval arithmetic expression
	// evaluated against the live state (numeric state fields substituted
	// in by name before evaluation); a non-zero result selects this
	// edge. The router tries edges in declaration order and takes the
	// first whose condition is satisfied, falling back to the edge
	// marked Default.
	Condition string `json:"condition,omitempty"`
	Default   bool   `json:"default,omitempty"`
}

// Metadata is a workflow's compiled-graph source: one node per agent
// declaration, edges from Connections, and an entry node.
type Metadata struct {
	Agents      []NodeMetadata `json:"agents"`
	Connections []EdgeMetadata `json:"connections"`
	EntryPoint  string         `json:"entryPoint"`
}

// Checkpoint is a state snapshot written after each node executes,
// bounded per execution (FIFO, last N retained) per spec.md §4.4.3.
type Checkpoint struct {
	NodeID    string                 `json:"nodeId"`
	State     map[string]interface{} `json:"state"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
}

// Metrics accumulates execution-level counters surfaced in the final
// Execution record.
type Metrics struct {
	AgentCalls int `json:"agentCalls"`
}

// Execution is the persisted record of one workflow run, per spec.md
// §3.3. It is stored through the repository kernel as a type=execution
// document; these fields live in Document.Attributes.
type Execution struct {
	ExecutionID string                 `json:"executionId"`
	WorkflowID  string                 `json:"workflowId"`
	TenantID    string                 `json:"tenantId"`
	UserID      string                 `json:"userId"`
	Status      string                 `json:"status"`
	Inputs      map[string]interface{} `json:"inputs"`
	Result      map[string]interface{} `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	StartedAt   *time.Time             `json:"startedAt,omitempty"`
	CompletedAt *time.Time             `json:"completedAt,omitempty"`
	Checkpoints []Checkpoint           `json:"checkpoints"`
	Metrics     Metrics                `json:"metrics"`
	CancelAsked bool                   `json:"cancelAsked,omitempty"`
}

// maxCheckpoints bounds the per-execution checkpoint list; older entries
// are dropped FIFO once the bound is reached (spec.md §4.4.3).
const maxCheckpoints = 100

func appendCheckpoint(cps []Checkpoint, cp Checkpoint) []Checkpoint {
	cps = append(cps, cp)
	if len(cps) > maxCheckpoints {
		cps = cps[len(cps)-maxCheckpoints:]
	}
	return cps
}
