package workflow

import (
	"fmt"

	"github.com/inspectra/platform-core/internal/platform/safeeval"
	"github.com/inspectra/platform-core/pkg/errors"
)

// Graph is a compiled, validated workflow: per spec.md §4.4.2, one node
// per agent declaration and edges from metadata connections, with an
// entry node and cycle/connectivity guarantees already checked.
type Graph struct {
	nodes     map[string]NodeMetadata
	edgesFrom map[string][]EdgeMetadata
	entry     string
	nodeOrder []string
}

// Compile validates meta and produces a Graph, per spec.md §4.4.2:
// unique agent ids, every edge endpoint exists, the graph is connected
// from entry, and no cycles unless every node on the cycle declares an
// explicit MaxIterations. Cycle detection is grounded on
// eve.evalgo.org/graph's checkCycleRecursive/GetExecutionOrder
// (Kahn's-algorithm) pairing: topological peeling first, then checking
// whether the leftover (cyclic) nodes all opted in to bounded looping.
func Compile(meta Metadata) (*Graph, error) {
	if meta.EntryPoint == "" {
		return nil, errors.ErrValidation("workflow metadata has no entryPoint")
	}

	nodes := make(map[string]NodeMetadata, len(meta.Agents))
	var order []string
	for _, n := range meta.Agents {
		if n.ID == "" {
			return nil, errors.ErrValidation("workflow agent declaration missing an id")
		}
		if _, dup := nodes[n.ID]; dup {
			return nil, errors.ErrValidation(fmt.Sprintf("duplicate agent id %q", n.ID))
		}
		nodes[n.ID] = n
		order = append(order, n.ID)
	}

	if _, ok := nodes[meta.EntryPoint]; !ok {
		return nil, errors.ErrValidation(fmt.Sprintf("entryPoint %q is not a declared agent", meta.EntryPoint))
	}

	edgesFrom := make(map[string][]EdgeMetadata, len(nodes))
	for _, e := range meta.Connections {
		if _, ok := nodes[e.From]; !ok {
			return nil, errors.ErrValidation(fmt.Sprintf("connection references unknown source node %q", e.From))
		}
		if _, ok := nodes[e.To]; !ok {
			return nil, errors.ErrValidation(fmt.Sprintf("connection references unknown target node %q", e.To))
		}
		if e.Condition != "" {
			if _, err := safeeval.Evaluate(sanitizeForValidation(e.Condition)); err != nil {
				return nil, errors.ErrValidation(fmt.Sprintf("connection %s->%s has an invalid condition: %v", e.From, e.To, err))
			}
		}
		edgesFrom[e.From] = append(edgesFrom[e.From], e)
	}

	if err := checkConnected(meta.EntryPoint, nodes, edgesFrom); err != nil {
		return nil, err
	}

	if err := checkCycles(nodes, edgesFrom); err != nil {
		return nil, err
	}

	return &Graph{nodes: nodes, edgesFrom: edgesFrom, entry: meta.EntryPoint, nodeOrder: order}, nil
}

// sanitizeForValidation replaces bare identifiers with the literal "1"
// so a condition expression that references live-state fields (resolved
// only at execution time) can still be checked for grammatical validity
// at compile time.
func sanitizeForValidation(condition string) string {
	return identifierPattern.ReplaceAllString(condition, "1")
}

// checkConnected verifies every node is reachable from entry via a
// breadth-first walk of the edge list — the graph is connected from
// entry, per spec.md §4.4.2.
func checkConnected(entry string, nodes map[string]NodeMetadata, edgesFrom map[string][]EdgeMetadata) error {
	visited := map[string]bool{entry: true}
	queue := []string{entry}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range edgesFrom[id] {
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	for id := range nodes {
		if !visited[id] {
			return errors.ErrValidation(fmt.Sprintf("node %q is not reachable from entry point", id))
		}
	}
	return nil
}

// checkCycles runs Kahn's algorithm to find a topological order; any
// nodes left unprocessed sit on a cycle. The graph is still valid if
// every node on that cycle declares an explicit MaxIterations, per
// spec.md §4.4.2's "no cycles unless an explicit maxIterations is
// declared on a node" escape hatch.
func checkCycles(nodes map[string]NodeMetadata, edgesFrom map[string][]EdgeMetadata) error {
	inDegree := make(map[string]int, len(nodes))
	for id := range nodes {
		inDegree[id] = 0
	}
	for _, edges := range edgesFrom {
		for _, e := range edges {
			inDegree[e.To]++
		}
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	processed := map[string]bool{}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed[id] = true
		for _, e := range edgesFrom[id] {
			inDegree[e.To]--
			if inDegree[e.To] == 0 {
				queue = append(queue, e.To)
			}
		}
	}

	for id, node := range nodes {
		if processed[id] {
			continue
		}
		if node.MaxIterations <= 0 {
			return errors.ErrValidation(fmt.Sprintf("circular dependency detected at node %q with no declared maxIterations", id))
		}
	}
	return nil
}

// Node returns the declared metadata for id.
func (g *Graph) Node(id string) (NodeMetadata, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Entry returns the workflow's entry node id.
func (g *Graph) Entry() string {
	return g.entry
}

// NodeIDs returns every declared node id in declaration order.
func (g *Graph) NodeIDs() []string {
	out := make([]string, len(g.nodeOrder))
	copy(out, g.nodeOrder)
	return out
}

// NextNode evaluates the outgoing edges of id against state in
// declaration order, selecting the first edge whose Condition is
// satisfied (a non-empty, non-zero safeeval result), falling back to the
// edge marked Default, then to an unconditional edge. Returns "", false
// when id has no outgoing edges (a terminal node).
func (g *Graph) NextNode(id string, state map[string]interface{}) (string, bool, error) {
	edges := g.edgesFrom[id]
	if len(edges) == 0 {
		return "", false, nil
	}

	var defaultEdge *EdgeMetadata
	for i := range edges {
		e := edges[i]
		if e.Default {
			defaultEdge = &edges[i]
			continue
		}
		if e.Condition == "" {
			return e.To, true, nil
		}

		expr, err := substituteStateNumbers(e.Condition, state)
		if err != nil {
			continue
		}
		result, err := safeeval.Evaluate(expr)
		if err != nil {
			continue
		}
		if result != 0 {
			return e.To, true, nil
		}
	}

	if defaultEdge != nil {
		return defaultEdge.To, true, nil
	}
	return "", false, nil
}

// substituteStateNumbers replaces bare identifiers in condition with the
// numeric value of the matching key in state, so the same safeeval
// grammar backs both DataAggregatorAgent formulas and edge conditions
// rather than introducing a second expression language.
func substituteStateNumbers(condition string, state map[string]interface{}) (string, error) {
	numeric := map[string]float64{}
	for k, v := range state {
		if n, ok := toFloat(v); ok {
			numeric[k] = n
		}
	}
	return substituteIdentifiers(condition, numeric)
}
