package workflow

import "testing"

func simpleMeta() Metadata {
	return Metadata{
		Agents: []NodeMetadata{
			{ID: "start", AgentType: "dynamic"},
			{ID: "end", AgentType: "dynamic"},
		},
		Connections: []EdgeMetadata{
			{From: "start", To: "end"},
		},
		EntryPoint: "start",
	}
}

func TestCompile_AcceptsWellFormedGraph(t *testing.T) {
	graph, err := Compile(simpleMeta())
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if graph.Entry() != "start" {
		t.Errorf("Entry() = %q, want %q", graph.Entry(), "start")
	}
	if len(graph.NodeIDs()) != 2 {
		t.Errorf("NodeIDs() has %d entries, want 2", len(graph.NodeIDs()))
	}
}

func TestCompile_RejectsDuplicateAgentID(t *testing.T) {
	meta := simpleMeta()
	meta.Agents = append(meta.Agents, NodeMetadata{ID: "start", AgentType: "dynamic"})

	if _, err := Compile(meta); err == nil {
		t.Error("expected an error for a duplicate agent id")
	}
}

func TestCompile_RejectsEdgeToUnknownNode(t *testing.T) {
	meta := simpleMeta()
	meta.Connections = append(meta.Connections, EdgeMetadata{From: "end", To: "ghost"})

	if _, err := Compile(meta); err == nil {
		t.Error("expected an error for an edge referencing an unknown node")
	}
}

func TestCompile_RejectsUnknownEntryPoint(t *testing.T) {
	meta := simpleMeta()
	meta.EntryPoint = "missing"

	if _, err := Compile(meta); err == nil {
		t.Error("expected an error for an unknown entryPoint")
	}
}

func TestCompile_RejectsDisconnectedNode(t *testing.T) {
	meta := simpleMeta()
	meta.Agents = append(meta.Agents, NodeMetadata{ID: "island", AgentType: "dynamic"})

	if _, err := Compile(meta); err == nil {
		t.Error("expected an error for a node unreachable from entry")
	}
}

func TestCompile_RejectsCycleWithoutMaxIterations(t *testing.T) {
	meta := Metadata{
		Agents: []NodeMetadata{
			{ID: "a", AgentType: "dynamic"},
			{ID: "b", AgentType: "dynamic"},
		},
		Connections: []EdgeMetadata{
			{From: "a", To: "b"},
			{From: "b", To: "a"},
		},
		EntryPoint: "a",
	}

	if _, err := Compile(meta); err == nil {
		t.Error("expected an error for a cycle with no declared maxIterations")
	}
}

func TestCompile_AcceptsCycleWithMaxIterations(t *testing.T) {
	meta := Metadata{
		Agents: []NodeMetadata{
			{ID: "a", AgentType: "dynamic", MaxIterations: 3},
			{ID: "b", AgentType: "dynamic", MaxIterations: 3},
		},
		Connections: []EdgeMetadata{
			{From: "a", To: "b"},
			{From: "b", To: "a"},
		},
		EntryPoint: "a",
	}

	if _, err := Compile(meta); err != nil {
		t.Fatalf("expected a bounded cycle to compile, got error: %v", err)
	}
}

func TestCompile_RejectsInvalidCondition(t *testing.T) {
	meta := simpleMeta()
	meta.Connections[0].Condition = "process.exit()"

	if _, err := Compile(meta); err == nil {
		t.Error("expected an error for a condition with foreign tokens")
	}
}

func TestGraph_NextNode_SelectsFirstTrueCondition(t *testing.T) {
	meta := Metadata{
		Agents: []NodeMetadata{
			{ID: "start", AgentType: "dynamic"},
			{ID: "low", AgentType: "dynamic"},
			{ID: "high", AgentType: "dynamic"},
		},
		Connections: []EdgeMetadata{
			{From: "start", To: "high", Condition: "score-50"},
			{From: "start", To: "low", Default: true},
		},
		EntryPoint: "start",
	}

	graph, err := Compile(meta)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}

	next, ok, err := graph.NextNode("start", map[string]interface{}{"score": 90.0})
	if err != nil {
		t.Fatalf("NextNode returned error: %v", err)
	}
	if !ok || next != "high" {
		t.Errorf("NextNode = (%q, %v), want (\"high\", true)", next, ok)
	}

	next, ok, err = graph.NextNode("start", map[string]interface{}{"score": 10.0})
	if err != nil {
		t.Fatalf("NextNode returned error: %v", err)
	}
	if !ok || next != "low" {
		t.Errorf("NextNode = (%q, %v), want (\"low\", true) via default edge", next, ok)
	}
}

func TestGraph_NextNode_ReturnsFalseForTerminalNode(t *testing.T) {
	graph, err := Compile(simpleMeta())
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}

	_, ok, err := graph.NextNode("end", nil)
	if err != nil {
		t.Fatalf("NextNode returned error: %v", err)
	}
	if ok {
		t.Error("expected NextNode on a terminal node to report no next node")
	}
}
