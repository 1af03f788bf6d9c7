package workflow

import (
	"context"
	"testing"
)

func TestDataAggregatorAgent_SumsArrayPathAndEvaluatesFormula(t *testing.T) {
	agent, err := newDataAggregatorAgent(map[string]interface{}{
		"sources": map[string]interface{}{
			"amounts": "values[].amount",
		},
		"aggregations": map[string]interface{}{
			"total": map[string]interface{}{"op": "sum", "source": "amounts"},
		},
		"outputs": map[string]interface{}{
			"total": "total",
		},
	}, Runtime{})
	if err != nil {
		t.Fatalf("newDataAggregatorAgent returned error: %v", err)
	}

	inputs := map[string]interface{}{
		"values": []interface{}{
			map[string]interface{}{"amount": float64(10)},
			map[string]interface{}{"amount": float64(20)},
		},
	}

	out, err := agent.Invoke(context.Background(), inputs, nil)
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if out["total"] != float64(30) {
		t.Errorf("total = %v, want 30", out["total"])
	}
}

func TestDataAggregatorAgent_AppliesFormulaOverMultipleAggregations(t *testing.T) {
	agent, err := newDataAggregatorAgent(map[string]interface{}{
		"sources": map[string]interface{}{
			"amounts": "values[].amount",
		},
		"aggregations": map[string]interface{}{
			"total": map[string]interface{}{"op": "sum", "source": "amounts"},
			"count": map[string]interface{}{"op": "count", "source": "amounts"},
		},
		"outputs": map[string]interface{}{
			"average": "total/count",
		},
	}, Runtime{})
	if err != nil {
		t.Fatalf("newDataAggregatorAgent returned error: %v", err)
	}

	inputs := map[string]interface{}{
		"values": []interface{}{
			map[string]interface{}{"amount": float64(10)},
			map[string]interface{}{"amount": float64(20)},
		},
	}

	out, err := agent.Invoke(context.Background(), inputs, nil)
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if out["average"] != float64(15) {
		t.Errorf("average = %v, want 15", out["average"])
	}
}

func TestNewDataAggregatorAgent_RequiresAtLeastOneOutput(t *testing.T) {
	if _, err := newDataAggregatorAgent(map[string]interface{}{}, Runtime{}); err == nil {
		t.Error("expected an error when no outputs are declared")
	}
}

func TestDataAggregatorAgent_RejectsFormulaReferencingUnknownAggregation(t *testing.T) {
	agent, err := newDataAggregatorAgent(map[string]interface{}{
		"outputs": map[string]interface{}{"result": "missing+1"},
	}, Runtime{})
	if err != nil {
		t.Fatalf("newDataAggregatorAgent returned error: %v", err)
	}
	if _, err := agent.Invoke(context.Background(), nil, nil); err == nil {
		t.Error("expected an error for a formula referencing an undeclared aggregation")
	}
}

func TestExtractNumbers_RejectsNonNumericLeaf(t *testing.T) {
	_, err := extractNumbers(map[string]interface{}{"value": "not a number"}, "value")
	if err == nil {
		t.Error("expected an error for a non-numeric path target")
	}
}

func TestReduceNumbers_ComputesEachOp(t *testing.T) {
	values := []float64{10, 20, 30}

	cases := []struct {
		op   string
		want float64
	}{
		{"sum", 60},
		{"avg", 20},
		{"min", 10},
		{"max", 30},
		{"count", 3},
	}

	for _, c := range cases {
		got, err := reduceNumbers(c.op, values)
		if err != nil {
			t.Fatalf("reduceNumbers(%q) returned error: %v", c.op, err)
		}
		if got != c.want {
			t.Errorf("reduceNumbers(%q) = %v, want %v", c.op, got, c.want)
		}
	}
}
