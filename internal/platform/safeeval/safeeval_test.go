package safeeval

import "testing"

func TestEvaluate_RespectsPrecedenceAndParentheses(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"(2+3)*4", 20},
		{"2+3*4", 14},
		{"10/2-3", 2},
		{"-5+2", -3},
		{"2*(3+(4-1))", 12},
		{"1.5+2.5", 4},
		{"  7 - 2  ", 5},
	}

	for _, c := range cases {
		got, err := Evaluate(c.expr)
		if err != nil {
			t.Fatalf("Evaluate(%q) returned error: %v", c.expr, err)
		}
		if got != c.want {
			t.Errorf("Evaluate(%q) = %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestEvaluate_RejectsForeignTokens(t *testing.T) {
	cases := []string{
		"process.exit()",
		"2+foo",
		"2; 3",
		"2**3",
		"import os",
	}

	for _, expr := range cases {
		if _, err := Evaluate(expr); err == nil {
			t.Errorf("Evaluate(%q) expected a validation error, got nil", expr)
		}
	}
}

func TestEvaluate_RejectsUnbalancedParentheses(t *testing.T) {
	cases := []string{"(2+3", "2+3)", "((1+2)"}
	for _, expr := range cases {
		if _, err := Evaluate(expr); err == nil {
			t.Errorf("Evaluate(%q) expected an error for unbalanced parens", expr)
		}
	}
}

func TestEvaluate_RejectsDivisionByZero(t *testing.T) {
	if _, err := Evaluate("1/0"); err == nil {
		t.Error("expected division by zero to error")
	}
}

func TestEvaluate_RejectsTrailingInput(t *testing.T) {
	if _, err := Evaluate("2+2 2"); err == nil {
		t.Error("expected trailing input to error")
	}
}
