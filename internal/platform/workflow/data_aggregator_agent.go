package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/inspectra/platform-core/internal/platform/safeeval"
	"github.com/inspectra/platform-core/pkg/errors"
)

// aggregationSpec names a reduction (sum, avg, min, max, count) over the
// numbers a named source path extracted.
type aggregationSpec struct {
	Op     string
	Source string
}

// dataAggregatorAgent aggregates data from prior agent outputs per a
// declarative spec; every formula is evaluated exclusively through
// safeeval, never a general expression library, per spec.md §4.4.1 and
// the design note in §9.
type dataAggregatorAgent struct {
	sources      map[string]string
	aggregations map[string]aggregationSpec
	outputs      map[string]string
}

func newDataAggregatorAgent(agentConfig map[string]interface{}, _ Runtime) (Agent, error) {
	a := &dataAggregatorAgent{
		sources:      map[string]string{},
		aggregations: map[string]aggregationSpec{},
		outputs:      map[string]string{},
	}

	if raw, ok := agentConfig["sources"].(map[string]interface{}); ok {
		for name, v := range raw {
			path, ok := v.(string)
			if !ok {
				return nil, errors.ErrValidation(fmt.Sprintf("source %q must be a path string", name))
			}
			a.sources[name] = path
		}
	}

	if raw, ok := agentConfig["aggregations"].(map[string]interface{}); ok {
		for name, v := range raw {
			spec, ok := v.(map[string]interface{})
			if !ok {
				return nil, errors.ErrValidation(fmt.Sprintf("aggregation %q must be an object", name))
			}
			op, _ := spec["op"].(string)
			source, _ := spec["source"].(string)
			if op == "" || source == "" {
				return nil, errors.ErrValidation(fmt.Sprintf("aggregation %q requires op and source", name))
			}
			a.aggregations[name] = aggregationSpec{Op: op, Source: source}
		}
	}

	if raw, ok := agentConfig["outputs"].(map[string]interface{}); ok {
		for name, v := range raw {
			formula, ok := v.(string)
			if !ok {
				return nil, errors.ErrValidation(fmt.Sprintf("output %q must be a formula string", name))
			}
			a.outputs[name] = formula
		}
	}

	if len(a.outputs) == 0 {
		return nil, errors.ErrValidation("data aggregator agent requires at least one output formula")
	}

	return a, nil
}

func (a *dataAggregatorAgent) Invoke(ctx context.Context, inputs map[string]interface{}, config map[string]interface{}) (map[string]interface{}, error) {
	sourceValues := make(map[string][]float64, len(a.sources))
	for name, path := range a.sources {
		values, err := extractNumbers(inputs, path)
		if err != nil {
			return nil, err
		}
		sourceValues[name] = values
	}

	aggResults := make(map[string]float64, len(a.aggregations))
	for name, spec := range a.aggregations {
		values, ok := sourceValues[spec.Source]
		if !ok {
			return nil, errors.ErrValidation(fmt.Sprintf("aggregation %q references unknown source %q", name, spec.Source))
		}
		result, err := reduceNumbers(spec.Op, values)
		if err != nil {
			return nil, err
		}
		aggResults[name] = result
	}

	outputs := make(map[string]interface{}, len(a.outputs))
	for name, formula := range a.outputs {
		expr, err := substituteIdentifiers(formula, aggResults)
		if err != nil {
			return nil, err
		}
		result, err := safeeval.Evaluate(expr)
		if err != nil {
			return nil, err
		}
		outputs[name] = result
	}
	return outputs, nil
}

func reduceNumbers(op string, values []float64) (float64, error) {
	switch op {
	case "sum":
		var total float64
		for _, v := range values {
			total += v
		}
		return total, nil
	case "avg":
		if len(values) == 0 {
			return 0, nil
		}
		var total float64
		for _, v := range values {
			total += v
		}
		return total / float64(len(values)), nil
	case "min":
		if len(values) == 0 {
			return 0, nil
		}
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min, nil
	case "max":
		if len(values) == 0 {
			return 0, nil
		}
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max, nil
	case "count":
		return float64(len(values)), nil
	default:
		return 0, errors.ErrValidation(fmt.Sprintf("unknown aggregation op %q", op))
	}
}

// identifierPattern matches bare identifiers in a formula, used to
// substitute aggregation result names with their numeric values before
// handing the formula to safeeval, which only understands numeric
// literals and arithmetic operators.
var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

func substituteIdentifiers(formula string, values map[string]float64) (string, error) {
	var substitutionErr error
	out := identifierPattern.ReplaceAllStringFunc(formula, func(name string) string {
		v, ok := values[name]
		if !ok {
			substitutionErr = errors.ErrValidation(fmt.Sprintf("formula references unknown aggregation %q", name))
			return name
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	})
	if substitutionErr != nil {
		return "", substitutionErr
	}
	return out, nil
}

// extractNumbers walks a dotted path into data, where a single segment
// suffixed "[]" iterates an array of objects, collecting the numeric
// value found at the remaining path for each element. This covers the
// common declarative shape "items[].amount" without a general JSONPath
// dependency, since the only consumer is this package's own config.
func extractNumbers(data map[string]interface{}, path string) ([]float64, error) {
	segments := splitPath(path)
	return walkPath(data, segments, path)
}

func splitPath(path string) []string {
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segments = append(segments, path[start:i])
			start = i + 1
		}
	}
	segments = append(segments, path[start:])
	return segments
}

func walkPath(node interface{}, segments []string, fullPath string) ([]float64, error) {
	if len(segments) == 0 {
		n, ok := toFloat(node)
		if !ok {
			return nil, errors.ErrValidation(fmt.Sprintf("path %q did not resolve to a number", fullPath))
		}
		return []float64{n}, nil
	}

	seg := segments[0]
	rest := segments[1:]

	isArray := len(seg) > 2 && seg[len(seg)-2:] == "[]"
	key := seg
	if isArray {
		key = seg[:len(seg)-2]
	}

	m, ok := node.(map[string]interface{})
	if !ok {
		return nil, errors.ErrValidation(fmt.Sprintf("path %q: expected an object", fullPath))
	}
	next, ok := m[key]
	if !ok {
		return nil, errors.ErrValidation(fmt.Sprintf("path %q: field %q not found", fullPath, key))
	}

	if !isArray {
		return walkPath(next, rest, fullPath)
	}

	items, ok := next.([]interface{})
	if !ok {
		return nil, errors.ErrValidation(fmt.Sprintf("path %q: field %q is not an array", fullPath, key))
	}

	var out []float64
	for _, item := range items {
		vals, err := walkPath(item, rest, fullPath)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}
	return out, nil
}

var _ Agent = (*dataAggregatorAgent)(nil)
