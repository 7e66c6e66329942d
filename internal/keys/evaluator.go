// internal/keys/evaluator.go
package keys

import (
	"fmt"
	"sync"

	"github.com/casbin/govaluate"
)

// Evaluator is the expression engine used to compute the dynamic parts of a
// key template.
type Evaluator interface {
	// Variables parses expression and returns the names of the variables it
	// references. A parse failure means the expression is malformed.
	Variables(expression string) ([]string, error)

	// Evaluate computes expression with the given variables bound.
	Evaluate(expression string, variables map[string]any) (any, error)
}

// GovaluateEvaluator evaluates expressions with govaluate. Parsed expressions
// are cached, so repeated calls for the same call site only pay for
// evaluation.
type GovaluateEvaluator struct {
	parsed sync.Map // expression -> *govaluate.EvaluableExpression
}

// NewGovaluateEvaluator returns an evaluator backed by govaluate.
func NewGovaluateEvaluator() *GovaluateEvaluator {
	return &GovaluateEvaluator{}
}

func (e *GovaluateEvaluator) parse(expression string) (*govaluate.EvaluableExpression, error) {
	if cached, ok := e.parsed.Load(expression); ok {
		return cached.(*govaluate.EvaluableExpression), nil
	}

	parsed, err := govaluate.NewEvaluableExpression(expression)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", expression, err)
	}
	actual, _ := e.parsed.LoadOrStore(expression, parsed)
	return actual.(*govaluate.EvaluableExpression), nil
}

// Variables implements Evaluator. For accessors such as order.ID only the
// root variable name is reported.
func (e *GovaluateEvaluator) Variables(expression string) ([]string, error) {
	parsed, err := e.parse(expression)
	if err != nil {
		return nil, err
	}

	var names []string
	seen := make(map[string]struct{})
	for _, token := range parsed.Tokens() {
		var name string
		switch token.Kind {
		case govaluate.VARIABLE:
			name, _ = token.Value.(string)
		case govaluate.ACCESSOR:
			if path, ok := token.Value.([]string); ok && len(path) > 0 {
				name = path[0]
			}
		}
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

// maxExactInteger is the largest magnitude float64 holds without rounding.
const maxExactInteger = 1 << 53

// Evaluate implements Evaluator. An expression that is a single variable
// yields the bound value unchanged. Other expressions compute on float64, so
// they reject integer variables float64 cannot hold exactly.
func (e *GovaluateEvaluator) Evaluate(expression string, variables map[string]any) (any, error) {
	parsed, err := e.parse(expression)
	if err != nil {
		return nil, err
	}

	if tokens := parsed.Tokens(); len(tokens) == 1 && tokens[0].Kind == govaluate.VARIABLE {
		if name, ok := tokens[0].Value.(string); ok {
			return variables[name], nil
		}
	}

	for _, name := range parsed.Vars() {
		if v := variables[name]; !exactAsFloat(v) {
			return nil, fmt.Errorf("evaluate %q: integer %s=%v exceeds float64 precision", expression, name, v)
		}
	}

	value, err := parsed.Evaluate(variables)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", expression, err)
	}
	return value, nil
}

func exactAsFloat(v any) bool {
	switch n := v.(type) {
	case int:
		return int64(n) >= -maxExactInteger && int64(n) <= maxExactInteger
	case int64:
		return n >= -maxExactInteger && n <= maxExactInteger
	case uint:
		return uint64(n) <= maxExactInteger
	case uint64:
		return n <= maxExactInteger
	default:
		return true
	}
}
