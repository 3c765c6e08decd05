package eval

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// EvalCondition evaluates a boolean expression against the run data. Every
// input/state reference appearing in the expression must resolve, and the
// result must be a boolean; anything else is an EvaluationError, never a
// silent coercion.
func (d Data) EvalCondition(src string) (bool, error) {
	if strings.TrimSpace(src) == "" {
		return false, &EvaluationError{Expr: src, Reason: "empty condition"}
	}
	for _, ref := range ExtractRefs(src) {
		if _, err := d.Resolve(ref); err != nil {
			return false, err
		}
	}

	env := d.env()
	program, err := expr.Compile(src, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, &EvaluationError{Expr: src, Reason: fmt.Sprintf("compile: %v", err)}
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, &EvaluationError{Expr: src, Reason: fmt.Sprintf("run: %v", err)}
	}
	b, ok := out.(bool)
	if !ok {
		return false, &EvaluationError{Expr: src, Reason: fmt.Sprintf("result is %T (%v), not a boolean", out, out)}
	}
	return b, nil
}
