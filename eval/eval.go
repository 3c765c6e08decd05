// Package eval resolves dotted references (input.x, state.y.z) and evaluates
// boolean condition expressions against the data of one run. A string whose
// first dotted segment is exactly "input" or "state" is a reference; anything
// else is a literal. Resolution never coerces: a missing path or a non-boolean
// condition result is an EvaluationError.
package eval

import (
	"fmt"
	"regexp"
	"strings"
)

// EvaluationError reports a failed reference resolution or condition
// evaluation.
type EvaluationError struct {
	Expr   string
	Reason string
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %q: %s", e.Expr, e.Reason)
}

// Data is the evaluation environment of one run: the immutable input namespace
// and the append-only state namespace. Data is exclusively owned by one run
// and needs no locking.
type Data struct {
	Input map[string]any
	State map[string]any
}

func (d Data) env() map[string]any {
	return map[string]any{"input": d.Input, "state": d.State}
}

// IsRef reports whether s is a dotted reference into the run data.
func IsRef(s string) bool {
	root, _, _ := strings.Cut(s, ".")
	return root == "input" || root == "state"
}

// Resolve follows a dotted reference through the run data. The bare roots
// "input" and "state" resolve to the whole namespace.
func (d Data) Resolve(ref string) (any, error) {
	parts := strings.Split(ref, ".")

	var cur any
	switch parts[0] {
	case "input":
		cur = d.Input
	case "state":
		cur = d.State
	default:
		return nil, &EvaluationError{Expr: ref, Reason: fmt.Sprintf("unknown root %q", parts[0])}
	}

	for i, part := range parts[1:] {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, &EvaluationError{Expr: ref, Reason: fmt.Sprintf("cannot access %q on %T", part, cur)}
		}
		v, ok := m[part]
		if !ok {
			return nil, &EvaluationError{Expr: ref, Reason: fmt.Sprintf("path %q not found", strings.Join(parts[:i+2], "."))}
		}
		cur = v
	}
	return cur, nil
}

// ResolveValue resolves one mapping value: reference strings resolve against
// the run data, maps and lists resolve element-wise, everything else passes
// through as a literal.
func (d Data) ResolveValue(v any) (any, error) {
	switch t := v.(type) {
	case string:
		if IsRef(t) {
			return d.Resolve(t)
		}
		return t, nil
	case map[string]any:
		return d.ResolveMapping(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			rv, err := d.ResolveValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

// ResolveMapping resolves every value of a mapping, preserving keys.
func (d Data) ResolveMapping(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		rv, err := d.ResolveValue(v)
		if err != nil {
			return nil, err
		}
		out[k] = rv
	}
	return out, nil
}

var refPattern = regexp.MustCompile(`\b(input|state)(\.[A-Za-z_][A-Za-z0-9_]*)+`)

// ExtractRefs returns every dotted input/state reference appearing in an
// expression string, in order of appearance.
func ExtractRefs(expr string) []string {
	return refPattern.FindAllString(expr, -1)
}

// RefsInValue gathers the references a mapping value would resolve: whole
// reference strings, recursing through maps and lists. Literal strings are not
// scanned.
func RefsInValue(v any) []string {
	switch t := v.(type) {
	case string:
		if IsRef(t) {
			return []string{t}
		}
		return nil
	case map[string]any:
		var refs []string
		for _, item := range t {
			refs = append(refs, RefsInValue(item)...)
		}
		return refs
	case []any:
		var refs []string
		for _, item := range t {
			refs = append(refs, RefsInValue(item)...)
		}
		return refs
	default:
		return nil
	}
}

// InputFields returns the first-segment input field names referenced by the
// given references, deduplicated in first-seen order.
func InputFields(refs []string) []string {
	var fields []string
	seen := map[string]bool{}
	for _, ref := range refs {
		parts := strings.Split(ref, ".")
		if parts[0] != "input" || len(parts) < 2 {
			continue
		}
		if !seen[parts[1]] {
			seen[parts[1]] = true
			fields = append(fields, parts[1])
		}
	}
	return fields
}
