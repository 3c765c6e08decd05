package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/weaveflow/weaveflow/trace"
)

// MissingInputError reports workflow input fields that reachable steps
// reference but the provided input lacks. Raised before any step executes,
// listing every missing name.
type MissingInputError struct {
	Workflow string
	Missing  []string // sorted
}

// Error implements the error interface.
func (e *MissingInputError) Error() string {
	return fmt.Sprintf("workflow %s: missing input fields: %s", e.Workflow, strings.Join(e.Missing, ", "))
}

// UnknownSuccessorError reports a step routing to an id the workflow does not
// define. The compiler should have caught this; the engine re-checks at
// dispatch time.
type UnknownSuccessorError struct {
	From string
	To   string
}

// Error implements the error interface.
func (e *UnknownSuccessorError) Error() string {
	return fmt.Sprintf("step %q routes to unknown step %q", e.From, e.To)
}

// StateConflictError reports a second write to a state name. State names are
// written at most once per run.
type StateConflictError struct {
	Name string
	Step string
}

// Error implements the error interface.
func (e *StateConflictError) Error() string {
	return fmt.Sprintf("step %q rewrites state name %q", e.Step, e.Name)
}

// ModelFailure is one failed attempt inside an exhausted fallback chain.
type ModelFailure struct {
	Model    string `json:"model"`
	Provider string `json:"provider,omitempty"`
	Reason   string `json:"reason"`
}

// ProviderExhaustedError reports that every model in an agent's chain failed.
// Failures appear in attempt order.
type ProviderExhaustedError struct {
	Agent    string
	Failures []ModelFailure
}

// Error implements the error interface.
func (e *ProviderExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "agent %s: all %d models failed", e.Agent, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; %s: %s", f.Model, f.Reason)
	}
	return b.String()
}

// ApprovalRejectedError reports a rejected gate in front of a capability
// call. A rejection is a normal outcome, not a fault, but it still ends the
// run: the gateway was never invoked and there is no result to continue with.
type ApprovalRejectedError struct {
	Step     string
	Response any
}

// Error implements the error interface.
func (e *ApprovalRejectedError) Error() string {
	return fmt.Sprintf("step %q: approval rejected", e.Step)
}

// ApprovalTimeoutError reports a gate whose decision window closed before a
// decision arrived.
type ApprovalTimeoutError struct {
	Step   string
	Waited time.Duration
}

// Error implements the error interface.
func (e *ApprovalTimeoutError) Error() string {
	if e.Waited > 0 {
		return fmt.Sprintf("step %q: approval timed out after %s", e.Step, e.Waited)
	}
	return fmt.Sprintf("step %q: approval timed out", e.Step)
}

// RunFailure wraps the typed error that aborted a run together with the
// partial trace collected up to and including the failing step.
type RunFailure struct {
	RunID    string
	Workflow string
	Err      error
	Trace    []trace.Event
	CostUSD  float64
}

// Error implements the error interface.
func (e *RunFailure) Error() string {
	return fmt.Sprintf("run %s (%s) failed: %v", e.RunID, e.Workflow, e.Err)
}

// Unwrap exposes the typed failure to errors.As and errors.Is.
func (e *RunFailure) Unwrap() error { return e.Err }
