package engine

import (
	"fmt"
	"time"

	"github.com/weaveflow/weaveflow/budget"
	"github.com/weaveflow/weaveflow/eval"
	"github.com/weaveflow/weaveflow/ir"
	"github.com/weaveflow/weaveflow/trace"
)

// Status is the lifecycle state of a run.
type Status int

const (
	// StatusRunning means the run is executing steps.
	StatusRunning Status = iota
	// StatusAwaitingApproval means the run is suspended at an approval gate.
	StatusAwaitingApproval
	// StatusSucceeded means the run reached an end step.
	StatusSucceeded
	// StatusFailed means the run aborted with a typed error.
	StatusFailed
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusAwaitingApproval:
		return "awaiting_approval"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// RunResult is the outcome of a run that reached an end step.
type RunResult struct {
	RunID    string
	Workflow string
	Status   Status
	Output   map[string]any
	State    map[string]any
	Trace    []trace.Event
	CostUSD  float64
	Duration time.Duration
}

// runState is the mutable working set of one run, owned exclusively by the
// executing goroutine. The state namespace is write-once per name.
type runState struct {
	id       string
	workflow *ir.Workflow
	input    map[string]any
	state    map[string]any
	tracker  *budget.Tracker
	tracer   *trace.Tracer
}

func (r *runState) data() eval.Data {
	return eval.Data{Input: r.input, State: r.state}
}

// saveState writes a step's declared output into the state namespace. A
// second write to the same name is a StateConflictError.
func (r *runState) saveState(stepID, name string, value any) error {
	if name == "" {
		return nil
	}
	if _, exists := r.state[name]; exists {
		return &StateConflictError{Name: name, Step: stepID}
	}
	r.state[name] = value
	return nil
}
