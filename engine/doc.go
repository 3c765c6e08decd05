// Package engine executes compiled workflow graphs.
//
// A workflow is a finite graph of typed steps compiled into an ir.Bundle:
// llm steps invoke an agent's model chain, call steps invoke capabilities on
// tool servers, condition steps branch on boolean expressions, human_approval
// steps suspend for an external decision, and an end step closes the run.
// The engine walks the graph from the entry step, dispatching each step
// through a type switch and following successor ids until an end step or a
// typed failure.
//
// # Execution Model
//
// Each Execute call is one run. A run owns its working set exclusively: the
// immutable input, the write-once state namespace, the budget tracker, and
// the trace. No locks guard them; the run executes on a single goroutine.
// The engine itself is safe for concurrent use, and tracks in-flight runs in
// a registry keyed by run id for Cancel and RunStatus.
//
// Before the first step executes, the engine walks every step reachable from
// the entry and collects the input fields their expressions reference. A
// missing field fails the run up front with MissingInputError listing all
// missing names, so a run never burns budget before discovering an input it
// cannot resolve.
//
// # Budgets
//
// The workflow's policy becomes the run's budget: spend units first, then
// check, so the recorded totals always reflect what was attempted. Steps
// charge one step unit, capability calls one call unit, and every model
// attempt its USD cost, successful or not. The time budget rides on the run
// context as a deadline, cancelling in-flight gateway calls and approval
// waits the moment it elapses. When the workflow names no policy, agents'
// own policies bound their operations against the same run-wide counters.
//
// # Failure Semantics
//
// Failures are values. Each failure mode has a typed error, the run aborts
// at the failure point, and Execute wraps the cause in a *RunFailure that
// carries the partial trace up to and including the failing step. The model
// fallback chain is the only internal retry; capabilities are never retried
// because they may have side effects.
package engine
