package engine

import (
	"github.com/weaveflow/weaveflow/trace"
)

// Hook observes run lifecycle points. Hooks run synchronously on the run's
// goroutine in registration order, so implementations must be fast and must
// not block; they cannot influence execution.
//
// The CLI streams trace events to the terminal through a hook; tests use one
// to observe runs without polling.
type Hook interface {
	// RunStarted fires after the run is registered, before the entry step.
	RunStarted(runID, workflow string)

	// StepCompleted fires after a step's trace event is recorded, success
	// or failure. The event is a copy; mutating it has no effect.
	StepCompleted(runID string, event trace.Event)

	// RunEnded fires after the run reaches its final status. err is nil
	// for a successful run.
	RunEnded(runID string, status Status, err error)
}

// HookFuncs adapts bare functions to the Hook interface. Nil fields are
// skipped.
type HookFuncs struct {
	OnRunStarted   func(runID, workflow string)
	OnStepComplete func(runID string, event trace.Event)
	OnRunEnded     func(runID string, status Status, err error)
}

// RunStarted implements Hook.
func (h HookFuncs) RunStarted(runID, workflow string) {
	if h.OnRunStarted != nil {
		h.OnRunStarted(runID, workflow)
	}
}

// StepCompleted implements Hook.
func (h HookFuncs) StepCompleted(runID string, event trace.Event) {
	if h.OnStepComplete != nil {
		h.OnStepComplete(runID, event)
	}
}

// RunEnded implements Hook.
func (h HookFuncs) RunEnded(runID string, status Status, err error) {
	if h.OnRunEnded != nil {
		h.OnRunEnded(runID, status, err)
	}
}

func (e *Engine) notifyRunStarted(runID, workflow string) {
	for _, h := range e.opts.Hooks {
		h.RunStarted(runID, workflow)
	}
}

func (e *Engine) notifyStepCompleted(runID string, event trace.Event) {
	for _, h := range e.opts.Hooks {
		h.StepCompleted(runID, event)
	}
}

func (e *Engine) notifyRunEnded(runID string, status Status, err error) {
	for _, h := range e.opts.Hooks {
		h.RunEnded(runID, status, err)
	}
}
