package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weaveflow/weaveflow/approval"
	"github.com/weaveflow/weaveflow/budget"
	"github.com/weaveflow/weaveflow/capability"
	"github.com/weaveflow/weaveflow/eval"
	"github.com/weaveflow/weaveflow/ir"
	"github.com/weaveflow/weaveflow/logging"
	"github.com/weaveflow/weaveflow/provider"
	"github.com/weaveflow/weaveflow/trace"
)

// Options configures an Engine.
type Options struct {
	// Providers resolves provider names to completion gateways.
	Providers *provider.Registry

	// Capabilities executes call steps. Required when the bundle defines
	// capabilities.
	Capabilities capability.Gateway

	// Approvals decides approval gates. Defaults to approving everything,
	// which suits programmatic use; the CLI installs an interactive handler.
	Approvals approval.Handler

	// Pricer converts token usage into USD for budget charging.
	Pricer *budget.Pricer

	// Logger receives run lifecycle and step events. Defaults to no-op.
	Logger logging.Logger

	// Hooks observe run lifecycle points, in order. See Hook.
	Hooks []Hook

	// Clock substitutes the wall clock, for tests.
	Clock func() time.Time
}

// Engine executes workflows from one immutable bundle. It is safe for
// concurrent use; every Execute call is an independent run.
type Engine struct {
	bundle *ir.Bundle
	opts   Options
	gate   *approval.Gate

	mu   sync.Mutex
	runs map[string]*runHandle
}

// runHandle is the engine's shared view of an in-flight run.
type runHandle struct {
	workflow string
	cancel   context.CancelFunc
	status   Status
}

// New builds an engine over a validated bundle.
func New(bundle *ir.Bundle, optFns ...func(o *Options)) (*Engine, error) {
	if bundle == nil {
		return nil, fmt.Errorf("engine: bundle is nil")
	}
	opts := Options{
		Providers: provider.NewRegistry(),
		Approvals: approval.AutoApprove(nil),
		Pricer:    budget.NewPricer(),
		Logger:    logging.NoOpLogger{},
		Clock:     time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Providers == nil {
		opts.Providers = provider.NewRegistry()
	}
	if opts.Approvals == nil {
		opts.Approvals = approval.AutoApprove(nil)
	}
	if opts.Pricer == nil {
		opts.Pricer = budget.NewPricer()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if len(bundle.Capabilities) > 0 && opts.Capabilities == nil {
		return nil, fmt.Errorf("engine: bundle defines capabilities but no capability gateway is configured")
	}
	return &Engine{
		bundle: bundle,
		opts:   opts,
		gate:   approval.NewGate(opts.Approvals, func(o *approval.GateOptions) { o.Logger = opts.Logger }),
		runs:   make(map[string]*runHandle),
	}, nil
}

// Execute runs a workflow to completion with the given input. On failure the
// returned error is a *RunFailure wrapping the typed cause; the partial trace
// rides on it.
func (e *Engine) Execute(ctx context.Context, workflowName string, input map[string]any) (*RunResult, error) {
	wf, err := e.bundle.Workflow(workflowName)
	if err != nil {
		return nil, err
	}
	if input == nil {
		input = map[string]any{}
	}
	if err := e.checkInputs(wf, input); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	run := &runState{
		id:       runID,
		workflow: wf,
		input:    input,
		state:    make(map[string]any),
		tracker:  budget.NewTracker(budget.FromPolicy(e.runPolicy(wf)), budget.WithClock(e.opts.Clock)),
		tracer:   trace.New(runID, wf.Name),
	}

	// the time budget rides on the run context so in-flight gateway calls
	// and approval waits unwind as soon as it elapses
	var cancel context.CancelFunc
	runCtx := ctx
	if deadline, ok := run.tracker.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(ctx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	e.register(runID, wf.Name, cancel)
	defer e.unregister(runID)

	e.opts.Logger.Info("run started", "run_id", runID, "workflow", wf.Name, "entry", wf.Entry)
	e.notifyRunStarted(runID, wf.Name)

	result, runErr := e.loop(runCtx, run)
	if runErr != nil {
		runErr = budgetTimeError(run, runErr)
		e.setStatus(runID, StatusFailed)
		e.opts.Logger.Error("run failed",
			"run_id", runID,
			"workflow", wf.Name,
			"error", runErr,
			"steps", run.tracker.Steps(),
			"cost_usd", run.tracker.CostUSD(),
		)
		e.notifyRunEnded(runID, StatusFailed, runErr)
		return nil, &RunFailure{
			RunID:    runID,
			Workflow: wf.Name,
			Err:      runErr,
			Trace:    run.tracer.Events(),
			CostUSD:  run.tracker.CostUSD(),
		}
	}

	e.setStatus(runID, StatusSucceeded)
	e.opts.Logger.Info("run succeeded",
		"run_id", runID,
		"workflow", wf.Name,
		"steps", run.tracker.Steps(),
		"cost_usd", run.tracker.CostUSD(),
		"duration", run.tracker.Elapsed(),
	)
	e.notifyRunEnded(runID, StatusSucceeded, nil)
	return result, nil
}

// loop drives the step chain from the entry until an end step or a failure.
func (e *Engine) loop(ctx context.Context, run *runState) (*RunResult, error) {
	prev := ""
	current := run.workflow.Entry
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := run.tracker.CheckTime(); err != nil {
			return nil, err
		}

		step, ok := run.workflow.Step(current)
		if !ok {
			return nil, &UnknownSuccessorError{From: prev, To: current}
		}

		// an end step performs no operation, so it charges no step unit
		// and leaves no trace event; it only closes the run
		if _, isEnd := step.(*ir.EndStep); isEnd {
			return e.finish(run)
		}

		if err := run.tracker.ChargeStep(); err != nil {
			return nil, err
		}

		outcome := e.dispatch(ctx, run, step)
		if outcome.err == nil {
			if serr := run.saveState(step.StepID(), outcome.saveAs, outcome.output); serr != nil {
				outcome.err = serr
			}
		}
		e.appendEvent(run, step, outcome)
		if outcome.err != nil {
			return nil, outcome.err
		}

		prev, current = current, outcome.next
	}
}

// finish resolves the workflow output mapping against the final run data.
func (e *Engine) finish(run *runState) (*RunResult, error) {
	output := map[string]any{}
	if len(run.workflow.Output) > 0 {
		resolved, err := run.data().ResolveMapping(run.workflow.Output)
		if err != nil {
			return nil, err
		}
		output = resolved
	}
	return &RunResult{
		RunID:    run.id,
		Workflow: run.workflow.Name,
		Status:   StatusSucceeded,
		Output:   output,
		State:    maps.Clone(run.state),
		Trace:    run.tracer.Events(),
		CostUSD:  run.tracker.CostUSD(),
		Duration: run.tracker.Elapsed(),
	}, nil
}

// checkInputs collects every input field referenced by steps reachable from
// the entry plus the workflow output mapping, and fails fast when the
// provided input lacks any of them. All missing names are reported at once,
// sorted.
func (e *Engine) checkInputs(wf *ir.Workflow, input map[string]any) error {
	var refs []string
	seen := map[string]bool{}
	queue := []string{wf.Entry}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		step, ok := wf.Step(id)
		if !ok {
			// surfaced as UnknownSuccessorError when execution gets there
			continue
		}
		refs = append(refs, stepRefs(step)...)
		queue = append(queue, ir.Successors(step)...)
	}
	refs = append(refs, eval.RefsInValue(wf.Output)...)

	var missing []string
	for _, field := range eval.InputFields(refs) {
		if _, ok := input[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return &MissingInputError{Workflow: wf.Name, Missing: missing}
	}
	return nil
}

// stepRefs lists the references a step's expressions would resolve.
func stepRefs(step ir.Step) []string {
	switch s := step.(type) {
	case *ir.LLMStep:
		return eval.RefsInValue(s.Input)
	case *ir.CallStep:
		return eval.RefsInValue(s.Args)
	case *ir.ConditionStep:
		return eval.ExtractRefs(s.Condition)
	case *ir.ApprovalStep:
		return eval.RefsInValue(s.Payload)
	default:
		return nil
	}
}

// runPolicy returns the workflow's named policy, or nil for an unbounded run.
func (e *Engine) runPolicy(wf *ir.Workflow) *ir.Policy {
	if wf.Policy == "" {
		return nil
	}
	return e.bundle.Policies[wf.Policy]
}

// agentLimits returns the limits of an agent's named policy. Agent policies
// apply only when the workflow itself names none; the run-wide counters are
// shared either way, so the narrower limits are checked against them.
func (e *Engine) agentLimits(run *runState, agent *ir.Agent) (budget.Limits, bool) {
	if run.workflow.Policy != "" || agent.Policy == "" {
		return budget.Limits{}, false
	}
	p, ok := e.bundle.Policies[agent.Policy]
	if !ok {
		return budget.Limits{}, false
	}
	return budget.FromPolicy(p), true
}

// callContext bounds a slow operation with the tightest applicable time
// budget: the run's remaining window, narrowed further by an agent policy
// when one governs the operation.
func callContext(ctx context.Context, run *runState, extra budget.Limits) (context.Context, context.CancelFunc) {
	rem, bounded := run.tracker.Remaining()
	if extra.Timeout != nil {
		if r := *extra.Timeout - run.tracker.Elapsed(); !bounded || r < rem {
			rem, bounded = r, true
		}
	}
	if !bounded {
		return context.WithCancel(ctx)
	}
	if rem < 0 {
		rem = 0
	}
	return context.WithTimeout(ctx, rem)
}

// budgetTimeError rewrites a deadline expiry caused by the run's own time
// budget into the budget error callers expect. Cancellation by the caller
// and every other error pass through unchanged.
func budgetTimeError(run *runState, err error) error {
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if terr := run.tracker.CheckTime(); terr != nil {
		return terr
	}
	return err
}

// requestApproval routes through the gate with the run's remaining time
// budget as the decision window. While the gate is pending the run reads as
// awaiting_approval.
func (e *Engine) requestApproval(ctx context.Context, run *runState, req approval.Request) (approval.Decision, error) {
	var window time.Duration
	if rem, ok := run.tracker.Remaining(); ok {
		window = rem
	}

	e.setStatus(run.id, StatusAwaitingApproval)
	defer e.setStatus(run.id, StatusRunning)

	started := e.opts.Clock()
	decision, err := e.gate.Request(ctx, req, window)
	if err != nil {
		if errors.Is(err, approval.ErrTimedOut) {
			return approval.Decision{}, &ApprovalTimeoutError{Step: req.StepID, Waited: e.opts.Clock().Sub(started)}
		}
		return approval.Decision{}, budgetTimeError(run, err)
	}
	return decision, nil
}

// appendEvent records the step's single trace event, success or failure.
func (e *Engine) appendEvent(run *runState, step ir.Step, out stepOutcome) {
	ev := trace.Event{
		StepID:     step.StepID(),
		Type:       step.Kind(),
		StartedAt:  out.startedAt,
		DurationMS: out.duration.Milliseconds(),
		Input:      out.input,
		CostDelta:  out.costDelta,
		Attempts:   out.attempts,
		Next:       out.next,
	}
	if out.err != nil {
		ev.Error = out.err.Error()
		ev.Next = ""
	} else {
		ev.Output = out.output
	}
	run.tracer.Append(ev)
	if recorded, ok := run.tracer.Last(); ok {
		e.notifyStepCompleted(run.id, recorded)
	}
}

func (e *Engine) register(runID, workflow string, cancel context.CancelFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs[runID] = &runHandle{workflow: workflow, cancel: cancel, status: StatusRunning}
}

func (e *Engine) unregister(runID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.runs, runID)
}

func (e *Engine) setStatus(runID string, s Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.runs[runID]; ok {
		h.status = s
	}
}

// Cancel aborts an in-flight run. Its Execute call returns a *RunFailure
// wrapping context.Canceled, with the trace truncated at the last completed
// step.
func (e *Engine) Cancel(runID string) error {
	e.mu.Lock()
	h, ok := e.runs[runID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("no active run %q", runID)
	}
	h.cancel()
	return nil
}

// RunStatus reports the status of an in-flight run. The second return is
// false once the run has returned to its caller.
func (e *Engine) RunStatus(runID string) (Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.runs[runID]; ok {
		return h.status, true
	}
	return 0, false
}
