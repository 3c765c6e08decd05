package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/weaveflow/weaveflow/approval"
	"github.com/weaveflow/weaveflow/budget"
	"github.com/weaveflow/weaveflow/capability"
	"github.com/weaveflow/weaveflow/ir"
	"github.com/weaveflow/weaveflow/trace"
)

// stepOutcome is the dispatcher's result for one step, success or failure.
// The loop persists output under saveAs, records one trace event from it and
// advances to next.
type stepOutcome struct {
	startedAt time.Time
	duration  time.Duration
	input     map[string]any
	output    any
	saveAs    string
	next      string
	attempts  []trace.ModelAttempt
	costDelta float64
	err       error
}

// dispatch executes one step, wrapping the kind-specific handler with timing
// and the cost attributable to the step.
func (e *Engine) dispatch(ctx context.Context, run *runState, step ir.Step) stepOutcome {
	started := e.opts.Clock()
	costBefore := run.tracker.CostUSD()

	e.opts.Logger.Debug("step started", "run_id", run.id, "step", step.StepID(), "kind", step.Kind())

	var out stepOutcome
	switch s := step.(type) {
	case *ir.LLMStep:
		out = e.dispatchLLM(ctx, run, s)
	case *ir.CallStep:
		out = e.dispatchCall(ctx, run, s)
	case *ir.ConditionStep:
		out = e.dispatchCondition(run, s)
	case *ir.ApprovalStep:
		out = e.dispatchApproval(ctx, run, s)
	default:
		out = stepOutcome{err: fmt.Errorf("step %q: unsupported kind %q", step.StepID(), step.Kind())}
	}

	out.startedAt = started
	out.duration = e.opts.Clock().Sub(started)
	out.costDelta = run.tracker.CostUSD() - costBefore

	if out.err != nil {
		e.opts.Logger.Warn("step failed", "run_id", run.id, "step", step.StepID(), "error", out.err)
	} else {
		e.opts.Logger.Debug("step completed",
			"run_id", run.id,
			"step", step.StepID(),
			"next", out.next,
			"output", trace.Preview(out.output, 500),
		)
	}
	return out
}

// dispatchLLM resolves the input mapping and runs the agent's model chain.
func (e *Engine) dispatchLLM(ctx context.Context, run *runState, s *ir.LLMStep) stepOutcome {
	agent, ok := e.bundle.Agents[s.Agent]
	if !ok {
		return stepOutcome{err: fmt.Errorf("step %q: unknown agent %q", s.ID, s.Agent)}
	}
	resolved, err := run.data().ResolveMapping(s.Input)
	if err != nil {
		return stepOutcome{err: err}
	}

	out := stepOutcome{input: resolved, saveAs: s.SaveAs, next: s.Next}
	result, attempts, err := e.invokeModels(ctx, run, s.Agent, agent, resolved)
	out.attempts = attempts
	if err != nil {
		out.err = err
		return out
	}
	out.output = result
	return out
}

// dispatchCall resolves the args mapping and invokes a capability, routing
// through the approval gate first when the capability requires it. The
// capability-call unit is charged before any approval routing: every
// attempted call counts, approved or not.
func (e *Engine) dispatchCall(ctx context.Context, run *runState, s *ir.CallStep) stepOutcome {
	capDef, ok := e.bundle.Capabilities[s.Capability]
	if !ok {
		return stepOutcome{err: fmt.Errorf("step %q: unknown capability %q", s.ID, s.Capability)}
	}
	args, err := run.data().ResolveMapping(s.Args)
	if err != nil {
		return stepOutcome{err: err}
	}

	out := stepOutcome{input: args, saveAs: s.SaveAs, next: s.Next}
	if err := run.tracker.ChargeCapabilityCall(); err != nil {
		out.err = err
		return out
	}

	output := map[string]any{}
	if capDef.RequiresApproval {
		decision, err := e.requestApproval(ctx, run, approval.Request{
			RunID:      run.id,
			Workflow:   run.workflow.Name,
			StepID:     s.ID,
			Capability: s.Capability,
			Payload:    args,
		})
		if err != nil {
			out.err = err
			return out
		}
		if !decision.Approved {
			out.err = &ApprovalRejectedError{Step: s.ID, Response: decision.Response}
			return out
		}
		output["approval"] = map[string]any{
			"approved": true,
			"response": decision.Response,
		}
	}

	if err := run.tracker.CheckTime(); err != nil {
		out.err = err
		return out
	}

	callCtx, cancel := callContext(ctx, run, budget.Limits{})
	defer cancel()
	res, err := e.opts.Capabilities.Invoke(callCtx, capability.Request{
		Capability: s.Capability,
		Server:     capDef.Server,
		Method:     capDef.Method,
		Args:       args,
	})
	if err != nil {
		out.err = budgetTimeError(run, err)
		return out
	}

	output["result"] = res.Value
	out.output = output
	return out
}

// dispatchCondition evaluates the boolean expression over the run data and
// routes to the matching branch. The boolean is the trace output.
func (e *Engine) dispatchCondition(run *runState, s *ir.ConditionStep) stepOutcome {
	out := stepOutcome{input: map[string]any{"condition": s.Condition}}
	result, err := run.data().EvalCondition(s.Condition)
	if err != nil {
		out.err = err
		return out
	}
	out.output = result
	if result {
		out.next = s.OnTrue
	} else {
		out.next = s.OnFalse
	}
	return out
}

// dispatchApproval resolves the payload, awaits the decision and routes to
// the matching branch. Rejection here is routing, not an error.
func (e *Engine) dispatchApproval(ctx context.Context, run *runState, s *ir.ApprovalStep) stepOutcome {
	payload, err := run.data().ResolveValue(s.Payload)
	if err != nil {
		return stepOutcome{err: err}
	}

	out := stepOutcome{input: map[string]any{"payload": payload}, saveAs: s.SaveAs}
	decision, err := e.requestApproval(ctx, run, approval.Request{
		RunID:    run.id,
		Workflow: run.workflow.Name,
		StepID:   s.ID,
		Payload:  payload,
	})
	if err != nil {
		out.err = err
		return out
	}

	out.output = map[string]any{
		"approved": decision.Approved,
		"response": decision.Response,
	}
	if decision.Approved {
		out.next = s.OnApprove
	} else {
		out.next = s.OnReject
	}
	return out
}
