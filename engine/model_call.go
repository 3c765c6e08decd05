package engine

import (
	"context"
	"fmt"

	"github.com/weaveflow/weaveflow/ir"
	"github.com/weaveflow/weaveflow/provider"
	"github.com/weaveflow/weaveflow/trace"
)

// invokeModels runs an agent's model chain: the primary followed by the
// fallbacks in declared order, each tried at most once. The first success
// wins. Every attempt is charged for what it consumed, failed or not, so the
// recorded cost only ever grows. Budget violations abort the chain; anything
// else falls through to the next model.
func (e *Engine) invokeModels(ctx context.Context, run *runState, agentName string, agent *ir.Agent, input map[string]any) (map[string]any, []trace.ModelAttempt, error) {
	userMsg, err := provider.RenderInput(input)
	if err != nil {
		return nil, nil, err
	}

	var schema *ir.Schema
	if agent.OutputSchema != "" {
		s, ok := e.bundle.Schemas[agent.OutputSchema]
		if !ok {
			return nil, nil, fmt.Errorf("agent %q: unknown output schema %q", agentName, agent.OutputSchema)
		}
		schema = s
	}

	agentLims, agentBounded := e.agentLimits(run, agent)

	var attempts []trace.ModelAttempt
	var failures []ModelFailure

	fail := func(name, providerName, reason string) {
		attempts = append(attempts, trace.ModelAttempt{Model: name, Provider: providerName, Error: reason})
		failures = append(failures, ModelFailure{Model: name, Provider: providerName, Reason: reason})
	}

	for _, name := range agent.ModelChain() {
		model, ok := e.bundle.Models[name]
		if !ok {
			fail(name, "", fmt.Sprintf("unknown model %q", name))
			continue
		}
		provDef, ok := e.bundle.Providers[model.Provider]
		if !ok {
			fail(name, model.Provider, fmt.Sprintf("unknown provider %q", model.Provider))
			continue
		}
		gw, err := e.opts.Providers.Lookup(model.Provider)
		if err != nil {
			fail(name, model.Provider, err.Error())
			continue
		}

		if err := run.tracker.CheckTime(); err != nil {
			return nil, attempts, err
		}
		if agentBounded {
			if err := run.tracker.CheckAgainst(agentLims); err != nil {
				return nil, attempts, err
			}
		}

		params := model.Params.Merge(provDef.Defaults)
		req := provider.Request{
			ModelID:      model.ModelID,
			Instructions: agent.Instructions,
			Input:        userMsg,
			Temperature:  params.Temperature,
			MaxTokens:    params.MaxTokens,
			Schema:       schema,
		}

		callCtx, cancel := callContext(ctx, run, agentLims)
		started := e.opts.Clock()
		comp, callErr := gw.Complete(callCtx, req)
		cancel()

		attempt := trace.ModelAttempt{
			Model:      name,
			Provider:   model.Provider,
			DurationMS: e.opts.Clock().Sub(started).Milliseconds(),
		}

		// exact cost when the backend reported usage, a prompt-side
		// estimate otherwise, so failed attempts still consume budget
		var cost float64
		if comp != nil && comp.Usage.TotalTokens > 0 {
			cost = e.opts.Pricer.Cost(model.ModelID, comp.Usage.PromptTokens, comp.Usage.CompletionTokens)
		} else {
			cost = e.opts.Pricer.EstimatePrompt(model.ModelID, req.PromptText())
		}
		attempt.CostUSD = cost
		if callErr != nil {
			attempt.Error = callErr.Error()
		}
		attempts = append(attempts, attempt)

		if chargeErr := run.tracker.ChargeCost(cost); chargeErr != nil {
			return nil, attempts, chargeErr
		}
		if agentBounded {
			if err := run.tracker.CheckAgainst(agentLims); err != nil {
				return nil, attempts, err
			}
		}

		if callErr != nil {
			failures = append(failures, ModelFailure{Model: name, Provider: model.Provider, Reason: callErr.Error()})
			e.opts.Logger.Warn("model attempt failed",
				"run_id", run.id,
				"agent", agentName,
				"model", name,
				"error", callErr,
			)
			// the run context expiring ends the chain: remaining models
			// would only fail the same way
			if ctx.Err() != nil {
				return nil, attempts, budgetTimeError(run, ctx.Err())
			}
			continue
		}

		result := map[string]any{
			"model":    model.ModelID,
			"provider": model.Provider,
			"usage": map[string]any{
				"prompt_tokens":     comp.Usage.PromptTokens,
				"completion_tokens": comp.Usage.CompletionTokens,
				"total_tokens":      comp.Usage.TotalTokens,
			},
		}
		if schema != nil {
			result["response"] = comp.Structured
			result["structured"] = true
			result["schema"] = agent.OutputSchema
		} else {
			result["response"] = comp.Content
		}
		return result, attempts, nil
	}

	return nil, attempts, &ProviderExhaustedError{Agent: agentName, Failures: failures}
}
