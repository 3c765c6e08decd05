package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaveflow/weaveflow/budget"
	"github.com/weaveflow/weaveflow/capability"
	"github.com/weaveflow/weaveflow/internal/testutil"
	"github.com/weaveflow/weaveflow/ir"
	"github.com/weaveflow/weaveflow/provider"
)

func TestCostExceededKeepsPartialCost(t *testing.T) {
	bundle := testutil.NewBundle().
		Provider("openai", ir.ProviderOpenAI).
		Model("fast", "openai", "gpt-4o-mini").
		Agent("assistant", "fast").
		Policy("tight", &ir.Policy{MaxCostUSDPerRun: testutil.Float64(0.001)}).
		Workflow("support", testutil.NewWorkflow("process").
			LLM("process", "assistant", map[string]any{"q": "input.q"}, "answer", "done").
			End("done").
			Policy("tight").
			Build()).
		Build()

	// 500k prompt + 500k completion tokens of gpt-4o-mini cost 0.375 USD
	mock := provider.NewMockGateway().
		AddResponse("gpt-4o-mini", "Paris").
		SetUsage(provider.Usage{PromptTokens: 500_000, CompletionTokens: 500_000, TotalTokens: 1_000_000})
	eng := newEngine(t, bundle, mock)

	_, err := eng.Execute(context.Background(), "support", map[string]any{"q": "hi"})
	require.Error(t, err)

	var exceeded *budget.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, budget.DimensionCost, exceeded.Dimension)
	assert.Equal(t, 0.001, exceeded.Limit)

	// the attempted charge stays on the books
	var failure *RunFailure
	require.ErrorAs(t, err, &failure)
	assert.InDelta(t, 0.375, failure.CostUSD, 1e-9)
	require.Len(t, failure.Trace, 1)
	require.Len(t, failure.Trace[0].Attempts, 1)
	assert.InDelta(t, 0.375, failure.Trace[0].Attempts[0].CostUSD, 1e-9)
	assert.InDelta(t, 0.375, failure.Trace[0].CostDelta, 1e-9)
}

func TestMaxStepsAbortsRun(t *testing.T) {
	bundle := testutil.NewBundle().
		Provider("openai", ir.ProviderOpenAI).
		Model("fast", "openai", "gpt-4o-mini").
		Agent("assistant", "fast").
		Policy("bounded", &ir.Policy{MaxSteps: testutil.Int(2)}).
		Workflow("chain", testutil.NewWorkflow("one").
			LLM("one", "assistant", nil, "a", "two").
			LLM("two", "assistant", nil, "b", "three").
			LLM("three", "assistant", nil, "c", "done").
			End("done").
			Policy("bounded").
			Build()).
		Build()
	eng := newEngine(t, bundle, provider.NewMockGateway())

	_, err := eng.Execute(context.Background(), "chain", nil)
	require.Error(t, err)

	var exceeded *budget.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, budget.DimensionSteps, exceeded.Dimension)
	assert.Equal(t, 2.0, exceeded.Limit)
	assert.Equal(t, 3.0, exceeded.Attempted)

	// the third step was never dispatched
	var failure *RunFailure
	require.ErrorAs(t, err, &failure)
	assert.Len(t, failure.Trace, 2)
}

func TestMaxCapabilityCallsAbortsRun(t *testing.T) {
	bundle := testutil.NewBundle().
		Server("github", "npx", "-y", "@modelcontextprotocol/server-github").
		Capability("get_issue", "github", "get_issue").
		Policy("one-call", &ir.Policy{MaxCapabilityCalls: testutil.Int(1)}).
		Workflow("lookup", testutil.NewWorkflow("first").
			Call("first", "get_issue", nil, "a", "second").
			Call("second", "get_issue", nil, "b", "done").
			End("done").
			Policy("one-call").
			Build()).
		Build()
	capMock := capability.NewMock().AddResult("get_issue", map[string]any{"state": "open"})

	eng, err := New(bundle, func(o *Options) { o.Capabilities = capMock })
	require.NoError(t, err)

	_, execErr := eng.Execute(context.Background(), "lookup", nil)
	require.Error(t, execErr)

	var exceeded *budget.ExceededError
	require.ErrorAs(t, execErr, &exceeded)
	assert.Equal(t, budget.DimensionCapabilityCalls, exceeded.Dimension)

	// the second call was charged but never reached the gateway
	assert.Len(t, capMock.Invocations(), 1)
}

func TestTimeBudgetExpires(t *testing.T) {
	bundle := testutil.NewBundle().
		Provider("openai", ir.ProviderOpenAI).
		Model("fast", "openai", "gpt-4o-mini").
		Agent("assistant", "fast").
		Policy("instant", &ir.Policy{TimeoutSeconds: testutil.Float64(1e-9)}).
		Workflow("support", testutil.NewWorkflow("process").
			LLM("process", "assistant", nil, "answer", "done").
			End("done").
			Policy("instant").
			Build()).
		Build()
	eng := newEngine(t, bundle, provider.NewMockGateway())

	_, err := eng.Execute(context.Background(), "support", nil)
	require.Error(t, err)

	var exceeded *budget.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, budget.DimensionTime, exceeded.Dimension)
}

func TestAgentPolicyAppliesWithoutWorkflowPolicy(t *testing.T) {
	// 100k + 100k tokens of gpt-4o-mini cost 0.075 USD
	bigUsage := provider.Usage{PromptTokens: 100_000, CompletionTokens: 100_000, TotalTokens: 200_000}

	build := func(workflowPolicy string) *ir.Bundle {
		wf := testutil.NewWorkflow("process").
			LLM("process", "assistant", nil, "answer", "done").
			End("done").
			Output(map[string]any{"answer": "state.answer.response"})
		if workflowPolicy != "" {
			wf.Policy(workflowPolicy)
		}
		return testutil.NewBundle().
			Provider("openai", ir.ProviderOpenAI).
			Model("fast", "openai", "gpt-4o-mini").
			Policy("frugal", &ir.Policy{MaxCostUSDPerRun: testutil.Float64(0.0001)}).
			Policy("roomy", &ir.Policy{MaxCostUSDPerRun: testutil.Float64(10)}).
			AgentWith("assistant", &ir.Agent{Model: "fast", Policy: "frugal"}).
			Workflow("support", wf.Build()).
			Build()
	}

	t.Run("agent policy bounds the call when the workflow names none", func(t *testing.T) {
		mock := provider.NewMockGateway().AddResponse("gpt-4o-mini", "Paris").SetUsage(bigUsage)
		eng := newEngine(t, build(""), mock)

		_, err := eng.Execute(context.Background(), "support", nil)
		require.Error(t, err)

		var exceeded *budget.ExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, budget.DimensionCost, exceeded.Dimension)
		assert.Equal(t, 0.0001, exceeded.Limit)
	})

	t.Run("workflow policy overrides the agent policy", func(t *testing.T) {
		mock := provider.NewMockGateway().AddResponse("gpt-4o-mini", "Paris").SetUsage(bigUsage)
		eng := newEngine(t, build("roomy"), mock)

		result, err := eng.Execute(context.Background(), "support", nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"answer": "Paris"}, result.Output)
	})
}
