package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaveflow/weaveflow/internal/testutil"
	"github.com/weaveflow/weaveflow/ir"
	"github.com/weaveflow/weaveflow/provider"
)

func fallbackBundle() *ir.Bundle {
	return testutil.NewBundle().
		Provider("openai", ir.ProviderOpenAI).
		Provider("anthropic", ir.ProviderAnthropic).
		Model("primary", "openai", "gpt-4o").
		Model("backup", "openai", "gpt-4o-mini").
		Model("last-resort", "anthropic", "claude-3-5-haiku-latest").
		AgentWith("resilient", &ir.Agent{
			Model:     "primary",
			Fallbacks: []string{"backup", "last-resort"},
		}).
		Workflow("answer", testutil.NewWorkflow("ask").
			LLM("ask", "resilient", map[string]any{"q": "input.q"}, "reply", "done").
			End("done").
			Output(map[string]any{"reply": "state.reply.response"}).
			Build()).
		Build()
}

func TestFallbackChainOrder(t *testing.T) {
	mock := provider.NewMockGateway().
		FailWith("gpt-4o", errors.New("rate limited")).
		FailWith("gpt-4o-mini", errors.New("overloaded")).
		AddResponse("claude-3-5-haiku-latest", "recovered")
	eng := newEngine(t, fallbackBundle(), mock)

	result, err := eng.Execute(context.Background(), "answer", map[string]any{"q": "hello"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"reply": "recovered"}, result.Output)

	// one step event carrying all three attempts, in chain order
	require.Len(t, result.Trace, 1)
	attempts := result.Trace[0].Attempts
	require.Len(t, attempts, 3)
	assert.Equal(t, "primary", attempts[0].Model)
	assert.Equal(t, "rate limited", attempts[0].Error)
	assert.Equal(t, "backup", attempts[1].Model)
	assert.Equal(t, "overloaded", attempts[1].Error)
	assert.Equal(t, "last-resort", attempts[2].Model)
	assert.Empty(t, attempts[2].Error)

	// failed attempts consumed budget too
	assert.Greater(t, attempts[0].CostUSD, 0.0)
	assert.Greater(t, result.CostUSD, attempts[2].CostUSD)

	saved := result.State["reply"].(map[string]any)
	assert.Equal(t, "claude-3-5-haiku-latest", saved["model"])
	assert.Equal(t, "anthropic", saved["provider"])
}

func TestProviderExhausted(t *testing.T) {
	mock := provider.NewMockGateway().
		FailWith("gpt-4o", errors.New("down")).
		FailWith("gpt-4o-mini", errors.New("still down")).
		FailWith("claude-3-5-haiku-latest", errors.New("all down"))
	eng := newEngine(t, fallbackBundle(), mock)

	_, err := eng.Execute(context.Background(), "answer", map[string]any{"q": "hello"})
	require.Error(t, err)

	var exhausted *ProviderExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "resilient", exhausted.Agent)
	require.Len(t, exhausted.Failures, 3)
	assert.Equal(t, "primary", exhausted.Failures[0].Model)
	assert.Equal(t, "down", exhausted.Failures[0].Reason)
	assert.Equal(t, "last-resort", exhausted.Failures[2].Model)
	assert.Equal(t, "all down", exhausted.Failures[2].Reason)

	var failure *RunFailure
	require.ErrorAs(t, err, &failure)
	require.Len(t, failure.Trace, 1)
	assert.Len(t, failure.Trace[0].Attempts, 3)
	assert.NotEmpty(t, failure.Trace[0].Error)
	assert.Greater(t, failure.CostUSD, 0.0)
}

func TestUnknownModelInChainIsAttemptFailure(t *testing.T) {
	bundle := testutil.NewBundle().
		Provider("openai", ir.ProviderOpenAI).
		Model("real", "openai", "gpt-4o-mini").
		AgentWith("wobbly", &ir.Agent{
			Model:     "ghost",
			Fallbacks: []string{"real"},
		}).
		Workflow("answer", testutil.NewWorkflow("ask").
			LLM("ask", "wobbly", nil, "reply", "done").
			End("done").
			Build()).
		Build()
	mock := provider.NewMockGateway().AddResponse("gpt-4o-mini", "fine")
	eng := newEngine(t, bundle, mock)

	result, err := eng.Execute(context.Background(), "answer", nil)
	require.NoError(t, err)

	attempts := result.Trace[0].Attempts
	require.Len(t, attempts, 2)
	assert.Contains(t, attempts[0].Error, "unknown model")
	assert.Empty(t, attempts[1].Error)
	assert.Equal(t, "fine", result.State["reply"].(map[string]any)["response"])
}

func TestStructuredOutput(t *testing.T) {
	bundle := testutil.NewBundle().
		Provider("openai", ir.ProviderOpenAI).
		Model("fast", "openai", "gpt-4o-mini").
		Schema("verdict", map[string]ir.Field{
			"label":      {Type: ir.FieldString},
			"confidence": {Type: ir.FieldNumber},
		}).
		AgentWith("judge", &ir.Agent{Model: "fast", OutputSchema: "verdict"}).
		Workflow("moderate", testutil.NewWorkflow("judge").
			LLM("judge", "judge", map[string]any{"text": "input.text"}, "verdict", "done").
			End("done").
			Output(map[string]any{"label": "state.verdict.response.label"}).
			Build()).
		Build()
	mock := provider.NewMockGateway().AddResponse("gpt-4o-mini", `{"label": "spam", "confidence": 0.93}`)
	eng := newEngine(t, bundle, mock)

	result, err := eng.Execute(context.Background(), "moderate", map[string]any{"text": "WIN A PRIZE"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"label": "spam"}, result.Output)

	saved := result.State["verdict"].(map[string]any)
	assert.Equal(t, true, saved["structured"])
	assert.Equal(t, "verdict", saved["schema"])
	assert.Equal(t, map[string]any{"label": "spam", "confidence": 0.93}, saved["response"])

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.NotNil(t, reqs[0].Schema)
}

func TestMalformedStructuredOutputFailsAttempt(t *testing.T) {
	bundle := testutil.NewBundle().
		Provider("openai", ir.ProviderOpenAI).
		Model("only", "openai", "gpt-4o-mini").
		Schema("verdict", map[string]ir.Field{
			"label": {Type: ir.FieldString},
		}).
		AgentWith("judge", &ir.Agent{Model: "only", OutputSchema: "verdict"}).
		Workflow("moderate", testutil.NewWorkflow("judge").
			LLM("judge", "judge", nil, "verdict", "done").
			End("done").
			Build()).
		Build()
	mock := provider.NewMockGateway().AddResponse("gpt-4o-mini", "definitely not json")
	eng := newEngine(t, bundle, mock)

	_, err := eng.Execute(context.Background(), "moderate", nil)
	require.Error(t, err)

	var exhausted *ProviderExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Failures, 1)
	assert.Contains(t, exhausted.Failures[0].Reason, "not valid JSON")
}
