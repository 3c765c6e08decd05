package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaveflow/weaveflow/ir"
)

func TestRenderInput(t *testing.T) {
	t.Run("empty mapping nudges the model", func(t *testing.T) {
		got, err := RenderInput(nil)
		require.NoError(t, err)
		assert.Equal(t, "Please proceed with your task.", got)
	})

	t.Run("mapping renders as indented JSON", func(t *testing.T) {
		got, err := RenderInput(map[string]any{"question": "hi", "count": 2})
		require.NoError(t, err)
		assert.Equal(t, "Input:\n{\n  \"count\": 2,\n  \"question\": \"hi\"\n}", got)
	})
}

func TestRequestPromptText(t *testing.T) {
	r := Request{Instructions: "You classify tickets.", Input: "Input:\n{}"}
	assert.Equal(t, "You classify tickets.\nInput:\n{}", r.PromptText())

	r.Instructions = ""
	assert.Equal(t, "Input:\n{}", r.PromptText())
}

func TestWithSchemaDirective(t *testing.T) {
	schema := &ir.Schema{
		Name:   "verdict",
		Fields: map[string]ir.Field{"ok": {Type: ir.FieldBoolean}},
	}

	got := WithSchemaDirective("Review the change.", schema)
	assert.Contains(t, got, "Review the change.")
	assert.Contains(t, got, "Respond with a single JSON object")
	assert.Contains(t, got, `"ok": boolean`)

	bare := WithSchemaDirective("", schema)
	assert.NotContains(t, bare, "\n\nRespond")
}

func TestParseStructured(t *testing.T) {
	schema := &ir.Schema{
		Name: "classification",
		Fields: map[string]ir.Field{
			"category":   {Type: ir.FieldString},
			"confidence": {Type: ir.FieldNumber},
		},
	}

	t.Run("plain object", func(t *testing.T) {
		got, err := ParseStructured(`{"category": "billing", "confidence": 0.9}`, schema)
		require.NoError(t, err)
		assert.Equal(t, "billing", got["category"])
	})

	t.Run("fenced object", func(t *testing.T) {
		got, err := ParseStructured("```json\n{\"category\": \"billing\", \"confidence\": 0.9}\n```", schema)
		require.NoError(t, err)
		assert.Equal(t, "billing", got["category"])
	})

	t.Run("not JSON", func(t *testing.T) {
		_, err := ParseStructured("I think it's billing.", schema)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not valid JSON")
	})

	t.Run("schema violation", func(t *testing.T) {
		_, err := ParseStructured(`{"category": "billing"}`, schema)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "classification")
	})
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	mock := NewMockGateway()

	reg.Register("main", mock)

	gw, err := reg.Lookup("main")
	require.NoError(t, err)
	assert.Same(t, mock, gw)

	_, err = reg.Lookup("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"missing"`)

	reg.Register("alt", NewMockGateway())
	assert.Equal(t, []string{"alt", "main"}, reg.Names())
}

func TestMockGateway(t *testing.T) {
	ctx := context.Background()

	t.Run("canned response per model", func(t *testing.T) {
		mock := NewMockGateway().AddResponse("fast-model", "Paris")

		got, err := mock.Complete(ctx, Request{ModelID: "fast-model", Input: "capital of France?"})
		require.NoError(t, err)
		assert.Equal(t, "Paris", got.Content)
		assert.Equal(t, "fast-model", got.ModelID)
		assert.Equal(t, 15, got.Usage.TotalTokens)
	})

	t.Run("unregistered model echoes", func(t *testing.T) {
		mock := NewMockGateway()

		got, err := mock.Complete(ctx, Request{ModelID: "other", Input: "hello"})
		require.NoError(t, err)
		assert.Equal(t, "Mock response to: hello", got.Content)
	})

	t.Run("failures recorded as requests", func(t *testing.T) {
		boom := errors.New("rate limited")
		mock := NewMockGateway().FailWith("flaky", boom)

		_, err := mock.Complete(ctx, Request{ModelID: "flaky"})
		require.ErrorIs(t, err, boom)

		reqs := mock.Requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, "flaky", reqs[0].ModelID)
	})

	t.Run("schema requests parse content", func(t *testing.T) {
		schema := &ir.Schema{Name: "v", Fields: map[string]ir.Field{"ok": {Type: ir.FieldBoolean}}}
		mock := NewMockGateway().AddResponse("m", `{"ok": true}`)

		got, err := mock.Complete(ctx, Request{ModelID: "m", Schema: schema})
		require.NoError(t, err)
		assert.Equal(t, true, got.Structured["ok"])

		mock.AddResponse("m", "not json")
		_, err = mock.Complete(ctx, Request{ModelID: "m", Schema: schema})
		require.Error(t, err)
	})
}
