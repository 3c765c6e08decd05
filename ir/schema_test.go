package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triageSchema() *Schema {
	return &Schema{
		Name: "triage",
		Fields: map[string]Field{
			"category":   {Type: FieldString},
			"confidence": {Type: FieldNumber},
			"tags":       {Type: FieldList, ItemType: FieldString},
			"urgent":     {Type: FieldBoolean},
		},
	}
}

func TestSchemaDirective(t *testing.T) {
	want := "Respond with a single JSON object and nothing else. Fields:\n" +
		"- \"category\": string\n" +
		"- \"confidence\": number\n" +
		"- \"tags\": list of string\n" +
		"- \"urgent\": boolean\n"
	assert.Equal(t, want, triageSchema().Directive())
}

func TestSchemaValidate(t *testing.T) {
	err := triageSchema().Validate(map[string]any{
		"category":   "billing",
		"confidence": 0.9,
		"tags":       []any{"invoice", "refund"},
		"urgent":     true,
	})
	require.NoError(t, err)
}

func TestSchemaValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		obj  map[string]any
		want string
	}{
		{
			"missing field",
			map[string]any{"category": "billing", "confidence": 0.9, "tags": []any{}},
			`schema "triage": missing field "urgent"`,
		},
		{
			"string field holds a number",
			map[string]any{"category": 7, "confidence": 0.9, "tags": []any{}, "urgent": true},
			`schema "triage": field "category": expected string, got int`,
		},
		{
			"number field holds a string",
			map[string]any{"category": "billing", "confidence": "high", "tags": []any{}, "urgent": true},
			`schema "triage": field "confidence": expected number, got string`,
		},
		{
			"boolean field holds a string",
			map[string]any{"category": "billing", "confidence": 0.9, "tags": []any{}, "urgent": "yes"},
			`schema "triage": field "urgent": expected boolean, got string`,
		},
		{
			"list field holds a scalar",
			map[string]any{"category": "billing", "confidence": 0.9, "tags": "invoice", "urgent": true},
			`schema "triage": field "tags": expected list, got string`,
		},
		{
			"list item of the wrong type",
			map[string]any{"category": "billing", "confidence": 0.9, "tags": []any{"ok", 3}, "urgent": true},
			`schema "triage": field "tags": item 1: expected string, got int`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := triageSchema().Validate(tt.obj)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSchemaValidateReportsAllViolations(t *testing.T) {
	err := triageSchema().Validate(map[string]any{
		"category": 7,
		"tags":     []any{},
		"urgent":   true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "category"`)
	assert.Contains(t, err.Error(), `missing field "confidence"`)
}

func TestSchemaValidateAcceptsNumericKinds(t *testing.T) {
	s := &Schema{Name: "count", Fields: map[string]Field{"value": {Type: FieldNumber}}}
	for _, v := range []any{1, int32(2), int64(3), float32(1.5), 2.5, json.Number("7")} {
		assert.NoError(t, s.Validate(map[string]any{"value": v}), "%T", v)
	}
}
