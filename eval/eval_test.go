package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runData() Data {
	return Data{
		Input: map[string]any{
			"question": "What is the capital of France?",
			"retries":  map[string]any{"count": 3.0},
		},
		State: map[string]any{
			"answer": map[string]any{
				"response": "Paris",
				"usage":    map[string]any{"total_tokens": 15.0},
			},
		},
	}
}

func TestResolve(t *testing.T) {
	d := runData()

	tests := []struct {
		name string
		ref  string
		want any
	}{
		{"input field", "input.question", "What is the capital of France?"},
		{"nested state", "state.answer.response", "Paris"},
		{"deep state", "state.answer.usage.total_tokens", 15.0},
		{"bare input namespace", "input", d.Input},
		{"bare state namespace", "state", d.State},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Resolve(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	d := runData()

	tests := []struct {
		name   string
		ref    string
		reason string
	}{
		{"unknown root", "output.answer", `unknown root "output"`},
		{"missing input field", "input.missing", `path "input.missing" not found`},
		{"missing nested path", "state.answer.score", `path "state.answer.score" not found`},
		{"segment on scalar", "state.answer.response.text", `cannot access "text"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Resolve(tt.ref)
			var evalErr *EvaluationError
			require.ErrorAs(t, err, &evalErr)
			assert.Equal(t, tt.ref, evalErr.Expr)
			assert.Contains(t, evalErr.Reason, tt.reason)
		})
	}
}

func TestResolveValue(t *testing.T) {
	d := runData()

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"reference string", "state.answer.response", "Paris"},
		{"literal string", "just text", "just text"},
		{"literal string with dot", "example.com", "example.com"},
		{"number literal", 42, 42},
		{"bool literal", true, true},
		{"nil literal", nil, nil},
		{
			"nested mapping",
			map[string]any{"q": "input.question", "fixed": "yes"},
			map[string]any{"q": "What is the capital of France?", "fixed": "yes"},
		},
		{
			"list of references",
			[]any{"input.question", "literal", 7},
			[]any{"What is the capital of France?", "literal", 7},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.ResolveValue(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveMappingPropagatesErrors(t *testing.T) {
	d := runData()

	_, err := d.ResolveMapping(map[string]any{
		"ok":     "input.question",
		"broken": "state.nothing.here",
	})
	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
}

func TestIsRef(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"input.question", true},
		{"state.answer.response", true},
		{"input", true},
		{"state", true},
		{"inputs.question", false},
		{"Paris", false},
		{"the input.question was", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRef(tt.s), "IsRef(%q)", tt.s)
	}
}

func TestExtractRefs(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want []string
	}{
		{
			"two refs in order",
			`state.classification.response == "simple" && input.retries.count > 2`,
			[]string{"state.classification.response", "input.retries.count"},
		},
		{"no refs", `"simple" == "simple"`, nil},
		{"embedded word is not a ref", "myinput.question > 1", nil},
		{"repeated ref kept", "input.a == input.a", []string{"input.a", "input.a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractRefs(tt.expr))
		})
	}
}

func TestRefsInValue(t *testing.T) {
	refs := RefsInValue(map[string]any{
		"list": []any{"input.a", "literal"},
		"deep": map[string]any{"x": "state.b.c"},
	})
	assert.ElementsMatch(t, []string{"input.a", "state.b.c"}, refs)

	assert.Nil(t, RefsInValue("just text"))
	assert.Nil(t, RefsInValue(42))
}

func TestInputFields(t *testing.T) {
	fields := InputFields([]string{
		"input.ticket",
		"input.user.name",
		"state.answer.response",
		"input.ticket",
		"input",
	})
	assert.Equal(t, []string{"ticket", "user"}, fields)
}
