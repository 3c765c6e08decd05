package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBundle() *Bundle {
	return &Bundle{
		Version: "1",
		Providers: map[string]*Provider{
			"openai": {Name: "openai", Type: ProviderOpenAI},
		},
		Models: map[string]*Model{
			"fast": {Name: "fast", Provider: "openai", ModelID: "gpt-4o-mini"},
		},
		Servers: map[string]*Server{
			"github": {Name: "github", Command: []string{"npx", "-y", "@modelcontextprotocol/server-github"}},
		},
		Capabilities: map[string]*Capability{
			"create_issue": {Name: "create_issue", Server: "github", Method: "create_issue", SideEffect: SideEffectWrite},
		},
		Policies: map[string]*Policy{
			"default": {Name: "default"},
		},
		Schemas: map[string]*Schema{
			"verdict": {Name: "verdict", Fields: map[string]Field{
				"label": {Type: FieldString},
			}},
		},
		Agents: map[string]*Agent{
			"assistant": {
				Name:         "assistant",
				Model:        "fast",
				Capabilities: []string{"create_issue"},
				Policy:       "default",
				OutputSchema: "verdict",
			},
		},
		Workflows: map[string]*Workflow{
			"support": {
				Name:   "support",
				Entry:  "ask",
				Policy: "default",
				Steps: map[string]Step{
					"ask":  &LLMStep{ID: "ask", Agent: "assistant", SaveAs: "answer", Next: "done"},
					"done": &EndStep{ID: "done"},
				},
			},
		},
	}
}

func TestValidateAcceptsWellFormedBundle(t *testing.T) {
	require.NoError(t, Validate(validBundle()))
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Bundle)
		want   string
	}{
		{
			"model with unknown provider",
			func(b *Bundle) { b.Models["fast"].Provider = "azure" },
			`model "fast": unknown provider "azure"`,
		},
		{
			"model without model id",
			func(b *Bundle) { b.Models["fast"].ModelID = "" },
			`model "fast": empty model_id`,
		},
		{
			"server without command",
			func(b *Bundle) { b.Servers["github"].Command = nil },
			`server "github": empty command`,
		},
		{
			"capability with unknown server",
			func(b *Bundle) { b.Capabilities["create_issue"].Server = "gitlab" },
			`capability "create_issue": unknown server "gitlab"`,
		},
		{
			"capability without method",
			func(b *Bundle) { b.Capabilities["create_issue"].Method = "" },
			`capability "create_issue": empty method`,
		},
		{
			"capability with unknown side effect",
			func(b *Bundle) { b.Capabilities["create_issue"].SideEffect = "destroy" },
			`capability "create_issue": unknown side effect "destroy"`,
		},
		{
			"schema field with unknown type",
			func(b *Bundle) { b.Schemas["verdict"].Fields["label"] = Field{Type: "uuid"} },
			`schema "verdict": field "label": unknown type "uuid"`,
		},
		{
			"list field without item type",
			func(b *Bundle) { b.Schemas["verdict"].Fields["tags"] = Field{Type: FieldList} },
			`schema "verdict": field "tags": list needs a scalar item_type, got ""`,
		},
		{
			"agent with unknown model",
			func(b *Bundle) { b.Agents["assistant"].Model = "slow" },
			`agent "assistant": unknown model "slow"`,
		},
		{
			"agent with unknown fallback model",
			func(b *Bundle) { b.Agents["assistant"].Fallbacks = []string{"slow"} },
			`agent "assistant": unknown model "slow"`,
		},
		{
			"agent with unknown capability",
			func(b *Bundle) { b.Agents["assistant"].Capabilities = []string{"delete_repo"} },
			`agent "assistant": unknown capability "delete_repo"`,
		},
		{
			"agent with unknown policy",
			func(b *Bundle) { b.Agents["assistant"].Policy = "strict" },
			`agent "assistant": unknown policy "strict"`,
		},
		{
			"agent with unknown output schema",
			func(b *Bundle) { b.Agents["assistant"].OutputSchema = "report" },
			`agent "assistant": unknown output schema "report"`,
		},
		{
			"workflow without entry",
			func(b *Bundle) { b.Workflows["support"].Entry = "" },
			`workflow "support": no entry step`,
		},
		{
			"workflow entry not found",
			func(b *Bundle) { b.Workflows["support"].Entry = "start" },
			`workflow "support": entry step "start" not found`,
		},
		{
			"workflow with unknown policy",
			func(b *Bundle) { b.Workflows["support"].Policy = "strict" },
			`workflow "support": unknown policy "strict"`,
		},
		{
			"step without successor",
			func(b *Bundle) {
				b.Workflows["support"].Steps["ask"] = &LLMStep{ID: "ask", Agent: "assistant"}
			},
			`workflow "support": step "ask": missing successor`,
		},
		{
			"step successor not found",
			func(b *Bundle) {
				b.Workflows["support"].Steps["ask"] = &LLMStep{ID: "ask", Agent: "assistant", Next: "nowhere"}
			},
			`workflow "support": step "ask": successor "nowhere" not found`,
		},
		{
			"condition with one branch unset",
			func(b *Bundle) {
				b.Workflows["support"].Steps["route"] = &ConditionStep{ID: "route", Condition: "input.x", OnTrue: "done"}
			},
			`workflow "support": step "route": missing successor`,
		},
		{
			"llm step with unknown agent",
			func(b *Bundle) {
				b.Workflows["support"].Steps["ask"] = &LLMStep{ID: "ask", Agent: "ghost", Next: "done"}
			},
			`workflow "support": step "ask": unknown agent "ghost"`,
		},
		{
			"call step with unknown capability",
			func(b *Bundle) {
				b.Workflows["support"].Steps["ask"] = &CallStep{ID: "ask", Capability: "ghost", Next: "done"}
			},
			`workflow "support": step "ask": unknown capability "ghost"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBundle()
			tt.mutate(b)
			err := Validate(b)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsAllViolations(t *testing.T) {
	b := validBundle()
	b.Models["fast"].ModelID = ""
	b.Workflows["support"].Entry = "start"

	err := Validate(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `model "fast": empty model_id`)
	assert.Contains(t, err.Error(), `entry step "start" not found`)
}
