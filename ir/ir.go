package ir

import (
	"fmt"
	"os"
)

// Bundle is the compiled, reference-resolved form of a project: every
// definition the engine needs to execute its workflows, keyed by name.
// Bundles are immutable after construction and safe to share across runs.
type Bundle struct {
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Project string `json:"project,omitempty" yaml:"project,omitempty"`

	Providers    map[string]*Provider   `json:"providers,omitempty" yaml:"providers,omitempty"`
	Models       map[string]*Model      `json:"models,omitempty" yaml:"models,omitempty"`
	Servers      map[string]*Server     `json:"servers,omitempty" yaml:"servers,omitempty"`
	Capabilities map[string]*Capability `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Policies     map[string]*Policy     `json:"policies,omitempty" yaml:"policies,omitempty"`
	Schemas      map[string]*Schema     `json:"schemas,omitempty" yaml:"schemas,omitempty"`
	Agents       map[string]*Agent      `json:"agents,omitempty" yaml:"agents,omitempty"`

	Workflows map[string]*Workflow `json:"-" yaml:"-"`
}

// Workflow returns the named workflow or an error if it does not exist.
func (b *Bundle) Workflow(name string) (*Workflow, error) {
	wf, ok := b.Workflows[name]
	if !ok {
		return nil, fmt.Errorf("workflow %q not found in bundle", name)
	}
	return wf, nil
}

// WorkflowNames returns the names of all workflows in the bundle.
func (b *Bundle) WorkflowNames() []string {
	return sortedKeys(b.Workflows)
}

// AgentNames returns the names of all agents in the bundle.
func (b *Bundle) AgentNames() []string {
	return sortedKeys(b.Agents)
}

// Credential is a secret reference resolved at gateway construction time:
// either an inline value or the name of an environment variable holding it.
type Credential struct {
	EnvVar string `json:"env_var,omitempty" yaml:"env_var,omitempty"`
	Value  string `json:"value,omitempty" yaml:"value,omitempty"`
}

// Resolve returns the credential value, consulting the environment when no
// inline value is set. An empty result is not an error; callers decide whether
// the credential is required.
func (c Credential) Resolve() string {
	if c.Value != "" {
		return c.Value
	}
	if c.EnvVar != "" {
		return os.Getenv(c.EnvVar)
	}
	return ""
}

// ProviderType identifies the wire protocol family of a model provider.
type ProviderType string

const (
	// ProviderOpenAI is the OpenAI chat completions protocol.
	ProviderOpenAI ProviderType = "openai"
	// ProviderAnthropic is the Anthropic messages protocol.
	ProviderAnthropic ProviderType = "anthropic"
)

// Provider describes one model provider account: its protocol family, the
// credential used to authenticate, and parameter defaults every model under
// this provider inherits.
type Provider struct {
	Name     string       `json:"name,omitempty" yaml:"name,omitempty"`
	Type     ProviderType `json:"type" yaml:"type"`
	APIKey   Credential   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Defaults ModelParams  `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// ModelParams are generation parameters. Nil fields are unset and fall through
// to the next layer (model params over provider defaults).
type ModelParams struct {
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// Merge layers p over base, returning the effective parameters.
func (p ModelParams) Merge(base ModelParams) ModelParams {
	out := base
	if p.Temperature != nil {
		out.Temperature = p.Temperature
	}
	if p.MaxTokens != nil {
		out.MaxTokens = p.MaxTokens
	}
	return out
}

// Model binds a provider-specific model identifier to a provider, with
// per-model parameter overrides layered over the provider defaults.
type Model struct {
	Name     string      `json:"name,omitempty" yaml:"name,omitempty"`
	Provider string      `json:"provider" yaml:"provider"`
	ModelID  string      `json:"model_id" yaml:"model_id"`
	Params   ModelParams `json:"params,omitempty" yaml:"params,omitempty"`
}

// Agent is a read-only agent configuration: a primary model, an ordered
// fallback chain, instructions, the capabilities it may invoke, and optional
// policy and output-schema references.
type Agent struct {
	Name         string   `json:"name,omitempty" yaml:"name,omitempty"`
	Model        string   `json:"model" yaml:"model"`
	Fallbacks    []string `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`
	Instructions string   `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Policy       string   `json:"policy,omitempty" yaml:"policy,omitempty"`
	OutputSchema string   `json:"output_schema,omitempty" yaml:"output_schema,omitempty"`
}

// ModelChain returns the primary model followed by the fallbacks, in the order
// they are attempted.
func (a *Agent) ModelChain() []string {
	chain := make([]string, 0, 1+len(a.Fallbacks))
	chain = append(chain, a.Model)
	chain = append(chain, a.Fallbacks...)
	return chain
}

// AllowsCapability reports whether the agent may invoke the named capability.
func (a *Agent) AllowsCapability(name string) bool {
	for _, c := range a.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

// Policy is a budget tuple. Nil fields mean unbounded for that dimension.
type Policy struct {
	Name               string   `json:"name,omitempty" yaml:"name,omitempty"`
	MaxCostUSDPerRun   *float64 `json:"max_cost_usd_per_run,omitempty" yaml:"max_cost_usd_per_run,omitempty"`
	TimeoutSeconds     *float64 `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	MaxSteps           *int     `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`
	MaxCapabilityCalls *int     `json:"max_capability_calls,omitempty" yaml:"max_capability_calls,omitempty"`
}

// SideEffect classifies a capability's side effect on the outside world.
type SideEffect string

const (
	// SideEffectRead marks a capability that only reads external state.
	SideEffectRead SideEffect = "read"
	// SideEffectWrite marks a capability that mutates external state.
	SideEffectWrite SideEffect = "write"
)

// Capability is a named, permissioned remote method on a tool server.
type Capability struct {
	Name             string     `json:"name,omitempty" yaml:"name,omitempty"`
	Server           string     `json:"server" yaml:"server"`
	Method           string     `json:"method" yaml:"method"`
	SideEffect       SideEffect `json:"side_effect,omitempty" yaml:"side_effect,omitempty"`
	RequiresApproval bool       `json:"requires_approval,omitempty" yaml:"requires_approval,omitempty"`
}

// Server is the launch specification of a stdio tool server.
type Server struct {
	Name      string            `json:"name,omitempty" yaml:"name,omitempty"`
	Command   []string          `json:"command" yaml:"command"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	AuthToken Credential        `json:"auth_token,omitempty" yaml:"auth_token,omitempty"`
}

// Workflow is one compiled step graph: an entry step id, the step map, an
// output mapping resolved at the end step, and an optional policy that
// budgets the whole run.
type Workflow struct {
	Name   string
	Entry  string
	Steps  map[string]Step
	Output map[string]any
	Policy string
}

// Step returns the step with the given id, if present.
func (w *Workflow) Step(id string) (Step, bool) {
	s, ok := w.Steps[id]
	return s, ok
}
