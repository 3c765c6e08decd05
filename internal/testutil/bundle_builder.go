package testutil

import (
	"github.com/weaveflow/weaveflow/ir"
)

// BundleBuilder assembles an ir.Bundle with fluent chaining.
// Example:
//
//	b := NewBundle().
//		Provider("openai", ir.ProviderOpenAI).
//		Model("fast", "openai", "gpt-4o-mini").
//		Agent("assistant", "fast").
//		Workflow("support", NewWorkflow("ask").
//			LLM("ask", "assistant", map[string]any{"q": "input.question"}, "answer", "done").
//			End("done").
//			Build()).
//		Build()
//
// Chain only the parts the test needs; referenced names are not checked.
type BundleBuilder struct {
	b *ir.Bundle
}

// NewBundle creates a builder for an empty bundle.
func NewBundle() *BundleBuilder {
	return &BundleBuilder{b: &ir.Bundle{
		Version:      "1",
		Project:      "test",
		Providers:    map[string]*ir.Provider{},
		Models:       map[string]*ir.Model{},
		Servers:      map[string]*ir.Server{},
		Capabilities: map[string]*ir.Capability{},
		Policies:     map[string]*ir.Policy{},
		Schemas:      map[string]*ir.Schema{},
		Agents:       map[string]*ir.Agent{},
		Workflows:    map[string]*ir.Workflow{},
	}}
}

// Provider registers a provider (chainable).
func (bb *BundleBuilder) Provider(name string, typ ir.ProviderType) *BundleBuilder {
	bb.b.Providers[name] = &ir.Provider{Name: name, Type: typ}
	return bb
}

// ProviderWith registers a fully specified provider (chainable).
func (bb *BundleBuilder) ProviderWith(name string, p *ir.Provider) *BundleBuilder {
	p.Name = name
	bb.b.Providers[name] = p
	return bb
}

// Model registers a model bound to a provider (chainable).
func (bb *BundleBuilder) Model(name, provider, modelID string) *BundleBuilder {
	bb.b.Models[name] = &ir.Model{Name: name, Provider: provider, ModelID: modelID}
	return bb
}

// ModelWith registers a fully specified model (chainable).
func (bb *BundleBuilder) ModelWith(name string, m *ir.Model) *BundleBuilder {
	m.Name = name
	bb.b.Models[name] = m
	return bb
}

// Agent registers an agent with a primary model and optional fallbacks
// (chainable).
func (bb *BundleBuilder) Agent(name, model string, fallbacks ...string) *BundleBuilder {
	bb.b.Agents[name] = &ir.Agent{Name: name, Model: model, Fallbacks: fallbacks}
	return bb
}

// AgentWith registers a fully specified agent (chainable).
func (bb *BundleBuilder) AgentWith(name string, a *ir.Agent) *BundleBuilder {
	a.Name = name
	bb.b.Agents[name] = a
	return bb
}

// Server registers a stdio tool server (chainable).
func (bb *BundleBuilder) Server(name string, command ...string) *BundleBuilder {
	bb.b.Servers[name] = &ir.Server{Name: name, Command: command}
	return bb
}

// Capability registers a capability on a server (chainable).
func (bb *BundleBuilder) Capability(name, server, method string) *BundleBuilder {
	bb.b.Capabilities[name] = &ir.Capability{Name: name, Server: server, Method: method}
	return bb
}

// GatedCapability registers a write capability that requires approval
// (chainable).
func (bb *BundleBuilder) GatedCapability(name, server, method string) *BundleBuilder {
	bb.b.Capabilities[name] = &ir.Capability{
		Name:             name,
		Server:           server,
		Method:           method,
		SideEffect:       ir.SideEffectWrite,
		RequiresApproval: true,
	}
	return bb
}

// Policy registers a policy (chainable).
func (bb *BundleBuilder) Policy(name string, p *ir.Policy) *BundleBuilder {
	p.Name = name
	bb.b.Policies[name] = p
	return bb
}

// Schema registers an output schema (chainable).
func (bb *BundleBuilder) Schema(name string, fields map[string]ir.Field) *BundleBuilder {
	bb.b.Schemas[name] = &ir.Schema{Name: name, Fields: fields}
	return bb
}

// Workflow registers a workflow under the given name (chainable).
func (bb *BundleBuilder) Workflow(name string, wf *ir.Workflow) *BundleBuilder {
	wf.Name = name
	bb.b.Workflows[name] = wf
	return bb
}

// Build returns the assembled bundle.
func (bb *BundleBuilder) Build() *ir.Bundle {
	return bb.b
}

// Float64 returns a pointer to v, for optional limit fields.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for optional limit fields.
func Int(v int) *int { return &v }
