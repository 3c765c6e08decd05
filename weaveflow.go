// Package weaveflow provides a high-level facade over the workflow engine and
// the gateways it depends on, enabling rapid construction of workflow runners
// from compiled bundles. Most applications interact with this package by:
//  1. Creating a Runtime via Open() from a bundle file, or New() from a
//     decoded bundle (optionally overriding gateways, approvals or logging)
//  2. Executing workflows with Execute()
//  3. Calling Close() to shut down any tool servers the runtime launched
//
// The facade delegates orchestration to engine.Engine while keeping setup
// ergonomics concise: provider declarations become live completion gateways,
// server declarations become a lazily-launched tool gateway, and approvals
// default to auto-approve. Production deployments typically supply an
// interactive or policy-backed approval handler and a structured logger.
package weaveflow

import (
	"context"
	"fmt"
	"time"

	"github.com/weaveflow/weaveflow/approval"
	"github.com/weaveflow/weaveflow/budget"
	"github.com/weaveflow/weaveflow/capability"
	"github.com/weaveflow/weaveflow/engine"
	"github.com/weaveflow/weaveflow/ir"
	"github.com/weaveflow/weaveflow/logging"
	"github.com/weaveflow/weaveflow/provider"
	"github.com/weaveflow/weaveflow/provider/anthropic"
	"github.com/weaveflow/weaveflow/provider/openai"
)

// Options configures the Runtime instance.
type Options struct {
	// Providers overrides the gateway registry built from the bundle's
	// provider declarations. Supply one to route models to custom or mock
	// backends; nil builds real gateways from the declared providers.
	Providers *provider.Registry

	// Capabilities overrides the tool gateway built from the bundle's server
	// declarations. When set, the runtime launches nothing and Close becomes
	// a no-op; the gateway's lifecycle belongs to the caller.
	Capabilities capability.Gateway

	// Approvals decides approval gates. Defaults to approving everything.
	Approvals approval.Handler

	// Pricer converts token usage into USD for budget charging.
	Pricer *budget.Pricer

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Hooks observe run lifecycle points, in order.
	Hooks []engine.Hook

	// CallTimeout bounds a single tool call on the gateway the runtime
	// builds. Zero keeps the gateway's default; ignored when Capabilities
	// is supplied.
	CallTimeout time.Duration
}

// Runtime is the high-level facade aggregating a bundle, its gateways, and
// the engine executing its workflows.
type Runtime struct {
	bundle *ir.Bundle
	engine *engine.Engine
	mcp    *capability.MCPGateway // set only when the runtime owns the tool servers
}

// Open loads a bundle file, validates it, and builds a Runtime over it.
func Open(path string, optFns ...func(o *Options)) (*Runtime, error) {
	bundle, err := ir.Load(path)
	if err != nil {
		return nil, err
	}
	return New(bundle, optFns...)
}

// New creates a Runtime over a bundle with optional overrides. The bundle is
// validated first; declared providers are wired to gateways for their
// protocol family, and tool servers are launched lazily on first use.
func New(bundle *ir.Bundle, optFns ...func(o *Options)) (*Runtime, error) {
	if bundle == nil {
		return nil, fmt.Errorf("weaveflow: nil bundle")
	}
	if err := ir.Validate(bundle); err != nil {
		return nil, err
	}

	opts := Options{
		Approvals: approval.AutoApprove(nil),
		Pricer:    budget.NewPricer(),
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	registry := opts.Providers
	if registry == nil {
		var err error
		registry, err = buildRegistry(bundle)
		if err != nil {
			return nil, err
		}
	}

	caps := opts.Capabilities
	var mcp *capability.MCPGateway
	if caps == nil && len(bundle.Servers) > 0 {
		mcp = capability.NewMCPGateway(bundle.Servers, func(o *capability.MCPOptions) {
			o.Logger = opts.Logger
			if opts.CallTimeout > 0 {
				o.CallTimeout = opts.CallTimeout
			}
		})
		caps = mcp
	}

	eng, err := engine.New(bundle, func(o *engine.Options) {
		o.Providers = registry
		o.Capabilities = caps
		o.Approvals = opts.Approvals
		o.Pricer = opts.Pricer
		o.Logger = opts.Logger
		o.Hooks = opts.Hooks
	})
	if err != nil {
		if mcp != nil {
			mcp.Close()
		}
		return nil, err
	}

	return &Runtime{bundle: bundle, engine: eng, mcp: mcp}, nil
}

// buildRegistry wires each declared provider to the gateway for its protocol
// family. Credentials resolve once at construction; an empty key falls
// through to the SDK's own environment lookup.
func buildRegistry(bundle *ir.Bundle) (*provider.Registry, error) {
	registry := provider.NewRegistry()
	for name, prov := range bundle.Providers {
		key := prov.APIKey.Resolve()
		switch prov.Type {
		case ir.ProviderOpenAI:
			registry.Register(name, openai.New(func(o *openai.Options) {
				o.APIKey = key
			}))
		case ir.ProviderAnthropic:
			registry.Register(name, anthropic.New(func(o *anthropic.Options) {
				o.APIKey = key
			}))
		default:
			return nil, fmt.Errorf("provider %q: no gateway for type %q", name, prov.Type)
		}
	}
	return registry, nil
}

// Execute runs the named workflow to completion and returns its result. See
// engine.Engine.Execute for failure semantics.
func (r *Runtime) Execute(ctx context.Context, workflow string, input map[string]any) (*engine.RunResult, error) {
	return r.engine.Execute(ctx, workflow, input)
}

// Cancel aborts the run with the given ID.
func (r *Runtime) Cancel(runID string) error { return r.engine.Cancel(runID) }

// RunStatus reports the status of an in-flight run.
func (r *Runtime) RunStatus(runID string) (engine.Status, bool) {
	return r.engine.RunStatus(runID)
}

// Bundle returns the bundle this runtime executes.
func (r *Runtime) Bundle() *ir.Bundle { return r.bundle }

// Workflows lists the names of the bundle's workflows, sorted.
func (r *Runtime) Workflows() []string { return r.bundle.WorkflowNames() }

// Agents lists the names of the bundle's agents, sorted.
func (r *Runtime) Agents() []string { return r.bundle.AgentNames() }

// Close shuts down tool servers the runtime launched. Gateways supplied
// through Options are left untouched.
func (r *Runtime) Close() error {
	if r.mcp != nil {
		return r.mcp.Close()
	}
	return nil
}
