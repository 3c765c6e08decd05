package ir

import (
	"errors"
	"fmt"
)

// Validate re-checks the structural invariants the upstream compiler is
// supposed to guarantee: known entry and successor step ids, resolvable name
// references, launchable servers and well-formed schemas. All violations are
// reported together.
func Validate(b *Bundle) error {
	var errs []error

	for _, name := range sortedKeys(b.Models) {
		m := b.Models[name]
		if _, ok := b.Providers[m.Provider]; !ok {
			errs = append(errs, fmt.Errorf("model %q: unknown provider %q", name, m.Provider))
		}
		if m.ModelID == "" {
			errs = append(errs, fmt.Errorf("model %q: empty model_id", name))
		}
	}

	for _, name := range sortedKeys(b.Servers) {
		if len(b.Servers[name].Command) == 0 {
			errs = append(errs, fmt.Errorf("server %q: empty command", name))
		}
	}

	for _, name := range sortedKeys(b.Capabilities) {
		c := b.Capabilities[name]
		if _, ok := b.Servers[c.Server]; !ok {
			errs = append(errs, fmt.Errorf("capability %q: unknown server %q", name, c.Server))
		}
		if c.Method == "" {
			errs = append(errs, fmt.Errorf("capability %q: empty method", name))
		}
		switch c.SideEffect {
		case SideEffectRead, SideEffectWrite, "":
		default:
			errs = append(errs, fmt.Errorf("capability %q: unknown side effect %q", name, c.SideEffect))
		}
	}

	for _, name := range sortedKeys(b.Schemas) {
		s := b.Schemas[name]
		for _, fname := range sortedKeys(s.Fields) {
			f := s.Fields[fname]
			switch f.Type {
			case FieldString, FieldNumber, FieldBoolean:
			case FieldList:
				switch f.ItemType {
				case FieldString, FieldNumber, FieldBoolean:
				default:
					errs = append(errs, fmt.Errorf("schema %q: field %q: list needs a scalar item_type, got %q", name, fname, f.ItemType))
				}
			default:
				errs = append(errs, fmt.Errorf("schema %q: field %q: unknown type %q", name, fname, f.Type))
			}
		}
	}

	for _, name := range sortedKeys(b.Agents) {
		a := b.Agents[name]
		for _, ref := range a.ModelChain() {
			if _, ok := b.Models[ref]; !ok {
				errs = append(errs, fmt.Errorf("agent %q: unknown model %q", name, ref))
			}
		}
		for _, ref := range a.Capabilities {
			if _, ok := b.Capabilities[ref]; !ok {
				errs = append(errs, fmt.Errorf("agent %q: unknown capability %q", name, ref))
			}
		}
		if a.Policy != "" {
			if _, ok := b.Policies[a.Policy]; !ok {
				errs = append(errs, fmt.Errorf("agent %q: unknown policy %q", name, a.Policy))
			}
		}
		if a.OutputSchema != "" {
			if _, ok := b.Schemas[a.OutputSchema]; !ok {
				errs = append(errs, fmt.Errorf("agent %q: unknown output schema %q", name, a.OutputSchema))
			}
		}
	}

	for _, name := range sortedKeys(b.Workflows) {
		errs = append(errs, validateWorkflow(b, b.Workflows[name])...)
	}

	return errors.Join(errs...)
}

func validateWorkflow(b *Bundle, wf *Workflow) []error {
	var errs []error

	if wf.Entry == "" {
		errs = append(errs, fmt.Errorf("workflow %q: no entry step", wf.Name))
	} else if _, ok := wf.Steps[wf.Entry]; !ok {
		errs = append(errs, fmt.Errorf("workflow %q: entry step %q not found", wf.Name, wf.Entry))
	}
	if wf.Policy != "" {
		if _, ok := b.Policies[wf.Policy]; !ok {
			errs = append(errs, fmt.Errorf("workflow %q: unknown policy %q", wf.Name, wf.Policy))
		}
	}

	for _, id := range sortedKeys(wf.Steps) {
		step := wf.Steps[id]
		for _, succ := range Successors(step) {
			if succ == "" {
				errs = append(errs, fmt.Errorf("workflow %q: step %q: missing successor", wf.Name, id))
				continue
			}
			if _, ok := wf.Steps[succ]; !ok {
				errs = append(errs, fmt.Errorf("workflow %q: step %q: successor %q not found", wf.Name, id, succ))
			}
		}
		switch t := step.(type) {
		case *LLMStep:
			if _, ok := b.Agents[t.Agent]; !ok {
				errs = append(errs, fmt.Errorf("workflow %q: step %q: unknown agent %q", wf.Name, id, t.Agent))
			}
		case *CallStep:
			if _, ok := b.Capabilities[t.Capability]; !ok {
				errs = append(errs, fmt.Errorf("workflow %q: step %q: unknown capability %q", wf.Name, id, t.Capability))
			}
		}
	}
	return errs
}
