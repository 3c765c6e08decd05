package ir

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the bundle encoding.
type Format string

const (
	// FormatJSON is the compiler's canonical bundle encoding.
	FormatJSON Format = "json"
	// FormatYAML is the encoding for hand-authored bundles and fixtures.
	FormatYAML Format = "yaml"
)

// Load reads a compiled bundle from path, selecting the decoder from the file
// extension (.json, .yaml, .yml).
func Load(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".yaml", ".yml":
		format = FormatYAML
	default:
		return nil, fmt.Errorf("unsupported bundle extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
	return Decode(f, format)
}

// Decode reads a compiled bundle in the given format.
func Decode(r io.Reader, format Format) (*Bundle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}

	var doc bundleDoc
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode bundle json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode bundle yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown bundle format %q", format)
	}
	return doc.build()
}

// bundleDoc is the wire form of a Bundle. Steps arrive as flat records and are
// converted into the closed Step variants during build.
type bundleDoc struct {
	Version string `json:"version" yaml:"version"`
	Project string `json:"project" yaml:"project"`

	Providers    map[string]*Provider    `json:"providers" yaml:"providers"`
	Models       map[string]*Model       `json:"models" yaml:"models"`
	Servers      map[string]*Server      `json:"servers" yaml:"servers"`
	Capabilities map[string]*Capability  `json:"capabilities" yaml:"capabilities"`
	Policies     map[string]*Policy      `json:"policies" yaml:"policies"`
	Schemas      map[string]*Schema      `json:"schemas" yaml:"schemas"`
	Agents       map[string]*Agent       `json:"agents" yaml:"agents"`
	Workflows    map[string]*workflowDoc `json:"workflows" yaml:"workflows"`
}

type workflowDoc struct {
	Entry  string         `json:"entry" yaml:"entry"`
	Steps  []stepDoc      `json:"steps" yaml:"steps"`
	Output map[string]any `json:"output" yaml:"output"`
	Policy string         `json:"policy" yaml:"policy"`
}

// stepDoc is the flat wire record of a step; build rejects fields that do not
// belong to the declared type.
type stepDoc struct {
	ID         string         `json:"id" yaml:"id"`
	Type       StepKind       `json:"type" yaml:"type"`
	Agent      string         `json:"agent" yaml:"agent"`
	Input      map[string]any `json:"input" yaml:"input"`
	Capability string         `json:"capability" yaml:"capability"`
	Args       map[string]any `json:"args" yaml:"args"`
	Condition  string         `json:"condition" yaml:"condition"`
	OnTrue     string         `json:"on_true" yaml:"on_true"`
	OnFalse    string         `json:"on_false" yaml:"on_false"`
	Payload    any            `json:"payload" yaml:"payload"`
	OnApprove  string         `json:"on_approve" yaml:"on_approve"`
	OnReject   string         `json:"on_reject" yaml:"on_reject"`
	SaveAs     string         `json:"save_as" yaml:"save_as"`
	Next       string         `json:"next" yaml:"next"`
}

func (d *bundleDoc) build() (*Bundle, error) {
	b := &Bundle{
		Version:      d.Version,
		Project:      d.Project,
		Providers:    d.Providers,
		Models:       d.Models,
		Servers:      d.Servers,
		Capabilities: d.Capabilities,
		Policies:     d.Policies,
		Schemas:      d.Schemas,
		Agents:       d.Agents,
		Workflows:    make(map[string]*Workflow, len(d.Workflows)),
	}

	fillNames(b.Providers, func(p *Provider, n string) { p.Name = n })
	fillNames(b.Models, func(m *Model, n string) { m.Name = n })
	fillNames(b.Servers, func(s *Server, n string) { s.Name = n })
	fillNames(b.Capabilities, func(c *Capability, n string) { c.Name = n })
	fillNames(b.Policies, func(p *Policy, n string) { p.Name = n })
	fillNames(b.Schemas, func(s *Schema, n string) { s.Name = n })
	fillNames(b.Agents, func(a *Agent, n string) { a.Name = n })

	for name, wd := range d.Workflows {
		if wd == nil {
			return nil, fmt.Errorf("workflow %q: empty definition", name)
		}
		wf := &Workflow{
			Name:   name,
			Entry:  wd.Entry,
			Steps:  make(map[string]Step, len(wd.Steps)),
			Output: wd.Output,
			Policy: wd.Policy,
		}
		for _, sd := range wd.Steps {
			step, err := sd.build()
			if err != nil {
				return nil, fmt.Errorf("workflow %q: %w", name, err)
			}
			if _, dup := wf.Steps[step.StepID()]; dup {
				return nil, fmt.Errorf("workflow %q: duplicate step id %q", name, step.StepID())
			}
			wf.Steps[step.StepID()] = step
		}
		b.Workflows[name] = wf
	}
	return b, nil
}

func fillNames[V any](m map[string]*V, set func(*V, string)) {
	for name, v := range m {
		if v != nil {
			set(v, name)
		}
	}
}

func (d stepDoc) build() (Step, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("step with type %q has no id", d.Type)
	}
	switch d.Type {
	case StepKindLLM:
		if err := d.allowOnly("agent", "input", "save_as", "next"); err != nil {
			return nil, err
		}
		if d.Agent == "" {
			return nil, fmt.Errorf("step %q: llm step requires an agent", d.ID)
		}
		return &LLMStep{ID: d.ID, Agent: d.Agent, Input: d.Input, SaveAs: d.SaveAs, Next: d.Next}, nil
	case StepKindCall:
		if err := d.allowOnly("capability", "args", "save_as", "next"); err != nil {
			return nil, err
		}
		if d.Capability == "" {
			return nil, fmt.Errorf("step %q: call step requires a capability", d.ID)
		}
		return &CallStep{ID: d.ID, Capability: d.Capability, Args: d.Args, SaveAs: d.SaveAs, Next: d.Next}, nil
	case StepKindCondition:
		if err := d.allowOnly("condition", "on_true", "on_false"); err != nil {
			return nil, err
		}
		if d.Condition == "" {
			return nil, fmt.Errorf("step %q: condition step requires an expression", d.ID)
		}
		return &ConditionStep{ID: d.ID, Condition: d.Condition, OnTrue: d.OnTrue, OnFalse: d.OnFalse}, nil
	case StepKindHumanApproval:
		if err := d.allowOnly("payload", "save_as", "on_approve", "on_reject"); err != nil {
			return nil, err
		}
		return &ApprovalStep{ID: d.ID, Payload: d.Payload, SaveAs: d.SaveAs, OnApprove: d.OnApprove, OnReject: d.OnReject}, nil
	case StepKindEnd:
		if err := d.allowOnly(); err != nil {
			return nil, err
		}
		return &EndStep{ID: d.ID}, nil
	default:
		return nil, fmt.Errorf("step %q: unknown step type %q", d.ID, d.Type)
	}
}

func (d stepDoc) allowOnly(allowed ...string) error {
	set := map[string]bool{}
	if d.Agent != "" {
		set["agent"] = true
	}
	if len(d.Input) > 0 {
		set["input"] = true
	}
	if d.Capability != "" {
		set["capability"] = true
	}
	if len(d.Args) > 0 {
		set["args"] = true
	}
	if d.Condition != "" {
		set["condition"] = true
	}
	if d.OnTrue != "" {
		set["on_true"] = true
	}
	if d.OnFalse != "" {
		set["on_false"] = true
	}
	if d.Payload != nil {
		set["payload"] = true
	}
	if d.OnApprove != "" {
		set["on_approve"] = true
	}
	if d.OnReject != "" {
		set["on_reject"] = true
	}
	if d.SaveAs != "" {
		set["save_as"] = true
	}
	if d.Next != "" {
		set["next"] = true
	}
	for _, a := range allowed {
		delete(set, a)
	}
	if len(set) == 0 {
		return nil
	}
	stray := sortedKeys(set)
	return fmt.Errorf("step %q: fields %v are not valid for type %q", d.ID, stray, d.Type)
}
