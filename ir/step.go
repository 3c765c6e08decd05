package ir

import (
	"maps"
	"slices"
)

// StepKind discriminates the compiled step variants.
type StepKind string

const (
	// StepKindLLM invokes an agent's model chain.
	StepKindLLM StepKind = "llm"
	// StepKindCall invokes a capability on a tool server.
	StepKindCall StepKind = "call"
	// StepKindCondition evaluates a boolean expression and branches.
	StepKindCondition StepKind = "condition"
	// StepKindHumanApproval suspends the run for an external decision.
	StepKindHumanApproval StepKind = "human_approval"
	// StepKindEnd terminates the run successfully.
	StepKindEnd StepKind = "end"
)

// Step is the closed sum of compiled step variants. Each kind has exactly one
// concrete type carrying only the fields valid for that kind; the dispatcher
// selects behavior with a type switch.
type Step interface {
	StepID() string
	Kind() StepKind

	// step restricts implementations to this package.
	step()
}

// LLMStep resolves its input mapping, runs the agent's model chain and stores
// the completion under SaveAs.
type LLMStep struct {
	ID     string
	Agent  string
	Input  map[string]any
	SaveAs string
	Next   string
}

// StepID returns the step id.
func (s *LLMStep) StepID() string { return s.ID }

// Kind returns StepKindLLM.
func (s *LLMStep) Kind() StepKind { return StepKindLLM }

func (*LLMStep) step() {}

// CallStep resolves its argument mapping and invokes a capability, routing
// through the approval gate first when the capability requires it.
type CallStep struct {
	ID         string
	Capability string
	Args       map[string]any
	SaveAs     string
	Next       string
}

// StepID returns the step id.
func (s *CallStep) StepID() string { return s.ID }

// Kind returns StepKindCall.
func (s *CallStep) Kind() StepKind { return StepKindCall }

func (*CallStep) step() {}

// ConditionStep evaluates a boolean expression over the run data and routes to
// OnTrue or OnFalse.
type ConditionStep struct {
	ID        string
	Condition string
	OnTrue    string
	OnFalse   string
}

// StepID returns the step id.
func (s *ConditionStep) StepID() string { return s.ID }

// Kind returns StepKindCondition.
func (s *ConditionStep) Kind() StepKind { return StepKindCondition }

func (*ConditionStep) step() {}

// ApprovalStep resolves its payload, awaits an external decision and routes to
// OnApprove or OnReject. The decision is stored under SaveAs with an
// "approved" flag and a "response" sub-field.
type ApprovalStep struct {
	ID        string
	Payload   any
	SaveAs    string
	OnApprove string
	OnReject  string
}

// StepID returns the step id.
func (s *ApprovalStep) StepID() string { return s.ID }

// Kind returns StepKindHumanApproval.
func (s *ApprovalStep) Kind() StepKind { return StepKindHumanApproval }

func (*ApprovalStep) step() {}

// EndStep terminates the run successfully.
type EndStep struct {
	ID string
}

// StepID returns the step id.
func (s *EndStep) StepID() string { return s.ID }

// Kind returns StepKindEnd.
func (s *EndStep) Kind() StepKind { return StepKindEnd }

func (*EndStep) step() {}

// Successors returns every step id the given step can route to.
func Successors(s Step) []string {
	switch t := s.(type) {
	case *LLMStep:
		return []string{t.Next}
	case *CallStep:
		return []string{t.Next}
	case *ConditionStep:
		return []string{t.OnTrue, t.OnFalse}
	case *ApprovalStep:
		return []string{t.OnApprove, t.OnReject}
	case *EndStep:
		return nil
	default:
		return nil
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	return slices.Sorted(maps.Keys(m))
}
