package testutil

import (
	"github.com/weaveflow/weaveflow/ir"
)

// WorkflowBuilder assembles a workflow graph with fluent chaining. Step ids
// are not checked against successors, so tests can build dangling graphs on
// purpose.
type WorkflowBuilder struct {
	wf *ir.Workflow
}

// NewWorkflow creates a builder for a workflow entered at the given step id.
func NewWorkflow(entry string) *WorkflowBuilder {
	return &WorkflowBuilder{wf: &ir.Workflow{
		Entry: entry,
		Steps: map[string]ir.Step{},
	}}
}

// LLM adds an llm step (chainable).
func (wb *WorkflowBuilder) LLM(id, agent string, input map[string]any, saveAs, next string) *WorkflowBuilder {
	wb.wf.Steps[id] = &ir.LLMStep{ID: id, Agent: agent, Input: input, SaveAs: saveAs, Next: next}
	return wb
}

// Call adds a call step (chainable).
func (wb *WorkflowBuilder) Call(id, capability string, args map[string]any, saveAs, next string) *WorkflowBuilder {
	wb.wf.Steps[id] = &ir.CallStep{ID: id, Capability: capability, Args: args, SaveAs: saveAs, Next: next}
	return wb
}

// Condition adds a condition step (chainable).
func (wb *WorkflowBuilder) Condition(id, expr, onTrue, onFalse string) *WorkflowBuilder {
	wb.wf.Steps[id] = &ir.ConditionStep{ID: id, Condition: expr, OnTrue: onTrue, OnFalse: onFalse}
	return wb
}

// Approval adds a human_approval step (chainable).
func (wb *WorkflowBuilder) Approval(id string, payload any, saveAs, onApprove, onReject string) *WorkflowBuilder {
	wb.wf.Steps[id] = &ir.ApprovalStep{ID: id, Payload: payload, SaveAs: saveAs, OnApprove: onApprove, OnReject: onReject}
	return wb
}

// End adds an end step (chainable).
func (wb *WorkflowBuilder) End(id string) *WorkflowBuilder {
	wb.wf.Steps[id] = &ir.EndStep{ID: id}
	return wb
}

// Output sets the workflow output mapping (chainable).
func (wb *WorkflowBuilder) Output(m map[string]any) *WorkflowBuilder {
	wb.wf.Output = m
	return wb
}

// Policy names the workflow's policy (chainable).
func (wb *WorkflowBuilder) Policy(name string) *WorkflowBuilder {
	wb.wf.Policy = name
	return wb
}

// Build returns the assembled workflow.
func (wb *WorkflowBuilder) Build() *ir.Workflow {
	return wb.wf
}
