// Package provider normalizes chat-completion backends behind a single
// Gateway interface. The engine talks to gateways only through Request and
// Completion; vendor SDK types stay inside the adapter subpackages.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/weaveflow/weaveflow/ir"
)

// Request is one normalized completion request. Instructions become the
// system prompt and Input the single user message.
type Request struct {
	ModelID      string
	Instructions string
	Input        string
	Temperature  *float64
	MaxTokens    *int
	Schema       *ir.Schema
}

// PromptText returns the full prompt text, used for token estimation when a
// failed attempt reports no usage.
func (r Request) PromptText() string {
	if r.Instructions == "" {
		return r.Input
	}
	return r.Instructions + "\n" + r.Input
}

// Usage captures token usage statistics reported by the backend.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the normalized result of one successful request. Structured
// is set only when the request carried a schema.
type Completion struct {
	Content    string
	Structured map[string]any
	ModelID    string
	Usage      Usage
}

// Gateway is implemented by each model backend.
type Gateway interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// RenderInput renders a step's resolved input mapping as the user message.
// An empty mapping yields a generic nudge instead of an empty message.
func RenderInput(input map[string]any) (string, error) {
	if len(input) == 0 {
		return "Please proceed with your task.", nil
	}
	b, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render input: %w", err)
	}
	return "Input:\n" + string(b), nil
}

// WithSchemaDirective appends a schema's format directive to the
// instructions so the model emits a parseable JSON object.
func WithSchemaDirective(instructions string, schema *ir.Schema) string {
	d := schema.Directive()
	if instructions == "" {
		return d
	}
	return instructions + "\n\n" + d
}

// ParseStructured decodes a reply that was asked for a single JSON object and
// validates it against the schema. Code fences around the object are
// tolerated. A failure here is an attempt failure like any transport error.
func ParseStructured(content string, schema *ir.Schema) (map[string]any, error) {
	text := stripFences(strings.TrimSpace(content))
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("structured output is not valid JSON: %w", err)
	}
	if err := schema.Validate(obj); err != nil {
		return nil, fmt.Errorf("structured output does not match schema %s: %w", schema.Name, err)
	}
	return obj, nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
