package ir

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FieldType is the type of a schema field.
type FieldType string

const (
	// FieldString is a text field.
	FieldString FieldType = "string"
	// FieldNumber is a numeric field (integers and floats).
	FieldNumber FieldType = "number"
	// FieldBoolean is a true/false field.
	FieldBoolean FieldType = "boolean"
	// FieldList is a homogeneous list; ItemType names the element type.
	FieldList FieldType = "list"
)

// Field describes one schema field.
type Field struct {
	Type     FieldType `json:"type" yaml:"type"`
	ItemType FieldType `json:"item_type,omitempty" yaml:"item_type,omitempty"`
}

// Schema is a structured-output shape an agent can be bound to. All fields are
// required.
type Schema struct {
	Name   string           `json:"name,omitempty" yaml:"name,omitempty"`
	Fields map[string]Field `json:"fields" yaml:"fields"`
}

// Directive renders the instruction block appended to an agent's system prompt
// when structured output is requested.
func (s *Schema) Directive() string {
	var b strings.Builder
	b.WriteString("Respond with a single JSON object and nothing else. Fields:\n")
	for _, name := range sortedKeys(s.Fields) {
		f := s.Fields[name]
		if f.Type == FieldList {
			fmt.Fprintf(&b, "- %q: list of %s\n", name, f.ItemType)
			continue
		}
		fmt.Fprintf(&b, "- %q: %s\n", name, f.Type)
	}
	return b.String()
}

// Validate checks a decoded object against the schema: every field present
// with a value of the declared type. All violations are reported at once.
func (s *Schema) Validate(obj map[string]any) error {
	var errs []error
	for _, name := range sortedKeys(s.Fields) {
		f := s.Fields[name]
		v, ok := obj[name]
		if !ok {
			errs = append(errs, fmt.Errorf("schema %q: missing field %q", s.Name, name))
			continue
		}
		if err := checkFieldType(v, f); err != nil {
			errs = append(errs, fmt.Errorf("schema %q: field %q: %w", s.Name, name, err))
		}
	}
	return errors.Join(errs...)
}

func checkFieldType(v any, f Field) error {
	switch f.Type {
	case FieldString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
	case FieldNumber:
		if !isNumber(v) {
			return fmt.Errorf("expected number, got %T", v)
		}
	case FieldBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", v)
		}
	case FieldList:
		items, ok := v.([]any)
		if !ok {
			return fmt.Errorf("expected list, got %T", v)
		}
		for i, item := range items {
			if err := checkFieldType(item, Field{Type: f.ItemType}); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unknown field type %q", f.Type)
	}
	return nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64, json.Number:
		return true
	default:
		return false
	}
}
