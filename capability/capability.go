// Package capability executes tool-server methods on behalf of call steps.
// Invocations are never retried: a capability may have side effects, so a
// failure is terminal for the run that issued it.
package capability

import (
	"context"
	"fmt"
)

// Error carries details of a failed capability invocation.
type Error struct {
	Capability string `json:"capability"` // Name of the capability that failed
	Message    string `json:"message"`    // Error message
	Code       string `json:"code"`       // Error code for categorization
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("capability error [%s] in %s: %s", e.Code, e.Capability, e.Message)
	}
	return fmt.Sprintf("capability error in %s: %s", e.Capability, e.Message)
}

// NewError creates an Error with the specified details.
func NewError(capability, message, code string) *Error {
	return &Error{Capability: capability, Message: message, Code: code}
}

// Request identifies one capability invocation with fully resolved arguments.
type Request struct {
	Capability string
	Server     string
	Method     string
	Args       map[string]any
}

// Result is the payload of a successful invocation. Value is decoded JSON
// when the server returned JSON text, otherwise the raw text.
type Result struct {
	Value any
}

// Gateway executes capability requests against tool servers.
type Gateway interface {
	Invoke(ctx context.Context, req Request) (*Result, error)
}
