package capability

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Mock is an in-memory Gateway for tests and examples. It records every
// invocation, which lets tests assert that gated calls never reached a
// server.
type Mock struct {
	mu          sync.Mutex
	results     map[string]any
	failures    map[string]error
	invocations []Request
}

// NewMock constructs an empty mock.
func NewMock() *Mock {
	return &Mock{
		results:  make(map[string]any),
		failures: make(map[string]error),
	}
}

// AddResult registers a canned result value for a capability name.
func (m *Mock) AddResult(capability string, value any) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[capability] = value
	return m
}

// FailWith makes every invocation of a capability fail with err.
func (m *Mock) FailWith(capability string, err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[capability] = err
	return m
}

// Invocations returns a copy of every request seen, in arrival order.
func (m *Mock) Invocations() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.invocations)
}

// Invoke implements Gateway.
func (m *Mock) Invoke(ctx context.Context, req Request) (*Result, error) {
	m.mu.Lock()
	m.invocations = append(m.invocations, req)
	value, ok := m.results[req.Capability]
	failure := m.failures[req.Capability]
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	if !ok {
		value = fmt.Sprintf("mock result of %s", req.Method)
	}
	return &Result{Value: value}, nil
}
