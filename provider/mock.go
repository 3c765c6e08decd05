package provider

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MockGateway is a lightweight in-memory Gateway for tests and examples. It
// serves canned completions per model id and can be told to fail specific
// models, which is how fallback chains are exercised without a network.
type MockGateway struct {
	mu        sync.Mutex
	responses map[string]string
	failures  map[string]error
	usage     Usage
	requests  []Request
}

// NewMockGateway constructs an empty mock with plausible default usage.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		responses: make(map[string]string),
		failures:  make(map[string]error),
		usage:     Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

// AddResponse registers a deterministic canned completion for a model id.
func (m *MockGateway) AddResponse(modelID, content string) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[modelID] = content
	return m
}

// FailWith makes every request for a model id fail with err.
func (m *MockGateway) FailWith(modelID string, err error) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[modelID] = err
	return m
}

// SetUsage overrides the usage reported with each completion.
func (m *MockGateway) SetUsage(u Usage) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = u
	return m
}

// Requests returns a copy of every request seen, in arrival order. Failed
// requests are included.
func (m *MockGateway) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.requests)
}

// Complete implements Gateway.
func (m *MockGateway) Complete(ctx context.Context, req Request) (*Completion, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	content, ok := m.responses[req.ModelID]
	failure := m.failures[req.ModelID]
	usage := m.usage
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	if !ok {
		content = fmt.Sprintf("Mock response to: %s", req.Input)
	}

	out := &Completion{Content: content, ModelID: req.ModelID, Usage: usage}
	if req.Schema != nil {
		structured, err := ParseStructured(content, req.Schema)
		if err != nil {
			return nil, err
		}
		out.Structured = structured
	}
	return out, nil
}
