package provider

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registry maps provider names from a bundle to live gateways. It is safe
// for concurrent use; runs resolve gateways while the host may still be
// registering.
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]Gateway)}
}

// Register binds a provider name to a gateway, replacing any previous
// binding for that name.
func (r *Registry) Register(name string, gw Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[name] = gw
}

// Lookup returns the gateway bound to a provider name.
func (r *Registry) Lookup(name string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gw, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("no gateway registered for provider %q", name)
	}
	return gw, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.gateways))
}
