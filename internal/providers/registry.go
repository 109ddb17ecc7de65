// Package providers holds the adapter registry and the router that selects
// exactly one backend adapter per request.
package providers

import (
	"sort"
	"strings"

	"modelrelay/internal/core"
)

// Registry maps provider identifiers to adapter instances. It is populated
// once at startup and read-only afterwards, so no locking is needed.
type Registry struct {
	adapters map[string]core.Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]core.Adapter)}
}

// Register adds an adapter under its lower-cased name. Registering the same
// name twice replaces the earlier adapter.
func (r *Registry) Register(adapter core.Adapter) {
	r.adapters[strings.ToLower(adapter.Name())] = adapter
}

// Get returns the adapter for the given identifier, or nil if unknown.
// Lookup is case-insensitive.
func (r *Registry) Get(name string) core.Adapter {
	return r.adapters[strings.ToLower(name)]
}

// Names returns the registered provider identifiers, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Adapters returns all registered adapters in name order.
func (r *Registry) Adapters() []core.Adapter {
	names := r.Names()
	adapters := make([]core.Adapter, 0, len(names))
	for _, name := range names {
		adapters = append(adapters, r.adapters[name])
	}
	return adapters
}
