package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps provider ids to client constructors. Providers are
// registered explicitly from a single bootstrap routine at startup; there
// is no import-side-effect registration. Duplicate registration is an
// error, never a silent overwrite.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a constructor for a provider id.
func (r *Registry) Register(providerID string, ctor Constructor) error {
	if providerID == "" {
		return fmt.Errorf("provider id is required")
	}
	if ctor == nil {
		return fmt.Errorf("constructor for %q is nil", providerID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[providerID]; exists {
		return fmt.Errorf("provider %q is already registered", providerID)
	}
	r.constructors[providerID] = ctor
	return nil
}

// Constructor returns the constructor for a provider id.
func (r *Registry) Constructor(providerID string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.constructors[providerID]
	return ctor, ok
}

// IDs returns the registered provider ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.constructors))
	for id := range r.constructors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
