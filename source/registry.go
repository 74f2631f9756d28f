package source

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps source short names to registrations. It is populated at
// startup from a static table; lookups afterwards are read-only.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Registration
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Registration)}
}

// Register adds an adapter registration under its short name.
func (r *Registry) Register(reg Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := reg.Metadata.ShortName
	if name == "" {
		return fmt.Errorf("source registration missing short name")
	}
	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("source %q already registered", name)
	}
	r.sources[name] = reg
	return nil
}

// MustRegister adds a registration and panics on error. Used by the startup
// table where a duplicate is unrecoverable.
func (r *Registry) MustRegister(reg Registration) {
	if err := r.Register(reg); err != nil {
		panic(err)
	}
}

// Lookup returns the registration for a short name.
func (r *Registry) Lookup(shortName string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.sources[shortName]
	return reg, ok
}

// All returns every registration sorted by short name.
func (r *Registry) All() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	regs := make([]Registration, 0, len(r.sources))
	for _, reg := range r.sources {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].Metadata.ShortName < regs[j].Metadata.ShortName
	})
	return regs
}
