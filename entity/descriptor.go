package entity

import (
	"fmt"
	"sort"
	"sync"
)

// FieldFlags marks how a payload field participates in downstream processing.
// Embeddable fields are folded into the text handed to the chunker and, by
// default, into the content hash. A field can opt out of hashing (volatile
// metadata such as view counts) while staying embeddable, or the reverse.
type FieldFlags struct {
	Embeddable bool
	Hashable   bool
}

// Descriptor is the static description of an entity type: its kind, a label,
// and the flag set of its payload fields. It replaces per-field annotations on
// a class hierarchy with one table per type.
type Descriptor struct {
	TypeID string
	Kind   Kind
	Label  string
	Fields map[string]FieldFlags
}

// EmbeddableFields returns the payload field names marked embeddable, sorted
// for deterministic iteration.
func (d *Descriptor) EmbeddableFields() []string {
	names := make([]string, 0, len(d.Fields))
	for name, flags := range d.Fields {
		if flags.Embeddable {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// HashableFields returns the payload field names that contribute to the
// content hash, sorted for deterministic iteration.
func (d *Descriptor) HashableFields() []string {
	names := make([]string, 0, len(d.Fields))
	for name, flags := range d.Fields {
		if flags.Hashable {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Registry maps entity type ids to their descriptors. It is populated once at
// startup; lookups during a sync are read-only.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Descriptor
}

// NewRegistry creates an empty descriptor registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*Descriptor)}
}

// Register adds a descriptor. Registering a duplicate type id is a
// programming error.
func (r *Registry) Register(d *Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[d.TypeID]; exists {
		return fmt.Errorf("entity type %q already registered", d.TypeID)
	}
	r.types[d.TypeID] = d
	return nil
}

// MustRegister adds a descriptor and panics on duplicates. Used by startup
// tables where a duplicate is unrecoverable.
func (r *Registry) MustRegister(d *Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor for a type id.
func (r *Registry) Lookup(typeID string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.types[typeID]
	return d, ok
}

// TypeIDs returns all registered type ids, sorted.
func (r *Registry) TypeIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.types))
	for id := range r.types {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
