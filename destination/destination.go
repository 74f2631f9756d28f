// Package destination defines the uniform contract for search destinations
// and the implementations shipped with the platform: Qdrant (gRPC) and Vespa
// (HTTP). A destination receives bulk writes from the sync dispatcher and
// serves retrieval for the search pipeline.
//
// Every destination accepts the same Qdrant-shaped filter model; non-Qdrant
// engines translate it internally.
package destination

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sanchitsharma77/airweave-sub002/embed"
	"github.com/sanchitsharma77/airweave-sub002/entity"
)

// ProcessingRequirement declares what the dispatcher must produce before
// handing entities to a destination.
type ProcessingRequirement string

const (
	// ChunksAndEmbeddings destinations receive chunk entities with vectors.
	ChunksAndEmbeddings ProcessingRequirement = "chunks_and_embeddings"
	// RawEntities destinations receive parent entities untouched.
	RawEntities ProcessingRequirement = "raw_entities"
)

// SearchStrategy selects the retrieval mode.
type SearchStrategy string

const (
	StrategyHybrid  SearchStrategy = "hybrid"
	StrategyNeural  SearchStrategy = "neural"
	StrategyKeyword SearchStrategy = "keyword"
)

// TemporalConfig carries the recency weight of a search, a scalar in [0,1]
// that each destination translates into its own boost.
type TemporalConfig struct {
	Weight float64
}

// Point is one write unit: an entity plus its vectors. Vectors are nil for
// raw-entity destinations.
type Point struct {
	Entity    *entity.Entity
	Embedding *embed.Embedding
}

// SearchRequest is the uniform retrieval request.
type SearchRequest struct {
	Query        string
	CollectionID string
	Limit        int
	Offset       int
	Filter       *Filter
	Dense        []float32
	Sparse       *embed.SparseVector
	Strategy     SearchStrategy
	Temporal     *TemporalConfig
}

// SearchResult is one retrieval hit.
type SearchResult struct {
	EntityID string
	Score    float64
	Payload  map[string]interface{}
}

// Destination is the uniform write/search surface. Implementations are
// internally safe for concurrent use; the dispatcher writes from many
// workers at once.
type Destination interface {
	// BulkInsert writes a batch of points.
	BulkInsert(ctx context.Context, points []Point) error

	// BulkDelete removes points by source entity id within a sync.
	BulkDelete(ctx context.Context, entityIDs []string, syncID string) error

	// BulkDeleteByParentIDs removes all chunks whose parent id matches,
	// within a sync. Used on UPDATE before the new chunks are inserted.
	BulkDeleteByParentIDs(ctx context.Context, parentIDs []string, syncID string) error

	// DeleteBySyncID removes everything written by a sync.
	DeleteBySyncID(ctx context.Context, syncID string) error

	// DeleteByCollectionID removes everything in a logical collection.
	DeleteByCollectionID(ctx context.Context, collectionID string) error

	// Search runs retrieval with the composed filter and strategy.
	Search(ctx context.Context, req SearchRequest) ([]SearchResult, error)

	// ProcessingRequirement declares the dispatcher-side preparation.
	ProcessingRequirement() ProcessingRequirement

	// HasKeywordIndex reports whether the destination uses sparse vectors.
	HasKeywordIndex() bool
}

// Credentials carries decrypted destination auth material.
type Credentials map[string]interface{}

// Config carries per-connection destination configuration.
type Config map[string]interface{}

// Factory builds a destination bound to a physical backing collection,
// creating or attaching it as needed.
type Factory func(ctx context.Context, creds Credentials, cfg Config, collectionID string, vectorSize int) (Destination, error)

// Metadata describes a destination to the registry.
type Metadata struct {
	ShortName string
	Label     string
	Labels    []string
}

// Registration pairs a destination factory with its metadata.
type Registration struct {
	Factory  Factory
	Metadata Metadata
}

// Registry maps destination short names to registrations.
type Registry struct {
	mu           sync.RWMutex
	destinations map[string]Registration
}

// NewRegistry creates an empty destination registry.
func NewRegistry() *Registry {
	return &Registry{destinations: make(map[string]Registration)}
}

// Register adds a destination registration under its short name.
func (r *Registry) Register(reg Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := reg.Metadata.ShortName
	if name == "" {
		return fmt.Errorf("destination registration missing short name")
	}
	if _, exists := r.destinations[name]; exists {
		return fmt.Errorf("destination %q already registered", name)
	}
	r.destinations[name] = reg
	return nil
}

// Lookup returns the registration for a short name.
func (r *Registry) Lookup(shortName string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.destinations[shortName]
	return reg, ok
}

// All returns every registration sorted by short name.
func (r *Registry) All() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	regs := make([]Registration, 0, len(r.destinations))
	for _, reg := range r.destinations {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].Metadata.ShortName < regs[j].Metadata.ShortName
	})
	return regs
}
