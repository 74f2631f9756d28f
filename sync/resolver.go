package sync

import (
	"context"
	"fmt"

	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/db"
	"github.com/sanchitsharma77/airweave-sub002/entity"
)

// MetadataStore is the resolver's and metadata handler's view of the entity
// table. db.EntityStore implements it; tests use in-memory fakes.
type MetadataStore interface {
	GetForKeys(ctx context.Context, syncID string, keys []entity.Key) (map[entity.Key]*db.Entity, error)
	UpsertBatch(ctx context.Context, rows []db.Entity) error
	DeleteByIDs(ctx context.Context, ids []string) error
	ListBySyncID(ctx context.Context, syncID string) ([]db.Entity, error)
}

// Resolver assigns each incoming entity exactly one action by comparing its
// content hash with the stored row.
type Resolver struct {
	store    MetadataStore
	registry *entity.Registry
	config   Config
	logger   *common.ContextLogger
}

// NewResolver creates a resolver.
func NewResolver(store MetadataStore, registry *entity.Registry, config Config, logger *common.ContextLogger) *Resolver {
	if logger == nil {
		logger = common.NewContextLogger(nil, map[string]interface{}{"component": "resolver"})
	}
	return &Resolver{store: store, registry: registry, config: config, logger: logger}
}

// Resolve partitions one micro-batch into actions. Per-entity failures
// (unregistered type, hash failure) skip the entity and count it; they never
// fail the batch.
func (r *Resolver) Resolve(ctx context.Context, syncID, jobID string, entities []*entity.Entity) (*ActionBatch, error) {
	batch := &ActionBatch{SyncID: syncID, JobID: jobID}

	// Deletion signals resolve against the store for their row ids; regular
	// entities need hashes first.
	type hashed struct {
		entity *entity.Entity
		hash   string
	}
	regular := make([]hashed, 0, len(entities))
	deletions := make([]*entity.Entity, 0)
	keys := make([]entity.Key, 0, len(entities))

	for _, e := range entities {
		if e.IsDeletion() {
			deletions = append(deletions, e)
			keys = append(keys, e.IdentityKey())
			continue
		}

		descriptor, ok := r.registry.Lookup(e.TypeID)
		if !ok {
			r.logger.WithField("entity_type", e.TypeID).Warn("skipping entity with unregistered type")
			batch.Skipped++
			continue
		}
		hash, err := entity.ContentHash(e, descriptor)
		if err != nil {
			r.logger.WithField("entity_id", e.SourceEntityID).WithError(err).Warn("skipping entity, hash failed")
			batch.Skipped++
			continue
		}
		regular = append(regular, hashed{entity: e, hash: hash})
		keys = append(keys, e.IdentityKey())
	}

	stored, err := r.store.GetForKeys(ctx, syncID, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve actions: %w", err)
	}

	for _, item := range regular {
		row := stored[item.entity.IdentityKey()]
		resolved := &Resolved{Entity: item.entity, Hash: item.hash}
		switch {
		case r.config.Behavior.SkipHashComparison:
			resolved.Action = ActionInsert
			if row != nil {
				resolved.StoredID = row.ID
			}
			batch.Inserts = append(batch.Inserts, resolved)
		case row == nil:
			resolved.Action = ActionInsert
			batch.Inserts = append(batch.Inserts, resolved)
		case row.Hash == item.hash:
			resolved.Action = ActionKeep
			resolved.StoredID = row.ID
			batch.Keeps = append(batch.Keeps, resolved)
		default:
			resolved.Action = ActionUpdate
			resolved.StoredID = row.ID
			batch.Updates = append(batch.Updates, resolved)
		}
	}

	for _, e := range deletions {
		resolved := &Resolved{Entity: e, Action: ActionDelete}
		if row := stored[e.IdentityKey()]; row != nil {
			resolved.StoredID = row.ID
		}
		batch.Deletes = append(batch.Deletes, resolved)
	}

	return batch, nil
}
