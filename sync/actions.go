package sync

import (
	"github.com/sanchitsharma77/airweave-sub002/destination"
	"github.com/sanchitsharma77/airweave-sub002/entity"
)

// Action is the per-entity decision of the resolver.
type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionKeep   Action = "KEEP"
	ActionDelete Action = "DELETE"
	ActionSkip   Action = "SKIP"
)

// Resolved pairs an entity with its action, content hash, and (for UPDATE
// and DELETE) the stored row's database id.
type Resolved struct {
	Entity   *entity.Entity
	Action   Action
	Hash     string
	StoredID string
}

// ActionBatch is the resolver's output for one micro-batch, extended by the
// preparer with the derived chunk points of its INSERT and UPDATE items.
type ActionBatch struct {
	SyncID string
	JobID  string

	Inserts []*Resolved
	Updates []*Resolved
	Keeps   []*Resolved
	Deletes []*Resolved

	// Chunks maps a parent source entity id to its embedded chunk points.
	// Only INSERT and UPDATE parents appear here.
	Chunks map[string][]destination.Point

	// Skipped counts entities dropped by per-entity failures during
	// resolution or preparation.
	Skipped int
}

// Empty reports whether the batch carries no work.
func (b *ActionBatch) Empty() bool {
	return len(b.Inserts) == 0 && len(b.Updates) == 0 && len(b.Keeps) == 0 && len(b.Deletes) == 0
}

// WriteParents returns the INSERT and UPDATE items, the ones whose chunks
// reach destinations.
func (b *ActionBatch) WriteParents() []*Resolved {
	parents := make([]*Resolved, 0, len(b.Inserts)+len(b.Updates))
	parents = append(parents, b.Inserts...)
	parents = append(parents, b.Updates...)
	return parents
}
