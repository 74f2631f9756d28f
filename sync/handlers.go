package sync

import (
	"context"
	"fmt"

	"github.com/sanchitsharma77/airweave-sub002/arf"
	"github.com/sanchitsharma77/airweave-sub002/db"
	"github.com/sanchitsharma77/airweave-sub002/destination"
	"golang.org/x/sync/errgroup"
)

// Handler consumes one resolved batch. Non-metadata handlers run
// concurrently per batch; the metadata handler runs strictly after them.
type Handler interface {
	Name() string
	HandleBatch(ctx context.Context, batch *ActionBatch) error
}

// VectorHandler fans a batch out to the sync's writable destinations
// (ACTIVE and SHADOW slots). Chunks-and-embeddings destinations receive the
// derived chunk points; raw-entity destinations receive the parents
// untouched. On UPDATE, a parent's old chunks are deleted before the new
// ones are inserted. Any destination error cancels the batch.
type VectorHandler struct {
	destinations []destination.Destination
}

// NewVectorHandler creates a vector handler over the writable destinations.
func NewVectorHandler(destinations []destination.Destination) *VectorHandler {
	return &VectorHandler{destinations: destinations}
}

// Name implements Handler
func (h *VectorHandler) Name() string { return "vector" }

// HandleBatch implements Handler
func (h *VectorHandler) HandleBatch(ctx context.Context, batch *ActionBatch) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, dest := range h.destinations {
		dest := dest
		group.Go(func() error {
			return h.handleOne(groupCtx, dest, batch)
		})
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("failed to write batch to destinations: %w", err)
	}
	return nil
}

func (h *VectorHandler) handleOne(ctx context.Context, dest destination.Destination, batch *ActionBatch) error {
	// Deletions cover the parent and every derived chunk.
	if len(batch.Deletes) > 0 {
		ids := make([]string, 0, len(batch.Deletes))
		for _, resolved := range batch.Deletes {
			ids = append(ids, resolved.Entity.SourceEntityID)
		}
		if err := dest.BulkDelete(ctx, ids, batch.SyncID); err != nil {
			return err
		}
	}

	// Updated parents drop their old chunks before the new ones land.
	if len(batch.Updates) > 0 {
		parentIDs := make([]string, 0, len(batch.Updates))
		for _, resolved := range batch.Updates {
			parentIDs = append(parentIDs, resolved.Entity.SourceEntityID)
		}
		if err := dest.BulkDeleteByParentIDs(ctx, parentIDs, batch.SyncID); err != nil {
			return err
		}
	}

	parents := batch.WriteParents()
	if len(parents) == 0 {
		return nil
	}

	var points []destination.Point
	if dest.ProcessingRequirement() == destination.RawEntities {
		for _, resolved := range parents {
			points = append(points, destination.Point{Entity: resolved.Entity})
		}
	} else {
		for _, resolved := range parents {
			points = append(points, batch.Chunks[resolved.Entity.SourceEntityID]...)
		}
	}
	if len(points) == 0 {
		return nil
	}
	return dest.BulkInsert(ctx, points)
}

// ArchiveHandler captures the batch into the sync's raw archive. Writes are
// idempotent, so KEEP entities (already archived with identical content) are
// not rewritten.
type ArchiveHandler struct {
	writer *arf.Writer
}

// NewArchiveHandler creates an archive handler.
func NewArchiveHandler(writer *arf.Writer) *ArchiveHandler {
	return &ArchiveHandler{writer: writer}
}

// Name implements Handler
func (h *ArchiveHandler) Name() string { return "archive" }

// HandleBatch implements Handler
func (h *ArchiveHandler) HandleBatch(ctx context.Context, batch *ActionBatch) error {
	for _, resolved := range batch.WriteParents() {
		if err := h.writer.WriteEntity(ctx, resolved.Entity); err != nil {
			return err
		}
	}
	for _, resolved := range batch.Deletes {
		if err := h.writer.DeleteEntity(ctx, batch.SyncID, resolved.Entity.SourceEntityID); err != nil {
			return err
		}
	}
	return nil
}

// MetadataHandler reflects the batch's decisions in the entity table. It
// must run only after every other handler succeeded, so a row never exists
// without its destination-side write.
type MetadataHandler struct {
	store          MetadataStore
	organizationID string
}

// NewMetadataHandler creates the metadata handler.
func NewMetadataHandler(store MetadataStore, organizationID string) *MetadataHandler {
	return &MetadataHandler{store: store, organizationID: organizationID}
}

// Name implements Handler
func (h *MetadataHandler) Name() string { return "metadata" }

// HandleBatch implements Handler
func (h *MetadataHandler) HandleBatch(ctx context.Context, batch *ActionBatch) error {
	rows := make([]db.Entity, 0, len(batch.Inserts)+len(batch.Updates))
	for _, resolved := range batch.WriteParents() {
		rows = append(rows, db.Entity{
			SyncID:         batch.SyncID,
			SourceEntityID: resolved.Entity.SourceEntityID,
			EntityTypeID:   resolved.Entity.TypeID,
			Hash:           resolved.Hash,
			OrganizationID: h.organizationID,
		})
	}
	if err := h.store.UpsertBatch(ctx, rows); err != nil {
		return err
	}

	ids := make([]string, 0, len(batch.Deletes))
	for _, resolved := range batch.Deletes {
		if resolved.StoredID != "" {
			ids = append(ids, resolved.StoredID)
		}
	}
	return h.store.DeleteByIDs(ctx, ids)
}
