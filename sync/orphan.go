package sync

import (
	"context"
	"fmt"

	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/entity"
)

// sweepOrphans deletes every stored row whose identity was not encountered
// during this run, from every writable destination and the metadata store.
// It runs only after the source stream finished normally in a force-full
// sync, and goes through the same dispatcher path as regular deletions.
func sweepOrphans(ctx context.Context, store MetadataStore, dispatcher *Dispatcher, tracker *Tracker, syncID, jobID string, logger *common.ContextLogger) (int, error) {
	rows, err := store.ListBySyncID(ctx, syncID)
	if err != nil {
		return 0, fmt.Errorf("failed to list rows for orphan sweep: %w", err)
	}

	batch := &ActionBatch{SyncID: syncID, JobID: jobID}
	for _, row := range rows {
		if tracker.Encountered(row.SourceEntityID, row.EntityTypeID) {
			continue
		}
		batch.Deletes = append(batch.Deletes, &Resolved{
			Action:   ActionDelete,
			Hash:     row.Hash,
			StoredID: row.ID,
			Entity: &entity.Entity{
				SyncID:         syncID,
				SourceEntityID: row.SourceEntityID,
				TypeID:         row.EntityTypeID,
				Kind:           entity.KindDeletion,
				Deletion:       &entity.DeletionAttrs{},
			},
		})
	}

	if len(batch.Deletes) == 0 {
		return 0, nil
	}
	logger.WithField("orphans", len(batch.Deletes)).Info("sweeping orphaned entities")

	if err := dispatcher.Dispatch(ctx, batch); err != nil {
		return 0, err
	}
	tracker.RecordBatch(ctx, batch)
	return len(batch.Deletes), nil
}
