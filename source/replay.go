package source

import (
	"context"
	"fmt"

	"github.com/sanchitsharma77/airweave-sub002/arf"
	"github.com/sanchitsharma77/airweave-sub002/entity"
)

// ReplayShortName is the registry short name of the replay pseudo-source.
const ReplayShortName = "arf_replay"

// Replay is a pseudo-source that re-emits a sync's archived entities through
// the standard pipeline, bypassing the original upstream API entirely.
// Archived blobs are restored into the job's temp directory so file entities
// come out with a valid local path, exactly as a real download would leave
// them.
type Replay struct {
	reader *arf.Reader
	syncID string
	jobID  string
}

// NewReplay creates a replay source over an archived sync.
func NewReplay(reader *arf.Reader, syncID, jobID string) *Replay {
	return &Replay{reader: reader, syncID: syncID, jobID: jobID}
}

// GenerateEntities enumerates the archive and emits reconstructed entities.
func (r *Replay) GenerateEntities(ctx context.Context, out chan<- *entity.Entity) error {
	paths, err := r.reader.ListEntityPaths(ctx, r.syncID)
	if err != nil {
		return err
	}

	for _, entityPath := range paths {
		e, storedFile, err := r.reader.ReadEntity(ctx, entityPath)
		if err != nil {
			return err
		}
		if storedFile != "" && e.File != nil {
			local, err := r.reader.RestoreFile(ctx, r.syncID, storedFile, r.jobID)
			if err != nil {
				return fmt.Errorf("failed to restore file for %s: %w", e.SourceEntityID, err)
			}
			e.File.LocalPath = local
		}

		select {
		case out <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
