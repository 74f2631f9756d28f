package arf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/sanchitsharma77/airweave-sub002/entity"
	"github.com/sanchitsharma77/airweave-sub002/storage"
)

// Writer captures entities into a sync's archive. Writes are idempotent:
// archiving the same entity twice overwrites its JSON and blob.
type Writer struct {
	backend storage.Backend
}

// NewWriter creates an archive writer on the given backend.
func NewWriter(backend storage.Backend) *Writer {
	return &Writer{backend: backend}
}

// EnsureManifest creates the sync's manifest if missing and appends the job
// id to its job list.
func (w *Writer) EnsureManifest(ctx context.Context, syncID, sourceShortName, collectionID, jobID string) error {
	manifest := Manifest{
		SyncID:          syncID,
		SourceShortName: sourceShortName,
		CollectionID:    collectionID,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
	}

	raw, err := w.backend.ReadJSON(ctx, ManifestPath(syncID))
	if err != nil && !errors.Is(err, storage.ErrStorageNotFound) {
		return fmt.Errorf("failed to read archive manifest: %w", err)
	}
	if err == nil {
		data, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("failed to re-encode archive manifest: %w", err)
		}
		if err := json.Unmarshal(data, &manifest); err != nil {
			return fmt.Errorf("failed to decode archive manifest: %w", err)
		}
	}

	for _, existing := range manifest.Jobs {
		if existing == jobID {
			return nil
		}
	}
	manifest.Jobs = append(manifest.Jobs, jobID)

	if err := w.backend.WriteJSON(ctx, ManifestPath(syncID), manifest); err != nil {
		return fmt.Errorf("failed to write archive manifest: %w", err)
	}
	return nil
}

// WriteEntity archives one entity: its JSON envelope and, for file entities,
// the downloaded blob.
func (w *Writer) WriteEntity(ctx context.Context, e *entity.Entity) error {
	envelope, err := entityEnvelope(e)
	if err != nil {
		return err
	}

	if e.IsFile() && e.File != nil {
		if e.File.LocalPath == "" {
			return fmt.Errorf("file entity %s has no local path", e.SourceEntityID)
		}
		blobName := path.Base(e.File.LocalPath)
		stored := FilePath(e.SyncID, e.SourceEntityID, blobName)

		f, err := os.Open(e.File.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open staged file for %s: %w", e.SourceEntityID, err)
		}
		defer f.Close()
		if err := w.backend.WriteFile(ctx, stored, f); err != nil {
			return fmt.Errorf("failed to archive file for %s: %w", e.SourceEntityID, err)
		}
		envelope[KeyStoredFile] = path.Join("files", path.Base(stored))
	}

	if err := w.backend.WriteJSON(ctx, EntityPath(e.SyncID, e.SourceEntityID), envelope); err != nil {
		return fmt.Errorf("failed to archive entity %s: %w", e.SourceEntityID, err)
	}
	return nil
}

// DeleteEntity removes an entity's JSON (and leaves blob cleanup to the
// sync-level delete, since blob names embed the original file name).
func (w *Writer) DeleteEntity(ctx context.Context, syncID, sourceEntityID string) error {
	if err := w.backend.DeletePath(ctx, EntityPath(syncID, sourceEntityID)); err != nil {
		return fmt.Errorf("failed to delete archived entity %s: %w", sourceEntityID, err)
	}
	return nil
}

// DeleteSync removes a sync's entire archive subtree.
func (w *Writer) DeleteSync(ctx context.Context, syncID string) error {
	if err := w.backend.DeletePath(ctx, SyncRoot(syncID)); err != nil {
		return fmt.Errorf("failed to delete archive for sync %s: %w", syncID, err)
	}
	return nil
}

// entityEnvelope serializes an entity with the reserved metadata keys.
func entityEnvelope(e *entity.Entity) (map[string]interface{}, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity %s: %w", e.SourceEntityID, err)
	}
	var envelope map[string]interface{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to build envelope for %s: %w", e.SourceEntityID, err)
	}
	envelope[KeyEntityClass] = e.TypeID
	envelope[KeyEntityModule] = string(e.Kind)
	envelope[KeyCapturedAt] = time.Now().UTC().Format(time.RFC3339)
	return envelope, nil
}
