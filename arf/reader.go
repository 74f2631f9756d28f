package arf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sanchitsharma77/airweave-sub002/entity"
	"github.com/sanchitsharma77/airweave-sub002/storage"
)

// Reader enumerates and reconstructs archived entities for replay.
type Reader struct {
	backend  storage.Backend
	registry *entity.Registry
}

// NewReader creates an archive reader. The registry resolves entity type ids
// back to descriptors; an archived entity whose type is no longer registered
// fails the replay.
func NewReader(backend storage.Backend, registry *entity.Registry) *Reader {
	return &Reader{backend: backend, registry: registry}
}

// Manifest loads the sync's manifest.
func (r *Reader) Manifest(ctx context.Context, syncID string) (*Manifest, error) {
	raw, err := r.backend.ReadJSON(ctx, ManifestPath(syncID))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive manifest: %w", err)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode archive manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode archive manifest: %w", err)
	}
	return &manifest, nil
}

// ListEntityPaths returns the archived entity JSON paths of a sync, sorted.
func (r *Reader) ListEntityPaths(ctx context.Context, syncID string) ([]string, error) {
	prefix := path.Join(SyncRoot(syncID), "entities")
	paths, err := r.backend.ListFiles(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived entities: %w", err)
	}
	filtered := paths[:0]
	for _, p := range paths {
		if strings.HasSuffix(p, ".json") {
			filtered = append(filtered, p)
		}
	}
	sort.Strings(filtered)
	return filtered, nil
}

// ReadEntity reconstructs an archived entity from its JSON envelope. The
// returned storedFile is the envelope's relative blob path, or "".
func (r *Reader) ReadEntity(ctx context.Context, entityPath string) (*entity.Entity, string, error) {
	envelope, err := r.backend.ReadJSON(ctx, entityPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read archived entity %s: %w", entityPath, err)
	}

	typeID, _ := envelope[KeyEntityClass].(string)
	if typeID == "" {
		return nil, "", fmt.Errorf("archived entity %s has no %s key", entityPath, KeyEntityClass)
	}
	if _, ok := r.registry.Lookup(typeID); !ok {
		return nil, "", fmt.Errorf("archived entity %s has unknown type %q", entityPath, typeID)
	}

	storedFile, _ := envelope[KeyStoredFile].(string)
	for _, key := range []string{KeyEntityClass, KeyEntityModule, KeyCapturedAt, KeyStoredFile} {
		delete(envelope, key)
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, "", fmt.Errorf("failed to re-encode archived entity %s: %w", entityPath, err)
	}
	var e entity.Entity
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&e); err != nil {
		return nil, "", fmt.Errorf("failed to decode archived entity %s: %w", entityPath, err)
	}
	return &e, storedFile, nil
}

// RestoreFile copies an archived blob into the job's temp directory and
// returns the local path.
func (r *Reader) RestoreFile(ctx context.Context, syncID, storedFile, jobID string) (string, error) {
	data, err := r.backend.ReadFile(ctx, path.Join(SyncRoot(syncID), storedFile))
	if err != nil {
		return "", fmt.Errorf("failed to read archived blob %s: %w", storedFile, err)
	}

	local := filepath.Join(storage.TempRoot(jobID), filepath.FromSlash(storedFile))
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", fmt.Errorf("failed to create restore dir: %w", err)
	}
	if err := os.WriteFile(local, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to restore blob %s: %w", storedFile, err)
	}
	return local, nil
}
