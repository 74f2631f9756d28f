// Package arf implements the raw-archive format: a per-sync capture of every
// processed entity on durable storage, complete enough to replay a sync into
// a new destination without touching the original upstream API.
//
// Layout per sync:
//
//	raw/{sync_id}/manifest.json
//	raw/{sync_id}/entities/{safe_entity_id}.json
//	raw/{sync_id}/files/{safe_entity_id}_{safe_name}{ext}
//
// Every entity JSON is the entity's serialized form plus reserved metadata
// keys: __entity_class__, __entity_module__, __captured_at__, and optionally
// __stored_file__ pointing at a sibling files/ blob.
package arf

import (
	"fmt"
	"path"

	"github.com/sanchitsharma77/airweave-sub002/storage"
)

// Reserved metadata keys of the entity JSON envelope.
const (
	KeyEntityClass  = "__entity_class__"
	KeyEntityModule = "__entity_module__"
	KeyCapturedAt   = "__captured_at__"
	KeyStoredFile   = "__stored_file__"
)

// SyncRoot returns the archive root of a sync.
func SyncRoot(syncID string) string {
	return path.Join("raw", storage.SafeName(syncID))
}

// ManifestPath returns the manifest location of a sync.
func ManifestPath(syncID string) string {
	return path.Join(SyncRoot(syncID), "manifest.json")
}

// EntityPath returns the JSON document location of an entity.
func EntityPath(syncID, sourceEntityID string) string {
	return path.Join(SyncRoot(syncID), "entities", storage.SafeName(sourceEntityID)+".json")
}

// FilePath returns the blob location of an entity's file.
func FilePath(syncID, sourceEntityID, name string) string {
	return path.Join(SyncRoot(syncID), "files",
		fmt.Sprintf("%s_%s", storage.SafeName(sourceEntityID), storage.SafeName(name)))
}

// Manifest records the identity of an archived sync and its job history.
type Manifest struct {
	SyncID          string   `json:"sync_id"`
	SourceShortName string   `json:"source_short_name"`
	CollectionID    string   `json:"collection_id"`
	CreatedAt       string   `json:"created_at"`
	Jobs            []string `json:"jobs"`
}
