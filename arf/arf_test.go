package arf

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanchitsharma77/airweave-sub002/entity"
	"github.com/sanchitsharma77/airweave-sub002/storage"
)

func testBackend(t *testing.T) storage.Backend {
	t.Helper()
	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	return backend
}

func testRegistry() *entity.Registry {
	r := entity.NewRegistry()
	r.MustRegister(&entity.Descriptor{
		TypeID: "drive_doc",
		Kind:   entity.KindChunk,
		Fields: map[string]entity.FieldFlags{"body": {Embeddable: true, Hashable: true}},
	})
	r.MustRegister(&entity.Descriptor{
		TypeID: "drive_file",
		Kind:   entity.KindFile,
		Fields: map[string]entity.FieldFlags{},
	})
	return r
}

func chunkEntity(id, body string) *entity.Entity {
	return &entity.Entity{
		SyncID:         "sync-1",
		SourceEntityID: id,
		TypeID:         "drive_doc",
		Kind:           entity.KindChunk,
		Name:           "Doc " + id,
		Payload:        map[string]interface{}{"body": body},
		Chunk:          &entity.ChunkAttrs{TextualRepresentation: body},
	}
}

// TestManifestLifecycle tests creation and job appending
func TestManifestLifecycle(t *testing.T) {
	ctx := context.Background()
	backend := testBackend(t)
	writer := NewWriter(backend)

	require.NoError(t, writer.EnsureManifest(ctx, "sync-1", "notion", "col-1", "job-1"))
	require.NoError(t, writer.EnsureManifest(ctx, "sync-1", "notion", "col-1", "job-2"))
	// Appending the same job twice is a no-op.
	require.NoError(t, writer.EnsureManifest(ctx, "sync-1", "notion", "col-1", "job-2"))

	reader := NewReader(backend, testRegistry())
	manifest, err := reader.Manifest(ctx, "sync-1")
	require.NoError(t, err)
	assert.Equal(t, "sync-1", manifest.SyncID)
	assert.Equal(t, "notion", manifest.SourceShortName)
	assert.Equal(t, []string{"job-1", "job-2"}, manifest.Jobs)
	assert.NotEmpty(t, manifest.CreatedAt)
}

// TestWriteAndReadEntity tests the envelope round trip
func TestWriteAndReadEntity(t *testing.T) {
	ctx := context.Background()
	backend := testBackend(t)
	writer := NewWriter(backend)
	reader := NewReader(backend, testRegistry())

	original := chunkEntity("doc-1", "hello archive")
	require.NoError(t, writer.WriteEntity(ctx, original))

	raw, err := backend.ReadJSON(ctx, EntityPath("sync-1", "doc-1"))
	require.NoError(t, err)
	assert.Equal(t, "drive_doc", raw[KeyEntityClass])
	assert.Equal(t, "chunk", raw[KeyEntityModule])
	assert.NotEmpty(t, raw[KeyCapturedAt])
	_, hasFile := raw[KeyStoredFile]
	assert.False(t, hasFile)

	restored, storedFile, err := reader.ReadEntity(ctx, EntityPath("sync-1", "doc-1"))
	require.NoError(t, err)
	assert.Empty(t, storedFile)
	assert.Equal(t, original.SourceEntityID, restored.SourceEntityID)
	assert.Equal(t, original.TypeID, restored.TypeID)
	assert.Equal(t, "hello archive", restored.Chunk.TextualRepresentation)
	assert.Equal(t, "hello archive", restored.Payload["body"])
}

// TestArchiveIdempotence tests that re-archiving produces identical JSON up
// to the capture timestamp
func TestArchiveIdempotence(t *testing.T) {
	ctx := context.Background()
	backend := testBackend(t)
	writer := NewWriter(backend)

	e := chunkEntity("doc-2", "same content")
	require.NoError(t, writer.WriteEntity(ctx, e))
	first, err := backend.ReadJSON(ctx, EntityPath("sync-1", "doc-2"))
	require.NoError(t, err)

	require.NoError(t, writer.WriteEntity(ctx, e))
	second, err := backend.ReadJSON(ctx, EntityPath("sync-1", "doc-2"))
	require.NoError(t, err)

	delete(first, KeyCapturedAt)
	delete(second, KeyCapturedAt)
	firstJSON, _ := json.Marshal(first)
	secondJSON, _ := json.Marshal(second)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}

// TestFileEntityBlob tests blob archiving and restore
func TestFileEntityBlob(t *testing.T) {
	ctx := context.Background()
	backend := testBackend(t)
	writer := NewWriter(backend)
	reader := NewReader(backend, testRegistry())

	staged := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(staged, []byte("%PDF fake"), 0o644))

	e := &entity.Entity{
		SyncID:         "sync-1",
		SourceEntityID: "file-1",
		TypeID:         "drive_file",
		Kind:           entity.KindFile,
		Name:           "report.pdf",
		File: &entity.FileAttrs{
			URL:       "https://drive/x",
			Size:      9,
			MimeType:  "application/pdf",
			LocalPath: staged,
		},
	}
	require.NoError(t, writer.WriteEntity(ctx, e))

	restored, storedFile, err := reader.ReadEntity(ctx, EntityPath("sync-1", "file-1"))
	require.NoError(t, err)
	require.NotEmpty(t, storedFile)
	assert.Equal(t, "file-1", restored.SourceEntityID)

	local, err := reader.RestoreFile(ctx, "sync-1", storedFile, "replay-job")
	require.NoError(t, err)
	t.Cleanup(func() { storage.CleanupJobTemp("replay-job") })

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "%PDF fake", string(data))
}

// TestFileEntityWithoutLocalPath tests the programming-error guard
func TestFileEntityWithoutLocalPath(t *testing.T) {
	writer := NewWriter(testBackend(t))
	e := &entity.Entity{
		SyncID:         "sync-1",
		SourceEntityID: "file-2",
		TypeID:         "drive_file",
		Kind:           entity.KindFile,
		File:           &entity.FileAttrs{URL: "https://drive/y"},
	}
	err := writer.WriteEntity(context.Background(), e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no local path")
}

// TestListAndDelete tests enumeration and sync-level deletion
func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	backend := testBackend(t)
	writer := NewWriter(backend)
	reader := NewReader(backend, testRegistry())

	require.NoError(t, writer.WriteEntity(ctx, chunkEntity("a", "1")))
	require.NoError(t, writer.WriteEntity(ctx, chunkEntity("b", "2")))

	paths, err := reader.ListEntityPaths(ctx, "sync-1")
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	require.NoError(t, writer.DeleteEntity(ctx, "sync-1", "a"))
	paths, err = reader.ListEntityPaths(ctx, "sync-1")
	require.NoError(t, err)
	assert.Len(t, paths, 1)

	require.NoError(t, writer.DeleteSync(ctx, "sync-1"))
	paths, err = reader.ListEntityPaths(ctx, "sync-1")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

// TestUnknownTypeRejected tests replay safety for unregistered types
func TestUnknownTypeRejected(t *testing.T) {
	ctx := context.Background()
	backend := testBackend(t)
	writer := NewWriter(backend)

	e := chunkEntity("doc-9", "x")
	e.TypeID = "gone_type"
	require.NoError(t, writer.WriteEntity(ctx, e))

	reader := NewReader(backend, testRegistry())
	_, _, err := reader.ReadEntity(ctx, EntityPath("sync-1", "doc-9"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}
