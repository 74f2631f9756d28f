package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanchitsharma77/airweave-sub002/arf"
	"github.com/sanchitsharma77/airweave-sub002/destination"
	"github.com/sanchitsharma77/airweave-sub002/storage"
)

// deletableStore extends the fake metadata store with sync-level deletion.
type deletableStore struct {
	*fakeMetadataStore
	deletedSyncs []string
}

func (d *deletableStore) DeleteBySyncID(_ context.Context, syncID string) error {
	d.deletedSyncs = append(d.deletedSyncs, syncID)
	return nil
}

type fakeCursorDeleter struct{ deleted []string }

func (f *fakeCursorDeleter) Delete(_ context.Context, syncID string) error {
	f.deleted = append(f.deleted, syncID)
	return nil
}

// TestCleanupDeletesSyncEverywhere tests destination, archive, metadata, and
// cursor removal
func TestCleanupDeletesSyncEverywhere(t *testing.T) {
	ctx := context.Background()
	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	writer := arf.NewWriter(backend)

	e := pageEntity("a", "body")
	e.SyncID = "sync-1"
	require.NoError(t, writer.WriteEntity(ctx, e))

	dest := destination.NewMockDestination()
	require.NoError(t, dest.BulkInsert(ctx, []destination.Point{{Entity: e}}))

	store := &deletableStore{fakeMetadataStore: newFakeMetadataStore()}
	cursors := &fakeCursorDeleter{}
	service := NewCleanupService(store, cursors, writer, nil)

	require.NoError(t, service.DeleteSyncData(ctx, "sync-1", []destination.Destination{dest}))

	assert.Empty(t, dest.ParentIDs())
	assert.Equal(t, []string{"sync-1"}, store.deletedSyncs)
	assert.Equal(t, []string{"sync-1"}, cursors.deleted)

	reader := arf.NewReader(backend, testRegistry())
	paths, err := reader.ListEntityPaths(ctx, "sync-1")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

// TestCleanupSurvivesDestinationFailure tests that a dead destination does
// not block the relational cleanup
func TestCleanupSurvivesDestinationFailure(t *testing.T) {
	ctx := context.Background()
	dead := destination.NewMockDestination()
	dead.Err = errors.New("destination down")

	store := &deletableStore{fakeMetadataStore: newFakeMetadataStore()}
	service := NewCleanupService(store, nil, nil, nil)

	err := service.DeleteSyncData(ctx, "sync-1", []destination.Destination{dead})
	require.Error(t, err)
	// The rows are still gone.
	assert.Equal(t, []string{"sync-1"}, store.deletedSyncs)
}

// TestCleanupCollection tests collection-wide deletion
func TestCleanupCollection(t *testing.T) {
	ctx := context.Background()
	dest := destination.NewMockDestination()
	e := pageEntity("a", "body")
	e.SyncID = "s"
	require.NoError(t, dest.BulkInsert(ctx, []destination.Point{{Entity: e}}))

	service := NewCleanupService(newFakeMetadataStore(), nil, nil, nil)
	require.NoError(t, service.DeleteCollectionData(ctx, "col-1", []destination.Destination{dest}))
	assert.Empty(t, dest.ParentIDs())
}
