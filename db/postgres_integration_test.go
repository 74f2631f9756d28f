package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanchitsharma77/airweave-sub002/config"
	"github.com/sanchitsharma77/airweave-sub002/entity"
)

// integrationDB connects to the database named by AIRWEAVE_TEST_DB_DSN, or
// skips the test when unset. These tests need a real PostgreSQL instance.
func integrationDB(t *testing.T) *EntityStore {
	t.Helper()
	dsn := os.Getenv("AIRWEAVE_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("AIRWEAVE_TEST_DB_DSN not set, skipping database integration test")
	}
	gdb, err := Connect(config.DatabaseConfig{
		DSN:             dsn,
		MaxIdleConns:    2,
		MaxOpenConns:    5,
		ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))
	return NewEntityStore(gdb)
}

// TestEntityStoreRoundTrip tests upsert, lookup, and delete against postgres
func TestEntityStoreRoundTrip(t *testing.T) {
	store := integrationDB(t)
	ctx := context.Background()
	syncID := uuid.NewString()

	rows := []Entity{
		{ID: uuid.NewString(), SyncID: syncID, SourceEntityID: "a", EntityTypeID: "page", Hash: "h1"},
		{ID: uuid.NewString(), SyncID: syncID, SourceEntityID: "b", EntityTypeID: "page", Hash: "h2"},
	}
	require.NoError(t, store.UpsertBatch(ctx, rows))

	got, err := store.GetForKeys(ctx, syncID, []entity.Key{
		{SyncID: syncID, SourceEntityID: "a", TypeID: "page"},
		{SyncID: syncID, SourceEntityID: "b", TypeID: "page"},
		{SyncID: syncID, SourceEntityID: "missing", TypeID: "page"},
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "h1", got[entity.Key{SyncID: syncID, SourceEntityID: "a", TypeID: "page"}].Hash)

	// Upsert with a new hash updates in place.
	rows[0].Hash = "h1b"
	require.NoError(t, store.UpsertBatch(ctx, rows[:1]))
	got, err = store.GetForKeys(ctx, syncID, []entity.Key{{SyncID: syncID, SourceEntityID: "a", TypeID: "page"}})
	require.NoError(t, err)
	assert.Equal(t, "h1b", got[entity.Key{SyncID: syncID, SourceEntityID: "a", TypeID: "page"}].Hash)

	all, err := store.ListBySyncID(ctx, syncID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, store.DeleteBySyncID(ctx, syncID))
	all, err = store.ListBySyncID(ctx, syncID)
	require.NoError(t, err)
	assert.Empty(t, all)
}
