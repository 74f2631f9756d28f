package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanchitsharma77/airweave-sub002/arf"
	"github.com/sanchitsharma77/airweave-sub002/destination"
	"github.com/sanchitsharma77/airweave-sub002/entity"
	"github.com/sanchitsharma77/airweave-sub002/source"
	"github.com/sanchitsharma77/airweave-sub002/storage"
	"github.com/sanchitsharma77/airweave-sub002/worker"
)

// TestReplaySync tests scenario E6: after an archived sync, a replay run
// fills a new destination from the archive alone, without touching the
// original source or the metadata store.
func TestReplaySync(t *testing.T) {
	ctx := context.Background()
	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	writer := arf.NewWriter(backend)

	// Original sync: vector + archive + metadata handlers.
	h := newHarness()
	src := &fakeSource{entities: []*entity.Entity{
		pageEntity("a", "alpha body"), pageEntity("b", "beta body"), pageEntity("c", "gamma body"),
	}}
	registry := testRegistry()
	original := newOrchestrator(src, NormalConfig(), h)
	original.Dispatcher = NewDispatcher(
		[]Handler{
			NewVectorHandler([]destination.Destination{h.dest}),
			NewArchiveHandler(writer),
		},
		NewMetadataHandler(h.store, "org-1"),
		nil,
	)
	require.NoError(t, original.Run(ctx))
	require.Equal(t, 3, h.store.count())

	originalTriples := tripleSet(t, h)

	// Replay into a fresh destination. The real source is disabled; the
	// archive is the only input. Metadata and archive handlers are off.
	newDest := destination.NewMockDestination()
	replayStore := newFakeMetadataStore()
	cfg := ReplayFromArchiveConfig()

	reader := arf.NewReader(backend, registry)
	replaySource := source.NewReplay(reader, "sync-1", "replay-job")

	resolver := NewResolver(replayStore, registry, cfg, nil)
	preparer := NewPreparer(registry, wordCounter{}, &fakeEmbedder{}, false, worker.NewCPUGate(2), nil)
	replayJobs := newFakeJobStore()

	replay := &Orchestrator{
		SyncID:     "sync-1",
		JobID:      "replay-job",
		Source:     replaySource,
		Resolver:   resolver,
		Preparer:   preparer,
		Dispatcher: NewDispatcher([]Handler{NewVectorHandler([]destination.Destination{newDest})}, nil, nil),
		Tracker:    NewTracker("sync-1", "replay-job", 1000, nil, nil),
		Store:      replayStore,
		Jobs:       replayJobs,
		Config:     cfg,
		Pipeline:   testPipeline(),
	}
	require.NoError(t, replay.Run(ctx))

	// The new destination holds the same three parents.
	assert.ElementsMatch(t, []string{"a", "b", "c"}, newDest.ParentIDs())
	// The real source was never called again.
	assert.Equal(t, 1, src.called)
	// Replay left the metadata store untouched.
	assert.Equal(t, 0, replayStore.count())

	// Replay fidelity: reconstructed entities hash to the same
	// (source_entity_id, entity_type_id, hash) triples as the original run.
	counters := replay.Tracker.Snapshot()
	assert.Equal(t, 3, counters.Inserted)

	paths, err := reader.ListEntityPaths(ctx, "sync-1")
	require.NoError(t, err)
	replayTriples := make(map[[3]string]bool, len(paths))
	for _, entityPath := range paths {
		restored, _, err := reader.ReadEntity(ctx, entityPath)
		require.NoError(t, err)
		descriptor, ok := registry.Lookup(restored.TypeID)
		require.True(t, ok)
		hash, err := entity.ContentHash(restored, descriptor)
		require.NoError(t, err)
		replayTriples[[3]string{restored.SourceEntityID, restored.TypeID, hash}] = true
	}
	assert.Equal(t, originalTriples, replayTriples)
}

// tripleSet extracts (source_entity_id, entity_type_id, hash) from the
// metadata rows of the original run.
func tripleSet(t *testing.T, h *harness) map[[3]string]bool {
	t.Helper()
	rows, err := h.store.ListBySyncID(context.Background(), "sync-1")
	require.NoError(t, err)
	triples := make(map[[3]string]bool, len(rows))
	for _, row := range rows {
		triples[[3]string{row.SourceEntityID, row.EntityTypeID, row.Hash}] = true
	}
	return triples
}
