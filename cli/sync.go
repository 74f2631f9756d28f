package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sanchitsharma77/airweave-sub002/arf"
	"github.com/sanchitsharma77/airweave-sub002/chunker"
	"github.com/sanchitsharma77/airweave-sub002/config"
	"github.com/sanchitsharma77/airweave-sub002/db"
	"github.com/sanchitsharma77/airweave-sub002/destination"
	"github.com/sanchitsharma77/airweave-sub002/source"
	syncpkg "github.com/sanchitsharma77/airweave-sub002/sync"
	"github.com/sanchitsharma77/airweave-sub002/worker"
)

var (
	replayFlag    bool
	forceFullFlag bool
	orgFlag       string
)

var syncCmd = &cobra.Command{
	Use:   "sync [sync-id]",
	Short: "run one sync job",
	Long: `Runs a single sync job for the given sync id.

With --replay the job reads the sync's raw archive instead of the
original source, filling the sync's writable destinations without
touching the upstream API. With --force-full a completed run sweeps
orphaned entities from every writable destination and the metadata
store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()
		return runSyncJob(ctx, app, args[0])
	},
}

func init() {
	syncCmd.Flags().BoolVar(&replayFlag, "replay", false, "replay from the raw archive instead of the source")
	syncCmd.Flags().BoolVar(&forceFullFlag, "force-full", false, "sweep orphans after a completed run")
	syncCmd.Flags().StringVar(&orgFlag, "organization", "", "organization id recorded on metadata rows")
	RootCmd.AddCommand(syncCmd)
}

// runSyncJob assembles and runs the orchestrator for one job.
func runSyncJob(ctx context.Context, app *App, syncID string) error {
	jobID := uuid.NewString()
	pipeline := config.LoadSyncConfig()

	cfg := syncpkg.NormalConfig()
	if replayFlag {
		cfg = syncpkg.ReplayFromArchiveConfig()
	}
	cfg.Behavior.ForceFullSync = cfg.Behavior.ForceFullSync || forceFullFlag
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := app.JobStore.Create(ctx, &db.SyncJob{ID: jobID, SyncID: syncID}); err != nil {
		return err
	}

	collection, err := collectionForSync(ctx, app, syncID)
	if err != nil {
		return err
	}
	slots, err := app.SlotStore.ListBySync(ctx, syncID)
	if err != nil {
		return err
	}
	destinations, err := buildWritableDestinations(ctx, app, collection, slots, cfg)
	if err != nil {
		return err
	}

	var src source.Source
	var cursor *source.Cursor
	var schema source.CursorSchema
	archiveWriter := arf.NewWriter(app.Storage)

	if replayFlag {
		reader := arf.NewReader(app.Storage, app.Entities)
		src = source.NewReplay(reader, syncID, jobID)
	} else {
		src, cursor, schema, err = buildSource(ctx, app, syncID, jobID, cfg)
		if err != nil {
			return err
		}
		if err := archiveWriter.EnsureManifest(ctx, syncID, "", collection.ID, jobID); err != nil {
			return err
		}
	}

	tokenizer, err := chunker.NewTokenizer()
	if err != nil {
		return err
	}
	embedder, err := buildEmbedder(app, collection.EmbeddingModelName, collection.VectorSize)
	if err != nil {
		return err
	}

	withSparse := false
	for _, dest := range destinations {
		if dest.HasKeywordIndex() {
			withSparse = true
		}
	}

	var handlers []syncpkg.Handler
	if cfg.Handlers.EnableVectorHandlers && len(destinations) > 0 {
		handlers = append(handlers, syncpkg.NewVectorHandler(destinations))
	}
	if cfg.Handlers.EnableRawDataHandler {
		handlers = append(handlers, syncpkg.NewArchiveHandler(archiveWriter))
	}
	var metadata syncpkg.Handler
	if cfg.Handlers.EnablePostgresHandler {
		metadata = syncpkg.NewMetadataHandler(app.EntityStore, orgFlag)
	}

	orchestrator := &syncpkg.Orchestrator{
		SyncID:       syncID,
		JobID:        jobID,
		Source:       src,
		Cursor:       cursor,
		CursorStore:  app.CursorStore,
		CursorSchema: schema,
		Resolver:     syncpkg.NewResolver(app.EntityStore, app.Entities, cfg, app.Logger),
		Preparer:     syncpkg.NewPreparer(app.Entities, tokenizer, embedder, withSparse, worker.NewCPUGate(pipeline.ThreadPoolSize), app.Logger),
		Dispatcher:   syncpkg.NewDispatcher(handlers, metadata, app.Logger),
		Tracker:      syncpkg.NewTracker(syncID, jobID, pipeline.PublishThreshold, app.Publisher, app.Logger),
		Store:        app.EntityStore,
		Jobs:         app.JobStore,
		Config:       cfg,
		Pipeline:     pipeline,
		Logger:       app.Logger,
	}
	return orchestrator.Run(ctx)
}

// buildWritableDestinations instantiates destinations for the sync's ACTIVE
// and SHADOW slots, honoring the config's skip and target lists.
func buildWritableDestinations(ctx context.Context, app *App, collection *db.Collection, slots []db.SyncConnection, cfg syncpkg.Config) ([]destination.Destination, error) {
	targeted := map[string]bool{}
	for _, name := range cfg.Destinations.TargetDestinations {
		targeted[name] = true
	}
	excluded := map[string]bool{}
	for _, name := range cfg.Destinations.ExcludeDestinations {
		excluded[name] = true
	}

	var destinations []destination.Destination
	for _, slot := range slots {
		if slot.Role == db.RoleDeprecated {
			continue
		}
		conn, shortName, connCfg, err := connectionFor(ctx, app, slot.ConnectionID)
		if err != nil {
			return nil, err
		}
		if excluded[shortName] || (len(targeted) > 0 && !targeted[shortName]) {
			continue
		}
		if (shortName == "qdrant" && cfg.Destinations.SkipQdrant) ||
			(shortName == "vespa" && cfg.Destinations.SkipVespa) {
			continue
		}
		reg, ok := app.Destinations.Lookup(shortName)
		if !ok {
			return nil, fmt.Errorf("destination %q not registered", shortName)
		}
		dest, err := reg.Factory(ctx, conn, connCfg, collection.ID, collection.VectorSize)
		if err != nil {
			return nil, err
		}
		destinations = append(destinations, dest)
	}
	return destinations, nil
}
