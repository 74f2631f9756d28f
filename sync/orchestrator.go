package sync

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/config"
	"github.com/sanchitsharma77/airweave-sub002/db"
	"github.com/sanchitsharma77/airweave-sub002/entity"
	"github.com/sanchitsharma77/airweave-sub002/source"
	"github.com/sanchitsharma77/airweave-sub002/storage"
	"github.com/sanchitsharma77/airweave-sub002/worker"
)

// JobStore is the orchestrator's view of the job table.
type JobStore interface {
	MarkRunning(ctx context.Context, jobID string) error
	Finish(ctx context.Context, jobID string, status db.SyncStatus, counters map[string]int, jobErr string) error
}

// CursorPersistence is the orchestrator's view of the cursor table.
type CursorPersistence interface {
	Load(ctx context.Context, syncID string) ([]byte, error)
	Save(ctx context.Context, syncID string, data []byte) error
}

// Orchestrator runs one sync job end to end.
type Orchestrator struct {
	SyncID string
	JobID  string

	Source       source.Source
	Cursor       *source.Cursor
	CursorStore  CursorPersistence
	CursorSchema source.CursorSchema

	Resolver   *Resolver
	Preparer   *Preparer
	Dispatcher *Dispatcher
	Tracker    *Tracker
	Store      MetadataStore
	Jobs       JobStore

	Config   Config
	Pipeline config.SyncConfig
	Logger   *common.ContextLogger
}

// Run executes the sync job. It always sweeps the job's temp files and emits
// a terminal progress event, whatever the outcome.
func (o *Orchestrator) Run(ctx context.Context) (runErr error) {
	logger := o.Logger
	if logger == nil {
		logger = common.NewContextLogger(nil, nil)
	}
	logger = logger.WithSyncJob(o.SyncID, o.JobID)

	if o.Jobs != nil {
		if err := o.Jobs.MarkRunning(ctx, o.JobID); err != nil {
			return fmt.Errorf("failed to mark job running: %w", err)
		}
	}
	logger.Info("sync job started")

	// Guaranteed cleanup: temp sweep, terminal progress, job record.
	defer func() {
		if err := storage.CleanupJobTemp(o.JobID); err != nil {
			logger.WithError(err).Warn("failed to sweep job temp files")
		}

		status := db.JobCompleted
		errText := ""
		switch {
		case runErr == nil:
		case errors.Is(runErr, context.Canceled) || common.IsKind(runErr, common.KindCancelled):
			status = db.JobCancelled
			errText = runErr.Error()
		default:
			status = db.JobFailed
			errText = runErr.Error()
		}

		// The terminal event must go out even when ctx is cancelled.
		terminalCtx := context.WithoutCancel(ctx)
		o.Tracker.Finish(terminalCtx, string(status), errText)
		if o.Jobs != nil {
			counters := o.Tracker.Snapshot()
			if err := o.Jobs.Finish(terminalCtx, o.JobID, status, map[string]int{
				"inserted": counters.Inserted,
				"updated":  counters.Updated,
				"deleted":  counters.Deleted,
				"kept":     counters.Kept,
				"skipped":  counters.Skipped,
			}, errText); err != nil {
				logger.WithError(err).Error("failed to persist job outcome")
			}
		}
	}()

	// A batch failure must also stop the source, so the whole run shares one
	// cancellable context.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	stream := NewStream(runCtx, o.Source, o.SyncID, o.Pipeline.StreamQueueSize)
	batches := stream.Batches(runCtx, o.Pipeline.BatchSize, o.Pipeline.BatchMaxLatency)

	pool := worker.NewPool(o.Pipeline.WorkerCount)
	for batch := range batches {
		batch := batch
		if err := pool.Submit(runCtx, func(taskCtx context.Context) error {
			if err := o.processBatch(taskCtx, batch); err != nil {
				cancelRun()
				return err
			}
			return nil
		}); err != nil {
			break
		}
	}

	if err := pool.Wait(); err != nil {
		return err
	}
	if err := stream.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return common.WrapError(common.KindCancelled, err, "sync cancelled")
		}
		return common.WrapError(common.KindSyncFailure, err, "source stream failed")
	}
	if err := ctx.Err(); err != nil {
		return common.WrapError(common.KindCancelled, err, "sync cancelled")
	}

	// The stream finished normally: reclaim orphans in force-full runs.
	if o.Config.Behavior.ForceFullSync {
		if _, err := sweepOrphans(ctx, o.Store, o.Dispatcher, o.Tracker, o.SyncID, o.JobID, logger); err != nil {
			return err
		}
	}

	o.saveCursor(ctx, logger)
	logger.Info("sync job completed")
	return nil
}

// processBatch runs one micro-batch through resolve, prepare, dispatch, and
// tracking, then releases the staged files of its processed entities.
func (o *Orchestrator) processBatch(ctx context.Context, entities []*entity.Entity) error {
	batch, err := o.Resolver.Resolve(ctx, o.SyncID, o.JobID, entities)
	if err != nil {
		return common.WrapError(common.KindSyncFailure, err, "action resolution failed")
	}

	if o.Preparer != nil {
		if err := o.Preparer.Prepare(ctx, batch); err != nil {
			return err
		}
	}

	if err := o.Dispatcher.Dispatch(ctx, batch); err != nil {
		return err
	}

	o.Tracker.RecordBatch(ctx, batch)
	o.releaseStagedFiles(batch)
	return nil
}

// releaseStagedFiles deletes the temp downloads of successfully processed
// file entities. The whole job tree is swept again at exit; eager deletion
// keeps disk usage flat on large syncs.
func (o *Orchestrator) releaseStagedFiles(batch *ActionBatch) {
	for _, list := range [][]*Resolved{batch.Inserts, batch.Updates, batch.Keeps} {
		for _, resolved := range list {
			e := resolved.Entity
			if e.IsFile() && e.File != nil && e.File.LocalPath != "" {
				os.Remove(e.File.LocalPath)
			}
		}
	}
}

// saveCursor persists the cursor unless updates are disabled. Save errors
// are non-fatal in isolation.
func (o *Orchestrator) saveCursor(ctx context.Context, logger *common.ContextLogger) {
	if o.Config.Cursor.SkipUpdates || o.Cursor == nil || o.CursorStore == nil {
		return
	}
	if !o.Cursor.Dirty() {
		return
	}
	data, err := o.Cursor.Marshal(o.CursorSchema)
	if err != nil {
		logger.WithError(err).Error("failed to encode cursor, not saving")
		return
	}
	if err := o.CursorStore.Save(ctx, o.SyncID, data); err != nil {
		logger.WithError(err).Error("failed to save cursor")
	}
}
