package sync

import (
	"context"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/pubsub"
)

// Counters is a snapshot of the per-action totals.
type Counters struct {
	Inserted int
	Updated  int
	Deleted  int
	Kept     int
	Skipped  int
}

// Total returns the number of tracked operations.
func (c Counters) Total() int {
	return c.Inserted + c.Updated + c.Deleted + c.Kept + c.Skipped
}

// ProgressPublisher is the tracker's view of the pubsub layer.
type ProgressPublisher interface {
	PublishProgress(ctx context.Context, jobID string, progress pubsub.JobProgress) error
	PublishState(ctx context.Context, state pubsub.JobState) error
}

// Tracker maintains per-action counters and per-entity-type named counts for
// one sync job, publishing snapshots every publish-threshold operations.
// One instance exists per job; updates serialize through its lock and reads
// are consistent snapshots.
type Tracker struct {
	mu          sync.Mutex
	syncID      string
	jobID       string
	counters    Counters
	typeCounts  map[string]int
	encountered map[string]bool
	sincePub    int
	threshold   int
	publisher   ProgressPublisher
	logger      *common.ContextLogger
}

// NewTracker creates a tracker. publisher may be nil (no live progress).
func NewTracker(syncID, jobID string, threshold int, publisher ProgressPublisher, logger *common.ContextLogger) *Tracker {
	if threshold <= 0 {
		threshold = 100
	}
	if logger == nil {
		logger = common.NewContextLogger(nil, map[string]interface{}{"component": "tracker"})
	}
	return &Tracker{
		syncID:      syncID,
		jobID:       jobID,
		typeCounts:  make(map[string]int),
		encountered: make(map[string]bool),
		threshold:   threshold,
		publisher:   publisher,
		logger:      logger.WithSyncJob(syncID, jobID),
	}
}

// RecordBatch folds one dispatched batch into the counters and marks its
// entities as encountered for the orphan sweep.
func (t *Tracker) RecordBatch(ctx context.Context, batch *ActionBatch) {
	t.mu.Lock()
	t.counters.Inserted += len(batch.Inserts)
	t.counters.Updated += len(batch.Updates)
	t.counters.Kept += len(batch.Keeps)
	t.counters.Deleted += len(batch.Deletes)
	t.counters.Skipped += batch.Skipped

	for _, list := range [][]*Resolved{batch.Inserts, batch.Updates, batch.Keeps} {
		for _, resolved := range list {
			t.typeCounts[resolved.Entity.TypeID]++
			t.encountered[encounterKey(resolved.Entity.SourceEntityID, resolved.Entity.TypeID)] = true
		}
	}
	for _, resolved := range batch.Deletes {
		t.typeCounts[resolved.Entity.TypeID]++
	}

	t.sincePub += batchSize(batch)
	shouldPublish := t.sincePub >= t.threshold
	if shouldPublish {
		t.sincePub = 0
	}
	t.mu.Unlock()

	if shouldPublish {
		t.publish(ctx, "", "")
	}
}

func batchSize(batch *ActionBatch) int {
	return len(batch.Inserts) + len(batch.Updates) + len(batch.Keeps) + len(batch.Deletes) + batch.Skipped
}

func encounterKey(sourceEntityID, typeID string) string {
	return sourceEntityID + "|" + typeID
}

// Encountered reports whether an identity was seen during this run.
func (t *Tracker) Encountered(sourceEntityID, typeID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.encountered[encounterKey(sourceEntityID, typeID)]
}

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() Counters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters
}

// Finish publishes the terminal progress message and logs the summary.
func (t *Tracker) Finish(ctx context.Context, finalStatus string, jobErr string) {
	t.publish(ctx, finalStatus, jobErr)

	counters := t.Snapshot()
	t.logger.WithFields(map[string]interface{}{
		"status":   finalStatus,
		"inserted": counters.Inserted,
		"updated":  counters.Updated,
		"deleted":  counters.Deleted,
		"kept":     counters.Kept,
		"skipped":  counters.Skipped,
	}).Infof("sync finished: %s entities processed", humanize.Comma(int64(counters.Total())))
}

func (t *Tracker) publish(ctx context.Context, status, jobErr string) {
	if t.publisher == nil {
		return
	}

	t.mu.Lock()
	counters := t.counters
	typeCounts := make(map[string]int, len(t.typeCounts))
	total := 0
	for name, count := range t.typeCounts {
		typeCounts[name] = count
		total += count
	}
	t.mu.Unlock()

	progress := pubsub.JobProgress{
		Inserted: counters.Inserted,
		Updated:  counters.Updated,
		Deleted:  counters.Deleted,
		Kept:     counters.Kept,
		Skipped:  counters.Skipped,
		Status:   status,
		Error:    jobErr,
	}
	if err := t.publisher.PublishProgress(ctx, t.jobID, progress); err != nil {
		t.logger.WithError(err).Warn("failed to publish job progress")
	}

	jobStatus := status
	if jobStatus == "" {
		jobStatus = "running"
	}
	state := pubsub.JobState{
		JobID:         t.jobID,
		SyncID:        t.syncID,
		EntityCounts:  typeCounts,
		TotalEntities: total,
		JobStatus:     jobStatus,
	}
	if err := t.publisher.PublishState(ctx, state); err != nil {
		t.logger.WithError(err).Warn("failed to publish job state")
	}
}
