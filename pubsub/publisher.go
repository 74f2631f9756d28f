// Package pubsub publishes live sync progress over Redis channels. Two
// channels exist per job: an aggregate stats channel consumed by the UI
// progress bar, and a per-entity-type state channel consumed by the detail
// view. Messages are JSON; the terminal message carries the final job status.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobProgress is the aggregate message published on sync_job/{job_id}.
type JobProgress struct {
	Inserted            int    `json:"inserted"`
	Updated             int    `json:"updated"`
	Deleted             int    `json:"deleted"`
	Kept                int    `json:"kept"`
	Skipped             int    `json:"skipped"`
	Status              string `json:"status,omitempty"`
	Error               string `json:"error,omitempty"`
	LastUpdateTimestamp string `json:"last_update_timestamp"`
}

// JobState is the per-entity-type message published on
// sync_job_state/{job_id}.
type JobState struct {
	JobID         string         `json:"job_id"`
	SyncID        string         `json:"sync_id"`
	EntityCounts  map[string]int `json:"entity_counts"`
	TotalEntities int            `json:"total_entities"`
	JobStatus     string         `json:"job_status"`
}

// Publisher publishes progress messages to Redis.
type Publisher struct {
	client redis.UniversalClient
}

// NewPublisher creates a progress publisher on the given Redis client.
func NewPublisher(client redis.UniversalClient) *Publisher {
	return &Publisher{client: client}
}

// JobChannel returns the aggregate stats channel for a job.
func JobChannel(jobID string) string {
	return fmt.Sprintf("sync_job/%s", jobID)
}

// JobStateChannel returns the per-type state channel for a job.
func JobStateChannel(jobID string) string {
	return fmt.Sprintf("sync_job_state/%s", jobID)
}

// PublishProgress publishes an aggregate snapshot.
func (p *Publisher) PublishProgress(ctx context.Context, jobID string, progress JobProgress) error {
	if progress.LastUpdateTimestamp == "" {
		progress.LastUpdateTimestamp = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal job progress: %w", err)
	}
	if err := p.client.Publish(ctx, JobChannel(jobID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish job progress: %w", err)
	}
	return nil
}

// PublishState publishes a per-entity-type snapshot.
func (p *Publisher) PublishState(ctx context.Context, state JobState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal job state: %w", err)
	}
	if err := p.client.Publish(ctx, JobStateChannel(state.JobID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish job state: %w", err)
	}
	return nil
}

// Subscribe returns a channel of raw messages published on the given Redis
// channel, and a function that closes the subscription.
func (p *Publisher) Subscribe(ctx context.Context, channel string) (<-chan *redis.Message, func() error) {
	sub := p.client.Subscribe(ctx, channel)
	return sub.Channel(), sub.Close
}
