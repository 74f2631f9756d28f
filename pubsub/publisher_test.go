package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPublishProgress tests the aggregate channel message shape
func TestPublishProgress(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	publisher := NewPublisher(client)
	ctx := context.Background()

	messages, closeSub := publisher.Subscribe(ctx, JobChannel("job-1"))
	defer closeSub()

	require.NoError(t, publisher.PublishProgress(ctx, "job-1", JobProgress{
		Inserted: 3, Kept: 1, Status: "completed",
	}))

	select {
	case msg := <-messages:
		var progress JobProgress
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &progress))
		assert.Equal(t, 3, progress.Inserted)
		assert.Equal(t, 1, progress.Kept)
		assert.Equal(t, "completed", progress.Status)
		assert.NotEmpty(t, progress.LastUpdateTimestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for progress message")
	}
}

// TestPublishState tests the per-type channel message shape
func TestPublishState(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	publisher := NewPublisher(client)
	ctx := context.Background()

	messages, closeSub := publisher.Subscribe(ctx, JobStateChannel("job-2"))
	defer closeSub()

	require.NoError(t, publisher.PublishState(ctx, JobState{
		JobID:         "job-2",
		SyncID:        "sync-9",
		EntityCounts:  map[string]int{"notion_page": 12, "notion_file": 2},
		TotalEntities: 14,
		JobStatus:     "running",
	}))

	select {
	case msg := <-messages:
		var state JobState
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &state))
		assert.Equal(t, "sync-9", state.SyncID)
		assert.Equal(t, 14, state.TotalEntities)
		assert.Equal(t, 12, state.EntityCounts["notion_page"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state message")
	}
}

// TestChannelNames tests the channel naming convention
func TestChannelNames(t *testing.T) {
	assert.Equal(t, "sync_job/abc", JobChannel("abc"))
	assert.Equal(t, "sync_job_state/abc", JobStateChannel("abc"))
}
