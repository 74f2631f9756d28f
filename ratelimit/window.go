// Package ratelimit implements the three sliding-window gates of the
// platform: the client gate (per organization plan), the source gate (per
// organization and source, org- or connection-scoped), and the per-pod gate
// for shared third-party AI APIs.
//
// The client and source gates share one algorithm over a Redis sorted set;
// the pod gate keeps the same sliding window in process memory. In one Redis
// transaction pipeline the window trims entries older than the window, adds
// the new entry, refreshes the TTL and counts; a call that finds the limit
// already reached removes its entry again and is rejected with a retry-after
// derived from the oldest surviving entry. Because the add and the count run
// in the same transaction, concurrent callers cannot both slip past the limit.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Result reports the outcome of a window check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// SlidingWindow evaluates sliding-window limits over Redis sorted sets.
type SlidingWindow struct {
	client redis.UniversalClient
}

// NewSlidingWindow creates a window evaluator on the given Redis client.
func NewSlidingWindow(client redis.UniversalClient) *SlidingWindow {
	return &SlidingWindow{client: client}
}

// Allow checks and, when under the limit, records one operation against key.
func (w *SlidingWindow) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	cutoff := now.Add(-window)

	// Members must be unique per operation; the score alone collides when two
	// calls land in the same clock tick.
	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()

	var card *redis.IntCmd
	var oldest *redis.ZSliceCmd
	_, err := w.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "0", formatScore(cutoff))
		pipe.ZAdd(ctx, key, redis.Z{Score: scoreOf(now), Member: member})
		pipe.Expire(ctx, key, 2*window)
		card = pipe.ZCard(ctx, key)
		oldest = pipe.ZRangeWithScores(ctx, key, 0, 0)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate window for %s: %w", key, err)
	}

	// The cardinality includes this call's own entry.
	count := int(card.Val()) - 1
	if count >= limit {
		if err := w.client.ZRem(ctx, key, member).Err(); err != nil {
			return nil, fmt.Errorf("failed to release rejected operation for %s: %w", key, err)
		}
		retryAfter := window
		if entries := oldest.Val(); len(entries) > 0 {
			oldestAt := time.Unix(0, int64(entries[0].Score*float64(time.Second)))
			retryAfter = oldestAt.Add(window).Sub(now)
			if retryAfter < 0 {
				retryAfter = 0
			}
		}
		return &Result{Allowed: false, Limit: limit, Remaining: 0, RetryAfter: retryAfter}, nil
	}

	return &Result{Allowed: true, Limit: limit, Remaining: limit - count - 1}, nil
}

func scoreOf(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func formatScore(t time.Time) string {
	return strconv.FormatFloat(scoreOf(t), 'f', 9, 64)
}
