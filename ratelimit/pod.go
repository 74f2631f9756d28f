package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sanchitsharma77/airweave-sub002/common"
)

// PodLimiter is an in-process sliding window for calls to shared third-party
// AI and text-processing APIs. One organization's sync can otherwise
// monopolize a pod's share of a shared quota, so the gate lives at the
// process level rather than in Redis.
//
// Unlike the Redis gates, Acquire waits instead of failing: a sync should
// pace itself against a shared API, not die. The wait is bounded by the
// acquire timeout, which is hour-scale by design.
type PodLimiter struct {
	mu             sync.Mutex
	name           string
	limit          int
	window         time.Duration
	acquireTimeout time.Duration
	timestamps     []time.Time
}

// NewPodLimiter creates a per-process limiter. Most callers want
// ForAPI instead, which maintains the process singletons.
func NewPodLimiter(name string, limit int, window, acquireTimeout time.Duration) *PodLimiter {
	return &PodLimiter{
		name:           name,
		limit:          limit,
		window:         window,
		acquireTimeout: acquireTimeout,
	}
}

var (
	podLimitersMu sync.Mutex
	podLimiters   = make(map[string]*PodLimiter)
)

// ForAPI returns the process-wide limiter for the named API, creating it on
// first use. Later calls ignore the limit parameters; the first registration
// wins.
func ForAPI(name string, limit int, window, acquireTimeout time.Duration) *PodLimiter {
	podLimitersMu.Lock()
	defer podLimitersMu.Unlock()
	if limiter, ok := podLimiters[name]; ok {
		return limiter
	}
	limiter := NewPodLimiter(name, limit, window, acquireTimeout)
	podLimiters[name] = limiter
	return limiter
}

// Acquire blocks until a slot is available in the window, the acquire timeout
// expires, or ctx is cancelled. Timeout surfaces as a rate-limit error;
// cancellation surfaces as Cancelled.
func (l *PodLimiter) Acquire(ctx context.Context) error {
	deadline := time.Now().Add(l.acquireTimeout)
	for {
		wait, ok := l.tryAcquire()
		if ok {
			return nil
		}
		if time.Now().Add(wait).After(deadline) {
			return common.NewError(common.KindRateLimitExceeded,
				"timed out acquiring %s pod limiter after %s", l.name, l.acquireTimeout)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return common.WrapError(common.KindCancelled, ctx.Err(), "acquire of %s pod limiter cancelled", l.name)
		case <-timer.C:
		}
	}
}

// tryAcquire admits immediately when under the limit, otherwise returns how
// long until the oldest in-window entry expires.
func (l *PodLimiter) tryAcquire() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)
	kept := l.timestamps[:0]
	for _, ts := range l.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.timestamps = kept

	if len(l.timestamps) < l.limit {
		l.timestamps = append(l.timestamps, now)
		return 0, true
	}

	wait := l.timestamps[0].Add(l.window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

// InFlight returns the number of operations currently counted in the window.
func (l *PodLimiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	count := 0
	for _, ts := range l.timestamps {
		if ts.After(now.Add(-l.window)) {
			count++
		}
	}
	return count
}
