// Package worker provides the bounded worker pools of the sync pipeline:
// a submit-driven pool whose Submit blocks when all workers are busy
// (backpressure is the goal, so submission has no timeout), and a shared
// capacity gate for CPU-bound work so cooperative tasks never saturate the
// process.
package worker

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool runs submitted tasks on a fixed number of slots. Submit blocks until a
// slot frees up or ctx is cancelled. The first task error is retained and
// returned from Wait. Fail-fast callers cancel the shared context themselves;
// a plain cancellation error never displaces the root-cause error of the task
// that triggered the cancel.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
	mu  sync.Mutex
	err error
}

// NewPool creates a pool with the given number of slots.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Submit schedules one task, blocking while the pool is at capacity.
func (p *Pool) Submit(ctx context.Context, task func(context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		if err := task(ctx); err != nil {
			p.record(err)
		}
	}()
	return nil
}

func (p *Pool) record(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil || (isCancel(p.err) && !isCancel(err)) {
		p.err = err
	}
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Wait blocks until every submitted task finished and returns the retained
// task error.
func (p *Pool) Wait() error {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// CPUGate caps concurrently running CPU-bound work (hashing, chunking, file
// I/O) across the whole process.
type CPUGate struct {
	sem *semaphore.Weighted
}

// NewCPUGate creates a gate with the given capacity.
func NewCPUGate(size int) *CPUGate {
	if size <= 0 {
		size = 1
	}
	return &CPUGate{sem: semaphore.NewWeighted(int64(size))}
}

// Do runs fn while holding one capacity unit.
func (g *CPUGate) Do(ctx context.Context, fn func() error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)
	return fn()
}
