package sync

import (
	"context"
	"time"

	"github.com/sanchitsharma77/airweave-sub002/entity"
	"github.com/sanchitsharma77/airweave-sub002/source"
)

// Stream pulls entities from a source through a bounded queue. The queue is
// the pipeline's only backpressure device: when workers fall behind, the
// source goroutine suspends on send.
type Stream struct {
	entities chan *entity.Entity
	done     chan struct{}
	err      error
}

// NewStream starts pulling from src into a queue of the given capacity. The
// sync id is stamped onto every emitted entity.
func NewStream(ctx context.Context, src source.Source, syncID string, queueSize int) *Stream {
	if queueSize <= 0 {
		queueSize = 10000
	}
	s := &Stream{
		entities: make(chan *entity.Entity, queueSize),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.entities)
		defer close(s.done)

		out := make(chan *entity.Entity)
		errCh := make(chan error, 1)
		go func() {
			errCh <- src.GenerateEntities(ctx, out)
			close(out)
		}()

		for e := range out {
			e.SyncID = syncID
			select {
			case s.entities <- e:
			case <-ctx.Done():
				// Drain the generator so its goroutine can exit.
				for range out {
				}
				s.err = ctx.Err()
				<-errCh
				return
			}
		}
		s.err = <-errCh
	}()

	return s
}

// Batches groups streamed entities into micro-batches to amortize
// destination round-trips. A batch flushes when it reaches batchSize or when
// maxLatency elapses with items pending.
func (s *Stream) Batches(ctx context.Context, batchSize int, maxLatency time.Duration) <-chan []*entity.Entity {
	if batchSize <= 0 {
		batchSize = 64
	}
	if maxLatency <= 0 {
		maxLatency = 200 * time.Millisecond
	}

	batches := make(chan []*entity.Entity)
	go func() {
		defer close(batches)

		var pending []*entity.Entity
		timer := time.NewTimer(maxLatency)
		defer timer.Stop()

		flush := func() bool {
			if len(pending) == 0 {
				return true
			}
			batch := pending
			pending = nil
			select {
			case batches <- batch:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case e, ok := <-s.entities:
				if !ok {
					flush()
					return
				}
				pending = append(pending, e)
				if len(pending) >= batchSize {
					if !flush() {
						return
					}
					timer.Reset(maxLatency)
				}
			case <-timer.C:
				if !flush() {
					return
				}
				timer.Reset(maxLatency)
			case <-ctx.Done():
				return
			}
		}
	}()
	return batches
}

// Err returns the source error after the stream finished.
func (s *Stream) Err() error {
	<-s.done
	return s.err
}
