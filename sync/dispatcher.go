package sync

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/sanchitsharma77/airweave-sub002/common"
)

// Dispatcher executes the handlers of one batch with the ordering guarantee
// that makes retries safe: all non-metadata handlers run concurrently with
// fail-fast joining, and the metadata handler runs only when every one of
// them succeeded. A failed batch therefore never commits metadata, and a
// retry re-resolves the same actions.
type Dispatcher struct {
	handlers []Handler
	metadata Handler
	logger   *common.ContextLogger
}

// NewDispatcher creates a dispatcher. metadata may be nil (replay syncs run
// without the metadata handler).
func NewDispatcher(handlers []Handler, metadata Handler, logger *common.ContextLogger) *Dispatcher {
	if logger == nil {
		logger = common.NewContextLogger(nil, map[string]interface{}{"component": "dispatcher"})
	}
	return &Dispatcher{handlers: handlers, metadata: metadata, logger: logger}
}

// Dispatch runs one batch through the handlers.
func (d *Dispatcher) Dispatch(ctx context.Context, batch *ActionBatch) error {
	if batch.Empty() {
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, handler := range d.handlers {
		handler := handler
		group.Go(func() error {
			if err := handler.HandleBatch(groupCtx, batch); err != nil {
				return common.WrapError(common.KindSyncFailure, err, "%s handler failed", handler.Name())
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	if d.metadata == nil {
		return nil
	}
	if err := d.metadata.HandleBatch(ctx, batch); err != nil {
		return common.WrapError(common.KindSyncFailure, err, "%s handler failed", d.metadata.Name())
	}
	return nil
}
