package sync

import (
	"context"
	"fmt"

	"github.com/sanchitsharma77/airweave-sub002/arf"
	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/destination"
)

// CursorDeleter removes a sync's persisted cursor.
type CursorDeleter interface {
	Delete(ctx context.Context, syncID string) error
}

// CleanupService removes a deleted sync's (or collection's) data everywhere
// it lives: vector destinations, the raw archive, the metadata rows, and the
// cursor. Destination failures are collected rather than aborting, so a dead
// destination cannot make a sync undeletable; the relational rows go last.
type CleanupService struct {
	store   MetadataStore
	cursors CursorDeleter
	archive *arf.Writer
	logger  *common.ContextLogger
}

// NewCleanupService creates a cleanup service.
func NewCleanupService(store MetadataStore, cursors CursorDeleter, archive *arf.Writer, logger *common.ContextLogger) *CleanupService {
	if logger == nil {
		logger = common.NewContextLogger(nil, map[string]interface{}{"component": "cleanup"})
	}
	return &CleanupService{store: store, cursors: cursors, archive: archive, logger: logger}
}

// EntityRowDeleter is the cleanup view of the entity table.
type EntityRowDeleter interface {
	DeleteBySyncID(ctx context.Context, syncID string) error
}

// DeleteSyncData removes everything a sync wrote.
func (s *CleanupService) DeleteSyncData(ctx context.Context, syncID string, destinations []destination.Destination) error {
	var firstErr error
	for _, dest := range destinations {
		if err := dest.DeleteBySyncID(ctx, syncID); err != nil {
			s.logger.WithField("sync_id", syncID).WithError(err).Error("failed to delete sync data from destination")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if s.archive != nil {
		if err := s.archive.DeleteSync(ctx, syncID); err != nil {
			s.logger.WithField("sync_id", syncID).WithError(err).Error("failed to delete sync archive")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if deleter, ok := s.store.(EntityRowDeleter); ok {
		if err := deleter.DeleteBySyncID(ctx, syncID); err != nil {
			return fmt.Errorf("failed to delete entity rows: %w", err)
		}
	}
	if s.cursors != nil {
		if err := s.cursors.Delete(ctx, syncID); err != nil {
			return err
		}
	}
	return firstErr
}

// DeleteCollectionData removes a whole collection from its destinations.
func (s *CleanupService) DeleteCollectionData(ctx context.Context, collectionID string, destinations []destination.Destination) error {
	var firstErr error
	for _, dest := range destinations {
		if err := dest.DeleteByCollectionID(ctx, collectionID); err != nil {
			s.logger.WithField("collection_id", collectionID).WithError(err).Error("failed to delete collection data from destination")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
