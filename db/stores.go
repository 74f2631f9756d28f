package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/entity"
	"github.com/sanchitsharma77/airweave-sub002/ratelimit"
)

// EntityStore tracks one row per entity identity with its last-seen hash.
type EntityStore struct {
	db *gorm.DB
}

// NewEntityStore creates an entity store.
func NewEntityStore(gdb *gorm.DB) *EntityStore {
	return &EntityStore{db: gdb}
}

// GetForKeys loads the stored rows for a batch of identity keys.
func (s *EntityStore) GetForKeys(ctx context.Context, syncID string, keys []entity.Key) (map[entity.Key]*Entity, error) {
	if len(keys) == 0 {
		return map[entity.Key]*Entity{}, nil
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, key.SourceEntityID)
	}

	var rows []Entity
	err := s.db.WithContext(ctx).
		Where("sync_id = ? AND source_entity_id IN ?", syncID, ids).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load entity rows: %w", err)
	}

	result := make(map[entity.Key]*Entity, len(rows))
	for i := range rows {
		row := rows[i]
		result[entity.Key{SyncID: row.SyncID, SourceEntityID: row.SourceEntityID, TypeID: row.EntityTypeID}] = &row
	}
	return result, nil
}

// UpsertBatch inserts or updates rows for the given entities and hashes.
func (s *EntityStore) UpsertBatch(ctx context.Context, rows []Entity) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sync_id"}, {Name: "source_entity_id"}, {Name: "entity_type_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"hash", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to upsert entity rows: %w", err)
	}
	return nil
}

// DeleteByIDs removes rows by database id.
func (s *EntityStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&Entity{}).Error; err != nil {
		return fmt.Errorf("failed to delete entity rows: %w", err)
	}
	return nil
}

// ListBySyncID returns all rows for a sync, used by the orphan sweep.
func (s *EntityStore) ListBySyncID(ctx context.Context, syncID string) ([]Entity, error) {
	var rows []Entity
	if err := s.db.WithContext(ctx).Where("sync_id = ?", syncID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list entity rows: %w", err)
	}
	return rows, nil
}

// DeleteBySyncID removes every row of a sync.
func (s *EntityStore) DeleteBySyncID(ctx context.Context, syncID string) error {
	if err := s.db.WithContext(ctx).Where("sync_id = ?", syncID).Delete(&Entity{}).Error; err != nil {
		return fmt.Errorf("failed to delete entity rows for sync: %w", err)
	}
	return nil
}

// JobStore manages sync job records.
type JobStore struct {
	db *gorm.DB
}

// NewJobStore creates a job store.
func NewJobStore(gdb *gorm.DB) *JobStore {
	return &JobStore{db: gdb}
}

// Create inserts a pending job.
func (s *JobStore) Create(ctx context.Context, job *SyncJob) error {
	if job.Status == "" {
		job.Status = JobPending
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create sync job: %w", err)
	}
	return nil
}

// Get loads a job by id.
func (s *JobStore) Get(ctx context.Context, jobID string) (*SyncJob, error) {
	var job SyncJob
	err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewError(common.KindNotFound, "sync job %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sync job: %w", err)
	}
	return &job, nil
}

// MarkRunning transitions a job to running.
func (s *JobStore) MarkRunning(ctx context.Context, jobID string) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Model(&SyncJob{}).Where("id = ?", jobID).
		Updates(map[string]interface{}{"status": JobRunning, "started_at": now}).Error
	if err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	return nil
}

// Finish records a terminal state with counters and an optional error.
func (s *JobStore) Finish(ctx context.Context, jobID string, status SyncStatus, counters map[string]int, jobErr string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"completed_at": now,
		"error":        jobErr,
	}
	for column, value := range counters {
		updates[column] = value
	}
	err := s.db.WithContext(ctx).Model(&SyncJob{}).Where("id = ?", jobID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	return nil
}

// CursorStore persists the per-sync cursor.
type CursorStore struct {
	db *gorm.DB
}

// NewCursorStore creates a cursor store.
func NewCursorStore(gdb *gorm.DB) *CursorStore {
	return &CursorStore{db: gdb}
}

// Load returns the cursor data for a sync, or nil when none is stored.
func (s *CursorStore) Load(ctx context.Context, syncID string) ([]byte, error) {
	var cursor SyncCursor
	err := s.db.WithContext(ctx).First(&cursor, "sync_id = ?", syncID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cursor: %w", err)
	}
	return cursor.Data, nil
}

// Save upserts the cursor data for a sync.
func (s *CursorStore) Save(ctx context.Context, syncID string, data []byte) error {
	cursor := SyncCursor{SyncID: syncID, Data: data, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sync_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data_jsonb", "updated_at"}),
	}).Create(&cursor).Error
	if err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}

// Delete removes the cursor for a sync.
func (s *CursorStore) Delete(ctx context.Context, syncID string) error {
	if err := s.db.WithContext(ctx).Where("sync_id = ?", syncID).Delete(&SyncCursor{}).Error; err != nil {
		return fmt.Errorf("failed to delete cursor: %w", err)
	}
	return nil
}

// RateLimitStore loads and manages source rate limit rows. It implements
// ratelimit.ConfigStore.
type RateLimitStore struct {
	db *gorm.DB
}

// NewRateLimitStore creates a rate limit store.
func NewRateLimitStore(gdb *gorm.DB) *RateLimitStore {
	return &RateLimitStore{db: gdb}
}

// GetSourceRateLimit returns the limit row for one org and source, or nil
// when the source is unlimited for that org.
func (s *RateLimitStore) GetSourceRateLimit(ctx context.Context, organizationID, sourceShortName string) (*ratelimit.SourceLimitConfig, error) {
	var row SourceRateLimit
	err := s.db.WithContext(ctx).
		First(&row, "organization_id = ? AND source_short_name = ?", organizationID, sourceShortName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load source rate limit: %w", err)
	}
	return &ratelimit.SourceLimitConfig{
		Limit:         row.Limit,
		WindowSeconds: row.WindowSeconds,
		Scope:         ratelimit.Scope(row.Scope),
	}, nil
}

// Upsert creates or updates a limit row.
func (s *RateLimitStore) Upsert(ctx context.Context, row *SourceRateLimit) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "source_short_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"limit_value", "window_seconds", "scope", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert source rate limit: %w", err)
	}
	return nil
}

// UpsertSourceRateLimit implements ratelimit.ConfigWriter.
func (s *RateLimitStore) UpsertSourceRateLimit(ctx context.Context, organizationID, sourceShortName string, cfg ratelimit.SourceLimitConfig) error {
	return s.Upsert(ctx, &SourceRateLimit{
		OrganizationID:  organizationID,
		SourceShortName: sourceShortName,
		Limit:           cfg.Limit,
		WindowSeconds:   cfg.WindowSeconds,
		Scope:           string(cfg.Scope),
	})
}

// DeleteSourceRateLimit implements ratelimit.ConfigWriter.
func (s *RateLimitStore) DeleteSourceRateLimit(ctx context.Context, organizationID, sourceShortName string) error {
	return s.Delete(ctx, organizationID, sourceShortName)
}

// Delete removes a limit row.
func (s *RateLimitStore) Delete(ctx context.Context, organizationID, sourceShortName string) error {
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND source_short_name = ?", organizationID, sourceShortName).
		Delete(&SourceRateLimit{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete source rate limit: %w", err)
	}
	return nil
}

// SlotStore manages destination slots. Role transitions that must hold the
// single-ACTIVE invariant run inside transactions owned by the multiplexer.
type SlotStore struct {
	db *gorm.DB
}

// NewSlotStore creates a slot store.
func NewSlotStore(gdb *gorm.DB) *SlotStore {
	return &SlotStore{db: gdb}
}

// DB exposes the underlying handle for transactional multi-step operations.
func (s *SlotStore) DB() *gorm.DB { return s.db }

// ListBySync returns the slots of a sync ordered ACTIVE, SHADOW, DEPRECATED,
// then by creation time.
func (s *SlotStore) ListBySync(ctx context.Context, syncID string) ([]SyncConnection, error) {
	var slots []SyncConnection
	err := s.db.WithContext(ctx).
		Where("sync_id = ?", syncID).
		Order(`CASE role WHEN 'ACTIVE' THEN 0 WHEN 'SHADOW' THEN 1 ELSE 2 END, created_at`).
		Find(&slots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return slots, nil
}

// CreateSlot inserts a new destination slot.
func (s *SlotStore) CreateSlot(ctx context.Context, slot *SyncConnection) error {
	if err := s.db.WithContext(ctx).Create(slot).Error; err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

// UpdateRolesTx applies a set of role changes atomically. Used by the
// multiplexer's switch so the single-ACTIVE invariant holds at every commit
// point.
func (s *SlotStore) UpdateRolesTx(ctx context.Context, syncID string, roles map[string]SlotRole) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for slotID, role := range roles {
			result := tx.Model(&SyncConnection{}).
				Where("id = ? AND sync_id = ?", slotID, syncID).
				Update("role", role)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return common.NewError(common.KindNotFound, "slot %s for sync %s", slotID, syncID)
			}
		}

		var active int64
		if err := tx.Model(&SyncConnection{}).
			Where("sync_id = ? AND role = ?", syncID, RoleActive).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 1 {
			return common.NewError(common.KindConflict, "sync %s would have %d active slots", syncID, active)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update slot roles: %w", err)
	}
	return nil
}

// CollectionStore manages collections.
type CollectionStore struct {
	db *gorm.DB
}

// NewCollectionStore creates a collection store.
func NewCollectionStore(gdb *gorm.DB) *CollectionStore {
	return &CollectionStore{db: gdb}
}

// Create inserts a collection; the readable id must be unique.
func (s *CollectionStore) Create(ctx context.Context, col *Collection) error {
	err := s.db.WithContext(ctx).Create(col).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return common.NewError(common.KindConflict, "collection readable id %s already exists", col.ReadableID)
		}
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Get loads a collection by id.
func (s *CollectionStore) Get(ctx context.Context, id string) (*Collection, error) {
	var col Collection
	err := s.db.WithContext(ctx).First(&col, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewError(common.KindNotFound, "collection %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	return &col, nil
}
