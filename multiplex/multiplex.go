// Package multiplex manages a sync's destination slots and their role
// transitions. Each slot is one (sync, connection) pair with a role: ACTIVE
// serves queries and receives writes, SHADOW receives writes only, and
// DEPRECATED is inert. The enforced invariant is that a sync never has more
// than one ACTIVE slot, during or after any operation.
//
// The operation set supports blue/green destination migration: fork a shadow
// slot for the new destination, backfill it by replaying the archive, then
// switch it to active and demote the old one.
package multiplex

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/db"
	syncpkg "github.com/sanchitsharma77/airweave-sub002/sync"
)

// SlotStore is the multiplexer's view of the slot table. db.SlotStore
// implements it.
type SlotStore interface {
	ListBySync(ctx context.Context, syncID string) ([]db.SyncConnection, error)
	CreateSlot(ctx context.Context, slot *db.SyncConnection) error
	UpdateRolesTx(ctx context.Context, syncID string, roles map[string]db.SlotRole) error
}

// JobScheduler hands a sync run to the (external) scheduling capability.
type JobScheduler interface {
	Schedule(ctx context.Context, syncID string, cfg syncpkg.Config) (jobID string, err error)
}

// Multiplexer implements the slot operations.
type Multiplexer struct {
	slots     SlotStore
	scheduler JobScheduler
	logger    *common.ContextLogger
}

// NewMultiplexer creates a multiplexer. scheduler may be nil when fork-time
// replay and resync scheduling are not needed.
func NewMultiplexer(slots SlotStore, scheduler JobScheduler, logger *common.ContextLogger) *Multiplexer {
	if logger == nil {
		logger = common.NewContextLogger(nil, map[string]interface{}{"component": "multiplexer"})
	}
	return &Multiplexer{slots: slots, scheduler: scheduler, logger: logger}
}

// List returns a sync's slots ordered ACTIVE, SHADOW, DEPRECATED, then by
// creation time.
func (m *Multiplexer) List(ctx context.Context, syncID string) ([]db.SyncConnection, error) {
	return m.slots.ListBySync(ctx, syncID)
}

// Fork adds a SHADOW slot for a destination connection. With replay set, a
// replay-from-archive job is scheduled to backfill the new destination.
func (m *Multiplexer) Fork(ctx context.Context, syncID, connectionID string, replay bool) (*db.SyncConnection, string, error) {
	existing, err := m.slots.ListBySync(ctx, syncID)
	if err != nil {
		return nil, "", err
	}
	for _, slot := range existing {
		if slot.ConnectionID == connectionID && slot.Role != db.RoleDeprecated {
			return nil, "", common.NewError(common.KindConflict,
				"connection %s already has a live slot on sync %s", connectionID, syncID)
		}
	}

	slot := &db.SyncConnection{
		ID:           uuid.NewString(),
		SyncID:       syncID,
		ConnectionID: connectionID,
		Role:         db.RoleShadow,
		CreatedAt:    time.Now(),
	}
	if err := m.slots.CreateSlot(ctx, slot); err != nil {
		return nil, "", err
	}
	m.logger.WithFields(map[string]interface{}{
		"sync_id": syncID, "slot_id": slot.ID, "connection_id": connectionID,
	}).Info("forked shadow slot")

	jobID := ""
	if replay {
		if m.scheduler == nil {
			return nil, "", common.NewError(common.KindValidation, "replay requested but no scheduler configured")
		}
		jobID, err = m.scheduler.Schedule(ctx, syncID, syncpkg.ReplayFromArchiveConfig())
		if err != nil {
			return nil, "", fmt.Errorf("failed to schedule replay job: %w", err)
		}
	}
	return slot, jobID, nil
}

// Switch promotes a slot to ACTIVE and demotes the current ACTIVE (if any)
// to DEPRECATED in a single transaction. Switching the already-active slot
// is a no-op.
func (m *Multiplexer) Switch(ctx context.Context, syncID, slotID string) error {
	slots, err := m.slots.ListBySync(ctx, syncID)
	if err != nil {
		return err
	}

	var target *db.SyncConnection
	var currentActive *db.SyncConnection
	for i := range slots {
		slot := &slots[i]
		if slot.ID == slotID {
			target = slot
		}
		if slot.Role == db.RoleActive {
			currentActive = slot
		}
	}
	if target == nil {
		return common.NewError(common.KindNotFound, "slot %s for sync %s", slotID, syncID)
	}
	if currentActive != nil && currentActive.ID == target.ID {
		return nil
	}

	roles := map[string]db.SlotRole{target.ID: db.RoleActive}
	if currentActive != nil {
		roles[currentActive.ID] = db.RoleDeprecated
	}
	if err := m.slots.UpdateRolesTx(ctx, syncID, roles); err != nil {
		return err
	}

	m.logger.WithFields(map[string]interface{}{
		"sync_id": syncID, "promoted": target.ID,
	}).Info("switched active slot")
	return nil
}

// ResyncFromSource schedules a full cursor-skipping sync to refresh the
// archive, typically ahead of a fork.
func (m *Multiplexer) ResyncFromSource(ctx context.Context, syncID string) (string, error) {
	if m.scheduler == nil {
		return "", common.NewError(common.KindValidation, "no scheduler configured")
	}
	cfg := syncpkg.NormalConfig()
	cfg.Cursor = syncpkg.CursorConfig{SkipLoad: true, SkipUpdates: true}
	cfg.Behavior.ForceFullSync = true
	return m.scheduler.Schedule(ctx, syncID, cfg)
}

// WritableSlots filters a sync's slots to those that receive writes (ACTIVE
// and SHADOW). The orchestrator must never write to DEPRECATED slots.
func WritableSlots(slots []db.SyncConnection) []db.SyncConnection {
	writable := make([]db.SyncConnection, 0, len(slots))
	for _, slot := range slots {
		if slot.Role == db.RoleActive || slot.Role == db.RoleShadow {
			writable = append(writable, slot)
		}
	}
	return writable
}

// ActiveSlot returns the sync's ACTIVE slot, or nil.
func ActiveSlot(slots []db.SyncConnection) *db.SyncConnection {
	for i := range slots {
		if slots[i].Role == db.RoleActive {
			return &slots[i]
		}
	}
	return nil
}
