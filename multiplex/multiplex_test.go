package multiplex

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/db"
	syncpkg "github.com/sanchitsharma77/airweave-sub002/sync"
)

// fakeSlotStore is an in-memory SlotStore that enforces the transactional
// single-ACTIVE check like the real store.
type fakeSlotStore struct {
	mu    sync.Mutex
	slots map[string]*db.SyncConnection
}

func newFakeSlotStore() *fakeSlotStore {
	return &fakeSlotStore{slots: make(map[string]*db.SyncConnection)}
}

func (f *fakeSlotStore) ListBySync(_ context.Context, syncID string) ([]db.SyncConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.SyncConnection
	for _, slot := range f.slots {
		if slot.SyncID == syncID {
			out = append(out, *slot)
		}
	}
	rank := map[db.SlotRole]int{db.RoleActive: 0, db.RoleShadow: 1, db.RoleDeprecated: 2}
	sort.Slice(out, func(i, j int) bool {
		if rank[out[i].Role] != rank[out[j].Role] {
			return rank[out[i].Role] < rank[out[j].Role]
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeSlotStore) CreateSlot(_ context.Context, slot *db.SyncConnection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *slot
	f.slots[slot.ID] = &stored
	return nil
}

func (f *fakeSlotStore) UpdateRolesTx(_ context.Context, syncID string, roles map[string]db.SlotRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Apply on a copy first, commit only if the invariant holds.
	staged := make(map[string]db.SlotRole)
	for id, slot := range f.slots {
		staged[id] = slot.Role
	}
	for slotID, role := range roles {
		slot, ok := f.slots[slotID]
		if !ok || slot.SyncID != syncID {
			return common.NewError(common.KindNotFound, "slot %s", slotID)
		}
		staged[slotID] = role
	}
	active := 0
	for id, role := range staged {
		if f.slots[id].SyncID == syncID && role == db.RoleActive {
			active++
		}
	}
	if active > 1 {
		return common.NewError(common.KindConflict, "multiple active slots")
	}
	for id, role := range staged {
		f.slots[id].Role = role
	}
	return nil
}

func (f *fakeSlotStore) activeCount(syncID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, slot := range f.slots {
		if slot.SyncID == syncID && slot.Role == db.RoleActive {
			count++
		}
	}
	return count
}

type fakeScheduler struct {
	scheduled []syncpkg.Config
}

func (f *fakeScheduler) Schedule(_ context.Context, _ string, cfg syncpkg.Config) (string, error) {
	f.scheduled = append(f.scheduled, cfg)
	return "job-scheduled", nil
}

func seedSlot(store *fakeSlotStore, id, syncID string, role db.SlotRole, age time.Duration) {
	store.slots[id] = &db.SyncConnection{
		ID:           id,
		SyncID:       syncID,
		ConnectionID: "conn-" + id,
		Role:         role,
		CreatedAt:    time.Now().Add(-age),
	}
}

// TestListOrdering tests ACTIVE, SHADOW, DEPRECATED then created_at ordering
func TestListOrdering(t *testing.T) {
	store := newFakeSlotStore()
	seedSlot(store, "dep", "s", db.RoleDeprecated, 3*time.Hour)
	seedSlot(store, "shadow-old", "s", db.RoleShadow, 2*time.Hour)
	seedSlot(store, "shadow-new", "s", db.RoleShadow, time.Hour)
	seedSlot(store, "active", "s", db.RoleActive, 4*time.Hour)

	m := NewMultiplexer(store, nil, nil)
	slots, err := m.List(context.Background(), "s")
	require.NoError(t, err)

	ids := make([]string, 0, len(slots))
	for _, slot := range slots {
		ids = append(ids, slot.ID)
	}
	assert.Equal(t, []string{"active", "shadow-old", "shadow-new", "dep"}, ids)
}

// TestForkCreatesShadow tests fork with and without replay scheduling
func TestForkCreatesShadow(t *testing.T) {
	store := newFakeSlotStore()
	seedSlot(store, "active", "s", db.RoleActive, time.Hour)
	scheduler := &fakeScheduler{}
	m := NewMultiplexer(store, scheduler, nil)
	ctx := context.Background()

	slot, jobID, err := m.Fork(ctx, "s", "conn-new", false)
	require.NoError(t, err)
	assert.Equal(t, db.RoleShadow, slot.Role)
	assert.Empty(t, jobID)
	assert.Empty(t, scheduler.scheduled)

	// Forking the same live connection again conflicts.
	_, _, err = m.Fork(ctx, "s", "conn-new", false)
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindConflict))

	// Fork with replay schedules a replay-from-archive job.
	_, jobID, err = m.Fork(ctx, "s", "conn-other", true)
	require.NoError(t, err)
	assert.Equal(t, "job-scheduled", jobID)
	require.Len(t, scheduler.scheduled, 1)
	assert.True(t, scheduler.scheduled[0].Behavior.ReplayFromARF)
}

// TestSwitch tests scenario E5: promote shadow, demote active
func TestSwitch(t *testing.T) {
	store := newFakeSlotStore()
	seedSlot(store, "A", "s", db.RoleActive, 2*time.Hour)
	seedSlot(store, "B", "s", db.RoleShadow, time.Hour)
	m := NewMultiplexer(store, nil, nil)
	ctx := context.Background()

	require.NoError(t, m.Switch(ctx, "s", "B"))

	assert.Equal(t, db.RoleActive, store.slots["B"].Role)
	assert.Equal(t, db.RoleDeprecated, store.slots["A"].Role)
	assert.Equal(t, 1, store.activeCount("s"))

	// Search-side and write-side views follow the roles.
	slots, err := m.List(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "B", ActiveSlot(slots).ID)
	writable := WritableSlots(slots)
	require.Len(t, writable, 1)
	assert.Equal(t, "B", writable[0].ID)
}

// TestSwitchWithoutActive tests promoting when no ACTIVE exists
func TestSwitchWithoutActive(t *testing.T) {
	store := newFakeSlotStore()
	seedSlot(store, "B", "s", db.RoleShadow, time.Hour)
	m := NewMultiplexer(store, nil, nil)

	require.NoError(t, m.Switch(context.Background(), "s", "B"))
	assert.Equal(t, db.RoleActive, store.slots["B"].Role)
	assert.Equal(t, 1, store.activeCount("s"))
}

// TestSwitchNoop tests switching the already-active slot
func TestSwitchNoop(t *testing.T) {
	store := newFakeSlotStore()
	seedSlot(store, "A", "s", db.RoleActive, time.Hour)
	m := NewMultiplexer(store, nil, nil)

	require.NoError(t, m.Switch(context.Background(), "s", "A"))
	assert.Equal(t, db.RoleActive, store.slots["A"].Role)
}

// TestSwitchMissingSlot tests the not-found path
func TestSwitchMissingSlot(t *testing.T) {
	store := newFakeSlotStore()
	seedSlot(store, "A", "s", db.RoleActive, time.Hour)
	m := NewMultiplexer(store, nil, nil)

	err := m.Switch(context.Background(), "s", "ghost")
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindNotFound))
}

// TestResyncFromSource tests the archive-refresh scheduling
func TestResyncFromSource(t *testing.T) {
	store := newFakeSlotStore()
	scheduler := &fakeScheduler{}
	m := NewMultiplexer(store, scheduler, nil)

	jobID, err := m.ResyncFromSource(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, "job-scheduled", jobID)
	require.Len(t, scheduler.scheduled, 1)
	cfg := scheduler.scheduled[0]
	assert.True(t, cfg.Cursor.SkipLoad)
	assert.True(t, cfg.Behavior.ForceFullSync)
}
