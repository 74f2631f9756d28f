package db

import (
	"time"
)

// Entity is one tracked row per (sync_id, source_entity_id, entity_type_id)
// holding the last-seen content hash. The database id supports bulk deletes.
// Hash collisions (different content, same hash) are accepted as negligible.
type Entity struct {
	ID             string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SyncID         string    `gorm:"type:uuid;index:idx_entity_identity,unique,priority:1;index:idx_entity_sync"`
	SourceEntityID string    `gorm:"index:idx_entity_identity,unique,priority:2"`
	EntityTypeID   string    `gorm:"index:idx_entity_identity,unique,priority:3"`
	Hash           string    `gorm:"not null"`
	OrganizationID string    `gorm:"type:uuid;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SyncStatus enumerates sync job states.
type SyncStatus string

const (
	JobPending   SyncStatus = "pending"
	JobRunning   SyncStatus = "running"
	JobCompleted SyncStatus = "completed"
	JobFailed    SyncStatus = "failed"
	JobCancelled SyncStatus = "cancelled"
)

// Sync is the durable configuration binding a source connection to a
// collection and an ordered set of destination slots.
type Sync struct {
	ID                 string `gorm:"type:uuid;primaryKey"`
	Name               string `gorm:"not null"`
	OrganizationID     string `gorm:"type:uuid;index"`
	SourceConnectionID string `gorm:"type:uuid"`
	CollectionID       string `gorm:"type:uuid;index"`
	Config             []byte `gorm:"type:jsonb"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SyncJob is a single execution attempt of a sync.
type SyncJob struct {
	ID          string     `gorm:"type:uuid;primaryKey"`
	SyncID      string     `gorm:"type:uuid;index"`
	Status      SyncStatus `gorm:"not null;default:pending"`
	Error       string
	Inserted    int
	Updated     int
	Deleted     int
	Kept        int
	Skipped     int
	Config      []byte `gorm:"type:jsonb"`
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SlotRole enumerates destination slot roles. At most one ACTIVE slot exists
// per sync at any time; ACTIVE and SHADOW receive writes, ACTIVE serves
// queries, DEPRECATED is inert.
type SlotRole string

const (
	RoleActive     SlotRole = "ACTIVE"
	RoleShadow     SlotRole = "SHADOW"
	RoleDeprecated SlotRole = "DEPRECATED"
)

// SyncConnection is one destination slot of a sync.
type SyncConnection struct {
	ID           string   `gorm:"type:uuid;primaryKey"`
	SyncID       string   `gorm:"type:uuid;index:idx_slot_sync"`
	ConnectionID string   `gorm:"type:uuid"`
	Role         SlotRole `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SyncCursor is the per-sync opaque cursor state used for incremental pulls.
type SyncCursor struct {
	SyncID    string         `gorm:"type:uuid;primaryKey"`
	Data      []byte         `gorm:"column:data_jsonb;type:jsonb"`
	UpdatedAt time.Time
}

// SourceRateLimit is a per-organization, per-source limit row.
type SourceRateLimit struct {
	ID              string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrganizationID  string `gorm:"type:uuid;index:idx_srl,unique,priority:1"`
	SourceShortName string `gorm:"index:idx_srl,unique,priority:2"`
	Limit           int    `gorm:"column:limit_value;not null"`
	WindowSeconds   int    `gorm:"not null"`
	Scope           string `gorm:"not null;default:org"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Collection is a logical index. Vector size and embedding model are chosen
// at creation and immutable.
type Collection struct {
	ID                 string `gorm:"type:uuid;primaryKey"`
	ReadableID         string `gorm:"uniqueIndex"`
	Name               string `gorm:"not null"`
	OrganizationID     string `gorm:"type:uuid;index"`
	VectorSize         int    `gorm:"not null"`
	EmbeddingModelName string `gorm:"not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Connection is a stored credentialed link to a source or destination.
type Connection struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	Name           string `gorm:"not null"`
	ShortName      string `gorm:"index"`
	OrganizationID string `gorm:"type:uuid;index"`
	Kind           string `gorm:"not null"` // "source" or "destination"
	Config         []byte `gorm:"type:jsonb"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
