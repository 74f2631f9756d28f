// Package entity defines the uniform record model produced by source adapters
// and consumed by the sync pipeline. An entity is a tagged record: one base
// struct, one kind discriminator, and per-variant attribute blocks. Entities
// reference their parents by id strings, never by object references, which
// keeps archive and replay trivially safe.
//
// Identity is the triple (sync_id, source_entity_id, entity_type_id), globally
// unique per sync. The source_entity_id is opaque to the platform.
package entity

import (
	"time"
)

// Kind discriminates the entity variants.
type Kind string

const (
	KindChunk    Kind = "chunk"
	KindFile     Kind = "file"
	KindEmail    Kind = "email"
	KindCodeFile Kind = "code_file"
	KindDeletion Kind = "deletion"
)

// Breadcrumb is one step of the ordered ancestor path attached to an entity
// for navigation and search display.
type Breadcrumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// ChunkAttrs carries the attributes of a chunk entity. ChunkIndex is set only
// on chunks derived by the splitter; a source-emitted chunk entity has none.
type ChunkAttrs struct {
	TextualRepresentation string `json:"textual_representation"`
	ChunkIndex            *int   `json:"chunk_index,omitempty"`
	ParentEntityID        string `json:"parent_entity_id,omitempty"`
}

// FileAttrs carries the attributes of a file entity. LocalPath is set only
// after a successful download; downstream consumers must treat a file entity
// without LocalPath as a programming error and fail the sync.
type FileAttrs struct {
	URL       string `json:"url"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mime_type"`
	LocalPath string `json:"local_path,omitempty"`
}

// EmailAttrs carries the canonical headers of an email entity.
type EmailAttrs struct {
	MessageID string     `json:"message_id"`
	From      string     `json:"from"`
	To        []string   `json:"to"`
	Cc        []string   `json:"cc,omitempty"`
	Subject   string     `json:"subject"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// CodeAttrs carries the repository coordinates of a code file entity.
type CodeAttrs struct {
	Repo      string `json:"repo"`
	Path      string `json:"path"`
	CommitSHA string `json:"commit_sha"`
}

// DeletionAttrs marks a deletion signal. It carries the entity kind it
// deletes; removal covers the parent entity and all derived chunks.
type DeletionAttrs struct {
	DeletesKind Kind `json:"deletes_kind"`
}

// Entity is the polymorphic record produced by a source. Exactly one of the
// variant attribute blocks matching Kind is non-nil.
type Entity struct {
	SyncID         string `json:"sync_id"`
	SourceEntityID string `json:"source_entity_id"`
	TypeID         string `json:"entity_type_id"`
	Kind           Kind   `json:"kind"`

	Name        string       `json:"name"`
	Breadcrumbs []Breadcrumb `json:"breadcrumbs,omitempty"`
	CreatedAt   *time.Time   `json:"created_at,omitempty"`
	ModifiedAt  *time.Time   `json:"modified_at,omitempty"`

	// Payload holds the per-type fields; the type's Descriptor declares which
	// of them are embeddable and which contribute to the content hash.
	Payload map[string]interface{} `json:"payload,omitempty"`

	Chunk    *ChunkAttrs    `json:"chunk,omitempty"`
	File     *FileAttrs     `json:"file,omitempty"`
	Email    *EmailAttrs    `json:"email,omitempty"`
	Code     *CodeAttrs     `json:"code,omitempty"`
	Deletion *DeletionAttrs `json:"deletion,omitempty"`
}

// IsDeletion reports whether the entity is a deletion signal.
func (e *Entity) IsDeletion() bool {
	return e.Kind == KindDeletion
}

// IsFile reports whether the entity carries file attributes (file or code
// file variants).
func (e *Entity) IsFile() bool {
	return e.Kind == KindFile || e.Kind == KindCodeFile
}

// Key is the identity triple used by the metadata store and the resolver.
type Key struct {
	SyncID         string
	SourceEntityID string
	TypeID         string
}

// IdentityKey returns the entity's identity triple.
func (e *Entity) IdentityKey() Key {
	return Key{SyncID: e.SyncID, SourceEntityID: e.SourceEntityID, TypeID: e.TypeID}
}

// NewChunk builds a derived chunk for a parent entity. Derived chunks inherit
// the parent's identity fields and breadcrumbs; their source_entity_id is the
// parent's so destination-side deletes by parent id reach them.
func NewChunk(parent *Entity, index int, text string) *Entity {
	idx := index
	return &Entity{
		SyncID:         parent.SyncID,
		SourceEntityID: parent.SourceEntityID,
		TypeID:         parent.TypeID,
		Kind:           KindChunk,
		Name:           parent.Name,
		Breadcrumbs:    parent.Breadcrumbs,
		CreatedAt:      parent.CreatedAt,
		ModifiedAt:     parent.ModifiedAt,
		Payload:        parent.Payload,
		Chunk: &ChunkAttrs{
			TextualRepresentation: text,
			ChunkIndex:            &idx,
			ParentEntityID:        parent.SourceEntityID,
		},
	}
}
