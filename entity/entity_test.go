package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDescriptor() *Descriptor {
	return &Descriptor{
		TypeID: "notion_page",
		Kind:   KindChunk,
		Label:  "Notion Page",
		Fields: map[string]FieldFlags{
			"title":      {Embeddable: true, Hashable: true},
			"body":       {Embeddable: true, Hashable: true},
			"view_count": {Embeddable: false, Hashable: false},
			"author":     {Embeddable: true, Hashable: true},
		},
	}
}

func testEntity() *Entity {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return &Entity{
		SyncID:         "sync-1",
		SourceEntityID: "page-42",
		TypeID:         "notion_page",
		Kind:           KindChunk,
		Name:           "Quarterly Plan",
		Breadcrumbs: []Breadcrumb{
			{ID: "ws-1", Name: "Workspace", Type: "workspace"},
			{ID: "db-7", Name: "Docs", Type: "database"},
		},
		ModifiedAt: &now,
		Payload: map[string]interface{}{
			"title":      "Quarterly Plan",
			"body":       "Ship the sync engine.",
			"view_count": 131,
			"author":     "ada",
		},
		Chunk: &ChunkAttrs{TextualRepresentation: "Quarterly Plan\nShip the sync engine."},
	}
}

// TestContentHashStability tests that the hash survives a JSON round-trip
func TestContentHashStability(t *testing.T) {
	d := testDescriptor()
	e := testEntity()

	h1, err := ContentHash(e, d)
	require.NoError(t, err)

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	var roundtrip Entity
	require.NoError(t, json.Unmarshal(raw, &roundtrip))

	h2, err := ContentHash(&roundtrip, d)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

// TestContentHashNonHashableFields tests that non-hashable fields do not
// change the hash while hashable fields do
func TestContentHashNonHashableFields(t *testing.T) {
	d := testDescriptor()
	e := testEntity()

	base, err := ContentHash(e, d)
	require.NoError(t, err)

	e.Payload["view_count"] = 9000
	same, err := ContentHash(e, d)
	require.NoError(t, err)
	assert.Equal(t, base, same, "non-hashable field must not affect hash")

	e.Payload["body"] = "Ship the search pipeline."
	changed, err := ContentHash(e, d)
	require.NoError(t, err)
	assert.NotEqual(t, base, changed, "hashable field must change hash")
}

// TestContentHashNumericNormalization tests int vs float JSON equivalence
func TestContentHashNumericNormalization(t *testing.T) {
	d := &Descriptor{TypeID: "t", Kind: KindChunk, Fields: map[string]FieldFlags{
		"count": {Embeddable: true, Hashable: true},
	}}
	a := &Entity{SourceEntityID: "x", TypeID: "t", Kind: KindChunk, Payload: map[string]interface{}{"count": 3}}
	b := &Entity{SourceEntityID: "x", TypeID: "t", Kind: KindChunk, Payload: map[string]interface{}{"count": float64(3)}}

	ha, err := ContentHash(a, d)
	require.NoError(t, err)
	hb, err := ContentHash(b, d)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

// TestNewChunk tests derived chunk construction
func TestNewChunk(t *testing.T) {
	parent := testEntity()
	chunk := NewChunk(parent, 2, "piece two")

	assert.Equal(t, parent.SyncID, chunk.SyncID)
	assert.Equal(t, parent.SourceEntityID, chunk.SourceEntityID)
	assert.Equal(t, parent.TypeID, chunk.TypeID)
	assert.Equal(t, KindChunk, chunk.Kind)
	require.NotNil(t, chunk.Chunk.ChunkIndex)
	assert.Equal(t, 2, *chunk.Chunk.ChunkIndex)
	assert.Equal(t, "piece two", chunk.Chunk.TextualRepresentation)
	assert.Equal(t, parent.SourceEntityID, chunk.Chunk.ParentEntityID)
	assert.Equal(t, parent.Breadcrumbs, chunk.Breadcrumbs)
}

// TestIdentityKey tests the identity triple
func TestIdentityKey(t *testing.T) {
	e := testEntity()
	key := e.IdentityKey()
	assert.Equal(t, Key{SyncID: "sync-1", SourceEntityID: "page-42", TypeID: "notion_page"}, key)
}

// TestVariantPredicates tests IsDeletion and IsFile
func TestVariantPredicates(t *testing.T) {
	assert.False(t, testEntity().IsDeletion())
	assert.False(t, testEntity().IsFile())

	del := &Entity{Kind: KindDeletion, Deletion: &DeletionAttrs{DeletesKind: KindFile}}
	assert.True(t, del.IsDeletion())

	file := &Entity{Kind: KindFile, File: &FileAttrs{URL: "https://x/y.pdf"}}
	assert.True(t, file.IsFile())

	code := &Entity{Kind: KindCodeFile, Code: &CodeAttrs{Repo: "acme/api"}}
	assert.True(t, code.IsFile())
}

// TestRegistry tests registration and lookup
func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(testDescriptor()))

	d, ok := r.Lookup("notion_page")
	require.True(t, ok)
	assert.Equal(t, "Notion Page", d.Label)

	assert.Error(t, r.Register(testDescriptor()), "duplicate registration must fail")

	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"notion_page"}, r.TypeIDs())
}

// TestDescriptorFieldSets tests sorted embeddable/hashable field listing
func TestDescriptorFieldSets(t *testing.T) {
	d := testDescriptor()
	assert.Equal(t, []string{"author", "body", "title"}, d.EmbeddableFields())
	assert.Equal(t, []string{"author", "body", "title"}, d.HashableFields())
}
