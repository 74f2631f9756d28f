package destination

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// MockDestination is an in-memory Destination for testing. It stores points
// keyed by (sync_id, source_entity_id, chunk_index) and records every call.
type MockDestination struct {
	mu sync.Mutex
	// Points holds the live documents.
	Points map[string]Point
	// Requirement is reported from ProcessingRequirement.
	Requirement ProcessingRequirement
	// KeywordIndex is reported from HasKeywordIndex.
	KeywordIndex bool
	// Err, when set, is returned from every mutating call.
	Err error
	// Call counters.
	InsertCalls int
	DeleteCalls int
	SearchCalls int
}

// NewMockDestination creates an empty mock with chunk processing.
func NewMockDestination() *MockDestination {
	return &MockDestination{
		Points:      make(map[string]Point),
		Requirement: ChunksAndEmbeddings,
	}
}

func mockKey(p Point) string {
	chunkIndex := -1
	if p.Entity.Chunk != nil && p.Entity.Chunk.ChunkIndex != nil {
		chunkIndex = *p.Entity.Chunk.ChunkIndex
	}
	return mockKeyParts(p.Entity.SyncID, p.Entity.SourceEntityID, chunkIndex)
}

func mockKeyParts(syncID, entityID string, chunkIndex int) string {
	return syncID + "|" + entityID + "|" + strconv.Itoa(chunkIndex)
}

// BulkInsert stores points
func (m *MockDestination) BulkInsert(_ context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	if m.Err != nil {
		return m.Err
	}
	for _, point := range points {
		m.Points[mockKey(point)] = point
	}
	return nil
}

// BulkDelete removes points by source entity id
func (m *MockDestination) BulkDelete(_ context.Context, entityIDs []string, syncID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.Err != nil {
		return m.Err
	}
	ids := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		ids[id] = true
	}
	for key, point := range m.Points {
		if point.Entity.SyncID == syncID && ids[point.Entity.SourceEntityID] {
			delete(m.Points, key)
		}
	}
	return nil
}

// BulkDeleteByParentIDs removes chunks by parent id
func (m *MockDestination) BulkDeleteByParentIDs(_ context.Context, parentIDs []string, syncID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.Err != nil {
		return m.Err
	}
	ids := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		ids[id] = true
	}
	for key, point := range m.Points {
		if point.Entity.SyncID != syncID {
			continue
		}
		parent := point.Entity.SourceEntityID
		if point.Entity.Chunk != nil && point.Entity.Chunk.ParentEntityID != "" {
			parent = point.Entity.Chunk.ParentEntityID
		}
		if ids[parent] {
			delete(m.Points, key)
		}
	}
	return nil
}

// DeleteBySyncID removes everything for a sync
func (m *MockDestination) DeleteBySyncID(_ context.Context, syncID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.Err != nil {
		return m.Err
	}
	for key, point := range m.Points {
		if point.Entity.SyncID == syncID {
			delete(m.Points, key)
		}
	}
	return nil
}

// DeleteByCollectionID clears the mock
func (m *MockDestination) DeleteByCollectionID(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.Err != nil {
		return m.Err
	}
	m.Points = make(map[string]Point)
	return nil
}

// Search returns stored points whose content contains the query, ordered by
// entity id, honoring limit and offset.
func (m *MockDestination) Search(_ context.Context, req SearchRequest) ([]SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchCalls++
	if m.Err != nil {
		return nil, m.Err
	}

	var results []SearchResult
	for _, point := range m.Points {
		content := ""
		if point.Entity.Chunk != nil {
			content = point.Entity.Chunk.TextualRepresentation
		}
		if req.Query != "" && !strings.Contains(strings.ToLower(content), strings.ToLower(req.Query)) {
			continue
		}
		results = append(results, SearchResult{
			EntityID: point.Entity.SourceEntityID,
			Score:    1,
			Payload: map[string]interface{}{
				"source_entity_id": point.Entity.SourceEntityID,
				"entity_type_id":   point.Entity.TypeID,
				"name":             point.Entity.Name,
				"content":          content,
			},
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].EntityID < results[j].EntityID })

	if req.Offset >= len(results) {
		return nil, nil
	}
	results = results[req.Offset:]
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return results, nil
}

// ProcessingRequirement reports the configured requirement
func (m *MockDestination) ProcessingRequirement() ProcessingRequirement { return m.Requirement }

// HasKeywordIndex reports the configured flag
func (m *MockDestination) HasKeywordIndex() bool { return m.KeywordIndex }

// ParentIDs returns the distinct parent entity ids currently stored.
func (m *MockDestination) ParentIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	for _, point := range m.Points {
		seen[point.Entity.SourceEntityID] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
