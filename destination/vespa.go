package destination

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/entity"
)

// Vespa document schema constants.
const (
	vespaNamespace = "airweave"
	vespaDocType   = "chunk"
)

// VespaConfig configures the Vespa destination.
type VespaConfig struct {
	// Endpoint is the Vespa container endpoint, e.g. "http://vespa:8080".
	Endpoint string
	// Timeout applies per request. Zero means 30s.
	Timeout time.Duration
}

// Vespa is the search destination over Vespa's document/v1 and search APIs.
// It accepts the shared Qdrant-shaped filter model and translates it to YQL
// internally. Vespa ranks with its own keyword index, so it consumes raw
// chunk text and dense vectors but no client-side sparse vectors.
type Vespa struct {
	endpoint     string
	client       *http.Client
	collectionID string
	vectorSize   int
}

// NewVespa creates a Vespa destination and verifies the endpoint.
func NewVespa(ctx context.Context, cfg VespaConfig, collectionID string, vectorSize int) (*Vespa, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	d := &Vespa{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		client:       &http.Client{Timeout: cfg.Timeout},
		collectionID: collectionID,
		vectorSize:   vectorSize,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"/state/v1/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build vespa health request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach vespa at %s: %w", cfg.Endpoint, err)
	}
	resp.Body.Close()
	return d, nil
}

// ProcessingRequirement reports that Vespa needs chunks with embeddings.
func (d *Vespa) ProcessingRequirement() ProcessingRequirement { return ChunksAndEmbeddings }

// HasKeywordIndex reports that Vespa ranks with its own keyword index, so
// the pipeline does not need to produce sparse vectors for it.
func (d *Vespa) HasKeywordIndex() bool { return false }

func (d *Vespa) docURL(docID string) string {
	return fmt.Sprintf("%s/document/v1/%s/%s/docid/%s",
		d.endpoint, vespaNamespace, vespaDocType, url.PathEscape(docID))
}

// BulkInsert writes a batch of chunk documents.
func (d *Vespa) BulkInsert(ctx context.Context, points []Point) error {
	for _, point := range points {
		e := point.Entity
		if point.Embedding == nil || len(point.Embedding.Dense) == 0 {
			return common.NewError(common.KindSyncFailure,
				"entity %s reached vespa without an embedding", e.SourceEntityID)
		}

		fields := map[string]interface{}{
			"collection_id":    d.collectionID,
			"sync_id":          e.SyncID,
			"source_entity_id": e.SourceEntityID,
			"parent_entity_id": vespaParentID(e),
			"entity_type_id":   e.TypeID,
			"name":             e.Name,
			"embedding":        map[string]interface{}{"values": point.Embedding.Dense},
		}
		if e.Chunk != nil {
			fields["content"] = e.Chunk.TextualRepresentation
			if e.Chunk.ChunkIndex != nil {
				fields["chunk_index"] = *e.Chunk.ChunkIndex
			}
		}
		if e.ModifiedAt != nil {
			fields["modified_at"] = e.ModifiedAt.UTC().Format(time.RFC3339)
		}

		body, err := json.Marshal(map[string]interface{}{"fields": fields})
		if err != nil {
			return fmt.Errorf("failed to encode vespa document: %w", err)
		}

		docID := vespaDocID(e)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.docURL(docID), bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build vespa put: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if err := d.execute(req); err != nil {
			return err
		}
	}
	return nil
}

func vespaParentID(e *entity.Entity) string {
	if e.Chunk != nil && e.Chunk.ParentEntityID != "" {
		return e.Chunk.ParentEntityID
	}
	return e.SourceEntityID
}

func vespaDocID(e *entity.Entity) string {
	chunkIndex := -1
	if e.Chunk != nil && e.Chunk.ChunkIndex != nil {
		chunkIndex = *e.Chunk.ChunkIndex
	}
	return fmt.Sprintf("%s--%s--%d", e.SyncID, e.SourceEntityID, chunkIndex)
}

// deleteBySelection issues a selection-scoped delete over document/v1.
func (d *Vespa) deleteBySelection(ctx context.Context, selection string) error {
	endpoint := fmt.Sprintf("%s/document/v1/%s/%s/docid?selection=%s&cluster=default",
		d.endpoint, vespaNamespace, vespaDocType, url.QueryEscape(selection))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build vespa delete: %w", err)
	}
	return d.execute(req)
}

// BulkDelete removes documents by source entity id within a sync.
func (d *Vespa) BulkDelete(ctx context.Context, entityIDs []string, syncID string) error {
	return d.deleteBySelection(ctx, fmt.Sprintf("%s.sync_id=='%s' and %s.source_entity_id in (%s)",
		vespaDocType, escapeSelection(syncID), vespaDocType, selectionList(entityIDs)))
}

// BulkDeleteByParentIDs removes chunks by parent id within a sync.
func (d *Vespa) BulkDeleteByParentIDs(ctx context.Context, parentIDs []string, syncID string) error {
	return d.deleteBySelection(ctx, fmt.Sprintf("%s.sync_id=='%s' and %s.parent_entity_id in (%s)",
		vespaDocType, escapeSelection(syncID), vespaDocType, selectionList(parentIDs)))
}

// DeleteBySyncID removes everything written by a sync.
func (d *Vespa) DeleteBySyncID(ctx context.Context, syncID string) error {
	return d.deleteBySelection(ctx, fmt.Sprintf("%s.sync_id=='%s'", vespaDocType, escapeSelection(syncID)))
}

// DeleteByCollectionID removes everything in a logical collection.
func (d *Vespa) DeleteByCollectionID(ctx context.Context, collectionID string) error {
	return d.deleteBySelection(ctx, fmt.Sprintf("%s.collection_id=='%s'", vespaDocType, escapeSelection(collectionID)))
}

func selectionList(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, "'"+escapeSelection(value)+"'")
	}
	return strings.Join(quoted, ",")
}

func escapeSelection(value string) string {
	return strings.ReplaceAll(value, "'", `\'`)
}

// Search translates the request to YQL and runs it against /search/.
func (d *Vespa) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	yql, err := ToYQL(req.Filter, d.collectionID, req.Strategy)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"yql":    yql,
		"hits":   req.Limit,
		"offset": req.Offset,
	}
	switch req.Strategy {
	case StrategyKeyword:
		body["query"] = req.Query
		body["ranking"] = "keyword"
	case StrategyHybrid:
		body["query"] = req.Query
		body["ranking"] = "hybrid"
		body["input.query(q)"] = map[string]interface{}{"values": req.Dense}
	default:
		body["ranking"] = "semantic"
		body["input.query(q)"] = map[string]interface{}{"values": req.Dense}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode vespa query: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/search/", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to build vespa query: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to query vespa: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("vespa query returned %d: %s", resp.StatusCode, payload)
	}

	var decoded struct {
		Root struct {
			Children []struct {
				Relevance float64                `json:"relevance"`
				Fields    map[string]interface{} `json:"fields"`
			} `json:"children"`
		} `json:"root"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode vespa response: %w", err)
	}

	results := make([]SearchResult, 0, len(decoded.Root.Children))
	for _, child := range decoded.Root.Children {
		entityID, _ := child.Fields["source_entity_id"].(string)
		results = append(results, SearchResult{
			EntityID: entityID,
			Score:    child.Relevance,
			Payload:  child.Fields,
		})
	}
	if req.Temporal != nil && req.Temporal.Weight > 0 {
		results = ApplyTemporalBoost(results, req.Temporal.Weight, time.Now())
	}
	return results, nil
}

func (d *Vespa) execute(req *http.Request) error {
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("vespa request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("vespa returned %d: %s", resp.StatusCode, payload)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// ToYQL translates the shared filter model into a YQL where clause rooted at
// the collection's tenant condition.
func ToYQL(f *Filter, collectionID string, strategy SearchStrategy) (string, error) {
	if err := f.Validate(); err != nil {
		return "", common.WrapError(common.KindValidation, err, "invalid search filter")
	}

	conditions := []string{fmt.Sprintf("collection_id contains %q", collectionID)}

	if f != nil {
		for _, cond := range f.Must {
			clause, err := yqlCondition(cond)
			if err != nil {
				return "", err
			}
			conditions = append(conditions, clause)
		}
		if len(f.Should) > 0 {
			clauses := make([]string, 0, len(f.Should))
			for _, cond := range f.Should {
				clause, err := yqlCondition(cond)
				if err != nil {
					return "", err
				}
				clauses = append(clauses, clause)
			}
			conditions = append(conditions, "("+strings.Join(clauses, " or ")+")")
		}
		for _, cond := range f.MustNot {
			clause, err := yqlCondition(cond)
			if err != nil {
				return "", err
			}
			conditions = append(conditions, "!("+clause+")")
		}
	}

	var match string
	switch strategy {
	case StrategyKeyword:
		match = "userQuery()"
	case StrategyHybrid:
		match = "(userQuery() or ({targetHits:100}nearestNeighbor(embedding, q)))"
	default:
		match = "({targetHits:100}nearestNeighbor(embedding, q))"
	}
	conditions = append([]string{match}, conditions...)

	return fmt.Sprintf("select * from %s where %s", vespaDocType, strings.Join(conditions, " and ")), nil
}

func yqlCondition(c Condition) (string, error) {
	switch {
	case c.Match != nil:
		if len(c.Match.Any) > 0 {
			clauses := make([]string, 0, len(c.Match.Any))
			for _, value := range c.Match.Any {
				clauses = append(clauses, fmt.Sprintf("%s contains %q", c.Field, fmt.Sprintf("%v", value)))
			}
			return "(" + strings.Join(clauses, " or ") + ")", nil
		}
		switch value := c.Match.Value.(type) {
		case string:
			return fmt.Sprintf("%s contains %q", c.Field, value), nil
		case bool:
			return fmt.Sprintf("%s = %t", c.Field, value), nil
		case int, int64:
			return fmt.Sprintf("%s = %d", c.Field, value), nil
		case float64:
			return fmt.Sprintf("%s = %d", c.Field, int64(value)), nil
		default:
			return "", common.NewError(common.KindValidation, "unsupported match value type %T on %s", value, c.Field)
		}
	case c.Range != nil:
		clauses := []string{}
		if c.Range.GTE != nil {
			clauses = append(clauses, fmt.Sprintf("%s >= %g", c.Field, *c.Range.GTE))
		}
		if c.Range.GT != nil {
			clauses = append(clauses, fmt.Sprintf("%s > %g", c.Field, *c.Range.GT))
		}
		if c.Range.LTE != nil {
			clauses = append(clauses, fmt.Sprintf("%s <= %g", c.Field, *c.Range.LTE))
		}
		if c.Range.LT != nil {
			clauses = append(clauses, fmt.Sprintf("%s < %g", c.Field, *c.Range.LT))
		}
		return "(" + strings.Join(clauses, " and ") + ")", nil
	case c.DatetimeRange != nil:
		clauses := []string{}
		if c.DatetimeRange.GTE != nil {
			clauses = append(clauses, fmt.Sprintf("modified_at_epoch >= %d", c.DatetimeRange.GTE.Unix()))
		}
		if c.DatetimeRange.LTE != nil {
			clauses = append(clauses, fmt.Sprintf("modified_at_epoch <= %d", c.DatetimeRange.LTE.Unix()))
		}
		return "(" + strings.Join(clauses, " and ") + ")", nil
	}
	return "", common.NewError(common.KindValidation, "empty filter condition on %s", c.Field)
}
