package destination

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/entity"
)

// Named vectors used on every Qdrant point.
const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
)

// pointNamespace derives deterministic point ids, so rewriting the same chunk
// is an overwrite rather than a duplicate.
var pointNamespace = uuid.MustParse("8a6e1d6f-3f0a-4c3f-9a75-2b9f2f6f1d11")

// QdrantConfig configures the Qdrant destination.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
	// CollectionName is the physical backing collection. Defaults to the
	// logical collection id.
	CollectionName string
}

// Qdrant is the vector destination over the Qdrant gRPC API. It requires
// chunked, embedded input and maintains both a dense and a sparse index.
type Qdrant struct {
	client       *qdrant.Client
	collection   string
	collectionID string
}

// NewQdrant connects to Qdrant and creates or attaches the backing
// collection with the collection's fixed dense dimension.
func NewQdrant(ctx context.Context, cfg QdrantConfig, collectionID string, vectorSize int) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	name := cfg.CollectionName
	if name == "" {
		name = collectionID
	}

	d := &Qdrant{client: client, collection: name, collectionID: collectionID}
	if err := d.ensureCollection(ctx, vectorSize); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Qdrant) ensureCollection(ctx context.Context, vectorSize int) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("failed to check qdrant collection: %w", err)
	}
	if exists {
		return nil
	}
	err = d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			denseVectorName: {Size: uint64(vectorSize), Distance: qdrant.Distance_Cosine},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			sparseVectorName: {},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create qdrant collection: %w", err)
	}
	return nil
}

// ProcessingRequirement reports that Qdrant needs chunks with embeddings.
func (d *Qdrant) ProcessingRequirement() ProcessingRequirement { return ChunksAndEmbeddings }

// HasKeywordIndex reports that Qdrant maintains a sparse index.
func (d *Qdrant) HasKeywordIndex() bool { return true }

// BulkInsert writes a batch of chunk points.
func (d *Qdrant) BulkInsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, point := range points {
		e := point.Entity
		if point.Embedding == nil || len(point.Embedding.Dense) == 0 {
			return common.NewError(common.KindSyncFailure,
				"entity %s reached qdrant without an embedding", e.SourceEntityID)
		}

		vectors := map[string]*qdrant.Vector{
			denseVectorName: qdrant.NewVectorDense(point.Embedding.Dense),
		}
		if sparse := point.Embedding.Sparse; sparse != nil && len(sparse.Indices) > 0 {
			vectors[sparseVectorName] = qdrant.NewVectorSparse(sparse.Indices, sparse.Values)
		}

		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(e)),
			Vectors: qdrant.NewVectorsMap(vectors),
			Payload: qdrant.NewValueMap(pointPayload(d.collectionID, e)),
		})
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert qdrant points: %w", err)
	}
	return nil
}

// pointID derives the deterministic point id of a chunk.
func pointID(e *entity.Entity) string {
	chunkIndex := -1
	if e.Chunk != nil && e.Chunk.ChunkIndex != nil {
		chunkIndex = *e.Chunk.ChunkIndex
	}
	seed := fmt.Sprintf("%s:%s:%s:%d", e.SyncID, e.SourceEntityID, e.TypeID, chunkIndex)
	return uuid.NewSHA1(pointNamespace, []byte(seed)).String()
}

// pointPayload builds the stored payload. collection_id is the tenant
// isolation key present on every vector.
func pointPayload(collectionID string, e *entity.Entity) map[string]any {
	payload := map[string]any{
		"collection_id":    collectionID,
		"sync_id":          e.SyncID,
		"source_entity_id": e.SourceEntityID,
		"parent_entity_id": e.SourceEntityID,
		"entity_type_id":   e.TypeID,
		"name":             e.Name,
	}
	if e.Chunk != nil {
		payload["content"] = e.Chunk.TextualRepresentation
		if e.Chunk.ChunkIndex != nil {
			payload["chunk_index"] = int64(*e.Chunk.ChunkIndex)
		}
		if e.Chunk.ParentEntityID != "" {
			payload["parent_entity_id"] = e.Chunk.ParentEntityID
		}
	}
	if e.ModifiedAt != nil {
		payload["modified_at"] = e.ModifiedAt.UTC().Format(time.RFC3339)
	}
	if e.CreatedAt != nil {
		payload["created_at"] = e.CreatedAt.UTC().Format(time.RFC3339)
	}
	if len(e.Breadcrumbs) > 0 {
		crumbs := make([]any, 0, len(e.Breadcrumbs))
		for _, crumb := range e.Breadcrumbs {
			crumbs = append(crumbs, map[string]any{"id": crumb.ID, "name": crumb.Name, "type": crumb.Type})
		}
		payload["breadcrumbs"] = crumbs
	}
	return payload
}

// BulkDelete removes points by source entity id within a sync.
func (d *Qdrant) BulkDelete(ctx context.Context, entityIDs []string, syncID string) error {
	return d.deleteByFilter(ctx, &qdrant.Filter{Must: []*qdrant.Condition{
		qdrant.NewMatch("sync_id", syncID),
		qdrant.NewMatchKeywords("source_entity_id", entityIDs...),
	}})
}

// BulkDeleteByParentIDs removes chunks by parent id within a sync.
func (d *Qdrant) BulkDeleteByParentIDs(ctx context.Context, parentIDs []string, syncID string) error {
	return d.deleteByFilter(ctx, &qdrant.Filter{Must: []*qdrant.Condition{
		qdrant.NewMatch("sync_id", syncID),
		qdrant.NewMatchKeywords("parent_entity_id", parentIDs...),
	}})
}

// DeleteBySyncID removes everything written by a sync.
func (d *Qdrant) DeleteBySyncID(ctx context.Context, syncID string) error {
	return d.deleteByFilter(ctx, &qdrant.Filter{Must: []*qdrant.Condition{
		qdrant.NewMatch("sync_id", syncID),
	}})
}

// DeleteByCollectionID removes everything in a logical collection.
func (d *Qdrant) DeleteByCollectionID(ctx context.Context, collectionID string) error {
	return d.deleteByFilter(ctx, &qdrant.Filter{Must: []*qdrant.Condition{
		qdrant.NewMatch("collection_id", collectionID),
	}})
}

func (d *Qdrant) deleteByFilter(ctx context.Context, filter *qdrant.Filter) error {
	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete qdrant points: %w", err)
	}
	return nil
}

// Search runs retrieval with the composed filter and strategy.
func (d *Qdrant) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	filter, err := toQdrantFilter(req.Filter, d.collectionID)
	if err != nil {
		return nil, err
	}

	limit := uint64(req.Limit)
	offset := uint64(req.Offset)
	query := &qdrant.QueryPoints{
		CollectionName: d.collection,
		Filter:         filter,
		Limit:          qdrant.PtrOf(limit),
		Offset:         qdrant.PtrOf(offset),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	switch req.Strategy {
	case StrategyKeyword:
		if req.Sparse == nil {
			return nil, common.NewError(common.KindValidation, "keyword search requires a sparse vector")
		}
		query.Query = qdrant.NewQuerySparse(req.Sparse.Indices, req.Sparse.Values)
		query.Using = qdrant.PtrOf(sparseVectorName)
	case StrategyHybrid:
		if req.Sparse != nil {
			query.Prefetch = []*qdrant.PrefetchQuery{
				{
					Query:  qdrant.NewQueryDense(req.Dense),
					Using:  qdrant.PtrOf(denseVectorName),
					Filter: filter,
					Limit:  qdrant.PtrOf(limit + offset),
				},
				{
					Query:  qdrant.NewQuerySparse(req.Sparse.Indices, req.Sparse.Values),
					Using:  qdrant.PtrOf(sparseVectorName),
					Filter: filter,
					Limit:  qdrant.PtrOf(limit + offset),
				},
			}
			query.Query = qdrant.NewQueryFusion(qdrant.Fusion_RRF)
			break
		}
		fallthrough
	default: // neural
		query.Query = qdrant.NewQueryDense(req.Dense)
		query.Using = qdrant.PtrOf(denseVectorName)
	}

	scored, err := d.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}

	results := make([]SearchResult, 0, len(scored))
	for _, point := range scored {
		payload := make(map[string]interface{}, len(point.Payload))
		for key, value := range point.Payload {
			payload[key] = qdrantValueToInterface(value)
		}
		entityID, _ := payload["source_entity_id"].(string)
		results = append(results, SearchResult{
			EntityID: entityID,
			Score:    float64(point.Score),
			Payload:  payload,
		})
	}

	if req.Temporal != nil && req.Temporal.Weight > 0 {
		results = ApplyTemporalBoost(results, req.Temporal.Weight, time.Now())
	}
	return results, nil
}

// toQdrantFilter translates the shared filter model and pins the tenant key.
func toQdrantFilter(f *Filter, collectionID string) (*qdrant.Filter, error) {
	if err := f.Validate(); err != nil {
		return nil, common.WrapError(common.KindValidation, err, "invalid search filter")
	}

	out := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("collection_id", collectionID)},
	}
	if f == nil {
		return out, nil
	}

	convert := func(conds []Condition) ([]*qdrant.Condition, error) {
		converted := make([]*qdrant.Condition, 0, len(conds))
		for _, cond := range conds {
			qc, err := toQdrantCondition(cond)
			if err != nil {
				return nil, err
			}
			converted = append(converted, qc)
		}
		return converted, nil
	}

	must, err := convert(f.Must)
	if err != nil {
		return nil, err
	}
	out.Must = append(out.Must, must...)
	if out.Should, err = convert(f.Should); err != nil {
		return nil, err
	}
	if out.MustNot, err = convert(f.MustNot); err != nil {
		return nil, err
	}
	return out, nil
}

func toQdrantCondition(c Condition) (*qdrant.Condition, error) {
	switch {
	case c.Match != nil:
		if len(c.Match.Any) > 0 {
			keywords := make([]string, 0, len(c.Match.Any))
			for _, value := range c.Match.Any {
				keywords = append(keywords, fmt.Sprintf("%v", value))
			}
			return qdrant.NewMatchKeywords(c.Field, keywords...), nil
		}
		switch value := c.Match.Value.(type) {
		case string:
			return qdrant.NewMatch(c.Field, value), nil
		case bool:
			return qdrant.NewMatchBool(c.Field, value), nil
		case int:
			return qdrant.NewMatchInt(c.Field, int64(value)), nil
		case int64:
			return qdrant.NewMatchInt(c.Field, value), nil
		case float64:
			return qdrant.NewMatchInt(c.Field, int64(value)), nil
		default:
			return nil, common.NewError(common.KindValidation, "unsupported match value type %T on %s", value, c.Field)
		}
	case c.Range != nil:
		r := &qdrant.Range{}
		if c.Range.GTE != nil {
			r.Gte = c.Range.GTE
		}
		if c.Range.GT != nil {
			r.Gt = c.Range.GT
		}
		if c.Range.LTE != nil {
			r.Lte = c.Range.LTE
		}
		if c.Range.LT != nil {
			r.Lt = c.Range.LT
		}
		return qdrant.NewRange(c.Field, r), nil
	case c.DatetimeRange != nil:
		r := &qdrant.DatetimeRange{}
		if c.DatetimeRange.GTE != nil {
			r.Gte = timestamppb.New(*c.DatetimeRange.GTE)
		}
		if c.DatetimeRange.LTE != nil {
			r.Lte = timestamppb.New(*c.DatetimeRange.LTE)
		}
		return qdrant.NewDatetimeRange(c.Field, r), nil
	}
	return nil, common.NewError(common.KindValidation, "empty filter condition on %s", c.Field)
}

func qdrantValueToInterface(v *qdrant.Value) interface{} {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		values := make([]interface{}, 0, len(kind.ListValue.Values))
		for _, item := range kind.ListValue.Values {
			values = append(values, qdrantValueToInterface(item))
		}
		return values
	case *qdrant.Value_StructValue:
		fields := make(map[string]interface{}, len(kind.StructValue.Fields))
		for key, item := range kind.StructValue.Fields {
			fields[key] = qdrantValueToInterface(item)
		}
		return fields
	default:
		return nil
	}
}
