// Package embed produces the vector pair attached to every chunk: a dense
// vector with the collection's fixed dimension, and an optional sparse vector
// for destinations that maintain a keyword index.
//
// Dense vectors come from an external embedding API through langchaingo;
// every call is gated by the embeddings pod limiter so one organization's
// sync cannot monopolize the pod's share of the provider quota.
package embed

import (
	"context"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/ratelimit"
)

// Pod limiter defaults for the shared embedding API.
const (
	embeddingAPIName        = "embeddings"
	embeddingRequestsPerMin = 300
	embeddingAcquireTimeout = 2 * time.Hour
)

// SparseVector is a sorted list of (index, value) pairs.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// Embedding is the vector pair for one chunk.
type Embedding struct {
	Dense  []float32
	Sparse *SparseVector
}

// Service wraps the embedding provider with dimension checking, sparse
// encoding, and pod-level pacing.
type Service struct {
	dense      embeddings.Embedder
	vectorSize int
	limiter    *ratelimit.PodLimiter
	logger     *common.ContextLogger
}

// NewService creates an embedding service for one collection. vectorSize is
// the collection's immutable dense dimension.
func NewService(dense embeddings.Embedder, vectorSize int, logger *common.ContextLogger) *Service {
	if logger == nil {
		logger = common.NewContextLogger(nil, map[string]interface{}{"component": "embedder"})
	}
	return &Service{
		dense:      dense,
		vectorSize: vectorSize,
		limiter:    ratelimit.ForAPI(embeddingAPIName, embeddingRequestsPerMin, time.Minute, embeddingAcquireTimeout),
		logger:     logger,
	}
}

// EmbedTexts embeds a batch of chunk texts. When withSparse is set each
// embedding also carries a sparse vector.
func (s *Service) EmbedTexts(ctx context.Context, texts []string, withSparse bool) ([]Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	vectors, err := s.dense.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	if len(vectors) != len(texts) {
		return nil, common.NewError(common.KindProviderPermanent,
			"embedding provider returned %d vectors for %d texts", len(vectors), len(texts))
	}

	result := make([]Embedding, len(texts))
	for i, vector := range vectors {
		if len(vector) != s.vectorSize {
			return nil, common.NewError(common.KindProviderPermanent,
				"embedding dimension %d does not match collection vector size %d", len(vector), s.vectorSize)
		}
		result[i].Dense = vector
		if withSparse {
			result[i].Sparse = EncodeSparse(texts[i])
		}
	}
	return result, nil
}

// EmbedQuery embeds a single search query.
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	vector, err := s.dense.EmbedQuery(ctx, query)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	if len(vector) != s.vectorSize {
		return nil, common.NewError(common.KindProviderPermanent,
			"embedding dimension %d does not match collection vector size %d", len(vector), s.vectorSize)
	}
	return vector, nil
}

// VectorSize returns the collection's dense dimension.
func (s *Service) VectorSize() int { return s.vectorSize }

// classifyProviderError separates permanent provider failures (auth, quota,
// account state) from transient ones. Permanent failures terminate the sync.
func classifyProviderError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"401", "403", "invalid api key", "unauthorized", "quota", "billing", "account deactivated"} {
		if strings.Contains(msg, marker) {
			return common.WrapError(common.KindProviderPermanent, err, "embedding provider rejected request")
		}
	}
	return common.WrapError(common.KindProviderTransient, err, "embedding provider call failed")
}
