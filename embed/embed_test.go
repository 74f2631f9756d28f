package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanchitsharma77/airweave-sub002/common"
)

type fakeDense struct {
	dim  int
	err  error
	seen [][]string
}

func (f *fakeDense) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.seen = append(f.seen, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.dim)
		vec[0] = float32(len(texts[i]))
		out[i] = vec
	}
	return out, nil
}

func (f *fakeDense) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// TestEmbedTexts tests dense and sparse production
func TestEmbedTexts(t *testing.T) {
	service := NewService(&fakeDense{dim: 8}, 8, nil)

	embeddings, err := service.EmbedTexts(context.Background(), []string{"hello world", "second chunk"}, true)
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Len(t, embeddings[0].Dense, 8)
	require.NotNil(t, embeddings[0].Sparse)
	assert.NotEmpty(t, embeddings[0].Sparse.Indices)

	// Without sparse.
	embeddings, err = service.EmbedTexts(context.Background(), []string{"x"}, false)
	require.NoError(t, err)
	assert.Nil(t, embeddings[0].Sparse)
}

// TestEmbedDimensionMismatch tests the collection dimension invariant
func TestEmbedDimensionMismatch(t *testing.T) {
	service := NewService(&fakeDense{dim: 4}, 8, nil)
	_, err := service.EmbedTexts(context.Background(), []string{"x"}, false)
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindProviderPermanent))
}

// TestProviderErrorClassification tests permanent vs transient mapping
func TestProviderErrorClassification(t *testing.T) {
	permanent := NewService(&fakeDense{dim: 8, err: errors.New("401 unauthorized: invalid api key")}, 8, nil)
	_, err := permanent.EmbedTexts(context.Background(), []string{"x"}, false)
	assert.True(t, common.IsKind(err, common.KindProviderPermanent))

	transient := NewService(&fakeDense{dim: 8, err: errors.New("connection reset by peer")}, 8, nil)
	_, err = transient.EmbedTexts(context.Background(), []string{"x"}, false)
	assert.True(t, common.IsKind(err, common.KindProviderTransient))
}

// TestEmbedEmptyBatch tests the zero-input fast path
func TestEmbedEmptyBatch(t *testing.T) {
	service := NewService(&fakeDense{dim: 8}, 8, nil)
	embeddings, err := service.EmbedTexts(context.Background(), nil, true)
	require.NoError(t, err)
	assert.Nil(t, embeddings)
}

// TestEncodeSparse tests sorted hashed term weights
func TestEncodeSparse(t *testing.T) {
	sparse := EncodeSparse("the cat sat on the mat")
	require.NotNil(t, sparse)
	require.NotEmpty(t, sparse.Indices)
	assert.Len(t, sparse.Values, len(sparse.Indices))

	for i := 1; i < len(sparse.Indices); i++ {
		assert.Less(t, sparse.Indices[i-1], sparse.Indices[i], "indices must be sorted")
	}

	// "the" appears twice: its weight must exceed a single-occurrence term's.
	theIndex := EncodeSparse("the").Indices[0]
	catIndex := EncodeSparse("cat").Indices[0]
	weightOf := func(v *SparseVector, index uint32) float32 {
		for i, idx := range v.Indices {
			if idx == index {
				return v.Values[i]
			}
		}
		return 0
	}
	assert.Greater(t, weightOf(sparse, theIndex), weightOf(sparse, catIndex))

	assert.Empty(t, EncodeSparse("").Indices)
	assert.Empty(t, EncodeSparse("!!! ???").Indices)
}

// TestEmbedQuery tests the query path
func TestEmbedQuery(t *testing.T) {
	service := NewService(&fakeDense{dim: 8}, 8, nil)
	vector, err := service.EmbedQuery(context.Background(), "find the plan")
	require.NoError(t, err)
	assert.Len(t, vector, 8)
}
