package embed

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

// sparseDims is the hashed vocabulary size for sparse vectors.
const sparseDims = 1 << 20

// EncodeSparse produces a hashed term-weight sparse vector for keyword
// matching. Terms are lowercased alphanumeric runs; weights are sublinear
// term frequencies. Destinations only require sorted (index, value) pairs,
// so a hashed vocabulary avoids shipping a fitted model with every
// collection.
func EncodeSparse(text string) *SparseVector {
	counts := make(map[uint32]int)
	for _, term := range tokenizeTerms(text) {
		h := fnv.New32a()
		h.Write([]byte(term))
		counts[h.Sum32()%sparseDims]++
	}
	if len(counts) == 0 {
		return &SparseVector{}
	}

	indices := make([]uint32, 0, len(counts))
	for index := range counts {
		indices = append(indices, index)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, index := range indices {
		values[i] = float32(1 + math.Log(float64(counts[index])))
	}
	return &SparseVector{Indices: indices, Values: values}
}

// tokenizeTerms splits text into lowercased alphanumeric terms.
func tokenizeTerms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
