package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/destination"
	"github.com/sanchitsharma77/airweave-sub002/embed"
)

// State is the mutable pipeline state threaded through the operations.
type State struct {
	Request Request

	// Queries holds the original query plus expansion alternates.
	Queries []string
	// Filter is the composed filter: user filter plus interpreted fragments.
	Filter *destination.Filter
	// Dense holds one vector per query; Sparse one sparse vector for the
	// original query when the destination keeps a keyword index.
	Dense  [][]float32
	Sparse *embed.SparseVector

	Results []destination.SearchResult
	Answer  string
}

// Operation is one node of the search graph.
type Operation interface {
	Name() string
	// Mandatory operations fail the whole search; optional ones fall back.
	Mandatory() bool
	Run(ctx context.Context, state *State) error
}

// expansionAlternates is the number of alternate phrasings requested.
const expansionAlternates = 3

// QueryExpansion generates alternate phrasings with the LLM and feeds all of
// them to retrieval.
type QueryExpansion struct {
	llm LLM
}

// NewQueryExpansion creates the expansion operation.
func NewQueryExpansion(llm LLM) *QueryExpansion { return &QueryExpansion{llm: llm} }

// Name implements Operation
func (op *QueryExpansion) Name() string { return "query_expansion" }

// Mandatory implements Operation
func (op *QueryExpansion) Mandatory() bool { return false }

// Run implements Operation
func (op *QueryExpansion) Run(ctx context.Context, state *State) error {
	prompt := fmt.Sprintf(
		"Generate %d alternate phrasings of the search query below, one per line, "+
			"without numbering. Preserve technical terms verbatim.\n\nQuery: %s",
		expansionAlternates, state.Request.Query)

	completion, err := op.llm.Complete(ctx, prompt)
	if err != nil {
		return err
	}

	seen := map[string]bool{strings.ToLower(state.Request.Query): true}
	for _, line := range strings.Split(completion, "\n") {
		alternate := strings.TrimSpace(line)
		if alternate == "" || seen[strings.ToLower(alternate)] {
			continue
		}
		seen[strings.ToLower(alternate)] = true
		state.Queries = append(state.Queries, alternate)
		if len(state.Queries) >= 1+expansionAlternates {
			break
		}
	}
	return nil
}

// interpretationConfidenceFloor discards low-confidence filter fragments.
const interpretationConfidenceFloor = 0.7

// filterableFields is the schema shown to the LLM for interpretation.
var filterableFields = []string{"entity_type_id", "name", "source_entity_id"}

// QueryInterpretation extracts structured filter fragments from the natural
// language query. Fragments below the confidence floor are ignored.
type QueryInterpretation struct {
	llm LLM
}

// NewQueryInterpretation creates the interpretation operation.
func NewQueryInterpretation(llm LLM) *QueryInterpretation { return &QueryInterpretation{llm: llm} }

// Name implements Operation
func (op *QueryInterpretation) Name() string { return "query_interpretation" }

// Mandatory implements Operation
func (op *QueryInterpretation) Mandatory() bool { return false }

type interpretedFilter struct {
	Conditions []struct {
		Field string      `json:"field"`
		Value interface{} `json:"value"`
	} `json:"conditions"`
	Confidence float64 `json:"confidence"`
}

// Run implements Operation
func (op *QueryInterpretation) Run(ctx context.Context, state *State) error {
	prompt := fmt.Sprintf(
		"Extract filter conditions from the search query. Known filterable fields: %s. "+
			"Respond with JSON only: {\"conditions\":[{\"field\":...,\"value\":...}],\"confidence\":0.0-1.0}. "+
			"Use an empty conditions list when the query has no filterable constraints.\n\nQuery: %s",
		strings.Join(filterableFields, ", "), state.Request.Query)

	completion, err := op.llm.Complete(ctx, prompt)
	if err != nil {
		return err
	}

	var interpreted interpretedFilter
	if err := json.Unmarshal([]byte(extractJSON(completion)), &interpreted); err != nil {
		return fmt.Errorf("failed to parse interpreted filter: %w", err)
	}
	if interpreted.Confidence < interpretationConfidenceFloor || len(interpreted.Conditions) == 0 {
		return nil
	}

	known := make(map[string]bool, len(filterableFields))
	for _, field := range filterableFields {
		known[field] = true
	}

	fragment := &destination.Filter{}
	for _, cond := range interpreted.Conditions {
		if !known[cond.Field] {
			continue
		}
		fragment.Must = append(fragment.Must, destination.MatchField(cond.Field, cond.Value))
	}
	state.Filter = destination.Merge(state.Filter, fragment)
	return nil
}

// extractJSON trims prose around a JSON object in an LLM response.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

// QueryEmbedder is the embed operation's view of the embedding service.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Embed produces the dense vector of every query and, when the destination
// keeps a keyword index, the sparse vector of the original query.
type Embed struct {
	embedder   QueryEmbedder
	withSparse bool
}

// NewEmbed creates the embed operation.
func NewEmbed(embedder QueryEmbedder, withSparse bool) *Embed {
	return &Embed{embedder: embedder, withSparse: withSparse}
}

// Name implements Operation
func (op *Embed) Name() string { return "embed" }

// Mandatory implements Operation
func (op *Embed) Mandatory() bool { return true }

// Run implements Operation
func (op *Embed) Run(ctx context.Context, state *State) error {
	state.Dense = make([][]float32, len(state.Queries))
	for i, query := range state.Queries {
		vector, err := op.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return err
		}
		state.Dense[i] = vector
	}
	if op.withSparse {
		state.Sparse = embed.EncodeSparse(state.Request.Query)
	}
	return nil
}

// UserFilter merges the caller-supplied filter into the composed filter.
type UserFilter struct{}

// Name implements Operation
func (UserFilter) Name() string { return "user_filter" }

// Mandatory implements Operation
func (UserFilter) Mandatory() bool { return true }

// Run implements Operation
func (UserFilter) Run(_ context.Context, state *State) error {
	if state.Request.Filter == nil {
		return nil
	}
	if err := state.Request.Filter.Validate(); err != nil {
		return common.WrapError(common.KindValidation, err, "invalid user filter")
	}
	state.Filter = destination.Merge(destination.Merge(nil, state.Request.Filter), state.Filter)
	return nil
}

// Retrieval searches the destination with every query and merges the hits by
// best score.
type Retrieval struct {
	dest destination.Destination
}

// NewRetrieval creates the retrieval operation.
func NewRetrieval(dest destination.Destination) *Retrieval { return &Retrieval{dest: dest} }

// Name implements Operation
func (op *Retrieval) Name() string { return "retrieval" }

// Mandatory implements Operation
func (op *Retrieval) Mandatory() bool { return true }

// Run implements Operation
func (op *Retrieval) Run(ctx context.Context, state *State) error {
	req := state.Request
	var temporal *destination.TemporalConfig
	if req.TemporalRelevance != nil && *req.TemporalRelevance > 0 {
		temporal = &destination.TemporalConfig{Weight: *req.TemporalRelevance}
	}

	// Each query fetches a full window; merging re-applies offset and limit.
	perQueryLimit := req.Limit + req.Offset

	best := make(map[string]destination.SearchResult)
	for i, query := range state.Queries {
		var dense []float32
		if i < len(state.Dense) {
			dense = state.Dense[i]
		}
		results, err := op.dest.Search(ctx, destination.SearchRequest{
			Query:        query,
			CollectionID: req.CollectionID,
			Limit:        perQueryLimit,
			Offset:       0,
			Filter:       state.Filter,
			Dense:        dense,
			Sparse:       state.Sparse,
			Strategy:     req.RetrievalStrategy,
			Temporal:     temporal,
		})
		if err != nil {
			return err
		}
		for _, result := range results {
			key := result.EntityID + "|" + fmt.Sprint(result.Payload["chunk_index"])
			if existing, ok := best[key]; !ok || result.Score > existing.Score {
				best[key] = result
			}
		}
	}

	merged := make([]destination.SearchResult, 0, len(best))
	for _, result := range best {
		merged = append(merged, result)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].EntityID < merged[j].EntityID
	})

	if req.Offset >= len(merged) {
		state.Results = nil
		return nil
	}
	merged = merged[req.Offset:]
	if req.Limit > 0 && len(merged) > req.Limit {
		merged = merged[:req.Limit]
	}
	state.Results = merged
	return nil
}

// rerankCap bounds how many candidates are shown to the reranker.
const rerankCap = 1000

// Rerank reorders the candidates with an LLM rubric. On any failure the
// retrieval order is kept.
type Rerank struct {
	llm LLM
}

// NewRerank creates the rerank operation.
func NewRerank(llm LLM) *Rerank { return &Rerank{llm: llm} }

// Name implements Operation
func (op *Rerank) Name() string { return "rerank" }

// Mandatory implements Operation
func (op *Rerank) Mandatory() bool { return false }

// Run implements Operation
func (op *Rerank) Run(ctx context.Context, state *State) error {
	if len(state.Results) < 2 {
		return nil
	}
	candidates := state.Results
	if len(candidates) > rerankCap {
		candidates = candidates[:rerankCap]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Rank the documents below by relevance to the query. "+
		"Respond with JSON only: {\"order\":[indices, most relevant first]}.\n\nQuery: %s\n\n", state.Request.Query)
	for i, result := range candidates {
		content, _ := result.Payload["content"].(string)
		if len(content) > 500 {
			content = content[:500]
		}
		fmt.Fprintf(&b, "[%d] %v: %s\n", i, result.Payload["name"], content)
	}

	completion, err := op.llm.Complete(ctx, b.String())
	if err != nil {
		return err
	}

	var ranked struct {
		Order []int `json:"order"`
	}
	if err := json.Unmarshal([]byte(extractJSON(completion)), &ranked); err != nil {
		return fmt.Errorf("failed to parse rerank order: %w", err)
	}

	reordered := make([]destination.SearchResult, 0, len(candidates))
	used := make(map[int]bool)
	for _, index := range ranked.Order {
		if index < 0 || index >= len(candidates) || used[index] {
			continue
		}
		used[index] = true
		reordered = append(reordered, candidates[index])
	}
	// Indices the model dropped keep their retrieval order at the tail.
	for i, result := range candidates {
		if !used[i] {
			reordered = append(reordered, result)
		}
	}
	state.Results = append(reordered, state.Results[len(candidates):]...)
	return nil
}

// answerContextCap bounds how many results ground the answer.
const answerContextCap = 10

// Answer generates a grounded answer with inline [[entity_id]] citations.
type Answer struct {
	llm LLM
}

// NewAnswer creates the answer operation.
func NewAnswer(llm LLM) *Answer { return &Answer{llm: llm} }

// Name implements Operation
func (op *Answer) Name() string { return "answer" }

// Mandatory implements Operation
func (op *Answer) Mandatory() bool { return false }

// Run implements Operation
func (op *Answer) Run(ctx context.Context, state *State) error {
	if len(state.Results) == 0 {
		return nil
	}
	grounding := state.Results
	if len(grounding) > answerContextCap {
		grounding = grounding[:answerContextCap]
	}

	var b strings.Builder
	b.WriteString("Answer the question using only the sources below. " +
		"Cite sources inline as [[entity_id]]. If the sources are insufficient, say so.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\nSources:\n", state.Request.Query)
	for _, result := range grounding {
		content, _ := result.Payload["content"].(string)
		fmt.Fprintf(&b, "[[%s]] %v: %s\n", result.EntityID, result.Payload["name"], content)
	}

	answer, err := op.llm.Complete(ctx, b.String())
	if err != nil {
		return err
	}
	state.Answer = answer
	return nil
}
