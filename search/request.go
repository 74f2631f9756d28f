// Package search implements the multi-stage search pipeline over a
// collection's active destination: optional LLM query expansion and filter
// interpretation, embedding, retrieval, optional LLM reranking and grounded
// answer generation. The pipeline is an operation graph executed with
// per-operation time budgets; optional operations fall back to the previous
// state on failure, and progress can be streamed as named events.
package search

import (
	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/config"
	"github.com/sanchitsharma77/airweave-sub002/destination"
)

// MaxQueryTokens is the BPE token cap on the incoming query.
const MaxQueryTokens = 2048

// Request is a search call against one collection.
type Request struct {
	Query             string                     `json:"query"`
	CollectionID      string                     `json:"collection_id"`
	RetrievalStrategy destination.SearchStrategy `json:"retrieval_strategy,omitempty"`
	Limit             int                        `json:"limit,omitempty"`
	Offset            int                        `json:"offset,omitempty"`
	Filter            *destination.Filter        `json:"filter,omitempty"`
	TemporalRelevance *float64                   `json:"temporal_relevance,omitempty"`
	ExpandQuery       *bool                      `json:"expand_query,omitempty"`
	InterpretFilters  *bool                      `json:"interpret_filters,omitempty"`
	Rerank            *bool                      `json:"rerank,omitempty"`
	GenerateAnswer    *bool                      `json:"generate_answer,omitempty"`
}

// ApplyDefaults fills unset request fields from the startup defaults.
func (r *Request) ApplyDefaults(defaults *config.SearchDefaults) {
	if r.RetrievalStrategy == "" {
		r.RetrievalStrategy = destination.SearchStrategy(defaults.RetrievalStrategy)
	}
	if r.Limit == 0 {
		r.Limit = *defaults.Limit
	}
	if r.Offset == 0 {
		r.Offset = *defaults.Offset
	}
	if r.TemporalRelevance == nil {
		r.TemporalRelevance = defaults.TemporalRelevance
	}
	if r.ExpandQuery == nil {
		r.ExpandQuery = defaults.ExpandQuery
	}
	if r.InterpretFilters == nil {
		r.InterpretFilters = defaults.InterpretFilters
	}
	if r.Rerank == nil {
		r.Rerank = defaults.Rerank
	}
	if r.GenerateAnswer == nil {
		r.GenerateAnswer = defaults.GenerateAnswer
	}
}

// Validate rejects malformed requests, including over-long queries.
func (r *Request) Validate(tokens TokenCounter) error {
	if r.Query == "" {
		return common.NewError(common.KindValidation, "query is required")
	}
	if r.CollectionID == "" {
		return common.NewError(common.KindValidation, "collection_id is required")
	}
	if tokens != nil && tokens.Count(r.Query) > MaxQueryTokens {
		return common.NewError(common.KindValidation, "query exceeds %d tokens", MaxQueryTokens)
	}
	if r.Limit < 0 || r.Offset < 0 {
		return common.NewError(common.KindValidation, "limit and offset must be non-negative")
	}
	if err := r.Filter.Validate(); err != nil {
		return common.WrapError(common.KindValidation, err, "invalid filter")
	}
	return nil
}

// TokenCounter measures query length; the production implementation is the
// shared BPE tokenizer.
type TokenCounter interface {
	Count(text string) int
}

// Response is the final result of a non-streaming search.
type Response struct {
	Results         []destination.SearchResult `json:"results"`
	Answer          string                     `json:"answer,omitempty"`
	ExpandedQueries []string                   `json:"expanded_queries,omitempty"`
	AppliedFilter   *destination.Filter        `json:"applied_filter,omitempty"`
}

// EventType names the streamed pipeline events.
type EventType string

const (
	EventOperationStarted   EventType = "operation_started"
	EventOperationCompleted EventType = "operation_completed"
	EventOperationSkipped   EventType = "operation_skipped"
	EventOperationFailed    EventType = "operation_failed"
	EventResults            EventType = "results"
	EventAnswer             EventType = "answer"
	EventDone               EventType = "done"
)

// Event is one streamed status message.
type Event struct {
	Type      EventType   `json:"type"`
	Operation string      `json:"operation,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}
