package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanchitsharma77/airweave-sub002/config"
	"github.com/sanchitsharma77/airweave-sub002/destination"
	"github.com/sanchitsharma77/airweave-sub002/embed"
	"github.com/sanchitsharma77/airweave-sub002/entity"
)

type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

// fakeLLM answers by first matching substring rule.
type fakeLLM struct {
	rules map[string]string
	err   error
	calls []string
}

func (f *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	f.calls = append(f.calls, prompt)
	if f.err != nil {
		return "", f.err
	}
	for marker, response := range f.rules {
		if strings.Contains(prompt, marker) {
			return response, nil
		}
	}
	return "", nil
}

type fakeQueryEmbedder struct{ err error }

func (f *fakeQueryEmbedder) EmbedQuery(_ context.Context, query string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(query)), 1}, nil
}

func testDefaults() *config.SearchDefaults {
	offset, limit := 0, 10
	temporal := 0.0
	expand, interpret, rerank, answer := false, false, false, false
	return &config.SearchDefaults{
		RetrievalStrategy: "neural",
		Offset:            &offset,
		Limit:             &limit,
		TemporalRelevance: &temporal,
		ExpandQuery:       &expand,
		InterpretFilters:  &interpret,
		Rerank:            &rerank,
		GenerateAnswer:    &answer,
	}
}

func seededDestination(t *testing.T) *destination.MockDestination {
	t.Helper()
	dest := destination.NewMockDestination()
	docs := map[string]string{
		"plan":   "the quarterly plan covers sync engine work",
		"notes":  "meeting notes about the plan review",
		"recipe": "how to bake bread",
	}
	for id, content := range docs {
		index := 0
		err := dest.BulkInsert(context.Background(), []destination.Point{{
			Entity: &entity.Entity{
				SyncID:         "s",
				SourceEntityID: id,
				TypeID:         "page",
				Kind:           entity.KindChunk,
				Name:           id,
				Chunk:          &entity.ChunkAttrs{TextualRepresentation: content, ChunkIndex: &index},
			},
			Embedding: &embed.Embedding{Dense: []float32{1, 2}},
		}})
		require.NoError(t, err)
	}
	return dest
}

func boolPtr(v bool) *bool { return &v }

// TestSearchBasic tests embed + retrieval with defaults
func TestSearchBasic(t *testing.T) {
	x := NewExecutor(testDefaults(), wordCounter{}, &fakeQueryEmbedder{}, nil, nil)
	dest := seededDestination(t)

	resp, err := x.Search(context.Background(), Request{Query: "plan", CollectionID: "col"}, dest)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Empty(t, resp.Answer)
	assert.Equal(t, 1, dest.SearchCalls)
}

// TestSearchValidation tests request validation incl. the token cap
func TestSearchValidation(t *testing.T) {
	x := NewExecutor(testDefaults(), wordCounter{}, &fakeQueryEmbedder{}, nil, nil)
	dest := seededDestination(t)
	ctx := context.Background()

	_, err := x.Search(ctx, Request{CollectionID: "col"}, dest)
	require.Error(t, err)

	_, err = x.Search(ctx, Request{Query: "q"}, dest)
	require.Error(t, err)

	long := strings.Repeat("word ", MaxQueryTokens+1)
	_, err = x.Search(ctx, Request{Query: long, CollectionID: "col"}, dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

// TestQueryExpansion tests that alternates reach retrieval
func TestQueryExpansion(t *testing.T) {
	llm := &fakeLLM{rules: map[string]string{
		"alternate phrasings": "quarterly plan\nsync roadmap\nplan document",
	}}
	x := NewExecutor(testDefaults(), wordCounter{}, &fakeQueryEmbedder{}, llm, nil)
	dest := seededDestination(t)

	resp, err := x.Search(context.Background(), Request{
		Query: "plan", CollectionID: "col", ExpandQuery: boolPtr(true),
	}, dest)
	require.NoError(t, err)
	assert.Len(t, resp.ExpandedQueries, 3)
	// One search per query.
	assert.Equal(t, 4, dest.SearchCalls)
	// Merged results are deduplicated.
	ids := map[string]int{}
	for _, result := range resp.Results {
		ids[result.EntityID]++
	}
	for id, count := range ids {
		assert.Equal(t, 1, count, "duplicate result %s", id)
	}
}

// TestQueryInterpretation tests confident and unconfident extraction
func TestQueryInterpretation(t *testing.T) {
	confident := &fakeLLM{rules: map[string]string{
		"Extract filter conditions": `{"conditions":[{"field":"entity_type_id","value":"jira_issue"},{"field":"unknown_field","value":"x"}],"confidence":0.9}`,
	}}
	x := NewExecutor(testDefaults(), wordCounter{}, &fakeQueryEmbedder{}, confident, nil)
	dest := seededDestination(t)

	resp, err := x.Search(context.Background(), Request{
		Query: "open jira issues about the plan", CollectionID: "col", InterpretFilters: boolPtr(true),
	}, dest)
	require.NoError(t, err)
	require.NotNil(t, resp.AppliedFilter)
	require.Len(t, resp.AppliedFilter.Must, 1, "unknown fields are dropped")
	assert.Equal(t, "entity_type_id", resp.AppliedFilter.Must[0].Field)

	// Low confidence is ignored entirely.
	timid := &fakeLLM{rules: map[string]string{
		"Extract filter conditions": `{"conditions":[{"field":"entity_type_id","value":"jira_issue"}],"confidence":0.3}`,
	}}
	x = NewExecutor(testDefaults(), wordCounter{}, &fakeQueryEmbedder{}, timid, nil)
	resp, err = x.Search(context.Background(), Request{
		Query: "open jira issues", CollectionID: "col", InterpretFilters: boolPtr(true),
	}, seededDestination(t))
	require.NoError(t, err)
	assert.Nil(t, resp.AppliedFilter)
}

// TestRerank tests LLM reordering and the keep-order fallback
func TestRerank(t *testing.T) {
	llm := &fakeLLM{rules: map[string]string{
		"Rank the documents": `{"order":[1,0]}`,
	}}
	x := NewExecutor(testDefaults(), wordCounter{}, &fakeQueryEmbedder{}, llm, nil)
	dest := seededDestination(t)

	resp, err := x.Search(context.Background(), Request{
		Query: "plan", CollectionID: "col", Rerank: boolPtr(true),
	}, dest)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	// Mock returns notes, plan alphabetically; rerank flips them.
	assert.Equal(t, "plan", resp.Results[0].EntityID)
	assert.Equal(t, "notes", resp.Results[1].EntityID)

	// A broken rerank response keeps the retrieval order.
	broken := &fakeLLM{rules: map[string]string{"Rank the documents": "not json"}}
	x = NewExecutor(testDefaults(), wordCounter{}, &fakeQueryEmbedder{}, broken, nil)
	resp, err = x.Search(context.Background(), Request{
		Query: "plan", CollectionID: "col", Rerank: boolPtr(true),
	}, seededDestination(t))
	require.NoError(t, err)
	assert.Equal(t, "notes", resp.Results[0].EntityID)
}

// TestAnswerGeneration tests the grounded answer with citations
func TestAnswerGeneration(t *testing.T) {
	llm := &fakeLLM{rules: map[string]string{
		"Answer the question": "The plan covers sync engine work [[plan]].",
	}}
	x := NewExecutor(testDefaults(), wordCounter{}, &fakeQueryEmbedder{}, llm, nil)

	resp, err := x.Search(context.Background(), Request{
		Query: "plan", CollectionID: "col", GenerateAnswer: boolPtr(true),
	}, seededDestination(t))
	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "[[plan]]")
}

// TestMandatoryFailure tests that an embed failure fails the search
func TestMandatoryFailure(t *testing.T) {
	x := NewExecutor(testDefaults(), wordCounter{}, &fakeQueryEmbedder{err: errors.New("provider down")}, nil, nil)
	_, err := x.Search(context.Background(), Request{Query: "plan", CollectionID: "col"}, seededDestination(t))
	require.Error(t, err)
}

// TestOptionalFailureFallsBack tests that a dead LLM degrades gracefully
func TestOptionalFailureFallsBack(t *testing.T) {
	llm := &fakeLLM{err: errors.New("llm down")}
	x := NewExecutor(testDefaults(), wordCounter{}, &fakeQueryEmbedder{}, llm, nil)

	resp, err := x.Search(context.Background(), Request{
		Query: "plan", CollectionID: "col",
		ExpandQuery: boolPtr(true), Rerank: boolPtr(true), GenerateAnswer: boolPtr(true),
	}, seededDestination(t))
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
	assert.Empty(t, resp.Answer)
}

// TestSearchStream tests the streamed event sequence
func TestSearchStream(t *testing.T) {
	x := NewExecutor(testDefaults(), wordCounter{}, &fakeQueryEmbedder{}, nil, nil)
	dest := seededDestination(t)

	events := make(chan Event, 64)
	done := make(chan struct{})
	var collected []Event
	go func() {
		for event := range events {
			collected = append(collected, event)
		}
		close(done)
	}()

	_, err := x.SearchStream(context.Background(), Request{Query: "plan", CollectionID: "col"}, dest, events)
	require.NoError(t, err)
	<-done

	types := make([]EventType, 0, len(collected))
	for _, event := range collected {
		types = append(types, event.Type)
	}
	assert.Contains(t, types, EventOperationStarted)
	assert.Contains(t, types, EventResults)
	assert.Equal(t, EventDone, types[len(types)-1])
}

// TestOffsetPagination tests merged-result pagination
func TestOffsetPagination(t *testing.T) {
	x := NewExecutor(testDefaults(), wordCounter{}, &fakeQueryEmbedder{}, nil, nil)
	dest := seededDestination(t)

	page1, err := x.Search(context.Background(), Request{Query: "plan", CollectionID: "col", Limit: 1}, dest)
	require.NoError(t, err)
	require.Len(t, page1.Results, 1)

	page2, err := x.Search(context.Background(), Request{Query: "plan", CollectionID: "col", Limit: 1, Offset: 1}, dest)
	require.NoError(t, err)
	require.Len(t, page2.Results, 1)
	assert.NotEqual(t, page1.Results[0].EntityID, page2.Results[0].EntityID)
}
