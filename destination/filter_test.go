package destination

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

// TestFilterValidate tests structural validation
func TestFilterValidate(t *testing.T) {
	var nilFilter *Filter
	assert.NoError(t, nilFilter.Validate())

	good := &Filter{
		Must:    []Condition{MatchField("entity_type_id", "notion_page")},
		Should:  []Condition{{Field: "size", Range: &RangeValue{GTE: f64(10)}}},
		MustNot: []Condition{{Field: "name", Match: &MatchValue{Any: []interface{}{"a", "b"}}}},
	}
	assert.NoError(t, good.Validate())

	tests := []struct {
		name   string
		filter *Filter
	}{
		{"missing field", &Filter{Must: []Condition{{Match: &MatchValue{Value: "x"}}}}},
		{"no clause", &Filter{Must: []Condition{{Field: "x"}}}},
		{"two clauses", &Filter{Must: []Condition{{Field: "x", Match: &MatchValue{Value: "v"}, Range: &RangeValue{GTE: f64(1)}}}}},
		{"empty match", &Filter{Must: []Condition{{Field: "x", Match: &MatchValue{}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.filter.Validate())
		})
	}
}

// TestFilterMerge tests clause concatenation
func TestFilterMerge(t *testing.T) {
	a := &Filter{Must: []Condition{MatchField("a", 1)}}
	b := &Filter{Must: []Condition{MatchField("b", 2)}, MustNot: []Condition{MatchField("c", 3)}}

	merged := Merge(a, b)
	assert.Len(t, merged.Must, 2)
	assert.Len(t, merged.MustNot, 1)

	assert.Same(t, a, Merge(a, nil))
	assert.Same(t, b, Merge(nil, b))

	// Merge does not mutate its inputs.
	assert.Len(t, a.Must, 1)
}

// TestToYQL tests the Vespa filter translation
func TestToYQL(t *testing.T) {
	gte := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	filter := &Filter{
		Must: []Condition{
			MatchField("entity_type_id", "jira_issue"),
			{Field: "size", Range: &RangeValue{GTE: f64(100), LT: f64(5000)}},
			{Field: "modified", DatetimeRange: &DatetimeRange{GTE: &gte}},
		},
		Should:  []Condition{MatchField("name", "alpha"), MatchField("name", "beta")},
		MustNot: []Condition{MatchField("archived", true)},
	}

	yql, err := ToYQL(filter, "col-1", StrategyNeural)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(yql, "select * from chunk where "))
	assert.Contains(t, yql, "nearestNeighbor(embedding, q)")
	assert.Contains(t, yql, `collection_id contains "col-1"`)
	assert.Contains(t, yql, `entity_type_id contains "jira_issue"`)
	assert.Contains(t, yql, "size >= 100")
	assert.Contains(t, yql, "size < 5000")
	assert.Contains(t, yql, fmt.Sprintf("modified_at_epoch >= %d", gte.Unix()))
	assert.Contains(t, yql, `(name contains "alpha" or name contains "beta")`)
	assert.Contains(t, yql, "!(archived = true)")
}

// TestToYQLStrategies tests the match clause per strategy
func TestToYQLStrategies(t *testing.T) {
	keyword, err := ToYQL(nil, "col", StrategyKeyword)
	require.NoError(t, err)
	assert.Contains(t, keyword, "userQuery()")
	assert.NotContains(t, keyword, "nearestNeighbor")

	hybrid, err := ToYQL(nil, "col", StrategyHybrid)
	require.NoError(t, err)
	assert.Contains(t, hybrid, "userQuery()")
	assert.Contains(t, hybrid, "nearestNeighbor")
}

// TestToYQLInvalidFilter tests that invalid filters are rejected
func TestToYQLInvalidFilter(t *testing.T) {
	_, err := ToYQL(&Filter{Must: []Condition{{Field: "x"}}}, "col", StrategyNeural)
	require.Error(t, err)
}

// TestTemporalBoost tests recency re-ranking
func TestTemporalBoost(t *testing.T) {
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	old := now.Add(-365 * 24 * time.Hour).Format(time.RFC3339)
	fresh := now.Add(-time.Hour).Format(time.RFC3339)

	results := []SearchResult{
		{EntityID: "old-but-relevant", Score: 0.9, Payload: map[string]interface{}{"modified_at": old}},
		{EntityID: "fresh", Score: 0.5, Payload: map[string]interface{}{"modified_at": fresh}},
	}

	// Weight 0 keeps retrieval order.
	unchanged := ApplyTemporalBoost(results, 0, now)
	assert.Equal(t, "old-but-relevant", unchanged[0].EntityID)

	// Full recency weight flips the order.
	flipped := ApplyTemporalBoost(results, 1, now)
	assert.Equal(t, "fresh", flipped[0].EntityID)

	// Input slice is untouched.
	assert.Equal(t, 0.9, results[0].Score)
}

// TestMockDestination tests the test double itself
func TestMockDestination(t *testing.T) {
	m := NewMockDestination()
	assert.Equal(t, ChunksAndEmbeddings, m.ProcessingRequirement())
	assert.False(t, m.HasKeywordIndex())
}
