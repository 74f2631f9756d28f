package destination

import (
	"fmt"
	"time"
)

// Filter is the Qdrant-shaped filter model every destination accepts. A
// condition matches when its single set clause matches; a filter matches when
// all Must, at least one Should (if any), and none of MustNot match.
type Filter struct {
	Must    []Condition `json:"must,omitempty"`
	Should  []Condition `json:"should,omitempty"`
	MustNot []Condition `json:"must_not,omitempty"`
}

// Condition is one field predicate. Exactly one of Match, Range, or
// DatetimeRange is set.
type Condition struct {
	Field         string         `json:"field"`
	Match         *MatchValue    `json:"match,omitempty"`
	Range         *RangeValue    `json:"range,omitempty"`
	DatetimeRange *DatetimeRange `json:"datetime_range,omitempty"`
}

// MatchValue matches a field against a single value or any of a list.
type MatchValue struct {
	Value interface{}   `json:"value,omitempty"`
	Any   []interface{} `json:"any,omitempty"`
}

// RangeValue is a numeric range; nil bounds are open.
type RangeValue struct {
	GTE *float64 `json:"gte,omitempty"`
	GT  *float64 `json:"gt,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
	LT  *float64 `json:"lt,omitempty"`
}

// DatetimeRange is a timestamp range; nil bounds are open.
type DatetimeRange struct {
	GTE *time.Time `json:"gte,omitempty"`
	LTE *time.Time `json:"lte,omitempty"`
}

// Validate rejects structurally invalid filters before they reach an engine.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	for _, group := range [][]Condition{f.Must, f.Should, f.MustNot} {
		for _, cond := range group {
			if err := cond.validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Condition) validate() error {
	if c.Field == "" {
		return fmt.Errorf("filter condition missing field")
	}
	set := 0
	if c.Match != nil {
		set++
	}
	if c.Range != nil {
		set++
	}
	if c.DatetimeRange != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("filter condition on %s must set exactly one of match, range, datetime_range", c.Field)
	}
	if c.Match != nil && c.Match.Value == nil && len(c.Match.Any) == 0 {
		return fmt.Errorf("match condition on %s has no value", c.Field)
	}
	return nil
}

// Merge combines two filters by concatenating their clause lists. Used to
// compose the caller's filter with interpreted and tenant conditions.
func Merge(a, b *Filter) *Filter {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return &Filter{
		Must:    append(append([]Condition{}, a.Must...), b.Must...),
		Should:  append(append([]Condition{}, a.Should...), b.Should...),
		MustNot: append(append([]Condition{}, a.MustNot...), b.MustNot...),
	}
}

// MatchField is a convenience constructor for a single-value match condition.
func MatchField(field string, value interface{}) Condition {
	return Condition{Field: field, Match: &MatchValue{Value: value}}
}
