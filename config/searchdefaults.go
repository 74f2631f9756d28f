package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SearchDefaults carries the startup defaults for the search pipeline. All
// keys are required; a missing key or malformed YAML aborts startup, so a
// deployment can never silently run with half-configured search behavior.
type SearchDefaults struct {
	RetrievalStrategy string  `yaml:"retrieval_strategy"`
	Offset            *int    `yaml:"offset"`
	Limit             *int    `yaml:"limit"`
	TemporalRelevance *float64 `yaml:"temporal_relevance"`
	ExpandQuery       *bool   `yaml:"expand_query"`
	InterpretFilters  *bool   `yaml:"interpret_filters"`
	Rerank            *bool   `yaml:"rerank"`
	GenerateAnswer    *bool   `yaml:"generate_answer"`
}

// LoadSearchDefaults reads and validates search_defaults.yml.
func LoadSearchDefaults(path string) (*SearchDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read search defaults: %w", err)
	}
	return ParseSearchDefaults(data)
}

// ParseSearchDefaults parses and validates the raw YAML document.
func ParseSearchDefaults(data []byte) (*SearchDefaults, error) {
	var defaults SearchDefaults
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return nil, fmt.Errorf("failed to parse search defaults: %w", err)
	}

	missing := []string{}
	if defaults.RetrievalStrategy == "" {
		missing = append(missing, "retrieval_strategy")
	}
	if defaults.Offset == nil {
		missing = append(missing, "offset")
	}
	if defaults.Limit == nil {
		missing = append(missing, "limit")
	}
	if defaults.TemporalRelevance == nil {
		missing = append(missing, "temporal_relevance")
	}
	if defaults.ExpandQuery == nil {
		missing = append(missing, "expand_query")
	}
	if defaults.InterpretFilters == nil {
		missing = append(missing, "interpret_filters")
	}
	if defaults.Rerank == nil {
		missing = append(missing, "rerank")
	}
	if defaults.GenerateAnswer == nil {
		missing = append(missing, "generate_answer")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("search defaults missing required keys: %v", missing)
	}

	switch defaults.RetrievalStrategy {
	case "hybrid", "neural", "keyword":
	default:
		return nil, fmt.Errorf("search defaults: unknown retrieval_strategy %q", defaults.RetrievalStrategy)
	}

	return &defaults, nil
}
