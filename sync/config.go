// Package sync implements the streaming sync pipeline: a bounded stream from
// the source, a bounded worker pool over micro-batches, hash-based action
// resolution against the metadata store, chunking and embedding, concurrent
// dispatch to destination handlers with the metadata write strictly last,
// orphan reclamation, cursor persistence, and live progress tracking.
package sync

import (
	"encoding/json"
	"fmt"

	"github.com/sanchitsharma77/airweave-sub002/common"
)

// DestinationConfig selects which destinations a sync writes to.
type DestinationConfig struct {
	SkipQdrant          bool     `json:"skip_qdrant"`
	SkipVespa           bool     `json:"skip_vespa"`
	TargetDestinations  []string `json:"target_destinations,omitempty"`
	ExcludeDestinations []string `json:"exclude_destinations,omitempty"`
}

// HandlerConfig toggles the dispatcher's handlers.
type HandlerConfig struct {
	EnableVectorHandlers  bool `json:"enable_vector_handlers"`
	EnableRawDataHandler  bool `json:"enable_raw_data_handler"`
	EnablePostgresHandler bool `json:"enable_postgres_handler"`
}

// CursorConfig controls cursor usage for a run.
type CursorConfig struct {
	SkipLoad    bool `json:"skip_load"`
	SkipUpdates bool `json:"skip_updates"`
}

// BehaviorConfig carries pipeline behavior switches.
type BehaviorConfig struct {
	SkipHashComparison bool `json:"skip_hash_comparison"`
	ReplayFromARF      bool `json:"replay_from_arf"`
	ForceFullSync      bool `json:"force_full_sync"`
}

// Config is the persisted declarative sync configuration.
type Config struct {
	Destinations DestinationConfig `json:"destinations"`
	Handlers     HandlerConfig     `json:"handlers"`
	Cursor       CursorConfig      `json:"cursor"`
	Behavior     BehaviorConfig    `json:"behavior"`
}

// Validate rejects contradictory configurations. Overlapping target and
// exclude lists are forbidden outright rather than warned about.
func (c *Config) Validate() error {
	excluded := make(map[string]bool, len(c.Destinations.ExcludeDestinations))
	for _, name := range c.Destinations.ExcludeDestinations {
		excluded[name] = true
	}
	for _, name := range c.Destinations.TargetDestinations {
		if excluded[name] {
			return common.NewError(common.KindValidation,
				"destination %s is both targeted and excluded", name)
		}
	}
	if !c.Handlers.EnableVectorHandlers && !c.Handlers.EnableRawDataHandler && !c.Handlers.EnablePostgresHandler {
		return common.NewError(common.KindValidation, "sync config enables no handlers")
	}
	return nil
}

// Marshal encodes the config for persistence on the job record.
func (c *Config) Marshal() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sync config: %w", err)
	}
	return data, nil
}

// NormalConfig is the default preset: all handlers on, all destinations.
func NormalConfig() Config {
	return Config{
		Handlers: HandlerConfig{
			EnableVectorHandlers:  true,
			EnableRawDataHandler:  true,
			EnablePostgresHandler: true,
		},
	}
}

// QdrantOnlyConfig writes vectors to Qdrant only.
func QdrantOnlyConfig() Config {
	cfg := NormalConfig()
	cfg.Destinations.SkipVespa = true
	return cfg
}

// VespaOnlyConfig writes vectors to Vespa only.
func VespaOnlyConfig() Config {
	cfg := NormalConfig()
	cfg.Destinations.SkipQdrant = true
	return cfg
}

// ArchiveOnlyConfig captures the source into the archive without touching
// vector destinations.
func ArchiveOnlyConfig() Config {
	return Config{
		Handlers: HandlerConfig{
			EnableRawDataHandler:  true,
			EnablePostgresHandler: true,
		},
		Behavior: BehaviorConfig{ForceFullSync: true},
	}
}

// ReplayFromArchiveConfig replays the archive into destinations: the archive
// handler is off (no re-archiving) and the metadata handler is off (read-only
// replay filling a new destination).
func ReplayFromArchiveConfig() Config {
	return Config{
		Handlers: HandlerConfig{EnableVectorHandlers: true},
		Cursor:   CursorConfig{SkipLoad: true, SkipUpdates: true},
		Behavior: BehaviorConfig{SkipHashComparison: true, ReplayFromARF: true},
	}
}
