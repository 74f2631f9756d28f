package source

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Cursor is the per-sync opaque key-value state used for incremental pulls.
// The adapter updates it at checkpoints of its own choosing; the orchestrator
// persists it once at sync end. Single-writer, single-reader within a job,
// but guarded anyway since the adapter and the orchestrator touch it from
// different goroutines.
type Cursor struct {
	mu    sync.Mutex
	data  map[string]interface{}
	dirty bool
}

// NewCursor creates a cursor from previously persisted JSON data. nil data
// yields an empty cursor.
func NewCursor(data []byte) (*Cursor, error) {
	cursor := &Cursor{data: make(map[string]interface{})}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &cursor.data); err != nil {
			return nil, fmt.Errorf("failed to decode cursor data: %w", err)
		}
	}
	return cursor, nil
}

// Get returns the value for a cursor field.
func (c *Cursor) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.data[key]
	return value, ok
}

// GetString returns a string-typed cursor field, or "" when absent.
func (c *Cursor) GetString(key string) string {
	value, ok := c.Get(key)
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return s
}

// Set updates a cursor field and marks the cursor dirty.
func (c *Cursor) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.dirty = true
}

// Dirty reports whether the cursor changed since it was loaded.
func (c *Cursor) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Marshal validates the cursor against the adapter's schema (when declared)
// and returns its JSON encoding.
func (c *Cursor) Marshal(schema CursorSchema) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for field, typeName := range schema {
		value, ok := c.data[field]
		if !ok || value == nil {
			continue
		}
		if err := checkCursorType(field, typeName, value); err != nil {
			return nil, err
		}
	}

	data, err := json.Marshal(c.data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cursor: %w", err)
	}
	return data, nil
}

func checkCursorType(field, typeName string, value interface{}) error {
	switch typeName {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("cursor field %s: expected string, got %T", field, value)
		}
	case "number":
		switch value.(type) {
		case int, int64, float64:
		default:
			return fmt.Errorf("cursor field %s: expected number, got %T", field, value)
		}
	case "bool":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("cursor field %s: expected bool, got %T", field, value)
		}
	default:
		return fmt.Errorf("cursor field %s: unknown schema type %q", field, typeName)
	}
	return nil
}
