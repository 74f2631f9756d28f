package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalBackend stores everything under a root directory on the local
// filesystem. Suitable for development, single-pod deployments, and
// PVC-mounted volumes.
type LocalBackend struct {
	root string
}

// NewLocalBackend creates a local backend rooted at dir, creating it if
// needed.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalBackend{root: dir}, nil
}

func (l *LocalBackend) abs(path string) string {
	return filepath.Join(l.root, filepath.FromSlash(path))
}

// ReadJSON reads and decodes a JSON document
func (l *LocalBackend) ReadJSON(ctx context.Context, path string) (map[string]interface{}, error) {
	data, err := l.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	var value map[string]interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("failed to decode JSON at %s: %w", path, err)
	}
	return value, nil
}

// WriteJSON encodes and writes a JSON document
func (l *LocalBackend) WriteJSON(ctx context.Context, path string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON for %s: %w", path, err)
	}
	return l.WriteFile(ctx, path, strings.NewReader(string(data)))
}

// ReadFile reads raw bytes
func (l *LocalBackend) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(l.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStorageNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// WriteFile streams content to the path
func (l *LocalBackend) WriteFile(_ context.Context, path string, content io.Reader) error {
	target := l.abs(path)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create parent dir for %s: %w", path, err)
	}

	// Write through a temp file so a crashed write never leaves a truncated
	// document at the final path.
	tmp, err := os.CreateTemp(filepath.Dir(target), ".write-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return nil
}

// ListFiles returns all paths under the prefix
func (l *LocalBackend) ListFiles(_ context.Context, prefix string) ([]string, error) {
	base := l.abs(prefix)
	var paths []string
	err := filepath.Walk(base, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	return paths, nil
}

// DeletePath removes a file or subtree
func (l *LocalBackend) DeletePath(_ context.Context, path string) error {
	if err := os.RemoveAll(l.abs(path)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}
