// Package storage provides the storage abstraction backing the raw-archive
// store and file staging for the sync pipeline. Two backends exist: a local
// filesystem backend for development and single-pod (or PVC-mounted)
// deployments, and an S3-compatible object store backend for everything else.
//
// Paths handed to a Backend are forward-slash relative paths; the backend maps
// them onto its own namespace. Names that would be unsafe on either backend
// are sanitized up front with SafeName.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrStorageNotFound is returned when a requested path does not exist.
var ErrStorageNotFound = errors.New("storage: path not found")

// Backend is the minimal storage interface used by the archive and the file
// staging layer.
type Backend interface {
	// ReadJSON reads and decodes a JSON document. Returns ErrStorageNotFound
	// if the path does not exist.
	ReadJSON(ctx context.Context, path string) (map[string]interface{}, error)

	// WriteJSON encodes and writes a JSON document, overwriting any existing
	// content at the path.
	WriteJSON(ctx context.Context, path string, value interface{}) error

	// ReadFile reads raw bytes. Returns ErrStorageNotFound if missing.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile streams content to the path, overwriting existing content.
	WriteFile(ctx context.Context, path string, content io.Reader) error

	// ListFiles returns all paths under the prefix.
	ListFiles(ctx context.Context, prefix string) ([]string, error)

	// DeletePath removes a file, or a whole subtree when the path is a
	// prefix. Deleting a missing path is not an error.
	DeletePath(ctx context.Context, path string) error
}
