// Package source defines the uniform contract for source adapters and the
// short-name registry through which they are discovered. Adapters stream
// entities (and deletion signals) into the pipeline over a channel, update
// their cursor at checkpoints of their own choosing, and perform all outbound
// I/O through the injected rate-limited HTTP client. They never write to
// destinations directly.
package source

import (
	"context"
	"net/http"

	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/entity"
	"github.com/sanchitsharma77/airweave-sub002/ratelimit"
)

// Credentials carries the decrypted auth material for a connection.
type Credentials map[string]interface{}

// Config carries the per-connection adapter configuration.
type Config map[string]interface{}

// HTTPDoer is the outbound HTTP surface handed to adapters. In production it
// is the rate-limited wrapper; tests inject fakes.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenManager refreshes OAuth access tokens for adapters that need them.
type TokenManager interface {
	AccessToken(ctx context.Context) (string, error)
}

// FileDownloader stages remote files into the job's temp directory and
// returns the local path.
type FileDownloader interface {
	Download(ctx context.Context, url, entityID, name string) (string, error)
}

// Options bundles the injected collaborators of an adapter.
type Options struct {
	HTTPClient   HTTPDoer
	TokenManager TokenManager
	Downloader   FileDownloader
	Logger       *common.ContextLogger
	Cursor       *Cursor
}

// Source is a running adapter bound to one connection. GenerateEntities
// publishes a lazy, finite sequence of entities through out; it returns when
// the stream is exhausted or ctx is cancelled. The channel is owned by the
// caller and must not be closed by the adapter.
type Source interface {
	GenerateEntities(ctx context.Context, out chan<- *entity.Entity) error
}

// Validator is implemented by adapters that can verify credentials during
// connection creation.
type Validator interface {
	Validate(ctx context.Context) error
}

// CursorSchema declares the typed fields of an adapter's cursor. Keys are
// field names, values are one of "string", "number", "bool". An empty schema
// means the cursor is fully opaque.
type CursorSchema map[string]string

// WithCursorSchema is implemented by adapters that declare a typed cursor.
type WithCursorSchema interface {
	CursorSchema() CursorSchema
}

// Factory builds an adapter instance for one connection.
type Factory func(ctx context.Context, creds Credentials, cfg Config, opts Options) (Source, error)

// Metadata describes an adapter to the registry and the outer layers.
type Metadata struct {
	ShortName          string
	Label              string
	AuthMethods        []string
	OAuthType          string
	SupportsContinuous bool
	RateLimitScope     ratelimit.Scope
	Labels             []string
}

// Registration pairs a factory with its metadata.
type Registration struct {
	Factory  Factory
	Metadata Metadata
}
