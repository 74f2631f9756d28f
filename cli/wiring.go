package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"gorm.io/gorm"

	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/db"
	"github.com/sanchitsharma77/airweave-sub002/destination"
	"github.com/sanchitsharma77/airweave-sub002/embed"
	"github.com/sanchitsharma77/airweave-sub002/ratelimit"
	"github.com/sanchitsharma77/airweave-sub002/source"
	syncpkg "github.com/sanchitsharma77/airweave-sub002/sync"
)

// collectionForSync resolves a sync's collection.
func collectionForSync(ctx context.Context, app *App, syncID string) (*db.Collection, error) {
	var row db.Sync
	err := app.DB.WithContext(ctx).First(&row, "id = ?", syncID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewError(common.KindNotFound, "sync %s", syncID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sync: %w", err)
	}
	return db.NewCollectionStore(app.DB).Get(ctx, row.CollectionID)
}

// connectionFor loads a connection row and splits it into credentials,
// short name, and config.
func connectionFor(ctx context.Context, app *App, connectionID string) (destination.Credentials, string, destination.Config, error) {
	var row db.Connection
	err := app.DB.WithContext(ctx).First(&row, "id = ?", connectionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", nil, common.NewError(common.KindNotFound, "connection %s", connectionID)
	}
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load connection: %w", err)
	}

	cfg := destination.Config{}
	if len(row.Config) > 0 {
		if err := json.Unmarshal(row.Config, &cfg); err != nil {
			return nil, "", nil, fmt.Errorf("failed to decode connection config: %w", err)
		}
	}
	creds := destination.Credentials{}
	if raw, ok := cfg["credentials"].(map[string]interface{}); ok {
		creds = raw
	}
	return creds, row.ShortName, cfg, nil
}

// buildSource instantiates the sync's source adapter with its injected
// collaborators: the rate-limited HTTP client, the file downloader, the
// cursor, and a scoped logger.
func buildSource(ctx context.Context, app *App, syncID, jobID string, cfg syncpkg.Config) (source.Source, *source.Cursor, source.CursorSchema, error) {
	var row db.Sync
	err := app.DB.WithContext(ctx).First(&row, "id = ?", syncID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil, common.NewError(common.KindNotFound, "sync %s", syncID)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load sync: %w", err)
	}

	var conn db.Connection
	err = app.DB.WithContext(ctx).First(&conn, "id = ?", row.SourceConnectionID).Error
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load source connection: %w", err)
	}

	reg, ok := app.Sources.Lookup(conn.ShortName)
	if !ok {
		return nil, nil, nil, common.NewError(common.KindNotFound, "source adapter %q not registered", conn.ShortName)
	}

	var cursorData []byte
	if !cfg.Cursor.SkipLoad {
		cursorData, err = app.CursorStore.Load(ctx, syncID)
		if err != nil {
			// Cursor load failures are non-fatal in isolation: a full pull
			// is always a correct, if slower, answer.
			app.Logger.WithError(err).Warn("failed to load cursor, starting from scratch")
			cursorData = nil
		}
	}
	cursor, err := source.NewCursor(cursorData)
	if err != nil {
		return nil, nil, nil, err
	}

	httpClient := ratelimit.NewHTTPClient(ratelimit.HTTPClientConfig{
		OrganizationID:  conn.OrganizationID,
		SourceShortName: conn.ShortName,
		ConnectionID:    conn.ID,
	}, app.SourceLimiter, app.Redis, app.Logger)

	var creds source.Credentials
	var srcCfg source.Config
	if len(conn.Config) > 0 {
		if err := json.Unmarshal(conn.Config, &srcCfg); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to decode source config: %w", err)
		}
		if raw, ok := srcCfg["credentials"].(map[string]interface{}); ok {
			creds = raw
		}
	}

	src, err := reg.Factory(ctx, creds, srcCfg, source.Options{
		HTTPClient: httpClient,
		Downloader: source.NewDownloader(httpClient, jobID),
		Logger:     app.Logger.WithField("source", conn.ShortName),
		Cursor:     cursor,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create source adapter: %w", err)
	}

	var schema source.CursorSchema
	if typed, ok := src.(source.WithCursorSchema); ok {
		schema = typed.CursorSchema()
	}
	return src, cursor, schema, nil
}

// buildEmbedder creates the embedding service for a collection.
func buildEmbedder(app *App, modelName string, vectorSize int) (*embed.Service, error) {
	llm, err := openai.New(openai.WithEmbeddingModel(modelName))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	dense, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embed.NewService(dense, vectorSize, app.Logger), nil
}
