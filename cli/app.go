package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/config"
	"github.com/sanchitsharma77/airweave-sub002/db"
	"github.com/sanchitsharma77/airweave-sub002/destination"
	"github.com/sanchitsharma77/airweave-sub002/entity"
	"github.com/sanchitsharma77/airweave-sub002/pubsub"
	"github.com/sanchitsharma77/airweave-sub002/ratelimit"
	"github.com/sanchitsharma77/airweave-sub002/source"
	"github.com/sanchitsharma77/airweave-sub002/storage"
)

// App bundles the wired platform components shared by the CLI commands.
type App struct {
	Logger       *common.ContextLogger
	DB           *gorm.DB
	Redis        redis.UniversalClient
	Storage      storage.Backend
	Publisher    *pubsub.Publisher
	Sources      *source.Registry
	Destinations *destination.Registry
	Entities     *entity.Registry
	Defaults     *config.SearchDefaults

	EntityStore *db.EntityStore
	JobStore    *db.JobStore
	CursorStore *db.CursorStore
	SlotStore   *db.SlotStore
	Limits      *db.RateLimitStore

	SourceLimiter *ratelimit.SourceLimiter
	ClientLimiter *ratelimit.ClientLimiter
}

// NewApp wires the platform from configuration.
func NewApp(ctx context.Context) (*App, error) {
	logger := common.NewContextLogger(common.Logger, map[string]interface{}{"service": "airweave"})

	dbCfg := config.LoadDatabaseConfig()
	if dsn := viper.GetString("db.dsn"); dsn != "" {
		dbCfg.DSN = dsn
	}
	gdb, err := db.Connect(dbCfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(gdb); err != nil {
		return nil, err
	}

	redisURL := viper.GetString("redis.url")
	if redisURL == "" {
		redisURL = config.LoadRedisConfig().URL
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	storageCfg := config.LoadStorageConfig()
	if backend := viper.GetString("storage.backend"); backend != "" {
		storageCfg.Backend = backend
	}
	if root := viper.GetString("storage.root"); root != "" {
		storageCfg.LocalRoot = root
	}
	var backend storage.Backend
	switch storageCfg.Backend {
	case "s3":
		backend, err = storage.NewS3Backend(ctx, storage.S3Config{
			Bucket:   storageCfg.S3Bucket,
			Region:   storageCfg.S3Region,
			Endpoint: storageCfg.S3Endpoint,
		})
	default:
		backend, err = storage.NewLocalBackend(storageCfg.LocalRoot)
	}
	if err != nil {
		return nil, err
	}

	defaults, err := config.LoadSearchDefaults(viper.GetString("search.defaults"))
	if err != nil {
		return nil, err
	}

	limits := db.NewRateLimitStore(gdb)

	app := &App{
		Logger:        logger,
		DB:            gdb,
		Redis:         redisClient,
		Storage:       backend,
		Publisher:     pubsub.NewPublisher(redisClient),
		Sources:       source.NewRegistry(),
		Destinations:  destination.NewRegistry(),
		Entities:      entity.NewRegistry(),
		Defaults:      defaults,
		EntityStore:   db.NewEntityStore(gdb),
		JobStore:      db.NewJobStore(gdb),
		CursorStore:   db.NewCursorStore(gdb),
		SlotStore:     db.NewSlotStore(gdb),
		Limits:        limits,
		SourceLimiter: ratelimit.NewSourceLimiter(redisClient, limits, logger),
		ClientLimiter: ratelimit.NewClientLimiter(redisClient, logger),
	}
	registerBuiltins(app)
	return app, nil
}

// registerBuiltins populates the registries with the destinations shipped in
// this module. Source adapters are external plug-ins and register themselves
// through the same tables.
func registerBuiltins(app *App) {
	app.Destinations.Register(destination.Registration{
		Metadata: destination.Metadata{ShortName: "qdrant", Label: "Qdrant"},
		Factory: func(ctx context.Context, creds destination.Credentials, cfg destination.Config, collectionID string, vectorSize int) (destination.Destination, error) {
			host, _ := cfg["host"].(string)
			apiKey, _ := creds["api_key"].(string)
			port := 6334
			switch v := cfg["port"].(type) {
			case int:
				port = v
			case float64: // JSON-decoded configs carry numbers as float64
				port = int(v)
			}
			return destination.NewQdrant(ctx, destination.QdrantConfig{
				Host: host, Port: port, APIKey: apiKey,
			}, collectionID, vectorSize)
		},
	})
	app.Destinations.Register(destination.Registration{
		Metadata: destination.Metadata{ShortName: "vespa", Label: "Vespa"},
		Factory: func(ctx context.Context, creds destination.Credentials, cfg destination.Config, collectionID string, vectorSize int) (destination.Destination, error) {
			endpoint, _ := cfg["endpoint"].(string)
			return destination.NewVespa(ctx, destination.VespaConfig{Endpoint: endpoint}, collectionID, vectorSize)
		},
	})
}

// Close releases the app's connections.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
