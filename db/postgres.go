// Package db provides the PostgreSQL metadata store for the sync platform,
// built on GORM. It owns the relational tables backing entity tracking, sync
// configuration, job history, destination slots, cursors, source rate limits,
// and collections.
//
// Connection Management:
//
//	The package configures PostgreSQL connection pooling with
//	production-ready settings: maximum idle connections for resource
//	efficiency, maximum open connections for load management, and
//	connection lifetime management for stability.
package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sanchitsharma77/airweave-sub002/config"
)

// Connect opens the metadata store and configures its connection pool.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to metadata store: %w", err)
	}

	// Get underlying sql.DB for connection pool configuration
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return gdb, nil
}

// Migrate ensures the schema is up to date with the current model
// definitions.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&Entity{},
		&Sync{},
		&SyncJob{},
		&SyncConnection{},
		&SyncCursor{},
		&SourceRateLimit{},
		&Collection{},
		&Connection{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
