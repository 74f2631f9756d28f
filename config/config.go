// Package config provides common configuration loading and management
// utilities for Airweave components. This package includes standard
// environment variable loading, validation, and the tuning knobs of the sync
// and search pipelines.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig provides utilities for loading configuration from environment variables
type EnvConfig struct {
	prefix string // Optional prefix for all environment variables
}

// NewEnvConfig creates a new environment configuration loader
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{
		prefix: prefix,
	}
}

// GetString retrieves a string value from environment with optional default
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		return value
	}
	return defaultValue
}

// MustGetString retrieves a required string value from environment or panics
func (ec *EnvConfig) MustGetString(key string) string {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	return value
}

// GetInt retrieves an integer value from environment with optional default
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetBool retrieves a boolean value from environment with optional default
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDuration retrieves a duration value from environment with optional default
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetStringSlice retrieves a comma-separated string slice from environment
func (ec *EnvConfig) GetStringSlice(key string, defaultValue []string) []string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

// buildKey builds the full environment variable key with optional prefix
func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// SyncConfig contains the tuning knobs of the sync pipeline. Defaults match
// the documented pipeline geometry; every knob is env-overridable with the
// AIRWEAVE prefix.
type SyncConfig struct {
	StreamQueueSize    int           // bounded stream queue capacity
	WorkerCount        int           // bounded worker pool size
	BatchSize          int           // micro-batch size per worker
	BatchMaxLatency    time.Duration // partial flush deadline
	ThreadPoolSize     int           // shared pool for CPU-bound work
	PublishThreshold   int           // progress publish every N operations
	DestinationTimeout time.Duration // per destination call
}

// LoadSyncConfig loads sync pipeline configuration from environment
func LoadSyncConfig() SyncConfig {
	env := NewEnvConfig("AIRWEAVE_SYNC")
	return SyncConfig{
		StreamQueueSize:    env.GetInt("STREAM_QUEUE_SIZE", 10000),
		WorkerCount:        env.GetInt("WORKERS", 20),
		BatchSize:          env.GetInt("BATCH_SIZE", 64),
		BatchMaxLatency:    env.GetDuration("BATCH_MAX_LATENCY", 200*time.Millisecond),
		ThreadPoolSize:     env.GetInt("THREAD_POOL_SIZE", 100),
		PublishThreshold:   env.GetInt("PUBLISH_THRESHOLD", 100),
		DestinationTimeout: env.GetDuration("DESTINATION_TIMEOUT", 60*time.Second),
	}
}

// RedisConfig contains Redis connection configuration shared by the rate
// limiters and the progress publisher.
type RedisConfig struct {
	URL string
}

// LoadRedisConfig loads Redis configuration from environment
func LoadRedisConfig() RedisConfig {
	env := NewEnvConfig("AIRWEAVE")
	return RedisConfig{
		URL: env.GetString("REDIS_URL", "redis://localhost:6379/0"),
	}
}

// DatabaseConfig contains relational metadata store configuration
type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// LoadDatabaseConfig loads metadata store configuration from environment
func LoadDatabaseConfig() DatabaseConfig {
	env := NewEnvConfig("AIRWEAVE_DB")
	return DatabaseConfig{
		DSN:             env.GetString("DSN", "host=localhost user=airweave dbname=airweave sslmode=disable"),
		MaxIdleConns:    env.GetInt("MAX_IDLE_CONNS", 10),
		MaxOpenConns:    env.GetInt("MAX_OPEN_CONNS", 100),
		ConnMaxLifetime: env.GetDuration("CONN_MAX_LIFETIME", time.Hour),
	}
}

// StorageConfig selects and configures the storage backend for archives and
// temp files.
type StorageConfig struct {
	Backend    string // "local" or "s3"
	LocalRoot  string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
}

// LoadStorageConfig loads storage backend configuration from environment
func LoadStorageConfig() StorageConfig {
	env := NewEnvConfig("AIRWEAVE_STORAGE")
	return StorageConfig{
		Backend:    env.GetString("BACKEND", "local"),
		LocalRoot:  env.GetString("LOCAL_ROOT", "/var/lib/airweave"),
		S3Bucket:   env.GetString("S3_BUCKET", ""),
		S3Region:   env.GetString("S3_REGION", "us-east-1"),
		S3Endpoint: env.GetString("S3_ENDPOINT", ""),
	}
}

// ServiceConfig contains common service configuration
type ServiceConfig struct {
	Name        string
	Environment string
	LogLevel    string
	LogFormat   string
}

// LoadServiceConfig loads service configuration from environment
func LoadServiceConfig(prefix string) ServiceConfig {
	env := NewEnvConfig(prefix)
	return ServiceConfig{
		Name:        env.GetString("NAME", "airweave"),
		Environment: env.GetString("ENVIRONMENT", "development"),
		LogLevel:    env.GetString("LOG_LEVEL", "info"),
		LogFormat:   env.GetString("LOG_FORMAT", "text"),
	}
}
