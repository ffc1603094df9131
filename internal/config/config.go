// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New returns a Config populated with defaults.
// - Load layers a YAML file and environment variables on top of New.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Corrupt document policies.
const (
	OnCorruptFail  = "fail"
	OnCorruptReset = "reset"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorageBackend is one of file, postgres, memory.
	StorageBackend string `koanf:"storage_backend"`

	// DataFile is the JSON document path for the file backend.
	DataFile string `koanf:"data_file"`

	// PostgresDSN is required for the postgres backend.
	PostgresDSN string `koanf:"postgres_dsn"`

	// DocumentID names the row holding the document in postgres.
	DocumentID string `koanf:"document_id"`

	// OnCorrupt decides what happens when the stored document cannot be decoded.
	OnCorrupt string `koanf:"on_corrupt"`

	// MaxRankingLimit caps GET /ranking?limit.
	MaxRankingLimit int `koanf:"max_ranking_limit"`

	// IdempotencyKeys bounds how many Idempotency-Key values are remembered.
	IdempotencyKeys int `koanf:"idempotency_keys"`

	// ImportWorkers is the number of workers applying a CSV import.
	ImportWorkers int `koanf:"import_workers"`

	// ImportQueueCapacity bounds each import worker's queue.
	ImportQueueCapacity int `koanf:"import_queue_capacity"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		StorageBackend:      BackendFile,
		DataFile:            "scores.json",
		DocumentID:          "default",
		OnCorrupt:           OnCorruptFail,
		MaxRankingLimit:     100,
		IdempotencyKeys:     10_000,
		ImportWorkers:       4,
		ImportQueueCapacity: 256,
	}
}

// Validate checks field combinations.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.StorageBackend {
	case BackendFile:
		if strings.TrimSpace(c.DataFile) == "" {
			return fmt.Errorf("%w: data_file must not be empty for the file backend", ErrInvalidConfig)
		}
	case BackendPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("%w: postgres_dsn is required for the postgres backend", ErrInvalidConfig)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown storage_backend %q", ErrInvalidConfig, c.StorageBackend)
	}
	switch c.OnCorrupt {
	case OnCorruptFail, OnCorruptReset:
	default:
		return fmt.Errorf("%w: on_corrupt must be fail or reset, got %q", ErrInvalidConfig, c.OnCorrupt)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.MaxRankingLimit <= 0 {
		return fmt.Errorf("%w: max_ranking_limit must be positive", ErrInvalidConfig)
	}
	if c.IdempotencyKeys <= 0 {
		return fmt.Errorf("%w: idempotency_keys must be positive", ErrInvalidConfig)
	}
	if c.ImportWorkers <= 0 || c.ImportQueueCapacity <= 0 {
		return fmt.Errorf("%w: import_workers and import_queue_capacity must be positive", ErrInvalidConfig)
	}
	return nil
}
