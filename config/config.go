// Dexmirror - Offline Pokédex Mirror and Sync Engine
// Copyright 2026 Dexmirror contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dexmirror/dexmirror

// Package config holds all engine configuration, loaded in layers
// (defaults, optional YAML file, environment variables) via Koanf v2.
//
// Configuration Loading Order:
//  1. Defaults: built-in sensible defaults for every setting
//  2. Config File: optional YAML file (DEXMIRROR_CONFIG or ./config.yaml)
//  3. Environment Variables: DEXMIRROR_-prefixed overrides, e.g.
//     DEXMIRROR_REMOTE_BASE_URL, DEXMIRROR_DATABASE_PATH,
//     DEXMIRROR_SYNC_WORKERS
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all engine configuration.
type Config struct {
	Remote   RemoteConfig   `koanf:"remote"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// RemoteConfig holds settings for the upstream catalog API client.
type RemoteConfig struct {
	// BaseURL is the versioned API root, without a trailing slash.
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// Timeout bounds a single HTTP request. A slow remote degrades the
	// individual fetch to "no data", it never hangs the orchestrator.
	Timeout time.Duration `koanf:"timeout" validate:"min=1s,max=60s"`

	// RequestsPerSecond paces outbound requests during bulk deep syncs.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gt=0"`

	// UserAgent is sent with every request.
	UserAgent string `koanf:"user_agent"`

	// CacheSize is the capacity of the URL-keyed response cache.
	CacheSize int `koanf:"cache_size" validate:"gt=0"`
}

// DatabaseConfig holds settings for the local SQLite store.
type DatabaseConfig struct {
	// Path is the database file location. The parent directory is
	// created on open if missing.
	Path string `koanf:"path" validate:"required"`

	// CacheKB is the SQLite page cache size in kilobytes.
	CacheKB int `koanf:"cache_kb" validate:"gt=0"`

	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration `koanf:"busy_timeout" validate:"min=0"`
}

// SyncConfig holds settings for the two-phase synchronization.
type SyncConfig struct {
	// StubBatchSize is the number of stub rows committed per batch
	// during phase-1 population.
	StubBatchSize int `koanf:"stub_batch_size" validate:"gt=0"`

	// Workers bounds the deep-sync worker pool.
	Workers int `koanf:"workers" validate:"gt=0,lte=32"`

	// ProgressStride controls how often the progress callback fires
	// during deep sync (every N records).
	ProgressStride int `koanf:"progress_stride" validate:"gt=0"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Default returns the built-in defaults. Callers that skip Load() (tests,
// embedded use) start from here and override what they need.
func Default() *Config {
	return &Config{
		Remote: RemoteConfig{
			BaseURL:           "https://pokeapi.co/api/v2",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 10,
			UserAgent:         "dexmirror/1.0",
			CacheSize:         1024,
		},
		Database: DatabaseConfig{
			Path:        "dexmirror.db",
			CacheKB:     64000,
			BusyTimeout: 5 * time.Second,
		},
		Sync: SyncConfig{
			StubBatchSize:  500,
			Workers:        4,
			ProgressStride: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}
