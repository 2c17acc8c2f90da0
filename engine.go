// Dexmirror - Offline Pokédex Mirror and Sync Engine
// Copyright 2026 Dexmirror contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dexmirror/dexmirror

// Package dexmirror mirrors the PokeAPI catalog into a local SQLite store
// and keeps it incrementally synchronized.
//
// The package is a library, not a service: embedding applications call
// Open with a configuration, run Sync (foreground for a quick stub
// complement, background for a full deep pass), and read species through
// Query and EnsureComplete. All remote access fails soft; the local store
// is always a consistent, if possibly incomplete, mirror.
//
// Usage:
//
//	cfg, err := config.Load()
//	if err != nil { ... }
//	eng, err := dexmirror.Open(cfg)
//	if err != nil { ... }
//	defer eng.Close()
//
//	result := eng.Sync(ctx, true, func(phase string, done, total int) {
//		log.Printf("%s: %d/%d", phase, done, total)
//	})
package dexmirror

import (
	"context"
	"fmt"

	"github.com/dexmirror/dexmirror/config"
	"github.com/dexmirror/dexmirror/internal/database"
	"github.com/dexmirror/dexmirror/internal/logging"
	"github.com/dexmirror/dexmirror/internal/sync"
	"github.com/dexmirror/dexmirror/pkg/models"
)

// ErrNotFound is returned by EnsureComplete for an id the local store and
// the remote catalog both lack.
var ErrNotFound = database.ErrNotFound

// Engine is the public handle over the store, remote client and sync
// orchestrator. Safe for concurrent use.
type Engine struct {
	db      *database.DB
	manager *sync.Manager
}

// Open validates cfg, opens (or creates) the local store and wires the
// remote client and sync orchestrator. A nil cfg uses defaults.
func Open(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	client := sync.NewClient(&cfg.Remote)
	manager := sync.NewManager(db, client, &cfg.Sync)

	logging.Info().Str("db_path", cfg.Database.Path).Msg("Engine opened")
	return &Engine{db: db, manager: manager}, nil
}

// Sync runs a synchronization pass. background selects the deep phase;
// onProgress may be nil. A pass that overlaps a running one is reported
// as skipped. Failures are recorded in the sync state, not returned;
// poll LastSyncStatus.
func (e *Engine) Sync(ctx context.Context, background bool, onProgress models.ProgressFunc) models.SyncResult {
	return e.manager.Sync(ctx, background, onProgress)
}

// EnsureComplete returns the species with the given id, deep-fetching it
// first if the stored row is incomplete. When the remote has no data the
// stored stub is returned as-is; an unknown id yields ErrNotFound.
func (e *Engine) EnsureComplete(ctx context.Context, id int64) (*models.Species, error) {
	return e.manager.EnsureComplete(ctx, id)
}

// Query returns species whose name contains search (empty matches all),
// ordered by id, with offset/limit pagination, plus the total match count.
// Rows carry scalars only; use EnsureComplete for relations.
func (e *Engine) Query(ctx context.Context, search string, offset, limit int) ([]models.Species, int, error) {
	return e.db.Query(ctx, search, offset, limit)
}

// LastSyncStatus returns the state of the most recent sync run. Before
// any run the zero state is returned.
func (e *Engine) LastSyncStatus(ctx context.Context) (models.SyncState, error) {
	return e.manager.LastSyncStatus(ctx)
}

// FormsOf lists the remote-reported varieties of a species with derived
// form names. Empty when the remote has no data for the id.
func (e *Engine) FormsOf(ctx context.Context, id int64) ([]models.Form, error) {
	return e.manager.FormsOf(ctx, id)
}

// TypeEfficacy returns the stored non-neutral damage multipliers dealt by
// the named attacking type, keyed by defending type name.
func (e *Engine) TypeEfficacy(ctx context.Context, attackingType string) (map[string]float64, error) {
	return e.db.TypeEfficacy(ctx, attackingType)
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	return e.db.Close()
}
