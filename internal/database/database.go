// Dexmirror - Offline Pokédex Mirror and Sync Engine
// Copyright 2026 Dexmirror contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dexmirror/dexmirror

// Package database owns the local SQLite schema and every read and write
// the engine performs against it.
//
// Design rules:
//   - The DB handle is injected into every component that needs it; there
//     is no ambient global connection.
//   - All writes happen inside explicit transactions. Join tables are
//     replaced wholesale (delete-then-reinsert) on deep updates.
//   - Duplicate unique-key violations from racing writers are treated as
//     "already exists" and resolved by re-reading, never surfaced.
//   - Deep writes to the same species id are serialized with a per-id
//     mutex; writes to different ids do not block each other.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/dexmirror/dexmirror/config"
	"github.com/dexmirror/dexmirror/internal/logging"
)

// DB wraps the SQLite connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	// Per-species write locks for concurrent deep upserts.
	speciesLocks sync.Map
}

// New opens (creating if necessary) the database at cfg.Path, applies the
// engine pragmas and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	conn, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Path, err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY
	// churn between the sync workers while readers still share it freely
	// in WAL mode.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, cfg: cfg}

	if err := db.applyPragmas(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := db.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logging.Info().Str("path", cfg.Path).Msg("Database initialized")
	return db, nil
}

// applyPragmas configures the connection for bulk-insert-heavy workloads:
// WAL journaling, relaxed (NORMAL) synchronous durability and a
// multi-megabyte page cache.
func (db *DB) applyPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", db.cfg.BusyTimeout.Milliseconds()),
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA cache_size=-%d", db.cfg.CacheKB),
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.conn.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the raw handle for tests.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// acquireSpeciesLock locks the per-species write mutex for id.
func (db *DB) acquireSpeciesLock(id int64) *sync.Mutex {
	v, _ := db.speciesLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu
}

// withTx runs fn inside a transaction, rolling back on error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
