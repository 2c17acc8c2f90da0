// Dexmirror - Offline Pokédex Mirror and Sync Engine
// Copyright 2026 Dexmirror contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dexmirror/dexmirror

package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dexmirror/dexmirror/config"
)

// openTestDB creates a fresh database in a per-test temp directory.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(&config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		CacheKB:     8000,
		BusyTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})
	return db
}

func TestNew_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	db, err := New(&config.DatabaseConfig{Path: path, CacheKB: 8000, BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("Expected nested directory creation, got %v", err)
	}
	defer db.Close()
}

func TestNew_ReopenExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	cfg := &config.DatabaseConfig{Path: path, CacheKB: 8000, BusyTimeout: time.Second}

	db, err := New(cfg)
	if err != nil {
		t.Fatalf("First open failed: %v", err)
	}
	db.Close()

	// Schema creation must be idempotent on reopen
	db, err = New(cfg)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	db.Close()
}

func TestApplyPragmas(t *testing.T) {
	db := openTestDB(t)

	var journalMode string
	if err := db.Conn().QueryRow(`PRAGMA journal_mode`).Scan(&journalMode); err != nil {
		t.Fatalf("Failed to read journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode wal, got %q", journalMode)
	}

	var fk int
	if err := db.Conn().QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("Failed to read foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("Expected foreign_keys on, got %d", fk)
	}
}
