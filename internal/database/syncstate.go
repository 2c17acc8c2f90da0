// Dexmirror - Offline Pokédex Mirror and Sync Engine
// Copyright 2026 Dexmirror contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dexmirror/dexmirror

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dexmirror/dexmirror/pkg/models"
)

// SyncState reads the singleton sync_state row. found is false when no
// sync has ever been recorded.
func (db *DB) SyncState(ctx context.Context) (state models.SyncState, found bool, err error) {
	var unix int64
	err = db.conn.QueryRowContext(ctx,
		`SELECT last_sync, status FROM sync_state WHERE id = 1`).
		Scan(&unix, &state.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SyncState{}, false, nil
	}
	if err != nil {
		return models.SyncState{}, false, fmt.Errorf("failed to read sync state: %w", err)
	}
	if unix > 0 {
		state.LastSync = time.Unix(unix, 0).UTC()
	}
	return state, true, nil
}

// SetSyncState writes the singleton sync_state row. The zero time is
// stored as 0 and read back as the "never synced" zero value.
func (db *DB) SetSyncState(ctx context.Context, status string, lastSync time.Time) error {
	var unix int64
	if !lastSync.IsZero() {
		unix = lastSync.Unix()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sync_state (id, last_sync, status) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET last_sync = excluded.last_sync, status = excluded.status`,
		unix, status)
	if err != nil {
		return fmt.Errorf("failed to write sync state: %w", err)
	}
	return nil
}
