// Dexmirror - Offline Pokédex Mirror and Sync Engine
// Copyright 2026 Dexmirror contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dexmirror/dexmirror

package database

import (
	"errors"

	sqlite "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup by id finds no row.
var ErrNotFound = errors.New("not found")

// sqliteConstraint is the primary SQLITE_CONSTRAINT result code; extended
// codes (UNIQUE, PRIMARYKEY, ...) carry it in their low byte.
const sqliteConstraint = 19

// isConstraintErr reports whether err is an integrity violation
// (duplicate unique key, foreign key, ...). Racing writers that lose a
// lookup-or-create race hit this; callers treat it as "already exists".
func isConstraintErr(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqliteConstraint
	}
	return false
}
