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
	"strings"

	"github.com/dexmirror/dexmirror/pkg/models"
)

// lookupOrCreate implements the name-based lookup-or-create rule shared by
// regions and types: select by name first, insert on miss, and treat a
// unique-constraint violation as "another writer created it" followed by a
// re-read. Duplicate-name inserts are therefore no-ops, never errors.
func lookupOrCreate(ctx context.Context, tx *sql.Tx, table, name, insertSQL string) (int64, error) {
	selectSQL := `SELECT id FROM ` + table + ` WHERE name = ?`

	var id int64
	err := tx.QueryRowContext(ctx, selectSQL, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up %s %q: %w", table, name, err)
	}

	res, err := tx.ExecContext(ctx, insertSQL, name)
	if err != nil {
		if !isConstraintErr(err) {
			return 0, fmt.Errorf("failed to create %s %q: %w", table, name, err)
		}
		if err := tx.QueryRowContext(ctx, selectSQL, name).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to re-read %s %q: %w", table, name, err)
		}
		return id, nil
	}
	return res.LastInsertId()
}

// lookupOrCreateAbility resolves an ability id by name, creating the row
// with its effect text on first reference.
func lookupOrCreateAbility(ctx context.Context, tx *sql.Tx, grant models.AbilityGrant) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM abilities WHERE name = ?`, grant.Name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up ability %q: %w", grant.Name, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO abilities (name, description, short_description) VALUES (?, ?, ?)`,
		grant.Name, grant.Description, grant.ShortDescription)
	if err != nil {
		if !isConstraintErr(err) {
			return 0, fmt.Errorf("failed to create ability %q: %w", grant.Name, err)
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM abilities WHERE name = ?`, grant.Name).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to re-read ability %q: %w", grant.Name, err)
		}
		return id, nil
	}
	return res.LastInsertId()
}

// createTypeWithEfficacy creates (or finds) a type and replaces its
// outgoing efficacy edges. Counterpart types that do not exist yet are
// created name-only; their own edges arrive when they are fetched.
func createTypeWithEfficacy(ctx context.Context, tx *sql.Tx, td *models.TypeDetail) error {
	atkID, err := lookupOrCreate(ctx, tx, "types", td.Name,
		`INSERT INTO types (name) VALUES (?)`)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM type_efficacy WHERE attacking_type_id = ?`, atkID); err != nil {
		return fmt.Errorf("failed to clear efficacy for type %q: %w", td.Name, err)
	}

	insert := func(defenders []string, multiplier float64) error {
		for _, name := range defenders {
			defID, err := lookupOrCreate(ctx, tx, "types", name,
				`INSERT INTO types (name) VALUES (?)`)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO type_efficacy (attacking_type_id, defending_type_id, multiplier)
				VALUES (?, ?, ?)
				ON CONFLICT (attacking_type_id, defending_type_id)
				DO UPDATE SET multiplier = excluded.multiplier`,
				atkID, defID, multiplier); err != nil {
				return fmt.Errorf("failed to insert efficacy edge %s -> %s: %w", td.Name, name, err)
			}
		}
		return nil
	}

	if err := insert(td.NoDamageTo, 0); err != nil {
		return err
	}
	if err := insert(td.HalfDamageTo, 0.5); err != nil {
		return err
	}
	return insert(td.DoubleDamageTo, 2)
}

// KnownNames returns which of the given names already exist in table.
// The orchestrator uses this to fetch details only for children it still
// has to create. table must be one of types, abilities or moves.
func (db *DB) KnownNames(ctx context.Context, table string, names []string) (map[string]struct{}, error) {
	known := make(map[string]struct{}, len(names))
	if len(names) == 0 {
		return known, nil
	}

	switch table {
	case "types", "abilities", "moves":
	default:
		return nil, fmt.Errorf("unsupported lookup table %q", table)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT name FROM `+table+` WHERE name IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query known %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		known[name] = struct{}{}
	}
	return known, rows.Err()
}

// UpsertRegions inserts any regions missing by name and returns how many
// were created. Existing regions are untouched.
func (db *DB) UpsertRegions(ctx context.Context, names []string) (int, error) {
	created := 0
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		for _, name := range names {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO regions (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name)
			if err != nil {
				if isConstraintErr(err) {
					continue
				}
				return fmt.Errorf("failed to upsert region %q: %w", name, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				created++
			}
		}
		return nil
	})
	return created, err
}

// TypeEfficacy returns the stored non-neutral damage multipliers for the
// named attacking type, keyed by defending type name.
func (db *DB) TypeEfficacy(ctx context.Context, attackingType string) (map[string]float64, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT def.name, te.multiplier
		FROM type_efficacy te
		JOIN types atk ON atk.id = te.attacking_type_id
		JOIN types def ON def.id = te.defending_type_id
		WHERE atk.name = ?`, attackingType)
	if err != nil {
		return nil, fmt.Errorf("failed to query efficacy for %q: %w", attackingType, err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var mult float64
		if err := rows.Scan(&name, &mult); err != nil {
			return nil, err
		}
		out[name] = mult
	}
	return out, rows.Err()
}
