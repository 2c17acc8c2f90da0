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

	"github.com/dexmirror/dexmirror/internal/logging"
	"github.com/dexmirror/dexmirror/pkg/models"
)

// UpsertDeep applies a fully materialized deep record in one transaction:
// scalar fields are updated, the region is resolved or created by name,
// and the three join sets are replaced wholesale so they exactly mirror
// the latest remote response.
//
// Writes to the same species id are serialized by a per-id mutex; deep
// upserts of different ids proceed concurrently. A move entry without a
// persisted or fetched detail contributes no join row.
func (db *DB) UpsertDeep(ctx context.Context, rec *models.DeepRecord) error {
	mu := db.acquireSpeciesLock(rec.Species.ID)
	defer mu.Unlock()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := db.upsertScalars(ctx, tx, rec); err != nil {
			return err
		}
		if err := db.replaceTypes(ctx, tx, rec); err != nil {
			return err
		}
		if err := db.replaceAbilities(ctx, tx, rec); err != nil {
			return err
		}
		return db.replaceMoves(ctx, tx, rec)
	})
	if err != nil {
		return fmt.Errorf("deep upsert of species %d failed: %w", rec.Species.ID, err)
	}

	logging.Debug().Int64("species_id", rec.Species.ID).Str("name", rec.Species.Name).Msg("Deep upsert complete")
	return nil
}

// upsertScalars ensures the species row exists and updates every scalar
// field, resolving the region reference first.
func (db *DB) upsertScalars(ctx context.Context, tx *sql.Tx, rec *models.DeepRecord) error {
	s := &rec.Species

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO species (id, name) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`,
		s.ID, s.Name); err != nil && !isConstraintErr(err) {
		return fmt.Errorf("failed to ensure species row: %w", err)
	}

	var regionID *int64
	if rec.RegionName != "" {
		id, err := lookupOrCreate(ctx, tx, "regions", rec.RegionName,
			`INSERT INTO regions (name) VALUES (?)`)
		if err != nil {
			return err
		}
		regionID = &id
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE species SET
			name = ?, form_name = ?, description = ?, height = ?, weight = ?,
			base_experience = ?, sprite_url = ?, artwork_url = ?, cry_url = ?,
			is_legendary = ?, is_mythical = ?, species_url = ?,
			evolution_chain_url = ?, hp = ?, attack = ?, defense = ?,
			special_attack = ?, special_defense = ?, speed = ?, region_id = ?
		WHERE id = ?`,
		s.Name, s.FormName, s.Description, s.Height, s.Weight,
		s.BaseExperience, s.SpriteURL, s.ArtworkURL, s.CryURL,
		s.IsLegendary, s.IsMythical, s.SpeciesURL,
		s.EvolutionChainURL, s.HP, s.Attack, s.Defense,
		s.SpecialAttack, s.SpecialDefense, s.Speed, regionID,
		s.ID)
	if err != nil {
		return fmt.Errorf("failed to update species scalars: %w", err)
	}
	return nil
}

// replaceTypes creates any newly fetched types (with their efficacy
// edges), then replaces the species_types join set.
func (db *DB) replaceTypes(ctx context.Context, tx *sql.Tx, rec *models.DeepRecord) error {
	for i := range rec.NewTypes {
		if err := createTypeWithEfficacy(ctx, tx, &rec.NewTypes[i]); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM species_types WHERE species_id = ?`, rec.Species.ID); err != nil {
		return fmt.Errorf("failed to clear species_types: %w", err)
	}

	for _, name := range rec.Types {
		typeID, err := lookupOrCreate(ctx, tx, "types", name,
			`INSERT INTO types (name) VALUES (?)`)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO species_types (species_id, type_id) VALUES (?, ?)
			ON CONFLICT DO NOTHING`, rec.Species.ID, typeID); err != nil {
			return fmt.Errorf("failed to insert species_types row: %w", err)
		}
	}
	return nil
}

// replaceAbilities replaces the species_abilities join set, lazily
// creating abilities with their effect text.
func (db *DB) replaceAbilities(ctx context.Context, tx *sql.Tx, rec *models.DeepRecord) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM species_abilities WHERE species_id = ?`, rec.Species.ID); err != nil {
		return fmt.Errorf("failed to clear species_abilities: %w", err)
	}

	for _, grant := range rec.Abilities {
		abilityID, err := lookupOrCreateAbility(ctx, tx, grant)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO species_abilities (species_id, ability_id, is_hidden, slot)
			VALUES (?, ?, ?, ?)
			ON CONFLICT DO NOTHING`,
			rec.Species.ID, abilityID, grant.IsHidden, grant.Slot); err != nil {
			return fmt.Errorf("failed to insert species_abilities row: %w", err)
		}
	}
	return nil
}

// replaceMoves replaces the species_moves join set. Moves are created from
// their fetched detail on first reference; entries whose move is neither
// persisted nor fetchable are skipped rather than failing the record.
func (db *DB) replaceMoves(ctx context.Context, tx *sql.Tx, rec *models.DeepRecord) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM species_moves WHERE species_id = ?`, rec.Species.ID); err != nil {
		return fmt.Errorf("failed to clear species_moves: %w", err)
	}

	for _, learn := range rec.Moves {
		moveID, ok, err := resolveMove(ctx, tx, learn)
		if err != nil {
			return err
		}
		if !ok {
			logging.Debug().Str("move", learn.Name).Int64("species_id", rec.Species.ID).
				Msg("Skipping move without detail")
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO species_moves
				(species_id, move_id, learn_method, level_learned_at, version_group)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING`,
			rec.Species.ID, moveID, learn.LearnMethod, learn.LevelLearnedAt,
			learn.VersionGroup); err != nil {
			return fmt.Errorf("failed to insert species_moves row: %w", err)
		}
	}
	return nil
}

// resolveMove finds the move id by name, creating the move from its
// fetched detail when absent. ok is false when the move cannot be
// resolved at all.
func resolveMove(ctx context.Context, tx *sql.Tx, learn models.MoveLearn) (int64, bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM moves WHERE name = ?`, learn.Name).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to look up move %q: %w", learn.Name, err)
	}

	if learn.Detail == nil {
		return 0, false, nil
	}

	m := learn.Detail
	var typeID *int64
	if m.TypeName != "" {
		tid, err := lookupOrCreate(ctx, tx, "types", m.TypeName,
			`INSERT INTO types (name) VALUES (?)`)
		if err != nil {
			return 0, false, err
		}
		typeID = &tid
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO moves
			(id, name, power, pp, accuracy, damage_class, effect_chance, description, type_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Power, m.PP, m.Accuracy, m.DamageClass,
		m.EffectChance, m.Description, typeID)
	if err != nil {
		if !isConstraintErr(err) {
			return 0, false, fmt.Errorf("failed to create move %q: %w", m.Name, err)
		}
		// Lost a create race; the row exists now.
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM moves WHERE name = ?`, learn.Name).Scan(&id); err != nil {
			return 0, false, fmt.Errorf("failed to re-read move %q: %w", learn.Name, err)
		}
		return id, true, nil
	}
	return m.ID, true, nil
}
