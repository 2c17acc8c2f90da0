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

// speciesColumns is the scalar column list shared by every species SELECT.
const speciesColumns = `id, name, form_name, description, height, weight,
	base_experience, sprite_url, artwork_url, cry_url, is_legendary,
	is_mythical, species_url, evolution_chain_url, hp, attack, defense,
	special_attack, special_defense, speed, region_id`

// ExistingSpeciesIDs returns the set of persisted species ids. The stub
// population phase checks candidates against this set instead of issuing
// one existence query per row.
func (db *DB) ExistingSpeciesIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id FROM species`)
	if err != nil {
		return nil, fmt.Errorf("failed to query species ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan species id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// InsertStubs inserts minimal species rows in batches of batchSize, each
// batch in its own transaction so a mid-run failure keeps prior batches
// committed. Existing rows are never overwritten. Returns the number of
// rows inserted.
func (db *DB) InsertStubs(ctx context.Context, stubs []models.Stub, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	inserted := 0
	for start := 0; start < len(stubs); start += batchSize {
		end := start + batchSize
		if end > len(stubs) {
			end = len(stubs)
		}
		batch := stubs[start:end]

		err := db.withTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO species (id, name, species_url, sprite_url)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (id) DO NOTHING`)
			if err != nil {
				return fmt.Errorf("failed to prepare stub insert: %w", err)
			}
			defer stmt.Close()

			for _, s := range batch {
				res, err := stmt.ExecContext(ctx, s.ID, s.Name, s.SpeciesURL, s.SpriteURL)
				if err != nil {
					if isConstraintErr(err) {
						continue
					}
					return fmt.Errorf("failed to insert stub %d: %w", s.ID, err)
				}
				if n, _ := res.RowsAffected(); n > 0 {
					inserted++
				}
			}
			return nil
		})
		if err != nil {
			return inserted, err
		}

		logging.Debug().Int("batch_start", start).Int("batch_len", len(batch)).Msg("Stub batch committed")
	}

	return inserted, nil
}

// GetSpecies loads one species with its relation collections. Returns
// ErrNotFound if the id is unknown. Stub rows come back with nil scalars
// and empty relations; callers use models.Species.IsComplete to decide
// whether a deep fetch is still needed.
func (db *DB) GetSpecies(ctx context.Context, id int64) (*models.Species, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+speciesColumns+` FROM species WHERE id = ?`, id)

	s, err := scanSpecies(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load species %d: %w", id, err)
	}

	if err := db.loadRelations(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSpecies scans the speciesColumns list into a Species DTO.
func scanSpecies(r rowScanner) (*models.Species, error) {
	s := &models.Species{}
	err := r.Scan(
		&s.ID, &s.Name, &s.FormName, &s.Description, &s.Height, &s.Weight,
		&s.BaseExperience, &s.SpriteURL, &s.ArtworkURL, &s.CryURL,
		&s.IsLegendary, &s.IsMythical, &s.SpeciesURL, &s.EvolutionChainURL,
		&s.HP, &s.Attack, &s.Defense, &s.SpecialAttack, &s.SpecialDefense,
		&s.Speed, &s.RegionID,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// loadRelations populates the region and the three join collections.
func (db *DB) loadRelations(ctx context.Context, s *models.Species) error {
	if s.RegionID != nil {
		var r models.Region
		err := db.conn.QueryRowContext(ctx,
			`SELECT id, name FROM regions WHERE id = ?`, *s.RegionID).
			Scan(&r.ID, &r.Name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// Dangling region reference; leave it nil.
		case err != nil:
			return fmt.Errorf("failed to load region for species %d: %w", s.ID, err)
		default:
			s.Region = &r
		}
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT st.species_id, st.type_id, t.name
		FROM species_types st JOIN types t ON t.id = st.type_id
		WHERE st.species_id = ? ORDER BY st.type_id`, s.ID)
	if err != nil {
		return fmt.Errorf("failed to load types for species %d: %w", s.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var st models.SpeciesType
		if err := rows.Scan(&st.SpeciesID, &st.TypeID, &st.TypeName); err != nil {
			return err
		}
		s.Types = append(s.Types, st)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = db.conn.QueryContext(ctx, `
		SELECT sa.species_id, sa.ability_id, a.name, sa.is_hidden, sa.slot
		FROM species_abilities sa JOIN abilities a ON a.id = sa.ability_id
		WHERE sa.species_id = ? ORDER BY sa.slot`, s.ID)
	if err != nil {
		return fmt.Errorf("failed to load abilities for species %d: %w", s.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var sa models.SpeciesAbility
		if err := rows.Scan(&sa.SpeciesID, &sa.AbilityID, &sa.Name, &sa.IsHidden, &sa.Slot); err != nil {
			return err
		}
		s.Abilities = append(s.Abilities, sa)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = db.conn.QueryContext(ctx, `
		SELECT sm.species_id, sm.move_id, m.name, sm.learn_method,
		       sm.level_learned_at, sm.version_group
		FROM species_moves sm JOIN moves m ON m.id = sm.move_id
		WHERE sm.species_id = ?
		ORDER BY sm.move_id, sm.learn_method, sm.level_learned_at, sm.version_group`, s.ID)
	if err != nil {
		return fmt.Errorf("failed to load moves for species %d: %w", s.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var sm models.SpeciesMove
		if err := rows.Scan(&sm.SpeciesID, &sm.MoveID, &sm.MoveName, &sm.LearnMethod,
			&sm.LevelLearnedAt, &sm.VersionGroup); err != nil {
			return err
		}
		s.Moves = append(s.Moves, sm)
	}
	return rows.Err()
}

// SpeciesIDs returns every persisted species id in ascending order.
func (db *DB) SpeciesIDs(ctx context.Context) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id FROM species ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query species ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Query returns species whose name contains search (case-insensitive),
// ordered by ascending id with offset/limit pagination, along with the
// total number of matches. Rows carry scalars only; interactive list
// views do not need the join collections.
func (db *DB) Query(ctx context.Context, search string, offset, limit int) ([]models.Species, int, error) {
	pattern := "%" + search + "%"

	var total int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM species WHERE name LIKE ?`, pattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count species: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+speciesColumns+` FROM species
		 WHERE name LIKE ? ORDER BY id LIMIT ? OFFSET ?`,
		pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query species: %w", err)
	}
	defer rows.Close()

	var out []models.Species
	for rows.Next() {
		s, err := scanSpecies(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan species row: %w", err)
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}
