// Dexmirror - Offline Pokédex Mirror and Sync Engine
// Copyright 2026 Dexmirror contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dexmirror/dexmirror

package database

import "fmt"

// schemaDDL creates the full relational schema. Every statement is
// idempotent so opening an existing database is a no-op.
//
// Identity rules:
//   - species.id and moves.id are the remote source's stable ids.
//   - regions, types and abilities are created lazily by name and get
//     local autoincrement ids.
//   - Join tables have composite primary keys and no independent identity.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS regions (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS types (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS abilities (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	name              TEXT NOT NULL UNIQUE,
	description       TEXT NOT NULL DEFAULT '',
	short_description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS moves (
	id            INTEGER PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	power         INTEGER,
	pp            INTEGER NOT NULL DEFAULT 0,
	accuracy      INTEGER,
	damage_class  TEXT NOT NULL DEFAULT '',
	effect_chance INTEGER,
	description   TEXT NOT NULL DEFAULT '',
	type_id       INTEGER REFERENCES types(id)
);

CREATE TABLE IF NOT EXISTS species (
	id                  INTEGER PRIMARY KEY,
	name                TEXT NOT NULL,
	form_name           TEXT NOT NULL DEFAULT '',
	description         TEXT,
	height              REAL,
	weight              REAL,
	base_experience     INTEGER,
	sprite_url          TEXT,
	artwork_url         TEXT,
	cry_url             TEXT,
	is_legendary        INTEGER NOT NULL DEFAULT 0,
	is_mythical         INTEGER NOT NULL DEFAULT 0,
	species_url         TEXT,
	evolution_chain_url TEXT,
	hp                  INTEGER,
	attack              INTEGER,
	defense             INTEGER,
	special_attack      INTEGER,
	special_defense     INTEGER,
	speed               INTEGER,
	region_id           INTEGER REFERENCES regions(id)
);

CREATE INDEX IF NOT EXISTS idx_species_name ON species(name);

CREATE TABLE IF NOT EXISTS species_types (
	species_id INTEGER NOT NULL REFERENCES species(id),
	type_id    INTEGER NOT NULL REFERENCES types(id),
	PRIMARY KEY (species_id, type_id)
);

CREATE TABLE IF NOT EXISTS species_abilities (
	species_id INTEGER NOT NULL REFERENCES species(id),
	ability_id INTEGER NOT NULL REFERENCES abilities(id),
	is_hidden  INTEGER NOT NULL DEFAULT 0,
	slot       INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (species_id, ability_id)
);

CREATE TABLE IF NOT EXISTS species_moves (
	species_id       INTEGER NOT NULL REFERENCES species(id),
	move_id          INTEGER NOT NULL REFERENCES moves(id),
	learn_method     TEXT NOT NULL,
	level_learned_at INTEGER NOT NULL,
	version_group    TEXT NOT NULL,
	PRIMARY KEY (species_id, move_id, learn_method, level_learned_at, version_group)
);

CREATE TABLE IF NOT EXISTS type_efficacy (
	attacking_type_id INTEGER NOT NULL REFERENCES types(id),
	defending_type_id INTEGER NOT NULL REFERENCES types(id),
	multiplier        REAL NOT NULL,
	PRIMARY KEY (attacking_type_id, defending_type_id)
);

CREATE TABLE IF NOT EXISTS sync_state (
	id        INTEGER PRIMARY KEY CHECK (id = 1),
	last_sync INTEGER NOT NULL,
	status    TEXT NOT NULL
);
`

// initSchema creates all tables and indexes.
func (db *DB) initSchema() error {
	if _, err := db.conn.Exec(schemaDDL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
