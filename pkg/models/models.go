// Dexmirror - Offline Pokédex Mirror and Sync Engine
// Copyright 2026 Dexmirror contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dexmirror/dexmirror

// Package models defines the data transfer structs persisted by the local
// store and returned to consumers of the engine.
//
// These are plain structs with no lazy loading: relation collections are
// populated by explicit joins in the persistence layer, never by implicit
// traversal. Fields that stay unknown until a species has been deep-fetched
// are pointer-typed; readers must tolerate nil scalars and empty relation
// slices on stub rows.
package models

import "time"

// Sync status values recorded in the sync_state singleton row.
// A failed run stores StatusFailedPrefix followed by the error description.
const (
	StatusSuccess      = "success"
	StatusInProgress   = "in_progress"
	StatusFailedPrefix = "failed: "
)

// Region is an owning reference for species. Regions are created lazily,
// the first time any species or the region list mentions them.
type Region struct {
	ID   int64
	Name string
}

// Type is an elemental type. Participates in a many-to-many with Species
// and a one-to-many with Move.
type Type struct {
	ID   int64
	Name string
}

// Ability is a passive species ability with its English effect text.
type Ability struct {
	ID               int64
	Name             string
	Description      string
	ShortDescription string
}

// Move is a learnable move. Power, accuracy and effect chance are nullable
// upstream (status moves have no power, sure-hit moves no accuracy).
type Move struct {
	ID           int64
	Name         string
	Power        *int64
	PP           int64
	Accuracy     *int64
	DamageClass  string // physical, special or status
	EffectChance *int64
	Description  string
	TypeID       *int64
	TypeName     string
}

// SpeciesType links a species to one of its types.
type SpeciesType struct {
	SpeciesID int64
	TypeID    int64
	TypeName  string
}

// SpeciesAbility links a species to an ability, annotated with the slot and
// whether the ability is hidden.
type SpeciesAbility struct {
	SpeciesID int64
	AbilityID int64
	Name      string
	IsHidden  bool
	Slot      int64
}

// SpeciesMove links a species to a move it can learn. The same species-move
// pair may appear once per (learn method, level, version group) tuple.
type SpeciesMove struct {
	SpeciesID      int64
	MoveID         int64
	MoveName       string
	LearnMethod    string
	LevelLearnedAt int64
	VersionGroup   string
}

// TypeEfficacy records one damage-relation edge between two types.
// Only non-neutral multipliers (0, 0.5, 2) are stored; 1x is implicit.
type TypeEfficacy struct {
	AttackingTypeID int64
	DefendingTypeID int64
	Multiplier      float64
}

// Species is the primary entity. A row starts life as a stub (id, name,
// species URL, derived sprite URL) and is upgraded in place by a deep fetch.
type Species struct {
	ID                int64
	Name              string
	FormName          string
	Description       *string
	Height            *float64
	Weight            *float64
	BaseExperience    *int64
	SpriteURL         *string
	ArtworkURL        *string
	CryURL            *string
	IsLegendary       bool
	IsMythical        bool
	SpeciesURL        *string
	EvolutionChainURL *string

	HP             *int64
	Attack         *int64
	Defense        *int64
	SpecialAttack  *int64
	SpecialDefense *int64
	Speed          *int64

	RegionID *int64
	Region   *Region

	Types     []SpeciesType
	Abilities []SpeciesAbility
	Moves     []SpeciesMove
}

// IsComplete reports whether the species still needs a deep fetch.
//
// The critical scalar set deliberately excludes base_experience and cry_url:
// both can be permanently null upstream, and requiring them would leave some
// species incomplete forever. The predicate is pure and safe to call
// concurrently; it is the sole gate for skipping a deep fetch.
func (s *Species) IsComplete() bool {
	if s == nil {
		return false
	}
	if s.Description == nil || s.Height == nil || s.Weight == nil ||
		s.SpriteURL == nil || s.ArtworkURL == nil {
		return false
	}
	if s.HP == nil || s.Attack == nil || s.Defense == nil ||
		s.SpecialAttack == nil || s.SpecialDefense == nil || s.Speed == nil {
		return false
	}
	if len(s.Types) == 0 || len(s.Abilities) == 0 || len(s.Moves) == 0 {
		return false
	}
	return s.RegionID != nil
}

// ProgressFunc receives periodic progress callbacks during a sync run.
// phase is "stub" or "deep"; total is 0 when unknown.
type ProgressFunc func(phase string, processed, total int)

// SyncResult summarizes one Sync invocation.
type SyncResult struct {
	// Skipped is true when another sync was already running and this
	// invocation did nothing.
	Skipped bool

	StubsInserted int
	DeepUpdated   int
	DeepSkipped   int
	DeepFailed    int
	Duration      time.Duration
}

// SyncState is the singleton record describing the last synchronization run.
type SyncState struct {
	LastSync time.Time
	Status   string
}

// Failed reports whether the last sync run ended in failure.
func (s SyncState) Failed() bool {
	return len(s.Status) >= len(StatusFailedPrefix) && s.Status[:len(StatusFailedPrefix)] == StatusFailedPrefix
}

// DeepRecord is the fully materialized input to the persistence layer's
// deep upsert. The orchestrator resolves all remote lookups before handing
// the record over, so the store performs no I/O of its own.
type DeepRecord struct {
	Species Species

	// RegionName is resolved species -> generation -> main region.
	// Empty means the hop chain was broken; the region stays null.
	RegionName string

	// Types are type names in slot order. Missing types are created
	// name-only; NewTypes carries full details for types the store did
	// not know at prefetch time.
	Types    []string
	NewTypes []TypeDetail

	Abilities []AbilityGrant
	Moves     []MoveLearn
}

// TypeDetail carries a freshly fetched type with its damage relations,
// used to create the type row and its efficacy edges.
type TypeDetail struct {
	Name           string
	NoDamageTo     []string
	HalfDamageTo   []string
	DoubleDamageTo []string
}

// AbilityGrant is one ability entry of a deep record. Description fields are
// only consulted when the ability does not exist yet.
type AbilityGrant struct {
	Name             string
	Description      string
	ShortDescription string
	IsHidden         bool
	Slot             int64
}

// MoveLearn is one deduplicated move-learn entry of a deep record.
// Detail is nil when the move is already persisted, or when its detail
// fetch failed; in the latter case the entry contributes no join row.
type MoveLearn struct {
	Name           string
	LearnMethod    string
	LevelLearnedAt int64
	VersionGroup   string
	Detail         *Move
}

// Form is one variety of a species, as reported by the remote catalog.
// FormName is empty for the default variety.
type Form struct {
	Slug      string
	FormName  string
	IsDefault bool
}

// Stub is the minimal species row created during phase-1 sync.
type Stub struct {
	ID         int64
	Name       string
	SpeciesURL string
	SpriteURL  string
}
