// Dexmirror - Offline Pokédex Mirror and Sync Engine
// Copyright 2026 Dexmirror contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dexmirror/dexmirror

// Package pokeapi defines the raw response shapes of the PokeAPI v2 REST
// endpoints consumed by the sync engine.
//
// Every field is optional at the wire level: the remote omits keys freely
// and the decoder must treat absence as "use zero value / skip". Pointer
// types mark fields that are explicitly null upstream (power, accuracy,
// effect_chance, base_experience).
package pokeapi

// NamedResource is the ubiquitous {name, url} reference pair.
type NamedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Page is the paginated index wrapper returned by list endpoints
// (region list, species index).
type Page struct {
	Count   int             `json:"count"`
	Next    *string         `json:"next"`
	Results []NamedResource `json:"results"`
}

// Pokemon is the /pokemon/{id} detail response, reduced to the fields the
// normalizer consumes.
type Pokemon struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	Height         *float64       `json:"height"`
	Weight         *float64       `json:"weight"`
	BaseExperience *int64         `json:"base_experience"`
	Species        NamedResource  `json:"species"`
	Sprites        Sprites        `json:"sprites"`
	Cries          Cries          `json:"cries"`
	Stats          []StatEntry    `json:"stats"`
	Types          []TypeSlot     `json:"types"`
	Abilities      []AbilityEntry `json:"abilities"`
	Moves          []MoveEntry    `json:"moves"`
}

// Sprites holds the default sprite and official artwork URLs.
type Sprites struct {
	FrontDefault *string `json:"front_default"`
	Other        struct {
		OfficialArtwork struct {
			FrontDefault *string `json:"front_default"`
		} `json:"official-artwork"`
	} `json:"other"`
}

// Cries holds the species cry audio URLs.
type Cries struct {
	Latest *string `json:"latest"`
	Legacy *string `json:"legacy"`
}

// StatEntry is one base-stat entry of a pokemon detail.
type StatEntry struct {
	BaseStat int64         `json:"base_stat"`
	Stat     NamedResource `json:"stat"`
}

// TypeSlot is one type entry of a pokemon detail.
type TypeSlot struct {
	Slot int64         `json:"slot"`
	Type NamedResource `json:"type"`
}

// AbilityEntry is one ability entry of a pokemon detail.
type AbilityEntry struct {
	Ability  NamedResource `json:"ability"`
	IsHidden bool          `json:"is_hidden"`
	Slot     int64         `json:"slot"`
}

// MoveEntry is one move entry of a pokemon detail, with its per-version
// learn details.
type MoveEntry struct {
	Move                NamedResource        `json:"move"`
	VersionGroupDetails []VersionGroupDetail `json:"version_group_details"`
}

// VersionGroupDetail describes how a move is learned in one version group.
type VersionGroupDetail struct {
	LevelLearnedAt  int64         `json:"level_learned_at"`
	MoveLearnMethod NamedResource `json:"move_learn_method"`
	VersionGroup    NamedResource `json:"version_group"`
}

// Species is the /pokemon-species/{id} detail response.
type Species struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	IsLegendary       bool              `json:"is_legendary"`
	IsMythical        bool              `json:"is_mythical"`
	Generation        *NamedResource    `json:"generation"`
	EvolutionChain    *URLResource      `json:"evolution_chain"`
	FlavorTextEntries []FlavorTextEntry `json:"flavor_text_entries"`
	Varieties         []Variety         `json:"varieties"`
}

// URLResource is a bare {url} reference.
type URLResource struct {
	URL string `json:"url"`
}

// FlavorTextEntry is one localized flavor-text entry of a species.
type FlavorTextEntry struct {
	FlavorText string        `json:"flavor_text"`
	Language   NamedResource `json:"language"`
}

// Variety is one form variety of a species.
type Variety struct {
	IsDefault bool          `json:"is_default"`
	Pokemon   NamedResource `json:"pokemon"`
}

// Generation is the /generation/{id} detail response, reduced to the main
// region hop used for region resolution.
type Generation struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	MainRegion *NamedResource `json:"main_region"`
}

// Type is the /type/{name} detail response with its damage relations.
type Type struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	DamageRelations DamageRelations `json:"damage_relations"`
}

// DamageRelations lists the non-neutral damage edges of a type.
type DamageRelations struct {
	NoDamageTo     []NamedResource `json:"no_damage_to"`
	HalfDamageTo   []NamedResource `json:"half_damage_to"`
	DoubleDamageTo []NamedResource `json:"double_damage_to"`
}

// Ability is the /ability/{name} detail response.
type Ability struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	EffectEntries []EffectEntry `json:"effect_entries"`
}

// EffectEntry is one localized effect description.
type EffectEntry struct {
	Effect      string        `json:"effect"`
	ShortEffect string        `json:"short_effect"`
	Language    NamedResource `json:"language"`
}

// Move is the /move/{name} detail response.
type Move struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Power         *int64        `json:"power"`
	PP            int64         `json:"pp"`
	Accuracy      *int64        `json:"accuracy"`
	EffectChance  *int64        `json:"effect_chance"`
	DamageClass   NamedResource `json:"damage_class"`
	Type          NamedResource `json:"type"`
	EffectEntries []EffectEntry `json:"effect_entries"`
}
