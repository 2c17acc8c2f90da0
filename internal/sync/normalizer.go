// Dexmirror - Offline Pokédex Mirror and Sync Engine
// Copyright 2026 Dexmirror contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dexmirror/dexmirror

/*
normalizer.go - Remote Payload Normalization

Converts raw PokeAPI payloads into the persisted model shapes. All rules
live here so the persistence layer never sees upstream quirks:

  - English text selection with literal fallbacks when no English entry
    exists ("No description available." for flavor text, "No description."
    for effect text).
  - Flavor text cleanup: embedded newlines and form feeds become spaces.
  - Stat name mapping: "special-attack" and "special-defense" become the
    special_attack / special_defense columns; the other four map directly.
  - Form name derivation: the base species name is removed from the full
    variant name and surrounding dashes are trimmed ("deoxys-attack" with
    base "deoxys" yields "attack").
  - Move-learn deduplication per fetch: the same (move, method, level,
    version group) tuple appears once regardless of how often the remote
    repeats it.
*/

package sync

import (
	"strconv"
	"strings"

	"github.com/dexmirror/dexmirror/pkg/models"
	"github.com/dexmirror/dexmirror/pkg/models/pokeapi"
)

// Literal fallbacks stored when no English text exists upstream.
const (
	noDescription       = "No description available."
	noEffectDescription = "No description."
)

// stubSpriteURL is the predictable sprite location derived from a species
// id during phase-1 sync, before any detail fetch.
func stubSpriteURL(id int64) string {
	return "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/" + strconv.FormatInt(id, 10) + ".png"
}

// deriveFormName strips the base species name out of a variant's full name.
// The default variant (full name equals base name) yields the empty string.
func deriveFormName(fullName, baseName string) string {
	return strings.Trim(strings.ReplaceAll(fullName, baseName, ""), "-")
}

// englishFlavorText picks the first English flavor-text entry, flattening
// the embedded line breaks the remote uses for in-game text boxes.
func englishFlavorText(entries []pokeapi.FlavorTextEntry) string {
	for _, e := range entries {
		if e.Language.Name != "en" {
			continue
		}
		text := strings.ReplaceAll(e.FlavorText, "\n", " ")
		text = strings.ReplaceAll(text, "\f", " ")
		return text
	}
	return noDescription
}

// englishEffect picks the first English effect entry, returning the long
// and short effect texts.
func englishEffect(entries []pokeapi.EffectEntry) (effect, short string) {
	for _, e := range entries {
		if e.Language.Name == "en" {
			return e.Effect, e.ShortEffect
		}
	}
	return noEffectDescription, noEffectDescription
}

// applyStats copies base stats onto the species, renaming the remote's
// "special-attack" and "special-defense" identifiers. Unknown stat names
// are ignored.
func applyStats(sp *models.Species, stats []pokeapi.StatEntry) {
	for _, s := range stats {
		v := s.BaseStat
		switch s.Stat.Name {
		case "hp":
			sp.HP = &v
		case "attack":
			sp.Attack = &v
		case "defense":
			sp.Defense = &v
		case "special-attack":
			sp.SpecialAttack = &v
		case "special-defense":
			sp.SpecialDefense = &v
		case "speed":
			sp.Speed = &v
		}
	}
}

// moveLearnKey identifies one deduplicated move-learn tuple.
type moveLearnKey struct {
	name         string
	method       string
	level        int64
	versionGroup string
}

// flattenMoves expands version-group details into flat move-learn entries,
// deduplicating identical tuples within this fetch.
func flattenMoves(entries []pokeapi.MoveEntry) []models.MoveLearn {
	seen := make(map[moveLearnKey]struct{})
	var out []models.MoveLearn
	for _, e := range entries {
		for _, d := range e.VersionGroupDetails {
			key := moveLearnKey{
				name:         e.Move.Name,
				method:       d.MoveLearnMethod.Name,
				level:        d.LevelLearnedAt,
				versionGroup: d.VersionGroup.Name,
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, models.MoveLearn{
				Name:           e.Move.Name,
				LearnMethod:    key.method,
				LevelLearnedAt: key.level,
				VersionGroup:   key.versionGroup,
			})
		}
	}
	return out
}

// normalizeMove converts a raw move detail into the persisted move shape.
// The type is carried by name; the store resolves or creates the row.
func normalizeMove(raw *pokeapi.Move) *models.Move {
	effect, _ := englishEffect(raw.EffectEntries)
	return &models.Move{
		ID:           raw.ID,
		Name:         raw.Name,
		Power:        raw.Power,
		PP:           raw.PP,
		Accuracy:     raw.Accuracy,
		DamageClass:  raw.DamageClass.Name,
		EffectChance: raw.EffectChance,
		Description:  effect,
		TypeName:     raw.Type.Name,
	}
}

// normalizeTypeDetail converts a raw type detail with its damage relations
// into the shape the store uses to seed efficacy edges.
func normalizeTypeDetail(raw *pokeapi.Type) models.TypeDetail {
	return models.TypeDetail{
		Name:           raw.Name,
		NoDamageTo:     names(raw.DamageRelations.NoDamageTo),
		HalfDamageTo:   names(raw.DamageRelations.HalfDamageTo),
		DoubleDamageTo: names(raw.DamageRelations.DoubleDamageTo),
	}
}

func names(refs []pokeapi.NamedResource) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Name)
	}
	return out
}

// normalizeSpecies merges a pokemon detail and its species detail into one
// species value. Either input may cover fields the other lacks; the species
// detail is optional (nil when its fetch failed) and only contributes
// description, flags and the evolution chain URL; without it the
// description falls back to the placeholder sentinel.
func normalizeSpecies(p *pokeapi.Pokemon, s *pokeapi.Species) models.Species {
	baseName := p.Name
	if s != nil && s.Name != "" {
		baseName = s.Name
	}

	sp := models.Species{
		ID:             p.ID,
		Name:           baseName,
		FormName:       deriveFormName(p.Name, baseName),
		Height:         p.Height,
		Weight:         p.Weight,
		BaseExperience: p.BaseExperience,
		SpriteURL:      p.Sprites.FrontDefault,
		ArtworkURL:     p.Sprites.Other.OfficialArtwork.FrontDefault,
		CryURL:         p.Cries.Latest,
	}
	if sp.CryURL == nil {
		sp.CryURL = p.Cries.Legacy
	}
	if p.Species.URL != "" {
		u := p.Species.URL
		sp.SpeciesURL = &u
	}

	if s != nil {
		desc := englishFlavorText(s.FlavorTextEntries)
		sp.Description = &desc
		sp.IsLegendary = s.IsLegendary
		sp.IsMythical = s.IsMythical
		if s.EvolutionChain != nil && s.EvolutionChain.URL != "" {
			u := s.EvolutionChain.URL
			sp.EvolutionChainURL = &u
		}
	} else {
		// A failed species lookup still yields a describable record.
		desc := noDescription
		sp.Description = &desc
	}

	applyStats(&sp, p.Stats)
	return sp
}
