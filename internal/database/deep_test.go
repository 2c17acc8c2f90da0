// Dexmirror - Offline Pokédex Mirror and Sync Engine
// Copyright 2026 Dexmirror contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dexmirror/dexmirror

package database

import (
	"context"
	"sync"
	"testing"

	"github.com/dexmirror/dexmirror/pkg/models"
)

func ptr[T any](v T) *T { return &v }

// deepRecord builds a minimal but complete deep record for tests.
func deepRecord(id int64, name string) *models.DeepRecord {
	return &models.DeepRecord{
		Species: models.Species{
			ID:          id,
			Name:        name,
			Description: ptr("A test species."),
			Height:      ptr(7.0),
			Weight:      ptr(69.0),
			SpriteURL:   ptr("https://example.test/sprite.png"),
			ArtworkURL:  ptr("https://example.test/art.png"),
			HP:          ptr(int64(45)), Attack: ptr(int64(49)), Defense: ptr(int64(49)),
			SpecialAttack: ptr(int64(65)), SpecialDefense: ptr(int64(65)), Speed: ptr(int64(45)),
		},
		RegionName: "kanto",
		Types:      []string{"grass", "poison"},
		NewTypes: []models.TypeDetail{
			{Name: "grass", HalfDamageTo: []string{"fire"}, DoubleDamageTo: []string{"water"}},
		},
		Abilities: []models.AbilityGrant{
			{Name: "overgrow", Description: "Boosts grass moves.", ShortDescription: "Boosts grass.", Slot: 1},
			{Name: "chlorophyll", Description: "Doubles speed in sun.", ShortDescription: "Sun speed.", IsHidden: true, Slot: 3},
		},
		Moves: []models.MoveLearn{
			{
				Name: "tackle", LearnMethod: "level-up", LevelLearnedAt: 1, VersionGroup: "red-blue",
				Detail: &models.Move{ID: 33, Name: "tackle", Power: ptr(int64(40)), PP: 35,
					Accuracy: ptr(int64(100)), DamageClass: "physical", Description: "A basic hit.", TypeName: "normal"},
			},
			{
				Name: "vine-whip", LearnMethod: "level-up", LevelLearnedAt: 3, VersionGroup: "red-blue",
				Detail: &models.Move{ID: 22, Name: "vine-whip", Power: ptr(int64(45)), PP: 25,
					Accuracy: ptr(int64(100)), DamageClass: "physical", Description: "Whips with vines.", TypeName: "grass"},
			},
		},
	}
}

func TestUpsertDeep_CreatesCompleteRecord(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.UpsertDeep(ctx, deepRecord(1, "bulbasaur")); err != nil {
		t.Fatalf("UpsertDeep failed: %v", err)
	}

	s, err := db.GetSpecies(ctx, 1)
	if err != nil {
		t.Fatalf("GetSpecies failed: %v", err)
	}
	if !s.IsComplete() {
		t.Errorf("Expected complete species, got %+v", s)
	}
	if s.Region == nil || s.Region.Name != "kanto" {
		t.Errorf("Expected region kanto, got %+v", s.Region)
	}
	if len(s.Types) != 2 {
		t.Errorf("Expected 2 types, got %+v", s.Types)
	}
	if len(s.Abilities) != 2 {
		t.Errorf("Expected 2 abilities, got %+v", s.Abilities)
	}
	if len(s.Moves) != 2 {
		t.Errorf("Expected 2 move learns, got %+v", s.Moves)
	}

	var hidden bool
	for _, a := range s.Abilities {
		if a.Name == "chlorophyll" && a.IsHidden {
			hidden = true
		}
	}
	if !hidden {
		t.Error("Expected chlorophyll marked hidden")
	}
}

func TestUpsertDeep_UpgradesStubInPlace(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.InsertStubs(ctx, testStubs(1), 500); err != nil {
		t.Fatalf("InsertStubs failed: %v", err)
	}
	if err := db.UpsertDeep(ctx, deepRecord(1, "bulbasaur")); err != nil {
		t.Fatalf("UpsertDeep failed: %v", err)
	}

	s, err := db.GetSpecies(ctx, 1)
	if err != nil {
		t.Fatalf("GetSpecies failed: %v", err)
	}
	if s.Name != "bulbasaur" {
		t.Errorf("Expected name upgraded to bulbasaur, got %q", s.Name)
	}
	if !s.IsComplete() {
		t.Error("Expected stub upgraded to complete")
	}

	ids, _ := db.SpeciesIDs(ctx)
	if len(ids) != 1 {
		t.Errorf("Expected upgrade in place, got %d rows", len(ids))
	}
}

func TestUpsertDeep_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rec := deepRecord(1, "bulbasaur")
	if err := db.UpsertDeep(ctx, rec); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}
	if err := db.UpsertDeep(ctx, deepRecord(1, "bulbasaur")); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	s, err := db.GetSpecies(ctx, 1)
	if err != nil {
		t.Fatalf("GetSpecies failed: %v", err)
	}
	if len(s.Types) != 2 || len(s.Abilities) != 2 || len(s.Moves) != 2 {
		t.Errorf("Duplicate relations after repeated upsert: %d/%d/%d",
			len(s.Types), len(s.Abilities), len(s.Moves))
	}
}

func TestUpsertDeep_ReplacesJoins(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.UpsertDeep(ctx, deepRecord(1, "bulbasaur")); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	// The remote now reports a single different type and no moves
	rec := deepRecord(1, "bulbasaur")
	rec.Types = []string{"fairy"}
	rec.NewTypes = nil
	rec.Moves = nil
	if err := db.UpsertDeep(ctx, rec); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	s, err := db.GetSpecies(ctx, 1)
	if err != nil {
		t.Fatalf("GetSpecies failed: %v", err)
	}
	if len(s.Types) != 1 || s.Types[0].TypeName != "fairy" {
		t.Errorf("Expected replaced type set [fairy], got %+v", s.Types)
	}
	if len(s.Moves) != 0 {
		t.Errorf("Expected move set cleared, got %+v", s.Moves)
	}

	// Globally shared rows survive join replacement
	known, err := db.KnownNames(ctx, "moves", []string{"tackle", "vine-whip"})
	if err != nil {
		t.Fatalf("KnownNames failed: %v", err)
	}
	if len(known) != 2 {
		t.Errorf("Expected move rows retained, got %v", known)
	}
}

func TestUpsertDeep_SkipsMovesWithoutDetail(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rec := deepRecord(1, "bulbasaur")
	rec.Moves = append(rec.Moves, models.MoveLearn{
		Name: "hyper-beam", LearnMethod: "machine", VersionGroup: "red-blue",
		// Detail fetch failed upstream
	})

	if err := db.UpsertDeep(ctx, rec); err != nil {
		t.Fatalf("UpsertDeep failed: %v", err)
	}

	s, err := db.GetSpecies(ctx, 1)
	if err != nil {
		t.Fatalf("GetSpecies failed: %v", err)
	}
	if len(s.Moves) != 2 {
		t.Errorf("Expected detail-less move skipped, got %+v", s.Moves)
	}
}

func TestUpsertDeep_KnownMoveNeedsNoDetail(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.UpsertDeep(ctx, deepRecord(1, "bulbasaur")); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	// A second species references tackle with no detail attached; the
	// existing move row resolves it.
	rec := deepRecord(2, "ivysaur")
	rec.Moves = []models.MoveLearn{
		{Name: "tackle", LearnMethod: "level-up", LevelLearnedAt: 1, VersionGroup: "red-blue"},
	}
	if err := db.UpsertDeep(ctx, rec); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	s, err := db.GetSpecies(ctx, 2)
	if err != nil {
		t.Fatalf("GetSpecies failed: %v", err)
	}
	if len(s.Moves) != 1 || s.Moves[0].MoveName != "tackle" {
		t.Errorf("Expected known move resolved by name, got %+v", s.Moves)
	}
}

func TestUpsertDeep_TypeEfficacy(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rec := deepRecord(1, "bulbasaur")
	rec.NewTypes = []models.TypeDetail{
		{
			Name:           "electric",
			NoDamageTo:     []string{"ground"},
			HalfDamageTo:   []string{"electric", "grass"},
			DoubleDamageTo: []string{"water", "flying"},
		},
	}
	rec.Types = []string{"electric"}
	if err := db.UpsertDeep(ctx, rec); err != nil {
		t.Fatalf("UpsertDeep failed: %v", err)
	}

	eff, err := db.TypeEfficacy(ctx, "electric")
	if err != nil {
		t.Fatalf("TypeEfficacy failed: %v", err)
	}
	want := map[string]float64{
		"ground": 0, "electric": 0.5, "grass": 0.5, "water": 2, "flying": 2,
	}
	if len(eff) != len(want) {
		t.Fatalf("Expected %d efficacy edges, got %v", len(want), eff)
	}
	for name, mult := range want {
		if eff[name] != mult {
			t.Errorf("Efficacy vs %s = %v, want %v", name, eff[name], mult)
		}
	}

	// Re-fetching the type replaces its edge set wholesale
	rec2 := deepRecord(2, "pikachu")
	rec2.Types = []string{"electric"}
	rec2.NewTypes = []models.TypeDetail{
		{Name: "electric", DoubleDamageTo: []string{"water"}},
	}
	if err := db.UpsertDeep(ctx, rec2); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	eff, err = db.TypeEfficacy(ctx, "electric")
	if err != nil {
		t.Fatalf("TypeEfficacy failed: %v", err)
	}
	if len(eff) != 1 || eff["water"] != 2 {
		t.Errorf("Expected replaced edge set {water: 2}, got %v", eff)
	}
}

func TestUpsertDeep_ConcurrentSameID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := db.UpsertDeep(ctx, deepRecord(1, "bulbasaur")); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Concurrent upsert failed: %v", err)
	}

	s, err := db.GetSpecies(ctx, 1)
	if err != nil {
		t.Fatalf("GetSpecies failed: %v", err)
	}
	if len(s.Types) != 2 || len(s.Abilities) != 2 || len(s.Moves) != 2 {
		t.Errorf("Relation sets corrupted by concurrent upserts: %d/%d/%d",
			len(s.Types), len(s.Abilities), len(s.Moves))
	}
}

func TestUpsertRegions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	created, err := db.UpsertRegions(ctx, []string{"kanto", "johto", "hoenn"})
	if err != nil {
		t.Fatalf("UpsertRegions failed: %v", err)
	}
	if created != 3 {
		t.Errorf("Expected 3 created, got %d", created)
	}

	created, err = db.UpsertRegions(ctx, []string{"kanto", "sinnoh"})
	if err != nil {
		t.Fatalf("Second UpsertRegions failed: %v", err)
	}
	if created != 1 {
		t.Errorf("Expected 1 created on overlap, got %d", created)
	}
}

func TestKnownNames_RejectsUnknownTable(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.KnownNames(context.Background(), "species; DROP TABLE species", []string{"x"}); err == nil {
		t.Error("Expected unknown table to be rejected")
	}
}
