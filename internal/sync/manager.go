// Dexmirror - Offline Pokédex Mirror and Sync Engine
// Copyright 2026 Dexmirror contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dexmirror/dexmirror

/*
manager.go - Sync Orchestrator

Drives the two synchronization phases against the local store:

  Phase 1 (always): upsert the region list, fetch the bulk species index,
  and insert stub rows for every species the store does not know yet.
  Stubs carry only id, name, the species detail URL and a derived sprite
  URL; everything else stays null until a deep fetch.

  Phase 2 (background mode only): every persisted species that fails the
  completeness predicate gets a deep fetch and a full upsert. The phase
  runs on a bounded worker pool; per-species locks in the store make
  concurrent upserts of distinct ids safe.

State machine: the sync_state singleton moves IN_PROGRESS -> SUCCESS or
IN_PROGRESS -> "failed: <description>". Failures are recorded in the
state row, never re-raised to the caller; Sync always returns a
SyncResult and callers poll LastSyncStatus.

Single-flight: a second Sync while one is running is rejected
immediately (Skipped result), never queued.
*/

package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	gosync "sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dexmirror/dexmirror/config"
	"github.com/dexmirror/dexmirror/internal/database"
	"github.com/dexmirror/dexmirror/internal/logging"
	"github.com/dexmirror/dexmirror/internal/metrics"
	"github.com/dexmirror/dexmirror/pkg/models"
	"github.com/dexmirror/dexmirror/pkg/models/pokeapi"
)

// Progress stride for the stub insert phase. The deep phase stride comes
// from configuration.
const stubProgressStride = 100

// errNoData marks a deep update that could not fetch its primary payload.
// The species stays a stub; this is not a storage failure.
var errNoData = errors.New("no remote data")

// Store is the persistence surface the orchestrator writes through.
// *database.DB satisfies it; tests substitute fakes.
type Store interface {
	ExistingSpeciesIDs(ctx context.Context) (map[int64]struct{}, error)
	InsertStubs(ctx context.Context, stubs []models.Stub, batchSize int) (int, error)
	GetSpecies(ctx context.Context, id int64) (*models.Species, error)
	SpeciesIDs(ctx context.Context) ([]int64, error)
	UpsertDeep(ctx context.Context, rec *models.DeepRecord) error
	KnownNames(ctx context.Context, table string, names []string) (map[string]struct{}, error)
	UpsertRegions(ctx context.Context, names []string) (int, error)
	SyncState(ctx context.Context) (models.SyncState, bool, error)
	SetSyncState(ctx context.Context, status string, lastSync time.Time) error
}

// Manager orchestrates synchronization between the remote catalog and the
// local store.
type Manager struct {
	store  Store
	client RemoteClient
	cfg    *config.SyncConfig

	syncMu gosync.Mutex
}

// NewManager creates a sync orchestrator.
func NewManager(store Store, client RemoteClient, cfg *config.SyncConfig) *Manager {
	return &Manager{
		store:  store,
		client: client,
		cfg:    cfg,
	}
}

// Sync runs a synchronization pass. In background mode phase 1 is followed
// by the deep phase over every incomplete species; otherwise only stubs are
// complemented. onProgress may be nil.
//
// Sync never returns an error: failures are recorded in the sync state row
// as "failed: <description>" and reflected in the result counters.
func (m *Manager) Sync(ctx context.Context, background bool, onProgress models.ProgressFunc) models.SyncResult {
	if !m.syncMu.TryLock() {
		logging.Warn().Msg("Sync already in progress, skipping")
		return models.SyncResult{Skipped: true}
	}
	defer m.syncMu.Unlock()

	start := time.Now()
	var result models.SyncResult

	prev, _, err := m.store.SyncState(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to read sync state")
	}
	if err := m.store.SetSyncState(ctx, models.StatusInProgress, prev.LastSync); err != nil {
		logging.Error().Err(err).Msg("Failed to mark sync in progress")
		result.Duration = time.Since(start)
		return result
	}

	if err := m.runSync(ctx, background, onProgress, &result); err != nil {
		metrics.SyncErrors.WithLabelValues(errorType(err)).Inc()
		desc := err.Error()
		logging.Error().Err(err).Msg("Sync failed")
		if serr := m.store.SetSyncState(ctx, models.StatusFailedPrefix+desc, prev.LastSync); serr != nil {
			logging.Error().Err(serr).Msg("Failed to record sync failure")
		}
	} else {
		now := time.Now()
		if serr := m.store.SetSyncState(ctx, models.StatusSuccess, now); serr != nil {
			logging.Error().Err(serr).Msg("Failed to record sync success")
		} else {
			metrics.SyncLastSuccess.Set(float64(now.Unix()))
		}
	}

	result.Duration = time.Since(start)
	metrics.SyncDuration.Observe(result.Duration.Seconds())
	return result
}

// runSync executes both phases. The returned error is recorded in the
// sync state by the caller.
func (m *Manager) runSync(ctx context.Context, background bool, onProgress models.ProgressFunc, result *models.SyncResult) error {
	if regions := m.client.Regions(ctx); len(regions) > 0 {
		created, err := m.store.UpsertRegions(ctx, names(regions))
		if err != nil {
			return fmt.Errorf("region upsert: %w", err)
		}
		if created > 0 {
			logging.Info().Int("created", created).Msg("Regions upserted")
		}
	}

	// An unavailable index is a transient fetch failure, not a fatal one.
	// The stub phase becomes a no-op and the run carries on with whatever
	// species the store already holds.
	if index := m.client.SpeciesIndex(ctx); len(index) == 0 {
		logging.Warn().Msg("Species index unavailable, skipping stub phase")
	} else {
		inserted, err := m.insertStubs(ctx, index, background, onProgress)
		if err != nil {
			return fmt.Errorf("stub insert: %w", err)
		}
		result.StubsInserted = inserted
		metrics.SyncRecordsProcessed.WithLabelValues("stub").Add(float64(inserted))
		logging.Info().Int("inserted", inserted).Int("index_size", len(index)).Msg("Stub phase complete")
	}

	if !background {
		return nil
	}
	return m.deepPhase(ctx, onProgress, result)
}

// insertStubs complements the store with stub rows for index entries it
// does not hold yet.
func (m *Manager) insertStubs(ctx context.Context, index []pokeapi.NamedResource, background bool, onProgress models.ProgressFunc) (int, error) {
	existing, err := m.store.ExistingSpeciesIDs(ctx)
	if err != nil {
		return 0, err
	}

	stubs := make([]models.Stub, 0, len(index))
	for i, entry := range index {
		id, ok := idFromURL(entry.URL)
		if !ok {
			logging.Warn().Str("url", entry.URL).Msg("Unparseable species URL in index")
			continue
		}
		if _, have := existing[id]; have {
			continue
		}
		stubs = append(stubs, models.Stub{
			ID:         id,
			Name:       entry.Name,
			SpeciesURL: entry.URL,
			SpriteURL:  stubSpriteURL(id),
		})
		if background && onProgress != nil && (i+1)%stubProgressStride == 0 {
			onProgress("stub", i+1, len(index))
		}
	}

	return m.store.InsertStubs(ctx, stubs, m.cfg.StubBatchSize)
}

// deepPhase upgrades every incomplete species on a bounded worker pool.
// Individual fetch failures skip the species; storage failures abort the
// pool and fail the run.
func (m *Manager) deepPhase(ctx context.Context, onProgress models.ProgressFunc, result *models.SyncResult) error {
	ids, err := m.store.SpeciesIDs(ctx)
	if err != nil {
		return fmt.Errorf("species id scan: %w", err)
	}

	total := len(ids)
	var processed, updated, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			err := m.deepUpdate(gctx, id)
			switch {
			case err == nil:
				updated.Add(1)
			case errors.Is(err, errNoData):
				skipped.Add(1)
			default:
				return fmt.Errorf("species %d: %w", id, err)
			}

			n := int(processed.Add(1))
			if onProgress != nil && (n%m.cfg.ProgressStride == 0 || n == total) {
				onProgress("deep", n, total)
			}
			return nil
		})
	}

	err = g.Wait()
	result.DeepUpdated = int(updated.Load())
	result.DeepSkipped = int(skipped.Load())
	if err != nil {
		result.DeepFailed = total - int(processed.Load())
		return err
	}

	metrics.SyncRecordsProcessed.WithLabelValues("deep").Add(float64(result.DeepUpdated))
	logging.Info().
		Int("updated", result.DeepUpdated).
		Int("skipped", result.DeepSkipped).
		Int("total", total).
		Msg("Deep phase complete")
	return nil
}

// deepUpdate fetches and persists the full record for one species.
// Complete species are left untouched. Returns errNoData when the primary
// payload could not be fetched; any other error is a storage failure.
func (m *Manager) deepUpdate(ctx context.Context, id int64) error {
	stored, err := m.store.GetSpecies(ctx, id)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return err
	}
	if stored.IsComplete() {
		return nil
	}

	rec, err := m.buildDeepRecord(ctx, id, stored)
	if err != nil {
		return err
	}
	return m.store.UpsertDeep(ctx, rec)
}

// buildDeepRecord resolves every remote lookup a deep upsert needs:
// pokemon and species details, the region hop, and the details of types,
// abilities and moves the store does not know yet. Child fetch failures
// degrade the record instead of failing it.
func (m *Manager) buildDeepRecord(ctx context.Context, id int64, stored *models.Species) (*models.DeepRecord, error) {
	ref := strconv.FormatInt(id, 10)
	if stored != nil && stored.SpeciesURL != nil {
		// Species and pokemon ids coincide for default varieties, but
		// the stored URL is authoritative when present.
		ref = *stored.SpeciesURL
		ref = strings.Replace(ref, "/pokemon-species/", "/pokemon/", 1)
	}

	p := m.client.Pokemon(ctx, ref)
	if p == nil {
		return nil, errNoData
	}

	var s *pokeapi.Species
	if p.Species.URL != "" {
		s = m.client.SpeciesDetail(ctx, p.Species.URL)
	} else {
		s = m.client.SpeciesDetail(ctx, strconv.FormatInt(id, 10))
	}

	rec := &models.DeepRecord{
		Species: normalizeSpecies(p, s),
	}
	rec.Species.ID = id

	if s != nil && s.Generation != nil && s.Generation.URL != "" {
		if gen := m.client.Generation(ctx, s.Generation.URL); gen != nil && gen.MainRegion != nil {
			rec.RegionName = gen.MainRegion.Name
		}
	}

	if err := m.resolveTypes(ctx, p, rec); err != nil {
		return nil, err
	}
	if err := m.resolveAbilities(ctx, p, rec); err != nil {
		return nil, err
	}
	if err := m.resolveMoves(ctx, p, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// resolveTypes records the species type names in slot order and fetches
// full details for types the store has never seen, so their efficacy
// edges can be persisted alongside.
func (m *Manager) resolveTypes(ctx context.Context, p *pokeapi.Pokemon, rec *models.DeepRecord) error {
	typeNames := make([]string, 0, len(p.Types))
	for _, t := range p.Types {
		typeNames = append(typeNames, t.Type.Name)
	}
	rec.Types = typeNames

	known, err := m.store.KnownNames(ctx, "types", typeNames)
	if err != nil {
		return err
	}
	for _, name := range typeNames {
		if _, have := known[name]; have {
			continue
		}
		if raw := m.client.TypeDetail(ctx, name); raw != nil {
			rec.NewTypes = append(rec.NewTypes, normalizeTypeDetail(raw))
		}
	}
	return nil
}

// resolveAbilities builds ability grants, fetching effect text only for
// abilities not yet persisted.
func (m *Manager) resolveAbilities(ctx context.Context, p *pokeapi.Pokemon, rec *models.DeepRecord) error {
	abilityNames := make([]string, 0, len(p.Abilities))
	for _, a := range p.Abilities {
		abilityNames = append(abilityNames, a.Ability.Name)
	}

	known, err := m.store.KnownNames(ctx, "abilities", abilityNames)
	if err != nil {
		return err
	}
	for _, a := range p.Abilities {
		grant := models.AbilityGrant{
			Name:     a.Ability.Name,
			IsHidden: a.IsHidden,
			Slot:     a.Slot,
		}
		if _, have := known[a.Ability.Name]; !have {
			if raw := m.client.AbilityDetail(ctx, a.Ability.Name); raw != nil {
				grant.Description, grant.ShortDescription = englishEffect(raw.EffectEntries)
			} else {
				grant.Description, grant.ShortDescription = noEffectDescription, noEffectDescription
			}
		}
		rec.Abilities = append(rec.Abilities, grant)
	}
	return nil
}

// resolveMoves flattens and deduplicates move-learn entries and fetches
// details for moves the store does not hold. A learn entry whose move
// detail cannot be fetched keeps a nil Detail and contributes no join row.
func (m *Manager) resolveMoves(ctx context.Context, p *pokeapi.Pokemon, rec *models.DeepRecord) error {
	learns := flattenMoves(p.Moves)
	if len(learns) == 0 {
		return nil
	}

	nameSet := make(map[string]struct{})
	moveNames := make([]string, 0, len(learns))
	for _, l := range learns {
		if _, dup := nameSet[l.Name]; dup {
			continue
		}
		nameSet[l.Name] = struct{}{}
		moveNames = append(moveNames, l.Name)
	}

	known, err := m.store.KnownNames(ctx, "moves", moveNames)
	if err != nil {
		return err
	}

	details := make(map[string]*models.Move, len(moveNames))
	for _, name := range moveNames {
		if _, have := known[name]; have {
			continue
		}
		if raw := m.client.MoveDetail(ctx, name); raw != nil {
			details[name] = normalizeMove(raw)
		}
	}

	for i := range learns {
		if d, ok := details[learns[i].Name]; ok {
			learns[i].Detail = d
		}
	}
	rec.Moves = learns
	return nil
}

// EnsureComplete guarantees the species is deep-fetched before returning
// it. A species that is already complete is returned as stored. When the
// remote has no data, the stub is returned as-is; an unknown id yields
// database.ErrNotFound.
func (m *Manager) EnsureComplete(ctx context.Context, id int64) (*models.Species, error) {
	stored, err := m.store.GetSpecies(ctx, id)
	if err == nil && stored.IsComplete() {
		return stored, nil
	}
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	derr := m.deepUpdate(ctx, id)
	switch {
	case derr == nil:
		return m.store.GetSpecies(ctx, id)
	case errors.Is(derr, errNoData):
		if stored != nil {
			return stored, nil
		}
		return nil, database.ErrNotFound
	default:
		return nil, derr
	}
}

// LastSyncStatus returns the current sync state. Before any run the zero
// state with the "never synced" timestamp is returned.
func (m *Manager) LastSyncStatus(ctx context.Context) (models.SyncState, error) {
	state, _, err := m.store.SyncState(ctx)
	return state, err
}

// FormsOf lists the varieties of a species as reported by the remote,
// including derived form names. The result is empty when the remote has
// no data for the id.
func (m *Manager) FormsOf(ctx context.Context, id int64) ([]models.Form, error) {
	s := m.client.SpeciesDetail(ctx, strconv.FormatInt(id, 10))
	if s == nil {
		return nil, nil
	}

	forms := make([]models.Form, 0, len(s.Varieties))
	for _, v := range s.Varieties {
		forms = append(forms, models.Form{
			Slug:      v.Pokemon.Name,
			FormName:  deriveFormName(v.Pokemon.Name, s.Name),
			IsDefault: v.IsDefault,
		})
	}
	return forms, nil
}

// idFromURL parses the trailing numeric path segment of a resource URL,
// e.g. ".../pokemon-species/151/" yields 151.
func idFromURL(url string) (int64, bool) {
	trimmed := strings.TrimSuffix(url, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(trimmed[idx+1:], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// errorType buckets an error for the sync error metric.
func errorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case strings.Contains(err.Error(), "index unavailable"):
		return "remote"
	default:
		return "storage"
	}
}
