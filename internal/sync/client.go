// Dexmirror - Offline Pokédex Mirror and Sync Engine
// Copyright 2026 Dexmirror contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dexmirror/dexmirror

/*
client.go - Remote Catalog API Client

HTTP client for the upstream catalog REST API (PokeAPI v2). All requests
share one connection pool and are paced by a client-side rate limiter,
protected by a circuit breaker, and answered from bounded LRU caches when
possible.

Failure model: every public method fails soft. Network errors, non-2xx
statuses and decode failures are logged and yield a nil/empty result;
callers must treat "no data" as a valid, non-fatal outcome. A species
update that cannot fetch its details is simply skipped and stays
incomplete for a future attempt.

Caching: responses are cached by exact URL with no TTL; the upstream
catalog changes on the timescale of game releases, so entries are
invalidated only by eviction or restart. The general URL cache holds 1024
entries; type, ability, move and species detail lookups get smaller
dedicated caches (64/128/256/128) because a single deep fetch requests the
same child resources dozens of times across species.

Rate limiting: HTTP 429 responses are retried with exponential backoff
(1s base, doubling, max 5 retries), honoring Retry-After when present.
*/

package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/dexmirror/dexmirror/config"
	"github.com/dexmirror/dexmirror/internal/cache"
	"github.com/dexmirror/dexmirror/internal/logging"
	"github.com/dexmirror/dexmirror/internal/metrics"
	"github.com/dexmirror/dexmirror/pkg/models/pokeapi"
)

// maxResponseSize caps a single response body read (the bulk species
// index is ~1MB; anything past this is a misbehaving server).
const maxResponseSize = 16 << 20 // 16MB

// Per-kind cache capacities. The URL cache capacity comes from config.
const (
	typeCacheSize    = 64
	abilityCacheSize = 128
	moveCacheSize    = 256
	speciesCacheSize = 128
)

// RemoteClient is the interface the orchestrator fetches through.
// Implementations fail soft: nil/empty results signal "no data".
type RemoteClient interface {
	Regions(ctx context.Context) []pokeapi.NamedResource
	SpeciesIndex(ctx context.Context) []pokeapi.NamedResource
	Pokemon(ctx context.Context, idOrURL string) *pokeapi.Pokemon
	SpeciesDetail(ctx context.Context, idOrURL string) *pokeapi.Species
	Generation(ctx context.Context, url string) *pokeapi.Generation
	TypeDetail(ctx context.Context, name string) *pokeapi.Type
	AbilityDetail(ctx context.Context, name string) *pokeapi.Ability
	MoveDetail(ctx context.Context, name string) *pokeapi.Move
}

// Client is the production RemoteClient implementation.
// Safe for concurrent use; the caches are shared across goroutines.
type Client struct {
	baseURL        string
	userAgent      string
	client         *http.Client
	limiter        *rate.Limiter
	breaker        *breaker
	maxRetries     int
	retryBaseDelay time.Duration

	urlCache     *cache.LRU
	typeCache    *cache.LRU
	abilityCache *cache.LRU
	moveCache    *cache.LRU
	speciesCache *cache.LRU
}

// NewClient creates a remote client from configuration.
func NewClient(cfg *config.RemoteConfig) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker:        newBreaker("catalog-api"),
		maxRetries:     5,
		retryBaseDelay: time.Second,

		urlCache:     cache.NewLRU("url", cfg.CacheSize),
		typeCache:    cache.NewLRU("type", typeCacheSize),
		abilityCache: cache.NewLRU("ability", abilityCacheSize),
		moveCache:    cache.NewLRU("move", moveCacheSize),
		speciesCache: cache.NewLRU("species", speciesCacheSize),
	}
}

// fetch returns the response body for url, consulting c first (falling
// back to the shared URL cache when c is nil). On any failure it logs and
// returns nil; "no data" is the recovery path, not an error path.
func (c *Client) fetch(ctx context.Context, kind, url string, lru *cache.LRU) []byte {
	if lru == nil {
		lru = c.urlCache
	}
	if body, ok := lru.Get(url); ok {
		metrics.FetchesTotal.WithLabelValues(kind, "cached").Inc()
		return body
	}

	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doRequest(ctx, url)
	})
	metrics.FetchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.FetchesTotal.WithLabelValues(kind, "error").Inc()
		logging.Warn().Err(err).Str("kind", kind).Str("url", url).Msg("Fetch failed")
		return nil
	}

	metrics.FetchesTotal.WithLabelValues(kind, "ok").Inc()
	lru.Put(url, body)
	return body
}

// doRequest performs one HTTP GET with rate pacing and 429 backoff.
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			if attempt == c.maxRetries {
				lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
				break
			}

			delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
					delay = seconds
				}
			}

			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, reqURL)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		return body, nil
	}

	return nil, lastErr
}

// decodeInto unmarshals body into out, logging decode failures.
func decodeInto(body []byte, kind string, out any) bool {
	if body == nil {
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		logging.Warn().Err(err).Str("kind", kind).Msg("Failed to decode response")
		return false
	}
	return true
}

// resourceURL builds a detail URL unless ref already is one.
func (c *Client) resourceURL(resource, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return fmt.Sprintf("%s/%s/%s/", c.baseURL, resource, ref)
}

// Regions fetches the region index. A reasonably high limit returns all
// regions in one page.
func (c *Client) Regions(ctx context.Context) []pokeapi.NamedResource {
	body := c.fetch(ctx, "region", c.baseURL+"/region?limit=100", nil)
	var page pokeapi.Page
	if !decodeInto(body, "region", &page) {
		return nil
	}
	return page.Results
}

// SpeciesIndex fetches the full species name/id index in one bulk call.
func (c *Client) SpeciesIndex(ctx context.Context) []pokeapi.NamedResource {
	body := c.fetch(ctx, "species_index", c.baseURL+"/pokemon-species?limit=10000", nil)
	var page pokeapi.Page
	if !decodeInto(body, "species_index", &page) {
		return nil
	}
	return page.Results
}

// Pokemon fetches one pokemon detail by id, name or full URL.
func (c *Client) Pokemon(ctx context.Context, idOrURL string) *pokeapi.Pokemon {
	body := c.fetch(ctx, "pokemon", c.resourceURL("pokemon", idOrURL), nil)
	var p pokeapi.Pokemon
	if !decodeInto(body, "pokemon", &p) {
		return nil
	}
	return &p
}

// SpeciesDetail fetches one species detail by id, name or full URL.
func (c *Client) SpeciesDetail(ctx context.Context, idOrURL string) *pokeapi.Species {
	body := c.fetch(ctx, "species", c.resourceURL("pokemon-species", idOrURL), c.speciesCache)
	var s pokeapi.Species
	if !decodeInto(body, "species", &s) {
		return nil
	}
	return &s
}

// Generation fetches a generation detail (for the region hop).
func (c *Client) Generation(ctx context.Context, url string) *pokeapi.Generation {
	body := c.fetch(ctx, "generation", url, nil)
	var g pokeapi.Generation
	if !decodeInto(body, "generation", &g) {
		return nil
	}
	return &g
}

// TypeDetail fetches one type detail by name.
func (c *Client) TypeDetail(ctx context.Context, name string) *pokeapi.Type {
	body := c.fetch(ctx, "type", c.resourceURL("type", name), c.typeCache)
	var t pokeapi.Type
	if !decodeInto(body, "type", &t) {
		return nil
	}
	return &t
}

// AbilityDetail fetches one ability detail by name.
func (c *Client) AbilityDetail(ctx context.Context, name string) *pokeapi.Ability {
	body := c.fetch(ctx, "ability", c.resourceURL("ability", name), c.abilityCache)
	var a pokeapi.Ability
	if !decodeInto(body, "ability", &a) {
		return nil
	}
	return &a
}

// MoveDetail fetches one move detail by name.
func (c *Client) MoveDetail(ctx context.Context, name string) *pokeapi.Move {
	body := c.fetch(ctx, "move", c.resourceURL("move", name), c.moveCache)
	var m pokeapi.Move
	if !decodeInto(body, "move", &m) {
		return nil
	}
	return &m
}
