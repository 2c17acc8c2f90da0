// Dexmirror - Offline Pokédex Mirror and Sync Engine
// Copyright 2026 Dexmirror contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dexmirror/dexmirror

package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dexmirror/dexmirror/config"
)

func testRemoteConfig(baseURL string) *config.RemoteConfig {
	return &config.RemoteConfig{
		BaseURL:           baseURL,
		Timeout:           5 * time.Second,
		RequestsPerSecond: 1000,
		UserAgent:         "dexmirror-test/1.0",
		CacheSize:         16,
	}
}

func TestClient_SpeciesIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pokemon-species" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "10000" {
			t.Errorf("Expected limit=10000, got %q", r.URL.Query().Get("limit"))
		}
		if ua := r.Header.Get("User-Agent"); ua != "dexmirror-test/1.0" {
			t.Errorf("Unexpected User-Agent: %q", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"count": 2,
			"results": [
				{"name": "bulbasaur", "url": "https://pokeapi.co/api/v2/pokemon-species/1/"},
				{"name": "ivysaur", "url": "https://pokeapi.co/api/v2/pokemon-species/2/"}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(testRemoteConfig(server.URL))
	index := client.SpeciesIndex(context.Background())

	if len(index) != 2 {
		t.Fatalf("Expected 2 index entries, got %d", len(index))
	}
	if index[0].Name != "bulbasaur" || index[1].Name != "ivysaur" {
		t.Errorf("Unexpected index entries: %+v", index)
	}
}

func TestClient_Pokemon_ByIDAndByURL(t *testing.T) {
	var gotPath atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		_, _ = w.Write([]byte(`{"id": 25, "name": "pikachu"}`))
	}))
	defer server.Close()

	client := NewClient(testRemoteConfig(server.URL))

	p := client.Pokemon(context.Background(), "25")
	if p == nil || p.ID != 25 || p.Name != "pikachu" {
		t.Fatalf("Unexpected pokemon: %+v", p)
	}
	if got := gotPath.Load().(string); got != "/pokemon/25/" {
		t.Errorf("Expected path /pokemon/25/, got %s", got)
	}

	// A full URL is used verbatim instead of being rebuilt
	p = client.Pokemon(context.Background(), server.URL+"/pokemon/raichu/")
	if p == nil {
		t.Fatal("Expected pokemon from URL reference")
	}
	if got := gotPath.Load().(string); got != "/pokemon/raichu/" {
		t.Errorf("Expected path /pokemon/raichu/, got %s", got)
	}
}

func TestClient_SoftFailOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(testRemoteConfig(server.URL))

	if p := client.Pokemon(context.Background(), "1"); p != nil {
		t.Errorf("Expected nil on server error, got %+v", p)
	}
	if s := client.SpeciesDetail(context.Background(), "1"); s != nil {
		t.Errorf("Expected nil species on server error, got %+v", s)
	}
	if idx := client.SpeciesIndex(context.Background()); idx != nil {
		t.Errorf("Expected nil index on server error, got %+v", idx)
	}
}

func TestClient_SoftFailOnBadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := NewClient(testRemoteConfig(server.URL))

	if p := client.Pokemon(context.Background(), "1"); p != nil {
		t.Errorf("Expected nil on decode failure, got %+v", p)
	}
}

func TestClient_RetriesOn429(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id": 1, "name": "bulbasaur"}`))
	}))
	defer server.Close()

	client := NewClient(testRemoteConfig(server.URL))
	client.retryBaseDelay = time.Millisecond

	p := client.Pokemon(context.Background(), "1")
	if p == nil || p.Name != "bulbasaur" {
		t.Fatalf("Expected success after retries, got %+v", p)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 requests (2 rejected, 1 ok), got %d", calls.Load())
	}
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(testRemoteConfig(server.URL))
	client.retryBaseDelay = time.Millisecond
	client.maxRetries = 2

	if p := client.Pokemon(context.Background(), "1"); p != nil {
		t.Errorf("Expected nil after exhausted retries, got %+v", p)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts (initial + 2 retries), got %d", calls.Load())
	}
}

func TestClient_HonorsRetryAfterHeader(t *testing.T) {
	var calls atomic.Int64
	start := time.Now()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id": 1, "name": "bulbasaur"}`))
	}))
	defer server.Close()

	client := NewClient(testRemoteConfig(server.URL))
	client.retryBaseDelay = 10 * time.Second // would dominate without the header

	p := client.Pokemon(context.Background(), "1")
	if p == nil {
		t.Fatal("Expected success after Retry-After wait")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Retry-After: 0 not honored, waited %v", elapsed)
	}
}

func TestClient_CachesResponses(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"id": 1, "name": "electric"}`))
	}))
	defer server.Close()

	client := NewClient(testRemoteConfig(server.URL))

	for i := 0; i < 3; i++ {
		if tp := client.TypeDetail(context.Background(), "electric"); tp == nil {
			t.Fatal("Expected type detail")
		}
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 upstream request for repeated fetches, got %d", calls.Load())
	}
}

func TestClient_ErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id": 1, "name": "bulbasaur"}`))
	}))
	defer server.Close()

	client := NewClient(testRemoteConfig(server.URL))

	if p := client.Pokemon(context.Background(), "1"); p != nil {
		t.Fatalf("Expected nil on 404, got %+v", p)
	}
	if p := client.Pokemon(context.Background(), "1"); p == nil {
		t.Fatal("Expected the second fetch to hit upstream and succeed")
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 upstream requests, got %d", calls.Load())
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
	}))
	defer server.Close()

	client := NewClient(testRemoteConfig(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if p := client.Pokemon(ctx, "1"); p != nil {
		t.Errorf("Expected nil on canceled context, got %+v", p)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Cancellation not honored, took %v", elapsed)
	}
}

func TestClient_SpeciesDetailVarieties(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"id": 386,
			"name": "deoxys",
			"varieties": [
				{"is_default": true, "pokemon": {"name": "deoxys-normal", "url": "u1"}},
				{"is_default": false, "pokemon": {"name": "deoxys-attack", "url": "u2"}}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(testRemoteConfig(server.URL))
	s := client.SpeciesDetail(context.Background(), "386")

	if s == nil || len(s.Varieties) != 2 {
		t.Fatalf("Expected 2 varieties, got %+v", s)
	}
	if !s.Varieties[0].IsDefault || s.Varieties[0].Pokemon.Name != "deoxys-normal" {
		t.Errorf("Unexpected default variety: %+v", s.Varieties[0])
	}
	if s.Varieties[1].IsDefault || s.Varieties[1].Pokemon.Name != "deoxys-attack" {
		t.Errorf("Unexpected form variety: %+v", s.Varieties[1])
	}
}
