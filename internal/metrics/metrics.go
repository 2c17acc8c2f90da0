// Dexmirror - Offline Pokédex Mirror and Sync Engine
// Copyright 2026 Dexmirror contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dexmirror/dexmirror

// Package metrics provides Prometheus instrumentation for the sync engine.
//
// Collectors are registered on the default registry; the embedding
// application decides whether and where to expose them. The engine itself
// has no HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Remote fetch metrics

	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexmirror_fetches_total",
			Help: "Total remote fetches by resource kind and outcome",
		},
		[]string{"kind", "status"}, // status: ok, error, cached
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dexmirror_fetch_duration_seconds",
			Help:    "Duration of remote fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Response cache metrics

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexmirror_cache_hits_total",
			Help: "Total response cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexmirror_cache_misses_total",
			Help: "Total response cache misses",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexmirror_cache_evictions_total",
			Help: "Total response cache evictions",
		},
		[]string{"cache"},
	)

	// Sync metrics

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dexmirror_sync_duration_seconds",
			Help:    "Duration of full sync runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	SyncRecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexmirror_sync_records_total",
			Help: "Records processed per sync phase",
		},
		[]string{"phase"}, // stub, deep
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexmirror_sync_errors_total",
			Help: "Failed sync operations by error type",
		},
		[]string{"error_type"},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dexmirror_sync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful sync",
		},
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dexmirror_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexmirror_circuit_breaker_requests_total",
			Help: "Circuit breaker request outcomes",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)
)
