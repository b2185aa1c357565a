// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - NNTP bulk header fetch latency
// - Articles processed / releases materialized throughput (C9, C8)
// - Deobfuscation pipeline cache hit rate and external lookup latency (C6)
// - Group Scheduler loop duration (C9)
// - Circuit breaker state transitions (C11's external clients)
// - The §6 ORN sharing boundary's request rate and latency

var (
	// NNTP Metrics (C2)
	NNTPCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nntp_command_duration_seconds",
			Help:    "Duration of NNTP commands issued against the upstream server",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"}, // "over", "head", "article", "group"
	)

	NNTPCommandErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nntp_command_errors_total",
			Help: "Total number of NNTP commands that returned an error",
		},
		[]string{"command"},
	)

	// Group Scheduler Metrics (C9, §4.8)
	SchedulerLoopDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_loop_duration_seconds",
			Help:    "Duration of one update or backfill loop tick across all dispatched groups",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"loop"}, // "group-update-loop", "group-backfill-loop"
	)

	ArticlesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "articles_processed_total",
			Help: "Total number of article headers folded into the Binary Assembler",
		},
		[]string{"group"},
	)

	ReleasesMaterialized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "releases_materialized_total",
			Help: "Total number of releases upserted by the Release Materializer",
		},
	)

	// Deobfuscation Pipeline Metrics (C6, §4.5)
	DeobfuscationCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deobfuscation_cache_hits_total",
			Help: "Total number of deobfuscation lookups resolved by the ORN cache (stage 1)",
		},
	)

	DeobfuscationCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deobfuscation_cache_misses_total",
			Help: "Total number of deobfuscation lookups that fell through the ORN cache",
		},
	)

	DeobfuscationStageResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deobfuscation_stage_resolutions_total",
			Help: "Total number of deobfuscation lookups resolved by each pipeline stage",
		},
		[]string{"stage"}, // "cache", "regex", "archive", "predb", "newznab"
	)

	ExternalLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "external_lookup_duration_seconds",
			Help:    "Duration of stage 4/5 external release-name lookups (PreDB, Newznab/NZBHydra2)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"}, // "predb", "newznab"
	)

	// ORN Sharing Boundary Metrics (§6)
	ORNRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orn_sharing_requests_total",
			Help: "Total number of requests served by the ORN sharing boundary",
		},
		[]string{"route", "status_code"},
	)

	ORNRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orn_sharing_request_duration_seconds",
			Help:    "Duration of ORN sharing boundary requests",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		},
		[]string{"route"},
	)

	// Circuit Breaker Metrics (C11's external PreDB/Newznab clients)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordNNTPCommand records the duration and outcome of one NNTP command.
func RecordNNTPCommand(command string, duration time.Duration, err error) {
	NNTPCommandDuration.WithLabelValues(command).Observe(duration.Seconds())
	if err != nil {
		NNTPCommandErrors.WithLabelValues(command).Inc()
	}
}

// RecordSchedulerLoop records one update/backfill loop tick's duration.
func RecordSchedulerLoop(loop string, duration time.Duration) {
	SchedulerLoopDuration.WithLabelValues(loop).Observe(duration.Seconds())
}

// RecordArticlesProcessed records headers folded into the assembler for
// group.
func RecordArticlesProcessed(group string, count int) {
	ArticlesProcessed.WithLabelValues(group).Add(float64(count))
}

// RecordReleaseMaterialized records one release upsert.
func RecordReleaseMaterialized() {
	ReleasesMaterialized.Inc()
}

// RecordDeobfuscationCache records a cache hit or miss for stage 1.
func RecordDeobfuscationCache(hit bool) {
	if hit {
		DeobfuscationCacheHits.Inc()
		DeobfuscationStageResolutions.WithLabelValues("cache").Inc()
	} else {
		DeobfuscationCacheMisses.Inc()
	}
}

// RecordDeobfuscationStage records a non-cache stage resolving a name.
func RecordDeobfuscationStage(stage string) {
	DeobfuscationStageResolutions.WithLabelValues(stage).Inc()
}

// RecordExternalLookup records the duration of one stage 4/5 lookup round.
func RecordExternalLookup(source string, duration time.Duration) {
	ExternalLookupDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordORNRequest records one ORN sharing boundary request.
func RecordORNRequest(route, statusCode string, duration time.Duration) {
	ORNRequestsTotal.WithLabelValues(route, statusCode).Inc()
	ORNRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
