// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package instruments the indexer's processing pipeline — NNTP
fetches, the Group Scheduler's two loops, the deobfuscation pipeline's
cache hit rate and external lookup latency, release throughput, the
§6 ORN sharing boundary, and the circuit breakers around the external
PreDB/Newznab clients.

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format
by cmd/indexer, mounted alongside the ORN sharing boundary:

	curl http://localhost:8080/metrics

# Available Metrics

NNTP Metrics:
  - nntp_command_duration_seconds: Command latency (histogram)
    Labels: command (over, head, article, group)
  - nntp_command_errors_total: Failed commands (counter)
    Labels: command

Scheduler Metrics:
  - scheduler_loop_duration_seconds: Per-tick duration (histogram)
    Labels: loop (group-update-loop, group-backfill-loop)
  - articles_processed_total: Headers folded into the assembler (counter)
    Labels: group
  - releases_materialized_total: Releases upserted (counter)

Deobfuscation Pipeline Metrics:
  - deobfuscation_cache_hits_total / _misses_total: Stage 1 cache rate (counters)
  - deobfuscation_stage_resolutions_total: Which stage resolved a name (counter)
    Labels: stage (cache, regex, archive, predb, newznab)
  - external_lookup_duration_seconds: Stage 4/5 round-trip latency (histogram)
    Labels: source (predb, newznab)

ORN Sharing Boundary Metrics (§6):
  - orn_sharing_requests_total: Requests served (counter)
    Labels: route, status_code
  - orn_sharing_request_duration_seconds: Request latency (histogram)
    Labels: route

Circuit Breaker Metrics (external PreDB/Newznab clients):
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total: Request outcomes (counter)
    Labels: name, result
  - circuit_breaker_consecutive_failures: Current streak (gauge)
    Labels: name
  - circuit_breaker_state_transitions_total: Transitions (counter)
    Labels: name, from_state, to_state

# Usage Example

Mounting the endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"

	mux.Handle("/metrics", promhttp.Handler())

Recording a deobfuscation cache check:

	metrics.RecordDeobfuscationCache(hit)

Recording an external lookup round:

	start := time.Now()
	res, ok := p.queryPreDB(ctx, query)
	metrics.RecordExternalLookup("predb", time.Since(start))

# Prometheus Configuration

Example prometheus.yml configuration:

	scrape_configs:
	  - job_name: 'indexer'
	    static_configs:
	      - targets: ['localhost:8080']
	    metrics_path: '/metrics'
	    scrape_interval: 15s

Example PromQL queries:

	# Deobfuscation cache hit rate
	sum(rate(deobfuscation_cache_hits_total[5m]))
	/
	(sum(rate(deobfuscation_cache_hits_total[5m])) + sum(rate(deobfuscation_cache_misses_total[5m])))

	# p95 external lookup latency by source
	histogram_quantile(0.95, sum(rate(external_lookup_duration_seconds_bucket[5m])) by (source, le))

	# Articles processed per minute
	sum(rate(articles_processed_total[1m])) * 60

	# Circuit breaker open alert
	circuit_breaker_state > 0

# Cardinality Management

  - group labels are the tracked newsgroup names (bounded by configured
    groups, not request- or user-derived)
  - route/status_code labels on the ORN metrics are fixed, small sets
  - circuit breaker names are fixed per configured PreDB/Newznab endpoint

# Thread Safety

All metric recording functions are thread-safe; the Prometheus client
library handles synchronization internally.
*/
package metrics
