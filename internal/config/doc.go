// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package config provides centralized configuration management for the indexer.

This package handles loading, validation, and parsing of configuration for all
application components. It ensures consistent configuration across the
scheduler, NNTP client, deobfuscation pipeline, and external lookup clients,
and provides sensible defaults for optional settings.

# Configuration Sources

Configuration loads in three layers via Koanf v2, in increasing priority:

  1. Defaults: built-in sensible defaults (defaultConfig in koanf.go)
  2. Config File: an optional YAML file (config.yaml, or CONFIG_PATH)
  3. Environment Variables: override any setting

# Configuration Structure

  - NNTPConfig: upstream Usenet server connection and credentials
  - SchedulerConfig: update/backfill loop tuning (worker counts, intervals)
  - DeobfuscationConfig: which pipeline stages run and their budgets
  - PreDBConfig / NewznabConfig: external lookup endpoints used by the
    deobfuscation pipeline's external stage
  - DatabaseConfig: DuckDB connection tuning
  - ServerConfig: the narrow internal HTTP surface (healthz, metrics, the
    ORN sharing boundary)
  - SecurityConfig: JWT/casbin settings for the ORN sharing boundary
  - EventBusConfig: optional embedded NATS JetStream bus between the
    Binary Assembler and Release Materializer
  - CacheConfig: optional on-disk cache for hot ORN/regex lookups
  - LoggingConfig: zerolog level and output format

# Environment Variables

Key environment variables by component:

NNTP:
  - NNTP_SERVER: upstream server hostname (required)
  - NNTP_PORT: plaintext port (default: 119)
  - NNTP_SSL / NNTP_SSL_PORT: TLS port (default: 563)
  - NNTP_USERNAME / NNTP_PASSWORD: credentials
  - NNTP_MAX_CONNECTIONS: connection pool size (default: 10)

Scheduler:
  - UPDATE_THREADS / RELEASES_THREADS / POSTPROCESS_THREADS: worker pool
    sizes (default: 1 each)
  - UPDATE_INTERVAL: update loop tick (default: 60s)
  - BACKFILL_INTERVAL: backfill loop tick (default: 300s)
  - BACKFILL_DAYS: default backfill window for newly added groups
  - RETENTION_DAYS: release retention window (default: 1100)

Database:
  - DUCKDB_PATH: database file path (required)
  - DUCKDB_MAX_MEMORY: memory limit (default: 2GB)
  - DUCKDB_THREADS: thread count (default: runtime.NumCPU())

Security:
  - JWT_SECRET: signing secret for the ORN sharing boundary
  - JWT_REQUIRED: whether the ORN boundary requires auth (default: false)

# Mutable Settings

Most scheduler/NNTP tuning values also exist as mutable rows in the Store's
`setting` table (internal/database/settings.go). SettingsResolver
(settings.go in this package) layers those over the static Config at
runtime, letting operators adjust thread counts and backfill windows
without a restart.

# Thread Safety

Config is immutable after Load() returns and is safe for concurrent read
access from multiple goroutines.
*/
package config
