// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package database provides data access for the indexer's persistent state:
// groups, releases, categories, ORN mappings, regex patterns, settings, and
// users.
//
// # Architecture
//
//   - database.go: connection lifecycle (open, extensions, schema, close)
//   - database_extensions.go / database_extensions_core.go: DuckDB extension
//     install with INSTALL/LOAD/FORCE INSTALL fallback
//   - database_connection.go: connection pool tuning and error classification
//   - schema.go: table and index definitions
//   - migrations.go: versioned schema migrations beyond the initial schema
//   - row_locks.go: per-key mutexes and prepared statement cache
//   - groups.go: Group CRUD and cursor updates
//   - releases.go: Release upsert keyed by GUID
//   - categories.go: Category upsert-on-demand
//   - orn.go: ORNMapping cache reads/writes
//   - regex.go: ReleaseRegex ordered loading and match-count bookkeeping
//   - settings.go: Setting key/value storage
//
// # Database technology
//
// DuckDB (github.com/duckdb/duckdb-go/v2) is used as the embedded ACID store.
// Any store satisfying the persistence contract in spec.md §3/§6 would do;
// DuckDB was chosen because it needs no separate server process and gives
// transactional upserts with ordinary SQL.
package database
