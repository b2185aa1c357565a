// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
row_locks.go - Prepared Statement Cache and Per-Key Row Locking

Two small caching/locking primitives shared by groups.go, releases.go,
categories.go, orn.go, regex.go and settings.go:

 1. Prepared Statement Cache: caches compiled SQL statements for reuse,
    guarded by a RWMutex, closed in DB.Close().

 2. Per-Key Locking: a mutex per arbitrary string key (release GUID,
    obfuscated ORN hash), backed by sync.Map for lock-free access to the
    lock registry itself. The read-then-upsert patterns in releases.go and
    orn.go ("extend only if observed_now > stored.files", "overwrite only
    if confidence is higher") are not atomic in a single SQL statement, so
    concurrent workers touching the same key must serialize through this
    lock rather than just relying on DuckDB's own transaction isolation.
*/

package database

import (
	"context"
	"database/sql"
	"sync"
)

// prepared returns a cached *sql.Stmt for query, preparing and caching it on
// first use.
func (db *DB) prepared(ctx context.Context, query string) (*sql.Stmt, error) {
	db.stmtCacheMu.RLock()
	stmt, ok := db.stmtCache[query]
	db.stmtCacheMu.RUnlock()
	if ok {
		return stmt, nil
	}

	db.stmtCacheMu.Lock()
	defer db.stmtCacheMu.Unlock()

	// Another goroutine may have prepared it while we waited for the lock.
	if stmt, ok := db.stmtCache[query]; ok {
		return stmt, nil
	}

	stmt, err := db.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	db.stmtCache[query] = stmt
	return stmt, nil
}

// lockRow acquires a mutex scoped to key, returning a release function.
// Callers should defer the returned function immediately.
func (db *DB) lockRow(key string) func() {
	muInterface, _ := db.rowLocks.LoadOrStore(key, &sync.Mutex{})
	mu := muInterface.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
