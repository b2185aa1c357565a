// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ORNMapping is an obfuscated-name to real-name cache entry, see spec §3.
type ORNMapping struct {
	ID             int64
	ObfuscatedHash string
	RealName       string
	Source         string
	Confidence     float64
	UseCount       int64
	CreatedAt      sql.NullTime
	LastUsed       sql.NullTime
}

// ORNLookup reads a cached mapping for hash, bumping use_count and
// last_used on every hit per spec §3 invariants. Returns ErrNotFound on a
// cache miss.
func (db *DB) ORNLookup(ctx context.Context, hash string) (ORNMapping, error) {
	unlock := db.lockRow("orn:" + hash)
	defer unlock()

	var m ORNMapping
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, obfuscated_hash, real_name, source, confidence, use_count,
			created_at, last_used FROM orn_mappings WHERE obfuscated_hash = ?`, hash)
	err := row.Scan(&m.ID, &m.ObfuscatedHash, &m.RealName, &m.Source, &m.Confidence,
		&m.UseCount, &m.CreatedAt, &m.LastUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return ORNMapping{}, ErrNotFound
	}
	if err != nil {
		return ORNMapping{}, fmt.Errorf("orn lookup %q: %w", hash, err)
	}

	_, err = db.conn.ExecContext(ctx,
		`UPDATE orn_mappings SET use_count = use_count + 1, last_used = CURRENT_TIMESTAMP
		 WHERE id = ?`, m.ID)
	if err != nil {
		return ORNMapping{}, fmt.Errorf("bump orn use_count %q: %w", hash, err)
	}
	m.UseCount++
	return m, nil
}

// ORNSave writes a mapping for hash. Per spec §3, write-wins only when the
// new confidence is >= the existing row's confidence; otherwise the call is
// a no-op that leaves the more-trusted mapping untouched.
func (db *DB) ORNSave(ctx context.Context, hash, realName, source string, confidence float64) error {
	unlock := db.lockRow("orn:" + hash)
	defer unlock()

	existing, err := db.ornByHash(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO orn_mappings (obfuscated_hash, real_name, source, confidence)
			 VALUES (?, ?, ?, ?)`, hash, realName, source, confidence)
		if err != nil {
			return fmt.Errorf("insert orn mapping %q: %w", hash, err)
		}
		return nil
	}
	if err != nil {
		return err
	}

	if confidence < existing.Confidence {
		return nil
	}

	_, err = db.conn.ExecContext(ctx,
		`UPDATE orn_mappings SET real_name = ?, source = ?, confidence = ?
		 WHERE id = ?`, realName, source, confidence, existing.ID)
	if err != nil {
		return fmt.Errorf("update orn mapping %q: %w", hash, err)
	}
	return nil
}

func (db *DB) ornByHash(ctx context.Context, hash string) (ORNMapping, error) {
	var m ORNMapping
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, obfuscated_hash, real_name, source, confidence, use_count,
			created_at, last_used FROM orn_mappings WHERE obfuscated_hash = ?`, hash)
	err := row.Scan(&m.ID, &m.ObfuscatedHash, &m.RealName, &m.Source, &m.Confidence,
		&m.UseCount, &m.CreatedAt, &m.LastUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return ORNMapping{}, ErrNotFound
	}
	if err != nil {
		return ORNMapping{}, fmt.Errorf("orn by hash %q: %w", hash, err)
	}
	return m, nil
}

// ORNMappingsBySource returns mappings with confidence at or above min,
// backing the community sharing boundary's read contract (§6).
func (db *DB) ORNMappingsBySource(ctx context.Context, minConfidence float64, limit int) ([]ORNMapping, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, obfuscated_hash, real_name, source, confidence, use_count,
			created_at, last_used FROM orn_mappings WHERE confidence >= ?
		 ORDER BY last_used DESC LIMIT ?`, minConfidence, limit)
	if err != nil {
		return nil, fmt.Errorf("query orn mappings: %w", err)
	}
	defer rows.Close()

	var mappings []ORNMapping
	for rows.Next() {
		var m ORNMapping
		if err := rows.Scan(&m.ID, &m.ObfuscatedHash, &m.RealName, &m.Source, &m.Confidence,
			&m.UseCount, &m.CreatedAt, &m.LastUsed); err != nil {
			return nil, fmt.Errorf("scan orn mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}
