// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package database

import (
	"context"
	"fmt"
)

// ReleaseRegex is an ordered subject-parsing pattern, see spec §3.
type ReleaseRegex struct {
	ID           int64
	GroupPattern string
	Regex        string
	Description  string
	Ordinal      int
	Active       bool
	MatchCount   int64
}

// ActiveRegexes returns all active patterns in (ordinal ASC, id ASC) order,
// the application order required by spec §3. The Deobfuscation Pipeline's
// in-memory compiled cache (owned by internal/deobfuscate, not this
// package) is populated from this call and invalidated whenever a pattern
// is inserted, updated, or deleted.
func (db *DB) ActiveRegexes(ctx context.Context) ([]ReleaseRegex, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, group_pattern, regex, description, ordinal, active, match_count
		 FROM release_regexes WHERE active = true ORDER BY ordinal ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query active regexes: %w", err)
	}
	defer rows.Close()

	var patterns []ReleaseRegex
	for rows.Next() {
		var p ReleaseRegex
		if err := rows.Scan(&p.ID, &p.GroupPattern, &p.Regex, &p.Description,
			&p.Ordinal, &p.Active, &p.MatchCount); err != nil {
			return nil, fmt.Errorf("scan regex: %w", err)
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// IncrementRegexMatchCount bumps the statistics counter for a pattern that
// just produced a match.
func (db *DB) IncrementRegexMatchCount(ctx context.Context, id int64) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE release_regexes SET match_count = match_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment regex match count %d: %w", id, err)
	}
	return nil
}
