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
	"time"
)

// Group is a tracked newsgroup, see spec §3.
type Group struct {
	ID                int64
	Name              string
	Active            bool
	Backfill          bool
	MinFiles          int
	MinSize           int64
	FirstArticleID    int64
	LastArticleID     int64
	CurrentArticleID  int64
	BackfillTarget    int64
	LastUpdated       time.Time
	CreatedAt         time.Time
}

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("database: not found")

// ActiveGroups returns all groups eligible for the update loop, ordered by
// name for deterministic scheduling.
func (db *DB) ActiveGroups(ctx context.Context) ([]Group, error) {
	return db.queryGroups(ctx, `SELECT id, name, active, backfill, min_files, min_size,
		first_article_id, last_article_id, current_article_id, backfill_target,
		last_updated, created_at FROM "group" WHERE active = true ORDER BY name`)
}

// BackfillGroups returns all groups eligible for the backfill loop whose
// current cursor has not yet reached the backfill target.
func (db *DB) BackfillGroups(ctx context.Context) ([]Group, error) {
	return db.queryGroups(ctx, `SELECT id, name, active, backfill, min_files, min_size,
		first_article_id, last_article_id, current_article_id, backfill_target,
		last_updated, created_at FROM "group" WHERE backfill = true
		AND current_article_id > backfill_target ORDER BY name`)
}

func (db *DB) queryGroups(ctx context.Context, query string, args ...interface{}) ([]Group, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Active, &g.Backfill, &g.MinFiles, &g.MinSize,
			&g.FirstArticleID, &g.LastArticleID, &g.CurrentArticleID, &g.BackfillTarget,
			&g.LastUpdated, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GroupByName fetches a single group by its unique name.
func (db *DB) GroupByName(ctx context.Context, name string) (Group, error) {
	var g Group
	row := db.conn.QueryRowContext(ctx, `SELECT id, name, active, backfill, min_files, min_size,
		first_article_id, last_article_id, current_article_id, backfill_target,
		last_updated, created_at FROM "group" WHERE name = ?`, name)
	err := row.Scan(&g.ID, &g.Name, &g.Active, &g.Backfill, &g.MinFiles, &g.MinSize,
		&g.FirstArticleID, &g.LastArticleID, &g.CurrentArticleID, &g.BackfillTarget,
		&g.LastUpdated, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Group{}, ErrNotFound
	}
	if err != nil {
		return Group{}, fmt.Errorf("group by name %q: %w", name, err)
	}
	return g, nil
}

// SetServerRange records the server-observed article range after a GROUP
// selection, initializing current_article_id/backfill_target on first poll.
func (db *DB) SetServerRange(ctx context.Context, groupID, firstArticleID, lastArticleID int64) error {
	unlock := db.lockRow(fmt.Sprintf("group:%d", groupID))
	defer unlock()

	var currentArticleID, backfillTarget sql.NullInt64
	row := db.conn.QueryRowContext(ctx,
		`SELECT current_article_id, backfill_target FROM "group" WHERE id = ?`, groupID)
	if err := row.Scan(&currentArticleID, &backfillTarget); err != nil {
		return fmt.Errorf("set server range, lookup group %d: %w", groupID, err)
	}

	newCurrent := currentArticleID.Int64
	newTarget := backfillTarget.Int64
	if newCurrent == 0 {
		// First-ever poll: start the forward cursor and the backfill floor
		// at the server's reported last article, per spec §3 lifecycle.
		newCurrent = lastArticleID
		newTarget = lastArticleID
	}

	_, err := db.conn.ExecContext(ctx,
		`UPDATE "group" SET first_article_id = ?, last_article_id = ?,
			current_article_id = ?, backfill_target = ?, last_updated = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		firstArticleID, lastArticleID, newCurrent, newTarget, groupID)
	if err != nil {
		return fmt.Errorf("set server range for group %d: %w", groupID, err)
	}
	return nil
}

// AdvanceCurrentArticleID moves the forward update cursor to scannedThrough,
// the highest article id actually scanned (processed or skipped) in the
// batch, per the scanned-range interpretation of §4.8/S4.
func (db *DB) AdvanceCurrentArticleID(ctx context.Context, groupID, scannedThrough int64) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE "group" SET current_article_id = ?, last_updated = CURRENT_TIMESTAMP
		 WHERE id = ? AND current_article_id < ?`,
		scannedThrough, groupID, scannedThrough)
	if err != nil {
		return fmt.Errorf("advance current_article_id for group %d: %w", groupID, err)
	}
	return nil
}

// AdvanceBackfillTarget moves the backfill cursor forward to newTarget, the
// highest article id reached while backfilling the range
// [backfill_target...current_article_id-1] (§4.8). It never moves the
// target backward and never past current_article_id, self-correcting a
// target that drifted above it (S6) by clamping to current_article_id.
func (db *DB) AdvanceBackfillTarget(ctx context.Context, groupID, newTarget int64) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE "group" SET
			backfill_target = LEAST(GREATEST(?, backfill_target), current_article_id),
			last_updated = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		newTarget, groupID)
	if err != nil {
		return fmt.Errorf("advance backfill_target for group %d: %w", groupID, err)
	}
	return nil
}

// SetBackfillTarget overwrites backfill_target unconditionally, used when
// the update loop's recompute-if-invalid check (§4.8) determines the
// stored value is zero, at/above current_article_id, or implies a
// backfill distance too large to be useful.
func (db *DB) SetBackfillTarget(ctx context.Context, groupID, target int64) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE "group" SET backfill_target = ?, last_updated = CURRENT_TIMESTAMP WHERE id = ?`,
		target, groupID)
	if err != nil {
		return fmt.Errorf("set backfill_target for group %d: %w", groupID, err)
	}
	return nil
}

// InsertGroup creates a new tracked newsgroup (used by admin CRUD and by
// DiscoverGroups when seeding candidates). Returns ErrNotFound-free nil on
// success; a duplicate name is a caller error surfaced from the unique index.
func (db *DB) InsertGroup(ctx context.Context, g Group) (int64, error) {
	row := db.conn.QueryRowContext(ctx,
		`INSERT INTO "group" (name, active, backfill, min_files, min_size)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		g.Name, g.Active, g.Backfill, g.MinFiles, g.MinSize)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("insert group %q: %w", g.Name, err)
	}
	return id, nil
}
