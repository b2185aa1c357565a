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

// Category is a release category, optionally nested under a parent.
type Category struct {
	ID       int64
	Name     string
	ParentID sql.NullInt64
}

// defaultCategoryName is the catch-all category assigned to releases the
// Materializer cannot classify more specifically (supplemented feature 4,
// grounded on the Python original's category.py).
const defaultCategoryName = "Other"

// CategoryByName looks up a category by its unique name.
func (db *DB) CategoryByName(ctx context.Context, name string) (Category, error) {
	var c Category
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, name, parent_id FROM category WHERE name = ?`, name)
	err := row.Scan(&c.ID, &c.Name, &c.ParentID)
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	if err != nil {
		return Category{}, fmt.Errorf("category by name %q: %w", name, err)
	}
	return c, nil
}

// DefaultCategoryID returns the id of the "Other" catch-all category,
// creating it exactly once under concurrent access if it does not exist.
func (db *DB) DefaultCategoryID(ctx context.Context) (int64, error) {
	return db.EnsureCategory(ctx, defaultCategoryName)
}

// EnsureCategory looks up a category by name, creating it exactly once
// under concurrent access if it does not exist. The Materializer uses
// this for every category name classify() suggests, not just "Other",
// since the top-level category set is otherwise unseeded.
func (db *DB) EnsureCategory(ctx context.Context, name string) (int64, error) {
	unlock := db.lockRow("category:" + name)
	defer unlock()

	cat, err := db.CategoryByName(ctx, name)
	if err == nil {
		return cat.ID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO category (name) VALUES (?) ON CONFLICT (name) DO NOTHING`,
		name)
	if err != nil {
		return 0, fmt.Errorf("create category %q: %w", name, err)
	}

	cat, err = db.CategoryByName(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("reselect category %q: %w", name, err)
	}
	return cat.ID, nil
}
