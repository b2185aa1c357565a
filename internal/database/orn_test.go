// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestORNSave_And_Lookup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.ORNSave(ctx, "abc123", "Real.Release.Name", "regex_pattern_1", 0.9))

	m, err := db.ORNLookup(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, "Real.Release.Name", m.RealName)
	require.Equal(t, int64(1), m.UseCount)

	m2, err := db.ORNLookup(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, int64(2), m2.UseCount)
}

func TestORNLookup_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.ORNLookup(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestORNSave_WriteWinsOnlyOnHigherOrEqualConfidence(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.ORNSave(ctx, "abc123", "High.Confidence.Name", "predb_main", 0.95))

	// Lower confidence write must not overwrite the higher-confidence mapping.
	require.NoError(t, db.ORNSave(ctx, "abc123", "Low.Confidence.Name", "community", 0.5))

	m, err := db.ORNLookup(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, "High.Confidence.Name", m.RealName)
	require.Equal(t, "predb_main", m.Source)

	// Equal-or-higher confidence write does overwrite.
	require.NoError(t, db.ORNSave(ctx, "abc123", "Newer.Name", "manual", 0.95))
	m, err = db.ORNLookup(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, "Newer.Name", m.RealName)
}

func TestORNMappingsBySource_FiltersByMinConfidence(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.ORNSave(ctx, "high", "High", "manual", 0.95))
	require.NoError(t, db.ORNSave(ctx, "low", "Low", "community", 0.6))

	mappings, err := db.ORNMappingsBySource(ctx, 0.85, 10)
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	require.Equal(t, "high", mappings[0].ObfuscatedHash)
}
