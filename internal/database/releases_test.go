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

func mustGroupAndCategory(t *testing.T, db *DB) (groupID, categoryID int64) {
	t.Helper()
	ctx := context.Background()

	gid, err := db.InsertGroup(ctx, Group{Name: "alt.binaries.test", Active: true, MinFiles: 1})
	require.NoError(t, err)

	cid, err := db.DefaultCategoryID(ctx)
	require.NoError(t, err)

	return gid, cid
}

func TestUpsertRelease_InsertsNew(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	groupID, categoryID := mustGroupAndCategory(t, db)

	id, err := db.UpsertRelease(ctx, Release{
		Name:       "Some.Release.Name",
		SearchName: "somereleasename",
		GUID:       "deadbeef",
		Files:      3,
		GroupID:    groupID,
		CategoryID: categoryID,
		Status:     StatusActive,
		Passworded: PasswordedUnknown,
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	r, err := db.ReleaseByGUID(ctx, "deadbeef")
	require.NoError(t, err)
	require.Equal(t, 3, r.Files)
}

func TestUpsertRelease_ExtendsOnlyWhenMoreFilesObserved(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	groupID, categoryID := mustGroupAndCategory(t, db)

	base := Release{
		Name:       "Some.Release.Name",
		SearchName: "somereleasename",
		GUID:       "deadbeef",
		Files:      3,
		GroupID:    groupID,
		CategoryID: categoryID,
		Status:     StatusActive,
		Passworded: PasswordedUnknown,
	}
	_, err := db.UpsertRelease(ctx, base)
	require.NoError(t, err)

	// Fewer or equal files observed: the stored row must not regress.
	stale := base
	stale.Files = 2
	stale.Size = 999
	_, err = db.UpsertRelease(ctx, stale)
	require.NoError(t, err)

	r, err := db.ReleaseByGUID(ctx, "deadbeef")
	require.NoError(t, err)
	require.Equal(t, 3, r.Files)
	require.NotEqual(t, int64(999), r.Size)

	// More files observed: the row extends in place, same id.
	grown := base
	grown.Files = 7
	grown.Size = 12345
	_, err = db.UpsertRelease(ctx, grown)
	require.NoError(t, err)

	r, err = db.ReleaseByGUID(ctx, "deadbeef")
	require.NoError(t, err)
	require.Equal(t, 7, r.Files)
	require.Equal(t, int64(12345), r.Size)
}

func TestReleaseByGUID_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.ReleaseByGUID(context.Background(), "nonexistent")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMarkProcessed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	groupID, categoryID := mustGroupAndCategory(t, db)

	id, err := db.UpsertRelease(ctx, Release{
		Name:       "Some.Release.Name",
		SearchName: "somereleasename",
		GUID:       "deadbeef",
		Files:      3,
		GroupID:    groupID,
		CategoryID: categoryID,
	})
	require.NoError(t, err)
	require.NoError(t, db.MarkProcessed(ctx, id))

	r, err := db.ReleaseByGUID(ctx, "deadbeef")
	require.NoError(t, err)
	require.True(t, r.Processed)
}
