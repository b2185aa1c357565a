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

func TestInsertGroup_And_GroupByName(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.InsertGroup(ctx, Group{Name: "alt.binaries.test", Active: true, MinFiles: 1})
	require.NoError(t, err)
	require.NotZero(t, id)

	g, err := db.GroupByName(ctx, "alt.binaries.test")
	require.NoError(t, err)
	require.Equal(t, id, g.ID)
	require.True(t, g.Active)
	require.Zero(t, g.CurrentArticleID)
}

func TestGroupByName_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GroupByName(context.Background(), "does.not.exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetServerRange_FirstPollInitializesCursors(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.InsertGroup(ctx, Group{Name: "alt.binaries.test", Active: true, MinFiles: 1})
	require.NoError(t, err)

	require.NoError(t, db.SetServerRange(ctx, id, 100, 5000))

	g, err := db.GroupByName(ctx, "alt.binaries.test")
	require.NoError(t, err)
	require.Equal(t, int64(100), g.FirstArticleID)
	require.Equal(t, int64(5000), g.LastArticleID)
	require.Equal(t, int64(5000), g.CurrentArticleID)
	require.Equal(t, int64(5000), g.BackfillTarget)
}

func TestSetServerRange_SubsequentPollPreservesCursors(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.InsertGroup(ctx, Group{Name: "alt.binaries.test", Active: true, MinFiles: 1})
	require.NoError(t, err)
	require.NoError(t, db.SetServerRange(ctx, id, 100, 5000))
	require.NoError(t, db.AdvanceCurrentArticleID(ctx, id, 4800))

	// A later poll observing a larger last_article_id must not reset the
	// forward cursor that update work has already advanced.
	require.NoError(t, db.SetServerRange(ctx, id, 100, 6000))

	g, err := db.GroupByName(ctx, "alt.binaries.test")
	require.NoError(t, err)
	require.Equal(t, int64(6000), g.LastArticleID)
	require.Equal(t, int64(4800), g.CurrentArticleID)
}

func TestAdvanceCurrentArticleID_NeverMovesBackward(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.InsertGroup(ctx, Group{Name: "alt.binaries.test", Active: true, MinFiles: 1})
	require.NoError(t, err)
	require.NoError(t, db.SetServerRange(ctx, id, 100, 5000))
	require.NoError(t, db.AdvanceCurrentArticleID(ctx, id, 4900))
	require.NoError(t, db.AdvanceCurrentArticleID(ctx, id, 4800))

	g, err := db.GroupByName(ctx, "alt.binaries.test")
	require.NoError(t, err)
	require.Equal(t, int64(4900), g.CurrentArticleID)
}

func TestAdvanceBackfillTarget_ClampsToCurrentArticleID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.InsertGroup(ctx, Group{Name: "alt.binaries.test", Backfill: true, MinFiles: 1})
	require.NoError(t, err)
	require.NoError(t, db.SetServerRange(ctx, id, 100, 5000))

	// current_article_id starts equal to last_article_id on first poll
	// (5000); advancing past it must clamp down to current_article_id.
	require.NoError(t, db.AdvanceBackfillTarget(ctx, id, 6000))

	g, err := db.GroupByName(ctx, "alt.binaries.test")
	require.NoError(t, err)
	require.Equal(t, int64(5000), g.BackfillTarget)
}

func TestAdvanceBackfillTarget_NeverMovesBackward(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.InsertGroup(ctx, Group{Name: "alt.binaries.test", Backfill: true, MinFiles: 1})
	require.NoError(t, err)
	require.NoError(t, db.SetServerRange(ctx, id, 100, 5000))
	require.NoError(t, db.SetBackfillTarget(ctx, id, 1000))
	require.NoError(t, db.AdvanceBackfillTarget(ctx, id, 2000))
	require.NoError(t, db.AdvanceBackfillTarget(ctx, id, 1500))

	g, err := db.GroupByName(ctx, "alt.binaries.test")
	require.NoError(t, err)
	require.Equal(t, int64(2000), g.BackfillTarget)
}

func TestActiveGroups_And_BackfillGroups(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.InsertGroup(ctx, Group{Name: "a.active", Active: true, MinFiles: 1})
	require.NoError(t, err)
	id2, err := db.InsertGroup(ctx, Group{Name: "b.backfill", Backfill: true, MinFiles: 1})
	require.NoError(t, err)
	require.NoError(t, db.SetServerRange(ctx, id2, 0, 1000))
	require.NoError(t, db.SetBackfillTarget(ctx, id2, 500))

	active, err := db.ActiveGroups(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "a.active", active[0].Name)

	backfill, err := db.BackfillGroups(ctx)
	require.NoError(t, err)
	require.Len(t, backfill, 1)
	require.Equal(t, "b.backfill", backfill[0].Name)
}
