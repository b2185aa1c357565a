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

func TestSetting_NotFoundWhenUnset(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Setting(context.Background(), SettingNNTPServer)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetSetting_And_Setting(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetSetting(ctx, SettingNNTPServer, "news.example.com"))
	v, err := db.Setting(ctx, SettingNNTPServer)
	require.NoError(t, err)
	require.Equal(t, "news.example.com", v)

	// Upsert overwrites.
	require.NoError(t, db.SetSetting(ctx, SettingNNTPServer, "news2.example.com"))
	v, err = db.Setting(ctx, SettingNNTPServer)
	require.NoError(t, err)
	require.Equal(t, "news2.example.com", v)
}

func TestAllSettings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetSetting(ctx, SettingUpdateThreads, "4"))
	require.NoError(t, db.SetSetting(ctx, SettingBackfillDays, "3"))

	all, err := db.AllSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, "4", all[SettingUpdateThreads])
	require.Equal(t, "3", all[SettingBackfillDays])
}
