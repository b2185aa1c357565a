// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package release

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cartographus/internal/assembler"
	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Path:                   filepath.Join(t.TempDir(), "test.duckdb"),
		MaxMemory:              "512MB",
		Threads:                2,
		PreserveInsertionOrder: true,
	}
	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func binaryWithParts(name, groupName string, observed, total int) *assembler.Binary {
	b := &assembler.Binary{
		Name:      name,
		GroupName: groupName,
		Subject:   name,
		Poster:    "poster@example.com",
		Parts:     make(map[int]assembler.Segment),
	}
	for i := 1; i <= observed; i++ {
		b.Parts[i] = assembler.Segment{MessageID: "<part" + string(rune('0'+i)) + "@example>", Bytes: 1000}
		b.SizeSum += 1000
	}
	b.TotalParts = total
	return b
}

func TestTrigger_FullyObserved(t *testing.T) {
	require.True(t, Trigger(binaryWithParts("n", "g", 5, 5)))
}

func TestTrigger_UnknownTotalAtLeastOnePart(t *testing.T) {
	require.True(t, Trigger(binaryWithParts("n", "g", 1, 0)))
	require.False(t, Trigger(binaryWithParts("n", "g", 0, 0)))
}

func TestTrigger_QuarterObserved(t *testing.T) {
	// total=8 -> quarter floor is max(2, 8/4)=2, met exactly at 2 observed.
	require.True(t, Trigger(binaryWithParts("n", "g", 2, 8)))
	// total=100 -> quarter floor is 25; 2 observed falls short of every trigger.
	require.False(t, Trigger(binaryWithParts("n", "g", 2, 100)))
}

func TestTrigger_AtLeastFiveRegardlessOfTotal(t *testing.T) {
	require.True(t, Trigger(binaryWithParts("n", "g", 5, 1000)))
}

func TestTrigger_NotYetMet(t *testing.T) {
	require.False(t, Trigger(binaryWithParts("n", "g", 1, 100)))
}

func TestCompletionPercent_UnknownTotalIsFull(t *testing.T) {
	require.Equal(t, 100.0, CompletionPercent(binaryWithParts("n", "g", 1, 0)))
}

func TestCompletionPercent_PartialClampedAtHundred(t *testing.T) {
	require.Equal(t, 50.0, CompletionPercent(binaryWithParts("n", "g", 5, 10)))
	require.Equal(t, 100.0, CompletionPercent(binaryWithParts("n", "g", 10, 10)))
}

func TestMaterialize_InsertsNewReleaseWithDefaultCategory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	m := New(db, nil, t.TempDir())

	bin := binaryWithParts("Some.Unclassified.Thing", "alt.binaries.test", 5, 5)
	r, err := m.Materialize(ctx, bin)
	require.NoError(t, err)
	require.Equal(t, "Some.Unclassified.Thing", r.Name)
	require.Equal(t, GUID("Some.Unclassified.Thing", "alt.binaries.test"), r.GUID)
	require.Equal(t, 100.0, r.Completion)

	cat, err := db.CategoryByName(ctx, "Other")
	require.NoError(t, err)
	require.Equal(t, cat.ID, r.CategoryID)
}

func TestMaterialize_ClassifiesTVFromEpisodeHint(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	m := New(db, nil, t.TempDir())

	bin := binaryWithParts("Some.Show.S01E02.HDTV.x264-GRP", "alt.binaries.teevee", 5, 5)
	r, err := m.Materialize(ctx, bin)
	require.NoError(t, err)

	cat, err := db.CategoryByName(ctx, "TV")
	require.NoError(t, err)
	require.Equal(t, cat.ID, r.CategoryID)
}

func TestMaterialize_ExtendOnlyWhenMoreFilesObserved(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	m := New(db, nil, t.TempDir())

	bin := binaryWithParts("Repeated.Name", "alt.binaries.test", 2, 10)
	first, err := m.Materialize(ctx, bin)
	require.NoError(t, err)
	require.Equal(t, 2, first.Files)

	fewer := binaryWithParts("Repeated.Name", "alt.binaries.test", 1, 10)
	second, err := m.Materialize(ctx, fewer)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 2, second.Files) // unchanged, fewer observed than stored

	more := binaryWithParts("Repeated.Name", "alt.binaries.test", 6, 10)
	third, err := m.Materialize(ctx, more)
	require.NoError(t, err)
	require.Equal(t, first.ID, third.ID)
	require.Equal(t, 6, third.Files)
}

func TestEmitNZB_WritesDocumentAndSkipsIfExists(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	m := New(db, nil, dir)

	bin := binaryWithParts("Emit.Me", "alt.binaries.test", 3, 3)
	guid := GUID(bin.Name, bin.GroupName)

	require.NoError(t, m.EmitNZB(guid, bin, time.Unix(1700000000, 0)))
	path := filepath.Join(dir, guid+".nzb")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "<nzb xmlns=")
	require.Contains(t, string(data), "alt.binaries.test")
	require.Contains(t, string(data), "part1@example")

	// Second call must not overwrite; corrupt the file and confirm it
	// survives a repeat EmitNZB for the same guid.
	require.NoError(t, os.WriteFile(path, []byte("unchanged"), 0o644))
	require.NoError(t, m.EmitNZB(guid, bin, time.Unix(1700000000, 0)))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "unchanged", string(data))
}
