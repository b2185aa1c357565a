// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package database

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCategoryID_CreatesExactlyOnceUnderConcurrency(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			id, err := db.DefaultCategoryID(ctx)
			require.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}

	var count int
	row := db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM category WHERE name = 'Other'`)
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 1, count)
}
