package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heimdall/internal/storage"
)

func TestWatermarkStore_EnsureExistsAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWatermarkStore(pool)

	require.NoError(t, store.EnsureExists(ctx, "US_CPI"))

	wm, err := store.Get(ctx, "US_CPI")
	require.NoError(t, err)
	assert.Equal(t, "US_CPI", wm.CatalogKey)
	assert.Nil(t, wm.LastIngestedAt)
	assert.Nil(t, wm.LastCleanedAt)
	assert.Nil(t, wm.LastSyncedAt)

	// Second call is a no-op
	require.NoError(t, store.EnsureExists(ctx, "US_CPI"))
}

func TestWatermarkStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWatermarkStore(pool)
	_, err := store.Get(context.Background(), "MISSING")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWatermarkStore_SetIngestedCreatesRow(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWatermarkStore(pool)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetIngested(ctx, "STOCK_PRICE_NVDA", ts))

	wm, err := store.Get(ctx, "STOCK_PRICE_NVDA")
	require.NoError(t, err)
	require.NotNil(t, wm.LastIngestedAt)
	assert.True(t, wm.LastIngestedAt.Equal(ts))
	assert.Nil(t, wm.LastCleanedAt)
}

func TestWatermarkStore_SetIngestedMonotonic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWatermarkStore(pool)

	later := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SetIngested(ctx, "US_CPI", later))
	// An earlier timestamp never moves the watermark backwards
	require.NoError(t, store.SetIngested(ctx, "US_CPI", earlier))

	wm, err := store.Get(ctx, "US_CPI")
	require.NoError(t, err)
	require.NotNil(t, wm.LastIngestedAt)
	assert.True(t, wm.LastIngestedAt.Equal(later))
}

func TestWatermarkStore_SetSynced(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWatermarkStore(pool)

	ts := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, store.SetSynced(ctx, "NEWS_NVDA", ts))

	wm, err := store.Get(ctx, "NEWS_NVDA")
	require.NoError(t, err)
	require.NotNil(t, wm.LastSyncedAt)
	assert.True(t, wm.LastSyncedAt.Equal(ts))
}

func TestWatermarkStore_GetForKeys(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWatermarkStore(pool)

	ts := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.SetIngested(ctx, "A", ts))
	require.NoError(t, store.SetIngested(ctx, "B", ts))

	result, err := store.GetForKeys(ctx, []string{"A", "B", "MISSING"})
	require.NoError(t, err)
	assert.Len(t, result, 2)
	assert.Contains(t, result, "A")
	assert.Contains(t, result, "B")
	assert.NotContains(t, result, "MISSING")

	empty, err := store.GetForKeys(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestWatermarkStore_ResetCleaned(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWatermarkStore(pool)

	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	silver := NewSilverStore(pool)
	require.NoError(t, silver.CommitCleaned(ctx, &storage.CleaningBatch{
		SourceAPI:     "FRED",
		CatalogKeys:   []string{"US_CPI", "US_GDP"},
		MaxInsertedAt: ts,
	}))

	require.NoError(t, store.ResetCleaned(ctx, []string{"US_CPI"}))

	wm, err := store.Get(ctx, "US_CPI")
	require.NoError(t, err)
	assert.Nil(t, wm.LastCleanedAt)
	// Ingest watermark survives the reset
	require.NotNil(t, wm.LastIngestedAt)

	other, err := store.Get(ctx, "US_GDP")
	require.NoError(t, err)
	assert.NotNil(t, other.LastCleanedAt)
}

func TestWatermarkStore_List(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWatermarkStore(pool)

	for _, key := range []string{"C_KEY", "A_KEY", "B_KEY"} {
		require.NoError(t, store.EnsureExists(ctx, key))
	}

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "A_KEY", list[0].CatalogKey)
	assert.Equal(t, "B_KEY", list[1].CatalogKey)
	assert.Equal(t, "C_KEY", list[2].CatalogKey)
}

func TestWatermarkStore_EmptyKeyRejected(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWatermarkStore(pool)

	assert.ErrorIs(t, store.EnsureExists(ctx, ""), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.SetIngested(ctx, "", time.Now()), storage.ErrInvalidInput)
	_, err := store.Get(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
