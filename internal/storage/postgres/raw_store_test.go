package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heimdall/internal/domain"
	"heimdall/internal/storage"
)

func testRawRecord(hash, key string, insertedAt time.Time) *domain.RawRecord {
	return &domain.RawRecord{
		RequestHash: hash,
		CatalogKey:  key,
		SourceAPI:   "FRED",
		Kind:        domain.KindMacroSeries,
		Payload:     []byte(`{"series_data":{"CPIAUCSL":{"observations":[]}}}`),
		InsertedAt:  insertedAt,
	}
}

func TestRawStore_InsertIfAbsent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawStore(pool)

	rec := testRawRecord("hash-1", "US_CPI", time.Now().UTC())

	stored, err := store.InsertIfAbsent(ctx, rec)
	require.NoError(t, err)
	assert.True(t, stored)

	// Same fingerprint again: silently skipped
	stored, err = store.InsertIfAbsent(ctx, rec)
	require.NoError(t, err)
	assert.False(t, stored)

	exists, err := store.Exists(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists(ctx, "hash-2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRawStore_CommitRawAdvancesWatermark(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawStore(pool)
	watermarks := NewWatermarkStore(pool)

	ingestedAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	rec := testRawRecord("hash-commit", "US_CPI", ingestedAt)

	stored, err := store.CommitRaw(ctx, rec, ingestedAt)
	require.NoError(t, err)
	assert.True(t, stored)

	wm, err := watermarks.Get(ctx, "US_CPI")
	require.NoError(t, err)
	require.NotNil(t, wm.LastIngestedAt)
	assert.True(t, wm.LastIngestedAt.Equal(ingestedAt))
	assert.Nil(t, wm.LastCleanedAt)
}

func TestRawStore_CommitRawDuplicateStillAdvances(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawStore(pool)
	watermarks := NewWatermarkStore(pool)

	first := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	rec := testRawRecord("hash-dup", "US_CPI", first)
	_, err := store.CommitRaw(ctx, rec, first)
	require.NoError(t, err)

	stored, err := store.CommitRaw(ctx, rec, second)
	require.NoError(t, err)
	assert.False(t, stored)

	wm, err := watermarks.Get(ctx, "US_CPI")
	require.NoError(t, err)
	require.NotNil(t, wm.LastIngestedAt)
	assert.True(t, wm.LastIngestedAt.Equal(second))
}

func TestRawStore_DistinctCatalogKeys(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawStore(pool)

	now := time.Now().UTC()
	records := []*domain.RawRecord{
		testRawRecord("h1", "US_CPI", now),
		testRawRecord("h2", "US_CPI", now),
		testRawRecord("h3", "US_GDP", now),
	}
	other := testRawRecord("h4", "STOCK_PRICE_NVDA", now)
	other.SourceAPI = "yfinance"
	records = append(records, other)

	for _, rec := range records {
		_, err := store.InsertIfAbsent(ctx, rec)
		require.NoError(t, err)
	}

	keys, err := store.DistinctCatalogKeys(ctx, "FRED")
	require.NoError(t, err)
	assert.Equal(t, []string{"US_CPI", "US_GDP"}, keys)

	keys, err = store.DistinctCatalogKeys(ctx, "yfinance")
	require.NoError(t, err)
	assert.Equal(t, []string{"STOCK_PRICE_NVDA"}, keys)
}

func TestRawStore_EarliestInsertedAt(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawStore(pool)

	_, ok, err := store.EarliestInsertedAt(ctx, "FRED")
	require.NoError(t, err)
	assert.False(t, ok)

	early := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err = store.InsertIfAbsent(ctx, testRawRecord("h-late", "US_CPI", late))
	require.NoError(t, err)
	_, err = store.InsertIfAbsent(ctx, testRawRecord("h-early", "US_GDP", early))
	require.NoError(t, err)

	earliest, ok, err := store.EarliestInsertedAt(ctx, "FRED")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, earliest.Equal(early))
}

func TestRawStore_SelectDelta(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawStore(pool)

	t1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	t3 := t1.Add(48 * time.Hour)

	for _, rec := range []*domain.RawRecord{
		testRawRecord("d1", "US_CPI", t1),
		testRawRecord("d2", "US_CPI", t2),
		testRawRecord("d3", "US_GDP", t3),
	} {
		_, err := store.InsertIfAbsent(ctx, rec)
		require.NoError(t, err)
	}

	// Only records after t1 when nothing is flagged never-cleaned
	records, err := store.SelectDelta(ctx, "FRED", nil, t1, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "d2", records[0].RequestHash)
	assert.Equal(t, "d3", records[1].RequestHash)

	// A never-cleaned key pulls its full history regardless of the window
	records, err = store.SelectDelta(ctx, "FRED", []string{"US_CPI"}, t3, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "d1", records[0].RequestHash)
	assert.Equal(t, "d2", records[1].RequestHash)
}

func TestRawStore_SelectDeltaOrderAndLimit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawStore(pool)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	// Insert out of chronological order
	for i, hash := range []string{"o3", "o1", "o2"} {
		offsets := []time.Duration{48 * time.Hour, 0, 24 * time.Hour}
		_, err := store.InsertIfAbsent(ctx, testRawRecord(hash, "US_CPI", base.Add(offsets[i])))
		require.NoError(t, err)
	}

	records, err := store.SelectDelta(ctx, "FRED", []string{"US_CPI"}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "o1", records[0].RequestHash)
	assert.Equal(t, "o2", records[1].RequestHash)
	assert.Equal(t, "o3", records[2].RequestHash)

	limited, err := store.SelectDelta(ctx, "FRED", []string{"US_CPI"}, time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "o1", limited[0].RequestHash)
}

func TestRawStore_PayloadRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawStore(pool)

	payload := `{"mode":"history","data":{"historical_data":[{"date":"2025-06-01","open":100.5}]}}`
	rec := testRawRecord("rt-1", "STOCK_PRICE_NVDA", time.Now().UTC())
	rec.SourceAPI = "yfinance"
	rec.Kind = domain.KindOHLCVHistory
	rec.Payload = []byte(payload)

	_, err := store.InsertIfAbsent(ctx, rec)
	require.NoError(t, err)

	records, err := store.SelectDelta(ctx, "yfinance", []string{"STOCK_PRICE_NVDA"}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.KindOHLCVHistory, records[0].Kind)
	assert.JSONEq(t, payload, string(records[0].Payload))
}

func TestRawStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawStore(pool)

	_, err := store.InsertIfAbsent(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.InsertIfAbsent(ctx, &domain.RawRecord{CatalogKey: "X"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.Exists(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.SelectDelta(ctx, "", nil, time.Time{}, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
