package catalog

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heimdall/internal/domain"
	"heimdall/internal/storage"
	"heimdall/internal/storage/memory"
)

type syncEnv struct {
	syncer     *Syncer
	catalog    *memory.CatalogStore
	watermarks *memory.WatermarkStore
}

func newSyncEnv(t *testing.T) *syncEnv {
	t.Helper()
	env := &syncEnv{
		catalog:    memory.NewCatalogStore(),
		watermarks: memory.NewWatermarkStore(),
	}
	env.syncer = NewSyncer(env.catalog, env.watermarks, zerolog.Nop())
	return env
}

func (env *syncEnv) addEntry(t *testing.T, key string, keywords []string) {
	t.Helper()
	err := env.catalog.Upsert(context.Background(), &domain.CatalogEntry{
		Key:            key,
		Scope:          domain.ScopeMicro,
		Role:           domain.RoleJudgment,
		SourceAPI:      "yfinance",
		Frequency:      domain.FrequencyDaily,
		SearchKeywords: keywords,
		Active:         true,
	})
	require.NoError(t, err)
}

func TestTargetNewsCatalogs(t *testing.T) {
	// Pinned mapping wins over industry detection
	targets := targetNewsCatalogs("STOCK_PRICE_NVDA", []string{"oil"})
	assert.Equal(t, []string{"NEWS_US_TECH_SECTOR"}, targets)

	// Industry rules by keyword substring
	targets = targetNewsCatalogs("STOCK_PRICE_XOM", []string{"Exxon", "oil major"})
	assert.Equal(t, []string{"NEWS_US_ENERGY_SECTOR"}, targets)

	// Multiple rules union and sort
	targets = targetNewsCatalogs("STOCK_PRICE_X", []string{"automotive supplier", "steel"})
	assert.Equal(t, []string{
		"NEWS_JP_MACRO_FUNDAMENTALS",
		"NEWS_US_INDUSTRIAL_SECTOR",
		"NEWS_US_MATERIALS_SECTOR",
	}, targets)

	// No match
	assert.Empty(t, targetNewsCatalogs("STOCK_PRICE_Y", []string{"bakery"}))
}

func TestSyncStock_AppendsKeywordsAndStampsWatermark(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()

	env.addEntry(t, "STOCK_PRICE_NVDA", []string{"NVIDIA", "GPU"})
	env.addEntry(t, "NEWS_US_TECH_SECTOR", []string{"technology"})

	result, err := env.syncer.SyncStock(ctx, "STOCK_PRICE_NVDA")
	require.NoError(t, err)
	assert.Equal(t, SyncStatusSynced, result.Status)
	assert.Equal(t, []string{"NEWS_US_TECH_SECTOR"}, result.TargetCatalogs)

	news, err := env.catalog.GetByKey(ctx, "NEWS_US_TECH_SECTOR")
	require.NoError(t, err)
	assert.Equal(t, []string{"technology", "NVIDIA", "GPU"}, news.SearchKeywords)

	wm, err := env.watermarks.Get(ctx, "STOCK_PRICE_NVDA")
	require.NoError(t, err)
	assert.NotNil(t, wm.LastSyncedAt)
}

func TestSyncStock_Idempotent(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()

	env.addEntry(t, "STOCK_PRICE_NVDA", []string{"NVIDIA"})
	env.addEntry(t, "NEWS_US_TECH_SECTOR", nil)

	_, err := env.syncer.SyncStock(ctx, "STOCK_PRICE_NVDA")
	require.NoError(t, err)
	_, err = env.syncer.SyncStock(ctx, "STOCK_PRICE_NVDA")
	require.NoError(t, err)

	news, err := env.catalog.GetByKey(ctx, "NEWS_US_TECH_SECTOR")
	require.NoError(t, err)
	assert.Equal(t, []string{"NVIDIA"}, news.SearchKeywords)
}

func TestSyncStock_NoKeywords(t *testing.T) {
	env := newSyncEnv(t)

	env.addEntry(t, "STOCK_PRICE_NVDA", nil)

	result, err := env.syncer.SyncStock(context.Background(), "STOCK_PRICE_NVDA")
	require.NoError(t, err)
	assert.Equal(t, SyncStatusNoKeywords, result.Status)
}

func TestSyncStock_MissingTargetCatalog(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()

	// Pinned target news entry was never created
	env.addEntry(t, "STOCK_PRICE_MSFT", []string{"Microsoft"})

	result, err := env.syncer.SyncStock(ctx, "STOCK_PRICE_MSFT")
	require.NoError(t, err)
	assert.Equal(t, SyncStatusFailed, result.Status)
	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0], storage.ErrNotFound)

	_, err = env.watermarks.Get(ctx, "STOCK_PRICE_MSFT")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSyncAll(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()

	env.addEntry(t, "STOCK_PRICE_NVDA", []string{"NVIDIA"})
	env.addEntry(t, "STOCK_PRICE_Y", []string{"bakery"})
	env.addEntry(t, "NEWS_US_TECH_SECTOR", nil)
	env.addEntry(t, "US_CPI", []string{"inflation"}) // not a stock entry

	summary, err := env.syncer.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Synced)
	assert.Equal(t, 1, summary.NoMatch)
	assert.Equal(t, 0, summary.Failed)
}
