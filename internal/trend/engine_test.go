package trend

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heimdall/internal/domain"
	"heimdall/internal/storage"
	"heimdall/internal/storage/memory"
)

type trendEnv struct {
	engine  *Engine
	silver  *memory.SilverStore
	catalog *memory.CatalogStore
	cache   *Cache
}

func newTrendEnv(t *testing.T) *trendEnv {
	t.Helper()

	watermarks := memory.NewWatermarkStore()
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	env := &trendEnv{
		silver:  memory.NewSilverStore(watermarks),
		catalog: memory.NewCatalogStore(),
		cache:   cache,
	}
	env.engine = NewEngine(env.silver, env.catalog, cache, nil, zerolog.Nop())
	env.engine.clock = func() time.Time {
		return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	}
	return env
}

func (env *trendEnv) seedBars(t *testing.T, key string, bars []*domain.Bar) {
	t.Helper()
	for _, bar := range bars {
		bar.CatalogKey = key
	}
	err := env.silver.CommitCleaned(context.Background(), &storage.CleaningBatch{
		SourceAPI:     "yfinance",
		Bars:          bars,
		CatalogKeys:   []string{key},
		MaxInsertedAt: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

func (env *trendEnv) seedEntry(t *testing.T, key string, scope domain.Scope, freq domain.Frequency) {
	t.Helper()
	err := env.catalog.Upsert(context.Background(), &domain.CatalogEntry{
		Key:       key,
		Scope:     scope,
		Role:      domain.RoleJudgment,
		SourceAPI: "yfinance",
		Frequency: freq,
		Active:    true,
	})
	require.NoError(t, err)
}

func TestEngine_ProcessAssetWritesCache(t *testing.T) {
	env := newTrendEnv(t)
	ctx := context.Background()
	env.seedBars(t, "STOCK_PRICE_NVDA", risingBars(100, 0, 40, 80))

	result, err := env.engine.ProcessAsset(ctx, "STOCK_PRICE_NVDA", ModeProduction)
	require.NoError(t, err)

	assert.Equal(t, "STOCK_PRICE_NVDA", result.CatalogKey)
	assert.Equal(t, VersionProduction, result.Version)
	assert.Equal(t, VersionProduction, result.LogicVersion)
	require.NotNil(t, result.VicTrends)
	assert.Len(t, result.VicTrends.Anchors, 3)
	assert.Len(t, result.VicTrends.TrendLines, 2)
	assert.Equal(t, 100, result.VicTrends.Metadata.DataLength)
	assert.Equal(t, "2024-01-01 ~ 2024-04-09", result.VicTrends.Metadata.DateRange)
	require.NotNil(t, result.Indicators)

	// Cached file round-trips
	_, err = os.Stat(env.cache.Path("STOCK_PRICE_NVDA", ModeProduction))
	require.NoError(t, err)
	loaded, err := env.cache.Load("STOCK_PRICE_NVDA", ModeProduction)
	require.NoError(t, err)
	assert.Equal(t, result.VicTrends.TrendLines, loaded.VicTrends.TrendLines)
}

func TestEngine_ProcessAssetNoBars(t *testing.T) {
	env := newTrendEnv(t)

	_, err := env.engine.ProcessAsset(context.Background(), "MISSING", ModeProduction)
	assert.ErrorIs(t, err, ErrNoBars)
}

func TestEngine_RerunOverwritesCache(t *testing.T) {
	env := newTrendEnv(t)
	ctx := context.Background()
	env.seedBars(t, "STOCK_PRICE_NVDA", risingBars(100, 0, 40, 80))

	_, err := env.engine.ProcessAsset(ctx, "STOCK_PRICE_NVDA", ModeProduction)
	require.NoError(t, err)
	_, err = env.engine.ProcessAsset(ctx, "STOCK_PRICE_NVDA", ModeProduction)
	require.NoError(t, err)

	loaded, err := env.cache.Load("STOCK_PRICE_NVDA", ModeProduction)
	require.NoError(t, err)
	assert.Len(t, loaded.VicTrends.TrendLines, 2)
}

func TestEngine_ProcessAllSkipsKeysWithoutBars(t *testing.T) {
	env := newTrendEnv(t)
	ctx := context.Background()

	env.seedEntry(t, "STOCK_PRICE_NVDA", domain.ScopeMicro, domain.FrequencyDaily)
	env.seedEntry(t, "NEWS_NVDA", domain.ScopeMicro, domain.FrequencyDaily)
	env.seedEntry(t, "US_CPI", domain.ScopeMacro, domain.FrequencyMonthly)
	env.seedBars(t, "STOCK_PRICE_NVDA", risingBars(100, 0, 40, 80))

	summary, err := env.engine.ProcessAll(ctx, ModeProduction)
	require.NoError(t, err)

	// The macro entry is out of population entirely
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
}

func TestEngine_DiffComparesProfiles(t *testing.T) {
	env := newTrendEnv(t)
	ctx := context.Background()

	env.seedEntry(t, "STOCK_PRICE_NVDA", domain.ScopeMicro, domain.FrequencyDaily)
	env.seedEntry(t, "STOCK_PRICE_AMD", domain.ScopeMicro, domain.FrequencyDaily)
	env.seedBars(t, "STOCK_PRICE_NVDA", risingBars(100, 0, 40, 80))

	_, err := env.engine.ProcessAsset(ctx, "STOCK_PRICE_NVDA", ModeProduction)
	require.NoError(t, err)
	_, err = env.engine.ProcessAsset(ctx, "STOCK_PRICE_NVDA", ModeExperimental)
	require.NoError(t, err)

	report, err := env.engine.Diff(ctx, 0)
	require.NoError(t, err)

	// AMD has no cached results and is skipped
	require.Equal(t, 1, report.TotalAssets)
	diff := report.Details[0]
	assert.Equal(t, "STOCK_PRICE_NVDA", diff.Asset)
	// Anchor detection is threshold-independent
	assert.Equal(t, 0, diff.AnchorsDiff)
	assert.Equal(t, diff.ExpTrendlines-diff.ProdTrendlines, diff.TrendlinesDiff)
}

func TestCompute_EmptySeries(t *testing.T) {
	result := Compute(nil, ProductionProfile(), time.Now())
	require.NotNil(t, result)
	assert.Empty(t, result.VicTrends.Anchors)
	assert.Empty(t, result.VicTrends.TrendLines)
	assert.Equal(t, 0, result.VicTrends.Metadata.DataLength)
}
