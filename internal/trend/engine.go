package trend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"heimdall/internal/domain"
	"heimdall/internal/observability"
	"heimdall/internal/storage"
)

// ErrNoBars means an asset has no cleaned bars to compute on.
var ErrNoBars = errors.New("no bars for catalog key")

// BarSource loads cleaned daily bars for one asset.
type BarSource interface {
	BarsByKey(ctx context.Context, key string) ([]*domain.Bar, error)
}

// AnchorInfo is an anchor in output form.
type AnchorInfo struct {
	Date      string    `json:"date"`
	Direction Direction `json:"type"`
	Period    Period    `json:"period"`
}

// TrendMetadata summarizes the series the line math ran on.
type TrendMetadata struct {
	DataLength int     `json:"data_length"`
	DateRange  string  `json:"date_range"`
	ATRMean    float64 `json:"atr_mean"`
}

// VicTrendReport holds the anchors and fitted lines for one asset under
// one profile.
type VicTrendReport struct {
	Version       string        `json:"version"`
	Timestamp     string        `json:"timestamp"`
	Anchors       []AnchorInfo  `json:"anchors"`
	TrendLines    []TrendLine   `json:"trendlines"`
	Consolidation Consolidation `json:"consolidation"`
	Metadata      TrendMetadata `json:"metadata"`
}

// StrongLines counts lines with enough touches to be labeled strong.
func (r *VicTrendReport) StrongLines() int {
	count := 0
	for _, line := range r.TrendLines {
		if line.Strength == StrengthStrong {
			count++
		}
	}
	return count
}

// Result is the full per-asset output of one engine run.
type Result struct {
	CatalogKey   string           `json:"catalog_key"`
	Version      string           `json:"version"`
	Timestamp    string           `json:"timestamp"`
	LogicVersion string           `json:"logic_version"`
	VicTrends    *VicTrendReport  `json:"vic_trends"`
	Indicators   *IndicatorReport `json:"technical_indicators"`
}

// Compute runs the full trend and indicator math over cleaned bars.
// Pure: no I/O, deterministic for a fixed now.
func Compute(bars []*domain.Bar, profile Profile, now time.Time) *Result {
	s := NewSeries(bars, profile.ATRPeriod)
	timestamp := now.Format(time.RFC3339)

	anchors := identifyAnchors(s, profile)
	anchorInfos := make([]AnchorInfo, len(anchors))
	for i, a := range anchors {
		anchorInfos[i] = AnchorInfo{
			Date:      a.Date.Format("2006-01-02"),
			Direction: a.Direction,
			Period:    a.Period,
		}
	}

	var atrSum float64
	for _, v := range s.ATR {
		atrSum += v
	}
	meta := TrendMetadata{DataLength: s.Len()}
	if s.Len() > 0 {
		meta.DateRange = fmt.Sprintf("%s ~ %s",
			s.Dates[0].Format("2006-01-02"), s.Dates[s.Len()-1].Format("2006-01-02"))
		meta.ATRMean = atrSum / float64(s.Len())
	}

	return &Result{
		Version:      profile.Version,
		Timestamp:    timestamp,
		LogicVersion: profile.Version,
		VicTrends: &VicTrendReport{
			Version:       profile.Version,
			Timestamp:     timestamp,
			Anchors:       anchorInfos,
			TrendLines:    generateLines(s, anchors, profile),
			Consolidation: checkConsolidation(s, profile),
			Metadata:      meta,
		},
		Indicators: computeIndicators(s, profile, timestamp),
	}
}

// BatchSummary reports one batch run over the daily catalog.
type BatchSummary struct {
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

// Engine loads bars, runs the computation, and persists results to the
// cache.
type Engine struct {
	bars    BarSource
	catalog storage.CatalogStore
	cache   *Cache
	metrics *observability.Metrics
	log     zerolog.Logger
	clock   func() time.Time
}

// NewEngine creates a trend engine. metrics may be nil.
func NewEngine(bars BarSource, catalog storage.CatalogStore, cache *Cache, metrics *observability.Metrics, log zerolog.Logger) *Engine {
	return &Engine{
		bars:    bars,
		catalog: catalog,
		cache:   cache,
		metrics: metrics,
		log:     log,
		clock:   time.Now,
	}
}

// ProcessAsset computes and caches the result for one asset under one
// mode. Returns ErrNoBars when the silver layer has nothing for the key.
func (e *Engine) ProcessAsset(ctx context.Context, catalogKey string, mode Mode) (*Result, error) {
	started := e.clock()
	profile := ProfileFor(mode)

	bars, err := e.bars.BarsByKey(ctx, catalogKey)
	if err != nil {
		e.observe(profile, started, "failed")
		return nil, fmt.Errorf("load bars for %s: %w", catalogKey, err)
	}
	if len(bars) == 0 {
		e.observe(profile, started, "failed")
		return nil, fmt.Errorf("%w: %s", ErrNoBars, catalogKey)
	}

	result := Compute(bars, profile, e.clock())
	result.CatalogKey = catalogKey

	path, err := e.cache.Save(catalogKey, mode, result)
	if err != nil {
		e.observe(profile, started, "failed")
		return nil, err
	}

	e.observe(profile, started, "success")
	if e.metrics != nil {
		e.metrics.TrendLinesFound.WithLabelValues(catalogKey, profile.Version).
			Set(float64(len(result.VicTrends.TrendLines)))
	}
	e.log.Info().
		Str("catalog_key", catalogKey).
		Str("profile", profile.Version).
		Int("bars", len(bars)).
		Int("anchors", len(result.VicTrends.Anchors)).
		Int("trendlines", len(result.VicTrends.TrendLines)).
		Int("strong_lines", result.VicTrends.StrongLines()).
		Str("cache_file", path).
		Msg("trend run complete")

	return result, nil
}

// ProcessAll runs every active daily micro asset through the engine.
// Assets fail independently; a key without bars counts as skipped.
func (e *Engine) ProcessAll(ctx context.Context, mode Mode) (BatchSummary, error) {
	started := e.clock()
	summary := BatchSummary{}

	keys, err := e.dailyAssetKeys(ctx)
	if err != nil {
		return summary, err
	}
	summary.Total = len(keys)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		_, err := e.ProcessAsset(ctx, key, mode)
		switch {
		case err == nil:
			summary.Succeeded++
		case errors.Is(err, ErrNoBars):
			summary.Skipped++
			e.log.Warn().Str("catalog_key", key).Msg("no bars yet, skipping trend run")
		default:
			summary.Failed++
			e.log.Error().Err(err).Str("catalog_key", key).Msg("trend run failed")
		}
	}

	summary.Duration = e.clock().Sub(started)
	e.log.Info().
		Str("mode", string(mode)).
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("trend batch complete")
	return summary, nil
}

// dailyAssetKeys lists the active daily micro-scope catalog keys, the
// population the line math applies to.
func (e *Engine) dailyAssetKeys(ctx context.Context) ([]string, error) {
	entries, err := e.catalog.Active(ctx, storage.CatalogFilter{
		Scope:     domain.ScopeMicro,
		Frequency: domain.FrequencyDaily,
	})
	if err != nil {
		return nil, fmt.Errorf("list daily assets: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Key != "" {
			keys = append(keys, entry.Key)
		}
	}
	return keys, nil
}

func (e *Engine) observe(profile Profile, started time.Time, status string) {
	if e.metrics == nil {
		return
	}
	e.metrics.TrendRunsTotal.WithLabelValues(profile.Version, status).Inc()
	e.metrics.TrendRunDuration.WithLabelValues(profile.Version).
		Observe(e.clock().Sub(started).Seconds())
}
