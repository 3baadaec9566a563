package trend

import (
	"context"
	"errors"
	"io/fs"
)

// AssetDiff compares the cached production and experimental results for
// one asset.
type AssetDiff struct {
	Asset           string `json:"asset"`
	ProdTrendlines  int    `json:"prod_trendlines"`
	ExpTrendlines   int    `json:"exp_trendlines"`
	TrendlinesDiff  int    `json:"trendlines_diff"`
	ProdStrongLines int    `json:"prod_strong_lines"`
	ExpStrongLines  int    `json:"exp_strong_lines"`
	StrongLinesDiff int    `json:"strong_lines_diff"`
	ProdAnchors     int    `json:"prod_anchors"`
	ExpAnchors      int    `json:"exp_anchors"`
	AnchorsDiff     int    `json:"anchors_diff"`
}

// DiffReport aggregates per-asset profile differences, the regression
// check run before promoting experimental thresholds.
type DiffReport struct {
	TotalAssets        int         `json:"total_assets"`
	AvgTrendlinesDiff  float64     `json:"avg_trendlines_diff"`
	AvgStrongLinesDiff float64     `json:"avg_strong_lines_diff"`
	AvgAnchorsDiff     float64     `json:"avg_anchors_diff"`
	Details            []AssetDiff `json:"details"`
}

// Diff compares cached production and experimental results across the
// daily catalog. Assets missing either cache file are skipped. limit
// caps the assets considered; zero means all.
func (e *Engine) Diff(ctx context.Context, limit int) (*DiffReport, error) {
	keys, err := e.dailyAssetKeys(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	report := &DiffReport{}
	for _, key := range keys {
		prod, err := e.cache.Load(key, ModeProduction)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			e.log.Warn().Err(err).Str("catalog_key", key).Msg("unreadable production cache, skipping")
			continue
		}
		exp, err := e.cache.Load(key, ModeExperimental)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			e.log.Warn().Err(err).Str("catalog_key", key).Msg("unreadable experimental cache, skipping")
			continue
		}
		if prod.VicTrends == nil || exp.VicTrends == nil {
			continue
		}

		diff := AssetDiff{
			Asset:           key,
			ProdTrendlines:  len(prod.VicTrends.TrendLines),
			ExpTrendlines:   len(exp.VicTrends.TrendLines),
			ProdStrongLines: prod.VicTrends.StrongLines(),
			ExpStrongLines:  exp.VicTrends.StrongLines(),
			ProdAnchors:     len(prod.VicTrends.Anchors),
			ExpAnchors:      len(exp.VicTrends.Anchors),
		}
		diff.TrendlinesDiff = diff.ExpTrendlines - diff.ProdTrendlines
		diff.StrongLinesDiff = diff.ExpStrongLines - diff.ProdStrongLines
		diff.AnchorsDiff = diff.ExpAnchors - diff.ProdAnchors
		report.Details = append(report.Details, diff)
	}

	report.TotalAssets = len(report.Details)
	if report.TotalAssets > 0 {
		var lines, strong, anchors int
		for _, d := range report.Details {
			lines += d.TrendlinesDiff
			strong += d.StrongLinesDiff
			anchors += d.AnchorsDiff
		}
		total := float64(report.TotalAssets)
		report.AvgTrendlinesDiff = float64(lines) / total
		report.AvgStrongLinesDiff = float64(strong) / total
		report.AvgAnchorsDiff = float64(anchors) / total
	}
	return report, nil
}
