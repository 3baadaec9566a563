package ingestion

import (
	"context"
	"time"

	"heimdall/internal/domain"
	"heimdall/internal/storage"
)

// Summary aggregates a batch run over many catalog entries.
type Summary struct {
	Total     int
	Succeeded int
	Cached    int
	Skipped   int
	Failed    int
	Results   []Result
	Duration  time.Duration
}

// Processed counts entries that actually reached an adapter.
func (s Summary) Processed() int {
	return s.Total - s.Skipped
}

// OK reports whether every processed entry succeeded.
func (s Summary) OK() bool {
	return s.Failed == 0
}

// FailedResults returns up to limit failed results for error reporting.
func (s Summary) FailedResults(limit int) []Result {
	var failed []Result
	for _, r := range s.Results {
		if r.Status == StatusFailed {
			failed = append(failed, r)
			if limit > 0 && len(failed) >= limit {
				break
			}
		}
	}
	return failed
}

// RunBatch ingests the active catalog entries matching the filter, one at a
// time in catalog order. A failing entry never aborts the batch; sources
// are independent and one broken API must not starve the rest.
func (e *Engine) RunBatch(ctx context.Context, catalog storage.CatalogStore, filter storage.CatalogFilter, opts Options) (Summary, error) {
	started := e.clock()

	entries, err := catalog.Active(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}

	summary := Summary{Total: len(entries)}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		res := e.IngestOne(ctx, entry, opts)
		summary.Results = append(summary.Results, res)
		switch res.Status {
		case StatusSuccess, StatusDryRun:
			summary.Succeeded++
		case StatusCached:
			summary.Cached++
		case StatusSkipped:
			summary.Skipped++
		case StatusFailed:
			summary.Failed++
		}
	}
	summary.Duration = e.clock().Sub(started)

	if e.metrics != nil && summary.OK() && summary.Processed() > 0 && !opts.DryRun {
		e.metrics.LastSuccessfulIngest.Set(float64(e.clock().Unix()))
	}

	e.log.Info().
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("cached", summary.Cached).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("ingest batch complete")

	return summary, nil
}

// EnsureWatermarks lazily creates watermark rows for entries so operators
// see every tracked key in watermark listings even before its first fetch.
func (e *Engine) EnsureWatermarks(ctx context.Context, entries []*domain.CatalogEntry) error {
	for _, entry := range entries {
		if err := e.watermarks.EnsureExists(ctx, entry.Key); err != nil {
			return err
		}
	}
	return nil
}
