package cleaning

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"heimdall/internal/domain"
	"heimdall/internal/observability"
	"heimdall/internal/storage"
)

// Options tune one cleaning run.
type Options struct {
	// DryRun computes everything but commits nothing.
	DryRun bool

	// Limit caps the raw records read per source. Zero means no cap.
	Limit int
}

// Stats reports one cleaning pass over one source.
type Stats struct {
	SourceAPI     string
	RawSeen       int
	MacroRows     int
	BarRows       int
	NewsRows      int
	ParseFailures int
	Keys          []string
	Backfill      bool
	MaxInsertedAt time.Time
	Duration      time.Duration
	Committed     bool
}

// Inconsistency is one finding of the consistency verifier.
type Inconsistency struct {
	CatalogKey string
	Detail     string
}

// Engine runs the silver-layer transformation.
type Engine struct {
	raw        storage.RawStore
	silver     storage.SilverStore
	watermarks storage.WatermarkStore
	metrics    *observability.Metrics
	log        zerolog.Logger
	clock      func() time.Time
}

// NewEngine creates a cleaning engine. metrics may be nil.
func NewEngine(raw storage.RawStore, silver storage.SilverStore, watermarks storage.WatermarkStore, metrics *observability.Metrics, log zerolog.Logger) *Engine {
	return &Engine{
		raw:        raw,
		silver:     silver,
		watermarks: watermarks,
		metrics:    metrics,
		log:        log,
		clock:      time.Now,
	}
}

// Run cleans one source: select the differential raw window, transform each
// record, and commit rows plus watermark advances in one transaction.
//
// The selection window is deliberately conservative. Any key never cleaned
// before pulls its full raw history, and the time window starts at the
// minimum cleaning watermark across the source's keys, so a lagging key
// re-reads records other keys already processed. Re-cleaning is idempotent;
// missing a record is not.
func (e *Engine) Run(ctx context.Context, sourceAPI string, opts Options) (Stats, error) {
	started := e.clock()
	stats := Stats{SourceAPI: sourceAPI}

	keys, err := e.raw.DistinctCatalogKeys(ctx, sourceAPI)
	if err != nil {
		return stats, fmt.Errorf("list catalog keys: %w", err)
	}
	if len(keys) == 0 {
		e.log.Info().Str("source_api", sourceAPI).Msg("no raw data to clean")
		return stats, nil
	}

	neverCleaned, after, err := e.selectionWindow(ctx, sourceAPI, keys)
	if err != nil {
		return stats, err
	}
	stats.Backfill = len(neverCleaned) > 0

	records, err := e.raw.SelectDelta(ctx, sourceAPI, neverCleaned, after, opts.Limit)
	if err != nil {
		return stats, fmt.Errorf("select delta: %w", err)
	}
	stats.RawSeen = len(records)
	if len(records) == 0 {
		e.log.Info().Str("source_api", sourceAPI).Msg("cleaning watermark up to date")
		return stats, nil
	}

	batch := &storage.CleaningBatch{SourceAPI: sourceAPI}
	touched := make(map[string]bool)
	for _, rec := range records {
		cleaned, err := CleanRecord(rec)
		if err != nil {
			stats.ParseFailures++
			e.log.Warn().
				Err(err).
				Str("catalog_key", rec.CatalogKey).
				Str("request_hash", rec.RequestHash).
				Msg("skipping malformed raw record")
			continue
		}

		batch.Macro = append(batch.Macro, cleaned.Macro...)
		batch.Bars = append(batch.Bars, cleaned.Bars...)
		batch.News = append(batch.News, cleaned.News...)
		touched[rec.CatalogKey] = true
		if rec.InsertedAt.After(batch.MaxInsertedAt) {
			batch.MaxInsertedAt = rec.InsertedAt
		}
	}

	for key := range touched {
		batch.CatalogKeys = append(batch.CatalogKeys, key)
	}
	sort.Strings(batch.CatalogKeys)

	stats.MacroRows = len(batch.Macro)
	stats.BarRows = len(batch.Bars)
	stats.NewsRows = len(batch.News)
	stats.Keys = batch.CatalogKeys
	stats.MaxInsertedAt = batch.MaxInsertedAt

	if !opts.DryRun && len(batch.CatalogKeys) > 0 {
		if err := e.silver.CommitCleaned(ctx, batch); err != nil {
			stats.Duration = e.clock().Sub(started)
			e.record(stats, "failed")
			return stats, fmt.Errorf("commit cleaned batch: %w", err)
		}
		stats.Committed = true
	}
	stats.Duration = e.clock().Sub(started)

	e.record(stats, "success")
	e.log.Info().
		Str("source_api", sourceAPI).
		Int("raw_seen", stats.RawSeen).
		Int("macro_rows", stats.MacroRows).
		Int("bar_rows", stats.BarRows).
		Int("news_rows", stats.NewsRows).
		Int("parse_failures", stats.ParseFailures).
		Bool("backfill", stats.Backfill).
		Bool("committed", stats.Committed).
		Dur("duration", stats.Duration).
		Msg("cleaning pass complete")

	return stats, nil
}

// RunAll cleans every source with raw data, in the given order. Sources
// fail independently; the first error is returned after all sources ran.
func (e *Engine) RunAll(ctx context.Context, sources []string, opts Options) ([]Stats, error) {
	var all []Stats
	var firstErr error
	for _, source := range sources {
		stats, err := e.Run(ctx, source, opts)
		all = append(all, stats)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("source %s: %w", source, err)
		}
	}
	if firstErr == nil && e.metrics != nil && !opts.DryRun {
		e.metrics.LastSuccessfulClean.Set(float64(e.clock().Unix()))
	}
	return all, firstErr
}

// selectionWindow computes the differential window for a source: the keys
// needing a full-history backfill and the inserted-at lower bound for the
// rest. Any key without a cleaning watermark widens the window to the
// source's earliest raw insertion; otherwise it starts at the minimum
// watermark across the source's keys.
func (e *Engine) selectionWindow(ctx context.Context, sourceAPI string, keys []string) ([]string, time.Time, error) {
	watermarks, err := e.watermarks.GetForKeys(ctx, keys)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load watermarks: %w", err)
	}

	var neverCleaned []string
	var minCleaned time.Time
	haveCleaned := false
	for _, key := range keys {
		wm, ok := watermarks[key]
		if !ok || wm.LastCleanedAt == nil {
			neverCleaned = append(neverCleaned, key)
			continue
		}
		if !haveCleaned || wm.LastCleanedAt.Before(minCleaned) {
			minCleaned = *wm.LastCleanedAt
			haveCleaned = true
		}
	}

	if len(neverCleaned) > 0 {
		if e.metrics != nil {
			e.metrics.BackfillRuns.WithLabelValues(sourceAPI).Inc()
		}
		earliest, ok, err := e.raw.EarliestInsertedAt(ctx, sourceAPI)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("find earliest raw insertion: %w", err)
		}
		if !ok {
			earliest = e.clock().UTC()
		}
		return neverCleaned, earliest, nil
	}
	return neverCleaned, minCleaned, nil
}

// ShowWatermarks lists all watermarks for operator inspection.
func (e *Engine) ShowWatermarks(ctx context.Context) ([]*domain.Watermark, error) {
	return e.watermarks.List(ctx)
}

// ResetWatermarks nulls the cleaning watermark for the given keys so the
// next run reprocesses their full raw history.
func (e *Engine) ResetWatermarks(ctx context.Context, keys []string) error {
	if err := e.watermarks.ResetCleaned(ctx, keys); err != nil {
		return err
	}
	e.log.Info().Strs("catalog_keys", keys).Msg("cleaning watermarks reset")
	return nil
}

// VerifyConsistency checks watermark invariants and reports silver row
// counts. A cleaning watermark ahead of its ingest watermark means the
// silver layer claims data the bronze layer never recorded.
func (e *Engine) VerifyConsistency(ctx context.Context) ([]Inconsistency, map[string]int64, error) {
	watermarks, err := e.watermarks.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	var findings []Inconsistency
	for _, wm := range watermarks {
		if wm.LastCleanedAt != nil && wm.LastIngestedAt == nil {
			findings = append(findings, Inconsistency{
				CatalogKey: wm.CatalogKey,
				Detail:     "cleaned but never ingested",
			})
			continue
		}
		if wm.LastCleanedAt != nil && wm.LastCleanedAt.After(*wm.LastIngestedAt) {
			findings = append(findings, Inconsistency{
				CatalogKey: wm.CatalogKey,
				Detail: fmt.Sprintf("cleaning watermark %s ahead of ingest watermark %s",
					wm.LastCleanedAt.Format(time.RFC3339), wm.LastIngestedAt.Format(time.RFC3339)),
			})
		}
	}

	counts, err := e.silver.Counts(ctx)
	if err != nil {
		return findings, nil, err
	}

	return findings, counts, nil
}

func (e *Engine) record(stats Stats, status string) {
	if e.metrics == nil {
		return
	}
	e.metrics.CleaningRunsTotal.WithLabelValues(stats.SourceAPI, status).Inc()
	e.metrics.CleaningDuration.WithLabelValues(stats.SourceAPI).Observe(stats.Duration.Seconds())
	e.metrics.RowsCleaned.WithLabelValues("timeseries_macro").Add(float64(stats.MacroRows))
	e.metrics.RowsCleaned.WithLabelValues("timeseries_micro").Add(float64(stats.BarRows))
	e.metrics.RowsCleaned.WithLabelValues("news_intel_pool").Add(float64(stats.NewsRows))
}
