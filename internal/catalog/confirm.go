// Package catalog provides services over the data catalog: activation
// probing for new entries and keyword synchronization between equities
// and their news coverage.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"heimdall/internal/adapter"
	"heimdall/internal/storage"
)

// ProbeResult reports the dry-run outcome for one inactive entry.
type ProbeResult struct {
	CatalogKey string
	SourceAPI  string
	Activated  bool
	Err        error
	Duration   time.Duration
}

// ProbeSummary aggregates one confirmation pass.
type ProbeSummary struct {
	Total     int
	Activated int
	Failed    int
	Results   []ProbeResult
}

// Prober confirms inactive catalog entries by dry-running their adapter
// against the live source. A successful probe creates the watermark row
// and activates the entry; a failed one leaves it inactive for the next
// pass.
type Prober struct {
	registry   *adapter.Registry
	catalog    storage.CatalogStore
	watermarks storage.WatermarkStore
	log        zerolog.Logger
	clock      func() time.Time
}

// NewProber creates a confirmation prober.
func NewProber(registry *adapter.Registry, catalog storage.CatalogStore, watermarks storage.WatermarkStore, log zerolog.Logger) *Prober {
	return &Prober{
		registry:   registry,
		catalog:    catalog,
		watermarks: watermarks,
		log:        log,
		clock:      time.Now,
	}
}

// ConfirmAll probes every inactive entry. Entries fail independently.
func (p *Prober) ConfirmAll(ctx context.Context) (ProbeSummary, error) {
	entries, err := p.catalog.Inactive(ctx)
	if err != nil {
		return ProbeSummary{}, fmt.Errorf("list inactive entries: %w", err)
	}

	summary := ProbeSummary{Total: len(entries)}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result := p.probeOne(ctx, entry.Key)
		summary.Results = append(summary.Results, result)
		if result.Activated {
			summary.Activated++
		} else {
			summary.Failed++
		}
	}

	p.log.Info().
		Int("total", summary.Total).
		Int("activated", summary.Activated).
		Int("failed", summary.Failed).
		Msg("confirmation pass complete")
	return summary, nil
}

// Confirm probes a single entry by key.
func (p *Prober) Confirm(ctx context.Context, key string) (ProbeResult, error) {
	if _, err := p.catalog.GetByKey(ctx, key); err != nil {
		return ProbeResult{CatalogKey: key}, err
	}
	return p.probeOne(ctx, key), nil
}

func (p *Prober) probeOne(ctx context.Context, key string) ProbeResult {
	started := p.clock()
	result := ProbeResult{CatalogKey: key}

	entry, err := p.catalog.GetByKey(ctx, key)
	if err != nil {
		result.Err = err
		return result
	}
	result.SourceAPI = entry.SourceAPI

	ad, err := p.registry.Get(entry.SourceAPI)
	if err != nil {
		result.Err = err
		result.Duration = p.clock().Sub(started)
		p.log.Warn().Err(err).Str("catalog_key", key).Msg("probe failed")
		return result
	}

	fc := adapter.FetchContext{
		CatalogKey:     entry.Key,
		SourceAPI:      entry.SourceAPI,
		Role:           entry.Role,
		Frequency:      entry.Frequency,
		ConfigParams:   entry.ConfigParams,
		SearchKeywords: entry.SearchKeywords,
		Now:            p.clock(),
	}
	if err := ad.DryRun(ctx, fc); err != nil {
		result.Err = err
		result.Duration = p.clock().Sub(started)
		p.log.Warn().
			Err(err).
			Str("catalog_key", key).
			Str("source_api", entry.SourceAPI).
			Dur("duration", result.Duration).
			Msg("probe failed, entry stays inactive")
		return result
	}

	if err := p.watermarks.EnsureExists(ctx, key); err != nil {
		result.Err = fmt.Errorf("ensure watermark: %w", err)
		return result
	}
	if err := p.catalog.SetActive(ctx, key, true); err != nil {
		result.Err = fmt.Errorf("activate: %w", err)
		return result
	}

	result.Activated = true
	result.Duration = p.clock().Sub(started)
	p.log.Info().
		Str("catalog_key", key).
		Str("source_api", entry.SourceAPI).
		Dur("duration", result.Duration).
		Msg("probe succeeded, entry activated")
	return result
}
