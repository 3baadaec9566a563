package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"heimdall/internal/adapter"
	"heimdall/internal/domain"
	"heimdall/internal/idhash"
	"heimdall/internal/observability"
	"heimdall/internal/storage"
)

// Status is the outcome of one catalog entry's ingest attempt.
type Status string

const (
	StatusSuccess Status = "success"  // fetched and stored
	StatusCached  Status = "cached"   // fingerprint already in the bronze cache
	StatusSkipped Status = "skipped"  // throttled by frequency
	StatusDryRun  Status = "dry-run-passed"
	StatusFailed  Status = "failed"
)

// Result reports one catalog entry's ingest outcome.
type Result struct {
	CatalogKey string
	SourceAPI  string
	Status     Status
	Reason     string
	Err        error
	Duration   time.Duration
	Stored     bool
}

// Options tune the ingest engine.
type Options struct {
	// Force bypasses the frequency throttle. The fingerprint cache still
	// applies: a bucket fetched once is never fetched again.
	Force bool

	// DryRun probes adapters without writing anything.
	DryRun bool

	// Limit caps the catalog entries processed in one batch. Zero means
	// no cap.
	Limit int
}

// Engine runs the bronze-layer ingest for catalog entries.
type Engine struct {
	registry   *adapter.Registry
	watermarks storage.WatermarkStore
	raw        storage.RawStore
	metrics    *observability.Metrics
	log        zerolog.Logger
	clock      func() time.Time
}

// NewEngine creates an ingest engine. metrics may be nil.
func NewEngine(registry *adapter.Registry, watermarks storage.WatermarkStore, raw storage.RawStore, metrics *observability.Metrics, log zerolog.Logger) *Engine {
	return &Engine{
		registry:   registry,
		watermarks: watermarks,
		raw:        raw,
		metrics:    metrics,
		log:        log,
		clock:      time.Now,
	}
}

// IngestOne processes a single catalog entry: throttle check, fingerprint
// lookup, adapter fetch, atomic commit.
func (e *Engine) IngestOne(ctx context.Context, entry *domain.CatalogEntry, opts Options) Result {
	started := e.clock()
	res := e.ingestOne(ctx, entry, opts)
	res.Duration = e.clock().Sub(started)

	e.observe(entry, res)
	return res
}

func (e *Engine) ingestOne(ctx context.Context, entry *domain.CatalogEntry, opts Options) Result {
	res := Result{CatalogKey: entry.Key, SourceAPI: entry.SourceAPI}

	src, err := e.registry.Get(entry.SourceAPI)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}

	if err := src.ValidateConfig(entry.ConfigParams); err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}

	now := e.clock().UTC()
	fc := adapter.FetchContext{
		CatalogKey:     entry.Key,
		SourceAPI:      entry.SourceAPI,
		Role:           entry.Role,
		Frequency:      entry.Frequency,
		ConfigParams:   entry.ConfigParams,
		SearchKeywords: entry.SearchKeywords,
		Now:            now,
	}

	if opts.DryRun {
		if err := src.DryRun(ctx, fc); err != nil {
			res.Status, res.Err = StatusFailed, err
			return res
		}
		res.Status = StatusDryRun
		return res
	}

	wm, err := e.watermarks.Get(ctx, entry.Key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		res.Status, res.Err = StatusFailed, err
		return res
	}
	if wm != nil {
		fc.LastIngestedAt = wm.LastIngestedAt
	}

	fetch, reason := Decide(entry, wm, src.Kind(), now, opts.Force)
	res.Reason = reason
	if !fetch {
		res.Status = StatusSkipped
		return res
	}

	hash := idhash.RequestFingerprint(entry.Key, entry.ConfigParams, entry.Frequency, now)

	exists, err := e.raw.Exists(ctx, hash)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}
	if exists {
		res.Status = StatusCached
		res.Reason = "request fingerprint already cached"
		return res
	}

	payload, err := src.FetchRaw(ctx, fc)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}

	stored, err := e.raw.CommitRaw(ctx, &domain.RawRecord{
		RequestHash: hash,
		CatalogKey:  entry.Key,
		SourceAPI:   entry.SourceAPI,
		Kind:        payload.Kind,
		Payload:     payload.Data,
		InsertedAt:  now,
	}, now)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}

	res.Status = StatusSuccess
	res.Stored = stored
	return res
}

func (e *Engine) observe(entry *domain.CatalogEntry, res Result) {
	evt := e.log.Info()
	if res.Status == StatusFailed {
		evt = e.log.Error().Err(res.Err)
	}
	evt.Str("catalog_key", res.CatalogKey).
		Str("source_api", res.SourceAPI).
		Str("status", string(res.Status)).
		Str("reason", res.Reason).
		Dur("duration", res.Duration).
		Msg("ingest")

	if e.metrics == nil {
		return
	}
	e.metrics.FetchesTotal.WithLabelValues(entry.SourceAPI, string(res.Status)).Inc()
	e.metrics.FetchDuration.WithLabelValues(entry.SourceAPI).Observe(res.Duration.Seconds())
	switch res.Status {
	case StatusSuccess:
		if res.Stored {
			e.metrics.PayloadsStored.Inc()
		}
	case StatusCached:
		e.metrics.CacheHits.Inc()
	case StatusSkipped:
		e.metrics.ThrottleSkips.WithLabelValues(entry.SourceAPI).Inc()
	}
}
