package storage

import (
	"context"
	"time"

	"heimdall/internal/domain"
)

// CatalogFilter narrows catalog queries. Zero values mean "no filter".
type CatalogFilter struct {
	Scope     domain.Scope
	Role      domain.Role
	Frequency domain.Frequency
	SourceAPI string
}

// CatalogStore provides access to data_catalog storage.
type CatalogStore interface {
	// Upsert creates or replaces a catalog entry.
	Upsert(ctx context.Context, e *domain.CatalogEntry) error

	// GetByKey retrieves an entry. Returns ErrNotFound if it does not exist.
	GetByKey(ctx context.Context, key string) (*domain.CatalogEntry, error)

	// Active retrieves active entries matching the filter, ordered by
	// (source_api, catalog_key) for stable batch processing.
	Active(ctx context.Context, f CatalogFilter) ([]*domain.CatalogEntry, error)

	// Inactive retrieves entries awaiting activation.
	Inactive(ctx context.Context) ([]*domain.CatalogEntry, error)

	// SetActive flips the activation flag.
	SetActive(ctx context.Context, key string, active bool) error

	// AppendKeywords adds keywords to an entry, skipping ones already present.
	AppendKeywords(ctx context.Context, key string, keywords []string) error
}

// WatermarkStore provides access to sync_watermarks storage.
type WatermarkStore interface {
	// Get retrieves the watermark for a key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) (*domain.Watermark, error)

	// GetForKeys retrieves watermarks for a set of keys; absent keys are
	// simply missing from the result map.
	GetForKeys(ctx context.Context, keys []string) (map[string]*domain.Watermark, error)

	// EnsureExists lazily creates an empty watermark row (insert-if-absent).
	EnsureExists(ctx context.Context, key string) error

	// SetIngested advances last_ingested_at. Creates the row if needed.
	SetIngested(ctx context.Context, key string, ts time.Time) error

	// SetSynced advances last_synced_at. Creates the row if needed.
	SetSynced(ctx context.Context, key string, ts time.Time) error

	// ResetCleaned nulls last_cleaned_at for the given keys so the next
	// cleaning run reprocesses their full raw history.
	ResetCleaned(ctx context.Context, keys []string) error

	// List retrieves all watermarks ordered by catalog key.
	List(ctx context.Context) ([]*domain.Watermark, error)
}

// RawStore provides access to the bronze raw_ingestion_cache.
type RawStore interface {
	// InsertIfAbsent stores a raw record unless its fingerprint already
	// exists. A duplicate is NOT an error: it returns (false, nil).
	InsertIfAbsent(ctx context.Context, rec *domain.RawRecord) (bool, error)

	// CommitRaw atomically stores a raw record (insert-if-absent) and
	// advances the key's last_ingested_at watermark, creating the watermark
	// row lazily. Returns whether the record was newly stored.
	CommitRaw(ctx context.Context, rec *domain.RawRecord, ingestedAt time.Time) (bool, error)

	// Exists reports whether a fingerprint is already cached.
	Exists(ctx context.Context, requestHash string) (bool, error)

	// DistinctCatalogKeys lists every catalog key with raw data for a source.
	DistinctCatalogKeys(ctx context.Context, sourceAPI string) ([]string, error)

	// EarliestInsertedAt returns the oldest raw insertion time for a source;
	// ok is false when the source has no raw data at all.
	EarliestInsertedAt(ctx context.Context, sourceAPI string) (t time.Time, ok bool, err error)

	// SelectDelta retrieves the differential cleaning window for a source:
	// the full history of neverCleaned keys plus every record inserted
	// strictly after the given time, ordered by inserted_at ASC.
	// limit <= 0 means no limit.
	SelectDelta(ctx context.Context, sourceAPI string, neverCleaned []string, after time.Time, limit int) ([]*domain.RawRecord, error)
}

// CleaningBatch is the atomic unit committed by one cleaning pass over one
// source: every cleaned row plus the watermark advance for each touched key.
type CleaningBatch struct {
	SourceAPI     string
	Macro         []*domain.MacroPoint
	Bars          []*domain.Bar
	News          []*domain.NewsItem
	CatalogKeys   []string  // keys whose watermarks advance
	MaxInsertedAt time.Time // max raw insertion time actually processed
}

// SilverStore provides access to the cleaned silver tables.
type SilverStore interface {
	// CommitCleaned applies a cleaning batch as one transaction: macro and
	// bar rows are last-write-wins upserts, news rows are insert-ignore
	// (first fingerprint wins), and last_cleaned_at / last_ingested_at for
	// every touched key advance to MaxInsertedAt, never to wall-clock now.
	// Any failure rolls back the whole batch.
	CommitCleaned(ctx context.Context, batch *CleaningBatch) error

	// MacroByKey retrieves all macro points for a key, ordered by date ASC.
	MacroByKey(ctx context.Context, key string) ([]*domain.MacroPoint, error)

	// BarsByKey retrieves all bars for a key, ordered by date ASC.
	BarsByKey(ctx context.Context, key string) ([]*domain.Bar, error)

	// NewsByKey retrieves all news items for a key, ordered by published_at ASC.
	NewsByKey(ctx context.Context, key string) ([]*domain.NewsItem, error)

	// Counts reports row counts per silver table, for verification.
	Counts(ctx context.Context) (map[string]int64, error)
}
