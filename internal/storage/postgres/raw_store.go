package postgres

import (
	"context"
	"time"

	"heimdall/internal/domain"
	"heimdall/internal/storage"
)

// RawStore is a PostgreSQL implementation of storage.RawStore backed by
// the raw_ingestion_cache table. The request fingerprint is the primary
// key, so duplicate fetches within a time bucket never store twice.
type RawStore struct {
	pool *Pool
}

// NewRawStore creates a new PostgreSQL raw store.
func NewRawStore(pool *Pool) *RawStore {
	return &RawStore{pool: pool}
}

// InsertIfAbsent stores a raw record unless its fingerprint already exists.
// A duplicate is not an error: it returns (false, nil).
func (s *RawStore) InsertIfAbsent(ctx context.Context, rec *domain.RawRecord) (bool, error) {
	if rec == nil || rec.RequestHash == "" || rec.CatalogKey == "" {
		return false, storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO raw_ingestion_cache (request_hash, catalog_key, source_api, payload_kind, raw_payload, inserted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (request_hash) DO NOTHING
	`, rec.RequestHash, rec.CatalogKey, rec.SourceAPI, rec.Kind, string(rec.Payload), rec.InsertedAt)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

// CommitRaw atomically stores a raw record and advances the key's
// last_ingested_at watermark in a single transaction.
func (s *RawStore) CommitRaw(ctx context.Context, rec *domain.RawRecord, ingestedAt time.Time) (bool, error) {
	if rec == nil || rec.RequestHash == "" || rec.CatalogKey == "" {
		return false, storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO raw_ingestion_cache (request_hash, catalog_key, source_api, payload_kind, raw_payload, inserted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (request_hash) DO NOTHING
	`, rec.RequestHash, rec.CatalogKey, rec.SourceAPI, rec.Kind, string(rec.Payload), rec.InsertedAt)
	if err != nil {
		return false, err
	}
	stored := tag.RowsAffected() > 0

	_, err = tx.Exec(ctx, `
		INSERT INTO sync_watermarks (catalog_key, last_ingested_at)
		VALUES ($1, $2)
		ON CONFLICT (catalog_key) DO UPDATE
		SET last_ingested_at = GREATEST(sync_watermarks.last_ingested_at, EXCLUDED.last_ingested_at)
	`, rec.CatalogKey, ingestedAt)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	return stored, nil
}

// Exists reports whether a fingerprint is already cached.
func (s *RawStore) Exists(ctx context.Context, requestHash string) (bool, error) {
	if requestHash == "" {
		return false, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM raw_ingestion_cache WHERE request_hash = $1)
	`, requestHash)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

// DistinctCatalogKeys lists every catalog key with raw data for a source.
func (s *RawStore) DistinctCatalogKeys(ctx context.Context, sourceAPI string) ([]string, error) {
	if sourceAPI == "" {
		return nil, storage.ErrInvalidInput
	}

	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT catalog_key
		FROM raw_ingestion_cache
		WHERE source_api = $1
		ORDER BY catalog_key
	`, sourceAPI)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// EarliestInsertedAt returns the oldest raw insertion time for a source.
func (s *RawStore) EarliestInsertedAt(ctx context.Context, sourceAPI string) (time.Time, bool, error) {
	if sourceAPI == "" {
		return time.Time{}, false, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT MIN(inserted_at)
		FROM raw_ingestion_cache
		WHERE source_api = $1
	`, sourceAPI)

	var earliest *time.Time
	if err := row.Scan(&earliest); err != nil {
		return time.Time{}, false, err
	}
	if earliest == nil {
		return time.Time{}, false, nil
	}

	return *earliest, true, nil
}

// SelectDelta retrieves the differential cleaning window for a source:
// the full history of never-cleaned keys plus every record inserted
// strictly after the given time, ordered by inserted_at ASC.
func (s *RawStore) SelectDelta(ctx context.Context, sourceAPI string, neverCleaned []string, after time.Time, limit int) ([]*domain.RawRecord, error) {
	if sourceAPI == "" {
		return nil, storage.ErrInvalidInput
	}
	if neverCleaned == nil {
		neverCleaned = []string{}
	}

	query := `
		SELECT request_hash, catalog_key, source_api, payload_kind, raw_payload, inserted_at
		FROM raw_ingestion_cache
		WHERE source_api = $1
		  AND (catalog_key = ANY($2) OR inserted_at > $3)
		ORDER BY inserted_at ASC
	`
	args := []any{sourceAPI, neverCleaned, after}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.RawRecord
	for rows.Next() {
		var rec domain.RawRecord
		var payload string
		if err := rows.Scan(&rec.RequestHash, &rec.CatalogKey, &rec.SourceAPI, &rec.Kind, &payload, &rec.InsertedAt); err != nil {
			return nil, err
		}
		rec.Payload = []byte(payload)
		records = append(records, &rec)
	}

	return records, rows.Err()
}
