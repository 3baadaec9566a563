package postgres

import (
	"context"
	"time"

	"heimdall/internal/domain"
	"heimdall/internal/storage"
)

// WatermarkStore is a PostgreSQL implementation of storage.WatermarkStore
// backed by the sync_watermarks table. All timestamp columns are nullable:
// NULL means the stage never ran for that key.
type WatermarkStore struct {
	pool *Pool
}

// NewWatermarkStore creates a new PostgreSQL watermark store.
func NewWatermarkStore(pool *Pool) *WatermarkStore {
	return &WatermarkStore{pool: pool}
}

// Get retrieves the watermark for a key.
func (s *WatermarkStore) Get(ctx context.Context, key string) (*domain.Watermark, error) {
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT catalog_key, last_ingested_at, last_cleaned_at, last_synced_at, checksum
		FROM sync_watermarks
		WHERE catalog_key = $1
	`, key)

	var wm domain.Watermark
	err := row.Scan(&wm.CatalogKey, &wm.LastIngestedAt, &wm.LastCleanedAt, &wm.LastSyncedAt, &wm.Checksum)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	return &wm, nil
}

// GetForKeys retrieves watermarks for a set of keys. Absent keys are
// simply missing from the result map.
func (s *WatermarkStore) GetForKeys(ctx context.Context, keys []string) (map[string]*domain.Watermark, error) {
	result := make(map[string]*domain.Watermark, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT catalog_key, last_ingested_at, last_cleaned_at, last_synced_at, checksum
		FROM sync_watermarks
		WHERE catalog_key = ANY($1)
	`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var wm domain.Watermark
		if err := rows.Scan(&wm.CatalogKey, &wm.LastIngestedAt, &wm.LastCleanedAt, &wm.LastSyncedAt, &wm.Checksum); err != nil {
			return nil, err
		}
		result[wm.CatalogKey] = &wm
	}

	return result, rows.Err()
}

// EnsureExists lazily creates an empty watermark row.
func (s *WatermarkStore) EnsureExists(ctx context.Context, key string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_watermarks (catalog_key)
		VALUES ($1)
		ON CONFLICT (catalog_key) DO NOTHING
	`, key)

	return err
}

// SetIngested advances last_ingested_at, creating the row if needed.
func (s *WatermarkStore) SetIngested(ctx context.Context, key string, ts time.Time) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_watermarks (catalog_key, last_ingested_at)
		VALUES ($1, $2)
		ON CONFLICT (catalog_key) DO UPDATE
		SET last_ingested_at = GREATEST(sync_watermarks.last_ingested_at, EXCLUDED.last_ingested_at)
	`, key, ts)

	return err
}

// SetSynced advances last_synced_at, creating the row if needed.
func (s *WatermarkStore) SetSynced(ctx context.Context, key string, ts time.Time) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_watermarks (catalog_key, last_synced_at)
		VALUES ($1, $2)
		ON CONFLICT (catalog_key) DO UPDATE
		SET last_synced_at = GREATEST(sync_watermarks.last_synced_at, EXCLUDED.last_synced_at)
	`, key, ts)

	return err
}

// ResetCleaned nulls last_cleaned_at for the given keys so the next
// cleaning run reprocesses their full raw history.
func (s *WatermarkStore) ResetCleaned(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE sync_watermarks
		SET last_cleaned_at = NULL
		WHERE catalog_key = ANY($1)
	`, keys)

	return err
}

// List retrieves all watermarks ordered by catalog key.
func (s *WatermarkStore) List(ctx context.Context) ([]*domain.Watermark, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT catalog_key, last_ingested_at, last_cleaned_at, last_synced_at, checksum
		FROM sync_watermarks
		ORDER BY catalog_key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var watermarks []*domain.Watermark
	for rows.Next() {
		var wm domain.Watermark
		if err := rows.Scan(&wm.CatalogKey, &wm.LastIngestedAt, &wm.LastCleanedAt, &wm.LastSyncedAt, &wm.Checksum); err != nil {
			return nil, err
		}
		watermarks = append(watermarks, &wm)
	}

	return watermarks, rows.Err()
}
