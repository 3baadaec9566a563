package postgres

import (
	"context"

	"heimdall/internal/domain"
	"heimdall/internal/storage"
)

// SilverStore is a PostgreSQL implementation of storage.SilverStore
// backed by the timeseries_macro, timeseries_micro and news_intel_pool
// tables. CommitCleaned writes rows and watermark advances in one
// transaction so a crash never leaves cleaned data without a matching
// watermark, or the reverse.
type SilverStore struct {
	pool *Pool
}

// NewSilverStore creates a new PostgreSQL silver store.
func NewSilverStore(pool *Pool) *SilverStore {
	return &SilverStore{pool: pool}
}

// CommitCleaned applies a cleaning batch as one transaction. Macro and
// bar rows are last-write-wins upserts, news rows are insert-ignore so
// the first fingerprint wins. Watermarks for every touched key advance
// to the batch's max processed insertion time.
func (s *SilverStore) CommitCleaned(ctx context.Context, batch *storage.CleaningBatch) error {
	if batch == nil || batch.SourceAPI == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, p := range batch.Macro {
		_, err := tx.Exec(ctx, `
			INSERT INTO timeseries_macro (catalog_key, date, value)
			VALUES ($1, $2, $3)
			ON CONFLICT (catalog_key, date) DO UPDATE
			SET value = EXCLUDED.value
		`, p.CatalogKey, p.Date, p.Value)
		if err != nil {
			return err
		}
	}

	for _, b := range batch.Bars {
		_, err := tx.Exec(ctx, `
			INSERT INTO timeseries_micro (catalog_key, date, val_open, val_high, val_low, val_close, val_volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (catalog_key, date) DO UPDATE
			SET val_open = EXCLUDED.val_open,
			    val_high = EXCLUDED.val_high,
			    val_low = EXCLUDED.val_low,
			    val_close = EXCLUDED.val_close,
			    val_volume = EXCLUDED.val_volume
		`, b.CatalogKey, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return err
		}
	}

	for _, n := range batch.News {
		_, err := tx.Exec(ctx, `
			INSERT INTO news_intel_pool (
				fingerprint, title_hash, catalog_key, published_at, title, url,
				body, author, source_name, sentiment_score, ai_summary
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (fingerprint) DO NOTHING
		`, n.Fingerprint, n.TitleHash, n.CatalogKey, n.PublishedAt, n.Title, n.URL,
			n.Body, n.Author, n.SourceName, n.SentimentScore, n.AISummary)
		if err != nil {
			return err
		}
	}

	if len(batch.CatalogKeys) > 0 && !batch.MaxInsertedAt.IsZero() {
		_, err := tx.Exec(ctx, `
			INSERT INTO sync_watermarks (catalog_key, last_ingested_at, last_cleaned_at)
			SELECT k, $2, $2 FROM unnest($1::text[]) AS k
			ON CONFLICT (catalog_key) DO UPDATE
			SET last_cleaned_at = EXCLUDED.last_cleaned_at,
			    last_ingested_at = GREATEST(sync_watermarks.last_ingested_at, EXCLUDED.last_ingested_at)
		`, batch.CatalogKeys, batch.MaxInsertedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// MacroByKey retrieves all macro points for a key, ordered by date ASC.
func (s *SilverStore) MacroByKey(ctx context.Context, key string) ([]*domain.MacroPoint, error) {
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	rows, err := s.pool.Query(ctx, `
		SELECT catalog_key, date, value
		FROM timeseries_macro
		WHERE catalog_key = $1
		ORDER BY date ASC
	`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []*domain.MacroPoint
	for rows.Next() {
		var p domain.MacroPoint
		if err := rows.Scan(&p.CatalogKey, &p.Date, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, &p)
	}

	return points, rows.Err()
}

// BarsByKey retrieves all bars for a key, ordered by date ASC.
func (s *SilverStore) BarsByKey(ctx context.Context, key string) ([]*domain.Bar, error) {
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	rows, err := s.pool.Query(ctx, `
		SELECT catalog_key, date, val_open, val_high, val_low, val_close, val_volume
		FROM timeseries_micro
		WHERE catalog_key = $1
		ORDER BY date ASC
	`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []*domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.CatalogKey, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, &b)
	}

	return bars, rows.Err()
}

// NewsByKey retrieves all news items for a key, ordered by published_at ASC.
func (s *SilverStore) NewsByKey(ctx context.Context, key string) ([]*domain.NewsItem, error) {
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	rows, err := s.pool.Query(ctx, `
		SELECT fingerprint, title_hash, catalog_key, published_at, title, url,
		       body, author, source_name, sentiment_score, ai_summary
		FROM news_intel_pool
		WHERE catalog_key = $1
		ORDER BY published_at ASC
	`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.NewsItem
	for rows.Next() {
		var n domain.NewsItem
		err := rows.Scan(&n.Fingerprint, &n.TitleHash, &n.CatalogKey, &n.PublishedAt, &n.Title, &n.URL,
			&n.Body, &n.Author, &n.SourceName, &n.SentimentScore, &n.AISummary)
		if err != nil {
			return nil, err
		}
		items = append(items, &n)
	}

	return items, rows.Err()
}

// Counts reports row counts per silver table.
func (s *SilverStore) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 3)
	for _, table := range []string{"timeseries_macro", "timeseries_micro", "news_intel_pool"} {
		row := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table)
		var n int64
		if err := row.Scan(&n); err != nil {
			return nil, err
		}
		counts[table] = n
	}

	return counts, nil
}
