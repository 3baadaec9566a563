package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"heimdall/internal/domain"
	"heimdall/internal/storage"
)

// CatalogStore is a PostgreSQL implementation of storage.CatalogStore
// backed by the data_catalog table. Config params and search keywords
// are stored as JSONB.
type CatalogStore struct {
	pool *Pool
}

// NewCatalogStore creates a new PostgreSQL catalog store.
func NewCatalogStore(pool *Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

const catalogColumns = `
	catalog_key, entity_name, country, scope, role, source_api,
	update_frequency, config_params, search_keywords, is_active, created_at
`

// Upsert creates or replaces a catalog entry.
func (s *CatalogStore) Upsert(ctx context.Context, e *domain.CatalogEntry) error {
	if e == nil || e.Key == "" {
		return storage.ErrInvalidInput
	}

	params := e.ConfigParams
	if params == nil {
		params = map[string]any{}
	}
	keywords := e.SearchKeywords
	if keywords == nil {
		keywords = []string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO data_catalog (
			catalog_key, entity_name, country, scope, role, source_api,
			update_frequency, config_params, search_keywords, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (catalog_key) DO UPDATE
		SET entity_name = EXCLUDED.entity_name,
		    country = EXCLUDED.country,
		    scope = EXCLUDED.scope,
		    role = EXCLUDED.role,
		    source_api = EXCLUDED.source_api,
		    update_frequency = EXCLUDED.update_frequency,
		    config_params = EXCLUDED.config_params,
		    search_keywords = EXCLUDED.search_keywords,
		    is_active = EXCLUDED.is_active
	`, e.Key, e.EntityName, e.Country, e.Scope, e.Role, e.SourceAPI,
		e.Frequency, params, keywords, e.Active)

	return err
}

// GetByKey retrieves a catalog entry by key.
func (s *CatalogStore) GetByKey(ctx context.Context, key string) (*domain.CatalogEntry, error) {
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT `+catalogColumns+`
		FROM data_catalog
		WHERE catalog_key = $1
	`, key)

	entry, err := scanCatalogEntry(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	return entry, nil
}

// Active retrieves active entries matching the filter, ordered by
// (source_api, catalog_key).
func (s *CatalogStore) Active(ctx context.Context, f storage.CatalogFilter) ([]*domain.CatalogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+catalogColumns+`
		FROM data_catalog
		WHERE is_active = TRUE
		  AND ($1 = '' OR scope = $1)
		  AND ($2 = '' OR role = $2)
		  AND ($3 = '' OR update_frequency = $3)
		  AND ($4 = '' OR source_api = $4)
		ORDER BY source_api, catalog_key
	`, string(f.Scope), string(f.Role), string(f.Frequency), f.SourceAPI)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCatalogEntries(rows)
}

// Inactive retrieves entries awaiting activation, ordered by catalog key.
func (s *CatalogStore) Inactive(ctx context.Context) ([]*domain.CatalogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+catalogColumns+`
		FROM data_catalog
		WHERE is_active = FALSE
		ORDER BY catalog_key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCatalogEntries(rows)
}

// SetActive flips the activation flag for a key.
func (s *CatalogStore) SetActive(ctx context.Context, key string, active bool) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE data_catalog SET is_active = $2 WHERE catalog_key = $1
	`, key, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// AppendKeywords adds keywords to an entry, skipping ones already present.
func (s *CatalogStore) AppendKeywords(ctx context.Context, key string, keywords []string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}
	if len(keywords) == 0 {
		return nil
	}

	entry, err := s.GetByKey(ctx, key)
	if err != nil {
		return err
	}

	existing := make(map[string]bool, len(entry.SearchKeywords))
	for _, kw := range entry.SearchKeywords {
		existing[kw] = true
	}

	merged := entry.SearchKeywords
	for _, kw := range keywords {
		if kw != "" && !existing[kw] {
			merged = append(merged, kw)
			existing[kw] = true
		}
	}
	if len(merged) == len(entry.SearchKeywords) {
		return nil
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE data_catalog SET search_keywords = $2 WHERE catalog_key = $1
	`, key, merged)

	return err
}

func scanCatalogEntry(row pgx.Row) (*domain.CatalogEntry, error) {
	var e domain.CatalogEntry
	err := row.Scan(
		&e.Key, &e.EntityName, &e.Country, &e.Scope, &e.Role, &e.SourceAPI,
		&e.Frequency, &e.ConfigParams, &e.SearchKeywords, &e.Active, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectCatalogEntries(rows pgx.Rows) ([]*domain.CatalogEntry, error) {
	var entries []*domain.CatalogEntry
	for rows.Next() {
		entry, err := scanCatalogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	return entries, nil
}
