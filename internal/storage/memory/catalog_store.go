package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"heimdall/internal/domain"
	"heimdall/internal/storage"
)

// CatalogStore is an in-memory implementation of storage.CatalogStore.
type CatalogStore struct {
	mu      sync.RWMutex
	entries map[string]*domain.CatalogEntry // keyed by catalog key
	clock   func() time.Time
}

// NewCatalogStore creates a new in-memory catalog store.
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		entries: make(map[string]*domain.CatalogEntry),
		clock:   time.Now,
	}
}

// Upsert creates or replaces a catalog entry.
func (s *CatalogStore) Upsert(_ context.Context, e *domain.CatalogEntry) error {
	if e == nil || e.Key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryCopy := copyEntry(e)
	if existing, ok := s.entries[e.Key]; ok {
		entryCopy.CreatedAt = existing.CreatedAt
	} else if entryCopy.CreatedAt.IsZero() {
		entryCopy.CreatedAt = s.clock().UTC()
	}
	s.entries[e.Key] = entryCopy
	return nil
}

// GetByKey retrieves an entry by key. Returns ErrNotFound if not exists.
func (s *CatalogStore) GetByKey(_ context.Context, key string) (*domain.CatalogEntry, error) {
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return copyEntry(e), nil
}

// Active retrieves active entries matching the filter, ordered by
// (source_api, catalog_key).
func (s *CatalogStore) Active(_ context.Context, f storage.CatalogFilter) ([]*domain.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CatalogEntry
	for _, e := range s.entries {
		if !e.Active {
			continue
		}
		if f.Scope != "" && e.Scope != f.Scope {
			continue
		}
		if f.Role != "" && e.Role != f.Role {
			continue
		}
		if f.Frequency != "" && e.Frequency != f.Frequency {
			continue
		}
		if f.SourceAPI != "" && e.SourceAPI != f.SourceAPI {
			continue
		}
		result = append(result, copyEntry(e))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SourceAPI != result[j].SourceAPI {
			return result[i].SourceAPI < result[j].SourceAPI
		}
		return result[i].Key < result[j].Key
	})

	return result, nil
}

// Inactive retrieves entries awaiting activation, ordered by catalog key.
func (s *CatalogStore) Inactive(_ context.Context) ([]*domain.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CatalogEntry
	for _, e := range s.entries {
		if !e.Active {
			result = append(result, copyEntry(e))
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })

	return result, nil
}

// SetActive flips the activation flag. Returns ErrNotFound if not exists.
func (s *CatalogStore) SetActive(_ context.Context, key string, active bool) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[key]
	if !exists {
		return storage.ErrNotFound
	}
	e.Active = active
	return nil
}

// AppendKeywords adds keywords to an entry, skipping ones already present.
func (s *CatalogStore) AppendKeywords(_ context.Context, key string, keywords []string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}
	if len(keywords) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[key]
	if !exists {
		return storage.ErrNotFound
	}

	existing := make(map[string]bool, len(e.SearchKeywords))
	for _, kw := range e.SearchKeywords {
		existing[kw] = true
	}
	for _, kw := range keywords {
		if kw != "" && !existing[kw] {
			e.SearchKeywords = append(e.SearchKeywords, kw)
			existing[kw] = true
		}
	}
	return nil
}

func copyEntry(e *domain.CatalogEntry) *domain.CatalogEntry {
	entryCopy := *e
	if e.ConfigParams != nil {
		entryCopy.ConfigParams = make(map[string]any, len(e.ConfigParams))
		for k, v := range e.ConfigParams {
			entryCopy.ConfigParams[k] = v
		}
	}
	if e.SearchKeywords != nil {
		entryCopy.SearchKeywords = append([]string(nil), e.SearchKeywords...)
	}
	return &entryCopy
}

var _ storage.CatalogStore = (*CatalogStore)(nil)
