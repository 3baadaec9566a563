package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"heimdall/internal/domain"
	"heimdall/internal/storage"
)

// WatermarkStore is an in-memory implementation of storage.WatermarkStore.
type WatermarkStore struct {
	mu         sync.RWMutex
	watermarks map[string]*domain.Watermark // keyed by catalog key
}

// NewWatermarkStore creates a new in-memory watermark store.
func NewWatermarkStore() *WatermarkStore {
	return &WatermarkStore{
		watermarks: make(map[string]*domain.Watermark),
	}
}

// Get retrieves the watermark for a key. Returns ErrNotFound if absent.
func (s *WatermarkStore) Get(_ context.Context, key string) (*domain.Watermark, error) {
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	wm, exists := s.watermarks[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return copyWatermark(wm), nil
}

// GetForKeys retrieves watermarks for a set of keys; absent keys are
// simply missing from the result map.
func (s *WatermarkStore) GetForKeys(_ context.Context, keys []string) (map[string]*domain.Watermark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*domain.Watermark, len(keys))
	for _, key := range keys {
		if wm, exists := s.watermarks[key]; exists {
			result[key] = copyWatermark(wm)
		}
	}

	return result, nil
}

// EnsureExists lazily creates an empty watermark row.
func (s *WatermarkStore) EnsureExists(_ context.Context, key string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLocked(key)
	return nil
}

// SetIngested advances last_ingested_at. Creates the row if needed.
func (s *WatermarkStore) SetIngested(_ context.Context, key string, ts time.Time) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.setIngestedLocked(key, ts)
	return nil
}

// SetSynced advances last_synced_at. Creates the row if needed.
func (s *WatermarkStore) SetSynced(_ context.Context, key string, ts time.Time) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wm := s.ensureLocked(key)
	if wm.LastSyncedAt == nil || ts.After(*wm.LastSyncedAt) {
		tsCopy := ts
		wm.LastSyncedAt = &tsCopy
	}
	return nil
}

// ResetCleaned nulls last_cleaned_at for the given keys.
func (s *WatermarkStore) ResetCleaned(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if wm, exists := s.watermarks[key]; exists {
			wm.LastCleanedAt = nil
		}
	}
	return nil
}

// List retrieves all watermarks ordered by catalog key.
func (s *WatermarkStore) List(_ context.Context) ([]*domain.Watermark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Watermark, 0, len(s.watermarks))
	for _, wm := range s.watermarks {
		result = append(result, copyWatermark(wm))
	}

	sort.Slice(result, func(i, j int) bool { return result[i].CatalogKey < result[j].CatalogKey })

	return result, nil
}

// ensureLocked returns the watermark for a key, creating it if absent.
// Caller must hold the write lock.
func (s *WatermarkStore) ensureLocked(key string) *domain.Watermark {
	wm, exists := s.watermarks[key]
	if !exists {
		wm = &domain.Watermark{CatalogKey: key}
		s.watermarks[key] = wm
	}
	return wm
}

// setIngestedLocked advances last_ingested_at without moving it backwards.
// Caller must hold the write lock. Shared with the raw store's atomic commit.
func (s *WatermarkStore) setIngestedLocked(key string, ts time.Time) {
	wm := s.ensureLocked(key)
	if wm.LastIngestedAt == nil || ts.After(*wm.LastIngestedAt) {
		tsCopy := ts
		wm.LastIngestedAt = &tsCopy
	}
}

// setCleanedLocked sets last_cleaned_at and keeps last_ingested_at in
// lockstep without moving it backwards. Caller must hold the write lock.
func (s *WatermarkStore) setCleanedLocked(key string, ts time.Time) {
	wm := s.ensureLocked(key)
	tsCopy := ts
	wm.LastCleanedAt = &tsCopy
	if wm.LastIngestedAt == nil || ts.After(*wm.LastIngestedAt) {
		ingCopy := ts
		wm.LastIngestedAt = &ingCopy
	}
}

func copyWatermark(wm *domain.Watermark) *domain.Watermark {
	wmCopy := *wm
	if wm.LastIngestedAt != nil {
		t := *wm.LastIngestedAt
		wmCopy.LastIngestedAt = &t
	}
	if wm.LastCleanedAt != nil {
		t := *wm.LastCleanedAt
		wmCopy.LastCleanedAt = &t
	}
	if wm.LastSyncedAt != nil {
		t := *wm.LastSyncedAt
		wmCopy.LastSyncedAt = &t
	}
	if wm.Checksum != nil {
		c := *wm.Checksum
		wmCopy.Checksum = &c
	}
	return &wmCopy
}

var _ storage.WatermarkStore = (*WatermarkStore)(nil)
