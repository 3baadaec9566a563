package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"heimdall/internal/domain"
	"heimdall/internal/storage"
)

// RawStore is an in-memory implementation of storage.RawStore. It holds a
// reference to the watermark store so CommitRaw can mirror the transactional
// raw-plus-watermark write of the PostgreSQL implementation. Lock order is
// always raw store first, then watermark store.
type RawStore struct {
	mu         sync.RWMutex
	records    map[string]*domain.RawRecord // keyed by request hash
	watermarks *WatermarkStore
}

// NewRawStore creates a new in-memory raw store bound to a watermark store.
func NewRawStore(watermarks *WatermarkStore) *RawStore {
	return &RawStore{
		records:    make(map[string]*domain.RawRecord),
		watermarks: watermarks,
	}
}

// InsertIfAbsent stores a raw record unless its fingerprint already exists.
// A duplicate is not an error: it returns (false, nil).
func (s *RawStore) InsertIfAbsent(_ context.Context, rec *domain.RawRecord) (bool, error) {
	if rec == nil || rec.RequestHash == "" || rec.CatalogKey == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(rec), nil
}

// CommitRaw atomically stores a raw record and advances the key's
// last_ingested_at watermark.
func (s *RawStore) CommitRaw(_ context.Context, rec *domain.RawRecord, ingestedAt time.Time) (bool, error) {
	if rec == nil || rec.RequestHash == "" || rec.CatalogKey == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarks.mu.Lock()
	defer s.watermarks.mu.Unlock()

	stored := s.insertLocked(rec)
	s.watermarks.setIngestedLocked(rec.CatalogKey, ingestedAt)
	return stored, nil
}

// Exists reports whether a fingerprint is already cached.
func (s *RawStore) Exists(_ context.Context, requestHash string) (bool, error) {
	if requestHash == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.records[requestHash]
	return exists, nil
}

// DistinctCatalogKeys lists every catalog key with raw data for a source.
func (s *RawStore) DistinctCatalogKeys(_ context.Context, sourceAPI string) ([]string, error) {
	if sourceAPI == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var keys []string
	for _, rec := range s.records {
		if rec.SourceAPI == sourceAPI && !seen[rec.CatalogKey] {
			seen[rec.CatalogKey] = true
			keys = append(keys, rec.CatalogKey)
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// EarliestInsertedAt returns the oldest raw insertion time for a source.
func (s *RawStore) EarliestInsertedAt(_ context.Context, sourceAPI string) (time.Time, bool, error) {
	if sourceAPI == "" {
		return time.Time{}, false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var earliest time.Time
	found := false
	for _, rec := range s.records {
		if rec.SourceAPI != sourceAPI {
			continue
		}
		if !found || rec.InsertedAt.Before(earliest) {
			earliest = rec.InsertedAt
			found = true
		}
	}

	return earliest, found, nil
}

// SelectDelta retrieves the differential cleaning window for a source:
// the full history of never-cleaned keys plus every record inserted
// strictly after the given time, ordered by inserted_at ASC.
func (s *RawStore) SelectDelta(_ context.Context, sourceAPI string, neverCleaned []string, after time.Time, limit int) ([]*domain.RawRecord, error) {
	if sourceAPI == "" {
		return nil, storage.ErrInvalidInput
	}

	fullHistory := make(map[string]bool, len(neverCleaned))
	for _, key := range neverCleaned {
		fullHistory[key] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RawRecord
	for _, rec := range s.records {
		if rec.SourceAPI != sourceAPI {
			continue
		}
		if !fullHistory[rec.CatalogKey] && !rec.InsertedAt.After(after) {
			continue
		}
		recCopy := copyRawRecord(rec)
		result = append(result, recCopy)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].InsertedAt.Before(result[j].InsertedAt) })

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// insertLocked performs the insert-if-absent. Caller must hold the write lock.
func (s *RawStore) insertLocked(rec *domain.RawRecord) bool {
	if _, exists := s.records[rec.RequestHash]; exists {
		return false
	}
	s.records[rec.RequestHash] = copyRawRecord(rec)
	return true
}

func copyRawRecord(rec *domain.RawRecord) *domain.RawRecord {
	recCopy := *rec
	recCopy.Payload = append([]byte(nil), rec.Payload...)
	return &recCopy
}

var _ storage.RawStore = (*RawStore)(nil)
