package memory

import (
	"context"
	"sort"
	"sync"

	"heimdall/internal/domain"
	"heimdall/internal/storage"
)

type dateKey struct {
	catalogKey string
	date       string // YYYY-MM-DD
}

// SilverStore is an in-memory implementation of storage.SilverStore. It
// holds a reference to the watermark store so CommitCleaned mirrors the
// transactional rows-plus-watermarks write of the PostgreSQL
// implementation. Lock order is always silver store first, then
// watermark store.
type SilverStore struct {
	mu         sync.RWMutex
	macro      map[dateKey]*domain.MacroPoint
	bars       map[dateKey]*domain.Bar
	news       map[string]*domain.NewsItem // keyed by fingerprint
	watermarks *WatermarkStore
}

// NewSilverStore creates a new in-memory silver store bound to a watermark store.
func NewSilverStore(watermarks *WatermarkStore) *SilverStore {
	return &SilverStore{
		macro:      make(map[dateKey]*domain.MacroPoint),
		bars:       make(map[dateKey]*domain.Bar),
		news:       make(map[string]*domain.NewsItem),
		watermarks: watermarks,
	}
}

// CommitCleaned applies a cleaning batch atomically. Macro and bar rows
// are last-write-wins, news rows keep the first fingerprint stored.
func (s *SilverStore) CommitCleaned(_ context.Context, batch *storage.CleaningBatch) error {
	if batch == nil || batch.SourceAPI == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarks.mu.Lock()
	defer s.watermarks.mu.Unlock()

	for _, p := range batch.Macro {
		pCopy := *p
		s.macro[dateKey{p.CatalogKey, p.Date.UTC().Format("2006-01-02")}] = &pCopy
	}

	for _, b := range batch.Bars {
		bCopy := *b
		s.bars[dateKey{b.CatalogKey, b.Date.UTC().Format("2006-01-02")}] = &bCopy
	}

	for _, n := range batch.News {
		if _, exists := s.news[n.Fingerprint]; exists {
			continue
		}
		s.news[n.Fingerprint] = copyNewsItem(n)
	}

	if !batch.MaxInsertedAt.IsZero() {
		for _, key := range batch.CatalogKeys {
			s.watermarks.setCleanedLocked(key, batch.MaxInsertedAt)
		}
	}

	return nil
}

// MacroByKey retrieves all macro points for a key, ordered by date ASC.
func (s *SilverStore) MacroByKey(_ context.Context, key string) ([]*domain.MacroPoint, error) {
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var points []*domain.MacroPoint
	for _, p := range s.macro {
		if p.CatalogKey == key {
			pCopy := *p
			points = append(points, &pCopy)
		}
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

// BarsByKey retrieves all bars for a key, ordered by date ASC.
func (s *SilverStore) BarsByKey(_ context.Context, key string) ([]*domain.Bar, error) {
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var bars []*domain.Bar
	for _, b := range s.bars {
		if b.CatalogKey == key {
			bCopy := *b
			bars = append(bars, &bCopy)
		}
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// NewsByKey retrieves all news items for a key, ordered by published_at ASC.
func (s *SilverStore) NewsByKey(_ context.Context, key string) ([]*domain.NewsItem, error) {
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []*domain.NewsItem
	for _, n := range s.news {
		if n.CatalogKey == key {
			items = append(items, copyNewsItem(n))
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].PublishedAt.Before(items[j].PublishedAt) })
	return items, nil
}

// Counts reports row counts per silver table.
func (s *SilverStore) Counts(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]int64{
		"timeseries_macro": int64(len(s.macro)),
		"timeseries_micro": int64(len(s.bars)),
		"news_intel_pool":  int64(len(s.news)),
	}, nil
}

func copyNewsItem(n *domain.NewsItem) *domain.NewsItem {
	nCopy := *n
	if n.Body != nil {
		v := *n.Body
		nCopy.Body = &v
	}
	if n.Author != nil {
		v := *n.Author
		nCopy.Author = &v
	}
	if n.SourceName != nil {
		v := *n.SourceName
		nCopy.SourceName = &v
	}
	if n.SentimentScore != nil {
		v := *n.SentimentScore
		nCopy.SentimentScore = &v
	}
	if n.AISummary != nil {
		v := *n.AISummary
		nCopy.AISummary = &v
	}
	return &nCopy
}

var _ storage.SilverStore = (*SilverStore)(nil)
