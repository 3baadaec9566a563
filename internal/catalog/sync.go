package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"heimdall/internal/storage"
)

// StockKeyPrefix marks equity price entries in the catalog.
const StockKeyPrefix = "STOCK_PRICE_"

// Sync statuses for one equity.
const (
	SyncStatusSynced     = "synced"
	SyncStatusNoKeywords = "no_keywords"
	SyncStatusNoMatch    = "no_matching_news"
	SyncStatusFailed     = "failed"
)

// stockNewsMapping pins specific equities to news catalogs, overriding
// industry detection.
var stockNewsMapping = map[string][]string{
	"STOCK_PRICE_MSFT": {"NEWS_US_TECH_SECTOR"},
	"STOCK_PRICE_NVDA": {"NEWS_US_TECH_SECTOR"},
	"STOCK_PRICE_TSLA": {"NEWS_US_TECH_SECTOR"},

	"STOCK_PRICE_7203": {"NEWS_JP_MACRO_FUNDAMENTALS"},
	"STOCK_PRICE_7267": {"NEWS_JP_MACRO_FUNDAMENTALS"},
	"STOCK_PRICE_4063": {"NEWS_US_MATERIALS_SECTOR"},
	"STOCK_PRICE_4188": {"NEWS_JP_MACRO_FUNDAMENTALS"},
	"STOCK_PRICE_8035": {"NEWS_JP_MACRO_FUNDAMENTALS", "NEWS_US_COMMUNICATION_SECTOR"},
}

// industryRules route an equity to news catalogs when one of its search
// keywords contains the industry term.
var industryRules = map[string][]string{
	"technology":    {"NEWS_US_TECH_SECTOR"},
	"semiconductor": {"NEWS_US_TECH_SECTOR"},
	"software":      {"NEWS_US_TECH_SECTOR"},
	"cloud":         {"NEWS_US_TECH_SECTOR"},
	"ai":            {"NEWS_US_TECH_SECTOR"},
	"ev":            {"NEWS_US_TECH_SECTOR"},
	"autonomous":    {"NEWS_US_TECH_SECTOR"},

	"automotive": {"NEWS_US_INDUSTRIAL_SECTOR", "NEWS_JP_MACRO_FUNDAMENTALS"},
	"chemical":   {"NEWS_US_MATERIALS_SECTOR"},
	"materials":  {"NEWS_US_MATERIALS_SECTOR"},
	"steel":      {"NEWS_US_MATERIALS_SECTOR"},
	"mining":     {"NEWS_US_MATERIALS_SECTOR"},

	"pharmaceutical": {"NEWS_US_HEALTHCARE_SECTOR"},
	"biotech":        {"NEWS_US_HEALTHCARE_SECTOR"},
	"medical":        {"NEWS_US_HEALTHCARE_SECTOR"},

	"finance":   {"NEWS_US_FINANCIAL_SECTOR"},
	"banking":   {"NEWS_US_FINANCIAL_SECTOR"},
	"insurance": {"NEWS_US_FINANCIAL_SECTOR"},

	"energy": {"NEWS_US_ENERGY_SECTOR"},
	"oil":    {"NEWS_US_ENERGY_SECTOR"},
	"gas":    {"NEWS_US_ENERGY_SECTOR"},

	"real estate":  {"NEWS_US_REALESTATE_SECTOR"},
	"construction": {"NEWS_US_REALESTATE_SECTOR"},
	"property":     {"NEWS_US_REALESTATE_SECTOR"},
}

// SyncResult reports the keyword sync for one equity.
type SyncResult struct {
	StockKey       string
	Status         string
	TargetCatalogs []string
	Errors         []error
}

// SyncSummary aggregates one sync pass over all equities.
type SyncSummary struct {
	Total   int
	Synced  int
	NoMatch int
	Failed  int
	Details []SyncResult
}

// Syncer propagates equity search keywords into the news catalog entries
// that cover their sector, so a newly added stock gains news coverage
// without manual curation.
type Syncer struct {
	catalog    storage.CatalogStore
	watermarks storage.WatermarkStore
	log        zerolog.Logger
	clock      func() time.Time
}

// NewSyncer creates a keyword syncer.
func NewSyncer(catalog storage.CatalogStore, watermarks storage.WatermarkStore, log zerolog.Logger) *Syncer {
	return &Syncer{
		catalog:    catalog,
		watermarks: watermarks,
		log:        log,
		clock:      time.Now,
	}
}

// SyncStock pushes one equity's keywords to its target news catalogs and
// stamps the equity's last_synced_at on success.
func (s *Syncer) SyncStock(ctx context.Context, stockKey string) (SyncResult, error) {
	result := SyncResult{StockKey: stockKey}

	entry, err := s.catalog.GetByKey(ctx, stockKey)
	if err != nil {
		return result, err
	}

	keywords := trimmedKeywords(entry.SearchKeywords)
	if len(keywords) == 0 {
		result.Status = SyncStatusNoKeywords
		s.log.Info().Str("stock_key", stockKey).Msg("no keywords to sync")
		return result, nil
	}

	result.TargetCatalogs = targetNewsCatalogs(stockKey, keywords)
	if len(result.TargetCatalogs) == 0 {
		result.Status = SyncStatusNoMatch
		s.log.Info().Str("stock_key", stockKey).Msg("no matching news catalogs")
		return result, nil
	}

	for _, target := range result.TargetCatalogs {
		err := s.catalog.AppendKeywords(ctx, target, keywords)
		switch {
		case err == nil:
			s.log.Info().
				Str("stock_key", stockKey).
				Str("news_catalog", target).
				Strs("keywords", keywords).
				Msg("keywords synced")
		case errors.Is(err, storage.ErrNotFound):
			result.Errors = append(result.Errors, fmt.Errorf("news catalog %s: %w", target, err))
			s.log.Warn().Str("stock_key", stockKey).Str("news_catalog", target).Msg("target news catalog missing")
		default:
			result.Errors = append(result.Errors, fmt.Errorf("news catalog %s: %w", target, err))
		}
	}

	if len(result.Errors) == len(result.TargetCatalogs) {
		result.Status = SyncStatusFailed
		return result, nil
	}

	if err := s.watermarks.SetSynced(ctx, stockKey, s.clock().UTC()); err != nil {
		return result, fmt.Errorf("stamp sync watermark: %w", err)
	}
	result.Status = SyncStatusSynced
	return result, nil
}

// SyncAll syncs every equity in the catalog, active or not.
func (s *Syncer) SyncAll(ctx context.Context) (SyncSummary, error) {
	keys, err := s.stockKeys(ctx)
	if err != nil {
		return SyncSummary{}, err
	}

	summary := SyncSummary{Total: len(keys)}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result, err := s.SyncStock(ctx, key)
		if err != nil {
			summary.Failed++
			s.log.Error().Err(err).Str("stock_key", key).Msg("keyword sync failed")
			continue
		}
		summary.Details = append(summary.Details, result)
		switch result.Status {
		case SyncStatusSynced:
			summary.Synced++
		case SyncStatusNoMatch:
			summary.NoMatch++
		case SyncStatusFailed:
			summary.Failed++
		}
	}

	s.log.Info().
		Int("total", summary.Total).
		Int("synced", summary.Synced).
		Int("no_match", summary.NoMatch).
		Int("failed", summary.Failed).
		Msg("catalog keyword sync complete")
	return summary, nil
}

func (s *Syncer) stockKeys(ctx context.Context) ([]string, error) {
	var keys []string
	seen := make(map[string]bool)

	active, err := s.catalog.Active(ctx, storage.CatalogFilter{})
	if err != nil {
		return nil, fmt.Errorf("list active entries: %w", err)
	}
	inactive, err := s.catalog.Inactive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list inactive entries: %w", err)
	}

	for _, entry := range append(active, inactive...) {
		if strings.HasPrefix(entry.Key, StockKeyPrefix) && !seen[entry.Key] {
			seen[entry.Key] = true
			keys = append(keys, entry.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// targetNewsCatalogs resolves the news entries an equity's keywords
// belong in: the pinned mapping first, industry rules otherwise.
func targetNewsCatalogs(stockKey string, keywords []string) []string {
	if targets, ok := stockNewsMapping[stockKey]; ok {
		return append([]string(nil), targets...)
	}

	set := make(map[string]bool)
	for _, kw := range keywords {
		lower := strings.ToLower(kw)
		for term, targets := range industryRules {
			if strings.Contains(lower, term) {
				for _, t := range targets {
					set[t] = true
				}
			}
		}
	}

	targets := make([]string, 0, len(set))
	for t := range set {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

func trimmedKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if trimmed := strings.TrimSpace(kw); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
