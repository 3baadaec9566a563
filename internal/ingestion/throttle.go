// Package ingestion runs the bronze-layer fetch pipeline: throttle check,
// request fingerprinting, adapter fetch, and the atomic raw-plus-watermark
// commit.
package ingestion

import (
	"time"

	"heimdall/internal/domain"
)

// Throttle reasons reported in results and logs.
const (
	ReasonForced     = "forced"
	ReasonFirstFetch = "first full fetch"
	ReasonNewsFeed   = "news feeds always fetch"
	ReasonDue        = "interval elapsed"
	ReasonThrottled  = "within frequency interval"
)

// minimum elapsed time per frequency before a non-news source is re-fetched.
var frequencyIntervals = map[domain.Frequency]time.Duration{
	domain.FrequencyHourly: time.Hour,
	domain.FrequencyDaily:  24 * time.Hour,
}

// Decide reports whether a catalog entry is due for a fetch. News-like
// payloads bypass the interval check: their content changes continuously
// and the hourly fingerprint bucket already bounds the fetch rate.
func Decide(entry *domain.CatalogEntry, wm *domain.Watermark, kind domain.PayloadKind, now time.Time, force bool) (bool, string) {
	if force {
		return true, ReasonForced
	}
	if wm == nil || wm.LastIngestedAt == nil {
		return true, ReasonFirstFetch
	}
	if kind == domain.KindNewsFeed {
		return true, ReasonNewsFeed
	}

	last := wm.LastIngestedAt.UTC()
	now = now.UTC()

	if entry.Frequency == domain.FrequencyMonthly {
		if last.Year() != now.Year() || last.Month() != now.Month() {
			return true, ReasonDue
		}
		return false, ReasonThrottled
	}

	interval, ok := frequencyIntervals[entry.Frequency]
	if !ok {
		// Unknown frequency falls back to daily, like the fingerprint bucket.
		interval = frequencyIntervals[domain.FrequencyDaily]
	}
	if now.Sub(last) >= interval {
		return true, ReasonDue
	}
	return false, ReasonThrottled
}
