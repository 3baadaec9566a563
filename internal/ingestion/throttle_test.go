package ingestion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"heimdall/internal/domain"
)

func entryWithFrequency(freq domain.Frequency) *domain.CatalogEntry {
	return &domain.CatalogEntry{Key: "K", Frequency: freq}
}

func wmIngestedAt(t time.Time) *domain.Watermark {
	return &domain.Watermark{CatalogKey: "K", LastIngestedAt: &t}
}

func TestDecide_Force(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	fetch, reason := Decide(entryWithFrequency(domain.FrequencyDaily), wmIngestedAt(now), domain.KindOHLCVHistory, now, true)
	assert.True(t, fetch)
	assert.Equal(t, ReasonForced, reason)
}

func TestDecide_FirstFetch(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	fetch, reason := Decide(entryWithFrequency(domain.FrequencyMonthly), nil, domain.KindMacroSeries, now, false)
	assert.True(t, fetch)
	assert.Equal(t, ReasonFirstFetch, reason)

	// Watermark row exists but was never ingested
	fetch, reason = Decide(entryWithFrequency(domain.FrequencyMonthly), &domain.Watermark{CatalogKey: "K"}, domain.KindMacroSeries, now, false)
	assert.True(t, fetch)
	assert.Equal(t, ReasonFirstFetch, reason)
}

func TestDecide_NewsAlwaysFetches(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Minute)

	fetch, reason := Decide(entryWithFrequency(domain.FrequencyHourly), wmIngestedAt(recent), domain.KindNewsFeed, now, false)
	assert.True(t, fetch)
	assert.Equal(t, ReasonNewsFeed, reason)
}

func TestDecide_Hourly(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	entry := entryWithFrequency(domain.FrequencyHourly)

	fetch, _ := Decide(entry, wmIngestedAt(now.Add(-30*time.Minute)), domain.KindOHLCVHistory, now, false)
	assert.False(t, fetch)

	fetch, reason := Decide(entry, wmIngestedAt(now.Add(-time.Hour)), domain.KindOHLCVHistory, now, false)
	assert.True(t, fetch)
	assert.Equal(t, ReasonDue, reason)
}

func TestDecide_Daily(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	entry := entryWithFrequency(domain.FrequencyDaily)

	fetch, reason := Decide(entry, wmIngestedAt(now.Add(-23*time.Hour)), domain.KindOHLCVHistory, now, false)
	assert.False(t, fetch)
	assert.Equal(t, ReasonThrottled, reason)

	fetch, _ = Decide(entry, wmIngestedAt(now.Add(-24*time.Hour)), domain.KindOHLCVHistory, now, false)
	assert.True(t, fetch)
}

func TestDecide_UnknownFrequencyBehavesLikeDaily(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	entry := entryWithFrequency(domain.Frequency("WEEKLY"))

	fetch, reason := Decide(entry, wmIngestedAt(now.Add(-23*time.Hour)), domain.KindOHLCVHistory, now, false)
	assert.False(t, fetch)
	assert.Equal(t, ReasonThrottled, reason)

	fetch, _ = Decide(entry, wmIngestedAt(now.Add(-25*time.Hour)), domain.KindOHLCVHistory, now, false)
	assert.True(t, fetch)
}

func TestDecide_MonthlyCalendarBoundary(t *testing.T) {
	entry := entryWithFrequency(domain.FrequencyMonthly)

	// Same calendar month: throttled even 29 days apart
	now := time.Date(2025, 5, 30, 12, 0, 0, 0, time.UTC)
	fetch, _ := Decide(entry, wmIngestedAt(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)), domain.KindMacroSeries, now, false)
	assert.False(t, fetch)

	// Month rolled over: due even a day later
	now = time.Date(2025, 6, 1, 0, 30, 0, 0, time.UTC)
	fetch, _ = Decide(entry, wmIngestedAt(time.Date(2025, 5, 31, 23, 0, 0, 0, time.UTC)), domain.KindMacroSeries, now, false)
	assert.True(t, fetch)

	// Same month, different year
	fetch, _ = Decide(entry, wmIngestedAt(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)), domain.KindMacroSeries, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), false)
	assert.True(t, fetch)
}
