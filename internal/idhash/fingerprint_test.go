package idhash

import (
	"testing"
	"time"

	"heimdall/internal/domain"
)

func TestTimeBucket_Widths(t *testing.T) {
	now := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

	cases := []struct {
		freq domain.Frequency
		want string
	}{
		{domain.FrequencyHourly, "2024-03-15-14"},
		{domain.FrequencyDaily, "2024-03-15"},
		{domain.FrequencyMonthly, "2024-03"},
		{domain.Frequency("WEEKLY"), "2024-03-15"}, // unknown falls back to daily
	}

	for _, c := range cases {
		if got := TimeBucket(c.freq, now); got != c.want {
			t.Errorf("TimeBucket(%s) = %q, want %q", c.freq, got, c.want)
		}
	}
}

func TestRequestFingerprint_StableWithinBucket(t *testing.T) {
	params := map[string]any{"symbol": "NVDA", "interval": "1d"}
	t1 := time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC)

	fp1 := RequestFingerprint("STOCK_PRICE_NVDA", params, domain.FrequencyDaily, t1)
	fp2 := RequestFingerprint("STOCK_PRICE_NVDA", params, domain.FrequencyDaily, t2)

	if fp1 != fp2 {
		t.Errorf("fingerprints within the same daily bucket differ: %s vs %s", fp1, fp2)
	}
	if len(fp1) != 64 {
		t.Errorf("expected 64-char sha256 hex, got %d chars", len(fp1))
	}
}

func TestRequestFingerprint_ChangesAcrossBuckets(t *testing.T) {
	params := map[string]any{"symbol": "NVDA"}
	day1 := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	if RequestFingerprint("K", params, domain.FrequencyDaily, day1) ==
		RequestFingerprint("K", params, domain.FrequencyDaily, day2) {
		t.Error("fingerprints across daily buckets must differ")
	}
}

func TestRequestFingerprint_ParamOrderIrrelevant(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	a := map[string]any{"a": 1, "b": "x", "c": []any{"s1", "s2"}}
	b := map[string]any{"c": []any{"s1", "s2"}, "b": "x", "a": 1}

	if RequestFingerprint("K", a, domain.FrequencyDaily, now) !=
		RequestFingerprint("K", b, domain.FrequencyDaily, now) {
		t.Error("canonicalization must make map order irrelevant")
	}
}

func TestNewsFingerprint_URLIdentity(t *testing.T) {
	u := "https://example.com/markets/story-1"
	if NewsFingerprint(u) != NewsFingerprint(u) {
		t.Error("same URL must fingerprint identically")
	}
	if NewsFingerprint(u) == NewsFingerprint(u+"?ref=feed") {
		t.Error("different URLs must fingerprint differently")
	}
	if len(NewsFingerprint(u)) != 32 {
		t.Errorf("expected 32-char md5 hex, got %d", len(NewsFingerprint(u)))
	}
}

func TestTitleHash_Short(t *testing.T) {
	if len(TitleHash("Fed holds rates steady")) != 16 {
		t.Error("title hash must be 16 chars")
	}
}
