// Package idhash computes the deterministic hashes used as dedup boundaries:
// request fingerprints for the bronze cache and URL fingerprints for news.
package idhash

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"heimdall/internal/domain"
)

// TimeBucket returns the coarse time bucket for a frequency. The bucket width
// is the de-facto rate limit: one fetch per (key, params, bucket) is ever
// stored, no matter how often ingestion is triggered within the bucket.
func TimeBucket(freq domain.Frequency, now time.Time) string {
	switch freq {
	case domain.FrequencyHourly:
		return now.UTC().Format("2006-01-02-15")
	case domain.FrequencyMonthly:
		return now.UTC().Format("2006-01")
	case domain.FrequencyDaily:
		return now.UTC().Format("2006-01-02")
	default:
		// Unknown cadence degrades to daily.
		return now.UTC().Format("2006-01-02")
	}
}

// RequestFingerprint computes the bronze-layer dedup key.
// Formula: SHA256(catalog_key ":" canonicalJSON(params) ":" time_bucket),
// hex encoded. Params are canonicalized with sorted keys so logically equal
// configurations always hash the same.
func RequestFingerprint(catalogKey string, params map[string]any, freq domain.Frequency, now time.Time) string {
	input := fmt.Sprintf("%s:%s:%s", catalogKey, canonicalJSON(params), TimeBucket(freq, now))
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// NewsFingerprint computes the silver-layer news dedup key from an article URL.
func NewsFingerprint(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// TitleHash computes a short title hash used when reporting near-duplicates.
func TitleHash(title string) string {
	sum := md5.Sum([]byte(title))
	return hex.EncodeToString(sum[:])[:16]
}

// canonicalJSON marshals a parameter map with deterministic key order.
// encoding/json already sorts map keys, but nested non-map values marshalled
// from any may carry maps inside slices; normalize recursively to be safe.
func canonicalJSON(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	b, err := json.Marshal(normalize(params))
	if err != nil {
		// Parameter maps come from JSON config; marshalling them back
		// cannot fail for any value we accept.
		return "{}"
	}
	return string(b)
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(t))
		for _, k := range keys {
			out[k] = normalize(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}
