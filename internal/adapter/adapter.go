// Package adapter fetches raw payloads from external market data sources.
// Each adapter validates its catalog params, fetches, and returns the raw
// response envelope untouched; parsing beyond structural validation belongs
// to the cleaning layer.
package adapter

import (
	"context"
	"errors"
	"time"

	"heimdall/internal/domain"
)

// Adapter errors.
var (
	// ErrConfigInvalid is returned when catalog config params are missing
	// required fields or carry wrong types.
	ErrConfigInvalid = errors.New("adapter: invalid config params")

	// ErrNoData is returned when the source responded but produced nothing
	// usable for the request.
	ErrNoData = errors.New("adapter: source returned no data")

	// ErrUnknownSource is returned by the registry for an unmapped source API.
	ErrUnknownSource = errors.New("adapter: unknown source api")
)

// FetchContext carries everything an adapter needs for one fetch.
type FetchContext struct {
	CatalogKey     string
	SourceAPI      string
	Role           domain.Role
	Frequency      domain.Frequency
	ConfigParams   map[string]any
	SearchKeywords []string
	LastIngestedAt *time.Time // nil on the very first fetch for the key
	Now            time.Time
}

// Adapter is one external data source connector.
type Adapter interface {
	// Kind reports the payload shape this adapter produces.
	Kind() domain.PayloadKind

	// ValidateConfig checks catalog config params without any network call.
	ValidateConfig(params map[string]any) error

	// FetchRaw fetches one payload for the catalog entry.
	FetchRaw(ctx context.Context, fc FetchContext) (*domain.Payload, error)

	// DryRun performs a cheap end-to-end probe (validate plus a minimal
	// fetch) without persisting anything. Used by catalog activation.
	DryRun(ctx context.Context, fc FetchContext) error
}

// Incremental lookback depth per role, in days. Judgment series are the
// primary signals and get the deeper window.
const (
	judgmentLookbackDays   = 30
	validationLookbackDays = 7
)

// IncrementalStart computes the observation start date for an incremental
// fetch. A nil last-ingested watermark means full history is wanted and
// the zero time is returned.
func IncrementalStart(fc FetchContext) time.Time {
	if fc.LastIngestedAt == nil {
		return time.Time{}
	}
	days := validationLookbackDays
	if fc.Role == domain.RoleJudgment {
		days = judgmentLookbackDays
	}
	return fc.Now.UTC().AddDate(0, 0, -days)
}

// stringParam extracts a non-empty string param.
func stringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// stringSliceParam extracts a list-of-strings param. JSON decoding yields
// []any, so both representations are accepted.
func stringSliceParam(params map[string]any, key string) ([]string, bool) {
	v, ok := params[key]
	if !ok {
		return nil, false
	}
	switch vv := v.(type) {
	case []string:
		return vv, len(vv) > 0
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, false
			}
			out = append(out, s)
		}
		return out, len(out) > 0
	default:
		return nil, false
	}
}
