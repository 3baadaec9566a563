// Package cleaning transforms bronze raw payloads into typed silver rows.
// Selection is differential: only raw records newer than the source's
// cleaning watermark are read, with a full-history backfill for keys that
// were never cleaned.
package cleaning

import (
	"errors"
	"fmt"

	"heimdall/internal/domain"
)

// ErrMalformedPayload is returned when a raw payload does not match the
// structure its kind promises. The record is skipped, never committed.
var ErrMalformedPayload = errors.New("cleaning: malformed payload")

// Cleaned is the typed output of cleaning one raw record.
type Cleaned struct {
	Macro []*domain.MacroPoint
	Bars  []*domain.Bar
	News  []*domain.NewsItem
}

// Rows counts all typed rows regardless of kind.
func (c Cleaned) Rows() int {
	return len(c.Macro) + len(c.Bars) + len(c.News)
}

// CleanRecord dispatches one raw record to the cleaner for its payload kind.
func CleanRecord(rec *domain.RawRecord) (Cleaned, error) {
	switch rec.Kind {
	case domain.KindMacroSeries:
		points, err := cleanMacro(rec)
		return Cleaned{Macro: points}, err
	case domain.KindOHLCVHistory:
		bars, err := cleanOHLCV(rec)
		return Cleaned{Bars: bars}, err
	case domain.KindNewsFeed:
		items, err := cleanNews(rec)
		return Cleaned{News: items}, err
	default:
		return Cleaned{}, fmt.Errorf("%w: unknown payload kind %q", ErrMalformedPayload, rec.Kind)
	}
}
