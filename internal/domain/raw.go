package domain

import "time"

// PayloadKind tags a raw payload with the shape the adapter produced, so the
// cleaning layer dispatches on an explicit discriminator instead of sniffing
// the JSON structure.
type PayloadKind string

const (
	KindMacroSeries  PayloadKind = "macro_series"  // scalar observations per series
	KindOHLCVHistory PayloadKind = "ohlcv_history" // daily bars
	KindNewsFeed     PayloadKind = "news_feed"     // article list
)

// Payload is the tagged envelope returned by an adapter fetch.
type Payload struct {
	Kind PayloadKind
	Data []byte // opaque JSON for the bronze layer
}

// RawRecord is one immutable bronze-layer cache entry.
// Corresponds to the raw_ingestion_cache table.
//
// RequestHash uniqueness enforces at-most-one fetch per
// (catalog key, params, time bucket); a second fetch within the same bucket
// is a guaranteed no-op.
type RawRecord struct {
	RequestHash string // PRIMARY KEY, see idhash.RequestFingerprint
	CatalogKey  string
	SourceAPI   string
	Kind        PayloadKind
	Payload     []byte
	InsertedAt  time.Time
}
