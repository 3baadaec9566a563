package domain

import "time"

// MacroPoint is one cleaned scalar observation.
// Corresponds to the timeseries_macro table, unique per (catalog_key, date).
type MacroPoint struct {
	CatalogKey string
	Date       time.Time // UTC midnight
	Value      float64
}

// Bar is one cleaned OHLCV bar.
// Corresponds to the timeseries_micro table, unique per (catalog_key, date).
type Bar struct {
	CatalogKey string
	Date       time.Time // UTC midnight
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
}

// NewsItem is one cleaned article.
// Corresponds to the news_intel_pool table; Fingerprint (URL hash) uniqueness
// is the news dedup boundary, and the first row stored for a fingerprint wins.
type NewsItem struct {
	Fingerprint    string // PRIMARY KEY, MD5 of URL
	TitleHash      string // short title hash for near-duplicate reporting
	CatalogKey     string
	PublishedAt    time.Time
	Title          string
	URL            string
	Body           *string
	Author         *string
	SourceName     *string
	SentimentScore *float64 // filled by the external audit collaborator
	AISummary      *string
}
