package domain

import "time"

// Watermark records how far ingestion and cleaning have progressed for one
// catalog key. Corresponds to the sync_watermarks table.
//
// Invariant: LastCleanedAt never exceeds the maximum raw-record insertion
// time that has actually been transformed into the silver layer for this key.
// Rows are created lazily (insert-if-absent) and only move forward; the only
// way back is an explicit reset for reprocessing.
type Watermark struct {
	CatalogKey     string
	LastIngestedAt *time.Time
	LastCleanedAt  *time.Time
	LastSyncedAt   *time.Time
	Checksum       *string
}
