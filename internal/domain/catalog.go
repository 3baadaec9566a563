package domain

import "time"

// Scope classifies what a catalog entry tracks.
type Scope string

const (
	ScopeMacro Scope = "MACRO" // economy-wide scalar series
	ScopeMicro Scope = "MICRO" // per-asset OHLCV series and news
)

// Role classifies how a series is used downstream.
// JUDGMENT entries are primary signals and get a deeper incremental lookback;
// VALIDATION entries only corroborate and can be fetched shallower.
type Role string

const (
	RoleJudgment   Role = "JUDGMENT"
	RoleValidation Role = "VALIDATION"
)

// Frequency is the expected update cadence of a source.
type Frequency string

const (
	FrequencyHourly  Frequency = "HOURLY"
	FrequencyDaily   Frequency = "DAILY"
	FrequencyMonthly Frequency = "MONTHLY"
)

// CatalogEntry identifies one logical data series to track.
// Corresponds to the data_catalog table.
type CatalogEntry struct {
	Key            string         // PRIMARY KEY, e.g. STOCK_PRICE_NVDA
	EntityName     string         // human-readable name
	Country        string         // country/scope tag, e.g. US, JP
	Scope          Scope          // MACRO | MICRO
	Role           Role           // JUDGMENT | VALIDATION
	SourceAPI      string         // adapter identifier, e.g. FRED, yfinance
	Frequency      Frequency      // HOURLY | DAILY | MONTHLY
	ConfigParams   map[string]any // adapter-specific parameters
	SearchKeywords []string       // free-text keywords for news search
	Active         bool
	CreatedAt      time.Time
}
