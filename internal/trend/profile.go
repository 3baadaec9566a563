package trend

import "fmt"

// Strategy versions. Production is the settled TradeVic36 logic; the
// experimental profile tightens thresholds to cut false signals.
const (
	VersionProduction   = "v1_tradervic36"
	VersionExperimental = "v2_beta"
)

// Mode selects the profile for a run and names its cache file.
type Mode string

const (
	ModeProduction   Mode = "production"
	ModeExperimental Mode = "experimental"
)

// ParseMode validates a mode string from a flag or config value.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeProduction, ModeExperimental:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown trend mode %q", s)
}

// Profile carries every numeric threshold of the trend-line and
// indicator math. Versions differ only in threshold values.
type Profile struct {
	Version string

	ATRPeriod  int
	SMAPeriods []int
	BiasPeriod int

	ConsolidationWindow    int
	ConsolidationThreshold float64

	// Anchor detection: centered rolling windows with their period
	// classes, the trailing window for edge completion, and the
	// age cutoff in years.
	AnchorWindows       []int
	EdgeWindow          int
	MaxAnchorYears      int
	RecentDaysThreshold int

	// Minimum fitted span in bars per period class.
	MinSpanShort int
	MinSpanMid   int
	MinSpanLong  int

	TouchATRMultiplier   float64
	FallbackTolerancePct float64

	// Grouping: start-date gap in days below which same-direction
	// lines collapse into one.
	GroupThresholdShort int
	GroupThresholdLong  int

	BiasThresholdHigh float64
	BiasThresholdLow  float64
}

// ProductionProfile returns the v1_tradervic36 thresholds.
func ProductionProfile() Profile {
	return Profile{
		Version: VersionProduction,

		ATRPeriod:  14,
		SMAPeriods: []int{20, 60, 200},
		BiasPeriod: 200,

		ConsolidationWindow:    20,
		ConsolidationThreshold: 0.02,

		AnchorWindows:       []int{50, 250, 750},
		EdgeWindow:          30,
		MaxAnchorYears:      10,
		RecentDaysThreshold: 125,

		MinSpanShort: 3,
		MinSpanMid:   15,
		MinSpanLong:  30,

		TouchATRMultiplier:   0.5,
		FallbackTolerancePct: 0.005,

		GroupThresholdShort: 10,
		GroupThresholdLong:  60,

		BiasThresholdHigh: 20.0,
		BiasThresholdLow:  -20.0,
	}
}

// ExperimentalProfile returns the v2_beta thresholds: stricter touch
// tolerance, a longer minimum short span, and a lower consolidation
// threshold.
func ExperimentalProfile() Profile {
	p := ProductionProfile()
	p.Version = VersionExperimental
	p.TouchATRMultiplier = 0.3
	p.MinSpanShort = 5
	p.ConsolidationThreshold = 0.015
	return p
}

// ProfileFor maps a run mode to its profile.
func ProfileFor(mode Mode) Profile {
	if mode == ModeExperimental {
		return ExperimentalProfile()
	}
	return ProductionProfile()
}
