package trend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("production")
	require.NoError(t, err)
	assert.Equal(t, ModeProduction, mode)

	mode, err = ParseMode("experimental")
	require.NoError(t, err)
	assert.Equal(t, ModeExperimental, mode)

	_, err = ParseMode("canary")
	assert.Error(t, err)
}

func TestExperimentalProfileOverrides(t *testing.T) {
	prod := ProductionProfile()
	exp := ExperimentalProfile()

	assert.Equal(t, VersionProduction, prod.Version)
	assert.Equal(t, VersionExperimental, exp.Version)

	assert.Equal(t, 0.3, exp.TouchATRMultiplier)
	assert.Equal(t, 5, exp.MinSpanShort)
	assert.Equal(t, 0.015, exp.ConsolidationThreshold)

	// Everything else matches production
	assert.Equal(t, prod.ATRPeriod, exp.ATRPeriod)
	assert.Equal(t, prod.AnchorWindows, exp.AnchorWindows)
	assert.Equal(t, prod.MinSpanMid, exp.MinSpanMid)
	assert.Equal(t, prod.MinSpanLong, exp.MinSpanLong)
	assert.Equal(t, prod.GroupThresholdShort, exp.GroupThresholdShort)
	assert.Equal(t, prod.RecentDaysThreshold, exp.RecentDaysThreshold)
}

func TestProfileFor(t *testing.T) {
	assert.Equal(t, VersionProduction, ProfileFor(ModeProduction).Version)
	assert.Equal(t, VersionExperimental, ProfileFor(ModeExperimental).Version)
}
