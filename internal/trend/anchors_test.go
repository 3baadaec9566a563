package trend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heimdall/internal/domain"
)

func TestIdentifyAnchors_MonotonicRise(t *testing.T) {
	s := NewSeries(risingBars(100, 0, 40, 80), 14)
	anchors := identifyAnchors(s, ProductionProfile())

	require.Len(t, anchors, 3)

	// Global low on the first bar
	assert.Equal(t, day(0), anchors[0].Date)
	assert.Equal(t, DirectionUp, anchors[0].Direction)
	assert.Equal(t, PeriodGlobal, anchors[0].Period)

	// Edge completion: trailing-window low, short class
	assert.Equal(t, day(70), anchors[1].Date)
	assert.Equal(t, DirectionUp, anchors[1].Direction)
	assert.Equal(t, Period2Month, anchors[1].Period)

	// Global high on the last bar
	assert.Equal(t, day(99), anchors[2].Date)
	assert.Equal(t, DirectionDown, anchors[2].Direction)
	assert.Equal(t, PeriodGlobal, anchors[2].Period)
}

func TestIdentifyAnchors_DedupKeepsHigherPriority(t *testing.T) {
	// Falling series: the global low is the last bar, which the trailing
	// window would also flag. The Global class must win the duplicate.
	n := 40
	bars := make([]*domain.Bar, n)
	for i := 0; i < n; i++ {
		low := 200 - float64(i)
		bars[i] = &domain.Bar{Date: day(i), Open: low, High: low + 1, Low: low, Close: low + 1}
	}
	s := NewSeries(bars, 14)
	anchors := identifyAnchors(s, ProductionProfile())

	require.Len(t, anchors, 3)
	assert.Equal(t, day(0), anchors[0].Date)
	assert.Equal(t, DirectionDown, anchors[0].Direction)
	assert.Equal(t, PeriodGlobal, anchors[0].Period)

	// Trailing-window high is a genuine new short anchor
	assert.Equal(t, day(10), anchors[1].Date)
	assert.Equal(t, DirectionDown, anchors[1].Direction)
	assert.Equal(t, Period2Month, anchors[1].Period)

	assert.Equal(t, day(39), anchors[2].Date)
	assert.Equal(t, DirectionUp, anchors[2].Direction)
	assert.Equal(t, PeriodGlobal, anchors[2].Period)
}

func TestIdentifyAnchors_AgeCutoffDropsOldExtremes(t *testing.T) {
	// 11 years of daily bars: the global low on day 0 is past the
	// 10-year cutoff and must not anchor anything.
	n := 4015
	bars := make([]*domain.Bar, n)
	for i := 0; i < n; i++ {
		low := 100 + 0.01*float64(i)
		bars[i] = &domain.Bar{Date: day(i), Open: low, High: low + 1, Low: low, Close: low + 1}
	}
	s := NewSeries(bars, 14)
	anchors := identifyAnchors(s, ProductionProfile())

	cutoff := s.Dates[n-1].AddDate(-10, 0, 0)
	require.NotEmpty(t, anchors)
	for _, a := range anchors {
		assert.False(t, a.Date.Before(cutoff.AddDate(0, 0, -7)),
			"anchor %s older than cutoff", a.Date)
		assert.NotEqual(t, day(0), a.Date)
	}
}

func TestCenteredRollingExtremes_RequiresFullWindow(t *testing.T) {
	// A V shape: the minimum sits in the middle where the centered
	// window is complete.
	values := []float64{5, 4, 3, 2, 1, 2, 3, 4, 5}
	got := centeredRollingExtremes(values, 4, false)
	assert.Contains(t, got, 4)
	for _, i := range got {
		assert.GreaterOrEqual(t, i, 1)
		assert.LessOrEqual(t, i, 6)
	}

	// Window larger than the series yields nothing
	assert.Empty(t, centeredRollingExtremes(values, 50, false))
}

func TestPeriodForWindow(t *testing.T) {
	assert.Equal(t, Period2Month, periodForWindow(50))
	assert.Equal(t, Period1Year, periodForWindow(250))
	assert.Equal(t, Period3Year, periodForWindow(750))
}

func TestPeriodPriority(t *testing.T) {
	assert.Greater(t, periodPriority(PeriodGlobal), periodPriority(Period3Year))
	assert.Greater(t, periodPriority(Period3Year), periodPriority(Period1Year))
	assert.Greater(t, periodPriority(Period1Year), periodPriority(Period2Month))
}
