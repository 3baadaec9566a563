package trend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heimdall/internal/domain"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

// risingBars builds up-candles on a unit-slope support: low = 100 + i,
// lifted 2 above the line except at the given dip indices, which sit
// exactly on it. close = low + 1, open = low, high = close.
func risingBars(n int, dips ...int) []*domain.Bar {
	onLine := make(map[int]bool, len(dips))
	for _, d := range dips {
		onLine[d] = true
	}
	bars := make([]*domain.Bar, n)
	for i := 0; i < n; i++ {
		low := 100 + float64(i)
		if !onLine[i] {
			low += 2
		}
		bars[i] = &domain.Bar{
			CatalogKey: "ASSET",
			Date:       day(i),
			Open:       low,
			High:       low + 1,
			Low:        low,
			Close:      low + 1,
			Volume:     1000,
		}
	}
	return bars
}

func TestFillGaps(t *testing.T) {
	values := []float64{0, 5, 0, 0, 8}
	fillGaps(values)
	assert.Equal(t, []float64{5, 5, 8, 8, 8}, values)

	trailing := []float64{5, 0, 0}
	fillGaps(trailing)
	assert.Equal(t, []float64{5, 5, 5}, trailing)
}

func TestNewSeries_BodyRangeAndOrdering(t *testing.T) {
	bars := []*domain.Bar{
		{Date: day(1), Open: 8, High: 11, Low: 7, Close: 10},
		{Date: day(0), Open: 10, High: 11, Low: 7, Close: 8},
	}
	s := NewSeries(bars, 14)

	require.Equal(t, 2, s.Len())
	assert.True(t, s.Dates[0].Before(s.Dates[1]))

	// Down candle: body high is the open
	assert.Equal(t, 10.0, s.BodyHighs[0])
	assert.Equal(t, 8.0, s.BodyLows[0])
	// Up candle: body high is the close
	assert.Equal(t, 10.0, s.BodyHighs[1])
	assert.Equal(t, 8.0, s.BodyLows[1])
}

func TestATR_ShortSeriesFallsBackToOnePercent(t *testing.T) {
	highs := []float64{201, 202}
	lows := []float64{199, 198}
	closes := []float64{200, 200}

	out := atr(highs, lows, closes, 14)
	require.Len(t, out, 2)
	assert.InDelta(t, 2.0, out[0], 1e-9)
	assert.InDelta(t, 2.0, out[1], 1e-9)
}

func TestATR_WarmupBackfilled(t *testing.T) {
	n := 20
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = 12
		lows[i] = 10
		closes[i] = 11
	}

	out := atr(highs, lows, closes, 14)
	require.Len(t, out, n)
	assert.InDelta(t, 2.0, out[n-1], 1e-9)
	// Warm-up bars carry the first complete value
	assert.Equal(t, out[13], out[0])
	assert.Equal(t, out[13], out[5])
}
