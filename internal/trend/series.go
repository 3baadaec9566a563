package trend

import (
	"sort"
	"time"

	"heimdall/internal/domain"
)

// Series is the per-bar working set the trend math runs on. All slices
// share one index, ordered by date ascending.
type Series struct {
	Dates   []time.Time
	Opens   []float64
	Highs   []float64
	Lows    []float64
	Closes  []float64
	Volumes []int64

	// Candle body range: BodyHigh = max(open, close), BodyLow = min.
	BodyHighs []float64
	BodyLows  []float64

	ATR []float64
}

// NewSeries builds the working set from cleaned daily bars. Non-positive
// price fields are backward- then forward-filled per column before any
// derived values are computed.
func NewSeries(bars []*domain.Bar, atrPeriod int) *Series {
	sorted := make([]*domain.Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	n := len(sorted)
	s := &Series{
		Dates:   make([]time.Time, n),
		Opens:   make([]float64, n),
		Highs:   make([]float64, n),
		Lows:    make([]float64, n),
		Closes:  make([]float64, n),
		Volumes: make([]int64, n),
	}
	for i, bar := range sorted {
		s.Dates[i] = bar.Date
		s.Opens[i] = bar.Open
		s.Highs[i] = bar.High
		s.Lows[i] = bar.Low
		s.Closes[i] = bar.Close
		s.Volumes[i] = bar.Volume
	}

	fillGaps(s.Opens)
	fillGaps(s.Highs)
	fillGaps(s.Lows)
	fillGaps(s.Closes)

	s.BodyHighs = make([]float64, n)
	s.BodyLows = make([]float64, n)
	for i := 0; i < n; i++ {
		if s.Opens[i] > s.Closes[i] {
			s.BodyHighs[i] = s.Opens[i]
			s.BodyLows[i] = s.Closes[i]
		} else {
			s.BodyHighs[i] = s.Closes[i]
			s.BodyLows[i] = s.Opens[i]
		}
	}

	s.ATR = atr(s.Highs, s.Lows, s.Closes, atrPeriod)
	return s
}

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.Dates) }

// fillGaps replaces non-positive values with the next positive value,
// then the previous one for a trailing gap.
func fillGaps(values []float64) {
	for i := len(values) - 2; i >= 0; i-- {
		if values[i] <= 0 && values[i+1] > 0 {
			values[i] = values[i+1]
		}
	}
	for i := 1; i < len(values); i++ {
		if values[i] <= 0 && values[i-1] > 0 {
			values[i] = values[i-1]
		}
	}
}
