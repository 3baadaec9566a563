package trend

import "math"

// atr computes the Average True Range as a simple moving average of the
// true range. Warm-up bars are backfilled with the first complete value;
// a series shorter than the period falls back to 1% of the close.
func atr(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	tr := make([]float64, n)
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	if n < period {
		for i := range out {
			out[i] = closes[i] * 0.01
		}
		return out
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += tr[i]
		if i >= period {
			sum -= tr[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	for i := 0; i < period-1; i++ {
		out[i] = out[period-1]
	}
	return out
}
