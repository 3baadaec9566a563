package trend

import (
	"fmt"
	"math"
)

// IndicatorReport holds SMA, bias, and volatility for one asset under
// one profile. Warm-up positions are nil so they serialize as null.
type IndicatorReport struct {
	Version           string                `json:"version"`
	Timestamp         string                `json:"timestamp"`
	SMA               map[string][]*float64 `json:"sma"`
	Bias              []*float64            `json:"bias"`
	Volatility        float64               `json:"volatility"`
	BiasThresholdHigh float64               `json:"bias_threshold_high"`
	BiasThresholdLow  float64               `json:"bias_threshold_low"`
	Metadata          IndicatorMetadata     `json:"metadata"`
}

// IndicatorMetadata summarizes the series the indicators ran on.
type IndicatorMetadata struct {
	DataLength int      `json:"data_length"`
	LastClose  float64  `json:"last_close"`
	LastBias   *float64 `json:"last_bias"`
}

// Consolidation reports whether the trailing window is range-bound.
type Consolidation struct {
	IsActive   bool    `json:"is_active"`
	Volatility float64 `json:"volatility"`
	Threshold  float64 `json:"threshold"`
	Reason     string  `json:"reason,omitempty"`
}

// computeIndicators produces the SMA set, the bias against the long
// moving average, and annualized volatility.
func computeIndicators(s *Series, p Profile, timestamp string) *IndicatorReport {
	n := s.Len()

	smaResults := make(map[string][]*float64, len(p.SMAPeriods))
	for _, period := range p.SMAPeriods {
		smaResults[fmt.Sprintf("sma_%d", period)] = sma(s.Closes, period)
	}

	longSMA := sma(s.Closes, p.BiasPeriod)
	bias := make([]*float64, n)
	for i := 0; i < n; i++ {
		if longSMA[i] == nil || *longSMA[i] == 0 {
			continue
		}
		v := (s.Closes[i] - *longSMA[i]) / *longSMA[i] * 100
		bias[i] = &v
	}

	report := &IndicatorReport{
		Version:           p.Version,
		Timestamp:         timestamp,
		SMA:               smaResults,
		Bias:              bias,
		Volatility:        annualizedVolatility(s.Closes),
		BiasThresholdHigh: p.BiasThresholdHigh,
		BiasThresholdLow:  p.BiasThresholdLow,
		Metadata:          IndicatorMetadata{DataLength: n},
	}
	if n > 0 {
		report.Metadata.LastClose = s.Closes[n-1]
		report.Metadata.LastBias = bias[n-1]
	}
	return report
}

// checkConsolidation tests whether the trailing window's body range is
// narrow relative to the mean close.
func checkConsolidation(s *Series, p Profile) Consolidation {
	window := p.ConsolidationWindow
	n := s.Len()
	if n < window {
		return Consolidation{IsActive: false, Reason: "insufficient_data"}
	}

	start := n - window
	high := s.BodyHighs[start]
	low := s.BodyLows[start]
	var closeSum float64
	for i := start; i < n; i++ {
		if s.BodyHighs[i] > high {
			high = s.BodyHighs[i]
		}
		if s.BodyLows[i] < low {
			low = s.BodyLows[i]
		}
		closeSum += s.Closes[i]
	}

	mean := closeSum / float64(window)
	volatility := 0.0
	if mean != 0 {
		volatility = (high - low) / mean
	}
	return Consolidation{
		IsActive:   volatility < p.ConsolidationThreshold,
		Volatility: volatility,
		Threshold:  p.ConsolidationThreshold,
	}
}

// sma is a trailing simple moving average; positions without a full
// window are nil.
func sma(values []float64, period int) []*float64 {
	out := make([]*float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			mean := sum / float64(period)
			out[i] = &mean
		}
	}
	return out
}

// annualizedVolatility is the sample standard deviation of daily
// percentage returns scaled by the square root of 252 trading days.
func annualizedVolatility(closes []float64) float64 {
	var returns []float64
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(returns)-1))
	return std * math.Sqrt(252)
}
