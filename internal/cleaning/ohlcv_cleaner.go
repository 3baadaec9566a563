package cleaning

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"heimdall/internal/domain"
)

type ohlcvPayload struct {
	Mode string `json:"mode"`
	Data struct {
		HistoricalData []struct {
			Date   string  `json:"date"`
			Open   float64 `json:"open"`
			High   float64 `json:"high"`
			Low    float64 `json:"low"`
			Close  float64 `json:"close"`
			Volume int64   `json:"volume"`
		} `json:"historical_data"`
	} `json:"data"`
}

// cleanOHLCV turns an OHLCV history payload into daily bars. Bars without
// a parseable date or with a non-positive close are dropped; duplicate
// dates within one payload keep the last occurrence.
func cleanOHLCV(rec *domain.RawRecord) ([]*domain.Bar, error) {
	var payload ohlcvPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.Data.HistoricalData == nil {
		return nil, fmt.Errorf("%w: missing historical_data", ErrMalformedPayload)
	}

	byDate := make(map[string]*domain.Bar, len(payload.Data.HistoricalData))
	for _, raw := range payload.Data.HistoricalData {
		date, err := time.ParseInLocation("2006-01-02", raw.Date, time.UTC)
		if err != nil {
			continue
		}
		if raw.Close <= 0 {
			continue
		}
		bar := &domain.Bar{
			CatalogKey: rec.CatalogKey,
			Date:       date,
			Open:       raw.Open,
			High:       raw.High,
			Low:        raw.Low,
			Close:      raw.Close,
			Volume:     raw.Volume,
		}
		// Fill absent boundary prices from the close so downstream range
		// math never sees zeros.
		if bar.Open <= 0 {
			bar.Open = bar.Close
		}
		if bar.High <= 0 {
			bar.High = maxf(bar.Open, bar.Close)
		}
		if bar.Low <= 0 {
			bar.Low = minf(bar.Open, bar.Close)
		}
		byDate[raw.Date] = bar
	}

	bars := make([]*domain.Bar, 0, len(byDate))
	for _, bar := range byDate {
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	return bars, nil
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
