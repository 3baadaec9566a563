package cleaning

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"heimdall/internal/domain"
)

// fredMissingValue is the sentinel FRED emits for dates without data.
const fredMissingValue = "."

type macroPayload struct {
	SeriesData map[string]struct {
		Observations []struct {
			Date  string `json:"date"`
			Value string `json:"value"`
		} `json:"observations"`
	} `json:"series_data"`
}

// cleanMacro turns a macro series payload into one point per date. A
// catalog entry aggregating several series sums their values per date, so
// composite indicators come out as a single curve. Missing-value sentinels
// and unparseable observations are dropped silently; they are expected in
// FRED output, not a payload defect.
func cleanMacro(rec *domain.RawRecord) ([]*domain.MacroPoint, error) {
	var payload macroPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.SeriesData == nil {
		return nil, fmt.Errorf("%w: missing series_data", ErrMalformedPayload)
	}

	totals := make(map[string]float64)
	for _, series := range payload.SeriesData {
		for _, obs := range series.Observations {
			if obs.Value == fredMissingValue {
				continue
			}
			value, err := strconv.ParseFloat(obs.Value, 64)
			if err != nil {
				continue
			}
			if _, err := time.Parse("2006-01-02", obs.Date); err != nil {
				continue
			}
			totals[obs.Date] += value
		}
	}

	dates := make([]string, 0, len(totals))
	for date := range totals {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	points := make([]*domain.MacroPoint, 0, len(dates))
	for _, date := range dates {
		d, _ := time.ParseInLocation("2006-01-02", date, time.UTC)
		points = append(points, &domain.MacroPoint{
			CatalogKey: rec.CatalogKey,
			Date:       d,
			Value:      totals[date],
		})
	}

	return points, nil
}
