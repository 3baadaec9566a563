package trend

import (
	"sort"
	"time"
)

// Direction of a trend line or its anchor. An up anchor is a local low a
// support line starts from; a down anchor is a local high a resistance
// line starts from.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Period classifies an anchor by the window that produced it.
type Period string

const (
	PeriodGlobal Period = "Global"
	Period3Year  Period = "3Year"
	Period1Year  Period = "1Year"
	Period2Month Period = "2Month"
)

func periodPriority(p Period) int {
	switch p {
	case PeriodGlobal:
		return 4
	case Period3Year:
		return 3
	case Period1Year:
		return 2
	case Period2Month:
		return 1
	}
	return 0
}

// periodForWindow maps a rolling window size in bars to its class.
func periodForWindow(w int) Period {
	switch {
	case w >= 700:
		return Period3Year
	case w >= 200:
		return Period1Year
	default:
		return Period2Month
	}
}

// Anchor is a candidate start point for a trend line.
type Anchor struct {
	Index     int
	Date      time.Time
	Direction Direction
	Period    Period
}

// identifyAnchors finds trend-line start candidates on the body range:
// the global extrema, centered rolling extrema per window class, and the
// trailing-window extremum when it is not already anchored. Anchors older
// than the age cutoff are dropped, and (date, direction) duplicates keep
// the higher-priority class. The result is ordered by date.
func identifyAnchors(s *Series, p Profile) []Anchor {
	n := s.Len()
	if n == 0 {
		return nil
	}

	var anchors []Anchor

	if i := argmax(s.BodyHighs); i >= 0 {
		anchors = append(anchors, Anchor{Index: i, Date: s.Dates[i], Direction: DirectionDown, Period: PeriodGlobal})
	}
	if i := argmin(s.BodyLows); i >= 0 {
		anchors = append(anchors, Anchor{Index: i, Date: s.Dates[i], Direction: DirectionUp, Period: PeriodGlobal})
	}

	for _, w := range p.AnchorWindows {
		period := periodForWindow(w)
		for _, i := range centeredRollingExtremes(s.BodyHighs, w, true) {
			anchors = append(anchors, Anchor{Index: i, Date: s.Dates[i], Direction: DirectionDown, Period: period})
		}
		for _, i := range centeredRollingExtremes(s.BodyLows, w, false) {
			anchors = append(anchors, Anchor{Index: i, Date: s.Dates[i], Direction: DirectionUp, Period: period})
		}
	}

	// Edge completion: the trailing window's extremum becomes a short
	// anchor unless that bar is already anchored in the same direction.
	if n > p.EdgeWindow {
		start := n - p.EdgeWindow
		hi := start + argmax(s.BodyHighs[start:])
		if !hasAnchorAt(anchors, s.Dates[hi], DirectionDown) {
			anchors = append(anchors, Anchor{Index: hi, Date: s.Dates[hi], Direction: DirectionDown, Period: Period2Month})
		}
		lo := start + argmin(s.BodyLows[start:])
		if !hasAnchorAt(anchors, s.Dates[lo], DirectionUp) {
			anchors = append(anchors, Anchor{Index: lo, Date: s.Dates[lo], Direction: DirectionUp, Period: Period2Month})
		}
	}

	cutoff := s.Dates[n-1].AddDate(0, 0, -p.MaxAnchorYears*365)
	filtered := anchors[:0]
	for _, a := range anchors {
		if !a.Date.Before(cutoff) {
			filtered = append(filtered, a)
		}
	}

	// Dedup by (date, direction), higher priority class winning.
	sort.SliceStable(filtered, func(i, j int) bool {
		return periodPriority(filtered[i].Period) < periodPriority(filtered[j].Period)
	})
	type key struct {
		date      time.Time
		direction Direction
	}
	unique := make(map[key]Anchor, len(filtered))
	for _, a := range filtered {
		unique[key{a.Date, a.Direction}] = a
	}

	out := make([]Anchor, 0, len(unique))
	for _, a := range unique {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Direction < out[j].Direction
	})
	return out
}

// centeredRollingExtremes returns the indices whose value equals the
// extremum of the centered window around them. Edge positions without a
// full window are excluded, matching a centered rolling extremum that
// yields no value there.
func centeredRollingExtremes(values []float64, w int, wantMax bool) []int {
	n := len(values)
	var out []int
	for i := 0; i < n; i++ {
		hi := i + w/2
		lo := hi - w + 1
		if lo < 0 || hi >= n {
			continue
		}
		ext := values[lo]
		for j := lo + 1; j <= hi; j++ {
			if wantMax && values[j] > ext || !wantMax && values[j] < ext {
				ext = values[j]
			}
		}
		if values[i] == ext {
			out = append(out, i)
		}
	}
	return out
}

func hasAnchorAt(anchors []Anchor, date time.Time, dir Direction) bool {
	for _, a := range anchors {
		if a.Direction == dir && a.Date.Equal(date) {
			return true
		}
	}
	return false
}

func argmax(values []float64) int {
	best := -1
	for i, v := range values {
		if best == -1 || v > values[best] {
			best = i
		}
	}
	return best
}

func argmin(values []float64) int {
	best := -1
	for i, v := range values {
		if best == -1 || v < values[best] {
			best = i
		}
	}
	return best
}
