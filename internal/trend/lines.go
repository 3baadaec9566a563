package trend

import (
	"math"
	"sort"
)

// Strength labels for a trend line.
const (
	StrengthStrong = "strong"
	StrengthWeak   = "weak"

	strongTouchCount = 3
)

// TrendLine is one fitted and extended line in output form.
type TrendLine struct {
	StartDate  string    `json:"start_date"`
	StartPrice float64   `json:"start_price"`
	BreakDate  string    `json:"break_date"`
	BreakPrice float64   `json:"break_price"`
	Direction  Direction `json:"type"`
	Period     Period    `json:"period"`
	Slope      float64   `json:"slope"`
	Touches    int       `json:"touches"`
	Strength   string    `json:"strength"`
}

// segment is a fitted line before grouping. Indices are absolute into
// the series.
type segment struct {
	startIdx   int
	breakIdx   int
	startPrice float64
	slope      float64
	direction  Direction
	period     Period
	touches    int
}

// generateLines fits one candidate line per usable anchor, then groups
// nearby same-direction lines and keeps the tightest of each group.
func generateLines(s *Series, anchors []Anchor, p Profile) []TrendLine {
	n := s.Len()
	if n == 0 {
		return nil
	}

	// Short anchors older than the recency threshold are stale; their
	// lines would have broken long ago.
	recentThreshold := s.Dates[0]
	if n > p.RecentDaysThreshold {
		recentThreshold = s.Dates[n-p.RecentDaysThreshold]
	}

	var raw []*segment
	for i, anchor := range anchors {
		if anchor.Period == Period2Month && anchor.Date.Before(recentThreshold) {
			continue
		}

		// Target: the next opposite-direction anchor of at least the
		// same priority. Short anchors take any opposite anchor.
		targetIdx := -1
		for j := i + 1; j < len(anchors); j++ {
			next := anchors[j]
			if next.Direction == anchor.Direction {
				continue
			}
			if anchor.Period == Period2Month || periodPriority(next.Period) >= periodPriority(anchor.Period) {
				targetIdx = next.Index
				break
			}
		}

		if seg := fitSegment(s, anchor, targetIdx, p); seg != nil {
			raw = append(raw, seg)
		}
	}
	if len(raw) == 0 {
		return nil
	}

	sort.SliceStable(raw, func(i, j int) bool { return raw[i].startIdx < raw[j].startIdx })

	var lines []TrendLine
	group := []*segment{raw[0]}
	for _, seg := range raw[1:] {
		prev := group[len(group)-1]
		gapDays := int(s.Dates[seg.startIdx].Sub(s.Dates[prev.startIdx]).Hours() / 24)

		threshold := p.GroupThresholdLong
		if seg.period == Period2Month {
			threshold = p.GroupThresholdShort
		}

		if gapDays < threshold && seg.direction == prev.direction {
			group = append(group, seg)
			continue
		}
		lines = append(lines, bestOfGroup(group).toLine(s))
		group = []*segment{seg}
	}
	lines = append(lines, bestOfGroup(group).toLine(s))

	return lines
}

// fitSegment builds one line from an anchor: a hull scan for the
// extreme per-step slope up to the target, sign and span validation,
// extension to the first close on the wrong side, and touch counting.
func fitSegment(s *Series, anchor Anchor, targetIdx int, p Profile) *segment {
	start := anchor.Index
	n := s.Len() - start
	if n < 5 {
		return nil
	}
	up := anchor.Direction == DirectionUp

	lows := s.BodyLows[start:]
	highs := s.BodyHighs[start:]
	closes := s.Closes[start:]
	atrs := s.ATR[start:]

	target := -1
	if targetIdx >= start {
		target = targetIdx - start
	} else if up {
		target = argmax(highs)
	} else {
		target = argmin(lows)
	}
	if target < 2 {
		target = n - 1
	}

	// Hull scan: the support line takes the minimum per-step slope from
	// the anchor low, resistance the maximum from the anchor high.
	bestIdx := -1
	var bestSlope float64
	scanEnd := target + 1
	if scanEnd > n {
		scanEnd = n
	}
	for i := 1; i < scanEnd; i++ {
		var slope float64
		if up {
			slope = (lows[i] - lows[0]) / float64(i)
		} else {
			slope = (highs[i] - highs[0]) / float64(i)
		}
		if bestIdx == -1 || (up && slope < bestSlope) || (!up && slope > bestSlope) {
			bestSlope = slope
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return nil
	}

	// Vic criterion: support rises, resistance falls.
	if up && bestSlope <= 0 {
		return nil
	}
	if !up && bestSlope >= 0 {
		return nil
	}

	minSpan := p.MinSpanLong
	switch anchor.Period {
	case Period2Month:
		minSpan = p.MinSpanShort
	case Period1Year:
		minSpan = p.MinSpanMid
	}
	if bestIdx < minSpan {
		return nil
	}

	startPrice := highs[0]
	if up {
		startPrice = lows[0]
	}

	breakIdx := n - 1
	for i := bestIdx + 1; i < n; i++ {
		linePrice := startPrice + bestSlope*float64(i)
		if up && closes[i] < linePrice || !up && closes[i] > linePrice {
			breakIdx = i
			break
		}
	}

	touches := 0
	for i := 0; i <= breakIdx; i++ {
		linePrice := startPrice + bestSlope*float64(i)
		barPrice := highs[i]
		if up {
			barPrice = lows[i]
		}
		tolerance := atrs[i] * p.TouchATRMultiplier
		if atrs[i] <= 0 {
			tolerance = linePrice * p.FallbackTolerancePct
		}
		if math.Abs(barPrice-linePrice) <= tolerance {
			touches++
		}
	}

	return &segment{
		startIdx:   start,
		breakIdx:   start + breakIdx,
		startPrice: startPrice,
		slope:      bestSlope,
		direction:  anchor.Direction,
		period:     anchor.Period,
		touches:    touches,
	}
}

// bestOfGroup keeps the flattest support line or the steepest falling
// resistance line, i.e. the extreme slope of the group.
func bestOfGroup(group []*segment) *segment {
	best := group[0]
	for _, seg := range group[1:] {
		if best.direction == DirectionUp {
			if seg.slope < best.slope {
				best = seg
			}
		} else if seg.slope > best.slope {
			best = seg
		}
	}
	return best
}

func (seg *segment) toLine(s *Series) TrendLine {
	strength := StrengthWeak
	if seg.touches >= strongTouchCount {
		strength = StrengthStrong
	}
	return TrendLine{
		StartDate:  seg.startDate(s),
		StartPrice: seg.startPrice,
		BreakDate:  s.Dates[seg.breakIdx].Format("2006-01-02"),
		BreakPrice: s.Closes[seg.breakIdx],
		Direction:  seg.direction,
		Period:     seg.period,
		Slope:      seg.slope,
		Touches:    seg.touches,
		Strength:   strength,
	}
}

func (seg *segment) startDate(s *Series) string {
	return s.Dates[seg.startIdx].Format("2006-01-02")
}
