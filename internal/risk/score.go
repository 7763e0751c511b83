// Package risk turns one validated engagement record into a 0–8 risk
// score and a high/medium/low label. The mapping here is the single
// source of truth for both the top-risk ranking and the cohort risk
// distributions.
package risk

import (
	"time"

	"sentinel/internal/ingest"
)

// Label is the coarse risk classification derived from a score.
type Label string

const (
	High   Label = "high"
	Medium Label = "medium"
	Low    Label = "low"
)

// MaxScore is the highest total the four signal bands can sum to.
const MaxScore = 8

// Scored is a validated record plus its computed risk signals.
type Scored struct {
	ingest.Record
	DaysSince int
	Score     int
	Label     Label
	// Future marks a touchpoint dated after the as-of date; DaysSince
	// is clamped to zero for such records.
	Future bool
}

// DaysSince returns the whole days elapsed from touch to asOf. A
// negative span (touchpoint in the future) reports future=true with
// days clamped to zero.
func DaysSince(asOf, touch time.Time) (days int, future bool) {
	d := int(asOf.Sub(touch) / (24 * time.Hour))
	if d < 0 {
		return 0, true
	}
	return d, false
}

// Score sums the four signal bands, capped at MaxScore. Each band
// awards only its highest qualifying bucket.
func Score(daysSince, touchpoints int, attendance, satisfaction float64) int {
	score := 0

	switch {
	case daysSince > 30:
		score += 3
	case daysSince > 14:
		score += 2
	case daysSince > 7:
		score += 1
	}

	switch {
	case touchpoints == 0:
		score += 2
	case touchpoints == 1:
		score += 1
	}

	switch {
	case attendance < 0.6:
		score += 2
	case attendance < 0.8:
		score += 1
	}

	switch {
	case satisfaction < 3.0:
		score += 2
	case satisfaction < 4.0:
		score += 1
	}

	// The raw band sum can reach 9 when every signal is at its worst;
	// the score scale is defined as 0–8.
	if score > MaxScore {
		score = MaxScore
	}
	return score
}

// LabelFor maps a total score to its label: high at 6+, medium at 3+.
func LabelFor(score int) Label {
	switch {
	case score >= 6:
		return High
	case score >= 3:
		return Medium
	default:
		return Low
	}
}

// ScoreRecord computes the full scored view of rec against the as-of
// date. touch must be the parsed form of rec.LastTouchpoint.
func ScoreRecord(rec ingest.Record, touch, asOf time.Time) Scored {
	days, future := DaysSince(asOf, touch)
	score := Score(days, rec.Touchpoints30d, rec.AttendanceRate, rec.SatisfactionScore)
	return Scored{
		Record:    rec,
		DaysSince: days,
		Score:     score,
		Label:     LabelFor(score),
		Future:    future,
	}
}
