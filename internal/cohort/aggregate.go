// Package cohort folds scored records into per-cohort running
// statistics and evaluates the threshold alerts derived from them.
// Cohort names are compared byte-exact: case-sensitive, no
// normalization beyond the trim the validator already applied.
package cohort

import (
	"sort"

	"sentinel/internal/risk"
)

// Filter is an optional cohort allow-list. An empty filter admits
// every cohort.
type Filter map[string]struct{}

// NewFilter builds a Filter from cohort names. Nil or empty input
// yields the admit-everything filter.
func NewFilter(names []string) Filter {
	if len(names) == 0 {
		return nil
	}
	f := make(Filter, len(names))
	for _, n := range names {
		f[n] = struct{}{}
	}
	return f
}

// Admits reports whether the named cohort passes the allow-list.
func (f Filter) Admits(name string) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[name]
	return ok
}

// accumulator holds the running sums for one cohort.
type accumulator struct {
	count, high, medium, low int
	touchpointsSum           int
	attendanceSum            float64
	satisfactionSum          float64
	daysSinceSum             float64
}

// Table maps cohort names to their accumulators. It grows with the
// input; there is no cap on distinct cohorts.
type Table struct {
	accs map[string]*accumulator
}

// NewTable returns an empty aggregation table.
func NewTable() *Table {
	return &Table{accs: make(map[string]*accumulator)}
}

// Add folds one scored record into its cohort's accumulator, creating
// the accumulator on first sight of the cohort.
func (t *Table) Add(s risk.Scored) {
	acc := t.accs[s.Cohort]
	if acc == nil {
		acc = &accumulator{}
		t.accs[s.Cohort] = acc
	}
	acc.count++
	switch s.Label {
	case risk.High:
		acc.high++
	case risk.Medium:
		acc.medium++
	default:
		acc.low++
	}
	acc.touchpointsSum += s.Touchpoints30d
	acc.attendanceSum += s.AttendanceRate
	acc.satisfactionSum += s.SatisfactionScore
	acc.daysSinceSum += float64(s.DaysSince)
}

// Len returns the number of distinct cohorts seen so far.
func (t *Table) Len() int { return len(t.accs) }

// Summary is the finalized read-only view of one cohort.
type Summary struct {
	Cohort          string
	Count           int
	High            int
	Medium          int
	Low             int
	HighShare       float64
	RiskIndex       float64
	AvgTouchpoints  float64
	AvgAttendance   float64
	AvgSatisfaction float64
	AvgDaysSince    float64
}

// Summaries finalizes every accumulator. Accumulators exist only for
// cohorts that admitted at least one record, so count is always ≥ 1.
// Order is unspecified; the ranker owns presentation order.
func (t *Table) Summaries() []Summary {
	out := make([]Summary, 0, len(t.accs))
	for name, acc := range t.accs {
		n := float64(acc.count)
		out = append(out, Summary{
			Cohort:          name,
			Count:           acc.count,
			High:            acc.high,
			Medium:          acc.medium,
			Low:             acc.low,
			HighShare:       float64(acc.high) / n,
			RiskIndex:       float64(3*acc.high+2*acc.medium+acc.low) / n,
			AvgTouchpoints:  float64(acc.touchpointsSum) / n,
			AvgAttendance:   acc.attendanceSum / n,
			AvgSatisfaction: acc.satisfactionSum / n,
			AvgDaysSince:    acc.daysSinceSum / n,
		})
	}
	return out
}

// Alerts selects the cohorts whose high-risk share crosses the
// threshold, subject to the minimum cohort size, from the full
// pre-truncation summary set. The result is sorted by high share
// descending, then risk index descending, then cohort name ascending,
// and is never truncated.
func Alerts(summaries []Summary, threshold float64, minSize int) []Summary {
	var out []Summary
	for _, s := range summaries {
		if s.Count < minSize || s.HighShare < threshold {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.HighShare != b.HighShare {
			return a.HighShare > b.HighShare
		}
		if a.RiskIndex != b.RiskIndex {
			return a.RiskIndex > b.RiskIndex
		}
		return a.Cohort < b.Cohort
	})
	return out
}
