// Package rank produces the two deterministic orderings of the report:
// the global top-risk list and the cohort summary list. Sort modes are
// passed explicitly; nothing here keeps state between calls.
package rank

import (
	"fmt"
	"sort"

	"sentinel/internal/cohort"
	"sentinel/internal/risk"
)

// SortMode selects the cohort summary ordering.
type SortMode string

const (
	// ByRisk orders by risk index desc, high share desc, name asc.
	ByRisk SortMode = "risk"
	// ByHigh orders by high share desc, risk index desc, name asc.
	ByHigh SortMode = "high"
	// ByName orders by cohort name ascending.
	ByName SortMode = "name"
)

// ParseSortMode validates a sort mode argument.
func ParseSortMode(s string) (SortMode, error) {
	switch SortMode(s) {
	case ByRisk, ByHigh, ByName:
		return SortMode(s), nil
	}
	return "", fmt.Errorf("unknown cohort sort mode %q (available: risk, high, name)", s)
}

// TopRisks returns a new slice with all scored records ordered by risk
// score descending, days since touchpoint descending, then scholar id
// ascending, truncated to limit. A limit of zero yields an empty list.
func TopRisks(records []risk.Scored, limit int) []risk.Scored {
	out := make([]risk.Scored, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DaysSince != b.DaysSince {
			return a.DaysSince > b.DaysSince
		}
		return a.ID < b.ID
	})
	if limit < 0 {
		limit = 0
	}
	if limit < len(out) {
		out = out[:limit]
	}
	return out
}

// Cohorts returns a new slice of summaries ordered per mode and
// truncated to limit. A negative limit means no truncation.
func Cohorts(summaries []cohort.Summary, mode SortMode, limit int) []cohort.Summary {
	out := make([]cohort.Summary, len(summaries))
	copy(out, summaries)
	less := cohortLess(mode)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit >= 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// cohortLess builds the comparator for a sort mode. ByRisk is the
// fallback for anything unrecognized; callers are expected to have
// validated the mode via ParseSortMode.
func cohortLess(mode SortMode) func(a, b cohort.Summary) bool {
	switch mode {
	case ByName:
		return func(a, b cohort.Summary) bool { return a.Cohort < b.Cohort }
	case ByHigh:
		return func(a, b cohort.Summary) bool {
			if a.HighShare != b.HighShare {
				return a.HighShare > b.HighShare
			}
			if a.RiskIndex != b.RiskIndex {
				return a.RiskIndex > b.RiskIndex
			}
			return a.Cohort < b.Cohort
		}
	default:
		return func(a, b cohort.Summary) bool {
			if a.RiskIndex != b.RiskIndex {
				return a.RiskIndex > b.RiskIndex
			}
			if a.HighShare != b.HighShare {
				return a.HighShare > b.HighShare
			}
			return a.Cohort < b.Cohort
		}
	}
}
