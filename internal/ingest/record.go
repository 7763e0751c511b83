// Package ingest reads scholar engagement CSV rows and validates them
// into records the scoring pipeline can consume. Each input line maps
// to exactly one Outcome; defective rows are classified, never dropped
// silently.
package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// fieldCount is the expected number of CSV columns per row:
// scholar_id, cohort, last_touchpoint_date, touchpoints_last_30d,
// attendance_rate, satisfaction_score.
const fieldCount = 6

// Rejection identifies one recoverable per-row defect class.
type Rejection uint8

const (
	// RejectColumns marks a row with fewer than six fields.
	RejectColumns Rejection = 1 << iota
	// RejectNumeric marks a row with an unparsable numeric field.
	RejectNumeric
	// RejectDateFormat marks a row whose touchpoint date fails calendar rules.
	RejectDateFormat
	// RejectRange marks an out-of-range value while clamping is disabled.
	RejectRange
)

// RejectionSet accumulates the rejection kinds registered for one row.
// A row may register several kinds but counts once toward the invalid
// total.
type RejectionSet uint8

// Add registers a rejection kind.
func (s *RejectionSet) Add(r Rejection) { *s |= RejectionSet(r) }

// Has reports whether the kind was registered.
func (s RejectionSet) Has(r Rejection) bool { return s&RejectionSet(r) != 0 }

// Empty reports whether no kind was registered.
func (s RejectionSet) Empty() bool { return s == 0 }

// Record is one validated scholar engagement row. Field values are
// whitespace-trimmed; the touchpoint date stays textual until the
// as-of comparison needs it (ParseDate).
type Record struct {
	ID                string
	Cohort            string
	LastTouchpoint    string
	Touchpoints30d    int
	AttendanceRate    float64
	SatisfactionScore float64
}

// Outcome is the validator's verdict on a single row.
type Outcome struct {
	Record      Record
	Valid       bool
	MissingID   bool
	MissingDate bool
	Rejections  RejectionSet
	// Clamped counts values coerced to a range bound on this row.
	Clamped int
}

// ValidateRow splits one raw CSV line into a Record and classifies its
// defects. Rows with fewer than six comma-separated fields are
// rejected outright; extra fields beyond the sixth are ignored.
// When clampRanges is true, out-of-range numeric values are coerced to
// the nearest bound instead of rejecting the row.
//
// Date calendar checking is deliberately not done here: it is deferred
// to ParseDate so that rows already invalid for other reasons never
// register a date_format rejection.
func ValidateRow(line string, clampRanges bool) Outcome {
	var o Outcome

	parts := strings.Split(line, ",")
	if len(parts) < fieldCount {
		o.Rejections.Add(RejectColumns)
		return o
	}
	fields := parts[:fieldCount]
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	o.Valid = true
	o.Record.ID = fields[0]
	o.Record.Cohort = fields[1]
	o.Record.LastTouchpoint = fields[2]

	if o.Record.ID == "" {
		o.MissingID = true
		o.Valid = false
	}
	// A valid record always names a cohort; without one there is
	// nothing to aggregate the row into.
	if o.Record.Cohort == "" {
		o.Valid = false
	}
	if o.Record.LastTouchpoint == "" {
		o.MissingDate = true
		o.Valid = false
	}

	// Parse failure is exclusive of the range check per field: the
	// range check runs only when the value parsed.
	if n, err := strconv.Atoi(fields[3]); err != nil {
		o.Rejections.Add(RejectNumeric)
		o.Valid = false
	} else {
		o.Record.Touchpoints30d = o.checkIntRange(n, 0, clampRanges)
	}

	if v, err := strconv.ParseFloat(fields[4], 64); err != nil {
		o.Rejections.Add(RejectNumeric)
		o.Valid = false
	} else {
		o.Record.AttendanceRate = o.checkRange(v, 0, 1, clampRanges)
	}

	if v, err := strconv.ParseFloat(fields[5], 64); err != nil {
		o.Rejections.Add(RejectNumeric)
		o.Valid = false
	} else {
		o.Record.SatisfactionScore = o.checkRange(v, 1, 5, clampRanges)
	}

	return o
}

// checkRange enforces lo ≤ v ≤ hi, either by clamping or by rejecting.
func (o *Outcome) checkRange(v, lo, hi float64, clamp bool) float64 {
	if v >= lo && v <= hi {
		return v
	}
	if !clamp {
		o.Rejections.Add(RejectRange)
		o.Valid = false
		return v
	}
	o.Clamped++
	if v < lo {
		return lo
	}
	return hi
}

// checkIntRange enforces v ≥ lo for integer fields.
func (o *Outcome) checkIntRange(v, lo int, clamp bool) int {
	if v >= lo {
		return v
	}
	if !clamp {
		o.Rejections.Add(RejectRange)
		o.Valid = false
		return v
	}
	o.Clamped++
	return lo
}

// ParseDate parses a YYYY-MM-DD touchpoint date into midnight UTC.
// Calendar rules: year ≥ 1900, month 1–12, day 1–31. Out-of-month day
// overflow (e.g. February 31) normalizes forward, matching the
// behavior reports have always had.
func ParseDate(s string) (time.Time, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD", s)
		}
		nums[i] = n
	}
	y, m, d := nums[0], nums[1], nums[2]
	if y < 1900 || m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, fmt.Errorf("date %q: out of calendar range", s)
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), nil
}
