package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"sentinel/internal/rank"
)

const header = "scholar_id,cohort,last_touchpoint_date,touchpoints_last_30d,attendance_rate,satisfaction_score\n"

func defaultOpts() Options {
	return Options{
		AsOf:           time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		AsOfLabel:      "2026-02-01",
		TopLimit:       10,
		CohortSort:     rank.ByRisk,
		AlertThreshold: 0.30,
		MinCohortSize:  5,
	}
}

func build(t *testing.T, csv string, opts Options) *Report {
	t.Helper()
	rep, err := Build(strings.NewReader(csv), opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return rep
}

func TestBuild_CountsAndMix(t *testing.T) {
	csv := header +
		"S-1,Alpha,2025-12-01,0,0.3,1.5\n" + // 62 days: score 8, high
		"S-2,Alpha,2026-01-25,4,0.9,4.5\n" + // 7 days: score 0, low
		"S-3,Beta,2026-01-12,1,0.7,3.5\n" + // 20 days: 2+1+1+1=5, medium
		"S-4,Beta,2026-01-30,bad,0.9,4.5\n" + // numeric reject
		"S-5,Beta\n" + // columns reject
		"S-6,Gamma,2026-99-01,2,0.9,4.5\n" // date_format reject

	rep := build(t, csv, defaultOpts())

	if rep.Records.Valid != 3 {
		t.Errorf("valid = %d, want 3", rep.Records.Valid)
	}
	if rep.Records.Invalid != 3 {
		t.Errorf("invalid = %d, want 3", rep.Records.Invalid)
	}
	wantBreakdown := InvalidBreakdown{Columns: 1, Numeric: 1, DateFormat: 1}
	if diff := cmp.Diff(wantBreakdown, rep.InvalidBreakdown); diff != "" {
		t.Errorf("breakdown mismatch (-want +got):\n%s", diff)
	}
	wantMix := RiskMix{High: 1, Medium: 1, Low: 1}
	if diff := cmp.Diff(wantMix, rep.RiskMix); diff != "" {
		t.Errorf("risk mix mismatch (-want +got):\n%s", diff)
	}
	if rep.ReferenceDate != "2026-02-01" {
		t.Errorf("reference date = %q", rep.ReferenceDate)
	}
}

func TestBuild_CohortsSumToValid(t *testing.T) {
	csv := header +
		"S-1,Alpha,2026-01-01,0,0.4,2.0\n" +
		"S-2,Alpha,2026-01-20,2,0.9,4.5\n" +
		"S-3,Beta,2026-01-15,1,0.7,3.2\n" +
		"S-4,Gamma,2025-11-01,0,0.2,1.0\n" +
		"S-5,,2026-01-10,x,0.7,3.0\n" // missing nothing fatal but numeric reject

	rep := build(t, csv, defaultOpts())

	sum := 0
	for _, c := range rep.Cohorts {
		sum += c.Count
	}
	if sum != rep.Records.Valid {
		t.Errorf("cohort counts sum %d != valid %d", sum, rep.Records.Valid)
	}
	if total := rep.RiskMix.High + rep.RiskMix.Medium + rep.RiskMix.Low; total != rep.Records.Valid {
		t.Errorf("risk mix sum %d != valid %d", total, rep.Records.Valid)
	}
	if rep.CohortTotal != len(rep.Cohorts) {
		t.Errorf("CohortTotal = %d, want %d", rep.CohortTotal, len(rep.Cohorts))
	}
}

func TestBuild_RangeScenario(t *testing.T) {
	csv := header + "S-9001,RangeTest,2026-01-10,-1,1.20,6.0\n"

	strict := build(t, csv, defaultOpts())
	if strict.Records.Valid != 0 || strict.Records.Invalid != 1 {
		t.Errorf("strict: records = %+v, want 0 valid / 1 invalid", strict.Records)
	}
	if strict.InvalidBreakdown.Range < 1 {
		t.Errorf("strict: range breakdown = %d, want >= 1", strict.InvalidBreakdown.Range)
	}
	if strict.ClampedValues != 0 {
		t.Errorf("strict: clamped = %d, want 0", strict.ClampedValues)
	}

	opts := defaultOpts()
	opts.ClampRanges = true
	clamped := build(t, csv, opts)
	if clamped.Records.Valid != 1 {
		t.Errorf("clamped: valid = %d, want 1", clamped.Records.Valid)
	}
	if clamped.InvalidBreakdown.Range != 0 {
		t.Errorf("clamped: range breakdown = %d, want 0", clamped.InvalidBreakdown.Range)
	}
	if clamped.ClampedValues < 1 {
		t.Errorf("clamped: clamped = %d, want >= 1", clamped.ClampedValues)
	}
}

func TestBuild_FutureDateScenario(t *testing.T) {
	csv := header + "S-1,Alpha,2026-03-01,5,0.95,4.8\n"

	rep := build(t, csv, defaultOpts())
	if rep.Records.Valid != 1 {
		t.Fatalf("valid = %d, want 1 (future date is not a defect)", rep.Records.Valid)
	}
	if rep.DateAnomalies.FutureDates != 1 {
		t.Errorf("future_dates = %d, want 1", rep.DateAnomalies.FutureDates)
	}
	if len(rep.TopRisks) != 1 || rep.TopRisks[0].DaysSince != 0 {
		t.Errorf("top risk days_since should be clamped to 0, got %+v", rep.TopRisks)
	}
}

func TestBuild_MissingCounters(t *testing.T) {
	csv := header +
		" ,Alpha,2026-01-10,1,0.8,4.0\n" +
		"S-2,Alpha, ,1,0.8,4.0\n" +
		" ,Beta, ,1,0.8,4.0\n"

	rep := build(t, csv, defaultOpts())
	if rep.Missing.IDs != 2 {
		t.Errorf("missing ids = %d, want 2", rep.Missing.IDs)
	}
	if rep.Missing.Dates != 2 {
		t.Errorf("missing dates = %d, want 2", rep.Missing.Dates)
	}
	// Each row counts once toward invalid even with two defects.
	if rep.Records.Invalid != 3 {
		t.Errorf("invalid = %d, want 3", rep.Records.Invalid)
	}
	// A missing date is not a date_format rejection.
	if rep.InvalidBreakdown.DateFormat != 0 {
		t.Errorf("date_format = %d, want 0", rep.InvalidBreakdown.DateFormat)
	}
}

func TestBuild_DateFormatOnlyForOtherwiseValidRows(t *testing.T) {
	// The date check runs after everything else; a row already dead on
	// a numeric field never registers date_format.
	csv := header + "S-1,Alpha,not-a-date,bad,0.8,4.0\n"
	rep := build(t, csv, defaultOpts())
	if rep.InvalidBreakdown.Numeric != 1 {
		t.Errorf("numeric = %d, want 1", rep.InvalidBreakdown.Numeric)
	}
	if rep.InvalidBreakdown.DateFormat != 0 {
		t.Errorf("date_format = %d, want 0", rep.InvalidBreakdown.DateFormat)
	}
	if rep.Records.Invalid != 1 {
		t.Errorf("invalid = %d, want 1", rep.Records.Invalid)
	}
}

func TestBuild_CohortFilter(t *testing.T) {
	csv := header +
		"S-1,Alpha,2026-01-01,0,0.4,2.0\n" +
		"S-2,Beta,2026-01-20,2,0.9,4.5\n" +
		"S-3,Beta,2026-01-15,1,0.7,3.2\n"

	opts := defaultOpts()
	opts.CohortFilter = []string{"Beta"}
	rep := build(t, csv, opts)

	if rep.Records.Valid != 2 {
		t.Errorf("valid = %d, want 2 (filtered rows excluded entirely)", rep.Records.Valid)
	}
	if len(rep.Cohorts) != 1 || rep.Cohorts[0].Cohort != "Beta" {
		t.Errorf("cohorts = %+v, want only Beta", rep.Cohorts)
	}
	for _, e := range rep.TopRisks {
		if e.Cohort != "Beta" {
			t.Errorf("top risk %q outside filter", e.ID)
		}
	}
	if diff := cmp.Diff([]string{"Beta"}, rep.CohortFilter); diff != "" {
		t.Errorf("filter echo mismatch:\n%s", diff)
	}
}

func TestBuild_AlertScenario(t *testing.T) {
	var b strings.Builder
	b.WriteString(header)
	// 3 high out of 8 in one cohort: high_share 0.375.
	for i := 0; i < 3; i++ {
		b.WriteString("S-h" + string(rune('0'+i)) + ",Edge,2025-11-01,0,0.3,1.5\n")
	}
	for i := 0; i < 5; i++ {
		b.WriteString("S-l" + string(rune('0'+i)) + ",Edge,2026-01-31,5,0.95,4.8\n")
	}

	opts := defaultOpts()
	opts.AlertThreshold = 0.35
	opts.MinCohortSize = 8
	rep := build(t, b.String(), opts)

	if len(rep.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(rep.Alerts))
	}
	if rep.Alerts[0].HighShare != 0.375 {
		t.Errorf("high_share = %v, want 0.375", rep.Alerts[0].HighShare)
	}

	opts.MinCohortSize = 9
	rep = build(t, b.String(), opts)
	if len(rep.Alerts) != 0 {
		t.Errorf("min size 9 should yield no alerts, got %d", len(rep.Alerts))
	}
}

func TestBuild_AlertsIgnoreCohortTruncation(t *testing.T) {
	csv := header +
		"S-1,Loud,2025-11-01,0,0.3,1.5\n" +
		"S-2,Quiet,2026-01-31,5,0.95,4.8\n"

	limit := 1
	opts := defaultOpts()
	opts.MinCohortSize = 1
	opts.AlertThreshold = 0.5
	opts.CohortLimit = &limit
	rep := build(t, csv, opts)

	if len(rep.Cohorts) != 1 {
		t.Fatalf("cohorts = %d, want 1 (truncated)", len(rep.Cohorts))
	}
	if rep.CohortTotal != 2 {
		t.Errorf("CohortTotal = %d, want 2", rep.CohortTotal)
	}
	// The alert evaluator sees the full pre-truncation set.
	if len(rep.Alerts) != 1 || rep.Alerts[0].Cohort != "Loud" {
		t.Errorf("alerts = %+v, want Loud", rep.Alerts)
	}
}

func TestBuild_TopLimit(t *testing.T) {
	csv := header +
		"S-1,A,2025-11-01,0,0.3,1.5\n" +
		"S-2,A,2025-11-02,0,0.3,1.5\n" +
		"S-3,A,2025-11-03,0,0.3,1.5\n"

	opts := defaultOpts()
	opts.TopLimit = 2
	rep := build(t, csv, opts)
	if len(rep.TopRisks) != 2 {
		t.Errorf("top risks = %d, want 2", len(rep.TopRisks))
	}

	opts.TopLimit = 0
	rep = build(t, csv, opts)
	if len(rep.TopRisks) != 0 {
		t.Errorf("top limit 0 should yield none, got %d", len(rep.TopRisks))
	}
}

func TestBuild_TopRiskOrdering(t *testing.T) {
	csv := header +
		"S-b,A,2025-11-01,0,0.3,1.5\n" +
		"S-a,A,2025-11-01,0,0.3,1.5\n" +
		"S-c,A,2026-01-31,5,0.95,4.8\n"

	rep := build(t, csv, defaultOpts())
	var got []string
	for _, e := range rep.TopRisks {
		got = append(got, e.ID)
	}
	if diff := cmp.Diff([]string{"S-a", "S-b", "S-c"}, got); diff != "" {
		t.Errorf("top risk order (-want +got):\n%s", diff)
	}
	for i := 1; i < len(rep.TopRisks); i++ {
		prev, cur := rep.TopRisks[i-1], rep.TopRisks[i]
		if prev.Score < cur.Score ||
			(prev.Score == cur.Score && prev.DaysSince < cur.DaysSince) {
			t.Errorf("entry %d out of order: %+v before %+v", i, prev, cur)
		}
	}
}

func TestBuild_EmptyInputListsAreArrays(t *testing.T) {
	rep := build(t, header, defaultOpts())

	if rep.TopRisks == nil || rep.Cohorts == nil || rep.Alerts == nil || rep.CohortFilter == nil {
		t.Fatalf("list fields must be non-nil: %+v", rep)
	}

	out, err := json.Marshal(rep)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{
		`"top_risks":[]`,
		`"cohorts":[]`,
		`"alerts":[]`,
		`"cohort_filter":[]`,
	} {
		if !strings.Contains(string(out), want) {
			t.Errorf("JSON missing %s:\n%s", want, out)
		}
	}
}

func TestBuild_TruncatedListsAreArrays(t *testing.T) {
	csv := header + "S-1,Alpha,2026-01-25,4,0.9,4.5\n"

	opts := defaultOpts()
	opts.TopLimit = 0
	zero := 0
	opts.CohortLimit = &zero
	rep := build(t, csv, opts)

	out, err := json.Marshal(rep)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"top_risks":[]`, `"cohorts":[]`} {
		if !strings.Contains(string(out), want) {
			t.Errorf("JSON missing %s:\n%s", want, out)
		}
	}
}
