// Package report assembles the full retention-risk report for one run:
// validation tallies, risk mix, ranked top-risk list, ranked cohort
// summaries, and threshold alerts. A Report is built once per run and
// never mutated afterwards.
package report

import (
	"io"
	"time"

	"sentinel/internal/cohort"
	"sentinel/internal/ingest"
	"sentinel/internal/logging"
	"sentinel/internal/rank"
	"sentinel/internal/risk"
)

// Options carries the run configuration the pipeline consumes. It is
// produced by the config package; values here are already normalized.
type Options struct {
	AsOf time.Time
	// AsOfLabel is the YYYY-MM-DD text echoed as reference_date.
	AsOfLabel      string
	TopLimit       int
	CohortFilter   []string
	CohortSort     rank.SortMode
	CohortLimit    *int
	AlertThreshold float64
	MinCohortSize  int
	ClampRanges    bool
}

// RecordCounts splits rows into valid and invalid totals.
type RecordCounts struct {
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
}

// MissingCounts tallies rows with empty required identifier fields.
type MissingCounts struct {
	IDs   int `json:"ids"`
	Dates int `json:"dates"`
}

// InvalidBreakdown tallies rows per rejection kind. A row may appear
// under more than one kind but counts once toward RecordCounts.Invalid.
type InvalidBreakdown struct {
	Columns    int `json:"columns"`
	Numeric    int `json:"numeric"`
	DateFormat int `json:"date_format"`
	Range      int `json:"range"`
}

// DateAnomalies tallies non-fatal date oddities.
type DateAnomalies struct {
	FutureDates int `json:"future_dates"`
}

// RiskMix is the label distribution over valid admitted records.
type RiskMix struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// RiskEntry is one row of the top-risk list.
type RiskEntry struct {
	ID                string  `json:"id"`
	Cohort            string  `json:"cohort"`
	Score             int     `json:"score"`
	DaysSince         int     `json:"days_since"`
	Touchpoints30d    int     `json:"touchpoints_30d"`
	AttendanceRate    float64 `json:"attendance_rate"`
	SatisfactionScore float64 `json:"satisfaction_score"`
}

// CohortEntry is one row of the cohort summary list.
type CohortEntry struct {
	Cohort          string  `json:"cohort"`
	Count           int     `json:"count"`
	High            int     `json:"high"`
	Medium          int     `json:"medium"`
	Low             int     `json:"low"`
	HighShare       float64 `json:"high_share"`
	RiskIndex       float64 `json:"risk_index"`
	AvgTouchpoints  float64 `json:"avg_touchpoints_30d"`
	AvgAttendance   float64 `json:"avg_attendance"`
	AvgSatisfaction float64 `json:"avg_satisfaction"`
	AvgDaysSince    float64 `json:"avg_days_since"`
}

// AlertEntry is one cohort that crossed the alert threshold.
type AlertEntry struct {
	Cohort          string  `json:"cohort"`
	HighShare       float64 `json:"high_share"`
	RiskIndex       float64 `json:"risk_index"`
	Count           int     `json:"count"`
	High            int     `json:"high"`
	Medium          int     `json:"medium"`
	Low             int     `json:"low"`
	AvgDaysSince    float64 `json:"avg_days_since"`
	AvgAttendance   float64 `json:"avg_attendance"`
	AvgSatisfaction float64 `json:"avg_satisfaction"`
}

// Report is the root aggregate every output surface projects from.
type Report struct {
	ReferenceDate    string           `json:"reference_date"`
	Records          RecordCounts     `json:"records"`
	Missing          MissingCounts    `json:"missing"`
	InvalidBreakdown InvalidBreakdown `json:"invalid_breakdown"`
	DateAnomalies    DateAnomalies    `json:"date_anomalies"`
	ClampedValues    int              `json:"clamped_values"`
	RiskMix          RiskMix          `json:"risk_mix"`
	AlertThreshold   float64          `json:"alert_threshold"`
	MinCohortSize    int              `json:"min_cohort_size"`
	CohortSort       string           `json:"cohort_sort"`
	CohortTotal      int              `json:"cohort_total"`
	CohortLimit      *int             `json:"cohort_limit"`
	CohortFilter     []string         `json:"cohort_filter"`
	TopRisks         []RiskEntry      `json:"top_risks"`
	Cohorts          []CohortEntry    `json:"cohorts"`
	Alerts           []AlertEntry     `json:"alerts"`
}

// Build runs the whole pipeline over the CSV stream in r: validate
// each row, score the survivors, fold them into cohorts, rank, and
// evaluate alerts. It fails only when reading r fails; row defects are
// tallied, not fatal.
func Build(r io.Reader, opts Options) (*Report, error) {
	rows, err := ingest.ReadRows(r)
	if err != nil {
		return nil, err
	}
	return BuildFromRows(rows, opts), nil
}

// BuildFromRows is Build for rows already split from the source, header
// excluded.
func BuildFromRows(rows []string, opts Options) *Report {
	log := logging.New("pipeline")

	rep := &Report{
		ReferenceDate:  opts.AsOfLabel,
		AlertThreshold: opts.AlertThreshold,
		MinCohortSize:  opts.MinCohortSize,
		CohortSort:     string(opts.CohortSort),
		CohortLimit:    opts.CohortLimit,
		CohortFilter:   opts.CohortFilter,
		// The list fields are arrays on the JSON surface even when
		// empty, never null.
		TopRisks: []RiskEntry{},
		Cohorts:  []CohortEntry{},
		Alerts:   []AlertEntry{},
	}
	if rep.CohortFilter == nil {
		rep.CohortFilter = []string{}
	}

	filter := cohort.NewFilter(opts.CohortFilter)
	table := cohort.NewTable()
	var admitted []risk.Scored
	filtered := 0

	for _, row := range rows {
		o := ingest.ValidateRow(row, opts.ClampRanges)
		rep.ClampedValues += o.Clamped
		if o.MissingID {
			rep.Missing.IDs++
		}
		if o.MissingDate {
			rep.Missing.Dates++
		}

		valid := o.Valid
		var scored risk.Scored
		if valid {
			touch, err := ingest.ParseDate(o.Record.LastTouchpoint)
			if err != nil {
				o.Rejections.Add(ingest.RejectDateFormat)
				valid = false
			} else {
				scored = risk.ScoreRecord(o.Record, touch, opts.AsOf)
			}
		}

		if !valid {
			rep.Records.Invalid++
			tallyRejections(&rep.InvalidBreakdown, o.Rejections)
			continue
		}

		if !filter.Admits(scored.Cohort) {
			filtered++
			continue
		}

		if scored.Future {
			rep.DateAnomalies.FutureDates++
		}
		rep.Records.Valid++
		switch scored.Label {
		case risk.High:
			rep.RiskMix.High++
		case risk.Medium:
			rep.RiskMix.Medium++
		default:
			rep.RiskMix.Low++
		}

		table.Add(scored)
		admitted = append(admitted, scored)
	}

	summaries := table.Summaries()
	rep.CohortTotal = len(summaries)

	cohortLimit := -1
	if opts.CohortLimit != nil {
		cohortLimit = *opts.CohortLimit
	}
	for _, s := range rank.Cohorts(summaries, opts.CohortSort, cohortLimit) {
		rep.Cohorts = append(rep.Cohorts, cohortEntry(s))
	}
	for _, s := range rank.TopRisks(admitted, opts.TopLimit) {
		rep.TopRisks = append(rep.TopRisks, RiskEntry{
			ID:                s.ID,
			Cohort:            s.Cohort,
			Score:             s.Score,
			DaysSince:         s.DaysSince,
			Touchpoints30d:    s.Touchpoints30d,
			AttendanceRate:    s.AttendanceRate,
			SatisfactionScore: s.SatisfactionScore,
		})
	}
	for _, s := range cohort.Alerts(summaries, opts.AlertThreshold, opts.MinCohortSize) {
		rep.Alerts = append(rep.Alerts, AlertEntry{
			Cohort:          s.Cohort,
			HighShare:       s.HighShare,
			RiskIndex:       s.RiskIndex,
			Count:           s.Count,
			High:            s.High,
			Medium:          s.Medium,
			Low:             s.Low,
			AvgDaysSince:    s.AvgDaysSince,
			AvgAttendance:   s.AvgAttendance,
			AvgSatisfaction: s.AvgSatisfaction,
		})
	}

	log.Debug("report built",
		"rows", len(rows),
		"valid", rep.Records.Valid,
		"invalid", rep.Records.Invalid,
		"filtered", filtered,
		"cohorts", rep.CohortTotal,
		"alerts", len(rep.Alerts))

	return rep
}

func tallyRejections(b *InvalidBreakdown, set ingest.RejectionSet) {
	if set.Has(ingest.RejectColumns) {
		b.Columns++
	}
	if set.Has(ingest.RejectNumeric) {
		b.Numeric++
	}
	if set.Has(ingest.RejectDateFormat) {
		b.DateFormat++
	}
	if set.Has(ingest.RejectRange) {
		b.Range++
	}
}

func cohortEntry(s cohort.Summary) CohortEntry {
	return CohortEntry{
		Cohort:          s.Cohort,
		Count:           s.Count,
		High:            s.High,
		Medium:          s.Medium,
		Low:             s.Low,
		HighShare:       s.HighShare,
		RiskIndex:       s.RiskIndex,
		AvgTouchpoints:  s.AvgTouchpoints,
		AvgAttendance:   s.AvgAttendance,
		AvgSatisfaction: s.AvgSatisfaction,
		AvgDaysSince:    s.AvgDaysSince,
	}
}
