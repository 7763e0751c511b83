// Package render projects a finished report onto its output surfaces:
// tabular text, a JSON document, and CSV files. Nothing here computes
// or reorders; ordering is owned by the ranking stage.
package render

import (
	"fmt"
	"io"
	"strings"

	"sentinel/internal/format"
	"sentinel/internal/report"
)

// Text writes the human-readable report to w.
func Text(w io.Writer, rep *report.Report) error {
	var b strings.Builder

	b.WriteString("Scholar Cohort Health Sentinel\n")
	fmt.Fprintf(&b, "Reference date: %s\n\n", rep.ReferenceDate)

	fmt.Fprintf(&b, "Records: %d valid, %d invalid\n", rep.Records.Valid, rep.Records.Invalid)
	fmt.Fprintf(&b, "Invalid breakdown: %d columns | %d numeric | %d date_format | %d range\n",
		rep.InvalidBreakdown.Columns, rep.InvalidBreakdown.Numeric,
		rep.InvalidBreakdown.DateFormat, rep.InvalidBreakdown.Range)
	fmt.Fprintf(&b, "Missing IDs: %d | Missing dates: %d\n", rep.Missing.IDs, rep.Missing.Dates)
	fmt.Fprintf(&b, "Clamped values: %d | Future-dated touchpoints: %d\n",
		rep.ClampedValues, rep.DateAnomalies.FutureDates)
	if len(rep.CohortFilter) > 0 {
		fmt.Fprintf(&b, "Cohort filter: %s\n", strings.Join(rep.CohortFilter, ", "))
	}
	fmt.Fprintf(&b, "Risk mix: %d high | %d medium | %d low\n\n",
		rep.RiskMix.High, rep.RiskMix.Medium, rep.RiskMix.Low)

	if len(rep.TopRisks) > 0 {
		fmt.Fprintf(&b, "Top %d risk entries\n", len(rep.TopRisks))
		b.WriteString(topRiskTable(rep.TopRisks))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Cohort summary (sort: %s, showing %d of %d)\n",
		rep.CohortSort, len(rep.Cohorts), rep.CohortTotal)
	b.WriteString(cohortTable(rep.Cohorts))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Cohort alerts (high-risk share >= %.2f, min size %d)\n",
		rep.AlertThreshold, rep.MinCohortSize)
	if len(rep.Alerts) == 0 {
		b.WriteString("None\n")
	} else {
		b.WriteString(alertTable(rep.Alerts))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func topRiskTable(entries []report.RiskEntry) string {
	t := format.NewTable()
	t.Header("ID", "Cohort", "Score", "Days", "Touch30", "Attend", "Satisfaction")
	t.Columns(
		format.ColumnConfig{Number: 3, Align: format.AlignRight},
		format.ColumnConfig{Number: 4, Align: format.AlignRight},
		format.ColumnConfig{Number: 5, Align: format.AlignRight},
		format.ColumnConfig{Number: 6, Align: format.AlignRight},
		format.ColumnConfig{Number: 7, Align: format.AlignRight},
	)
	for _, e := range entries {
		t.Row(e.ID, e.Cohort, e.Score, e.DaysSince, e.Touchpoints30d,
			fmt.Sprintf("%.2f", e.AttendanceRate),
			fmt.Sprintf("%.2f", e.SatisfactionScore))
	}
	return t.String()
}

func cohortTable(entries []report.CohortEntry) string {
	t := format.NewTable()
	t.Header("Cohort", "Count", "High", "Medium", "Low", "HighShare", "RiskIndex",
		"AvgTouch30", "AvgAttend", "AvgSatisfaction", "AvgDaysSince")
	for _, e := range entries {
		t.Row(e.Cohort, e.Count, e.High, e.Medium, e.Low,
			fmt.Sprintf("%.2f", e.HighShare),
			fmt.Sprintf("%.2f", e.RiskIndex),
			fmt.Sprintf("%.2f", e.AvgTouchpoints),
			fmt.Sprintf("%.2f", e.AvgAttendance),
			fmt.Sprintf("%.2f", e.AvgSatisfaction),
			fmt.Sprintf("%.1f", e.AvgDaysSince))
	}
	return t.String()
}

func alertTable(entries []report.AlertEntry) string {
	t := format.NewTable()
	t.Header("Cohort", "HighShare", "Count", "High", "Medium", "Low",
		"AvgDays", "AvgAttend", "AvgSatisfaction")
	for _, e := range entries {
		t.Row(e.Cohort,
			fmt.Sprintf("%.2f", e.HighShare),
			e.Count, e.High, e.Medium, e.Low,
			fmt.Sprintf("%.1f", e.AvgDaysSince),
			fmt.Sprintf("%.2f", e.AvgAttendance),
			fmt.Sprintf("%.2f", e.AvgSatisfaction))
	}
	return t.String()
}
