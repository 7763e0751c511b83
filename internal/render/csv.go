package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"sentinel/internal/report"
)

// Header rows match the JSON field names in the same order.
var (
	cohortCSVHeader = []string{
		"cohort", "count", "high", "medium", "low", "high_share", "risk_index",
		"avg_touchpoints_30d", "avg_attendance", "avg_satisfaction", "avg_days_since",
	}
	alertCSVHeader = []string{
		"cohort", "high_share", "risk_index", "count", "high", "medium", "low",
		"avg_days_since", "avg_attendance", "avg_satisfaction",
	}
)

// CohortCSV writes the cohort summary table to w.
func CohortCSV(w io.Writer, rep *report.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(cohortCSVHeader); err != nil {
		return fmt.Errorf("write cohort csv: %w", err)
	}
	for _, e := range rep.Cohorts {
		row := []string{
			e.Cohort,
			strconv.Itoa(e.Count),
			strconv.Itoa(e.High),
			strconv.Itoa(e.Medium),
			strconv.Itoa(e.Low),
			formatFloat(e.HighShare),
			formatFloat(e.RiskIndex),
			formatFloat(e.AvgTouchpoints),
			formatFloat(e.AvgAttendance),
			formatFloat(e.AvgSatisfaction),
			formatFloat(e.AvgDaysSince),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write cohort csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write cohort csv: %w", err)
	}
	return nil
}

// AlertCSV writes the alert table to w.
func AlertCSV(w io.Writer, rep *report.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(alertCSVHeader); err != nil {
		return fmt.Errorf("write alert csv: %w", err)
	}
	for _, e := range rep.Alerts {
		row := []string{
			e.Cohort,
			formatFloat(e.HighShare),
			formatFloat(e.RiskIndex),
			strconv.Itoa(e.Count),
			strconv.Itoa(e.High),
			strconv.Itoa(e.Medium),
			strconv.Itoa(e.Low),
			formatFloat(e.AvgDaysSince),
			formatFloat(e.AvgAttendance),
			formatFloat(e.AvgSatisfaction),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write alert csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write alert csv: %w", err)
	}
	return nil
}

// WriteCohortCSV writes the cohort summary CSV to path.
func WriteCohortCSV(path string, rep *report.Report) error {
	return writeFile(path, rep, CohortCSV)
}

// WriteAlertCSV writes the alert CSV to path.
func WriteAlertCSV(path string, rep *report.Report) error {
	return writeFile(path, rep, AlertCSV)
}

func writeFile(path string, rep *report.Report, fn func(io.Writer, *report.Report) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f, rep); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// formatFloat renders a float without trailing zero padding so CSV
// values stay exact.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
