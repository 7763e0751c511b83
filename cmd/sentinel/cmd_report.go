package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sentinel/internal/config"
	"sentinel/internal/render"
	"sentinel/internal/report"
)

var reportFlags struct {
	configPath     string
	input          string
	asOf           string
	topLimit       int
	cohorts        []string
	cohortSort     string
	cohortLimit    int
	alertThreshold float64
	minCohortSize  int
	clampRanges    bool
	jsonPath       string
	cohortCSVPath  string
	alertCSVPath   string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build the retention-risk report from an engagement CSV",
	Long: `Read a scholar engagement CSV, score every valid record, aggregate
per cohort, and print the report. Optional surfaces of the same run:

  sentinel report --input engagement.csv
  sentinel report --input engagement.csv --json report.json
  sentinel report --input engagement.csv --cohort-csv cohorts.csv --alert-csv alerts.csv

The input needs a header row and six columns: scholar_id, cohort,
last_touchpoint_date (YYYY-MM-DD), touchpoints_last_30d,
attendance_rate, satisfaction_score. Defective rows are counted and
excluded; they never abort the run.`,
	RunE: runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.configPath, "config", "", "Optional YAML config file")
	f.StringVarP(&reportFlags.input, "input", "i", "", "CSV file with scholar engagement data")
	f.StringVar(&reportFlags.asOf, "as-of", "", "Reference date for recency calculations (YYYY-MM-DD, default today)")
	f.IntVar(&reportFlags.topLimit, "limit", config.DefaultTopLimit, "Number of top-risk entries shown")
	f.StringSliceVar(&reportFlags.cohorts, "cohort", nil, "Restrict the report to the named cohorts (exact match, repeatable)")
	f.StringVar(&reportFlags.cohortSort, "cohort-sort", config.DefaultCohortSort, "Cohort summary order (risk, high, name)")
	f.IntVar(&reportFlags.cohortLimit, "cohort-limit", -1, "Number of cohort summaries shown (negative = all)")
	f.Float64Var(&reportFlags.alertThreshold, "alert-threshold", config.DefaultAlertThreshold, "High-risk share that triggers a cohort alert")
	f.IntVar(&reportFlags.minCohortSize, "min-cohort-size", config.DefaultMinCohortSize, "Minimum cohort size for alerts")
	f.BoolVar(&reportFlags.clampRanges, "clamp-ranges", false, "Clamp out-of-range values to their bounds instead of rejecting the row")
	f.StringVar(&reportFlags.jsonPath, "json", "", "Write the JSON report to this file")
	f.StringVar(&reportFlags.cohortCSVPath, "cohort-csv", "", "Write the cohort summary CSV to this file")
	f.StringVar(&reportFlags.alertCSVPath, "alert-csv", "", "Write the alert CSV to this file")
}

func runReport(cmd *cobra.Command, args []string) error {
	opts := config.Options{
		InputPath:      reportFlags.input,
		AsOf:           reportFlags.asOf,
		TopLimit:       reportFlags.topLimit,
		CohortFilter:   reportFlags.cohorts,
		CohortSort:     reportFlags.cohortSort,
		CohortLimit:    reportFlags.cohortLimit,
		AlertThreshold: reportFlags.alertThreshold,
		MinCohortSize:  reportFlags.minCohortSize,
		ClampRanges:    reportFlags.clampRanges,
	}

	if reportFlags.configPath != "" {
		file, err := config.LoadFile(reportFlags.configPath)
		if err != nil {
			return err
		}
		opts.MergeFile(file, cmd.Flags().Changed)
	}

	if opts.InputPath == "" {
		return fmt.Errorf("input CSV is required\n\nUsage: sentinel report --input engagement.csv")
	}

	runOpts, err := opts.Resolve(time.Now())
	if err != nil {
		return err
	}

	in, err := os.Open(opts.InputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	rep, err := report.Build(in, runOpts)
	if err != nil {
		return err
	}

	if err := render.Text(cmd.OutOrStdout(), rep); err != nil {
		return err
	}

	return render.WriteSurfaces(rep, render.Surfaces{
		JSONPath:      reportFlags.jsonPath,
		CohortCSVPath: reportFlags.cohortCSVPath,
		AlertCSVPath:  reportFlags.alertCSVPath,
	})
}
