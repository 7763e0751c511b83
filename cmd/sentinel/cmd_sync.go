package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sentinel/internal/report"
	"sentinel/internal/store"
)

var syncFlags struct {
	jsonPath  string
	dsn       string
	source    string
	setupOnly bool
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load a JSON report into Postgres",
	Long: `Sync a previously written JSON report into the ` + store.Schema + `
Postgres schema (runs, top_risks, cohort_metrics, cohort_alerts).

The connection comes from --dsn, or from the standard libpq
environment variables (PGHOST, PGPORT, PGUSER, PGPASSWORD, PGDATABASE)
when --dsn is not given. The schema is created on first use.

  sentinel sync --json report.json
  sentinel sync --json report.json --source nightly
  sentinel sync --setup`,
	RunE: runSync,
}

func init() {
	f := syncCmd.Flags()
	f.StringVar(&syncFlags.jsonPath, "json", "", "Path to a JSON report file")
	f.StringVar(&syncFlags.dsn, "dsn", "", "Postgres connection string (default: PG* environment)")
	f.StringVar(&syncFlags.source, "source", "", "Source label stored with the run (default: JSON file name)")
	f.BoolVar(&syncFlags.setupOnly, "setup", false, "Create the schema and tables, sync nothing")
}

func runSync(cmd *cobra.Command, args []string) error {
	if !syncFlags.setupOnly && syncFlags.jsonPath == "" {
		return fmt.Errorf("a JSON report is required\n\nUsage: sentinel sync --json report.json")
	}

	ctx := cmd.Context()
	st, err := store.Open(ctx, syncFlags.dsn)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}
	if syncFlags.setupOnly && syncFlags.jsonPath == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Schema %q is ready\n", store.Schema)
		return nil
	}

	data, err := os.ReadFile(syncFlags.jsonPath)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return fmt.Errorf("parse report: %w", err)
	}

	source := syncFlags.source
	if source == "" {
		source = filepath.Base(syncFlags.jsonPath)
	}

	runID, err := st.InsertReport(ctx, &rep, source)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Synced run %d into schema %q\n", runID, store.Schema)
	return nil
}
