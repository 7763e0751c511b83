// Package store persists finished reports into Postgres for the
// downstream sync. It consumes report JSON only; it plays no role in
// computing a report.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sentinel/internal/ingest"
	"sentinel/internal/logging"
	"sentinel/internal/report"
)

// Schema is the Postgres schema all sentinel tables live in.
const Schema = "cohort_health_sentinel"

// Store wraps a pgx connection pool for report persistence.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres. An empty dsn falls back to the libpq
// environment variables (PGHOST, PGPORT, PGUSER, PGPASSWORD,
// PGDATABASE), matching how the sync has always been configured.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// schemaStatements creates the sync tables when absent and upgrades
// older installations column by column. Every statement is idempotent.
func schemaStatements() []string {
	return []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, Schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.runs (
			id SERIAL PRIMARY KEY,
			reference_date DATE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			source_label TEXT,
			alert_threshold NUMERIC(6, 3) NOT NULL,
			min_cohort_size INTEGER NOT NULL,
			cohort_sort TEXT NOT NULL DEFAULT 'risk',
			cohort_filter TEXT,
			valid_count INTEGER NOT NULL,
			invalid_count INTEGER NOT NULL,
			invalid_columns INTEGER NOT NULL DEFAULT 0,
			invalid_numeric INTEGER NOT NULL DEFAULT 0,
			invalid_date_format INTEGER NOT NULL DEFAULT 0,
			invalid_range INTEGER NOT NULL DEFAULT 0,
			clamped_values INTEGER NOT NULL DEFAULT 0,
			missing_ids INTEGER NOT NULL,
			missing_dates INTEGER NOT NULL,
			future_dates INTEGER NOT NULL DEFAULT 0,
			risk_high INTEGER NOT NULL DEFAULT 0,
			risk_medium INTEGER NOT NULL DEFAULT 0,
			risk_low INTEGER NOT NULL DEFAULT 0
		)`, Schema),
		fmt.Sprintf(`ALTER TABLE %s.runs ADD COLUMN IF NOT EXISTS future_dates INTEGER NOT NULL DEFAULT 0`, Schema),
		fmt.Sprintf(`ALTER TABLE %s.runs ADD COLUMN IF NOT EXISTS invalid_columns INTEGER NOT NULL DEFAULT 0`, Schema),
		fmt.Sprintf(`ALTER TABLE %s.runs ADD COLUMN IF NOT EXISTS invalid_numeric INTEGER NOT NULL DEFAULT 0`, Schema),
		fmt.Sprintf(`ALTER TABLE %s.runs ADD COLUMN IF NOT EXISTS invalid_date_format INTEGER NOT NULL DEFAULT 0`, Schema),
		fmt.Sprintf(`ALTER TABLE %s.runs ADD COLUMN IF NOT EXISTS invalid_range INTEGER NOT NULL DEFAULT 0`, Schema),
		fmt.Sprintf(`ALTER TABLE %s.runs ADD COLUMN IF NOT EXISTS clamped_values INTEGER NOT NULL DEFAULT 0`, Schema),
		fmt.Sprintf(`ALTER TABLE %s.runs ADD COLUMN IF NOT EXISTS cohort_sort TEXT NOT NULL DEFAULT 'risk'`, Schema),
		fmt.Sprintf(`ALTER TABLE %s.runs ADD COLUMN IF NOT EXISTS cohort_filter TEXT`, Schema),
		fmt.Sprintf(`ALTER TABLE %s.runs ADD COLUMN IF NOT EXISTS source_label TEXT`, Schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.top_risks (
			id SERIAL PRIMARY KEY,
			run_id INTEGER NOT NULL REFERENCES %s.runs(id) ON DELETE CASCADE,
			scholar_id TEXT NOT NULL,
			cohort TEXT NOT NULL,
			score INTEGER NOT NULL,
			days_since INTEGER NOT NULL,
			touchpoints_30d INTEGER NOT NULL,
			attendance_rate NUMERIC(5, 3) NOT NULL,
			satisfaction_score NUMERIC(5, 2) NOT NULL
		)`, Schema, Schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.cohort_metrics (
			id SERIAL PRIMARY KEY,
			run_id INTEGER NOT NULL REFERENCES %s.runs(id) ON DELETE CASCADE,
			cohort TEXT NOT NULL,
			count INTEGER NOT NULL,
			high INTEGER NOT NULL,
			medium INTEGER NOT NULL,
			low INTEGER NOT NULL,
			high_share NUMERIC(6, 3) NOT NULL DEFAULT 0,
			risk_index NUMERIC(6, 3) NOT NULL DEFAULT 0,
			avg_touchpoints_30d NUMERIC(6, 3) NOT NULL,
			avg_attendance NUMERIC(6, 3) NOT NULL,
			avg_satisfaction NUMERIC(6, 3) NOT NULL,
			avg_days_since NUMERIC(8, 3) NOT NULL
		)`, Schema, Schema),
		fmt.Sprintf(`ALTER TABLE %s.cohort_metrics ADD COLUMN IF NOT EXISTS high_share NUMERIC(6, 3) NOT NULL DEFAULT 0`, Schema),
		fmt.Sprintf(`ALTER TABLE %s.cohort_metrics ADD COLUMN IF NOT EXISTS risk_index NUMERIC(6, 3) NOT NULL DEFAULT 0`, Schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.cohort_alerts (
			id SERIAL PRIMARY KEY,
			run_id INTEGER NOT NULL REFERENCES %s.runs(id) ON DELETE CASCADE,
			cohort TEXT NOT NULL,
			high_share NUMERIC(6, 3) NOT NULL,
			risk_index NUMERIC(6, 3) NOT NULL DEFAULT 0,
			count INTEGER NOT NULL,
			high INTEGER NOT NULL,
			medium INTEGER NOT NULL,
			low INTEGER NOT NULL,
			avg_days_since NUMERIC(8, 3) NOT NULL,
			avg_attendance NUMERIC(6, 3) NOT NULL,
			avg_satisfaction NUMERIC(6, 3) NOT NULL
		)`, Schema, Schema),
		fmt.Sprintf(`ALTER TABLE %s.cohort_alerts ADD COLUMN IF NOT EXISTS risk_index NUMERIC(6, 3) NOT NULL DEFAULT 0`, Schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON %s.runs(created_at)`, Schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_top_risks_run ON %s.top_risks(run_id)`, Schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_cohort_metrics_run ON %s.cohort_metrics(run_id)`, Schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_cohort_alerts_run ON %s.cohort_alerts(run_id)`, Schema),
	}
}

// EnsureSchema creates or upgrades the sync schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements() {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// InsertReport writes one report and its child rows inside a single
// transaction and returns the new run id.
func (s *Store) InsertReport(ctx context.Context, rep *report.Report, sourceLabel string) (int64, error) {
	log := logging.New("store")

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	refDate := referenceDate(rep.ReferenceDate, time.Now())
	var cohortFilter *string
	if len(rep.CohortFilter) > 0 {
		joined := strings.Join(rep.CohortFilter, ",")
		cohortFilter = &joined
	}

	var runID int64
	err = tx.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s.runs
		  (reference_date, source_label, alert_threshold, min_cohort_size,
		   cohort_sort, cohort_filter, valid_count, invalid_count,
		   invalid_columns, invalid_numeric, invalid_date_format, invalid_range,
		   clamped_values, missing_ids, missing_dates, future_dates,
		   risk_high, risk_medium, risk_low)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id`, Schema),
		refDate, sourceLabel, rep.AlertThreshold, rep.MinCohortSize,
		rep.CohortSort, cohortFilter, rep.Records.Valid, rep.Records.Invalid,
		rep.InvalidBreakdown.Columns, rep.InvalidBreakdown.Numeric,
		rep.InvalidBreakdown.DateFormat, rep.InvalidBreakdown.Range,
		rep.ClampedValues, rep.Missing.IDs, rep.Missing.Dates,
		rep.DateAnomalies.FutureDates,
		rep.RiskMix.High, rep.RiskMix.Medium, rep.RiskMix.Low,
	).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, e := range rep.TopRisks {
		batch.Queue(fmt.Sprintf(`
			INSERT INTO %s.top_risks
			  (run_id, scholar_id, cohort, score, days_since, touchpoints_30d,
			   attendance_rate, satisfaction_score)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, Schema),
			runID, e.ID, e.Cohort, e.Score, e.DaysSince, e.Touchpoints30d,
			e.AttendanceRate, e.SatisfactionScore)
	}
	for _, e := range rep.Cohorts {
		batch.Queue(fmt.Sprintf(`
			INSERT INTO %s.cohort_metrics
			  (run_id, cohort, count, high, medium, low, high_share, risk_index,
			   avg_touchpoints_30d, avg_attendance, avg_satisfaction, avg_days_since)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`, Schema),
			runID, e.Cohort, e.Count, e.High, e.Medium, e.Low, e.HighShare,
			e.RiskIndex, e.AvgTouchpoints, e.AvgAttendance, e.AvgSatisfaction,
			e.AvgDaysSince)
	}
	for _, e := range rep.Alerts {
		batch.Queue(fmt.Sprintf(`
			INSERT INTO %s.cohort_alerts
			  (run_id, cohort, high_share, risk_index, count, high, medium, low,
			   avg_days_since, avg_attendance, avg_satisfaction)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, Schema),
			runID, e.Cohort, e.HighShare, e.RiskIndex, e.Count, e.High,
			e.Medium, e.Low, e.AvgDaysSince, e.AvgAttendance, e.AvgSatisfaction)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return 0, fmt.Errorf("insert report rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	log.Debug("report synced", "run_id", runID,
		"top_risks", len(rep.TopRisks), "cohorts", len(rep.Cohorts),
		"alerts", len(rep.Alerts))
	return runID, nil
}

// referenceDate maps a report's reference_date text to a nullable DATE
// value. Older reports wrote the literal "today"; that resolves to the
// sync time's date. Unparsable text stores NULL rather than failing
// the sync.
func referenceDate(raw string, now time.Time) *time.Time {
	if raw == "" {
		return nil
	}
	if raw == "today" {
		// Use the calendar date of now, not a 24h truncation: for
		// non-UTC zones those differ around midnight.
		d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return &d
	}
	t, err := ingest.ParseDate(raw)
	if err != nil {
		return nil
	}
	return &t
}
