// Package config assembles the run configuration for the report
// pipeline from CLI flags and an optional YAML file, and normalizes it
// into the options the pipeline consumes. Malformed values that cannot
// be normalized (as-of date, sort mode) are fatal; out-of-range
// numeric settings are coerced per policy instead.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"sentinel/internal/ingest"
	"sentinel/internal/rank"
	"sentinel/internal/report"
)

// Defaults for the report run.
const (
	DefaultTopLimit       = 10
	DefaultAlertThreshold = 0.30
	DefaultMinCohortSize  = 5
	DefaultCohortSort     = string(rank.ByRisk)
)

// Options is the raw run configuration, straight from flags (possibly
// overlaid by a config file). Resolve turns it into report.Options.
type Options struct {
	InputPath      string
	AsOf           string
	TopLimit       int
	CohortFilter   []string
	CohortSort     string
	CohortLimit    int // negative = show all
	AlertThreshold float64
	MinCohortSize  int
	ClampRanges    bool
}

// File mirrors Options for YAML config files. Pointer fields
// distinguish "absent" from zero so flags keep precedence over the
// file only when actually set.
type File struct {
	Input          *string   `yaml:"input"`
	AsOf           *string   `yaml:"as_of"`
	TopLimit       *int      `yaml:"top_limit"`
	CohortFilter   *[]string `yaml:"cohort_filter"`
	CohortSort     *string   `yaml:"cohort_sort"`
	CohortLimit    *int      `yaml:"cohort_limit"`
	AlertThreshold *float64  `yaml:"alert_threshold"`
	MinCohortSize  *int      `yaml:"min_cohort_size"`
	ClampRanges    *bool     `yaml:"clamp_ranges"`
}

// LoadFile reads and parses a YAML config file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return &f, nil
}

// MergeFile overlays file values onto o for every flag the user did
// not set explicitly. flagSet reports whether the named flag was
// changed on the command line.
func (o *Options) MergeFile(f *File, flagSet func(name string) bool) {
	if f == nil {
		return
	}
	if f.Input != nil && !flagSet("input") {
		o.InputPath = *f.Input
	}
	if f.AsOf != nil && !flagSet("as-of") {
		o.AsOf = *f.AsOf
	}
	if f.TopLimit != nil && !flagSet("limit") {
		o.TopLimit = *f.TopLimit
	}
	if f.CohortFilter != nil && !flagSet("cohort") {
		o.CohortFilter = *f.CohortFilter
	}
	if f.CohortSort != nil && !flagSet("cohort-sort") {
		o.CohortSort = *f.CohortSort
	}
	if f.CohortLimit != nil && !flagSet("cohort-limit") {
		o.CohortLimit = *f.CohortLimit
	}
	if f.AlertThreshold != nil && !flagSet("alert-threshold") {
		o.AlertThreshold = *f.AlertThreshold
	}
	if f.MinCohortSize != nil && !flagSet("min-cohort-size") {
		o.MinCohortSize = *f.MinCohortSize
	}
	if f.ClampRanges != nil && !flagSet("clamp-ranges") {
		o.ClampRanges = *f.ClampRanges
	}
}

// Resolve normalizes the raw options into pipeline options. now
// supplies the default reference date when --as-of is absent.
func (o Options) Resolve(now time.Time) (report.Options, error) {
	var out report.Options

	if o.AsOf == "" {
		out.AsOfLabel = now.Format("2006-01-02")
	} else {
		out.AsOfLabel = o.AsOf
	}
	asOf, err := ingest.ParseDate(out.AsOfLabel)
	if err != nil {
		return out, fmt.Errorf("invalid as-of date: %w", err)
	}
	out.AsOf = asOf

	mode, err := rank.ParseSortMode(o.CohortSort)
	if err != nil {
		return out, err
	}
	out.CohortSort = mode

	out.TopLimit = o.TopLimit
	if out.TopLimit < 0 {
		out.TopLimit = 0
	}

	out.AlertThreshold = o.AlertThreshold
	if out.AlertThreshold < 0 {
		out.AlertThreshold = 0
	}
	if out.AlertThreshold > 1 {
		out.AlertThreshold = 1
	}

	out.MinCohortSize = o.MinCohortSize
	if out.MinCohortSize < 1 {
		out.MinCohortSize = 1
	}

	if o.CohortLimit >= 0 {
		limit := o.CohortLimit
		out.CohortLimit = &limit
	}

	out.CohortFilter = o.CohortFilter
	out.ClampRanges = o.ClampRanges
	return out, nil
}
