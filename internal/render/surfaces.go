package render

import (
	"golang.org/x/sync/errgroup"

	"sentinel/internal/logging"
	"sentinel/internal/report"
)

// Surfaces names the optional file outputs of one run. Empty paths are
// skipped.
type Surfaces struct {
	JSONPath      string
	CohortCSVPath string
	AlertCSVPath  string
}

// WriteSurfaces emits the configured file surfaces from the same
// report. The surfaces are independent projections, so they are
// written concurrently; the first failure wins.
func WriteSurfaces(rep *report.Report, s Surfaces) error {
	log := logging.New("render")

	var g errgroup.Group
	if s.JSONPath != "" {
		g.Go(func() error {
			if err := WriteJSON(s.JSONPath, rep); err != nil {
				return err
			}
			log.Debug("json surface written", "path", s.JSONPath)
			return nil
		})
	}
	if s.CohortCSVPath != "" {
		g.Go(func() error {
			if err := WriteCohortCSV(s.CohortCSVPath, rep); err != nil {
				return err
			}
			log.Debug("cohort csv surface written", "path", s.CohortCSVPath)
			return nil
		})
	}
	if s.AlertCSVPath != "" {
		g.Go(func() error {
			if err := WriteAlertCSV(s.AlertCSVPath, rep); err != nil {
				return err
			}
			log.Debug("alert csv surface written", "path", s.AlertCSVPath)
			return nil
		})
	}
	return g.Wait()
}
