package render

import (
	"encoding/json"
	"fmt"
	"os"

	"sentinel/internal/report"
)

// JSON serializes the report as an indented JSON document.
func JSON(rep *report.Report) ([]byte, error) {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteJSON writes the JSON document to path.
func WriteJSON(path string, rep *report.Report) error {
	data, err := JSON(rep)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write json report: %w", err)
	}
	return nil
}
