// Package report describes the JSON report written by a batch run.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/AnyUserName/imgopt/internal/fsutil"
)

// New creates an empty report with defaults.
func New(c Constraint) *Report {
	return &Report{
		Version:     SupportedReportVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Constraint:  c,
		Assets:      make(map[string]Asset),
	}
}

// ComputeStats recalculates aggregate statistics from assets.
func (r *Report) ComputeStats() {
	var s Stats
	s.TotalAssets = len(r.Assets)
	for _, a := range r.Assets {
		s.TotalInputBytes += a.Original.Size
		switch {
		case a.Error != "":
			s.Errors++
		case a.Skipped:
			s.Skipped++
		case a.Passed:
			s.Passed++
		default:
			s.Failed++
		}
		if a.Output != nil {
			s.TotalOutputBytes += a.Output.Size
		} else {
			// Skipped and failed assets keep the original.
			s.TotalOutputBytes += a.Original.Size
		}
	}
	r.Stats = s
}

// WriteJSON serializes the report to a JSON file with stable ordering.
// The file is replaced atomically.
func WriteJSON(r *Report, path string) error {
	r.ComputeStats()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return fsutil.WriteFile(path, data, 0o644)
}

// Read loads a report from path.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &r, nil
}
