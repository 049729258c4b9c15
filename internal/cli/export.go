package cli

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/divetag/internal/matcher"
)

const (
	itemsSheet   = "Items"
	summarySheet = "Summary"
)

var itemHeaders = []interface{}{
	"Path", "Outcome", "Reason", "Capture time", "Dive", "Site",
	"Confidence", "GPS backend", "GPS written", "Sidecar written",
}

// ExportXLSX writes the item results of r to a workbook at path, with a second
// sheet holding the counts.
func ExportXLSX(path string, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", itemsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(itemsSheet, "A1", &itemHeaders); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(itemHeaders), 1)
	if err := f.SetCellStyle(itemsSheet, "A1", last, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, it := range r.Summary.Items {
		captured := ""
		if it.CaptureTime != nil {
			captured = it.CaptureTime.Format(matcher.TimeLayout)
		}
		var dive interface{}
		if it.DiveNumber != 0 {
			dive = it.DiveNumber
		}
		row := []interface{}{
			it.Path, it.Outcome.String(), it.Reason, captured, dive, it.SiteName,
			confidence(it.Confidence), it.GPSBackend, it.GPSWritten, it.SidecarWritten,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(itemsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	_ = f.SetColWidth(itemsSheet, "A", "A", 60)
	_ = f.SetColWidth(itemsSheet, "C", "C", 30)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}
	counts := [][]interface{}{
		{"Run", r.RunID},
		{"Dry run", r.DryRun},
		{"Total", r.Summary.Total},
		{"Processed", r.Summary.Processed},
		{"Skipped", r.Summary.Skipped},
		{"Errored", r.Summary.Errored},
	}
	for i, row := range counts {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
