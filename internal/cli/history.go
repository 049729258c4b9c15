package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/hyperjump/divetag/internal/matcher"
	"github.com/hyperjump/divetag/internal/models"
	"github.com/hyperjump/divetag/pkg/utils"
)

const rootColumnWidth = 40

// WriteRuns writes a list of ledger runs, newest first.
func WriteRuns(w io.Writer, runs []*models.Run, format OutputFormat) error {
	if format == OutputJSON {
		if runs == nil {
			runs = []*models.Run{}
		}
		return writeJSON(w, map[string]any{"runs": runs})
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		finished := "running"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Local().Format(matcher.TimeLayout)
		}
		mode := ""
		if r.DryRun {
			mode = "dry run"
		}
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format(matcher.TimeLayout),
			finished,
			utils.TruncateLeft(r.MediaRoot, rootColumnWidth),
			mode,
			strconv.Itoa(r.Processed),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Errored),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Run", "Started", "Finished", "Media root", "Mode", "Processed", "Skipped", "Errored"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
	))
	return nil
}
