package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/hyperjump/divetag/internal/models"
	"github.com/hyperjump/divetag/internal/pipeline"
	"github.com/hyperjump/divetag/pkg/utils"
)

const reasonColumnWidth = 60

// Report is the outcome of one tag run as shown to the user.
type Report struct {
	RunID     string                  `json:"run_id,omitempty"`
	DryRun    bool                    `json:"dry_run"`
	CameraTag string                  `json:"camera_tag,omitempty"`
	Summary   *models.Summary         `json:"summary"`
	Warnings  pipeline.CameraWarnings `json:"camera_warnings"`
}

// WriteReport writes r to w in the given format. Verbose text output adds a
// per-item table.
func WriteReport(w io.Writer, r *Report, format OutputFormat, verbose bool) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	if verbose && len(r.Summary.Items) > 0 {
		fmt.Fprintln(w, itemsTable(r.Summary.Items))
	}
	writeSummaryText(w, r)
	writeWarningsText(w, r.Warnings, r.CameraTag)
	return nil
}

func writeSummaryText(w io.Writer, r *Report) {
	s := r.Summary
	prefix, verb := "", "Updated"
	if r.DryRun {
		prefix, verb = "DRY RUN ", "Would update"
	}
	fmt.Fprintf(w, "\n%sSUMMARY:\n", prefix)
	fmt.Fprintf(w, "  Total media files: %d\n", s.Total)
	fmt.Fprintf(w, "  %s: %d\n", verb, s.Processed)
	fmt.Fprintf(w, "  Skipped: %d\n", s.Skipped)
	if s.Errored > 0 {
		fmt.Fprintf(w, "  Errors: %d\n", s.Errored)
	}
	if r.RunID != "" {
		fmt.Fprintf(w, "  Run: %s\n", r.RunID)
	}
}

func writeWarningsText(w io.Writer, cw pipeline.CameraWarnings, tag string) {
	if cw.Empty() {
		return
	}
	fmt.Fprintln(w, "\nCAMERA TAG WARNINGS:")
	if len(cw.MatchedUntagged) > 0 {
		fmt.Fprintf(w, "\n  Dives with matched media but missing '%s' tag:\n", tag)
		for _, d := range cw.MatchedUntagged {
			fmt.Fprintf(w, "    • %s\n", diveLine(d))
		}
	}
	if len(cw.TaggedUnmatched) > 0 {
		fmt.Fprintf(w, "\n  Dives tagged with '%s' but no matching media:\n", tag)
		for _, d := range cw.TaggedUnmatched {
			fmt.Fprintf(w, "    • %s\n", diveLine(d))
		}
	}
}

func diveLine(d *models.Dive) string {
	return fmt.Sprintf("Dive #%d - %s (%s)", d.Number, d.SiteName(), d.Start.Format("2006-01-02"))
}

// WriteItems writes the item results of a run.
func WriteItems(w io.Writer, runID string, items []*models.ItemResult, format OutputFormat) error {
	if format == OutputJSON {
		if items == nil {
			items = []*models.ItemResult{}
		}
		return writeJSON(w, map[string]any{"run_id": runID, "items": items})
	}
	if len(items) == 0 {
		fmt.Fprintf(w, "Run %s has no items.\n", runID)
		return nil
	}
	fmt.Fprintln(w, itemsTable(items))
	return nil
}

func itemsTable(items []*models.ItemResult) string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			filepath.Base(it.Path),
			it.Outcome.String(),
			diveNumber(it.DiveNumber),
			it.SiteName,
			confidence(it.Confidence),
			yesNo(it.GPSWritten),
			yesNo(it.SidecarWritten),
			utils.Truncate(it.Reason, reasonColumnWidth),
		})
	}
	return renderTable(
		[]string{"File", "Outcome", "Dive", "Site", "Confidence", "GPS", "Sidecar", "Reason"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	)
}

func diveNumber(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func confidence(c *models.Confidence) string {
	if c == nil {
		return ""
	}
	return c.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
