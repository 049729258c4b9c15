package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/divetag/internal/matcher"
	"github.com/hyperjump/divetag/internal/models"
	"github.com/hyperjump/divetag/internal/sidecar"
)

// Inspection is what divetag can read about one media file and its sidecar.
type Inspection struct {
	Path        string                `json:"path"`
	Metadata    models.MetadataRecord `json:"metadata"`
	SidecarPath string                `json:"sidecar_path"`
	Sidecar     *SidecarView          `json:"sidecar,omitempty"`
	SidecarErr  string                `json:"sidecar_error,omitempty"`
}

// SidecarView is the JSON form of sidecar.Document.
type SidecarView struct {
	Keywords    []string            `json:"keywords"`
	Location    *models.Coordinates `json:"location,omitempty"`
	CaptureTime *time.Time          `json:"capture_time,omitempty"`
}

// NewSidecarView converts a loaded sidecar document.
func NewSidecarView(doc *sidecar.Document) *SidecarView {
	if doc == nil {
		return nil
	}
	kw := doc.Keywords
	if kw == nil {
		kw = []string{}
	}
	return &SidecarView{Keywords: kw, Location: doc.Location, CaptureTime: doc.CaptureTime}
}

// WriteInspections writes the results of inspect.
func WriteInspections(w io.Writer, list []*Inspection, format OutputFormat) error {
	if format == OutputJSON {
		if list == nil {
			list = []*Inspection{}
		}
		return writeJSON(w, list)
	}
	for i, in := range list {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Media: %s\n", in.Path)
		fmt.Fprintf(w, "  Capture time: %s\n", formatTimePtr(in.Metadata.CaptureTime))
		if in.Metadata.Source != "" {
			fmt.Fprintf(w, "  Read by: %s\n", in.Metadata.Source)
		}
		fmt.Fprintf(w, "  GPS: %s\n", formatCoords(in.Metadata.Location))
		switch {
		case in.SidecarErr != "":
			fmt.Fprintf(w, "  Sidecar: %s (%s)\n", in.SidecarPath, in.SidecarErr)
		case in.Sidecar == nil:
			fmt.Fprintln(w, "  Sidecar: none")
		default:
			fmt.Fprintf(w, "  Sidecar: %s\n", in.SidecarPath)
			fmt.Fprintf(w, "    Keywords: %s\n", strings.Join(in.Sidecar.Keywords, ", "))
			fmt.Fprintf(w, "    GPS: %s\n", formatCoords(in.Sidecar.Location))
			fmt.Fprintf(w, "    Capture time: %s\n", formatTimePtr(in.Sidecar.CaptureTime))
		}
	}
	return nil
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format(matcher.TimeLayout)
}

func formatCoords(c *models.Coordinates) string {
	if c == nil {
		return "none"
	}
	return fmt.Sprintf("%.6f, %.6f", c.Latitude, c.Longitude)
}
