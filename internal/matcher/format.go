package matcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/divetag/internal/models"
)

// TimeLayout is the display layout for capture and dive times.
const TimeLayout = "2006-01-02 15:04:05"

// FormatDelta renders a signed duration as "+1h 20m 0s", "-5m 30s" or "+12s".
func FormatDelta(d time.Duration) string {
	total := int64(d / time.Second)
	sign := "+"
	if total < 0 {
		sign = "-"
		total = -total
	}
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%s%dh %dm %ds", sign, hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%s%dm %ds", sign, minutes, seconds)
	default:
		return fmt.Sprintf("%s%ds", sign, seconds)
	}
}

// FormatLocation renders a site position, or a placeholder when the site has none.
func FormatLocation(s *models.DiveSite) string {
	if !s.HasLocation() {
		return "No coordinates available"
	}
	return fmt.Sprintf("%.6f, %.6f", s.Location.Latitude, s.Location.Longitude)
}

// Describe renders a multi-line summary of m for verbose output.
func Describe(path string, m models.Match) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Media: %s\n", path)
	fmt.Fprintf(&b, "  Capture time: %s\n", m.CaptureTime.Format(TimeLayout))
	fmt.Fprintf(&b, "  Dive #%d: %s\n", m.Dive.Number, m.Dive.SiteName())
	fmt.Fprintf(&b, "  Dive time: %s\n", m.Dive.Start.Format(TimeLayout))
	fmt.Fprintf(&b, "  Duration: %d minutes\n", m.Dive.DurationMinutes)
	fmt.Fprintf(&b, "  Time difference: %s\n", FormatDelta(m.Delta))
	fmt.Fprintf(&b, "  Confidence: %s\n", m.Confidence)
	fmt.Fprintf(&b, "  GPS: %s", FormatLocation(m.Dive.Site))
	return b.String()
}
