package sidecar

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatCoordinate renders v in the XMP "deg,MM.MMH" form with minutes to two
// decimals, e.g. "21,30.75S".
func FormatCoordinate(v float64, latitude bool) string {
	a := math.Abs(v)
	deg := int(a)
	minutes := strconv.FormatFloat((a-float64(deg))*60, 'f', 2, 64)
	if minutes == "60.00" {
		deg++
		minutes = "0.00"
	}
	return fmt.Sprintf("%d,%s%s", deg, minutes, hemisphere(v, latitude))
}

func hemisphere(v float64, latitude bool) string {
	switch {
	case latitude && v < 0:
		return "S"
	case latitude:
		return "N"
	case v < 0:
		return "W"
	default:
		return "E"
	}
}

// ParseCoordinate parses "deg,MM.MMH" or "deg,MM,SSH" into signed decimal degrees.
func ParseCoordinate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid coordinate %q", s)
	}
	ref := strings.ToUpper(s[len(s)-1:])
	if !strings.Contains("NSEW", ref) {
		return 0, fmt.Errorf("invalid coordinate %q: missing hemisphere", s)
	}
	parts := strings.Split(s[:len(s)-1], ",")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid coordinate %q", s)
	}
	var v float64
	scale := 1.0
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid coordinate %q: %w", s, err)
		}
		v += f / scale
		scale *= 60
	}
	if ref == "S" || ref == "W" {
		v = -v
	}
	return v, nil
}

func parseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateTimeLayout, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid DateTimeOriginal %q", s)
}
