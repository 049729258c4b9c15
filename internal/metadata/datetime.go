package metadata

import (
	"fmt"
	"strings"
	"time"
)

var timestampLayouts = []string{
	"2006:01:02 15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006:01:02T15:04:05",
	"2006-01-02T15:04:05",
}

// baseLen is the length of a timestamp without fraction or zone.
const baseLen = len("2006:01:02 15:04:05")

// ParseTimestamp parses an EXIF-style timestamp. Fractional seconds and zone
// suffixes are dropped so the result is the recorded wall clock, in UTC.
// Empty and all-zero values return ErrNoData.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(strings.Trim(raw, "\x00"))
	if s == "" || strings.HasPrefix(s, "0000") {
		return time.Time{}, ErrNoData
	}
	s = stripZone(s)
	if len(s) > baseLen && s[baseLen] == '.' {
		s = s[:baseLen]
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func stripZone(s string) string {
	if len(s) <= baseLen {
		return s
	}
	if strings.HasSuffix(s, "Z") {
		return s[:len(s)-1]
	}
	// +hh:mm
	if n := len(s); n-6 >= baseLen && (s[n-6] == '+' || s[n-6] == '-') && s[n-3] == ':' {
		return s[:n-6]
	}
	// +hhmm
	if n := len(s); n-5 >= baseLen && (s[n-5] == '+' || s[n-5] == '-') && allDigits(s[n-4:]) {
		return s[:n-5]
	}
	return s
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
