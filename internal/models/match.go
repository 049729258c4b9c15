package models

import (
	"fmt"
	"time"
)

// Confidence is the tier a candidate dive falls into for a capture time.
// Lower values rank first.
type Confidence int

const (
	// ConfidenceWithinDive means the capture time lies inside the dive window.
	ConfidenceWithinDive Confidence = iota
	// ConfidenceNearDive means the capture time is close to the dive start but outside the window.
	ConfidenceNearDive
	// ConfidenceUncertain is the weakest tier.
	ConfidenceUncertain
)

// String returns the canonical name of the tier.
func (c Confidence) String() string {
	switch c {
	case ConfidenceWithinDive:
		return "within_dive"
	case ConfidenceNearDive:
		return "near_dive"
	case ConfidenceUncertain:
		return "uncertain"
	default:
		return fmt.Sprintf("confidence(%d)", int(c))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Confidence) UnmarshalText(text []byte) error {
	parsed, err := ParseConfidence(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseConfidence parses a tier name as produced by String.
func ParseConfidence(s string) (Confidence, error) {
	switch s {
	case "within_dive":
		return ConfidenceWithinDive, nil
	case "near_dive":
		return ConfidenceNearDive, nil
	case "uncertain":
		return ConfidenceUncertain, nil
	}
	return 0, fmt.Errorf("unknown confidence %q", s)
}

// Match pairs a capture time with a candidate dive.
// Delta is the capture time minus the dive start.
type Match struct {
	Dive        *Dive         `json:"dive"`
	CaptureTime time.Time     `json:"capture_time"`
	Confidence  Confidence    `json:"confidence"`
	Delta       time.Duration `json:"delta"`
}

// AbsDelta returns the distance between the capture time and the dive start.
func (m Match) AbsDelta() time.Duration {
	if m.Delta < 0 {
		return -m.Delta
	}
	return m.Delta
}

// MetadataRecord is what a media file already says about itself.
type MetadataRecord struct {
	CaptureTime *time.Time   `json:"capture_time,omitempty"`
	Location    *Coordinates `json:"location,omitempty"`
	// Source names the backend that supplied the capture time.
	Source string `json:"source,omitempty"`
}
