package models

import (
	"fmt"
	"time"
)

// Outcome is the terminal state of one media item in a batch.
type Outcome int

const (
	OutcomeProcessed Outcome = iota
	OutcomeSkipped
	OutcomeErrored
)

// String returns the outcome name used in logs, reports and the ledger.
func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeErrored:
		return "errored"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ParseOutcome parses an outcome name as produced by String.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "processed":
		return OutcomeProcessed, nil
	case "skipped":
		return OutcomeSkipped, nil
	case "errored":
		return OutcomeErrored, nil
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

// ItemResult describes what happened to one media item.
type ItemResult struct {
	Path           string      `json:"path"`
	MediaKey       string      `json:"media_key,omitempty"`
	Outcome        Outcome     `json:"outcome"`
	Reason         string      `json:"reason,omitempty"`
	CaptureTime    *time.Time  `json:"capture_time,omitempty"`
	DiveNumber     int         `json:"dive_number,omitempty"`
	SiteName       string      `json:"site_name,omitempty"`
	Confidence     *Confidence `json:"confidence,omitempty"`
	GPSBackend     string      `json:"gps_backend,omitempty"`
	GPSWritten     bool        `json:"gps_written"`
	SidecarWritten bool        `json:"sidecar_written"`
}

// Summary tallies a batch run.
type Summary struct {
	// RunID is the ledger ID of the run that produced the summary, if recorded.
	RunID     string `json:"run_id,omitempty"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Errored   int    `json:"errored"`
	// MatchedDives holds the numbers of dives that received at least one media match.
	MatchedDives map[int]bool `json:"matched_dives"`
	// FirstCapture and LastCapture bound the capture times seen in the batch.
	FirstCapture *time.Time    `json:"first_capture,omitempty"`
	LastCapture  *time.Time    `json:"last_capture,omitempty"`
	Items        []*ItemResult `json:"items"`
}

// NewSummary returns an empty summary.
func NewSummary() *Summary {
	return &Summary{MatchedDives: make(map[int]bool)}
}

// Add counts r and keeps it in Items.
func (s *Summary) Add(r *ItemResult) {
	s.Total++
	switch r.Outcome {
	case OutcomeProcessed:
		s.Processed++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeErrored:
		s.Errored++
	}
	s.Items = append(s.Items, r)
}

// ObserveCapture widens the observed capture range to include t.
func (s *Summary) ObserveCapture(t time.Time) {
	if s.FirstCapture == nil || t.Before(*s.FirstCapture) {
		first := t
		s.FirstCapture = &first
	}
	if s.LastCapture == nil || t.After(*s.LastCapture) {
		last := t
		s.LastCapture = &last
	}
}

// ExitCode is 1 when any item errored. Finding no matches is not an error.
func (s *Summary) ExitCode() int {
	if s.Errored > 0 {
		return 1
	}
	return 0
}

// Run is one recorded batch in the ledger.
type Run struct {
	ID         string     `json:"id"`
	MediaRoot  string     `json:"media_root"`
	DryRun     bool       `json:"dry_run"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Processed  int        `json:"processed"`
	Skipped    int        `json:"skipped"`
	Errored    int        `json:"errored"`
}
