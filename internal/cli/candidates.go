package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/hyperjump/divetag/internal/matcher"
	"github.com/hyperjump/divetag/internal/models"
)

// MatchView is a ranked candidate list plus its non-interactive resolution.
type MatchView struct {
	CaptureTime time.Time       `json:"capture_time"`
	Candidates  []CandidateView `json:"candidates"`
	Resolved    *CandidateView  `json:"resolved"`
}

// CandidateView is the printable form of a models.Match.
type CandidateView struct {
	Dive         *models.Dive      `json:"dive"`
	Confidence   models.Confidence `json:"confidence"`
	DeltaSeconds int64             `json:"delta_seconds"`
	Delta        string            `json:"delta"`
}

// NewMatchView builds the view for ranked, with resolved possibly nil.
func NewMatchView(captureTime time.Time, ranked []models.Match, resolved *models.Match) *MatchView {
	v := &MatchView{CaptureTime: captureTime, Candidates: make([]CandidateView, 0, len(ranked))}
	for _, m := range ranked {
		v.Candidates = append(v.Candidates, candidateView(m))
	}
	if resolved != nil {
		c := candidateView(*resolved)
		v.Resolved = &c
	}
	return v
}

func candidateView(m models.Match) CandidateView {
	return CandidateView{
		Dive:         m.Dive,
		Confidence:   m.Confidence,
		DeltaSeconds: int64(m.Delta / time.Second),
		Delta:        matcher.FormatDelta(m.Delta),
	}
}

// WriteMatch writes v to w in the given format.
func WriteMatch(w io.Writer, v *MatchView, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, v)
	}
	fmt.Fprintf(w, "Capture time: %s\n", v.CaptureTime.Format(matcher.TimeLayout))
	if len(v.Candidates) == 0 {
		fmt.Fprintln(w, "No matching dive.")
		return nil
	}

	rows := make([][]string, 0, len(v.Candidates))
	for i, c := range v.Candidates {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(c.Dive.Number),
			c.Dive.SiteName(),
			c.Dive.Start.Format(matcher.TimeLayout),
			fmt.Sprintf("%d min", c.Dive.DurationMinutes),
			c.Confidence.String(),
			c.Delta,
			matcher.FormatLocation(c.Dive.Site),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Dive", "Site", "Start", "Duration", "Confidence", "Delta", "GPS"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
	))

	if v.Resolved != nil {
		fmt.Fprintf(w, "Resolved: Dive #%d - %s (%s)\n",
			v.Resolved.Dive.Number, v.Resolved.Dive.SiteName(), v.Resolved.Confidence)
	} else {
		fmt.Fprintf(w, "Ambiguous: %d candidates, run tag interactively to choose.\n", len(v.Candidates))
	}
	return nil
}
