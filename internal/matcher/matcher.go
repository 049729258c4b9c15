package matcher

import (
	"sort"
	"time"

	"github.com/hyperjump/divetag/internal/models"
)

// Matcher ranks the dives of an index against capture times.
type Matcher struct {
	index  *DiveIndex
	policy Policy
}

// New returns a Matcher over index. Zero policy fields take their defaults.
func New(index *DiveIndex, policy Policy) *Matcher {
	if index == nil {
		index = NewIndex(nil)
	}
	return &Matcher{index: index, policy: policy.normalized()}
}

// Index returns the dive index the matcher ranks against.
func (m *Matcher) Index() *DiveIndex {
	return m.index
}

// Policy returns the effective policy.
func (m *Matcher) Policy() Policy {
	return m.policy
}

// Rank returns every candidate dive for captureTime, best first.
// Candidates sort by tier and then by distance to the dive start; equal keys keep
// index order.
func (m *Matcher) Rank(captureTime time.Time) []models.Match {
	var matches []models.Match
	for _, d := range m.index.dives {
		conf, ok := m.classify(captureTime, d)
		if !ok {
			continue
		}
		matches = append(matches, models.Match{
			Dive:        d,
			CaptureTime: captureTime,
			Confidence:  conf,
			Delta:       captureTime.Sub(d.Start),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence < matches[j].Confidence
		}
		return matches[i].AbsDelta() < matches[j].AbsDelta()
	})
	return matches
}

// classify returns the tier of d for t, or false when d is not a candidate.
// The near window is measured from the dive start only.
func (m *Matcher) classify(t time.Time, d *models.Dive) (models.Confidence, bool) {
	if !t.Before(d.Start) && !t.After(d.End()) {
		return models.ConfidenceWithinDive, true
	}
	delta := t.Sub(d.Start)
	if delta < 0 {
		delta = -delta
	}
	if delta <= m.policy.NearWindow {
		return models.ConfidenceNearDive, true
	}
	return 0, false
}
