// Package matcher ranks logged dives against media capture times and resolves
// ambiguous rankings to a single dive.
package matcher

import (
	"sort"
	"time"

	"github.com/hyperjump/divetag/internal/models"
)

// DiveIndex is an immutable view of dives sorted ascending by start time.
// Dives with equal start times keep their log order.
type DiveIndex struct {
	dives []*models.Dive
}

// NewIndex copies dives and sorts the copy by start time. Nil entries are dropped.
func NewIndex(dives []*models.Dive) *DiveIndex {
	sorted := make([]*models.Dive, 0, len(dives))
	for _, d := range dives {
		if d != nil {
			sorted = append(sorted, d)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})
	return &DiveIndex{dives: sorted}
}

// Len returns the number of dives in the index.
func (ix *DiveIndex) Len() int {
	return len(ix.dives)
}

// Dives returns a copy of the sorted dives.
func (ix *DiveIndex) Dives() []*models.Dive {
	return append([]*models.Dive(nil), ix.dives...)
}

// Between returns the dives whose start lies in [from, to].
func (ix *DiveIndex) Between(from, to time.Time) []*models.Dive {
	lo := sort.Search(len(ix.dives), func(i int) bool {
		return !ix.dives[i].Start.Before(from)
	})
	var out []*models.Dive
	for _, d := range ix.dives[lo:] {
		if d.Start.After(to) {
			break
		}
		out = append(out, d)
	}
	return out
}

// Lookup returns the dive with the given number.
func (ix *DiveIndex) Lookup(number int) (*models.Dive, bool) {
	for _, d := range ix.dives {
		if d.Number == number {
			return d, true
		}
	}
	return nil, false
}
