package pipeline

import (
	"github.com/hyperjump/divetag/internal/matcher"
	"github.com/hyperjump/divetag/internal/models"
)

// CameraWarnings lists disagreements between the dive log's camera tag and what
// was actually matched. Only dives starting inside the observed capture range
// are considered.
type CameraWarnings struct {
	// MatchedUntagged are dives that received media but lack the tag.
	MatchedUntagged []*models.Dive `json:"matched_untagged"`
	// TaggedUnmatched are dives carrying the tag that received no media.
	TaggedUnmatched []*models.Dive `json:"tagged_unmatched"`
}

// Empty reports whether there is nothing to warn about.
func (w CameraWarnings) Empty() bool {
	return len(w.MatchedUntagged) == 0 && len(w.TaggedUnmatched) == 0
}

// CheckCameraTags compares the camera tag on dives within the summary's capture
// range against the dives the run matched.
func CheckCameraTags(index *matcher.DiveIndex, summary *models.Summary, tag string) CameraWarnings {
	var w CameraWarnings
	if summary.FirstCapture == nil || summary.LastCapture == nil || tag == "" {
		return w
	}
	for _, d := range index.Between(*summary.FirstCapture, *summary.LastCapture) {
		matched := summary.MatchedDives[d.Number]
		tagged := d.HasTag(tag)
		switch {
		case matched && !tagged:
			w.MatchedUntagged = append(w.MatchedUntagged, d)
		case tagged && !matched:
			w.TaggedUnmatched = append(w.TaggedUnmatched, d)
		}
	}
	return w
}
