// Package models defines the dive, match and outcome types shared across divetag.
package models

import "time"

// Coordinates is a WGS84 position in decimal degrees. South and west are negative.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DiveSite is a named location from the dive log. Dives at the same site share one DiveSite.
type DiveSite struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Location *Coordinates `json:"location,omitempty"`
}

// HasLocation reports whether the site carries GPS coordinates.
func (s *DiveSite) HasLocation() bool {
	return s != nil && s.Location != nil
}

// Dive is a single logged dive. Start is a timezone-naive wall-clock time stored in UTC.
type Dive struct {
	Number          int       `json:"number"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	Site            *DiveSite `json:"site"`
	Tags            []string  `json:"tags,omitempty"`
}

// Duration returns the dive length.
func (d *Dive) Duration() time.Duration {
	return time.Duration(d.DurationMinutes) * time.Minute
}

// End returns the time the dive surfaced.
func (d *Dive) End() time.Time {
	return d.Start.Add(d.Duration())
}

// HasTag reports whether the dive carries tag exactly.
func (d *Dive) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SiteName returns the site's display name, or "Unknown Site" when the dive has none.
func (d *Dive) SiteName() string {
	if d.Site == nil || d.Site.Name == "" {
		return "Unknown Site"
	}
	return d.Site.Name
}
