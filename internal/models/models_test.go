package models

import (
	"testing"
	"time"
)

func TestConfidence_Ordering(t *testing.T) {
	if !(ConfidenceWithinDive < ConfidenceNearDive && ConfidenceNearDive < ConfidenceUncertain) {
		t.Fatal("confidence tiers must order within_dive < near_dive < uncertain")
	}
	for _, c := range []Confidence{ConfidenceWithinDive, ConfidenceNearDive, ConfidenceUncertain} {
		got, err := ParseConfidence(c.String())
		if err != nil {
			t.Fatal(err)
		}
		if got != c {
			t.Errorf("ParseConfidence(%q) = %v", c.String(), got)
		}
	}
	if _, err := ParseConfidence("maybe"); err == nil {
		t.Error("expected error for unknown tier")
	}
}

func TestDive_EndAndTags(t *testing.T) {
	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	d := &Dive{Number: 1, Start: start, DurationMinutes: 45, Tags: []string{"camera", "boat"}}
	if want := start.Add(45 * time.Minute); !d.End().Equal(want) {
		t.Errorf("End() = %v, want %v", d.End(), want)
	}
	if !d.HasTag("camera") || d.HasTag("Camera") {
		t.Error("HasTag should match exactly")
	}
	if d.SiteName() != "Unknown Site" {
		t.Errorf("SiteName() = %q", d.SiteName())
	}
}

func TestMatch_AbsDelta(t *testing.T) {
	m := Match{Delta: -90 * time.Minute}
	if m.AbsDelta() != 90*time.Minute {
		t.Errorf("AbsDelta() = %v", m.AbsDelta())
	}
}

func TestSummary_AddAndExitCode(t *testing.T) {
	s := NewSummary()
	s.Add(&ItemResult{Outcome: OutcomeProcessed})
	s.Add(&ItemResult{Outcome: OutcomeSkipped})
	if s.ExitCode() != 0 {
		t.Error("skips alone should not fail the run")
	}
	s.Add(&ItemResult{Outcome: OutcomeErrored})
	if s.Total != 3 || s.Processed != 1 || s.Skipped != 1 || s.Errored != 1 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.ExitCode() != 1 {
		t.Error("errored items should fail the run")
	}
}

func TestSummary_ObserveCapture(t *testing.T) {
	s := NewSummary()
	a := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	b := a.Add(-time.Hour)
	c := a.Add(time.Hour)
	s.ObserveCapture(a)
	s.ObserveCapture(b)
	s.ObserveCapture(c)
	if !s.FirstCapture.Equal(b) || !s.LastCapture.Equal(c) {
		t.Errorf("range = %v..%v", s.FirstCapture, s.LastCapture)
	}
}
