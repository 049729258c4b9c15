package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/divetag/internal/models"
)

func TestWriteMatch(t *testing.T) {
	other := &models.Dive{Number: 8, Start: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), DurationMinutes: 40, Site: &models.DiveSite{Name: "Lagoon"}}
	captured := time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)
	ranked := []models.Match{
		{Dive: other, CaptureTime: captured, Confidence: models.ConfidenceNearDive, Delta: captured.Sub(other.Start)},
		{Dive: dive, CaptureTime: captured, Confidence: models.ConfidenceNearDive, Delta: captured.Sub(dive.Start)},
	}

	t.Run("ambiguous text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteMatch(&buf, NewMatchView(captured, ranked, nil), OutputText); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		for _, want := range []string{"2024-03-01 10:15:00", "Lagoon", "North Reef", "-45m 0s", "+1h 15m 0s", "No coordinates available", "Ambiguous: 2"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("resolved json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteMatch(&buf, NewMatchView(captured, ranked, &ranked[1]), OutputJSON); err != nil {
			t.Fatal(err)
		}
		var out MatchView
		if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
			t.Fatal(err)
		}
		if len(out.Candidates) != 2 || out.Resolved == nil || out.Resolved.Dive.Number != 7 {
			t.Fatalf("decoded = %+v", out)
		}
		if out.Resolved.DeltaSeconds != 4500 || out.Resolved.Delta != "+1h 15m 0s" {
			t.Errorf("resolved = %+v", out.Resolved)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteMatch(&buf, NewMatchView(captured, nil, nil), OutputText); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "No matching dive.") {
			t.Errorf("got %q", buf.String())
		}
	})
}

func TestWriteInspections(t *testing.T) {
	captured := time.Date(2024, 3, 1, 9, 20, 0, 0, time.UTC)
	list := []*Inspection{
		{
			Path:        "/photos/a.jpg",
			Metadata:    models.MetadataRecord{CaptureTime: &captured, Source: "goexif"},
			SidecarPath: "/photos/a.xmp",
			Sidecar:     &SidecarView{Keywords: []string{"North Reef"}, Location: reef.Location},
		},
		{Path: "/photos/b.mov", SidecarPath: "/photos/b.xmp"},
		{Path: "/photos/c.jpg", SidecarPath: "/photos/c.xmp", SidecarErr: "corrupt sidecar"},
	}
	var buf bytes.Buffer
	if err := WriteInspections(&buf, list, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Capture time: 2024-03-01 09:20:00", "Read by: goexif", "Keywords: North Reef",
		"GPS: 12.500000, -70.100000", "Capture time: unknown", "Sidecar: none", "corrupt sidecar",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := WriteInspections(&buf, list[:1], OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded []Inspection
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 || decoded[0].Sidecar == nil || decoded[0].Sidecar.Keywords[0] != "North Reef" {
		t.Errorf("decoded = %+v", decoded)
	}
}
