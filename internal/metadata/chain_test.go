package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hyperjump/divetag/internal/models"
)

type fakeBackend struct {
	name      string
	classes   []FormatClass
	capture   time.Time
	gps       *models.Coordinates
	readErr   error
	writeErr  error
	panics    bool
	reads     int
	writes    int
	lastWrite models.Coordinates
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Supports(class FormatClass) bool {
	for _, c := range f.classes {
		if c == class {
			return true
		}
	}
	return false
}

func (f *fakeBackend) ReadCaptureTime(context.Context, string) (time.Time, error) {
	f.reads++
	if f.panics {
		panic("corrupt maker note")
	}
	if f.readErr != nil {
		return time.Time{}, f.readErr
	}
	if f.capture.IsZero() {
		return time.Time{}, ErrNoData
	}
	return f.capture, nil
}

func (f *fakeBackend) ReadGPS(context.Context, string) (models.Coordinates, error) {
	f.reads++
	if f.gps == nil {
		return models.Coordinates{}, ErrNoData
	}
	return *f.gps, nil
}

func (f *fakeBackend) WriteGPS(_ context.Context, _ string, c models.Coordinates) error {
	f.writes++
	if f.panics {
		panic("bad segment")
	}
	f.lastWrite = c
	return f.writeErr
}

var allClasses = []FormatClass{FormatRAW, FormatBaseline, FormatVideo}

func TestChain_CaptureTimeFallsThrough(t *testing.T) {
	want := time.Date(2024, 1, 15, 9, 20, 0, 0, time.UTC)
	rich := &fakeBackend{name: "rich", classes: allClasses, readErr: errors.New("exit status 1")}
	baseline := &fakeBackend{name: "baseline", classes: allClasses}
	last := &fakeBackend{name: "last", classes: allClasses, capture: want}
	later := &fakeBackend{name: "later", classes: allClasses, capture: want.Add(time.Hour)}
	c := NewChain(WithReaders(FormatBaseline, rich, baseline, last, later))

	rec := c.Read(context.Background(), "a.jpg")
	if rec.CaptureTime == nil || !rec.CaptureTime.Equal(want) {
		t.Fatalf("capture time = %v", rec.CaptureTime)
	}
	if rec.Source != "last" {
		t.Errorf("source = %q", rec.Source)
	}
	// The later reader is only reached by the GPS lookup.
	if later.reads != 1 {
		t.Errorf("later reader consulted %d times", later.reads)
	}
}

func TestChain_ReaderPanicIsContained(t *testing.T) {
	want := time.Date(2024, 1, 15, 9, 20, 0, 0, time.UTC)
	bad := &fakeBackend{name: "bad", classes: allClasses, panics: true}
	good := &fakeBackend{name: "good", classes: allClasses, capture: want}
	c := NewChain(WithReaders(FormatRAW, bad, good))
	got, ok := c.CaptureTime(context.Background(), "a.cr3")
	if !ok || !got.Equal(want) {
		t.Fatalf("got %v, %v", got, ok)
	}
}

func TestChain_UnknownFormatHasNoReaders(t *testing.T) {
	b := &fakeBackend{name: "b", classes: allClasses, capture: time.Now()}
	c := NewChain(WithReaders(FormatBaseline, b))
	if _, ok := c.CaptureTime(context.Background(), "notes.txt"); ok {
		t.Error("expected no capture time for an unknown format")
	}
	if b.reads != 0 {
		t.Error("backend should not be consulted")
	}
}

func TestChain_CurrentGPS(t *testing.T) {
	pos := models.Coordinates{Latitude: -8.27, Longitude: 115.59}
	empty := &fakeBackend{name: "empty", classes: allClasses}
	has := &fakeBackend{name: "has", classes: allClasses, gps: &pos}
	c := NewChain(WithReaders(FormatVideo, empty, has))
	got, ok := c.CurrentGPS(context.Background(), "clip.mp4")
	if !ok || got != pos {
		t.Errorf("got %v, %v", got, ok)
	}
}

func TestChain_SetGPSShortCircuits(t *testing.T) {
	pos := models.Coordinates{Latitude: 21.5, Longitude: -86.75}
	first := &fakeBackend{name: "first", classes: allClasses}
	second := &fakeBackend{name: "second", classes: allClasses}
	c := NewChain(WithWriters(FormatBaseline, first, second))
	res := c.SetGPS(context.Background(), "a.jpg", pos)
	if !res.OK() || res.State != WriteSucceeded || res.Backend != "first" {
		t.Fatalf("result = %+v", res)
	}
	if second.writes != 0 {
		t.Error("second writer must not run after a success")
	}
	if first.lastWrite != pos {
		t.Errorf("wrote %v", first.lastWrite)
	}
}

func TestChain_SetGPSFallsThroughUnsupportedAndFailures(t *testing.T) {
	pos := models.Coordinates{Latitude: 1, Longitude: 2}
	videoOnly := &fakeBackend{name: "video-only", classes: []FormatClass{FormatVideo}}
	failing := &fakeBackend{name: "failing", classes: allClasses, writeErr: errors.New("read-only file")}
	panicking := &fakeBackend{name: "panicking", classes: allClasses, panics: true}
	ok := &fakeBackend{name: "ok", classes: allClasses}
	c := NewChain(WithWriters(FormatBaseline, videoOnly, failing, panicking, ok))

	res := c.SetGPS(context.Background(), "a.tif", pos)
	if !res.OK() || res.Backend != "ok" {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Attempts) != 3 {
		t.Fatalf("expected 3 failed attempts, got %+v", res.Attempts)
	}
	if !errors.Is(res.Attempts[0].Err, ErrUnsupported) {
		t.Errorf("unsuitable backend should record ErrUnsupported, got %v", res.Attempts[0].Err)
	}
	if videoOnly.writes != 0 {
		t.Error("unsuitable backend must not be asked to write")
	}
}

func TestChain_SetGPSAllFailed(t *testing.T) {
	failing := &fakeBackend{name: "failing", classes: allClasses, writeErr: ErrUnsupported}
	c := NewChain(WithWriters(FormatRAW, failing))
	res := c.SetGPS(context.Background(), "a.cr3", models.Coordinates{})
	if res.OK() || res.State != WriteAllFailed {
		t.Errorf("result = %+v", res)
	}

	empty := NewChain()
	res = empty.SetGPS(context.Background(), "a.cr3", models.Coordinates{})
	if res.State != WriteAllFailed {
		t.Errorf("no writers should end in all_failed, got %v", res.State)
	}
}

func TestChain_WithReadersDropsNil(t *testing.T) {
	var missing Backend
	c := NewChain(WithReaders(FormatVideo, missing), WithWriters(FormatBaseline, missing, JPEGWriter{}))
	if got := c.Readers(FormatVideo); len(got) != 0 {
		t.Errorf("Readers = %v", got)
	}
	if got := c.Writers(FormatBaseline); len(got) != 1 || got[0] != "jpegwriter" {
		t.Errorf("Writers = %v", got)
	}
}

func TestNewDefaultChain_withoutExifTool(t *testing.T) {
	c := NewDefaultChain(Options{ExifToolBinary: "/nonexistent/exiftool"})
	if got := c.Readers(FormatBaseline); len(got) != 2 || got[0] != "goexif" || got[1] != "rawscan" {
		t.Errorf("baseline readers = %v", got)
	}
	if got := c.Readers(FormatVideo); len(got) != 0 {
		t.Errorf("video readers = %v", got)
	}
	if got := c.Writers(FormatBaseline); len(got) != 1 || got[0] != "jpegwriter" {
		t.Errorf("baseline writers = %v", got)
	}
}
