// Package integration runs the tagging pipeline end to end against real files,
// a real ledger and the built-in metadata backends.
package integration

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"

	"github.com/hyperjump/divetag/internal/config"
	"github.com/hyperjump/divetag/internal/divelog"
	"github.com/hyperjump/divetag/internal/matcher"
	"github.com/hyperjump/divetag/internal/metadata"
	"github.com/hyperjump/divetag/internal/models"
	"github.com/hyperjump/divetag/internal/pipeline"
	"github.com/hyperjump/divetag/internal/sidecar"
	"github.com/hyperjump/divetag/internal/storage"
	"github.com/hyperjump/divetag/internal/watcher"
)

const diveLog = `<divelog program="subsurface" version="3">
<divesites>
<site uuid="4a3b" name="Blue Hole" gps="17.315700 -87.534700"/>
</divesites>
<dives>
<trip date="2024-01-15" time="08:00:00">
<dive number="12" date="2024-01-15" time="09:00:00" duration="45:00 min" divesiteid="4a3b" tags="camera"/>
</trip>
</dives>
</divelog>
`

// writeExifJPEG writes a small JPEG whose EXIF carries DateTimeOriginal.
func writeExifJPEG(t *testing.T, path, taken string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 20, G: uint8(y * 30), B: 200, A: 255})
		}
	}
	var raw bytes.Buffer
	if err := jpeg.Encode(&raw, img, nil); err != nil {
		t.Fatal(err)
	}

	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		t.Fatal(err)
	}
	rootIb := exif.NewIfdBuilder(im, exif.NewTagIndex(), exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)
	exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/Exif")
	if err != nil {
		t.Fatal(err)
	}
	if err := exifIb.SetStandardWithName("DateTimeOriginal", taken); err != nil {
		t.Fatal(err)
	}

	parsed, err := jpegstructure.NewJpegMediaParser().ParseBytes(raw.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	sl := parsed.(*jpegstructure.SegmentList)
	if err := sl.SetExif(rootIb); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := sl.Write(f); err != nil {
		t.Fatal(err)
	}
}

func TestIntegration_Tag(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "media")
	if err := os.MkdirAll(media, 0755); err != nil {
		t.Fatal(err)
	}
	logPath := filepath.Join(dir, "log.ssrf")
	if err := os.WriteFile(logPath, []byte(diveLog), 0644); err != nil {
		t.Fatal(err)
	}
	writeExifJPEG(t, filepath.Join(media, "reef.jpg"), "2024:01:15 09:20:00")
	writeExifJPEG(t, filepath.Join(media, "topside.jpg"), "2024:01:20 16:00:00")

	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(dir, "ledger.db")
	cfg.ExifTool.Binary = "divetag-test-missing-exiftool"

	dives, err := divelog.NewParser().ParseFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	index := matcher.NewIndex(dives)
	m := matcher.New(index, matcher.Policy{NearWindow: cfg.Matching.NearWindow})

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	paths, err := watcher.ListMedia(media, watcher.Filter{Extensions: cfg.Media.Extensions()})
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("found %d media files, want 2", len(paths))
	}

	chain := metadata.NewDefaultChain(metadata.Options{ExifToolBinary: cfg.ExifTool.Binary})
	newRunner := func() *pipeline.Runner {
		return pipeline.NewRunner(chain, m,
			matcher.NewDisambiguator(matcher.SkipDecider),
			sidecar.NewMerger(),
			pipeline.WithLedger(store),
			pipeline.WithMediaRoot(media),
			pipeline.WithSkipProcessed(true),
		)
	}
	ctx := context.Background()

	summary, err := newRunner().Run(ctx, paths)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Processed != 1 || summary.Skipped != 1 || summary.Errored != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	reef := summary.Items[0]
	if reef.DiveNumber != 12 || !reef.GPSWritten || reef.GPSBackend != "jpegwriter" || !reef.SidecarWritten {
		t.Errorf("reef item = %+v", reef)
	}
	if summary.Items[1].Reason != pipeline.ReasonNoMatch {
		t.Errorf("topside reason = %q", summary.Items[1].Reason)
	}

	got, ok := chain.CurrentGPS(ctx, paths[0])
	if !ok {
		t.Fatal("GPS not readable after tagging")
	}
	if math.Abs(got.Latitude-17.3157) > 1e-4 || math.Abs(got.Longitude+87.5347) > 1e-4 {
		t.Errorf("GPS = %+v", got)
	}

	doc, err := sidecar.Load(sidecar.PathFor(paths[0]))
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Keywords) != 1 || doc.Keywords[0] != "Blue Hole" {
		t.Errorf("keywords = %v", doc.Keywords)
	}
	if doc.Location != nil {
		t.Errorf("GPS went into the file, sidecar should not carry it: %+v", doc.Location)
	}
	if doc.CaptureTime == nil || !doc.CaptureTime.Equal(time.Date(2024, 1, 15, 9, 20, 0, 0, time.UTC)) {
		t.Errorf("capture time = %v", doc.CaptureTime)
	}

	warnings := pipeline.CheckCameraTags(index, summary, cfg.Matching.CameraTag)
	if !warnings.Empty() {
		t.Errorf("warnings = %+v", warnings)
	}

	// Tagging rewrote reef.jpg; the ledger must still recognize it.
	again, err := newRunner().Run(ctx, paths)
	if err != nil {
		t.Fatal(err)
	}
	if again.Processed != 0 || again.Skipped != 2 || again.Items[0].Reason != pipeline.ReasonAlreadyProcessed {
		t.Errorf("second run = %+v", again)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[1].Processed != 1 {
		t.Errorf("runs = %+v", runs)
	}
	var outcomes []models.Outcome
	items, err := store.ItemsForRun(ctx, runs[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range items {
		outcomes = append(outcomes, it.Outcome)
	}
	if len(outcomes) != 2 || outcomes[0] != models.OutcomeProcessed {
		t.Errorf("first run outcomes = %v", outcomes)
	}
}
