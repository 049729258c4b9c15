package metadata

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/divetag/internal/models"
)

func writeTestJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatal(err)
	}
}

func TestJPEGWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reef.jpg")
	writeTestJPEG(t, path)
	want := models.Coordinates{Latitude: -8.2751, Longitude: 115.5938}

	if err := (JPEGWriter{}).WriteGPS(context.Background(), path, want); err != nil {
		t.Fatalf("WriteGPS: %v", err)
	}

	for _, reader := range []Backend{GoExif{}, RawScan{}} {
		got, err := reader.ReadGPS(context.Background(), path)
		if err != nil {
			t.Fatalf("%s ReadGPS: %v", reader.Name(), err)
		}
		if math.Abs(got.Latitude-want.Latitude) > arcMillisecond || math.Abs(got.Longitude-want.Longitude) > arcMillisecond {
			t.Errorf("%s read %+v, want %+v", reader.Name(), got, want)
		}
	}

	// A second write replaces the position instead of failing on the existing IFD.
	moved := models.Coordinates{Latitude: 21.5, Longitude: -86.75}
	if err := (JPEGWriter{}).WriteGPS(context.Background(), path, moved); err != nil {
		t.Fatalf("second WriteGPS: %v", err)
	}
	got, err := (GoExif{}).ReadGPS(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got.Latitude-moved.Latitude) > arcMillisecond || math.Abs(got.Longitude-moved.Longitude) > arcMillisecond {
		t.Errorf("after rewrite read %+v, want %+v", got, moved)
	}
}

func TestJPEGWriter_KeepsUnreadableExif(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	writeTestJPEG(t, path)
	plain, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	// An APP1 Exif block whose first IFD offset points past its end.
	payload := append([]byte("Exif\x00\x00II*\x00"), 0x00, 0x10, 0x00, 0x00)
	payload = append(payload, make([]byte, 8)...)
	var seg bytes.Buffer
	seg.Write([]byte{0xFF, 0xE1})
	binary.Write(&seg, binary.BigEndian, uint16(len(payload)+2))
	seg.Write(payload)
	broken := append(append(append([]byte{}, plain[:2]...), seg.Bytes()...), plain[2:]...)
	if err := os.WriteFile(path, broken, 0644); err != nil {
		t.Fatal(err)
	}

	err = (JPEGWriter{}).WriteGPS(context.Background(), path, models.Coordinates{Latitude: 1, Longitude: 2})
	if err == nil {
		t.Fatal("expected an error for an unreadable Exif block")
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(after, broken) {
		t.Error("file was rewritten despite the unreadable Exif block")
	}
}

func TestJPEGWriter_RejectsOtherContainers(t *testing.T) {
	err := (JPEGWriter{}).WriteGPS(context.Background(), "scan.tif", models.Coordinates{})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if _, err := (JPEGWriter{}).ReadCaptureTime(context.Background(), "a.jpg"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestBaselineReaders_NoExif(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.jpg")
	writeTestJPEG(t, path)
	for _, reader := range []Backend{GoExif{}, RawScan{}} {
		if _, err := reader.ReadCaptureTime(context.Background(), path); err == nil {
			t.Errorf("%s: expected an error for a JPEG without EXIF", reader.Name())
		}
	}
}
