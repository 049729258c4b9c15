package metadata

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"

	"github.com/hyperjump/divetag/internal/models"
	"github.com/hyperjump/divetag/pkg/utils"
)

// JPEGWriter rewrites the GPS IFD of a JPEG file in place without any
// external tool. It cannot read and rejects other containers.
type JPEGWriter struct{}

func (JPEGWriter) Name() string { return "jpegwriter" }

func (JPEGWriter) Supports(class FormatClass) bool {
	return class == FormatBaseline
}

func (JPEGWriter) ReadCaptureTime(context.Context, string) (time.Time, error) {
	return time.Time{}, ErrUnsupported
}

func (JPEGWriter) ReadGPS(context.Context, string) (models.Coordinates, error) {
	return models.Coordinates{}, ErrUnsupported
}

func (JPEGWriter) WriteGPS(ctx context.Context, path string, c models.Coordinates) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
	default:
		return ErrUnsupported
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	parsed, err := jpegstructure.NewJpegMediaParser().ParseFile(path)
	if err != nil {
		return fmt.Errorf("parse jpeg: %w", err)
	}
	sl, ok := parsed.(*jpegstructure.SegmentList)
	if !ok {
		return fmt.Errorf("parse jpeg: unexpected media context %T", parsed)
	}

	// A missing Exif segment yields a fresh builder. Any error here means the
	// existing block is unreadable, and rewriting it would drop its tags.
	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		return fmt.Errorf("existing exif: %w", err)
	}
	gpsIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/GPSInfo")
	if err != nil {
		return fmt.Errorf("gps ifd: %w", err)
	}

	lat, lon := ToDMS(c.Latitude), ToDMS(c.Longitude)
	values := []struct {
		name  string
		value interface{}
	}{
		{"GPSVersionID", []uint8{2, 2, 0, 0}},
		{"GPSLatitudeRef", HemisphereRef(c.Latitude, true)},
		{"GPSLatitude", exifRationals(lat)},
		{"GPSLongitudeRef", HemisphereRef(c.Longitude, false)},
		{"GPSLongitude", exifRationals(lon)},
	}
	for _, v := range values {
		if err := gpsIb.SetStandardWithName(v.name, v.value); err != nil {
			return fmt.Errorf("set %s: %w", v.name, err)
		}
	}

	if err := sl.SetExif(rootIb); err != nil {
		return fmt.Errorf("set exif: %w", err)
	}
	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, buf.Bytes(), info.Mode().Perm())
}

func exifRationals(d DMS) []exifcommon.Rational {
	parts := d.Rationals()
	out := make([]exifcommon.Rational, len(parts))
	for i, p := range parts {
		out[i] = exifcommon.Rational{Numerator: uint32(p.Num), Denominator: uint32(p.Den)}
	}
	return out
}
