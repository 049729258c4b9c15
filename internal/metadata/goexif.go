package metadata

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hyperjump/divetag/internal/models"
	"github.com/rwcarlsen/goexif/exif"
)

var goexifTimeFields = []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized, exif.DateTime}

// GoExif reads baseline EXIF from JPEG and TIFF-structured files.
type GoExif struct {
	readOnly
}

func (GoExif) Name() string { return "goexif" }

func (GoExif) Supports(class FormatClass) bool {
	return class == FormatBaseline || class == FormatRAW
}

func (GoExif) ReadCaptureTime(_ context.Context, path string) (time.Time, error) {
	x, err := decodeGoExif(path)
	if err != nil {
		return time.Time{}, err
	}
	for _, field := range goexifTimeFields {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			continue
		}
		if t, err := ParseTimestamp(s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrNoData
}

func (GoExif) ReadGPS(_ context.Context, path string) (models.Coordinates, error) {
	x, err := decodeGoExif(path)
	if err != nil {
		return models.Coordinates{}, err
	}
	lat, err := goexifCoordinate(x, exif.GPSLatitude, exif.GPSLatitudeRef)
	if err != nil {
		return models.Coordinates{}, err
	}
	lon, err := goexifCoordinate(x, exif.GPSLongitude, exif.GPSLongitudeRef)
	if err != nil {
		return models.Coordinates{}, err
	}
	return models.Coordinates{Latitude: lat, Longitude: lon}, nil
}

func decodeGoExif(path string) (*exif.Exif, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	x, err := exif.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode exif: %w", err)
	}
	return x, nil
}

func goexifCoordinate(x *exif.Exif, valueField, refField exif.FieldName) (float64, error) {
	tag, err := x.Get(valueField)
	if err != nil {
		return 0, ErrNoData
	}
	parts := make([]Rational, 3)
	for i := range parts {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return 0, fmt.Errorf("%s component %d: %w", valueField, i, err)
		}
		parts[i] = Rational{Num: num, Den: den}
	}
	v, err := DecimalFromRationals(parts)
	if err != nil {
		return 0, err
	}
	ref := ""
	if rt, err := x.Get(refField); err == nil {
		ref, _ = rt.StringVal()
	}
	return ApplyHemisphere(v, ref), nil
}
