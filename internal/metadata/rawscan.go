package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"

	"github.com/hyperjump/divetag/internal/models"
)

var rawScanTimeTags = []string{"DateTimeOriginal", "DateTimeDigitized", "DateTime"}

// RawScan finds an EXIF block anywhere in the file. It is the last resort for
// containers the structured readers cannot parse.
type RawScan struct {
	readOnly
}

func (RawScan) Name() string { return "rawscan" }

func (RawScan) Supports(class FormatClass) bool {
	return class == FormatBaseline || class == FormatRAW
}

func (RawScan) ReadCaptureTime(_ context.Context, path string) (time.Time, error) {
	tags, err := scanTags(path)
	if err != nil {
		return time.Time{}, err
	}
	for _, name := range rawScanTimeTags {
		tag, ok := tags[name]
		if !ok {
			continue
		}
		s, ok := tag.Value.(string)
		if !ok {
			s = tag.Formatted
		}
		if t, err := ParseTimestamp(s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrNoData
}

func (RawScan) ReadGPS(_ context.Context, path string) (models.Coordinates, error) {
	tags, err := scanTags(path)
	if err != nil {
		return models.Coordinates{}, err
	}
	lat, err := scanCoordinate(tags, "GPSLatitude", "GPSLatitudeRef")
	if err != nil {
		return models.Coordinates{}, err
	}
	lon, err := scanCoordinate(tags, "GPSLongitude", "GPSLongitudeRef")
	if err != nil {
		return models.Coordinates{}, err
	}
	return models.Coordinates{Latitude: lat, Longitude: lon}, nil
}

// scanTags returns the flattened tags keyed by name. The first IFD to define a
// name wins.
func scanTags(path string) (map[string]exif.ExifTag, error) {
	raw, err := exif.SearchFileAndExtractExif(path)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("search exif: %w", err)
	}
	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("flatten exif: %w", err)
	}
	tags := make(map[string]exif.ExifTag, len(entries))
	for _, e := range entries {
		if _, seen := tags[e.TagName]; !seen {
			tags[e.TagName] = e
		}
	}
	return tags, nil
}

func scanCoordinate(tags map[string]exif.ExifTag, valueName, refName string) (float64, error) {
	tag, ok := tags[valueName]
	if !ok {
		return 0, ErrNoData
	}
	rats, ok := tag.Value.([]exifcommon.Rational)
	if !ok {
		return 0, fmt.Errorf("%s has type %T", valueName, tag.Value)
	}
	parts := make([]Rational, len(rats))
	for i, r := range rats {
		parts[i] = Rational{Num: int64(r.Numerator), Den: int64(r.Denominator)}
	}
	v, err := DecimalFromRationals(parts)
	if err != nil {
		return 0, err
	}
	ref := ""
	if rt, ok := tags[refName]; ok {
		ref, _ = rt.Value.(string)
	}
	return ApplyHemisphere(v, ref), nil
}
