package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/divetag/internal/models"
)

// DefaultExifToolTimeout bounds a single exiftool invocation.
const DefaultExifToolTimeout = 30 * time.Second

var (
	stillTimeTags = []string{"DateTimeOriginal", "CreateDate", "ModifyDate"}
	videoTimeTags = []string{"DateTimeOriginal", "MediaCreateDate", "CreateDate", "CreationDate"}
	gpsTags       = []string{"GPSLatitude", "GPSLatitudeRef", "GPSLongitude", "GPSLongitudeRef"}
)

// ExifTool drives the exiftool command line program. Every invocation is
// bounded by the configured timeout; a non-zero exit or a timeout is an error
// for that call only.
type ExifTool struct {
	binary  string
	timeout time.Duration
}

// NewExifTool returns a backend that runs binary. A non-positive timeout uses
// DefaultExifToolTimeout.
func NewExifTool(binary string, timeout time.Duration) *ExifTool {
	if timeout <= 0 {
		timeout = DefaultExifToolTimeout
	}
	return &ExifTool{binary: binary, timeout: timeout}
}

func (e *ExifTool) Name() string { return "exiftool" }

func (e *ExifTool) Supports(class FormatClass) bool {
	return class != FormatUnknown
}

func (e *ExifTool) ReadCaptureTime(ctx context.Context, path string) (time.Time, error) {
	tags := stillTimeTags
	if ClassifyPath(path) == FormatVideo {
		tags = videoTimeTags
	}
	rec, err := e.readTags(ctx, path, tags)
	if err != nil {
		return time.Time{}, err
	}
	for _, tag := range tags {
		s, ok := rec[tag].(string)
		if !ok {
			continue
		}
		if t, err := ParseTimestamp(s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrNoData
}

func (e *ExifTool) ReadGPS(ctx context.Context, path string) (models.Coordinates, error) {
	rec, err := e.readTags(ctx, path, gpsTags)
	if err != nil {
		return models.Coordinates{}, err
	}
	lat, okLat := numeric(rec["GPSLatitude"])
	lon, okLon := numeric(rec["GPSLongitude"])
	if !okLat || !okLon {
		return models.Coordinates{}, ErrNoData
	}
	latRef, _ := rec["GPSLatitudeRef"].(string)
	lonRef, _ := rec["GPSLongitudeRef"].(string)
	return models.Coordinates{
		Latitude:  ApplyHemisphere(lat, latRef),
		Longitude: ApplyHemisphere(lon, lonRef),
	}, nil
}

func (e *ExifTool) WriteGPS(ctx context.Context, path string, c models.Coordinates) error {
	args := []string{
		"-GPSLatitude=" + formatFloat(abs(c.Latitude)),
		"-GPSLatitudeRef=" + HemisphereRef(c.Latitude, true),
		"-GPSLongitude=" + formatFloat(abs(c.Longitude)),
		"-GPSLongitudeRef=" + HemisphereRef(c.Longitude, false),
		"-overwrite_original",
		path,
	}
	out, err := e.run(ctx, args...)
	if err != nil {
		return err
	}
	if strings.Contains(string(out), "weren't updated") {
		return fmt.Errorf("exiftool did not update %s: %s", path, strings.TrimSpace(string(out)))
	}
	return nil
}

func (e *ExifTool) readTags(ctx context.Context, path string, tags []string) (map[string]any, error) {
	args := []string{"-j", "-n"}
	for _, t := range tags {
		args = append(args, "-"+t)
	}
	args = append(args, path)
	out, err := e.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	if err := json.Unmarshal(out, &records); err != nil {
		return nil, fmt.Errorf("decode exiftool output: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoData
	}
	return records[0], nil
}

func (e *ExifTool) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("exiftool timed out after %s: %w", e.timeout, ctx.Err())
	}
	if err != nil {
		return nil, fmt.Errorf("exiftool: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
