package metadata

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/hyperjump/divetag/internal/models"
	"go.uber.org/zap"
)

// WriteState tracks a GPS write through the backend list.
type WriteState int

const (
	WriteNotAttempted WriteState = iota
	WriteTrying
	WriteSucceeded
	WriteAllFailed
)

// String returns the state name used in logs.
func (s WriteState) String() string {
	switch s {
	case WriteNotAttempted:
		return "not_attempted"
	case WriteTrying:
		return "trying"
	case WriteSucceeded:
		return "succeeded"
	case WriteAllFailed:
		return "all_failed"
	default:
		return fmt.Sprintf("write_state(%d)", int(s))
	}
}

// Attempt is one failed backend write.
type Attempt struct {
	Backend string
	Err     error
}

// WriteResult reports the outcome of Chain.SetGPS.
type WriteResult struct {
	State    WriteState
	Backend  string
	Attempts []Attempt
}

// OK reports whether a backend wrote the coordinates.
func (r WriteResult) OK() bool {
	return r.State == WriteSucceeded
}

// Chain holds the per-format backend order for reads and writes.
type Chain struct {
	readers map[FormatClass][]Backend
	writers map[FormatClass][]Backend
	logger  *zap.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithLogger sets the logger for backend failures.
func WithLogger(l *zap.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// WithReaders sets the read order for class. Later calls replace earlier ones.
func WithReaders(class FormatClass, backends ...Backend) ChainOption {
	return func(c *Chain) { c.readers[class] = compact(backends) }
}

// WithWriters sets the GPS write order for class.
func WithWriters(class FormatClass, backends ...Backend) ChainOption {
	return func(c *Chain) { c.writers[class] = compact(backends) }
}

// NewChain returns a chain with no backends beyond those set by opts.
func NewChain(opts ...ChainOption) *Chain {
	c := &Chain{
		readers: make(map[FormatClass][]Backend),
		writers: make(map[FormatClass][]Backend),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Options configures NewDefaultChain.
type Options struct {
	ExifToolBinary  string
	ExifToolTimeout time.Duration
	Logger          *zap.Logger
}

// NewDefaultChain wires the standard backends. Still images read through
// exiftool, then goexif, then a raw EXIF scan; JPEG writes fall back from
// exiftool to the native JPEG writer; video relies on exiftool alone.
// When the exiftool binary is missing the chain is built without it.
func NewDefaultChain(opts Options) *Chain {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	binary := opts.ExifToolBinary
	if binary == "" {
		binary = "exiftool"
	}
	var tool Backend
	if resolved, err := exec.LookPath(binary); err == nil {
		tool = NewExifTool(resolved, opts.ExifToolTimeout)
	} else {
		logger.Warn("exiftool not found; video files and rich metadata are unavailable",
			zap.String("binary", binary), zap.Error(err))
	}
	stills := []Backend{tool, GoExif{}, RawScan{}}
	return NewChain(
		WithLogger(logger),
		WithReaders(FormatRAW, stills...),
		WithReaders(FormatBaseline, stills...),
		WithReaders(FormatVideo, tool),
		WithWriters(FormatRAW, tool),
		WithWriters(FormatBaseline, tool, JPEGWriter{}),
		WithWriters(FormatVideo, tool),
	)
}

func compact(backends []Backend) []Backend {
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

// Readers returns the backend names consulted for class, in order.
func (c *Chain) Readers(class FormatClass) []string {
	return names(c.readers[class])
}

// Writers returns the backend names tried for GPS writes on class, in order.
func (c *Chain) Writers(class FormatClass) []string {
	return names(c.writers[class])
}

func names(backends []Backend) []string {
	out := make([]string, len(backends))
	for i, b := range backends {
		out[i] = b.Name()
	}
	return out
}

// CaptureTime returns the first parseable capture time any reader finds.
func (c *Chain) CaptureTime(ctx context.Context, path string) (time.Time, bool) {
	t, _, ok := c.captureTime(ctx, path)
	return t, ok
}

func (c *Chain) captureTime(ctx context.Context, path string) (time.Time, string, bool) {
	class := ClassifyPath(path)
	for _, b := range c.readers[class] {
		var t time.Time
		err := c.call(b, "read capture time", func() error {
			if !b.Supports(class) {
				return ErrUnsupported
			}
			var err error
			t, err = b.ReadCaptureTime(ctx, path)
			return err
		})
		if err == nil && !t.IsZero() {
			return t, b.Name(), true
		}
		c.logMiss(b, "capture time", path, err)
	}
	return time.Time{}, "", false
}

// CurrentGPS returns the coordinates already stored in the file, if any.
func (c *Chain) CurrentGPS(ctx context.Context, path string) (models.Coordinates, bool) {
	class := ClassifyPath(path)
	for _, b := range c.readers[class] {
		var coords models.Coordinates
		err := c.call(b, "read gps", func() error {
			if !b.Supports(class) {
				return ErrUnsupported
			}
			var err error
			coords, err = b.ReadGPS(ctx, path)
			return err
		})
		if err == nil {
			return coords, true
		}
		c.logMiss(b, "gps", path, err)
	}
	return models.Coordinates{}, false
}

// Read returns both the capture time and the existing position.
func (c *Chain) Read(ctx context.Context, path string) models.MetadataRecord {
	var rec models.MetadataRecord
	if t, source, ok := c.captureTime(ctx, path); ok {
		rec.CaptureTime = &t
		rec.Source = source
	}
	if coords, ok := c.CurrentGPS(ctx, path); ok {
		rec.Location = &coords
	}
	return rec
}

// SetGPS writes coords with the first backend that succeeds. A backend that
// does not support the file counts as a failed attempt. When every backend
// fails the result is WriteAllFailed; no error is returned.
func (c *Chain) SetGPS(ctx context.Context, path string, coords models.Coordinates) WriteResult {
	class := ClassifyPath(path)
	res := WriteResult{State: WriteNotAttempted}
	for _, b := range c.writers[class] {
		res.State = WriteTrying
		err := c.call(b, "write gps", func() error {
			if !b.Supports(class) {
				return ErrUnsupported
			}
			return b.WriteGPS(ctx, path, coords)
		})
		if err == nil {
			res.State = WriteSucceeded
			res.Backend = b.Name()
			c.logger.Debug("gps written", zap.String("path", path), zap.String("backend", b.Name()))
			return res
		}
		res.Attempts = append(res.Attempts, Attempt{Backend: b.Name(), Err: err})
		c.logger.Debug("gps write failed", zap.String("path", path), zap.String("backend", b.Name()), zap.Error(err))
	}
	res.State = WriteAllFailed
	return res
}

// call runs fn and turns a panic inside a backend into an error.
func (c *Chain) call(b Backend, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s %s: panic: %v", b.Name(), op, r)
		}
	}()
	return fn()
}

func (c *Chain) logMiss(b Backend, what, path string, err error) {
	if err == nil || errors.Is(err, ErrNoData) || errors.Is(err, ErrUnsupported) {
		c.logger.Debug("backend has no "+what, zap.String("path", path), zap.String("backend", b.Name()))
		return
	}
	c.logger.Debug("backend failed reading "+what, zap.String("path", path), zap.String("backend", b.Name()), zap.Error(err))
}
