package metadata

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/divetag/internal/models"
)

var (
	// ErrNoData means the backend read the file but found no usable value.
	ErrNoData = errors.New("no metadata found")
	// ErrUnsupported means the backend cannot handle the file or the operation.
	ErrUnsupported = errors.New("unsupported by backend")
)

// Backend is one metadata library or tool. Operations a backend cannot perform
// return ErrUnsupported.
type Backend interface {
	Name() string
	Supports(class FormatClass) bool
	ReadCaptureTime(ctx context.Context, path string) (time.Time, error)
	ReadGPS(ctx context.Context, path string) (models.Coordinates, error)
	WriteGPS(ctx context.Context, path string, c models.Coordinates) error
}

// readOnly supplies the write half for backends that cannot write.
type readOnly struct{}

func (readOnly) WriteGPS(context.Context, string, models.Coordinates) error {
	return ErrUnsupported
}
