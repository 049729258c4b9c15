// Package storage defines the run ledger: a record of tagging runs and the
// outcome of every media item they touched.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/divetag/internal/models"
)

// ErrRunNotFound is returned when a run ID is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

// Ledger defines run and item persistence operations.
type Ledger interface {
	// Run operations
	StartRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, runID string, summary *models.Summary) error
	GetRun(ctx context.Context, runID string) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*models.Run, error)

	// Item operations
	RecordItem(ctx context.Context, runID string, item *models.ItemResult) error
	ItemsForRun(ctx context.Context, runID string) ([]*models.ItemResult, error)
	// Processed reports whether any non-dry-run item with mediaKey was processed.
	Processed(ctx context.Context, mediaKey string) (bool, error)

	Close() error
}
