// Package pipeline runs media items through capture-time lookup, dive matching,
// GPS writing and sidecar merging, one item at a time.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/divetag/internal/fileid"
	"github.com/hyperjump/divetag/internal/metadata"
	"github.com/hyperjump/divetag/internal/models"
	"github.com/hyperjump/divetag/internal/sidecar"
	"github.com/hyperjump/divetag/internal/storage"
)

// Reasons recorded on skipped and errored items.
const (
	ReasonNoCaptureTime    = "no capture time"
	ReasonNoMatch          = "no matching dive"
	ReasonSiteWithoutGPS   = "dive site has no GPS"
	ReasonAlreadyProcessed = "already processed"
	ReasonDryRun           = "dry run"
	ReasonSidecarOnlyGPS   = "gps stored in sidecar only"
)

// MetadataChain is the part of metadata.Chain the runner uses.
type MetadataChain interface {
	CaptureTime(ctx context.Context, path string) (time.Time, bool)
	CurrentGPS(ctx context.Context, path string) (models.Coordinates, bool)
	SetGPS(ctx context.Context, path string, coords models.Coordinates) metadata.WriteResult
}

// Ranker orders candidate dives for a capture time.
type Ranker interface {
	Rank(captureTime time.Time) []models.Match
}

// Resolver reduces a ranking to at most one match.
type Resolver interface {
	Resolve(ctx context.Context, path string, ranked []models.Match) (*models.Match, error)
}

// SidecarMerger writes keyword, GPS and time updates to a sidecar file.
type SidecarMerger interface {
	Merge(path string, u sidecar.Update) error
}

// Runner tags media files with the GPS position of the dive they were taken on.
type Runner struct {
	chain    MetadataChain
	ranker   Ranker
	resolver Resolver
	merger   SidecarMerger

	logger        *zap.Logger
	ledger        storage.Ledger
	mediaRoot     string
	dryRun        bool
	skipProcessed bool
	extraKeywords []string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithLedger records every run and item in l.
func WithLedger(l storage.Ledger) Option {
	return func(r *Runner) { r.ledger = l }
}

// WithMediaRoot labels recorded runs with the directory being processed.
func WithMediaRoot(root string) Option {
	return func(r *Runner) { r.mediaRoot = root }
}

// WithDryRun matches items but writes nothing to media or sidecars.
func WithDryRun(dryRun bool) Option {
	return func(r *Runner) { r.dryRun = dryRun }
}

// WithSkipProcessed skips items the ledger already records as processed.
// It has no effect without a ledger.
func WithSkipProcessed(skip bool) Option {
	return func(r *Runner) { r.skipProcessed = skip }
}

// WithExtraKeywords adds keywords to every sidecar next to the site name.
func WithExtraKeywords(keywords ...string) Option {
	return func(r *Runner) { r.extraKeywords = append(r.extraKeywords, keywords...) }
}

// NewRunner returns a Runner built from its collaborators.
func NewRunner(chain MetadataChain, ranker Ranker, resolver Resolver, merger SidecarMerger, opts ...Option) *Runner {
	r := &Runner{
		chain:    chain,
		ranker:   ranker,
		resolver: resolver,
		merger:   merger,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DryRun reports whether the runner leaves files untouched.
func (r *Runner) DryRun() bool {
	return r.dryRun
}

// Run processes paths in order and returns the summary. When ctx is cancelled
// the remaining items are not started and the partial summary is returned
// with ctx.Err().
func (r *Runner) Run(ctx context.Context, paths []string) (*models.Summary, error) {
	session, err := r.Start(ctx)
	if err != nil {
		return nil, err
	}
	var runErr error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		session.Process(ctx, path)
	}
	// The ledger update must land even when the run was cancelled.
	summary, err := session.Finish(context.WithoutCancel(ctx))
	if runErr != nil {
		return summary, runErr
	}
	return summary, err
}

// Session is one recorded run. Watch mode keeps a session open and feeds it
// files as they appear.
type Session struct {
	runner  *Runner
	run     *models.Run
	summary *models.Summary
}

// Start opens a session and records the run when a ledger is configured.
func (r *Runner) Start(ctx context.Context) (*Session, error) {
	s := &Session{
		runner:  r,
		run:     &models.Run{MediaRoot: r.mediaRoot, DryRun: r.dryRun},
		summary: models.NewSummary(),
	}
	if r.ledger != nil {
		if err := r.ledger.StartRun(ctx, s.run); err != nil {
			return nil, err
		}
		s.summary.RunID = s.run.ID
		r.logger.Debug("pipeline run started", zap.String("run_id", s.run.ID))
	}
	return s, nil
}

// RunID returns the ledger ID of the session, or "" without a ledger.
func (s *Session) RunID() string {
	return s.run.ID
}

// Summary returns the running tally.
func (s *Session) Summary() *models.Summary {
	return s.summary
}

// Process runs one item, adds it to the summary and records it.
func (s *Session) Process(ctx context.Context, path string) *models.ItemResult {
	r := s.runner
	item := r.process(ctx, path, s.summary)
	s.summary.Add(item)
	if r.ledger != nil {
		if err := r.ledger.RecordItem(context.WithoutCancel(ctx), s.run.ID, item); err != nil {
			r.logger.Warn("pipeline failed to record item", zap.String("path", path), zap.Error(err))
		}
	}
	r.logItem(item)
	return item
}

// Finish stores the final counts and returns the summary.
func (s *Session) Finish(ctx context.Context) (*models.Summary, error) {
	r := s.runner
	if r.ledger != nil {
		if err := r.ledger.FinishRun(ctx, s.run.ID, s.summary); err != nil {
			return s.summary, err
		}
	}
	r.logger.Debug("pipeline run finished",
		zap.String("run_id", s.run.ID),
		zap.Int("total", s.summary.Total),
		zap.Int("processed", s.summary.Processed),
		zap.Int("skipped", s.summary.Skipped),
		zap.Int("errored", s.summary.Errored))
	return s.summary, nil
}

func (r *Runner) process(ctx context.Context, path string, summary *models.Summary) *models.ItemResult {
	item := &models.ItemResult{Path: path}

	key, err := fileid.ForFile(path)
	if err != nil {
		return errored(item, err)
	}
	item.MediaKey = key

	if r.skipProcessed && r.ledger != nil {
		done, err := r.ledger.Processed(ctx, key)
		if err != nil {
			return errored(item, fmt.Errorf("ledger lookup: %w", err))
		}
		if done {
			return skipped(item, ReasonAlreadyProcessed)
		}
	}

	captured, ok := r.chain.CaptureTime(ctx, path)
	if !ok {
		return skipped(item, ReasonNoCaptureTime)
	}
	item.CaptureTime = &captured
	summary.ObserveCapture(captured)
	if coords, ok := r.chain.CurrentGPS(ctx, path); ok {
		r.logger.Debug("pipeline media already has gps",
			zap.String("path", path),
			zap.Float64("latitude", coords.Latitude),
			zap.Float64("longitude", coords.Longitude))
	}

	match, err := r.resolver.Resolve(ctx, path, r.ranker.Rank(captured))
	if err != nil {
		return errored(item, err)
	}
	if match == nil {
		return skipped(item, ReasonNoMatch)
	}
	dive := match.Dive
	summary.MatchedDives[dive.Number] = true
	item.DiveNumber = dive.Number
	item.SiteName = dive.SiteName()
	confidence := match.Confidence
	item.Confidence = &confidence

	if !dive.Site.HasLocation() {
		return skipped(item, ReasonSiteWithoutGPS)
	}
	if r.dryRun {
		item.Outcome = models.OutcomeProcessed
		item.Reason = ReasonDryRun
		return item
	}
	if err := ctx.Err(); err != nil {
		return errored(item, err)
	}

	location := *dive.Site.Location
	res := r.chain.SetGPS(ctx, path, location)
	item.GPSWritten = res.OK()
	item.GPSBackend = res.Backend
	if !res.OK() {
		for _, a := range res.Attempts {
			r.logger.Debug("pipeline gps write attempt failed",
				zap.String("path", path),
				zap.String("backend", a.Backend),
				zap.Error(a.Err))
		}
	}

	update := sidecar.Update{
		Keywords:    append([]string{dive.SiteName()}, r.extraKeywords...),
		CaptureTime: &captured,
	}
	if !res.OK() {
		update.Location = &location
	}
	if err := r.merger.Merge(sidecar.PathFor(path), update); err != nil {
		return errored(item, fmt.Errorf("sidecar: %w", err))
	}
	item.SidecarWritten = true
	item.Outcome = models.OutcomeProcessed
	if !res.OK() {
		item.Reason = ReasonSidecarOnlyGPS
	} else if key, err := fileid.ForFile(path); err == nil {
		// Record the file as tagging left it so a later run recognizes it.
		item.MediaKey = key
	}
	return item
}

func skipped(item *models.ItemResult, reason string) *models.ItemResult {
	item.Outcome = models.OutcomeSkipped
	item.Reason = reason
	return item
}

func errored(item *models.ItemResult, err error) *models.ItemResult {
	item.Outcome = models.OutcomeErrored
	item.Reason = err.Error()
	return item
}

func (r *Runner) logItem(item *models.ItemResult) {
	name := filepath.Base(item.Path)
	switch item.Outcome {
	case models.OutcomeProcessed:
		r.logger.Info("pipeline tagged",
			zap.String("file", name),
			zap.Int("dive", item.DiveNumber),
			zap.String("site", item.SiteName),
			zap.Bool("gps_written", item.GPSWritten),
			zap.Bool("dry_run", r.dryRun))
	case models.OutcomeSkipped:
		r.logger.Info("pipeline skipped", zap.String("file", name), zap.String("reason", item.Reason))
	case models.OutcomeErrored:
		r.logger.Error("pipeline failed", zap.String("file", name), zap.String("reason", item.Reason))
	}
}
