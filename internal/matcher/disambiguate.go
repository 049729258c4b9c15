package matcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/divetag/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrSkip is returned by a Decider that chooses not to match the item.
	ErrSkip = errors.New("selection skipped")
	// ErrCancelled is returned by a Decider whose input was closed or interrupted.
	ErrCancelled = errors.New("selection cancelled")
)

// Prompt is what a Decider is asked to choose from.
type Prompt struct {
	Path        string
	CaptureTime time.Time
	Candidates  []models.Match
	// Attempt is 0 on the first ask and grows after each out-of-range answer.
	Attempt int
}

// Decider picks one of the offered candidates. It returns a 1-based index,
// 0 to skip, or an error.
type Decider interface {
	Choose(ctx context.Context, p Prompt) (int, error)
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(ctx context.Context, p Prompt) (int, error)

// Choose calls f.
func (f DeciderFunc) Choose(ctx context.Context, p Prompt) (int, error) {
	return f(ctx, p)
}

// SkipDecider never picks a candidate. Use it for non-interactive runs.
var SkipDecider Decider = DeciderFunc(func(context.Context, Prompt) (int, error) {
	return 0, nil
})

// FirstChoiceDecider always picks the best ranked candidate.
var FirstChoiceDecider Decider = DeciderFunc(func(context.Context, Prompt) (int, error) {
	return 1, nil
})

// Disambiguator reduces a ranked candidate list to at most one match.
type Disambiguator struct {
	decider Decider
	policy  Policy
	logger  *zap.Logger
}

// DisambiguatorOption configures a Disambiguator.
type DisambiguatorOption func(*Disambiguator)

// WithLogger sets the logger used for selection events.
func WithLogger(l *zap.Logger) DisambiguatorOption {
	return func(d *Disambiguator) { d.logger = l }
}

// WithPolicy overrides the choice and attempt limits.
func WithPolicy(p Policy) DisambiguatorOption {
	return func(d *Disambiguator) { d.policy = p.normalized() }
}

// NewDisambiguator returns a Disambiguator that consults decider for ambiguous lists.
// A nil decider behaves like SkipDecider.
func NewDisambiguator(decider Decider, opts ...DisambiguatorOption) *Disambiguator {
	if decider == nil {
		decider = SkipDecider
	}
	d := &Disambiguator{
		decider: decider,
		policy:  DefaultPolicy(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Resolve picks the match for a ranked candidate list, or nil for no match.
// A within_dive candidate is always taken without asking the decider.
// Cancellation and end of input resolve to nil without an error.
func (d *Disambiguator) Resolve(ctx context.Context, path string, ranked []models.Match) (*models.Match, error) {
	switch len(ranked) {
	case 0:
		return nil, nil
	case 1:
		m := ranked[0]
		return &m, nil
	}
	for i := range ranked {
		if ranked[i].Confidence == models.ConfidenceWithinDive {
			m := ranked[i]
			return &m, nil
		}
	}

	choices := ranked
	if len(choices) > d.policy.MaxChoices {
		choices = choices[:d.policy.MaxChoices]
	}
	prompt := Prompt{
		Path:        path,
		CaptureTime: ranked[0].CaptureTime,
		Candidates:  choices,
	}
	for prompt.Attempt = 0; prompt.Attempt < d.policy.MaxAttempts; prompt.Attempt++ {
		sel, err := d.decider.Choose(ctx, prompt)
		if err != nil {
			if errors.Is(err, ErrSkip) || errors.Is(err, ErrCancelled) || errors.Is(err, io.EOF) ||
				errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				d.logger.Debug("selection ended without a match", zap.String("path", path), zap.Error(err))
				return nil, nil
			}
			return nil, fmt.Errorf("choose dive: %w", err)
		}
		if sel == 0 {
			d.logger.Debug("selection skipped", zap.String("path", path))
			return nil, nil
		}
		if sel >= 1 && sel <= len(choices) {
			m := choices[sel-1]
			return &m, nil
		}
		d.logger.Debug("selection out of range", zap.String("path", path), zap.Int("selection", sel), zap.Int("choices", len(choices)))
	}
	d.logger.Warn("too many invalid selections, skipping", zap.String("path", path))
	return nil, nil
}
