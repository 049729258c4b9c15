package matcher

import "time"

// Policy holds the matching thresholds.
type Policy struct {
	// NearWindow is the maximum distance from a dive start for a capture
	// outside the dive to still count as near_dive.
	NearWindow time.Duration
	// MaxChoices caps how many candidates are offered to a Decider.
	MaxChoices int
	// MaxAttempts caps how many out-of-range selections are tolerated before
	// the item resolves to no match.
	MaxAttempts int
}

// DefaultPolicy returns the standard two-hour near window and five choices.
func DefaultPolicy() Policy {
	return Policy{
		NearWindow:  2 * time.Hour,
		MaxChoices:  5,
		MaxAttempts: 10,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.NearWindow <= 0 {
		p.NearWindow = d.NearWindow
	}
	if p.MaxChoices <= 0 {
		p.MaxChoices = d.MaxChoices
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	return p
}
