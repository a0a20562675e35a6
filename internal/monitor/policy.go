// Package monitor derives the high-risk flag from a profile's recent
// history. The policy runs inside the profile store's per-user commit
// section; the worker sweeps flagged profiles in the background for
// the admin surface.
package monitor

import (
	"time"

	"github.com/mbd888/mindfuse/internal/profile"
)

const (
	// DefaultWindow is how many most-recent entries the policy inspects.
	DefaultWindow = 5
	// DefaultThreshold is how many high-stress entries in the window
	// raise the flag.
	DefaultThreshold = 3
)

// FlagReason is the reason recorded when the policy raises the flag.
const FlagReason = "Repeated high-stress analyses detected in recent activity"

// Compile-time check that Policy implements profile.FlagPolicy.
var _ profile.FlagPolicy = (*Policy)(nil)

// Policy is a pure state machine over a profile's recent entries.
//
// Flagged profiles are cleared when the two most recent entries are
// both calm: the user's current trajectory outweighs the older spike.
// Clear profiles are flagged when the recent window holds enough
// high-stress entries, unless the tail is calm (the clear condition
// always dominates) or every high-stress entry predates the last
// clear, which keeps an admin clear from being undone by the very
// history it was issued against. Re-applying the policy to an
// unchanged profile never toggles the flag.
type Policy struct {
	window    int
	threshold int
}

// NewPolicy creates a policy with the default window and threshold.
func NewPolicy() *Policy {
	return &Policy{window: DefaultWindow, threshold: DefaultThreshold}
}

// WithWindow overrides how many recent entries are inspected.
func (p *Policy) WithWindow(k int) *Policy {
	if k > 0 {
		p.window = k
	}
	return p
}

// WithThreshold overrides how many high-stress entries raise the flag.
func (p *Policy) WithThreshold(t int) *Policy {
	if t > 0 {
		p.threshold = t
	}
	return p
}

// Window reports how many recent entries Apply inspects, so stores
// know how much history to load.
func (p *Policy) Window() int { return p.window }

// Apply recomputes the flag on a profile whose newest entry was
// committed at now. It mutates the profile's flag fields and reports
// what changed.
func (p *Policy) Apply(prof *profile.Profile, now time.Time) profile.FlagChange {
	calmTail := hasCalmTail(prof)

	if prof.HighRiskFlag {
		if calmTail {
			prof.HighRiskFlag = false
			prof.HighRiskReason = ""
			prof.FlagClearedAt = now
			return profile.FlagCleared
		}
		return profile.FlagUnchanged
	}

	if calmTail {
		return profile.FlagUnchanged
	}

	recent := prof.Recent(p.window)
	high := 0
	freshEvidence := false
	for _, e := range recent {
		if !e.StressCategory.High() {
			continue
		}
		high++
		if e.Timestamp.After(prof.FlagClearedAt) {
			freshEvidence = true
		}
	}
	if high < p.threshold || !freshEvidence {
		return profile.FlagUnchanged
	}

	prof.HighRiskFlag = true
	prof.HighRiskReason = FlagReason
	prof.FlaggedAt = now
	return profile.FlagRaised
}

// hasCalmTail reports whether the two most recent entries both sit in
// the calm categories. One calm entry is not enough to clear.
func hasCalmTail(prof *profile.Profile) bool {
	tail := prof.Recent(2)
	if len(tail) < 2 {
		return false
	}
	return tail[0].StressCategory.Low() && tail[1].StressCategory.Low()
}
