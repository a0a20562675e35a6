package profile

import (
	"github.com/mbd888/mindfuse/internal/emotion"
	"github.com/mbd888/mindfuse/internal/fusion"
)

// BehavioralWindow is how many recent entries feed the behavioral signal.
const BehavioralWindow = 10

// Neutral defaults for users with no committed history. A brand-new
// user contributes a mild, low-certainty baseline rather than nothing,
// so the other modalities dominate their first assessments.
const (
	defaultStressScore = 0.3
	defaultConfidence  = 0.5
)

// Signal derives the behavioral modality from the profile's recent
// history: a recency-weighted average of the last BehavioralWindow
// stress scores (linear decay, newest heaviest) under the most frequent
// recent label. Safe to call on a nil profile.
func (p *Profile) Signal() fusion.ModalityResult {
	if p == nil || len(p.History) == 0 {
		return fusion.ModalityResult{
			Modality:    emotion.ModalityBehavioral,
			Label:       emotion.Neutral,
			Confidence:  defaultConfidence,
			StressScore: defaultStressScore,
		}
	}

	window := p.Recent(BehavioralWindow)

	var weightSum, stressSum, confSum float64
	counts := make(map[emotion.Label]int, len(window))
	for i, e := range window {
		w := float64(i + 1) // oldest weighs 1, newest weighs len(window)
		weightSum += w
		stressSum += w * e.StressScore
		confSum += e.Confidence
		counts[e.Label]++
	}

	// Most frequent label in the window; ties go to the most recently
	// seen label so the signal tracks the user's current state.
	var label emotion.Label
	best := -1
	for i := len(window) - 1; i >= 0; i-- {
		if c := counts[window[i].Label]; c > best {
			best = c
			label = window[i].Label
		}
	}

	return fusion.ModalityResult{
		Modality:    emotion.ModalityBehavioral,
		Label:       label,
		Confidence:  confSum / float64(len(window)),
		StressScore: stressSum / weightSum,
	}
}
