package correction

import (
	"github.com/mbd888/mindfuse/internal/emotion"
	"github.com/mbd888/mindfuse/internal/fusion"
)

// Distribution is a facial-expression score distribution prepared for
// rule evaluation: the top two labels plus lookup over the full set.
type Distribution struct {
	Top         emotion.Label
	TopScore    float64
	Second      emotion.Label
	SecondScore float64

	scores map[emotion.Label]float64
}

func newDistribution(top emotion.Label, topScore float64, expressions []fusion.LabelScore) Distribution {
	d := Distribution{
		Top:      top,
		TopScore: topScore,
		scores:   make(map[emotion.Label]float64, len(expressions)+1),
	}
	for _, e := range expressions {
		l := emotion.Canonical(string(e.Label))
		if e.Score > d.scores[l] {
			d.scores[l] = e.Score
		}
		if l != top && e.Score > d.SecondScore {
			d.Second = l
			d.SecondScore = e.Score
		}
	}
	if topScore > d.scores[top] {
		d.scores[top] = topScore
	}
	return d
}

// Score returns the distribution's score for a label, 0 if absent.
func (d Distribution) Score(l emotion.Label) float64 { return d.scores[l] }

// ImageRule is one label-correction rule. Apply returns the corrected
// label and its score, or ok=false when the rule does not fire.
type ImageRule struct {
	Name  string
	Apply func(d Distribution) (emotion.Label, float64, bool)
}

// RuleThresholds are the tunable constants behind the default image
// rules. The defaults come from observed misclassification rates, not
// from any clinical ground truth; deployments may adjust them.
type RuleThresholds struct {
	// CloseCallRatio: an angry top call within this fraction of its
	// own score from a happy runner-up is treated as a misread smile.
	CloseCallRatio float64
	// WeakAngryTop / WeakAngryHappy: an angry top call below
	// WeakAngryTop yields to a happy score above WeakAngryHappy.
	WeakAngryTop   float64
	WeakAngryHappy float64
	// UncertainTop / UncertainHappy: any top call below UncertainTop
	// yields to a happy score above UncertainHappy.
	UncertainTop   float64
	UncertainHappy float64
}

// DefaultRuleThresholds returns the shipped constants.
func DefaultRuleThresholds() RuleThresholds {
	return RuleThresholds{
		CloseCallRatio: 0.20,
		WeakAngryTop:   0.55,
		WeakAngryHappy: 0.25,
		UncertainTop:   0.40,
		UncertainHappy: 0.20,
	}
}

// DefaultImageRules builds the standard rule chain. Low-scoring angry
// predictions are more often misread smiles than genuine anger, so the
// chain trades a few false happy calls for fewer missed positive
// states. Order matters: the first rule that fires wins.
func DefaultImageRules(t RuleThresholds) []ImageRule {
	return []ImageRule{
		{
			Name: "runner_up_happy",
			Apply: func(d Distribution) (emotion.Label, float64, bool) {
				if d.Top == emotion.Angry && d.Second == emotion.Happy &&
					d.TopScore-d.SecondScore <= t.CloseCallRatio*d.TopScore {
					return emotion.Happy, d.SecondScore, true
				}
				return "", 0, false
			},
		},
		{
			Name: "weak_angry",
			Apply: func(d Distribution) (emotion.Label, float64, bool) {
				if d.Top == emotion.Angry && d.TopScore < t.WeakAngryTop &&
					d.Score(emotion.Happy) > t.WeakAngryHappy {
					return emotion.Happy, d.Score(emotion.Happy), true
				}
				return "", 0, false
			},
		},
		{
			Name: "uncertain_top",
			Apply: func(d Distribution) (emotion.Label, float64, bool) {
				if d.TopScore < t.UncertainTop && d.Score(emotion.Happy) > t.UncertainHappy {
					return emotion.Happy, d.Score(emotion.Happy), true
				}
				return "", 0, false
			},
		},
	}
}
