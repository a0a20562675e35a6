// Package emotion defines the shared vocabulary of the risk engine:
// emotion labels, stress categories, risk levels, and the fixed
// mappings between combined stress scores and those categories.
//
// Everything here is pure data and pure functions. The fusion and
// correction layers depend on this package; nothing here depends on them.
package emotion

import (
	"math"
	"strings"
)

// Label is a canonical emotion label in display form (e.g. "Happy").
type Label string

const (
	Happy     Label = "Happy"
	Sad       Label = "Sad"
	Angry     Label = "Angry"
	Anxious   Label = "Anxious"
	Fearful   Label = "Fearful"
	Surprised Label = "Surprised"
	Disgusted Label = "Disgusted"
	Neutral   Label = "Neutral"
)

// canonical maps lowercase classifier output to canonical labels.
// Classifiers disagree on vocabulary (text models say "anxious",
// face models say "fearful", some say "joy"), so aliases are folded in.
var canonical = map[string]Label{
	"happy":     Happy,
	"happiness": Happy,
	"joy":       Happy,
	"sad":       Sad,
	"sadness":   Sad,
	"depressed": Sad,
	"angry":     Angry,
	"anger":     Angry,
	"anxious":   Anxious,
	"anxiety":   Anxious,
	"stressed":  Anxious,
	"worried":   Anxious,
	"fearful":   Fearful,
	"fear":      Fearful,
	"surprised": Surprised,
	"surprise":  Surprised,
	"disgusted": Disgusted,
	"disgust":   Disgusted,
	"neutral":   Neutral,
	"calm":      Neutral,
}

// Canonical normalizes a raw classifier label. Unknown labels map to
// Neutral rather than failing: a label the engine does not recognize
// should not block an assessment.
func Canonical(raw string) Label {
	if l, ok := canonical[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return l
	}
	return Neutral
}

// Negative reports whether a label counts as a negative emotional state.
func (l Label) Negative() bool {
	switch l {
	case Sad, Angry, Anxious, Fearful, Disgusted:
		return true
	default:
		return false
	}
}

// StressCategory is the five-level ordered stress classification.
type StressCategory string

const (
	NoApparentStress StressCategory = "No Apparent Stress" // combined score < 0.20
	LowStress        StressCategory = "Low Stress"         // [0.20, 0.40)
	ModerateStress   StressCategory = "Moderate Stress"    // [0.40, 0.60)
	HighStress       StressCategory = "High Stress"        // [0.60, 0.80)
	SevereStress     StressCategory = "Severe Stress"      // >= 0.80
)

// severityOrder indexes categories from least to most severe.
var severityOrder = map[StressCategory]int{
	NoApparentStress: 0,
	LowStress:        1,
	ModerateStress:   2,
	HighStress:       3,
	SevereStress:     4,
}

// Severity returns the category's position in the total order
// (0 = No Apparent Stress .. 4 = Severe Stress).
func (c StressCategory) Severity() int {
	return severityOrder[c]
}

// High reports whether the category is High Stress or Severe Stress.
func (c StressCategory) High() bool {
	return c.Severity() >= severityOrder[HighStress]
}

// Low reports whether the category is No Apparent Stress or Low Stress.
func (c StressCategory) Low() bool {
	return c.Severity() <= severityOrder[LowStress]
}

// CategoryFromScore maps a combined [0,1] stress score onto the fixed
// category thresholds. Boundaries are inclusive on the lower edge:
// exactly 0.20 is Low Stress, exactly 0.80 is Severe Stress.
func CategoryFromScore(s float64) StressCategory {
	switch {
	case s < 0.20:
		return NoApparentStress
	case s < 0.40:
		return LowStress
	case s < 0.60:
		return ModerateStress
	case s < 0.80:
		return HighStress
	default:
		return SevereStress
	}
}

// RiskLevel is the four-level ordered risk classification.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"      // risk score 0-30
	RiskModerate RiskLevel = "Moderate" // 31-60
	RiskHigh     RiskLevel = "High"     // 61-85
	RiskCritical RiskLevel = "Critical" // 86-100
)

// RiskFromScore maps an integer risk score [0,100] to its level.
func RiskFromScore(score int) RiskLevel {
	switch {
	case score <= 30:
		return RiskLow
	case score <= 60:
		return RiskModerate
	case score <= 85:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// RiskScore converts a combined [0,1] stress score to the integer
// risk score, rounding half away from zero.
func RiskScore(s float64) int {
	score := int(math.Round(s * 100))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Modality identifies one independent signal source.
type Modality string

const (
	ModalityText       Modality = "text"
	ModalityImage      Modality = "image"
	ModalityBehavioral Modality = "behavioral"
)

// Modalities lists all modalities in descending base-weight order.
// The order doubles as the primary-emotion preference order.
var Modalities = []Modality{ModalityText, ModalityImage, ModalityBehavioral}
