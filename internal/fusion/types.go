package fusion

import (
	"github.com/mbd888/mindfuse/internal/emotion"
)

// LabelScore pairs a canonical label with a classifier score in [0,1].
type LabelScore struct {
	Label emotion.Label `json:"label"`
	Score float64       `json:"score"`
}

// ModalityResult is one classifier's view of a single event: the
// dominant label, how sure the classifier was, and its own stress
// estimate. Correction runs on these before they reach the engine.
type ModalityResult struct {
	Modality    emotion.Modality `json:"modality"`
	Label       emotion.Label    `json:"label"`
	Confidence  float64          `json:"confidence"`
	StressScore float64          `json:"stressScore"`
	Secondary   []LabelScore     `json:"secondary,omitempty"`
}

// CrisisSignal marks crisis language found in raw text. Its presence
// overrides every numeric signal in the same evaluation.
type CrisisSignal struct {
	MatchedPhrase string            `json:"matchedPhrase"`
	Severity      emotion.RiskLevel `json:"severity"`
}

// NewCrisisSignal builds a signal for a matched phrase. Severity is
// always Critical; there is no lesser crisis.
func NewCrisisSignal(phrase string) *CrisisSignal {
	return &CrisisSignal{MatchedPhrase: phrase, Severity: emotion.RiskCritical}
}

// PrimaryEmotion is the label shown to the user, with its plain-language
// description and the confidence of the modality it was taken from.
type PrimaryEmotion struct {
	Label       emotion.Label `json:"label"`
	Description string        `json:"description"`
	Confidence  float64       `json:"confidence"`
}

// Explanation tells the user what one modality contributed. Absent
// modalities still get an entry with HasSignal=false so the response
// shape is stable.
type Explanation struct {
	HasSignal bool     `json:"hasSignal"`
	Summary   string   `json:"summary"`
	Evidence  []string `json:"evidence,omitempty"`
}

// RiskAssessment is the product of one evaluation.
//
// StressCategory and RiskScore are both derived from CombinedStress,
// so a higher category never pairs with a lower score. When CrisisFlag
// is set the numeric combination was skipped entirely: CombinedStress
// is pinned to 1, RiskScore to 100, and CrisisReason carries the
// matched phrase.
type RiskAssessment struct {
	Primary        PrimaryEmotion                   `json:"primaryEmotion"`
	StressCategory emotion.StressCategory           `json:"stressCategory"`
	CombinedStress float64                          `json:"combinedStress"`
	RiskScore      int                              `json:"riskScore"`
	RiskLevel      emotion.RiskLevel                `json:"riskLevel"`
	CrisisFlag     bool                             `json:"crisisFlag"`
	CrisisReason   string                           `json:"crisisReason,omitempty"`
	Spread         float64                          `json:"spread"`
	Escalated      bool                             `json:"escalated"`
	Explanations   map[emotion.Modality]Explanation `json:"explanations"`
}

// Weights assigns each modality its share of the combined score.
// Missing modalities are dropped and the remaining weights renormalized
// at fusion time, so the values only need to be proportional.
type Weights map[emotion.Modality]float64

// DefaultWeights returns the base weighting: text carries half the
// signal, the face most of the rest, history the least.
func DefaultWeights() Weights {
	return Weights{
		emotion.ModalityText:       0.5,
		emotion.ModalityImage:      0.3,
		emotion.ModalityBehavioral: 0.2,
	}
}
