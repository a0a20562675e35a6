// Package fusion combines per-modality classifier results into a single
// risk assessment. The engine is pure computation: no I/O, no clocks,
// no shared state, so one instance serves every request concurrently.
package fusion

import (
	"errors"
	"fmt"

	"github.com/mbd888/mindfuse/internal/emotion"
)

// ErrNoSignal is returned when neither a text nor an image result is
// supplied and no crisis phrase was found. Behavioral history alone
// never justifies a fresh assessment; it only shades an assessment
// anchored on new input. A crisis signal is always sufficient on its
// own: it proves raw text was in hand even if the classifier result
// for it was unusable.
var ErrNoSignal = errors.New("no usable signal: text or image required")

const (
	// DefaultEscalationSpread is the max-minus-min stress gap above
	// which modalities are considered to disagree.
	DefaultEscalationSpread = 0.4
	// DefaultEscalationFloor scales the highest modality score into a
	// floor for the combined score when signals disagree.
	DefaultEscalationFloor = 0.5
)

// Input carries everything one evaluation needs. Text and Image are the
// corrected external results; Behavioral is derived from the user's
// profile. Evidence holds extra per-modality explanation lines from the
// correction layer, Unavailable a note for each modality that was
// supplied upstream but failed validation and was dropped.
type Input struct {
	Text        *ModalityResult
	Image       *ModalityResult
	Behavioral  *ModalityResult
	Crisis      *CrisisSignal
	Evidence    map[emotion.Modality][]string
	Unavailable map[emotion.Modality]string
}

func (in Input) result(m emotion.Modality) *ModalityResult {
	switch m {
	case emotion.ModalityText:
		return in.Text
	case emotion.ModalityImage:
		return in.Image
	case emotion.ModalityBehavioral:
		return in.Behavioral
	default:
		return nil
	}
}

// present returns the supplied results in descending base-weight order.
func (in Input) present() []*ModalityResult {
	out := make([]*ModalityResult, 0, len(emotion.Modalities))
	for _, m := range emotion.Modalities {
		if r := in.result(m); r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Engine fuses modality results under a fixed weighting policy.
type Engine struct {
	weights          Weights
	escalationSpread float64
	escalationFloor  float64
}

// NewEngine creates an engine with the default weights and escalation
// thresholds.
func NewEngine() *Engine {
	return &Engine{
		weights:          DefaultWeights(),
		escalationSpread: DefaultEscalationSpread,
		escalationFloor:  DefaultEscalationFloor,
	}
}

// WithWeights overrides the base modality weights. Zero or negative
// entries exclude that modality from the weighted sum.
func (e *Engine) WithWeights(w Weights) *Engine {
	e.weights = w
	return e
}

// WithEscalation overrides the disagreement thresholds: spread is the
// gap that triggers escalation, floor the fraction of the highest
// score the combined score is raised to.
func (e *Engine) WithEscalation(spread, floor float64) *Engine {
	e.escalationSpread = spread
	e.escalationFloor = floor
	return e
}

// Fuse produces a RiskAssessment from the supplied modality results.
//
// A crisis signal short-circuits the numeric path: the assessment is
// pinned to Severe Stress / Critical / 100 regardless of what any
// classifier scored, and the matched phrase becomes the reason.
// Otherwise the present modalities are combined under renormalized
// weights, with the combined score floored when they sharply disagree.
func (e *Engine) Fuse(in Input) (*RiskAssessment, error) {
	if in.Text == nil && in.Image == nil && in.Crisis == nil {
		return nil, ErrNoSignal
	}
	present := in.present()

	a := &RiskAssessment{
		Primary:      e.primaryEmotion(present),
		Explanations: e.explain(in),
	}

	if in.Crisis != nil {
		a.CombinedStress = 1
		a.StressCategory = emotion.SevereStress
		a.RiskScore = 100
		a.RiskLevel = emotion.RiskCritical
		a.CrisisFlag = true
		a.CrisisReason = in.Crisis.MatchedPhrase
		return a, nil
	}

	combined, spread, escalated := e.combine(present)
	a.CombinedStress = combined
	a.Spread = spread
	a.Escalated = escalated
	a.StressCategory = emotion.CategoryFromScore(combined)
	a.RiskScore = emotion.RiskScore(combined)
	a.RiskLevel = emotion.RiskFromScore(a.RiskScore)

	if escalated {
		e.noteEscalation(a, present)
	}
	return a, nil
}

// combine computes the renormalized weighted stress score and applies
// disagreement escalation.
func (e *Engine) combine(present []*ModalityResult) (combined, spread float64, escalated bool) {
	var sumW, weighted float64
	minS, maxS := present[0].StressScore, present[0].StressScore
	for _, r := range present {
		w := e.weights[r.Modality]
		if w > 0 {
			sumW += w
			weighted += w * r.StressScore
		}
		if r.StressScore < minS {
			minS = r.StressScore
		}
		if r.StressScore > maxS {
			maxS = r.StressScore
		}
	}
	if sumW <= 0 {
		// All present modalities were weighted out; fall back to a
		// plain mean rather than failing the evaluation.
		for _, r := range present {
			weighted += r.StressScore
		}
		sumW = float64(len(present))
	}
	combined = weighted / sumW

	spread = maxS - minS
	if spread > e.escalationSpread {
		if floor := e.escalationFloor * maxS; floor > combined {
			combined = floor
			escalated = true
		}
	}
	return combined, spread, escalated
}

// primaryEmotion picks the label from the present modality with the
// highest base weight; ties go to the higher confidence.
func (e *Engine) primaryEmotion(present []*ModalityResult) PrimaryEmotion {
	var best *ModalityResult
	for _, r := range present {
		if best == nil {
			best = r
			continue
		}
		bw, rw := e.weights[best.Modality], e.weights[r.Modality]
		if rw > bw || (rw == bw && r.Confidence > best.Confidence) {
			best = r
		}
	}
	if best == nil {
		return PrimaryEmotion{
			Label:       emotion.Neutral,
			Description: emotion.Describe(emotion.Neutral),
		}
	}
	return PrimaryEmotion{
		Label:       best.Label,
		Description: emotion.Describe(best.Label),
		Confidence:  best.Confidence,
	}
}

func (e *Engine) explain(in Input) map[emotion.Modality]Explanation {
	out := make(map[emotion.Modality]Explanation, len(emotion.Modalities))
	for _, m := range emotion.Modalities {
		r := in.result(m)
		if r == nil {
			summary := fmt.Sprintf("No %s signal provided.", m)
			if note := in.Unavailable[m]; note != "" {
				summary = note
			}
			out[m] = Explanation{HasSignal: false, Summary: summary}
			continue
		}
		ev := []string{fmt.Sprintf("label %s, confidence %.2f, stress %.2f", r.Label, r.Confidence, r.StressScore)}
		ev = append(ev, in.Evidence[m]...)
		out[m] = Explanation{
			HasSignal: true,
			Summary:   summarize(m, r),
			Evidence:  ev,
		}
	}
	return out
}

func summarize(m emotion.Modality, r *ModalityResult) string {
	switch m {
	case emotion.ModalityText:
		return fmt.Sprintf("Text reads as %s with stress %.2f.", r.Label, r.StressScore)
	case emotion.ModalityImage:
		return fmt.Sprintf("Facial expression reads as %s with stress %.2f.", r.Label, r.StressScore)
	default:
		return fmt.Sprintf("Recent history trends %s with average stress %.2f.", r.Label, r.StressScore)
	}
}

// noteEscalation records on the loudest modality that it pulled the
// combined score up.
func (e *Engine) noteEscalation(a *RiskAssessment, present []*ModalityResult) {
	loudest := present[0]
	for _, r := range present[1:] {
		if r.StressScore > loudest.StressScore {
			loudest = r
		}
	}
	ex := a.Explanations[loudest.Modality]
	ex.Evidence = append(ex.Evidence, fmt.Sprintf(
		"signals disagree (spread %.2f); combined score floored at %.2f of this signal", a.Spread, e.escalationFloor))
	a.Explanations[loudest.Modality] = ex
}
