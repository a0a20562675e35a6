// Package correction applies deterministic post-processing to raw
// classifier output before fusion: crisis-phrase detection, keyword
// overrides on text, and label corrections on facial expressions.
// Everything here is pure rule evaluation against a compiled lexicon.
package correction

import (
	"github.com/mbd888/mindfuse/internal/emotion"
	"github.com/mbd888/mindfuse/internal/fusion"
	"github.com/mbd888/mindfuse/internal/lexicon"
)

// TextSignal is the raw output of an upstream text classifier plus the
// text itself. The content is needed here because crisis detection and
// keyword overrides match on raw wording, not on classifier labels.
type TextSignal struct {
	Content     string
	Label       string
	Confidence  float64
	StressScore float64
	Secondary   []fusion.LabelScore
}

// ImageSignal is the raw output of an upstream facial-expression
// classifier: the top label plus the full expression distribution.
type ImageSignal struct {
	Label       string
	Confidence  float64
	StressScore float64
	Expressions []fusion.LabelScore
}

// TextResult is the corrected text modality plus the trace of what the
// rules did, kept for explanation evidence.
type TextResult struct {
	Result           fusion.ModalityResult
	Crisis           *fusion.CrisisSignal
	ModelLabel       emotion.Label
	Override         *lexicon.OverrideMatch
	StressKeywords   []string
	PositiveKeywords []string
}

// Overridden reports whether a keyword override replaced the model's label.
func (r TextResult) Overridden() bool {
	return r.Override != nil && r.Override.Label != r.ModelLabel
}

// ImageResult is the corrected image modality plus the rule trace.
type ImageResult struct {
	Result     fusion.ModalityResult
	ModelLabel emotion.Label
	Rule       string // name of the rule that fired, "" if none
}

// Corrected reports whether a rule replaced the model's label.
func (r ImageResult) Corrected() bool { return r.Rule != "" }

// Layer evaluates the correction rules. One instance is shared across
// requests; it holds only immutable configuration.
type Layer struct {
	lex   *lexicon.Lexicon
	rules []ImageRule
}

// NewLayer creates a correction layer over the given lexicon with the
// default image rules.
func NewLayer(lex *lexicon.Lexicon) *Layer {
	return &Layer{lex: lex, rules: DefaultImageRules(DefaultRuleThresholds())}
}

// WithImageRules replaces the image correction rules. Rules run in
// slice order; the first match wins.
func (l *Layer) WithImageRules(rules ...ImageRule) *Layer {
	l.rules = rules
	return l
}

// Text corrects a raw text signal.
//
// Crisis phrases are always scanned first and independently of
// anything else: a crisis match never changes the label or the stress
// score, it only attaches a CrisisSignal for the engine to act on.
// Keyword overrides replace the model's label only when exactly one
// override category matches; an ambiguous text leaves the model's
// label alone.
func (l *Layer) Text(sig TextSignal) TextResult {
	out := TextResult{
		ModelLabel:       emotion.Canonical(sig.Label),
		StressKeywords:   l.lex.MatchStress(sig.Content),
		PositiveKeywords: l.lex.MatchPositive(sig.Content),
	}
	out.Result = fusion.ModalityResult{
		Modality:    emotion.ModalityText,
		Label:       out.ModelLabel,
		Confidence:  clamp01(sig.Confidence),
		StressScore: clamp01(sig.StressScore),
		Secondary:   sig.Secondary,
	}

	out.Crisis = l.Crisis(sig.Content)

	if matches := l.lex.MatchOverrides(sig.Content); len(matches) == 1 {
		m := matches[0]
		out.Override = &m
		out.Result.Label = m.Label
	}
	return out
}

// Crisis scans raw text for crisis phrases without building a modality
// result. Callers use it when the text classifier output is unusable
// but the raw wording is still in hand; crisis detection is never
// skipped just because a score failed validation.
func (l *Layer) Crisis(content string) *fusion.CrisisSignal {
	if phrase, ok := l.lex.MatchCrisis(content); ok {
		return fusion.NewCrisisSignal(phrase)
	}
	return nil
}

// Image corrects a raw image signal by running the rules in order
// against the expression distribution. When a rule fires, the label
// and confidence follow the corrected expression; the stress score is
// left alone because it was computed from the full distribution, not
// from the top label.
func (l *Layer) Image(sig ImageSignal) ImageResult {
	out := ImageResult{ModelLabel: emotion.Canonical(sig.Label)}
	out.Result = fusion.ModalityResult{
		Modality:    emotion.ModalityImage,
		Label:       out.ModelLabel,
		Confidence:  clamp01(sig.Confidence),
		StressScore: clamp01(sig.StressScore),
		Secondary:   sig.Expressions,
	}

	d := newDistribution(out.ModelLabel, clamp01(sig.Confidence), sig.Expressions)
	for _, rule := range l.rules {
		label, score, ok := rule.Apply(d)
		if !ok {
			continue
		}
		out.Rule = rule.Name
		out.Result.Label = label
		out.Result.Confidence = score
		break
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
