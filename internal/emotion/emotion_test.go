package emotion

import (
	"strings"
	"testing"
)

func TestCategoryThresholdBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  StressCategory
	}{
		{"zero", 0.0, NoApparentStress},
		{"just under low boundary", 0.199999, NoApparentStress},
		{"exactly low boundary", 0.20, LowStress},
		{"just under moderate boundary", 0.399999, LowStress},
		{"exactly moderate boundary", 0.40, ModerateStress},
		{"just under high boundary", 0.599999, ModerateStress},
		{"exactly high boundary", 0.60, HighStress},
		{"just under severe boundary", 0.799999, HighStress},
		{"exactly severe boundary", 0.80, SevereStress},
		{"maximum", 1.0, SevereStress},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CategoryFromScore(tc.score); got != tc.want {
				t.Errorf("CategoryFromScore(%v) = %q, want %q", tc.score, got, tc.want)
			}
		})
	}
}

func TestRiskLevelBands(t *testing.T) {
	tests := []struct {
		score int
		want  RiskLevel
	}{
		{0, RiskLow},
		{30, RiskLow},
		{31, RiskModerate},
		{60, RiskModerate},
		{61, RiskHigh},
		{85, RiskHigh},
		{86, RiskCritical},
		{100, RiskCritical},
	}

	for _, tc := range tests {
		if got := RiskFromScore(tc.score); got != tc.want {
			t.Errorf("RiskFromScore(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestRiskScoreRoundsAndClamps(t *testing.T) {
	tests := []struct {
		combined float64
		want     int
	}{
		{0.0, 0},
		{0.204, 20},
		{0.205, 21},
		{0.455, 46},
		{1.0, 100},
		{1.2, 100},
		{-0.1, 0},
	}

	for _, tc := range tests {
		if got := RiskScore(tc.combined); got != tc.want {
			t.Errorf("RiskScore(%v) = %d, want %d", tc.combined, got, tc.want)
		}
	}
}

func TestCategoryAndScoreMonotonicallyConsistent(t *testing.T) {
	// Walking the score up must never move the category down,
	// and the risk level must never move down either.
	prevCat := NoApparentStress
	prevLevel := RiskLow
	levelOrder := map[RiskLevel]int{RiskLow: 0, RiskModerate: 1, RiskHigh: 2, RiskCritical: 3}

	for s := 0.0; s <= 1.0; s += 0.01 {
		cat := CategoryFromScore(s)
		if cat.Severity() < prevCat.Severity() {
			t.Fatalf("category decreased at score %v: %q after %q", s, cat, prevCat)
		}
		level := RiskFromScore(RiskScore(s))
		if levelOrder[level] < levelOrder[prevLevel] {
			t.Fatalf("risk level decreased at score %v: %q after %q", s, level, prevLevel)
		}
		prevCat, prevLevel = cat, level
	}
}

func TestCanonicalLabelAliases(t *testing.T) {
	tests := []struct {
		raw  string
		want Label
	}{
		{"happy", Happy},
		{"JOY", Happy},
		{" Happiness ", Happy},
		{"sadness", Sad},
		{"anger", Angry},
		{"anxiety", Anxious},
		{"worried", Anxious},
		{"fear", Fearful},
		{"surprise", Surprised},
		{"disgust", Disgusted},
		{"calm", Neutral},
		{"", Neutral},
		{"perplexed", Neutral}, // unknown labels do not block analysis
	}

	for _, tc := range tests {
		if got := Canonical(tc.raw); got != tc.want {
			t.Errorf("Canonical(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNegativeLabels(t *testing.T) {
	negatives := []Label{Sad, Angry, Anxious, Fearful, Disgusted}
	for _, l := range negatives {
		if !l.Negative() {
			t.Errorf("%q should be negative", l)
		}
	}
	for _, l := range []Label{Happy, Neutral, Surprised} {
		if l.Negative() {
			t.Errorf("%q should not be negative", l)
		}
	}
}

func TestSeverityHelpers(t *testing.T) {
	if !HighStress.High() || !SevereStress.High() {
		t.Error("High and Severe must report High()")
	}
	if ModerateStress.High() {
		t.Error("Moderate must not report High()")
	}
	if !NoApparentStress.Low() || !LowStress.Low() {
		t.Error("No Apparent and Low must report Low()")
	}
	if ModerateStress.Low() {
		t.Error("Moderate must not report Low()")
	}
}

func TestGuidanceEscalatesWithStress(t *testing.T) {
	calmTip := GuidanceFor(Happy, NoApparentStress).WellnessTip
	highTip := GuidanceFor(Anxious, HighStress).WellnessTip

	if calmTip == highTip {
		t.Error("guidance should vary with stress category")
	}
	if !strings.Contains(highTip, "professional") {
		t.Errorf("high-stress guidance should point at professional support, got %q", highTip)
	}
}

func TestGuidanceSuggestionCount(t *testing.T) {
	for _, l := range []Label{Happy, Sad, Angry, Anxious, Fearful, Neutral} {
		for _, c := range []StressCategory{NoApparentStress, LowStress, ModerateStress, HighStress, SevereStress} {
			g := GuidanceFor(l, c)
			if len(g.Suggestions) < 3 || len(g.Suggestions) > 5 {
				t.Errorf("GuidanceFor(%q, %q) returned %d suggestions, want 3-5", l, c, len(g.Suggestions))
			}
			if g.Description == "" || g.WellnessTip == "" {
				t.Errorf("GuidanceFor(%q, %q) returned empty text", l, c)
			}
		}
	}
}

func TestCrisisGuidanceAlwaysNamesHotline(t *testing.T) {
	g := CrisisGuidance(Sad)
	if !strings.Contains(g.WellnessTip, "988") {
		t.Errorf("crisis guidance must name the 988 lifeline, got %q", g.WellnessTip)
	}
	if len(g.Suggestions) == 0 {
		t.Error("crisis guidance must carry suggestions")
	}
}

func TestIndicatorHeuristics(t *testing.T) {
	tests := []struct {
		name     string
		label    Label
		combined float64
		ev       IndicatorEvidence
		wantMood string
		wantCog  string
	}{
		{
			name:     "calm happy text",
			label:    Happy,
			combined: 0.1,
			ev:       IndicatorEvidence{TextPresent: true, HasPositiveKeywords: true},
			wantMood: "Positive",
			wantCog:  "Positive language and optimistic expressions",
		},
		{
			name:     "stressed text",
			label:    Anxious,
			combined: 0.7,
			ev:       IndicatorEvidence{TextPresent: true, HasStressKeywords: true},
			wantMood: "Anxious",
			wantCog:  "Stress-related keywords and negative patterns",
		},
		{
			name:     "angry image only",
			label:    Angry,
			combined: 0.6,
			ev:       IndicatorEvidence{ImagePresent: true, ImageLabel: Angry},
			wantMood: "Irritable",
			wantCog:  "Negative facial expressions detected",
		},
		{
			name:     "neutral no evidence",
			label:    Neutral,
			combined: 0.3,
			ev:       IndicatorEvidence{},
			wantMood: "Stable",
			wantCog:  "Neutral language patterns",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Indicators(tc.label, tc.combined, tc.ev)
			if got.MoodTone != tc.wantMood {
				t.Errorf("MoodTone = %q, want %q", got.MoodTone, tc.wantMood)
			}
			if got.CognitiveClues != tc.wantCog {
				t.Errorf("CognitiveClues = %q, want %q", got.CognitiveClues, tc.wantCog)
			}
			if got.SocialCues == "" {
				t.Error("SocialCues must not be empty")
			}
		})
	}
}
