package profile

import (
	"math"
	"testing"
	"time"

	"github.com/mbd888/mindfuse/internal/emotion"
)

func TestSignalEmptyProfile(t *testing.T) {
	var p *Profile
	got := p.Signal()
	if got.Modality != emotion.ModalityBehavioral {
		t.Errorf("modality = %v, want behavioral", got.Modality)
	}
	if got.Label != emotion.Neutral {
		t.Errorf("label = %v, want %v", got.Label, emotion.Neutral)
	}
	if got.StressScore != defaultStressScore {
		t.Errorf("stress = %v, want default %v", got.StressScore, defaultStressScore)
	}
	if got.Confidence != defaultConfidence {
		t.Errorf("confidence = %v, want default %v", got.Confidence, defaultConfidence)
	}

	empty := &Profile{UserID: "u"}
	if got := empty.Signal(); got.StressScore != defaultStressScore {
		t.Errorf("empty history stress = %v, want default", got.StressScore)
	}
}

func TestSignalWeighsRecentEntriesHeavier(t *testing.T) {
	now := time.Now()
	p := &Profile{UserID: "u"}
	// Nine calm entries followed by one severe spike.
	for i := 0; i < 9; i++ {
		p.History = append(p.History, entry(emotion.Neutral, 0.5, 0.0, now.Add(time.Duration(i)*time.Minute)))
	}
	p.History = append(p.History, entry(emotion.Anxious, 0.5, 1.0, now.Add(9*time.Minute)))

	got := p.Signal()

	// Linear decay over 10 entries: the newest carries 10/55 of the
	// weight, so the spike lands well above the plain mean of 0.1.
	want := 10.0 / 55.0
	if math.Abs(got.StressScore-want) > 1e-9 {
		t.Errorf("stress = %v, want %v", got.StressScore, want)
	}
}

func TestSignalWindowIgnoresOldEntries(t *testing.T) {
	now := time.Now()
	p := &Profile{UserID: "u"}
	// Five severe entries that should fall outside the window.
	for i := 0; i < 5; i++ {
		p.History = append(p.History, entry(emotion.Angry, 0.5, 1.0, now.Add(time.Duration(i)*time.Minute)))
	}
	for i := 5; i < 5+BehavioralWindow; i++ {
		p.History = append(p.History, entry(emotion.Neutral, 0.5, 0.0, now.Add(time.Duration(i)*time.Minute)))
	}

	got := p.Signal()
	if got.StressScore != 0 {
		t.Errorf("stress = %v, want 0 (old spikes outside window)", got.StressScore)
	}
	if got.Label != emotion.Neutral {
		t.Errorf("label = %v, want %v", got.Label, emotion.Neutral)
	}
}

func TestSignalMostFrequentLabel(t *testing.T) {
	now := time.Now()
	p := &Profile{UserID: "u"}
	for i, l := range []emotion.Label{emotion.Happy, emotion.Sad, emotion.Happy, emotion.Neutral} {
		p.History = append(p.History, entry(l, 0.5, 0.2, now.Add(time.Duration(i)*time.Minute)))
	}

	if got := p.Signal(); got.Label != emotion.Happy {
		t.Errorf("label = %v, want most frequent %v", got.Label, emotion.Happy)
	}
}

func TestSignalLabelTieGoesToMostRecent(t *testing.T) {
	now := time.Now()
	p := &Profile{UserID: "u"}
	p.History = append(p.History, entry(emotion.Sad, 0.5, 0.5, now))
	p.History = append(p.History, entry(emotion.Happy, 0.5, 0.1, now.Add(time.Minute)))

	if got := p.Signal(); got.Label != emotion.Happy {
		t.Errorf("label = %v, want the most recent on a tie", got.Label)
	}
}

func TestSignalConfidenceIsWindowMean(t *testing.T) {
	now := time.Now()
	p := &Profile{UserID: "u"}
	p.History = append(p.History, entry(emotion.Neutral, 0.4, 0.3, now))
	p.History = append(p.History, entry(emotion.Neutral, 0.8, 0.3, now.Add(time.Minute)))

	got := p.Signal()
	if math.Abs(got.Confidence-0.6) > 1e-9 {
		t.Errorf("confidence = %v, want 0.6", got.Confidence)
	}
}
