package profile

import (
	"time"

	"github.com/mbd888/mindfuse/internal/emotion"
)

// History bounds. Entries past either limit are pruned on commit, so a
// profile never grows without bound and old signal ages out.
const (
	MaxHistoryEntries = 500
	MaxHistoryAge     = 90 * 24 * time.Hour
)

// HistoryEntry is one committed assessment. Entries are kept in
// chronological order, oldest first.
type HistoryEntry struct {
	ID             string                 `json:"id"`
	Timestamp      time.Time              `json:"timestamp"`
	Label          emotion.Label          `json:"label"`
	Confidence     float64                `json:"confidence"`
	StressScore    float64                `json:"stressScore"`
	StressCategory emotion.StressCategory `json:"stressCategory"`
	RiskScore      int                    `json:"riskScore"`
	CrisisFlag     bool                   `json:"crisisFlag"`
}

// Profile is the authoritative per-user behavioral record.
//
// EmojiFingerprint counts every analysis ever committed per primary
// label; unlike History it is never pruned, so the fingerprint reflects
// the whole relationship with the user. AverageConfidence is the
// running mean over all commits, weighted by AnalysisCount.
type Profile struct {
	UserID            string                `json:"userId"`
	History           []HistoryEntry        `json:"history"`
	EmojiFingerprint  map[emotion.Label]int `json:"emojiFingerprint"`
	AverageConfidence float64               `json:"averageConfidence"`
	AnalysisCount     int                   `json:"analysisCount"`
	HighRiskFlag      bool                  `json:"highRiskFlag"`
	HighRiskReason    string                `json:"highRiskReason,omitempty"`
	FlaggedAt         time.Time             `json:"flaggedAt"`
	FlagClearedAt     time.Time             `json:"flagClearedAt"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
}

// Clone returns a deep copy safe to hand outside the store.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.History = make([]HistoryEntry, len(p.History))
	copy(cp.History, p.History)
	cp.EmojiFingerprint = make(map[emotion.Label]int, len(p.EmojiFingerprint))
	for k, v := range p.EmojiFingerprint {
		cp.EmojiFingerprint[k] = v
	}
	return &cp
}

// Recent returns the last n history entries in chronological order.
func (p *Profile) Recent(n int) []HistoryEntry {
	if n <= 0 || len(p.History) == 0 {
		return nil
	}
	if n > len(p.History) {
		n = len(p.History)
	}
	return p.History[len(p.History)-n:]
}

// prune drops entries older than MaxHistoryAge relative to now, then
// trims the oldest entries beyond MaxHistoryEntries.
func (p *Profile) prune(now time.Time) {
	cutoff := now.Add(-MaxHistoryAge)
	i := 0
	for i < len(p.History) && p.History[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		p.History = append(p.History[:0], p.History[i:]...)
	}
	if over := len(p.History) - MaxHistoryEntries; over > 0 {
		p.History = append(p.History[:0], p.History[over:]...)
	}
}

// FlagSummary is one row of the admin high-risk listing.
type FlagSummary struct {
	UserID    string    `json:"userId"`
	Reason    string    `json:"reason"`
	FlaggedAt time.Time `json:"flaggedAt"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Stats aggregates the store for the platform stats endpoint.
type Stats struct {
	TotalProfiles   int `json:"totalProfiles"`
	FlaggedProfiles int `json:"flaggedProfiles"`
	TotalAnalyses   int `json:"totalAnalyses"`
}
