// Package profile owns per-user behavioral history: the bounded entry
// log, the emoji fingerprint, the running confidence mean, and the
// high-risk flag. Stores serialize commits per user so overlapping
// requests from the same user never lose an entry.
package profile

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/mbd888/mindfuse/internal/emotion"
	"github.com/mbd888/mindfuse/internal/idgen"
	"github.com/mbd888/mindfuse/internal/syncutil"
)

var (
	// ErrProfileNotFound is returned when no record exists for a user.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrConflict is returned when a commit lost a race against a
	// concurrent commit for the same user. Callers retry a bounded
	// number of times before giving up.
	ErrConflict = errors.New("profile commit conflict")
)

// FlagChange reports what a flag policy did to a profile.
type FlagChange int

const (
	FlagUnchanged FlagChange = iota
	FlagRaised
	FlagCleared
)

// FlagPolicy recomputes a profile's high-risk flag after an entry is
// appended. It runs inside the store's per-user critical section, so
// the flag can never be computed from a history it did not see. Apply
// mutates the profile's flag fields and reports what changed. Window
// is how many most-recent entries Apply inspects; stores that do not
// hold full history in memory must load at least that many.
type FlagPolicy interface {
	Window() int
	Apply(p *Profile, now time.Time) FlagChange
}

// CommitResult reports what one commit changed. Profile is a snapshot
// whose History is truncated to the most recent entries; use Get for
// the full log.
type CommitResult struct {
	Profile     *Profile
	Entry       HistoryEntry
	FlagRaised  bool
	FlagCleared bool
}

// commitSnapshotEntries bounds CommitResult.Profile.History.
const commitSnapshotEntries = 5

// HistoryPage selects a slice of a user's history, newest first.
// Before filters to entries strictly older than the given time; zero
// means start from the newest.
type HistoryPage struct {
	Before   time.Time
	BeforeID string
	Limit    int
}

// Store is the authoritative profile persistence interface.
type Store interface {
	// Get returns a snapshot of the user's profile.
	Get(ctx context.Context, userID string) (*Profile, error)
	// Commit appends an entry, updates the fingerprint and running
	// confidence mean, prunes old history, and re-evaluates the flag
	// policy, all atomically with respect to other commits for the
	// same user.
	Commit(ctx context.Context, userID string, entry HistoryEntry) (*CommitResult, error)
	// History returns a page of entries, newest first, and whether
	// more remain.
	History(ctx context.Context, userID string, page HistoryPage) ([]HistoryEntry, bool, error)
	// Reset removes the user's record entirely (data erasure).
	Reset(ctx context.Context, userID string) error
	// SetHighRisk sets or clears the flag by admin action. Clearing
	// records the time so the flag policy does not immediately re-raise
	// the flag from the same history.
	SetHighRisk(ctx context.Context, userID string, flagged bool, reason string) error
	// ListFlagged returns every currently flagged profile.
	ListFlagged(ctx context.Context) ([]FlagSummary, error)
	// Stats aggregates the store.
	Stats(ctx context.Context) (Stats, error)
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// fillEntryDefaults assigns an ID and timestamp where the caller left
// them zero.
func fillEntryDefaults(entry *HistoryEntry) {
	if entry.ID == "" {
		entry.ID = idgen.WithPrefix("ent_")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
}

// accumulate folds one committed entry into the profile's aggregates:
// the fingerprint count, the running confidence mean, and the update
// time. History bookkeeping is the store's job.
func accumulate(p *Profile, entry HistoryEntry) {
	if p.EmojiFingerprint == nil {
		p.EmojiFingerprint = make(map[emotion.Label]int)
	}
	p.EmojiFingerprint[entry.Label]++

	total := p.AverageConfidence*float64(p.AnalysisCount) + entry.Confidence
	p.AnalysisCount++
	p.AverageConfidence = total / float64(p.AnalysisCount)
	p.UpdatedAt = entry.Timestamp
}

// applyCommit mutates p in place with everything a commit implies.
// Callers hold the per-user critical section.
func applyCommit(p *Profile, entry *HistoryEntry, policy FlagPolicy) FlagChange {
	fillEntryDefaults(entry)

	p.History = append(p.History, *entry)
	p.prune(entry.Timestamp)
	accumulate(p, *entry)

	if policy == nil {
		return FlagUnchanged
	}
	return policy.Apply(p, entry.Timestamp)
}

// MemoryStore is an in-memory Store for development and tests.
// Committed profiles are copy-on-write: readers snapshot under a short
// map lock while each user's commits are serialized by a sharded
// per-key mutex.
type MemoryStore struct {
	mu       sync.RWMutex
	locks    syncutil.ShardedMutex
	profiles map[string]*Profile
	policy   FlagPolicy
}

// NewMemoryStore creates an empty in-memory store. policy may be nil.
func NewMemoryStore(policy FlagPolicy) *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*Profile),
		policy:   policy,
	}
}

func (m *MemoryStore) Get(ctx context.Context, userID string) (*Profile, error) {
	m.mu.RLock()
	p, ok := m.profiles[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (m *MemoryStore) Commit(ctx context.Context, userID string, entry HistoryEntry) (*CommitResult, error) {
	unlock := m.locks.Lock(userID)
	defer unlock()

	m.mu.RLock()
	cur := m.profiles[userID]
	m.mu.RUnlock()

	var next *Profile
	if cur == nil {
		now := entry.Timestamp
		if now.IsZero() {
			now = time.Now()
		}
		next = &Profile{
			UserID:           userID,
			EmojiFingerprint: make(map[emotion.Label]int),
			CreatedAt:        now,
		}
	} else {
		next = cur.Clone()
	}

	change := applyCommit(next, &entry, m.policy)

	m.mu.Lock()
	m.profiles[userID] = next
	m.mu.Unlock()

	snapshot := next.Clone()
	snapshot.History = snapshot.Recent(commitSnapshotEntries)
	return &CommitResult{
		Profile:     snapshot,
		Entry:       entry,
		FlagRaised:  change == FlagRaised,
		FlagCleared: change == FlagCleared,
	}, nil
}

func (m *MemoryStore) History(ctx context.Context, userID string, page HistoryPage) ([]HistoryEntry, bool, error) {
	m.mu.RLock()
	p, ok := m.profiles[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, false, ErrProfileNotFound
	}

	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}

	// History is stored oldest first; serve newest first.
	var out []HistoryEntry
	for i := len(p.History) - 1; i >= 0; i-- {
		e := p.History[i]
		if !page.Before.IsZero() {
			if e.Timestamp.After(page.Before) {
				continue
			}
			if e.Timestamp.Equal(page.Before) && (page.BeforeID == "" || e.ID >= page.BeforeID) {
				continue
			}
		}
		out = append(out, e)
		if len(out) == limit+1 {
			break
		}
	}
	if len(out) > limit {
		return out[:limit], true, nil
	}
	return out, false, nil
}

func (m *MemoryStore) Reset(ctx context.Context, userID string) error {
	unlock := m.locks.Lock(userID)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[userID]; !ok {
		return ErrProfileNotFound
	}
	delete(m.profiles, userID)
	return nil
}

func (m *MemoryStore) SetHighRisk(ctx context.Context, userID string, flagged bool, reason string) error {
	unlock := m.locks.Lock(userID)
	defer unlock()

	m.mu.RLock()
	cur := m.profiles[userID]
	m.mu.RUnlock()
	if cur == nil {
		return ErrProfileNotFound
	}

	next := cur.Clone()
	setFlag(next, flagged, reason, time.Now())

	m.mu.Lock()
	m.profiles[userID] = next
	m.mu.Unlock()
	return nil
}

// setFlag applies an admin flag change to a profile.
func setFlag(p *Profile, flagged bool, reason string, now time.Time) {
	p.HighRiskFlag = flagged
	p.HighRiskReason = reason
	if flagged {
		p.FlaggedAt = now
	} else {
		p.HighRiskReason = ""
		p.FlagClearedAt = now
	}
	p.UpdatedAt = now
}

func (m *MemoryStore) ListFlagged(ctx context.Context) ([]FlagSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []FlagSummary
	for _, p := range m.profiles {
		if !p.HighRiskFlag {
			continue
		}
		out = append(out, FlagSummary{
			UserID:    p.UserID,
			Reason:    p.HighRiskReason,
			FlaggedAt: p.FlaggedAt,
			LastSeen:  p.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FlaggedAt.After(out[j].FlaggedAt) })
	return out, nil
}

func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{TotalProfiles: len(m.profiles)}
	for _, p := range m.profiles {
		if p.HighRiskFlag {
			s.FlaggedProfiles++
		}
		s.TotalAnalyses += p.AnalysisCount
	}
	return s, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
