//go:build integration

package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mbd888/mindfuse/internal/emotion"
	"github.com/mbd888/mindfuse/internal/testutil"
)

func setupTestStore(t *testing.T) (*PostgresStore, func()) {
	t.Helper()

	db, cleanup := testutil.PGTest(t)
	store := NewPostgresStore(db, nil)

	if err := store.Migrate(context.Background()); err != nil {
		cleanup()
		t.Fatalf("Failed to migrate: %v", err)
	}
	return store, cleanup
}

func entryAt(ts time.Time, label emotion.Label, stress float64) HistoryEntry {
	return HistoryEntry{
		Timestamp:      ts,
		Label:          label,
		Confidence:     0.9,
		StressScore:    stress,
		StressCategory: emotion.CategoryFromScore(stress),
		RiskScore:      emotion.RiskScore(stress),
	}
}

func TestPostgresProfile_CommitAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	res, err := store.Commit(ctx, "pg-user-1", entryAt(now, "happy", 0.1))
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if res.Entry.ID == "" {
		t.Error("Expected entry ID to be assigned")
	}

	got, err := store.Get(ctx, "pg-user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AnalysisCount != 1 {
		t.Errorf("AnalysisCount: got %d, want 1", got.AnalysisCount)
	}
	if len(got.History) != 1 {
		t.Fatalf("History length: got %d, want 1", len(got.History))
	}
	if got.History[0].Label != "happy" {
		t.Errorf("Label: got %s, want happy", got.History[0].Label)
	}
	if got.EmojiFingerprint["happy"] != 1 {
		t.Errorf("Fingerprint: got %v", got.EmojiFingerprint)
	}
}

func TestPostgresProfile_GetNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.Get(context.Background(), "pg-nobody")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("Expected ErrProfileNotFound, got %v", err)
	}
}

func TestPostgresProfile_HistoryPaging(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)

	for i := 0; i < 5; i++ {
		e := entryAt(base.Add(time.Duration(i)*time.Minute), "neutral", 0.3)
		if _, err := store.Commit(ctx, "pg-user-2", e); err != nil {
			t.Fatalf("Commit %d failed: %v", i, err)
		}
	}

	// First page, newest first.
	page1, hasMore, err := store.History(ctx, "pg-user-2", HistoryPage{Limit: 2})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(page1) != 2 || !hasMore {
		t.Fatalf("Page 1: got %d entries, hasMore=%v", len(page1), hasMore)
	}
	if !page1[0].Timestamp.After(page1[1].Timestamp) {
		t.Error("Expected newest-first ordering")
	}

	// Follow the cursor to the end.
	last := page1[len(page1)-1]
	seen := len(page1)
	for hasMore {
		var page []HistoryEntry
		page, hasMore, err = store.History(ctx, "pg-user-2", HistoryPage{
			Before:   last.Timestamp,
			BeforeID: last.ID,
			Limit:    2,
		})
		if err != nil {
			t.Fatalf("History page failed: %v", err)
		}
		if len(page) == 0 {
			break
		}
		seen += len(page)
		last = page[len(page)-1]
	}
	if seen != 5 {
		t.Errorf("Walked %d entries, want 5", seen)
	}
}

func TestPostgresProfile_SetHighRiskAndListFlagged(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	if _, err := store.Commit(ctx, "pg-user-3", entryAt(now, "anxious", 0.8)); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if err := store.SetHighRisk(ctx, "pg-user-3", true, "manual review"); err != nil {
		t.Fatalf("SetHighRisk failed: %v", err)
	}

	flagged, err := store.ListFlagged(ctx)
	if err != nil {
		t.Fatalf("ListFlagged failed: %v", err)
	}
	if len(flagged) != 1 || flagged[0].UserID != "pg-user-3" {
		t.Fatalf("ListFlagged: got %+v", flagged)
	}
	if flagged[0].Reason != "manual review" {
		t.Errorf("Reason: got %q", flagged[0].Reason)
	}

	// Clearing stamps FlagClearedAt and empties the reason.
	if err := store.SetHighRisk(ctx, "pg-user-3", false, ""); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	got, err := store.Get(ctx, "pg-user-3")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.HighRiskFlag || got.FlagClearedAt.IsZero() {
		t.Errorf("Expected cleared flag with stamp, got flag=%v clearedAt=%v",
			got.HighRiskFlag, got.FlagClearedAt)
	}

	if err := store.SetHighRisk(ctx, "pg-nobody", true, "x"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Expected ErrProfileNotFound for unknown user, got %v", err)
	}
}

func TestPostgresProfile_ResetAndStats(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	for _, user := range []string{"pg-user-4", "pg-user-5"} {
		if _, err := store.Commit(ctx, user, entryAt(now, "sad", 0.5)); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalProfiles != 2 || stats.TotalAnalyses != 2 {
		t.Errorf("Stats: got %+v", stats)
	}

	if err := store.Reset(ctx, "pg-user-4"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := store.Get(ctx, "pg-user-4"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Expected profile gone after Reset, got %v", err)
	}
	if err := store.Reset(ctx, "pg-user-4"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Expected ErrProfileNotFound on double Reset, got %v", err)
	}
}
