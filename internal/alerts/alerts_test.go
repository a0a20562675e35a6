package alerts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockNotifier records raised alerts for verification.
type mockNotifier struct {
	mu     sync.Mutex
	raised []*Alert
}

func (m *mockNotifier) AlertRaised(a *Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raised = append(m.raised, a)
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.raised)
}

func TestAlerts_HighStressOpensAlert(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	a, err := svc.RecordHighStress(ctx, "user-1")
	if err != nil {
		t.Fatalf("RecordHighStress failed: %v", err)
	}
	if !strings.HasPrefix(a.ID, "alr_") {
		t.Errorf("Expected alr_ id prefix, got %s", a.ID)
	}
	if a.Status != StatusOpen {
		t.Errorf("Expected status open, got %s", a.Status)
	}
	if a.Severity != SeverityHigh {
		t.Errorf("Expected severity high, got %s", a.Severity)
	}
	if a.Cause != CauseHighStress {
		t.Errorf("Expected cause high_stress, got %s", a.Cause)
	}
	if a.StressCount != 1 {
		t.Errorf("Expected stress count 1, got %d", a.StressCount)
	}
}

func TestAlerts_AccumulationEscalatesAtThree(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	first, err := svc.RecordHighStress(ctx, "user-1")
	if err != nil {
		t.Fatalf("RecordHighStress failed: %v", err)
	}

	second, err := svc.RecordHighStress(ctx, "user-1")
	if err != nil {
		t.Fatalf("RecordHighStress failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected accumulation on alert %s, got new alert %s", first.ID, second.ID)
	}
	if second.Severity != SeverityHigh {
		t.Errorf("Expected severity still high at count 2, got %s", second.Severity)
	}

	third, err := svc.RecordHighStress(ctx, "user-1")
	if err != nil {
		t.Fatalf("RecordHighStress failed: %v", err)
	}
	if third.StressCount != 3 {
		t.Errorf("Expected stress count 3, got %d", third.StressCount)
	}
	if third.Severity != SeverityCritical {
		t.Errorf("Expected severity critical at count 3, got %s", third.Severity)
	}
}

func TestAlerts_CrisisIsCriticalImmediately(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	a, err := svc.RecordCrisis(ctx, "user-1")
	if err != nil {
		t.Fatalf("RecordCrisis failed: %v", err)
	}
	if a.Severity != SeverityCritical {
		t.Errorf("Expected severity critical, got %s", a.Severity)
	}
	if a.Cause != CauseCrisis {
		t.Errorf("Expected cause crisis, got %s", a.Cause)
	}
	if a.StressCount != 1 {
		t.Errorf("Expected stress count 1, got %d", a.StressCount)
	}
}

func TestAlerts_CrisisEscalatesExistingAlert(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	first, err := svc.RecordHighStress(ctx, "user-1")
	if err != nil {
		t.Fatalf("RecordHighStress failed: %v", err)
	}

	a, err := svc.RecordCrisis(ctx, "user-1")
	if err != nil {
		t.Fatalf("RecordCrisis failed: %v", err)
	}
	if a.ID != first.ID {
		t.Errorf("Expected crisis to land on alert %s, got %s", first.ID, a.ID)
	}
	if a.Severity != SeverityCritical {
		t.Errorf("Expected severity critical, got %s", a.Severity)
	}
	if a.StressCount != 2 {
		t.Errorf("Expected stress count 2, got %d", a.StressCount)
	}
	// The original cause is preserved; only severity escalates.
	if a.Cause != CauseHighStress {
		t.Errorf("Expected cause high_stress, got %s", a.Cause)
	}
}

func TestAlerts_ResolveStartsFreshAlert(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	first, err := svc.RecordHighStress(ctx, "user-1")
	if err != nil {
		t.Fatalf("RecordHighStress failed: %v", err)
	}

	resolved, err := svc.Resolve(ctx, first.ID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.Status != StatusResolved {
		t.Errorf("Expected status resolved, got %s", resolved.Status)
	}
	if resolved.ResolvedAt == nil {
		t.Error("Expected ResolvedAt to be set")
	}

	next, err := svc.RecordHighStress(ctx, "user-1")
	if err != nil {
		t.Fatalf("RecordHighStress failed: %v", err)
	}
	if next.ID == first.ID {
		t.Error("Expected a fresh alert after resolve, got the resolved one")
	}
	if next.StressCount != 1 || next.Severity != SeverityHigh {
		t.Errorf("Expected fresh alert with count 1 severity high, got count %d severity %s",
			next.StressCount, next.Severity)
	}
}

func TestAlerts_AcknowledgedAlertKeepsAccumulating(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	first, _ := svc.RecordHighStress(ctx, "user-1")
	if _, err := svc.RecordHighStress(ctx, "user-1"); err != nil {
		t.Fatalf("RecordHighStress failed: %v", err)
	}

	acked, err := svc.Acknowledge(ctx, first.ID)
	if err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}
	if acked.Status != StatusAcknowledged {
		t.Errorf("Expected status acknowledged, got %s", acked.Status)
	}
	if acked.AcknowledgedAt == nil {
		t.Error("Expected AcknowledgedAt to be set")
	}

	a, err := svc.RecordHighStress(ctx, "user-1")
	if err != nil {
		t.Fatalf("RecordHighStress failed: %v", err)
	}
	if a.ID != first.ID {
		t.Errorf("Expected accumulation on acknowledged alert %s, got %s", first.ID, a.ID)
	}
	if a.StressCount != 3 || a.Severity != SeverityCritical {
		t.Errorf("Expected count 3 critical, got count %d severity %s", a.StressCount, a.Severity)
	}
	if a.Status != StatusAcknowledged {
		t.Errorf("Expected status to stay acknowledged, got %s", a.Status)
	}
}

func TestAlerts_LifecycleTransitions(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	a, _ := svc.RecordHighStress(ctx, "user-1")

	if _, err := svc.Acknowledge(ctx, a.ID); err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}
	if _, err := svc.Acknowledge(ctx, a.ID); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Expected ErrInvalidStatus on double acknowledge, got %v", err)
	}

	if _, err := svc.Resolve(ctx, a.ID); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := svc.Resolve(ctx, a.ID); !errors.Is(err, ErrAlertResolved) {
		t.Errorf("Expected ErrAlertResolved on double resolve, got %v", err)
	}
	if _, err := svc.Acknowledge(ctx, a.ID); !errors.Is(err, ErrAlertResolved) {
		t.Errorf("Expected ErrAlertResolved on acknowledge after resolve, got %v", err)
	}
}

func TestAlerts_ResolveOpenAlertDirectly(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	a, _ := svc.RecordHighStress(ctx, "user-1")
	resolved, err := svc.Resolve(ctx, a.ID)
	if err != nil {
		t.Fatalf("Resolve without acknowledge failed: %v", err)
	}
	if resolved.Status != StatusResolved {
		t.Errorf("Expected status resolved, got %s", resolved.Status)
	}
}

func TestAlerts_EnsureOpen(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	a, created, err := svc.EnsureOpen(ctx, "user-1", CauseFlagSweep)
	if err != nil {
		t.Fatalf("EnsureOpen failed: %v", err)
	}
	if !created {
		t.Error("Expected EnsureOpen to create an alert")
	}
	if a.Cause != CauseFlagSweep {
		t.Errorf("Expected cause flag_sweep, got %s", a.Cause)
	}
	if a.StressCount != 0 {
		t.Errorf("Expected stress count 0 for sweep-created alert, got %d", a.StressCount)
	}

	again, created, err := svc.EnsureOpen(ctx, "user-1", CauseFlagSweep)
	if err != nil {
		t.Fatalf("EnsureOpen failed: %v", err)
	}
	if created {
		t.Error("Expected EnsureOpen to reuse the live alert")
	}
	if again.ID != a.ID {
		t.Errorf("Expected alert %s, got %s", a.ID, again.ID)
	}

	if _, err := svc.Resolve(ctx, a.ID); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	fresh, created, err := svc.EnsureOpen(ctx, "user-1", CauseFlagSweep)
	if err != nil {
		t.Fatalf("EnsureOpen failed: %v", err)
	}
	if !created || fresh.ID == a.ID {
		t.Error("Expected a fresh alert after resolve")
	}
}

func TestAlerts_NotifierReceivesRaisesAndEscalations(t *testing.T) {
	notifier := &mockNotifier{}
	svc := NewService(NewMemoryStore()).WithNotifier(notifier)
	ctx := context.Background()

	// Creation notifies.
	if _, err := svc.RecordHighStress(ctx, "user-1"); err != nil {
		t.Fatalf("RecordHighStress failed: %v", err)
	}
	if notifier.count() != 1 {
		t.Fatalf("Expected 1 notification after create, got %d", notifier.count())
	}

	// A count bump does not.
	_, _ = svc.RecordHighStress(ctx, "user-1")
	if notifier.count() != 1 {
		t.Fatalf("Expected no notification on count bump, got %d", notifier.count())
	}

	// Escalation to critical does.
	_, _ = svc.RecordHighStress(ctx, "user-1")
	if notifier.count() != 2 {
		t.Fatalf("Expected notification on escalation, got %d", notifier.count())
	}

	// Already critical: further bumps are quiet.
	_, _ = svc.RecordHighStress(ctx, "user-1")
	_, _ = svc.RecordCrisis(ctx, "user-1")
	if notifier.count() != 2 {
		t.Fatalf("Expected no notification once critical, got %d", notifier.count())
	}
}

func TestAlerts_ListAndCount(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	a1, _ := svc.RecordHighStress(ctx, "user-1")
	time.Sleep(time.Millisecond)
	a2, _ := svc.RecordCrisis(ctx, "user-2")
	time.Sleep(time.Millisecond)
	if _, err := svc.RecordHighStress(ctx, "user-3"); err != nil {
		t.Fatalf("RecordHighStress failed: %v", err)
	}

	if _, err := svc.Resolve(ctx, a1.ID); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	all, err := svc.List(ctx, ListQuery{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 alerts, got %d", len(all))
	}
	if all[0].UserID != "user-3" || all[2].UserID != "user-1" {
		t.Errorf("Expected newest-first ordering, got %s, %s, %s",
			all[0].UserID, all[1].UserID, all[2].UserID)
	}

	open, err := svc.List(ctx, ListQuery{Status: StatusOpen})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(open) != 2 {
		t.Errorf("Expected 2 open alerts, got %d", len(open))
	}

	byUser, err := svc.List(ctx, ListQuery{UserID: "user-2"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(byUser) != 1 || byUser[0].ID != a2.ID {
		t.Errorf("Expected user-2's alert, got %v", byUser)
	}

	live, err := svc.CountLive(ctx)
	if err != nil {
		t.Fatalf("CountLive failed: %v", err)
	}
	if live != 2 {
		t.Errorf("Expected 2 live alerts, got %d", live)
	}
}

func TestAlerts_ConcurrentHighStressSingleAlert(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.RecordHighStress(ctx, "user-1"); err != nil {
				t.Errorf("RecordHighStress failed: %v", err)
			}
		}()
	}
	wg.Wait()

	alive, err := svc.List(ctx, ListQuery{UserID: "user-1"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(alive) != 1 {
		t.Fatalf("Expected exactly 1 alert, got %d", len(alive))
	}
	if alive[0].StressCount != 10 {
		t.Errorf("Expected stress count 10, got %d", alive[0].StressCount)
	}
	if alive[0].Severity != SeverityCritical {
		t.Errorf("Expected severity critical, got %s", alive[0].Severity)
	}
}

func TestAlerts_GetUnknown(t *testing.T) {
	svc := NewService(NewMemoryStore())

	if _, err := svc.Get(context.Background(), "alr_missing"); !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("Expected ErrAlertNotFound, got %v", err)
	}
}
