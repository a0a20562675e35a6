// Package alerts maintains the admin alert queue.
//
// Flow:
//  1. High-stress analysis committed → open alert created (or its
//     stress count bumped if one is already open for the user)
//  2. Third high-stress occurrence → severity escalates to critical
//  3. Crisis detection → alert goes critical immediately
//  4. Admin acknowledges → alert stays live, keeps accumulating
//  5. Admin resolves → next high-stress analysis opens a fresh alert
package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mbd888/mindfuse/internal/idgen"
)

var (
	ErrAlertNotFound = errors.New("alert not found")
	ErrAlertResolved = errors.New("alert already resolved")
	ErrInvalidStatus = errors.New("invalid alert status for this operation")
)

// Severity grades how urgently an alert needs admin attention.
type Severity string

const (
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// CriticalStressCount is how many high-stress occurrences escalate an
// open alert from high to critical.
const CriticalStressCount = 3

// Status represents the lifecycle state of an alert.
type Status string

const (
	StatusOpen         Status = "open"         // Awaiting admin attention
	StatusAcknowledged Status = "acknowledged" // Admin has seen it, still accumulating
	StatusResolved     Status = "resolved"     // Closed; new activity opens a fresh alert
)

// Cause records what first opened the alert.
type Cause string

const (
	CauseHighStress Cause = "high_stress" // repeated high-stress analyses
	CauseCrisis     Cause = "crisis"      // crisis language detected
	CauseFlagSweep  Cause = "flag_sweep"  // monitor sweep found a flagged profile without an alert
)

// Alert is one admin alert. At most one unresolved alert exists per
// user; repeated signals accumulate on it rather than opening more.
type Alert struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	Severity       Severity   `json:"severity"`
	Status         Status     `json:"status"`
	Cause          Cause      `json:"cause"`
	StressCount    int        `json:"stressCount"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Live reports whether the alert still accumulates new signals.
func (a *Alert) Live() bool {
	return a.Status == StatusOpen || a.Status == StatusAcknowledged
}

// ListQuery filters List results. Zero values mean no filter.
type ListQuery struct {
	Status Status
	UserID string
	Limit  int
}

// Store persists alerts.
type Store interface {
	Create(ctx context.Context, a *Alert) error
	Get(ctx context.Context, id string) (*Alert, error)
	Update(ctx context.Context, a *Alert) error
	// FindLiveByUser returns the user's unresolved alert, or
	// ErrAlertNotFound if every alert for the user is resolved.
	FindLiveByUser(ctx context.Context, userID string) (*Alert, error)
	List(ctx context.Context, q ListQuery) ([]*Alert, error)
	CountLive(ctx context.Context) (int, error)
}

// Notifier receives alerts worth interrupting an admin for: newly
// opened ones and escalations to critical. Count bumps on an existing
// alert are not notified.
type Notifier interface {
	AlertRaised(a *Alert)
}

// Service implements alert business logic.
type Service struct {
	store    Store
	notifier Notifier
	locks    sync.Map // per-user locks so concurrent commits accumulate instead of double-creating
}

// NewService creates a new alert service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// WithNotifier adds a notifier for the realtime admin stream.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

func (s *Service) userLock(userID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *Service) notify(a *Alert) {
	if s.notifier != nil {
		cp := *a
		s.notifier.AlertRaised(&cp)
	}
}

// RecordHighStress accumulates a high-stress analysis onto the user's
// live alert, opening one if needed. The third occurrence escalates
// severity to critical.
func (s *Service) RecordHighStress(ctx context.Context, userID string) (*Alert, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	a, err := s.store.FindLiveByUser(ctx, userID)
	if errors.Is(err, ErrAlertNotFound) {
		a = s.newAlert(userID, CauseHighStress, SeverityHigh)
		a.StressCount = 1
		if err := s.store.Create(ctx, a); err != nil {
			return nil, fmt.Errorf("failed to create alert: %w", err)
		}
		s.notify(a)
		return a, nil
	}
	if err != nil {
		return nil, err
	}

	a.StressCount++
	a.UpdatedAt = time.Now()
	escalated := false
	if a.StressCount >= CriticalStressCount && a.Severity != SeverityCritical {
		a.Severity = SeverityCritical
		escalated = true
	}
	if err := s.store.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}
	if escalated {
		s.notify(a)
	}
	return a, nil
}

// RecordCrisis accumulates a crisis detection. Crisis alerts are
// critical from the first occurrence.
func (s *Service) RecordCrisis(ctx context.Context, userID string) (*Alert, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	a, err := s.store.FindLiveByUser(ctx, userID)
	if errors.Is(err, ErrAlertNotFound) {
		a = s.newAlert(userID, CauseCrisis, SeverityCritical)
		a.StressCount = 1
		if err := s.store.Create(ctx, a); err != nil {
			return nil, fmt.Errorf("failed to create alert: %w", err)
		}
		s.notify(a)
		return a, nil
	}
	if err != nil {
		return nil, err
	}

	a.StressCount++
	a.UpdatedAt = time.Now()
	escalated := a.Severity != SeverityCritical
	a.Severity = SeverityCritical
	if err := s.store.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}
	if escalated {
		s.notify(a)
	}
	return a, nil
}

// EnsureOpen guarantees the user has a live alert, creating one with
// the given cause if needed. The monitor sweep uses this to backfill
// alerts for flagged profiles. It never bumps the stress count.
func (s *Service) EnsureOpen(ctx context.Context, userID string, cause Cause) (*Alert, bool, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	a, err := s.store.FindLiveByUser(ctx, userID)
	if err == nil {
		return a, false, nil
	}
	if !errors.Is(err, ErrAlertNotFound) {
		return nil, false, err
	}

	a = s.newAlert(userID, cause, SeverityHigh)
	if err := s.store.Create(ctx, a); err != nil {
		return nil, false, fmt.Errorf("failed to create alert: %w", err)
	}
	s.notify(a)
	return a, true, nil
}

// Acknowledge marks an open alert as seen. It keeps accumulating new
// signals until resolved.
func (s *Service) Acknowledge(ctx context.Context, id string) (*Alert, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusResolved {
		return nil, ErrAlertResolved
	}
	if a.Status != StatusOpen {
		return nil, ErrInvalidStatus
	}

	now := time.Now()
	a.Status = StatusAcknowledged
	a.AcknowledgedAt = &now
	a.UpdatedAt = now
	if err := s.store.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}
	return a, nil
}

// Resolve closes an alert. The next high-stress analysis for the user
// opens a fresh one.
func (s *Service) Resolve(ctx context.Context, id string) (*Alert, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusResolved {
		return nil, ErrAlertResolved
	}

	now := time.Now()
	a.Status = StatusResolved
	a.ResolvedAt = &now
	a.UpdatedAt = now
	if err := s.store.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}
	return a, nil
}

// Get returns an alert by ID.
func (s *Service) Get(ctx context.Context, id string) (*Alert, error) {
	return s.store.Get(ctx, id)
}

// List returns alerts matching the query, newest first.
func (s *Service) List(ctx context.Context, q ListQuery) ([]*Alert, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	return s.store.List(ctx, q)
}

// CountLive returns how many alerts are awaiting resolution.
func (s *Service) CountLive(ctx context.Context) (int, error) {
	return s.store.CountLive(ctx)
}

func (s *Service) newAlert(userID string, cause Cause, severity Severity) *Alert {
	now := time.Now()
	return &Alert{
		ID:        idgen.WithPrefix("alr_"),
		UserID:    userID,
		Severity:  severity,
		Status:    StatusOpen,
		Cause:     cause,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
