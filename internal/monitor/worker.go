package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/mbd888/mindfuse/internal/alerts"
	"github.com/mbd888/mindfuse/internal/profile"
)

// AlertService is the slice of the alert service the sweep needs.
type AlertService interface {
	EnsureOpen(ctx context.Context, userID string, cause alerts.Cause) (*alerts.Alert, bool, error)
}

// Worker periodically sweeps flagged profiles and makes sure each one
// has a live admin alert. Commits raise alerts inline; the sweep
// catches profiles flagged while alerting was unavailable and keeps
// the flagged-profiles gauge current.
type Worker struct {
	store    profile.Store
	alerts   AlertService
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
}

// NewWorker creates a high-risk sweep worker.
// interval is typically 1 minute in production, a few seconds in demo mode.
func NewWorker(store profile.Store, alertSvc AlertService, interval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		store:    store,
		alerts:   alertSvc,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately on start
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop signals the worker to stop.
func (w *Worker) Stop() {
	select {
	case w.stop <- struct{}{}:
	default:
	}
}

func (w *Worker) sweep(ctx context.Context) {
	start := time.Now()

	flagged, err := w.store.ListFlagged(ctx)
	if err != nil {
		w.logger.Warn("high-risk sweep failed to list flagged profiles", "error", err)
		sweepErrors.Inc()
		return
	}

	sweepFlaggedProfiles.Set(float64(len(flagged)))

	backfilled := 0
	for _, f := range flagged {
		_, created, err := w.alerts.EnsureOpen(ctx, f.UserID, alerts.CauseFlagSweep)
		if err != nil {
			w.logger.Warn("high-risk sweep failed to ensure alert",
				"error", err, "user_id", f.UserID)
			sweepErrors.Inc()
			continue
		}
		if created {
			backfilled++
			sweepAlertsBackfilled.Inc()
		}
	}

	sweepDuration.Observe(time.Since(start).Seconds())

	if len(flagged) > 0 {
		w.logger.Info("high-risk sweep completed",
			"flagged", len(flagged), "alerts_backfilled", backfilled)
	}
}
