// Package audit records admin actions for accountability.
//
// Every mutation an admin performs through the API (clearing a
// high-risk flag, resolving an alert, erasing a profile) lands here.
// Recording is best-effort: a failed audit write is logged and never
// fails the action itself.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mbd888/mindfuse/internal/idgen"
)

var ErrRecordNotFound = errors.New("audit record not found")

// Action identifies what the admin did.
type Action string

const (
	ActionSetHighRiskFlag   Action = "SET_HIGH_RISK_FLAG"
	ActionClearHighRiskFlag Action = "CLEAR_HIGH_RISK_FLAG"
	ActionAcknowledgeAlert  Action = "ACKNOWLEDGE_ALERT"
	ActionResolveAlert      Action = "RESOLVE_ALERT"
	ActionDeleteProfile     Action = "DELETE_PROFILE"
)

// Record is one audited admin action.
type Record struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    Action    `json:"action"`
	UserID    string    `json:"userId,omitempty"` // subject user, when the action targets one
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListQuery filters List results. Zero values mean no filter.
type ListQuery struct {
	Actor  string
	Action Action
	UserID string
	Limit  int
}

// Store persists audit records.
type Store interface {
	Create(ctx context.Context, r *Record) error
	List(ctx context.Context, q ListQuery) ([]*Record, error)
}

// Service writes and queries the audit log.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new audit service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Log records an admin action. Nil-safe and best-effort: failures are
// logged, not returned, so an audit outage cannot block admin work.
func (s *Service) Log(ctx context.Context, actor string, action Action, userID, detail string) {
	if s == nil {
		return
	}

	r := &Record{
		ID:        idgen.WithPrefix("aud_"),
		Actor:     actor,
		Action:    action,
		UserID:    userID,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		s.logger.Warn("failed to write audit record",
			"error", err, "actor", actor, "action", string(action), "user_id", userID)
	}
}

// List returns audit records matching the query, newest first.
func (s *Service) List(ctx context.Context, q ListQuery) ([]*Record, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	return s.store.List(ctx, q)
}
