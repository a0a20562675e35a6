package alerts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PostgresStore persists alerts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed alert store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the alerts table if it does not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS admin_alerts (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			severity        TEXT NOT NULL,
			status          TEXT NOT NULL,
			cause           TEXT NOT NULL,
			stress_count    INTEGER NOT NULL DEFAULT 0,
			acknowledged_at TIMESTAMPTZ,
			resolved_at     TIMESTAMPTZ,
			created_at      TIMESTAMPTZ NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_admin_alerts_user_live
			ON admin_alerts(user_id, created_at DESC) WHERE status <> 'resolved';
		CREATE INDEX IF NOT EXISTS idx_admin_alerts_created
			ON admin_alerts(created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate alerts schema: %w", err)
	}
	return nil
}

const alertColumns = `id, user_id, severity, status, cause, stress_count,
		       acknowledged_at, resolved_at, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, a *Alert) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO admin_alerts (`+alertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.UserID, string(a.Severity), string(a.Status), string(a.Cause),
		a.StressCount, nullTime(a.AcknowledgedAt), nullTime(a.ResolvedAt),
		a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Alert, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM admin_alerts WHERE id = $1`, id)

	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, ErrAlertNotFound
	}
	return a, err
}

func (p *PostgresStore) Update(ctx context.Context, a *Alert) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE admin_alerts SET
			severity = $1, status = $2, stress_count = $3,
			acknowledged_at = $4, resolved_at = $5, updated_at = $6
		WHERE id = $7`,
		string(a.Severity), string(a.Status), a.StressCount,
		nullTime(a.AcknowledgedAt), nullTime(a.ResolvedAt), a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func (p *PostgresStore) FindLiveByUser(ctx context.Context, userID string) (*Alert, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+alertColumns+`
		FROM admin_alerts
		WHERE user_id = $1 AND status <> 'resolved'
		ORDER BY created_at DESC
		LIMIT 1`, userID)

	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, ErrAlertNotFound
	}
	return a, err
}

func (p *PostgresStore) List(ctx context.Context, q ListQuery) ([]*Alert, error) {
	var (
		conds []string
		args  []interface{}
	)
	if q.Status != "" {
		args = append(args, string(q.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if q.UserID != "" {
		args = append(args, q.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, q.Limit)

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT `+alertColumns+`
		FROM admin_alerts
		%s
		ORDER BY created_at DESC
		LIMIT $%d`, where, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanAlerts(rows)
}

func (p *PostgresStore) CountLive(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM admin_alerts WHERE status <> 'resolved'`).Scan(&n)
	return n, err
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(s scanner) (*Alert, error) {
	a := &Alert{}
	var (
		severity       string
		status         string
		cause          string
		acknowledgedAt sql.NullTime
		resolvedAt     sql.NullTime
	)

	err := s.Scan(
		&a.ID, &a.UserID, &severity, &status, &cause, &a.StressCount,
		&acknowledgedAt, &resolvedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Severity = Severity(severity)
	a.Status = Status(status)
	a.Cause = Cause(cause)
	if acknowledgedAt.Valid {
		a.AcknowledgedAt = &acknowledgedAt.Time
	}
	if resolvedAt.Valid {
		a.ResolvedAt = &resolvedAt.Time
	}

	return a, nil
}

func scanAlerts(rows *sql.Rows) ([]*Alert, error) {
	var result []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// nullTime converts a *time.Time to sql.NullTime.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
