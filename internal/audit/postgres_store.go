package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PostgresStore persists audit records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the audit table if it does not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS admin_audit_log (
			id         TEXT PRIMARY KEY,
			actor      TEXT NOT NULL,
			action     TEXT NOT NULL,
			user_id    TEXT,
			detail     TEXT,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_admin_audit_created
			ON admin_audit_log(created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate audit schema: %w", err)
	}
	return nil
}

func (p *PostgresStore) Create(ctx context.Context, r *Record) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO admin_audit_log (id, actor, action, user_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.Actor, string(r.Action), nullString(r.UserID), nullString(r.Detail),
		r.CreatedAt,
	)
	return err
}

func (p *PostgresStore) List(ctx context.Context, q ListQuery) ([]*Record, error) {
	var (
		conds []string
		args  []interface{}
	)
	if q.Actor != "" {
		args = append(args, q.Actor)
		conds = append(conds, fmt.Sprintf("actor = $%d", len(args)))
	}
	if q.Action != "" {
		args = append(args, string(q.Action))
		conds = append(conds, fmt.Sprintf("action = $%d", len(args)))
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
		SELECT id, actor, action, user_id, detail, created_at
		FROM admin_audit_log
		%s
		ORDER BY created_at DESC
		LIMIT $%d`, where, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Record
	for rows.Next() {
		r := &Record{}
		var (
			action string
			userID sql.NullString
			detail sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Actor, &action, &userID, &detail, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Action = Action(action)
		r.UserID = userID.String
		r.Detail = detail.String
		result = append(result, r)
	}
	return result, rows.Err()
}

// nullString converts an empty Go string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
