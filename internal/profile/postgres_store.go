package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mbd888/mindfuse/internal/emotion"
	"github.com/mbd888/mindfuse/internal/syncutil"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL. Commits run in
// serializable transactions; a lost race surfaces as ErrConflict for
// the caller to retry. An in-process keyed mutex keeps same-user
// commits from one instance off the conflict path entirely.
type PostgresStore struct {
	db     *sql.DB
	policy FlagPolicy
	locks  *syncutil.ContextShardedMutex
}

// NewPostgresStore creates a PostgreSQL-backed profile store. policy
// may be nil.
func NewPostgresStore(db *sql.DB, policy FlagPolicy) *PostgresStore {
	return &PostgresStore{
		db:     db,
		policy: policy,
		locks:  syncutil.NewContextShardedMutex(),
	}
}

// Migrate creates the profile tables if they don't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS behavioral_profiles (
			user_id            TEXT PRIMARY KEY,
			emoji_fingerprint  JSONB NOT NULL DEFAULT '{}',
			average_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			analysis_count     INTEGER NOT NULL DEFAULT 0,
			high_risk_flag     BOOLEAN NOT NULL DEFAULT FALSE,
			high_risk_reason   TEXT NOT NULL DEFAULT '',
			flagged_at         TIMESTAMPTZ,
			flag_cleared_at    TIMESTAMPTZ,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS profile_history (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			ts              TIMESTAMPTZ NOT NULL,
			label           TEXT NOT NULL,
			confidence      DOUBLE PRECISION NOT NULL,
			stress_score    DOUBLE PRECISION NOT NULL,
			stress_category TEXT NOT NULL,
			risk_score      INTEGER NOT NULL,
			crisis          BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_profile_history_user_ts
			ON profile_history(user_id, ts DESC, id DESC);
		CREATE INDEX IF NOT EXISTS idx_behavioral_profiles_flagged
			ON behavioral_profiles(flagged_at DESC) WHERE high_risk_flag;
	`)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, userID string) (*Profile, error) {
	prof, err := p.getMeta(ctx, p.db, userID)
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, ts, label, confidence, stress_score, stress_category, risk_score, crisis
		FROM profile_history WHERE user_id = $1
		ORDER BY ts ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	prof.History, err = scanEntries(rows)
	if err != nil {
		return nil, err
	}
	return prof, nil
}

// querier lets meta loading run against either the pool or a tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (p *PostgresStore) getMeta(ctx context.Context, q querier, userID string) (*Profile, error) {
	prof := &Profile{UserID: userID}
	var fingerprint []byte
	var flaggedAt, clearedAt sql.NullTime

	err := q.QueryRowContext(ctx, `
		SELECT emoji_fingerprint, average_confidence, analysis_count,
			high_risk_flag, high_risk_reason, flagged_at, flag_cleared_at,
			created_at, updated_at
		FROM behavioral_profiles WHERE user_id = $1
	`, userID).Scan(
		&fingerprint, &prof.AverageConfidence, &prof.AnalysisCount,
		&prof.HighRiskFlag, &prof.HighRiskReason, &flaggedAt, &clearedAt,
		&prof.CreatedAt, &prof.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	prof.EmojiFingerprint = make(map[emotion.Label]int)
	if len(fingerprint) > 0 {
		if err := json.Unmarshal(fingerprint, &prof.EmojiFingerprint); err != nil {
			return nil, fmt.Errorf("decode fingerprint: %w", err)
		}
	}
	if flaggedAt.Valid {
		prof.FlaggedAt = flaggedAt.Time
	}
	if clearedAt.Valid {
		prof.FlagClearedAt = clearedAt.Time
	}
	return prof, nil
}

func (p *PostgresStore) Commit(ctx context.Context, userID string, entry HistoryEntry) (*CommitResult, error) {
	unlock, err := p.locks.LockContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	fillEntryDefaults(&entry)

	res, err := p.commitTx(ctx, userID, entry)
	if isSerializationFailure(err) {
		return nil, ErrConflict
	}
	return res, err
}

func (p *PostgresStore) commitTx(ctx context.Context, userID string, entry HistoryEntry) (*CommitResult, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	prof, err := p.getMeta(ctx, tx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		prof = &Profile{
			UserID:           userID,
			EmojiFingerprint: make(map[emotion.Label]int),
			CreatedAt:        entry.Timestamp,
		}
	} else if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profile_history (id, user_id, ts, label, confidence, stress_score, stress_category, risk_score, crisis)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, userID, entry.Timestamp, string(entry.Label), entry.Confidence,
		entry.StressScore, string(entry.StressCategory), entry.RiskScore, entry.CrisisFlag); err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM profile_history WHERE user_id = $1 AND ts < $2
	`, userID, entry.Timestamp.Add(-MaxHistoryAge)); err != nil {
		return nil, fmt.Errorf("prune by age: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM profile_history WHERE user_id = $1 AND id IN (
			SELECT id FROM profile_history WHERE user_id = $1
			ORDER BY ts DESC, id DESC OFFSET $2
		)
	`, userID, MaxHistoryEntries); err != nil {
		return nil, fmt.Errorf("prune by count: %w", err)
	}

	// The flag policy only inspects the recent window; load just that.
	window := commitSnapshotEntries
	if p.policy != nil && p.policy.Window() > window {
		window = p.policy.Window()
	}
	rows, err := tx.QueryContext(ctx, `
		SELECT id, ts, label, confidence, stress_score, stress_category, risk_score, crisis
		FROM profile_history WHERE user_id = $1
		ORDER BY ts DESC, id DESC LIMIT $2
	`, userID, window)
	if err != nil {
		return nil, fmt.Errorf("load recent window: %w", err)
	}
	recent, err := scanEntries(rows)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}
	reverse(recent)
	prof.History = recent

	accumulate(prof, entry)
	change := FlagUnchanged
	if p.policy != nil {
		change = p.policy.Apply(prof, entry.Timestamp)
	}

	fingerprint, err := json.Marshal(prof.EmojiFingerprint)
	if err != nil {
		return nil, fmt.Errorf("encode fingerprint: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO behavioral_profiles (
			user_id, emoji_fingerprint, average_confidence, analysis_count,
			high_risk_flag, high_risk_reason, flagged_at, flag_cleared_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			emoji_fingerprint = $2, average_confidence = $3, analysis_count = $4,
			high_risk_flag = $5, high_risk_reason = $6, flagged_at = $7,
			flag_cleared_at = $8, updated_at = $10
	`, userID, fingerprint, prof.AverageConfidence, prof.AnalysisCount,
		prof.HighRiskFlag, prof.HighRiskReason,
		nullTime(prof.FlaggedAt), nullTime(prof.FlagClearedAt),
		prof.CreatedAt, prof.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	snapshot := prof.Clone()
	snapshot.History = snapshot.Recent(commitSnapshotEntries)
	return &CommitResult{
		Profile:     snapshot,
		Entry:       entry,
		FlagRaised:  change == FlagRaised,
		FlagCleared: change == FlagCleared,
	}, nil
}

func (p *PostgresStore) History(ctx context.Context, userID string, page HistoryPage) ([]HistoryEntry, bool, error) {
	if _, err := p.getMeta(ctx, p.db, userID); err != nil {
		return nil, false, err
	}

	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, ts, label, confidence, stress_score, stress_category, risk_score, crisis
		FROM profile_history WHERE user_id = $1`
	args := []interface{}{userID}
	if !page.Before.IsZero() {
		query += ` AND (ts, id) < ($2, $3)`
		args = append(args, page.Before, page.BeforeID)
	}
	query += fmt.Sprintf(` ORDER BY ts DESC, id DESC LIMIT %d`, limit+1)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("page history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, false, err
	}
	if len(entries) > limit {
		return entries[:limit], true, nil
	}
	return entries, false, nil
}

func (p *PostgresStore) Reset(ctx context.Context, userID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM profile_history WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM behavioral_profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrProfileNotFound
	}
	return tx.Commit()
}

func (p *PostgresStore) SetHighRisk(ctx context.Context, userID string, flagged bool, reason string) error {
	var result sql.Result
	var err error
	if flagged {
		result, err = p.db.ExecContext(ctx, `
			UPDATE behavioral_profiles
			SET high_risk_flag = TRUE, high_risk_reason = $2, flagged_at = NOW(), updated_at = NOW()
			WHERE user_id = $1
		`, userID, reason)
	} else {
		result, err = p.db.ExecContext(ctx, `
			UPDATE behavioral_profiles
			SET high_risk_flag = FALSE, high_risk_reason = '', flag_cleared_at = NOW(), updated_at = NOW()
			WHERE user_id = $1
		`, userID)
	}
	if err != nil {
		return fmt.Errorf("set flag: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (p *PostgresStore) ListFlagged(ctx context.Context) ([]FlagSummary, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT user_id, high_risk_reason, flagged_at, updated_at
		FROM behavioral_profiles WHERE high_risk_flag
		ORDER BY flagged_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list flagged: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []FlagSummary
	for rows.Next() {
		var s FlagSummary
		var flaggedAt sql.NullTime
		if err := rows.Scan(&s.UserID, &s.Reason, &flaggedAt, &s.LastSeen); err != nil {
			return nil, fmt.Errorf("scan flagged: %w", err)
		}
		if flaggedAt.Valid {
			s.FlaggedAt = flaggedAt.Time
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flagged: %w", err)
	}
	return out, nil
}

func (p *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE high_risk_flag),
			COALESCE(SUM(analysis_count), 0)
		FROM behavioral_profiles
	`).Scan(&s.TotalProfiles, &s.FlaggedProfiles, &s.TotalAnalyses)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return s, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func scanEntries(rows *sql.Rows) ([]HistoryEntry, error) {
	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var label, category string
		if err := rows.Scan(&e.ID, &e.Timestamp, &label, &e.Confidence,
			&e.StressScore, &category, &e.RiskScore, &e.CrisisFlag); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Label = emotion.Label(label)
		e.StressCategory = emotion.StressCategory(category)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

func reverse(entries []HistoryEntry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" // serialization_failure
	}
	return false
}
