package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on PostgreSQL. The sessions table mirrors
// classic server-side session storage: one row per session id, counted
// with count(DISTINCT sid) so a session appearing under more than one
// transport-security variant is still one session.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a PostgreSQL-backed session store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("session: pgx pool cannot be nil")
	}
	return &PGStore{pool: pool}
}

func (p *PGStore) Create(ctx context.Context, s *Session) error {
	if s == nil || s.SID == "" {
		return ErrInvalidSession
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO sessions (sid, uid, hostname, created_at, last_seen_at, expires_at, checked_once, verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (sid) DO UPDATE SET
			uid = EXCLUDED.uid,
			hostname = EXCLUDED.hostname,
			last_seen_at = EXCLUDED.last_seen_at,
			expires_at = EXCLUDED.expires_at,
			checked_once = EXCLUDED.checked_once,
			verified = EXCLUDED.verified`,
		s.SID, s.UserID, s.Hostname, s.CreatedAt, s.LastSeenAt, s.ExpiresAt, s.CheckedOnce, s.Verified)
	return err
}

func (p *PGStore) Get(ctx context.Context, sid string) (*Session, error) {
	var s Session
	err := p.pool.QueryRow(ctx, `
		SELECT sid, uid, hostname, created_at, last_seen_at, expires_at, checked_once, verified
		FROM sessions
		WHERE sid = $1 AND expires_at > now()`, sid).
		Scan(&s.SID, &s.UserID, &s.Hostname, &s.CreatedAt, &s.LastSeenAt, &s.ExpiresAt, &s.CheckedOnce, &s.Verified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *PGStore) CountActive(ctx context.Context, userID uuid.UUID, excludeSIDs ...string) (int, error) {
	if excludeSIDs == nil {
		excludeSIDs = []string{}
	}

	var count int
	err := p.pool.QueryRow(ctx, `
		SELECT count(DISTINCT sid)
		FROM sessions
		WHERE uid = $1 AND expires_at > now() AND sid != ALL($2)`,
		userID, excludeSIDs).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (p *PGStore) ListActive(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT sid, uid, hostname, created_at, last_seen_at, expires_at, checked_once, verified
		FROM sessions
		WHERE uid = $1 AND expires_at > now()
		ORDER BY last_seen_at ASC, sid ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.SID, &s.UserID, &s.Hostname, &s.CreatedAt, &s.LastSeenAt, &s.ExpiresAt, &s.CheckedOnce, &s.Verified); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PGStore) Touch(ctx context.Context, sid string, at time.Time) error {
	tag, err := p.pool.Exec(ctx, `UPDATE sessions SET last_seen_at = $2 WHERE sid = $1`, sid, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (p *PGStore) SetFlags(ctx context.Context, sid string, checkedOnce, verified bool) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE sessions SET checked_once = $2, verified = $3 WHERE sid = $1`,
		sid, checkedOnce, verified)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (p *PGStore) Delete(ctx context.Context, sid string) error {
	// Deleting an absent row is fine; racing evictions are idempotent.
	_, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE sid = $1`, sid)
	return err
}

func (p *PGStore) DeleteExpired(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	return err
}
