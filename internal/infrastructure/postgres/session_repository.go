package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/netgate/netgate/internal/domain/session"
)

// SessionRepository implements session.Repository.
//
// Put relies on ON CONFLICT to overwrite the row for an address in a
// single statement, so concurrent readers see either the old or the new
// record, never a mix. Get deletes an expired row before reporting the
// address as unauthenticated (lazy demotion).
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Get(ctx context.Context, address string) (*session.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT session_id, address, token_hash, user_agent, created_at, expires_at, last_seen_at
		FROM device_sessions WHERE address=$1
	`, address)
	s, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	if s == nil {
		return nil, nil
	}
	if s.IsExpired(time.Now().UTC()) {
		if _, err := r.pool.Exec(ctx, `DELETE FROM device_sessions WHERE address=$1 AND expires_at=$2`, address, s.ExpiresAt); err != nil {
			return nil, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
		}
		return nil, nil
	}
	return s, nil
}

func (r *SessionRepository) Put(ctx context.Context, s *session.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO device_sessions
		(session_id, address, token_hash, user_agent, created_at, expires_at, last_seen_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (address) DO UPDATE SET
			session_id=EXCLUDED.session_id,
			token_hash=EXCLUDED.token_hash,
			user_agent=EXCLUDED.user_agent,
			created_at=EXCLUDED.created_at,
			expires_at=EXCLUDED.expires_at,
			last_seen_at=EXCLUDED.last_seen_at
	`, s.SessionID, s.Address, s.TokenHash, s.UserAgent, s.CreatedAt, s.ExpiresAt, s.LastSeenAt)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return nil
}

func (r *SessionRepository) Remove(ctx context.Context, address string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM device_sessions WHERE address=$1`, address); err != nil {
		return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return nil
}

func (r *SessionRepository) Touch(ctx context.Context, address string) error {
	_, err := r.pool.Exec(ctx, `UPDATE device_sessions SET last_seen_at=$1 WHERE address=$2`, time.Now().UTC(), address)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return nil
}

func (r *SessionRepository) List(ctx context.Context, limit int) ([]*session.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT session_id, address, token_hash, user_agent, created_at, expires_at, last_seen_at
		FROM device_sessions
		WHERE expires_at > $1
		ORDER BY last_seen_at DESC NULLS LAST
		LIMIT $2
	`, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	defer rows.Close()

	sessions := make([]*session.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) DeleteExpired(ctx context.Context) (int, error) {
	res, err := r.pool.Exec(ctx, `DELETE FROM device_sessions WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return int(res.RowsAffected()), nil
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var s session.Session
	var userAgent *string
	var lastSeen *time.Time
	if err := row.Scan(&s.SessionID, &s.Address, &s.TokenHash, &userAgent, &s.CreatedAt, &s.ExpiresAt, &lastSeen); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	s.UserAgent = userAgent
	s.LastSeenAt = lastSeen
	return &s, nil
}
