package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/netgate/netgate/internal/domain/attempt"
)

// AttemptRepository implements attempt.Repository.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func (r *AttemptRepository) Record(ctx context.Context, a *attempt.Attempt) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO login_attempts (address, username, success, user_agent, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, a.Address, a.Username, a.Success, a.UserAgent, a.CreatedAt)
	return err
}

func (r *AttemptRepository) CountRecentFailures(ctx context.Context, address string, window time.Duration) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM login_attempts
		WHERE address=$1 AND success=FALSE AND created_at > $2
	`, address, time.Now().UTC().Add(-window)).Scan(&n)
	return n, err
}

func (r *AttemptRepository) Lock(ctx context.Context, address string, until time.Time, failures int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO address_lockouts (address, locked_until, failures)
		VALUES ($1,$2,$3)
		ON CONFLICT (address) DO UPDATE SET
			locked_until=EXCLUDED.locked_until,
			failures=EXCLUDED.failures
	`, address, until, failures)
	return err
}

func (r *AttemptRepository) GetLock(ctx context.Context, address string) (*attempt.Lockout, error) {
	var l attempt.Lockout
	err := r.pool.QueryRow(ctx, `
		SELECT address, locked_until, failures FROM address_lockouts
		WHERE address=$1 AND locked_until > $2
	`, address, time.Now().UTC()).Scan(&l.Address, &l.LockedUntil, &l.Failures)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (r *AttemptRepository) ListAttempts(ctx context.Context, limit, offset int) ([]*attempt.Attempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, address, username, success, user_agent, created_at
		FROM login_attempts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := make([]*attempt.Attempt, 0)
	for rows.Next() {
		var a attempt.Attempt
		if err := rows.Scan(&a.ID, &a.Address, &a.Username, &a.Success, &a.UserAgent, &a.CreatedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}
