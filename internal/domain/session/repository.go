package session

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"
	"errors"
)

// ErrUnavailable wraps storage I/O failures. Callers must treat it as a
// denial, never as "unauthenticated but harmless" (fail closed).
var ErrUnavailable = errors.New("session store unavailable")

// Repository defines persistence for device sessions.
//
// Get returns nil for an absent address. An expired row is demoted
// (removed) before Get reports nil, so readers never observe a stale
// authenticated record. Put overwrites atomically per address. Remove
// is idempotent. Touch updates last_seen_at without creating a row.
type Repository interface {
	Get(ctx context.Context, address string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Remove(ctx context.Context, address string) error
	Touch(ctx context.Context, address string) error
	List(ctx context.Context, limit int) ([]*Session, error)
	DeleteExpired(ctx context.Context) (int, error)
}
