package attempt

import (
	"context"
	"time"
)

// Repository defines persistence for login attempts and lockouts.
// GetLock returns nil when the address is not locked; an expired lock
// is treated as absent.
type Repository interface {
	Record(ctx context.Context, a *Attempt) error
	CountRecentFailures(ctx context.Context, address string, window time.Duration) (int, error)
	Lock(ctx context.Context, address string, until time.Time, failures int) error
	GetLock(ctx context.Context, address string) (*Lockout, error)
	ListAttempts(ctx context.Context, limit, offset int) ([]*Attempt, error)
}
