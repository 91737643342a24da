package attempt

import "time"

// Attempt is one recorded login attempt from a device address.
type Attempt struct {
	ID        int64     `json:"id"`
	Address   string    `json:"address"`
	Username  string    `json:"username"`
	Success   bool      `json:"success"`
	UserAgent *string   `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Lockout bars an address from further login attempts until LockedUntil.
type Lockout struct {
	Address     string    `json:"address"`
	LockedUntil time.Time `json:"lockedUntil"`
	Failures    int       `json:"failures"`
}

func (l *Lockout) Active(now time.Time) bool {
	return now.Before(l.LockedUntil)
}
