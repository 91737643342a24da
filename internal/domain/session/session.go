package session

import (
	"time"

	"github.com/google/uuid"
)

// State is the authentication state of a device address.
type State string

const (
	StateUnauthenticated State = "UNAUTHENTICATED"
	StateAuthenticated   State = "AUTHENTICATED"
)

// Session represents an authenticated device, keyed by its network address.
// At most one session exists per address; re-authentication overwrites it.
type Session struct {
	SessionID  uuid.UUID  `json:"sessionId"`
	Address    string     `json:"address"`
	TokenHash  string     `json:"-"`
	UserAgent  *string    `json:"userAgent,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

// New builds a session for address valid for ttl from now.
func New(address, tokenHash string, ttl time.Duration, userAgent *string) *Session {
	now := time.Now().UTC()
	return &Session{
		SessionID:  uuid.New(),
		Address:    address,
		TokenHash:  tokenHash,
		UserAgent:  userAgent,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		LastSeenAt: &now,
	}
}

func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// StateOf maps a repository lookup result to an authentication state.
// A nil session (absent or expired row) is UNAUTHENTICATED.
func StateOf(s *Session, now time.Time) State {
	if s == nil || s.IsExpired(now) {
		return StateUnauthenticated
	}
	return StateAuthenticated
}
