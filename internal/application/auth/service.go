// Package auth validates portal credentials and manages device sessions.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/netgate/netgate/internal/domain/attempt"
	"github.com/netgate/netgate/internal/domain/session"
)

// ErrInvalidCredentials is returned on a username/password mismatch.
// It never mutates the session store.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrInvalidSession is returned when a token does not match a live
// session for the address.
var ErrInvalidSession = errors.New("session invalid or expired")

// LockedError reports a temporarily locked address.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("address locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// Config carries the credential pair and session/lockout knobs.
type Config struct {
	Username        string
	Password        string
	SessionTTL      time.Duration
	MaxAttempts     int
	AttemptWindow   time.Duration
	LockoutDuration time.Duration
}

// Service handles login, logout and session verification.
type Service struct {
	sessions     session.Repository
	attempts     attempt.Repository
	username     string
	passwordHash []byte
	sessionTTL   time.Duration
	maxAttempts  int
	window       time.Duration
	lockFor      time.Duration
	logger       zerolog.Logger
}

// NewService hashes the configured password once and builds the service.
func NewService(sessions session.Repository, attempts attempt.Repository, cfg Config, logger zerolog.Logger) (*Service, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash configured password: %w", err)
	}
	return &Service{
		sessions:     sessions,
		attempts:     attempts,
		username:     cfg.Username,
		passwordHash: hash,
		sessionTTL:   cfg.SessionTTL,
		maxAttempts:  cfg.MaxAttempts,
		window:       cfg.AttemptWindow,
		lockFor:      cfg.LockoutDuration,
		logger:       logger.With().Str("service", "auth").Logger(),
	}, nil
}

// LoginResult contains the issued token and the stored session.
type LoginResult struct {
	Session *session.Session
	Token   string
}

// Login checks the credential pair for a device address. Success
// overwrites any previous session for that address; failure records the
// attempt and may lock the address, but never touches the session store.
func (s *Service) Login(ctx context.Context, address, username, password string, userAgent *string) (*LoginResult, error) {
	lock, err := s.attempts.GetLock(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("lockout lookup: %w", err)
	}
	if lock != nil {
		return nil, &LockedError{Until: lock.LockedUntil}
	}

	valid := s.verifyCredentials(username, password)
	s.recordAttempt(ctx, address, username, valid, userAgent)

	if !valid {
		s.maybeLock(ctx, address)
		s.logger.Warn().Str("address", address).Str("username", username).Msg("login failed")
		return nil, ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	sess := session.New(address, hashToken(token), s.sessionTTL, userAgent)
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info().Str("address", address).Time("expires_at", sess.ExpiresAt).Msg("device authenticated")
	return &LoginResult{Session: sess, Token: token}, nil
}

// Verify reports whether token matches a live session for address and
// refreshes its last-seen time.
func (s *Service) Verify(ctx context.Context, address, token string) (*session.Session, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	sess, err := s.sessions.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	if sess == nil || subtle.ConstantTimeCompare([]byte(sess.TokenHash), []byte(hashToken(token))) != 1 {
		return nil, ErrInvalidSession
	}
	if err := s.sessions.Touch(ctx, address); err != nil {
		s.logger.Warn().Err(err).Str("address", address).Msg("touch failed")
	}
	return sess, nil
}

// Logout removes the session for an address. Removing an absent
// session succeeds.
func (s *Service) Logout(ctx context.Context, address string) error {
	if err := s.sessions.Remove(ctx, address); err != nil {
		return err
	}
	s.logger.Info().Str("address", address).Msg("device logged out")
	return nil
}

// verifyCredentials runs both comparisons unconditionally so timing
// does not reveal which half failed.
func (s *Service) verifyCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) == nil
	return userOK && passOK
}

func (s *Service) recordAttempt(ctx context.Context, address, username string, success bool, userAgent *string) {
	err := s.attempts.Record(ctx, &attempt.Attempt{
		Address:   address,
		Username:  username,
		Success:   success,
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("address", address).Msg("failed to record login attempt")
	}
}

func (s *Service) maybeLock(ctx context.Context, address string) {
	n, err := s.attempts.CountRecentFailures(ctx, address, s.window)
	if err != nil {
		s.logger.Error().Err(err).Str("address", address).Msg("failed to count login failures")
		return
	}
	if n < s.maxAttempts {
		return
	}
	until := time.Now().UTC().Add(s.lockFor)
	if err := s.attempts.Lock(ctx, address, until, n); err != nil {
		s.logger.Error().Err(err).Str("address", address).Msg("failed to lock address")
		return
	}
	s.logger.Warn().Str("address", address).Int("failures", n).Time("until", until).Msg("address locked")
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
