package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/netgate/netgate/internal/domain/session"
)

// SessionRepository implements session.Repository on Redis. Each session
// lives at portal:session:ip:<address> as JSON with a TTL equal to the
// session validity, so Put is a single atomic SET and expired records
// vanish without an explicit demotion write.
type SessionRepository struct {
	rdb *redis.Client
}

func NewSessionRepository(rdb *redis.Client) *SessionRepository {
	return &SessionRepository{rdb: rdb}
}

// sessionRecord is the persisted shape. The domain type hides TokenHash
// from JSON; the store must keep it.
type sessionRecord struct {
	SessionID  uuid.UUID  `json:"sessionId"`
	Address    string     `json:"address"`
	TokenHash  string     `json:"tokenHash"`
	UserAgent  *string    `json:"userAgent,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

func toRecord(s *session.Session) sessionRecord {
	return sessionRecord{
		SessionID:  s.SessionID,
		Address:    s.Address,
		TokenHash:  s.TokenHash,
		UserAgent:  s.UserAgent,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
		LastSeenAt: s.LastSeenAt,
	}
}

func (rec sessionRecord) toSession() *session.Session {
	return &session.Session{
		SessionID:  rec.SessionID,
		Address:    rec.Address,
		TokenHash:  rec.TokenHash,
		UserAgent:  rec.UserAgent,
		CreatedAt:  rec.CreatedAt,
		ExpiresAt:  rec.ExpiresAt,
		LastSeenAt: rec.LastSeenAt,
	}
}

func sessionKey(address string) string {
	return keyPrefixSession + address
}

func (r *SessionRepository) Get(ctx context.Context, address string) (*session.Session, error) {
	val, err := r.rdb.Get(ctx, sessionKey(address)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}

	var rec sessionRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("%w: corrupt session record: %v", session.ErrUnavailable, err)
	}
	s := rec.toSession()
	// TTL normally handles expiry; guard against clock drift between writers.
	if s.IsExpired(time.Now().UTC()) {
		if err := r.rdb.Del(ctx, sessionKey(address)).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
		}
		return nil, nil
	}
	return s, nil
}

func (r *SessionRepository) Put(ctx context.Context, s *session.Session) error {
	data, err := json.Marshal(toRecord(s))
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := r.rdb.Set(ctx, sessionKey(s.Address), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return nil
}

func (r *SessionRepository) Remove(ctx context.Context, address string) error {
	if err := r.rdb.Del(ctx, sessionKey(address)).Err(); err != nil {
		return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return nil
}

func (r *SessionRepository) Touch(ctx context.Context, address string) error {
	s, err := r.Get(ctx, address)
	if err != nil || s == nil {
		return err
	}
	now := time.Now().UTC()
	s.LastSeenAt = &now
	data, err := json.Marshal(toRecord(s))
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	// KeepTTL preserves the remaining validity window.
	if err := r.rdb.Set(ctx, sessionKey(address), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return nil
}

func (r *SessionRepository) List(ctx context.Context, limit int) ([]*session.Session, error) {
	sessions := make([]*session.Session, 0)
	iter := r.rdb.Scan(ctx, 0, keyPrefixSession+"*", int64(limit)).Iterator()
	for iter.Next(ctx) {
		if len(sessions) >= limit {
			break
		}
		val, err := r.rdb.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
		}
		var rec sessionRecord
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			continue
		}
		sessions = append(sessions, rec.toSession())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return sessions, nil
}

// DeleteExpired is a no-op for Redis: key TTLs already reclaim expired
// sessions.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int, error) {
	return 0, nil
}
