package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/netgate/netgate/internal/domain/attempt"
)

// AttemptRepository implements attempt.Repository on Redis. Failures are
// a per-address sorted set scored by unix time, which makes the recent
// failure count a ZCOUNT over the window. The global attempt log is a
// capped list of JSON entries.
type AttemptRepository struct {
	rdb *redis.Client
}

func NewAttemptRepository(rdb *redis.Client) *AttemptRepository {
	return &AttemptRepository{rdb: rdb}
}

func failureKey(address string) string {
	return keyPrefixFailure + address
}

func lockoutKey(address string) string {
	return keyPrefixLockout + address
}

func (r *AttemptRepository) Record(ctx context.Context, a *attempt.Attempt) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}

	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, keyAttemptLog, data)
	pipe.LTrim(ctx, keyAttemptLog, 0, attemptLogCap-1)
	if !a.Success {
		pipe.ZAdd(ctx, failureKey(a.Address), redis.Z{
			Score:  float64(a.CreatedAt.Unix()),
			Member: uuid.NewString(),
		})
		pipe.Expire(ctx, failureKey(a.Address), 24*time.Hour)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *AttemptRepository) CountRecentFailures(ctx context.Context, address string, window time.Duration) (int, error) {
	from := strconv.FormatInt(time.Now().UTC().Add(-window).Unix(), 10)
	n, err := r.rdb.ZCount(ctx, failureKey(address), from, "+inf").Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *AttemptRepository) Lock(ctx context.Context, address string, until time.Time, failures int) error {
	l := attempt.Lockout{Address: address, LockedUntil: until, Failures: failures}
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		ttl = time.Second
	}
	return r.rdb.Set(ctx, lockoutKey(address), data, ttl).Err()
}

func (r *AttemptRepository) GetLock(ctx context.Context, address string) (*attempt.Lockout, error) {
	val, err := r.rdb.Get(ctx, lockoutKey(address)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var l attempt.Lockout
	if err := json.Unmarshal([]byte(val), &l); err != nil {
		return nil, fmt.Errorf("corrupt lockout record: %w", err)
	}
	if !l.Active(time.Now().UTC()) {
		return nil, nil
	}
	return &l, nil
}

func (r *AttemptRepository) ListAttempts(ctx context.Context, limit, offset int) ([]*attempt.Attempt, error) {
	vals, err := r.rdb.LRange(ctx, keyAttemptLog, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, err
	}
	attempts := make([]*attempt.Attempt, 0, len(vals))
	for _, val := range vals {
		var a attempt.Attempt
		if err := json.Unmarshal([]byte(val), &a); err != nil {
			continue
		}
		attempts = append(attempts, &a)
	}
	return attempts, nil
}
