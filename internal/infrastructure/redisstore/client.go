// Package redisstore provides Redis-backed implementations of the
// session and attempt repositories. Expiry is delegated to key TTLs,
// which gives the same observable contract as the Postgres backend:
// readers never see a stale authenticated record.
package redisstore

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefixSession = "portal:session:ip:"
	keyPrefixLockout = "portal:lockout:"
	keyPrefixFailure = "portal:failures:"
	keyAttemptLog    = "portal:attempts"

	// attemptLogCap bounds the global attempt log length.
	attemptLogCap = 1000
)

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}
