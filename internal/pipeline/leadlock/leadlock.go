// Package leadlock implements the single-writer-per-lead ownership model.
// A Redis SET NX lock keyed by (tenant, lead) serializes concurrent
// transitions for the same lead across all API instances, while leaving
// unrelated leads fully independent.
package leadlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix      = "pipeline:leadlock:"
	acquireRetry   = 25 * time.Millisecond
	defaultLockTTL = 30 * time.Second
)

// releaseScript deletes the lock only when the caller still owns it, so a
// lock that expired and was re-acquired by another writer is never released
// out from under them.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLocker is a Redis-backed LeadLocker.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a locker with the given TTL. The TTL bounds how long a crashed
// holder can block a lead; it must exceed the longest expected transition.
func New(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl}
}

func lockKey(tenantID, leadID uuid.UUID) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, tenantID, leadID)
}

// AcquireLead blocks until the lock is held or ctx is done.
func (l *RedisLocker) AcquireLead(ctx context.Context, tenantID, leadID uuid.UUID) (func(), error) {
	key := lockKey(tenantID, leadID)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lead lock: %w", err)
		}
		if ok {
			return func() {
				// Release is best effort; the TTL is the backstop.
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(acquireRetry):
		}
	}
}
