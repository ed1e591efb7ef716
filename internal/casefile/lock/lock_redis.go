package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"canlaw/pkg/domain"
	"canlaw/pkg/platform/sentinel"
)

const lockKeyPrefix = "canlaw:caselock:"

// releaseScript deletes the lock only when the stored token matches, so a
// node can never release a lock it lost to TTL expiry.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a multi-node Locker built on SET NX PX with token-checked
// release. The TTL bounds how long a crashed holder can wedge a case.
type RedisLocker struct {
	rdb        redis.UniversalClient
	ttl        time.Duration
	retryDelay time.Duration
	maxRetries int
}

func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		rdb:        rdb,
		ttl:        ttl,
		retryDelay: 50 * time.Millisecond,
		maxRetries: 20,
	}
}

func (r *RedisLocker) Acquire(ctx context.Context, id domain.CaseID) (func(), error) {
	key := lockKeyPrefix + id.String()
	token := uuid.NewString()

	for attempt := 0; ; attempt++ {
		ok, err := r.rdb.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire case lock: %w", err)
		}
		if ok {
			break
		}
		if attempt >= r.maxRetries {
			return nil, fmt.Errorf("case %s: %w", id, sentinel.ErrLocked)
		}
		select {
		case <-time.After(r.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	release := func() {
		// Best effort with a detached context: release must work even when
		// the pass failed with a cancelled context.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, r.rdb, []string{key}, token).Err()
	}
	return release, nil
}
