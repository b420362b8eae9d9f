package lock

import (
	"context"
	"time"

	"inviteflow/core/errors"
	"inviteflow/core/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our token, so a
// lease that expired and was re-acquired elsewhere is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker backed by SET NX leases, for deployments running
// more than one engine instance against the same inbox pool.
type RedisLocker struct {
	client  redis.UniversalClient
	lease   time.Duration
	timeout time.Duration
	poll    time.Duration
}

func NewRedisLocker(client redis.UniversalClient, lease, timeout time.Duration) *RedisLocker {
	return &RedisLocker{
		client:  client,
		lease:   lease,
		timeout: timeout,
		poll:    50 * time.Millisecond,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	timer := time.NewTimer(l.timeout)
	defer timer.Stop()
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.lease).Result()
		if err != nil {
			return nil, errors.NewAppError(errors.ErrInternalServer, "lock backend unavailable", err)
		}
		if ok {
			return func() {
				if err := releaseScript.Run(context.Background(), l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
					logger.Warn("RedisLocker:Release:Failed", "key", key, "error", err)
				}
			}, nil
		}

		select {
		case <-ticker.C:
		case <-timer.C:
			return nil, errors.NewAppError(errors.ErrLockTimeout, "lock acquisition timed out for "+key, nil)
		case <-ctx.Done():
			return nil, errors.NewAppError(errors.ErrLockTimeout, "lock acquisition canceled for "+key, ctx.Err())
		}
	}
}
