package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const (
	defaultRetryInterval = 25 * time.Millisecond
	keyPrefix            = "lock:schedule:"
)

// Redis is a single-instance lease lock: SET NX PX to take it, compare-and-delete to give it back.
type Redis struct {
	client        redis.Cmdable
	ttl           time.Duration
	retryInterval time.Duration
	log           *zap.Logger
}

func NewRedis(client redis.Cmdable, ttl time.Duration, log *zap.Logger) *Redis {
	return &Redis{
		client:        client,
		ttl:           ttl,
		retryInterval: defaultRetryInterval,
		log:           log.With(zap.String("lock", "redis")),
	}
}

func (l *Redis) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()
	redisKey := keyPrefix + key

	if err := l.acquire(ctx, redisKey, token); err != nil {
		return err
	}
	defer l.release(ctx, redisKey, token)

	// fn must finish before the lease runs out
	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(lockCtx)
}

func (l *Redis) acquire(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Redis) release(ctx context.Context, key, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		l.log.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
	}
}
