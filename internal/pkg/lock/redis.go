package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if it still carries our token, so an
// expired lock re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisConfig struct {
	Prefix string
	// TTL bounds how long a crashed holder can block others.
	TTL        time.Duration
	RetryDelay time.Duration
	// Wait caps the total time spent acquiring one key.
	Wait time.Duration
}

// Redis is a Locker shared by every instance pointing at the same Redis.
type Redis struct {
	client redis.UniversalClient
	cfg    RedisConfig
	log    *zap.Logger
}

func NewRedis(client redis.UniversalClient, cfg RedisConfig, log *zap.Logger) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = "coworking:lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 20 * time.Millisecond
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 5 * time.Second
	}
	return &Redis{client: client, cfg: cfg, log: log}
}

func (r *Redis) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	token := uuid.NewString()
	held := make([]string, 0, len(keys))

	for _, k := range keys {
		if err := r.acquire(ctx, r.cfg.Prefix+k, token); err != nil {
			r.release(held, token)
			return nil, fmt.Errorf("lock %s: %w", k, err)
		}
		held = append(held, r.cfg.Prefix+k)
	}

	var once sync.Once
	return func() { once.Do(func() { r.release(held, token) }) }, nil
}

func (r *Redis) acquire(ctx context.Context, key, token string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Wait)
	defer cancel()

	ticker := time.NewTicker(r.cfg.RetryDelay)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.cfg.TTL).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return ErrNotAcquired
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Redis) release(keys []string, token string) {
	// Release must run even when the caller's context is gone.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := len(keys) - 1; i >= 0; i-- {
		if err := releaseScript.Run(ctx, r.client, []string{keys[i]}, token).Err(); err != nil {
			r.log.Warn("lock release failed", zap.String("key", keys[i]), zap.Error(err))
		}
	}
}
