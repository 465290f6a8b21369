package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when a key stays held by someone else until the
// caller's context ends.
var ErrNotAcquired = errors.New("lock: not acquired")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig tunes a RedisLocker.
type RedisConfig struct {
	// TTL bounds how long a crashed holder can block a key.
	TTL        time.Duration
	RetryEvery time.Duration
	Prefix     string
	Logger     *slog.Logger
}

// RedisLocker holds keys across processes with SET NX PX. Release only
// deletes a key still carrying this lock's token.
type RedisLocker struct {
	rdb        redis.UniversalClient
	ttl        time.Duration
	retryEvery time.Duration
	prefix     string
	logger     *slog.Logger
}

// NewRedisLocker wraps rdb with defaults of a 10s TTL and 25ms retry interval.
func NewRedisLocker(rdb redis.UniversalClient, cfg RedisConfig) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.RetryEvery <= 0 {
		cfg.RetryEvery = 25 * time.Millisecond
	}
	cfg.Prefix = strings.TrimSpace(cfg.Prefix)
	if cfg.Prefix == "" {
		cfg.Prefix = "scheduler:lock"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RedisLocker{
		rdb:        rdb,
		ttl:        cfg.TTL,
		retryEvery: cfg.RetryEvery,
		prefix:     cfg.Prefix,
		logger:     cfg.Logger,
	}
}

// Lock acquires every key in sorted order, polling until ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	token := uuid.NewString()
	ordered := normalizeKeys(keys)
	held := make([]string, 0, len(ordered))
	for _, key := range ordered {
		name := l.prefix + ":" + key
		if err := l.acquire(ctx, name, token); err != nil {
			l.release(held, token)
			return nil, err
		}
		held = append(held, name)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(held, token) })
	}, nil
}

func (l *RedisLocker) acquire(ctx context.Context, name, token string) error {
	ticker := time.NewTicker(l.retryEvery)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, name, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %s: %w", ErrNotAcquired, name, ctx.Err())
			}
			return fmt.Errorf("lock: acquiring %s: %w", name, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", ErrNotAcquired, name, ctx.Err())
		case <-ticker.C:
		}
	}
}

// release runs detached from the caller's context so a canceled request still
// frees its keys.
func (l *RedisLocker) release(names []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(names) - 1; i >= 0; i-- {
		if err := releaseScript.Run(ctx, l.rdb, []string{names[i]}, token).Err(); err != nil {
			l.logger.Warn("failed to release lock", "key", names[i], "error", err)
		}
	}
}
