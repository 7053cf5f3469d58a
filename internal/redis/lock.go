package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var (
	ErrLockNotAcquired = errors.New("resource is being processed, retry")
)

// Locker guards respond operations per request or per SOS slot.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// DefaultKeyPrefix namespaces lock keys when Redis is shared with other services.
const DefaultKeyPrefix = "blooddoc:lock:"

// lockBackend is the part of *redis.Client the locker uses.
type lockBackend interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisLocker struct {
	client lockBackend
	ttl    time.Duration
	prefix string
}

type LockerOption func(*redisLocker)

// WithKeyPrefix replaces DefaultKeyPrefix. An empty prefix keeps the default.
func WithKeyPrefix(prefix string) LockerOption {
	return func(l *redisLocker) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// NewRedisLocker creates a locker that holds one Redis key per resource for at most ttl.
func NewRedisLocker(client *redis.Client, ttl time.Duration, opts ...LockerOption) Locker {
	return newRedisLocker(client, ttl, opts...)
}

func newRedisLocker(client lockBackend, ttl time.Duration, opts ...LockerOption) *redisLocker {
	l := &redisLocker{client: client, ttl: ttl, prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *redisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	key = l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		if err := l.release(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("lock release failed, key expires with its ttl")
		}
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

// Deletes the key only while it still holds our token, so an expired lock
// re-acquired by another caller is left alone.
const unlockScript = `
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	_, err := l.client.Eval(ctx, unlockScript, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// localLocker is the in-process fallback when Redis is not configured.
type localLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
	ttl  time.Duration
}

func NewLocalLocker(ttl time.Duration) Locker {
	return &localLocker{held: make(map[string]struct{}), ttl: ttl}
}

func (l *localLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if _, busy := l.held[key]; busy {
		l.mu.Unlock()
		return ErrLockNotAcquired
	}
	l.held[key] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()

	if l.ttl > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.ttl)
		defer cancel()
	}
	return fn(ctx)
}
