package redisclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blooddoc-api-server/config"
)

func TestLocalLocker_RejectsWhileHeld(t *testing.T) {
	l := NewLocalLocker(time.Second)
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- l.WithLock(context.Background(), "sos:1:h1", func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	err := l.WithLock(context.Background(), "sos:1:h1", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	// Other keys are independent.
	err = l.WithLock(context.Background(), "sos:1:h2", func(ctx context.Context) error { return nil })
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)

	err = l.WithLock(context.Background(), "sos:1:h1", func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestLocalLocker_ReleasesOnError(t *testing.T) {
	l := NewLocalLocker(0)
	boom := errors.New("boom")

	err := l.WithLock(context.Background(), "k", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	called := false
	err = l.WithLock(context.Background(), "k", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestLocalLocker_AppliesTTLToContext(t *testing.T) {
	l := NewLocalLocker(50 * time.Millisecond)
	err := l.WithLock(context.Background(), "k", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
}

// fakeRedis keeps SET NX keys in a map and runs the unlock script's compare-and-delete.
type fakeRedis struct {
	mu      sync.Mutex
	keys    map[string]string
	ttls    map[string]time.Duration
	setErr  error
	evalErr error
	evals   int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	if f.evalErr != nil {
		return redis.NewCmdResult(nil, f.evalErr)
	}
	if f.keys[keys[0]] == args[0].(string) {
		delete(f.keys, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.keys[key]
	return ok
}

func TestRedisLocker_PrefixesAndReleases(t *testing.T) {
	rdb := newFakeRedis()
	l := newRedisLocker(rdb, 3*time.Second)

	err := l.WithLock(context.Background(), "sos:1:h1", func(ctx context.Context) error {
		assert.True(t, rdb.has("blooddoc:lock:sos:1:h1"))
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, rdb.has("blooddoc:lock:sos:1:h1"))
	assert.Equal(t, 3*time.Second, rdb.ttls["blooddoc:lock:sos:1:h1"])
	assert.Equal(t, 1, rdb.evals)
}

func TestRedisLocker_CustomPrefix(t *testing.T) {
	rdb := newFakeRedis()
	l := newRedisLocker(rdb, time.Second, WithKeyPrefix("staging:"))

	err := l.WithLock(context.Background(), "request:abc", func(ctx context.Context) error {
		assert.True(t, rdb.has("staging:request:abc"))
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultKeyPrefix, newRedisLocker(rdb, time.Second, WithKeyPrefix("")).prefix)
}

func TestRedisLocker_RejectsWhileHeld(t *testing.T) {
	rdb := newFakeRedis()
	rdb.keys["blooddoc:lock:request:abc"] = "someone-else"
	l := newRedisLocker(rdb, time.Second)

	called := false
	err := l.WithLock(context.Background(), "request:abc", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, called)
	assert.Zero(t, rdb.evals)
	assert.Equal(t, "someone-else", rdb.keys["blooddoc:lock:request:abc"])
}

func TestRedisLocker_LeavesKeyTakenOverAfterExpiry(t *testing.T) {
	rdb := newFakeRedis()
	l := newRedisLocker(rdb, time.Second)

	err := l.WithLock(context.Background(), "request:abc", func(ctx context.Context) error {
		// The TTL ran out and another instance took the key.
		rdb.mu.Lock()
		rdb.keys["blooddoc:lock:request:abc"] = "other-token"
		rdb.mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "other-token", rdb.keys["blooddoc:lock:request:abc"])
}

func TestRedisLocker_BackendErrors(t *testing.T) {
	down := errors.New("connection refused")

	rdb := newFakeRedis()
	rdb.setErr = down
	err := newRedisLocker(rdb, time.Second).WithLock(context.Background(), "k", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, down)
	assert.NotErrorIs(t, err, ErrLockNotAcquired)

	// A failed release does not mask the callback's result.
	rdb = newFakeRedis()
	rdb.evalErr = down
	boom := errors.New("boom")
	err = newRedisLocker(rdb, time.Second).WithLock(context.Background(), "k", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, rdb.evals)
}

func TestNewOptions_FromConfig(t *testing.T) {
	opts := newOptions(config.RedisConfig{Addr: "redis:6379", Username: "app", Password: "pw", DB: 2})
	assert.Equal(t, "redis:6379", opts.Addr)
	assert.Equal(t, "app", opts.Username)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 10, opts.PoolSize)
}
