package locksvc

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core"
)

func TestMemoryLocker_FailFast(t *testing.T) {
	l := NewMemoryLocker(0)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "u1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "u1")
	assert.Equal(t, core.ErrLocked, err)

	other, err := l.Acquire(ctx, "u2")
	require.NoError(t, err, "keys are independent")
	other()

	release()
	release() // idempotent

	again, err := l.Acquire(ctx, "u1")
	require.NoError(t, err)
	again()
	assert.Empty(t, l.entries)
}

func TestMemoryLocker_Wait(t *testing.T) {
	l := NewMemoryLocker(time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "u1")
	require.NoError(t, err)
	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()

	next, err := l.Acquire(ctx, "u1")
	require.NoError(t, err)
	next()

	short := NewMemoryLocker(10 * time.Millisecond)
	held, err := short.Acquire(ctx, "u1")
	require.NoError(t, err)
	defer held()
	_, err = short.Acquire(ctx, "u1")
	assert.Equal(t, core.ErrLocked, err)
}

func TestMemoryLocker_MutualExclusion(t *testing.T) {
	l := NewMemoryLocker(5 * time.Second)
	var inside, maxInside int32

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			release, err := l.Acquire(context.Background(), "u1")
			if err != nil {
				return err
			}
			defer release()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), maxInside)
}

// TestRedisLocker needs a running redis server, e.g. TEST_REDIS_ADDR=localhost:6379.
func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = rdb.Close() }()

	conf := &core.Config{Lock: core.LockConfig{TTL: 2 * time.Second}}
	l := NewRedisLocker(rdb, conf, core.NewNopLogger())
	ctx := context.Background()
	key := "test-" + time.Now().Format("150405.000000")

	release, err := l.Acquire(ctx, key)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, key)
	assert.Equal(t, core.ErrLocked, err)

	release()
	again, err := l.Acquire(ctx, key)
	require.NoError(t, err)
	again()

	ttl, err := rdb.PTTL(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	assert.True(t, ttl < 0, "lease removed on release")
}
