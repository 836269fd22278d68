package keylock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSerializesSameKey(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "company:job_1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, 0, l.size())
}

func TestLocalDifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	timeout, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	unlockB, err := l.Lock(timeout, "b")
	require.NoError(t, err)
	unlockB()
}

func TestLocalHonoursContext(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "a")
	require.NoError(t, err)

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(timeout, "a")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Equal(t, 0, l.size())
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLockExcludesSecondHolder(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedis(client, time.Minute, WithPollInterval(5*time.Millisecond))
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "c1:job_1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"c1:job_1"))

	timeout, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = l.Lock(timeout, "c1:job_1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.False(t, mr.Exists(keyPrefix+"c1:job_1"))

	unlock2, err := l.Lock(ctx, "c1:job_1")
	require.NoError(t, err)
	unlock2()
}

func TestRedisReleaseDoesNotDeleteForeignToken(t *testing.T) {
	mr, client := newTestRedis(t)

	var lost []string
	l := NewRedis(client, time.Second, WithLostHandler(func(key string, err error) {
		lost = append(lost, key)
		assert.ErrorIs(t, err, ErrLockLost)
	}))

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	// simulate expiry followed by another holder taking the key
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set(keyPrefix+"k", "someone-else"))

	unlock()

	got, err := mr.Get(keyPrefix + "k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
	assert.Equal(t, []string{"k"}, lost)
}

func TestRedisLockOutlivesTTLWhileHeld(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedis(client, 300*time.Millisecond,
		WithPollInterval(5*time.Millisecond),
		WithRefreshInterval(20*time.Millisecond),
	)
	ctx := context.Background()
	key := keyPrefix + "c1:job_1"

	unlock, err := l.Lock(ctx, "c1:job_1")
	require.NoError(t, err)

	mr.FastForward(200 * time.Millisecond)
	require.Eventually(t, func() bool {
		return mr.TTL(key) > 200*time.Millisecond
	}, time.Second, 5*time.Millisecond)

	// past the original TTL; only the refresh keeps the key alive
	mr.FastForward(200 * time.Millisecond)
	assert.True(t, mr.Exists(key))

	timeout, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = l.Lock(timeout, "c1:job_1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.False(t, mr.Exists(key))
}

func TestRedisWatchdogReportsStolenLockOnce(t *testing.T) {
	mr, client := newTestRedis(t)

	lost := make(chan string, 4)
	l := NewRedis(client, 300*time.Millisecond,
		WithRefreshInterval(10*time.Millisecond),
		WithLostHandler(func(key string, err error) {
			assert.ErrorIs(t, err, ErrLockLost)
			lost <- key
		}),
	)

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	require.NoError(t, mr.Set(keyPrefix+"k", "someone-else"))

	select {
	case key := <-lost:
		assert.Equal(t, "k", key)
	case <-time.After(time.Second):
		t.Fatal("lost handler not called")
	}

	unlock()
	unlock()
	assert.Empty(t, lost)

	got, err := mr.Get(keyPrefix + "k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
