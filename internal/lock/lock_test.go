package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exercise runs n concurrent critical sections and reports the highest
// number of them ever inside at once.
func exercise(t *testing.T, l Locker, n int) int32 {
	t.Helper()
	var inside, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(context.Background(), "activity", func(context.Context) error {
				cur := inside.Add(1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	return peak.Load()
}

func TestMutexSerializes(t *testing.T) {
	assert.Equal(t, int32(1), exercise(t, NewMutex(), 16))
}

func TestMutexPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := NewMutex().WithLock(context.Background(), "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestMutexHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := NewMutex().WithLock(ctx, "k", func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisSerializes(t *testing.T) {
	_, client := newRedis(t)
	l := NewRedis(client, "dirsync:lock:", WithRetry(time.Millisecond, 5000))
	assert.Equal(t, int32(1), exercise(t, l, 8))
}

func TestRedisReleasesKey(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedis(client, "dirsync:lock:")

	err := l.WithLock(context.Background(), "activity", func(context.Context) error {
		assert.True(t, mr.Exists("dirsync:lock:activity"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("dirsync:lock:activity"))
}

func TestRedisGivesUpWhenHeld(t *testing.T) {
	mr, client := newRedis(t)
	require.NoError(t, mr.Set("dirsync:lock:activity", "someone-else"))

	l := NewRedis(client, "dirsync:lock:", WithRetry(time.Millisecond, 3))
	err := l.WithLock(context.Background(), "activity", func(context.Context) error {
		t.Fatal("must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrAcquireFailed)
	got, _ := mr.Get("dirsync:lock:activity")
	assert.Equal(t, "someone-else", got, "foreign lock untouched")
}

func TestRedisReleaseOnlyOwnToken(t *testing.T) {
	mr, client := newRedis(t)
	l := &redisLock{client: client, key: "k", token: "mine", ttl: time.Minute}
	require.NoError(t, mr.Set("k", "theirs"))

	assert.ErrorIs(t, l.release(context.Background()), ErrNotHeld)
	assert.True(t, mr.Exists("k"))
}

func TestRedisExpiration(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedis(client, "p:", WithExpiration(time.Second))

	err := l.WithLock(context.Background(), "k", func(context.Context) error {
		assert.Equal(t, time.Second, mr.TTL("p:k"))
		return nil
	})
	require.NoError(t, err)
}
