package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_MutualExclusion(t *testing.T) {
	l := NewLocal()
	g := NewGuard(l)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		counter int
		mu      sync.Mutex
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Do(ctx, "k", func(context.Context) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()
				counter++
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, l.size())
}

func TestLocal_ContextCancelledWhileWaiting(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocal_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	r1, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r2, err := l.Acquire(ctx, "b")
	require.NoError(t, err)
	r2()
	r2() // second release is a no-op
}

func TestGuard_ReentrantForSameKey(t *testing.T) {
	g := NewGuard(NewLocal())
	ctx := context.Background()
	calls := 0
	err := g.Do(ctx, "outer", func(ctx context.Context) error {
		return g.Do(ctx, "outer", func(ctx context.Context) error {
			return g.Do(ctx, "inner", func(context.Context) error {
				calls++
				return nil
			})
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestReservationKey(t *testing.T) {
	assert.Equal(t, "reservation:7:42", ReservationKey(7, 42))
}

func setupRedisLock(t *testing.T, cfg RedisConfig) (*miniredis.Miniredis, *Redis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedis(rdb, cfg)
}

func TestRedis_AcquireAndRelease(t *testing.T) {
	mr, l := setupRedisLock(t, RedisConfig{Prefix: "test", TTL: time.Second})
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:k"))

	release()
	assert.False(t, mr.Exists("test:k"))
}

func TestRedis_ContendedAcquireTimesOut(t *testing.T) {
	_, l := setupRedisLock(t, RedisConfig{TTL: time.Minute, Wait: 30 * time.Millisecond, Retry: 5 * time.Millisecond})
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	defer release()

	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRedis_ReleaseDoesNotDropForeignOwner(t *testing.T) {
	mr, l := setupRedisLock(t, RedisConfig{Prefix: "test", TTL: time.Second})
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	// lease expired and another instance took the key
	require.NoError(t, mr.Set("test:k", "someone-else"))
	release()

	v, err := mr.Get("test:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}

func TestRedis_SerializesGuardedIncrements(t *testing.T) {
	_, l := setupRedisLock(t, RedisConfig{TTL: time.Second, Wait: 5 * time.Second, Retry: time.Millisecond})
	g := NewGuard(l)
	ctx := context.Background()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, g.Do(ctx, "k", func(context.Context) error {
				v := counter
				time.Sleep(time.Millisecond)
				counter = v + 1
				return nil
			}))
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, counter)
}

func TestRedis_LeaseRenewedWhileHeld(t *testing.T) {
	mr, l := setupRedisLock(t, RedisConfig{Prefix: "test", TTL: 300 * time.Millisecond})
	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)

	// miniredis only ages keys on FastForward; renewals run in between.
	for i := 0; i < 3; i++ {
		time.Sleep(250 * time.Millisecond)
		mr.FastForward(200 * time.Millisecond)
		require.True(t, mr.Exists("test:k"), "lease expired after %d rounds", i+1)
	}

	release()
	assert.False(t, mr.Exists("test:k"))
}

func TestRedis_StopsRenewingForeignLease(t *testing.T) {
	mr, l := setupRedisLock(t, RedisConfig{Prefix: "test", TTL: 90 * time.Millisecond})
	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	require.NoError(t, mr.Set("test:k", "someone-else"))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, mr.TTL("test:k"))
}
