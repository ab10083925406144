package lock

// This file implements a Redis-backed lock so several service instances
// share one serialization point per reservation.  A lock is a key set with
// NX and a lease; it is released by a script that deletes the key only
// when it still carries our owner token, so an expired lease taken over by
// another instance is never released by mistake.  While the lock is held
// the lease is extended in the background, so a slow critical section does
// not lose it.

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

var renewScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('PEXPIRE', KEYS[1], ARGV[2])
    end
    return 0
`)

// RedisConfig tunes the Redis lock.
type RedisConfig struct {
	Prefix string        // key namespace, e.g. "lock"
	TTL    time.Duration // lease, renewed every TTL/3 while held
	Wait   time.Duration // max time Acquire keeps retrying
	Retry  time.Duration // delay between attempts
}

// Redis is a distributed Locker.
type Redis struct {
	rdb *redis.Client
	cfg RedisConfig
}

// NewRedis returns a Redis locker with defaults applied to zero fields.
func NewRedis(rdb *redis.Client, cfg RedisConfig) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = "lock"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Second
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 3 * time.Second
	}
	if cfg.Retry <= 0 {
		cfg.Retry = 10 * time.Millisecond
	}
	return &Redis{rdb: rdb, cfg: cfg}
}

// Acquire retries SET NX until it wins, Wait elapses or ctx is done.
func (r *Redis) Acquire(ctx context.Context, key string) (Release, error) {
	k := r.cfg.Prefix + ":" + key
	owner := uuid.NewString()
	deadline := time.Now().Add(r.cfg.Wait)
	for {
		ok, err := r.rdb.SetNX(ctx, k, owner, r.cfg.TTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return r.hold(k, owner), nil
		}
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}
		t := time.NewTimer(r.cfg.Retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// hold renews the lease of key until the returned Release runs or the key
// no longer carries owner.
func (r *Redis) hold(key, owner string) Release {
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	every := r.cfg.TTL / 3
	if every < time.Millisecond {
		every = time.Millisecond
	}
	go func() {
		defer close(stopped)
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := renewScript.Run(ctx, r.rdb, []string{key}, owner, r.cfg.TTL.Milliseconds()).Int()
				if err == nil && n == 0 {
					return // lease lost
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-stopped
			// Release even when the caller's context is already cancelled.
			rctx, rcancel := context.WithTimeout(context.Background(), time.Second)
			defer rcancel()
			_ = releaseScript.Run(rctx, r.rdb, []string{key}, owner).Err()
		})
	}
}
