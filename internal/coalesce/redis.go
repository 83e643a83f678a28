package coalesce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockTimeout = errors.New("timed out waiting for write lock")
	ErrLockLost    = errors.New("write lock lost before the write finished")
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// RedisSerializer extends a Registry across processes: after the local turn
// is granted, a Redis lock on the same key is taken so that instances sharing
// the database also write one at a time. The lock is extended every ttl/3
// while the write runs; if it cannot be extended the write's context is
// canceled and Do reports ErrLockLost.
type RedisSerializer struct {
	client redis.UniversalClient
	local  *Registry
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

func NewRedisSerializer(client redis.UniversalClient, local *Registry, ttl time.Duration) *RedisSerializer {
	if local == nil {
		local = NewRegistry()
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisSerializer{
		client: client,
		local:  local,
		prefix: "config-write:",
		ttl:    ttl,
		poll:   25 * time.Millisecond,
	}
}

func (s *RedisSerializer) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return s.local.Do(ctx, key, func(ctx context.Context) error {
		lockKey := s.prefix + key
		token := uuid.NewString()
		if err := s.acquire(ctx, lockKey, token); err != nil {
			return err
		}
		defer func() {
			// release even when the caller's context is already done
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			_ = unlockScript.Run(releaseCtx, s.client, []string{lockKey}, token).Err()
		}()

		writeCtx, lost := context.WithCancelCause(ctx)
		defer lost(nil)
		stop := hold(writeCtx, s.ttl, s.ttl/3, func(ctx context.Context) (bool, error) {
			n, err := renewScript.Run(ctx, s.client, []string{lockKey}, token, s.ttl.Milliseconds()).Int()
			return n == 1, err
		}, lost)
		err := fn(writeCtx)
		stop()
		if cause := context.Cause(writeCtx); err != nil && errors.Is(cause, ErrLockLost) {
			return cause
		}
		return err
	})
}

// hold calls renew every interval until stop is called or ctx ends. A renew
// reporting false, or failures for longer than ttl minus one interval, cancel
// ctx through lost with ErrLockLost.
func hold(ctx context.Context, ttl, every time.Duration, renew func(ctx context.Context) (bool, error), lost context.CancelCauseFunc) (stop func()) {
	quit := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		lastOK := time.Now()
		for {
			select {
			case <-quit:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			ok, err := renew(ctx)
			switch {
			case err == nil && ok:
				lastOK = time.Now()
			case err == nil:
				lost(ErrLockLost)
				return
			case time.Since(lastOK) >= ttl-every:
				lost(fmt.Errorf("%w: %v", ErrLockLost, err))
				return
			}
		}
	}()
	return func() {
		close(quit)
		<-finished
	}
}

func (s *RedisSerializer) acquire(ctx context.Context, lockKey, token string) error {
	deadline := time.Now().Add(s.ttl)
	for {
		ok, err := s.client.SetNX(ctx, lockKey, token, s.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire write lock: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, lockKey)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.poll):
		}
	}
}
