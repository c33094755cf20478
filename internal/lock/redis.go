package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// Redis is a Locker backed by SET NX on a shared Redis.
type Redis struct {
	client        redis.UniversalClient
	keyPrefix     string
	expiration    time.Duration
	retryInterval time.Duration
	maxRetries    int
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithExpiration sets how long a lock survives a crashed holder.
func WithExpiration(d time.Duration) RedisOption {
	return func(r *Redis) { r.expiration = d }
}

// WithRetry sets how often and how many times acquisition is retried.
func WithRetry(interval time.Duration, maxRetries int) RedisOption {
	return func(r *Redis) {
		r.retryInterval = interval
		r.maxRetries = maxRetries
	}
}

// NewRedis creates a Redis locker. Keys are prefixed with keyPrefix.
func NewRedis(client redis.UniversalClient, keyPrefix string, opts ...RedisOption) *Redis {
	r := &Redis{
		client:        client,
		keyPrefix:     keyPrefix,
		expiration:    30 * time.Second,
		retryInterval: 50 * time.Millisecond,
		maxRetries:    200,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// redisLock is one acquisition of a key.
type redisLock struct {
	client redis.UniversalClient
	key    string
	token  string
	ttl    time.Duration
}

func (l *redisLock) acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	return ok, nil
}

func (l *redisLock) release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// WithLock implements Locker. It retries acquisition until the retry budget
// or ctx runs out.
func (r *Redis) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l := &redisLock{
		client: r.client,
		key:    r.keyPrefix + key,
		token:  uuid.NewString(),
		ttl:    r.expiration,
	}

	acquired := false
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		ok, err := l.acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			acquired = true
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.retryInterval):
		}
	}
	if !acquired {
		return fmt.Errorf("%w: %s", ErrAcquireFailed, l.key)
	}

	// Released on a fresh context so a cancelled caller still frees the key.
	defer func() { _ = l.release(context.WithoutCancel(ctx)) }()
	return fn(ctx)
}
