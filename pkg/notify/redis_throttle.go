package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultThrottlePrefix = "notify:throttle:"

// RedisThrottleIndex implements ThrottleIndex on a shared Redis instance so
// duplicate suppression works across multiple application processes.
type RedisThrottleIndex struct {
	client redis.UniversalClient
	prefix string
}

// RedisThrottleOption configures a RedisThrottleIndex.
type RedisThrottleOption func(*RedisThrottleIndex)

// WithThrottlePrefix overrides the key namespace.
func WithThrottlePrefix(prefix string) RedisThrottleOption {
	return func(r *RedisThrottleIndex) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// NewRedisThrottleIndex creates an index over an existing Redis client.
func NewRedisThrottleIndex(client redis.UniversalClient, opts ...RedisThrottleOption) *RedisThrottleIndex {
	r := &RedisThrottleIndex{
		client: client,
		prefix: defaultThrottlePrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reserve is a single SET NX PX round trip: true when the key was free and
// is now held for the window, false when another emission already holds it.
func (r *RedisThrottleIndex) Reserve(ctx context.Context, key string, window time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.prefix+key, 1, window).Result()
}
