package instance

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-redlock/v1/errors"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
    return 0
end
`)

// Redis implements Instance backed by a single Redis node.
type Redis struct {
	client  *redis.Client
	name    string
	timeout time.Duration
}

// RedisOption configures a Redis instance.
type RedisOption func(*Redis)

// WithName overrides the instance name used in diagnostics.
func WithName(name string) RedisOption {
	return func(r *Redis) {
		r.name = name
	}
}

// WithTimeout sets the per-operation timeout. It must be strictly smaller
// than the TTLs locked through this instance.
func WithTimeout(d time.Duration) RedisOption {
	return func(r *Redis) {
		r.timeout = d
	}
}

// NewRedis returns a Redis instance using the provided client. The name
// defaults to the client's address.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client:  client,
		name:    client.Options().Addr,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements Instance.Name.
func (r *Redis) Name() string {
	return r.name
}

// TryAcquire implements Instance.TryAcquire using SET NX PX.
func (r *Redis) TryAcquire(ctx context.Context, resource, token string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	ok, err := r.client.SetNX(ctx, resource, token, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrResourceLocked
	}
	return nil
}

// TryExtend implements Instance.TryExtend with a token-checked PEXPIRE.
func (r *Redis) TryExtend(ctx context.Context, resource, token string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	n, err := extendScript.Run(ctx, r.client, []string{resource}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.ErrInvalidLease
	}
	return nil
}

// TryRelease implements Instance.TryRelease with a token-checked DEL.
func (r *Redis) TryRelease(ctx context.Context, resource, token string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	n, err := releaseScript.Run(ctx, r.client, []string{resource}, token).Int64()
	if err == redis.Nil {
		return errors.ErrInvalidLease
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.ErrInvalidLease
	}
	return nil
}
