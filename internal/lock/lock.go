// Package lock coordinates refreshes across replicas.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Unlock releases a held lock.
type Unlock func(ctx context.Context) error

// Locker hands out short-lived named locks.
type Locker interface {
	// TryLock takes key for ttl without blocking. When another holder has it,
	// acquired is false and unlock is nil.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock Unlock, acquired bool, err error)
	// Wait blocks until key is free or ctx is done.
	Wait(ctx context.Context, key string) error
}

// Noop always acquires. It is the single-replica default.
type Noop struct{}

// TryLock always succeeds.
func (Noop) TryLock(context.Context, string, time.Duration) (Unlock, bool, error) {
	return func(context.Context) error { return nil }, true, nil
}

// Wait returns immediately.
func (Noop) Wait(ctx context.Context, _ string) error {
	return ctx.Err()
}

// DefaultPollInterval is how often Wait checks a held key.
const DefaultPollInterval = 200 * time.Millisecond

// releaseScript deletes the key only if it still carries our token, so an
// expired lock taken over by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis implements Locker with SET NX PX.
type Redis struct {
	client *redis.Client
	prefix string
	poll   time.Duration
}

// NewRedis creates a Redis locker. Keys are namespaced under prefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "catalog:lock:"
	}
	return &Redis{client: client, prefix: prefix, poll: DefaultPollInterval}
}

// NewRedisFromURL parses a redis:// URL and pings the server.
func NewRedisFromURL(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewRedis(client, ""), nil
}

// TryLock takes key for ttl.
func (r *Redis) TryLock(ctx context.Context, key string, ttl time.Duration) (Unlock, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.prefix+key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	log.Debug().Str("key", key).Dur("ttl", ttl).Msg("Acquired refresh lock")
	return func(ctx context.Context) error {
		err := releaseScript.Run(ctx, r.client, []string{r.prefix + key}, token).Err()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}, true, nil
}

// Wait polls until key disappears.
func (r *Redis) Wait(ctx context.Context, key string) error {
	t := time.NewTicker(r.poll)
	defer t.Stop()
	for {
		n, err := r.client.Exists(ctx, r.prefix+key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

var (
	_ Locker = Noop{}
	_ Locker = (*Redis)(nil)
)
