package storage

import (
	"context"
	"errors"
	"time"

	sfredis "github.com/angelmondragon/storefront/pkg/redis"
)

// redisKV is the slice of *redis.Client the driver relies on.
type redisKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Batch(ctx context.Context, sets map[string]string, ttl time.Duration, dels []string) error
	StorageKey(parts ...string) string
}

// Redis stores entries under sf:storage:<namespace>:<key> with an optional TTL
// refreshed on every write.
type Redis struct {
	client    redisKV
	namespace string
	ttl       time.Duration
}

func NewRedis(client redisKV, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) WithNamespace(namespace string) Storage {
	if r.namespace != "" {
		namespace = r.namespace + ":" + namespace
	}
	return &Redis{client: r.client, namespace: namespace, ttl: r.ttl}
}

func (r *Redis) key(key string) string {
	return r.client.StorageKey(r.namespace, key)
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.key(key))
	if errors.Is(err, sfredis.ErrNil) {
		return "", ErrNotFound
	}
	return val, err
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(key), value, r.ttl)
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key))
}

// Apply writes the group in one MULTI/EXEC transaction.
func (r *Redis) Apply(ctx context.Context, sets map[string]string, removes []string) error {
	keyed := make(map[string]string, len(sets))
	for key, value := range sets {
		if err := validateKey(key); err != nil {
			return err
		}
		keyed[r.key(key)] = value
	}
	dels := make([]string, 0, len(removes))
	for _, key := range removes {
		dels = append(dels, r.key(key))
	}
	return r.client.Batch(ctx, keyed, r.ttl, dels)
}
