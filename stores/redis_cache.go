package stores

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache backs the decision/scope cache with Redis so multiple API
// instances share one invalidation domain. It satisfies both the cache store
// and the bulk prefix-eviction capability.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	_ = r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Remove(ctx context.Context, key string) {
	_ = r.client.Del(ctx, key).Err()
}

// RemovePrefix walks keys with SCAN rather than KEYS so eviction of a large
// user keyspace does not block the server.
func (r *RedisCache) RemovePrefix(ctx context.Context, prefix string) {
	iter := r.client.Scan(ctx, 0, prefix+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			_ = r.client.Del(ctx, batch...).Err()
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		_ = r.client.Del(ctx, batch...).Err()
	}
}
