package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_market/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "market:cart:"

// RedisCache stores account cart snapshots as JSON. Entries expire after
// ttl plus up to a quarter of ttl so carts loaded together do not expire
// together.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.CartState, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrCacheMiss
	case err != nil:
		return nil, fmt.Errorf("cart cache get %s: %w", userID, err)
	}

	state := new(domain.CartState)
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return state, nil
}

func (r *RedisCache) Set(ctx context.Context, userID string, state *domain.CartState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	return r.client.Set(ctx, cacheKey(userID), payload, r.expiry()).Err()
}

func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("cart cache delete %s: %w", userID, err)
	}
	return nil
}

func (r *RedisCache) expiry() time.Duration {
	spread := int64(r.ttl / 4)
	if spread <= 0 {
		return r.ttl
	}
	return r.ttl + time.Duration(rand.Int63n(spread))
}

func cacheKey(userID string) string {
	return keyPrefix + userID
}
