package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_market/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, 20*time.Minute), mr
}

func sampleState() *domain.CartState {
	return &domain.CartState{
		Lines: []domain.CartLine{
			{ProductID: "p1", Title: "Track", UnitPrice: decimal.RequireFromString("12000"), AddedAt: time.Now().UTC()},
			{ProductID: "p2", Title: "Sample", UnitPrice: decimal.RequireFromString("8000"), AddedAt: time.Now().UTC()},
		},
		Favorites: []domain.FavoriteEntry{
			{ProductID: "p3", Title: "Loop", UnitPrice: decimal.RequireFromString("1500"), SavedAt: time.Now().UTC()},
		},
	}
}

func TestGet_Success(t *testing.T) {
	cache, mr := setupTestRedis(t)

	payload, err := json.Marshal(sampleState())
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey("user123"), string(payload)))

	state, err := cache.Get(context.Background(), "user123")
	require.NoError(t, err)
	assert.Len(t, state.Lines, 2)
	assert.Len(t, state.Favorites, 1)
	assert.True(t, decimal.RequireFromString("20000").Equal(domain.SumLines(state.Lines)))
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	state, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, state)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(cacheKey("user123"), `{"lines":[`))

	_, err := cache.Get(context.Background(), "user123")
	require.ErrorContains(t, err, "unmarshal cart failed")
}

func TestSet_WithTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)

	require.NoError(t, cache.Set(context.Background(), "user789", sampleState()))

	stored, err := mr.Get(cacheKey("user789"))
	require.NoError(t, err)
	assert.NotEmpty(t, stored)

	ttl := mr.TTL(cacheKey("user789"))
	assert.GreaterOrEqual(t, ttl, 20*time.Minute)
	assert.Less(t, ttl, 25*time.Minute)
}

func TestCacheKey_Namespaced(t *testing.T) {
	assert.Equal(t, "market:cart:u1", cacheKey("u1"))
}

func TestNewRedisCache_DefaultTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	c := NewRedisCache(client, 0)
	require.NoError(t, c.Set(context.Background(), "u1", sampleState()))
	assert.GreaterOrEqual(t, mr.TTL(cacheKey("u1")), 15*time.Minute)
}

func TestDelete(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user1", sampleState()))
	require.NoError(t, cache.Delete(ctx, "user1"))
	assert.False(t, mr.Exists(cacheKey("user1")))

	// deleting a missing key is not an error
	require.NoError(t, cache.Delete(ctx, "user1"))
}
