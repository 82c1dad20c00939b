package catalog

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s, _ := setupRedisStore(t)
		return s
	})
}

func TestRedisStore_KeyLayout(t *testing.T) {
	s, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertProduct(ctx, &domain.Product{ID: 7, Title: "lamp", Price: 3499, Stock: 4}))

	stock, err := mr.Get("stock:7")
	require.NoError(t, err)
	assert.Equal(t, "4", stock)
	assert.Equal(t, "3499", mr.HGet("product:7", "price"))
	assert.Equal(t, "lamp", mr.HGet("product:7", "title"))
}

func TestRedisStore_ProductWithoutStockKeyIsMissing(t *testing.T) {
	s, mr := setupRedisStore(t)
	ctx := context.Background()

	mr.HSet("product:9", "title", "orphan", "price", "100")

	_, err := s.GetProduct(ctx, 9)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestRedisStore_CorruptPrice(t *testing.T) {
	s, mr := setupRedisStore(t)
	ctx := context.Background()

	mr.HSet("product:5", "title", "broken", "price", "ten")
	require.NoError(t, mr.Set("stock:5", "1"))

	_, err := s.GetProduct(ctx, 5)
	assert.ErrorContains(t, err, "decode price")
}
