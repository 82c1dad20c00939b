package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "cart:"
	defaultTTL    = 15 * time.Minute
	defaultJitter = 5 * time.Minute
)

type Option func(*RedisCache)

// WithTTL sets the base lifetime of an entry and the upper bound of the
// random extension added to it. A zero jitter gives every entry ttl.
func WithTTL(ttl, jitter time.Duration) Option {
	return func(r *RedisCache) {
		r.ttl, r.jitter = ttl, jitter
	}
}

// RedisCache keeps one JSON encoded cart per user.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	jitter time.Duration
}

func NewRedisCache(client redis.UniversalClient, opts ...Option) *RedisCache {
	r := &RedisCache{client: client, ttl: defaultTTL, jitter: defaultJitter}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrCacheMiss
	case err != nil:
		return nil, fmt.Errorf("read cached cart of %s: %w", userID, err)
	}

	cart := new(domain.Cart)
	if err := json.Unmarshal(data, cart); err != nil {
		return nil, fmt.Errorf("decode cached cart of %s: %w", userID, err)
	}
	return cart, nil
}

func (r *RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart of %s: %w", userID, err)
	}
	if err := r.client.Set(ctx, cacheKey(userID), data, r.expiry()).Err(); err != nil {
		return fmt.Errorf("write cached cart of %s: %w", userID, err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("evict cached cart of %s: %w", userID, err)
	}
	return nil
}

// expiry spreads entries written together over [ttl, ttl+jitter).
func (r *RedisCache) expiry() time.Duration {
	if r.jitter <= 0 {
		return r.ttl
	}
	return r.ttl + rand.N(r.jitter)
}

func cacheKey(userID string) string {
	return keyPrefix + userID
}
