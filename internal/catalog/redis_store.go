package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	productKeyPrefix = "product:"
	stockKeyPrefix   = "stock:"
)

// Returns -1 when the stock key is missing, 0 when stock is short, 1 on
// success.
var decrementStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return -1
end

current = tonumber(current)
if current >= quantity then
	redis.call('DECRBY', key, quantity)
	return 1
end

return 0
`)

var incrementStockScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 0 then
	return -1
end
return redis.call('INCRBY', key, tonumber(ARGV[1]))
`)

// RedisStore keeps each product as a hash and its stock as a separate
// integer key so the Lua scripts touch one key.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func productKey(id int64) string {
	return productKeyPrefix + strconv.FormatInt(id, 10)
}

func stockKey(id int64) string {
	return stockKeyPrefix + strconv.FormatInt(id, 10)
}

func (r *RedisStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	products, err := r.GetProducts(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	p, ok := products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return p, nil
}

func (r *RedisStore) GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	pipe := r.client.Pipeline()
	fields := make([]*redis.MapStringStringCmd, len(ids))
	stocks := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		fields[i] = pipe.HGetAll(ctx, productKey(id))
		stocks[i] = pipe.Get(ctx, stockKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis pipeline failed: %w", err)
	}

	result := make(map[int64]*domain.Product, len(ids))
	for i, id := range ids {
		h := fields[i].Val()
		if len(h) == 0 {
			continue
		}
		stock, err := stocks[i].Int()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("read stock of product %d: %w", id, err)
		}
		p, err := decodeProduct(id, h)
		if err != nil {
			return nil, err
		}
		p.Stock = stock
		result[id] = p
	}
	return result, nil
}

func decodeProduct(id int64, h map[string]string) (*domain.Product, error) {
	price, err := strconv.ParseInt(h["price"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode price of product %d: %w", id, err)
	}
	p := &domain.Product{
		ID:          id,
		Title:       h["title"],
		Description: h["description"],
		Category:    h["category"],
		Price:       price,
	}
	if ts, err := time.Parse(time.RFC3339Nano, h["updated_at"]); err == nil {
		p.UpdatedAt = ts
	}
	return p, nil
}

func (r *RedisStore) DecrementStock(ctx context.Context, id int64, quantity int) error {
	if err := validateQuantity(quantity); err != nil {
		return err
	}
	result, err := decrementStockScript.Run(ctx, r.client, []string{stockKey(id)}, quantity).Int()
	if err != nil {
		return fmt.Errorf("decrement stock script failed: %w", err)
	}
	switch result {
	case 1:
		return nil
	case 0:
		return ErrStockConflict
	default:
		return ErrProductNotFound
	}
}

func (r *RedisStore) IncrementStock(ctx context.Context, id int64, quantity int) error {
	if err := validateQuantity(quantity); err != nil {
		return err
	}
	result, err := incrementStockScript.Run(ctx, r.client, []string{stockKey(id)}, quantity).Int()
	if err != nil {
		return fmt.Errorf("increment stock script failed: %w", err)
	}
	if result < 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *RedisStore) UpsertProduct(ctx context.Context, p *domain.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, productKey(p.ID),
			"title", p.Title,
			"description", p.Description,
			"category", p.Category,
			"price", p.Price,
			"updated_at", updatedAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.Set(ctx, stockKey(p.ID), p.Stock, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis upsert product failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return nil
}
