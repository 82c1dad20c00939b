package catalog

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/pkg/circuitbreaker"
)

// breakerStore guards a Store with a circuit breaker. Business outcomes
// (missing product, stock conflict) do not count as failures.
type breakerStore struct {
	next Store
	cb   *circuitbreaker.Breaker
}

func WithBreaker(next Store, cb *circuitbreaker.Breaker) Store {
	return &breakerStore{next: next, cb: cb}
}

func unavailable(err error) error {
	if circuitbreaker.IsOpen(err) {
		return fmt.Errorf("%w: catalog: %v", domain.ErrUnavailable, err)
	}
	return err
}

func (b *breakerStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := circuitbreaker.Do(b.cb, func() (*domain.Product, error) {
		return b.next.GetProduct(ctx, id)
	})
	return p, unavailable(err)
}

func (b *breakerStore) GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	ps, err := circuitbreaker.Do(b.cb, func() (map[int64]*domain.Product, error) {
		return b.next.GetProducts(ctx, ids)
	})
	return ps, unavailable(err)
}

func (b *breakerStore) DecrementStock(ctx context.Context, id int64, quantity int) error {
	return unavailable(circuitbreaker.Run(b.cb, func() error {
		return b.next.DecrementStock(ctx, id, quantity)
	}))
}

func (b *breakerStore) IncrementStock(ctx context.Context, id int64, quantity int) error {
	return unavailable(circuitbreaker.Run(b.cb, func() error {
		return b.next.IncrementStock(ctx, id, quantity)
	}))
}

func (b *breakerStore) UpsertProduct(ctx context.Context, p *domain.Product) error {
	return unavailable(circuitbreaker.Run(b.cb, func() error {
		return b.next.UpsertProduct(ctx, p)
	}))
}

func (b *breakerStore) Close() error {
	return b.next.Close()
}
