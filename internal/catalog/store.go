// Package catalog holds product records and the stock counters the inventory
// guard decrements. Every Store implementation applies DecrementStock as one
// atomic conditional write.
package catalog

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
)

var (
	ErrProductNotFound = fmt.Errorf("product %w", domain.ErrNotFound)
	// ErrStockConflict means the conditional decrement found less stock than
	// requested at write time.
	ErrStockConflict   = fmt.Errorf("stock decrement rejected: %w", domain.ErrConflict)
	ErrInvalidProduct  = fmt.Errorf("%w: product", domain.ErrInvalidArgument)
)

type Store interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)

	// GetProducts returns the products that exist among ids, keyed by id.
	GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)

	// DecrementStock subtracts quantity only when stock >= quantity.
	DecrementStock(ctx context.Context, id int64, quantity int) error

	// IncrementStock returns quantity to stock, used for compensation.
	IncrementStock(ctx context.Context, id int64, quantity int) error

	// UpsertProduct creates or replaces a product, used for seeding.
	UpsertProduct(ctx context.Context, p *domain.Product) error

	Close() error
}

func validateProduct(p *domain.Product) error {
	if p == nil || p.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidProduct)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	}
	return nil
}

func validateQuantity(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidArgument)
	}
	return nil
}
