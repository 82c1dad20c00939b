// Package inventory enforces "requested quantity <= available stock" and
// performs the stock reservations checkout depends on.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/catalog"
	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/internal/observability"
	"github.com/fjod/go_cart/fulfillment-service/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	DefaultReserveAttempts = 3
	DefaultReserveBackoff  = 5 * time.Millisecond
)

type Guard struct {
	store    catalog.Store
	attempts int
	backoff  time.Duration
	obs      *observability.Observer
	log      *zap.Logger
}

type Option func(*Guard)

// WithRetry sets how many conditional decrements Reserve attempts before
// reporting OutOfStock, and the base of the exponential backoff between them.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(g *Guard) {
		if attempts > 0 {
			g.attempts = attempts
		}
		if backoff >= 0 {
			g.backoff = backoff
		}
	}
}

func WithObserver(o *observability.Observer) Option {
	return func(g *Guard) { g.obs = o }
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.log = l
		}
	}
}

func NewGuard(store catalog.Store, opts ...Option) *Guard {
	g := &Guard{
		store:    store,
		attempts: DefaultReserveAttempts,
		backoff:  DefaultReserveBackoff,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func outOfStock(productID int64) error {
	return fmt.Errorf("product %d: %w", productID, domain.ErrOutOfStock)
}

// Product reads the current catalog record.
func (g *Guard) Product(ctx context.Context, productID int64) (*domain.Product, error) {
	p, err := g.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	return p, nil
}

// Products reads the catalog records of ids; missing products are absent.
func (g *Guard) Products(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	ps, err := g.store.GetProducts(ctx, ids)
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	return ps, nil
}

// Require returns the product when quantity <= its current stock, and
// OutOfStock otherwise. Nothing is held.
func (g *Guard) Require(ctx context.Context, productID int64, quantity int) (*domain.Product, error) {
	p, err := g.Product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > p.Stock {
		return nil, outOfStock(productID)
	}
	return p, nil
}

// CheckAvailable reports whether quantity <= stock(productID).
func (g *Guard) CheckAvailable(ctx context.Context, productID int64, quantity int) (bool, error) {
	_, err := g.Require(ctx, productID, quantity)
	if errors.Is(err, domain.ErrOutOfStock) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Reserve atomically takes quantity units of productID. A decrement the store
// rejected is re-checked against fresh stock and retried while stock still
// covers the request.
func (g *Guard) Reserve(ctx context.Context, productID int64, quantity int) (err error) {
	ctx, end := g.obs.Start(ctx, "inventory.reserve",
		attribute.Int64("product_id", productID),
		attribute.Int("quantity", quantity))
	defer func() { end(err) }()

	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidArgument)
	}

	for attempt := 0; attempt < g.attempts; attempt++ {
		err := g.store.DecrementStock(ctx, productID, quantity)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return domain.Unavailable(err)
		}
		g.obs.StockConflict()

		p, err := g.store.GetProduct(ctx, productID)
		if err != nil {
			return domain.Unavailable(err)
		}
		if p.Stock < quantity {
			return outOfStock(productID)
		}

		logger.FromContext(ctx, g.log).Debug("stock decrement conflicted, retrying",
			zap.Int64("product_id", productID),
			zap.Int("attempt", attempt+1))

		if err := g.sleep(ctx, attempt); err != nil {
			return err
		}
	}
	return outOfStock(productID)
}

func (g *Guard) sleep(ctx context.Context, attempt int) error {
	if g.backoff <= 0 {
		return nil
	}
	t := time.NewTimer(g.backoff << attempt)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return domain.Unavailable(ctx.Err())
	}
}

// Release gives quantity units of productID back to stock.
func (g *Guard) Release(ctx context.Context, productID int64, quantity int) error {
	return domain.Unavailable(g.store.IncrementStock(ctx, productID, quantity))
}

// ReserveAll reserves every line or none: on the first failure the lines
// already taken are released and that failure is returned.
func (g *Guard) ReserveAll(ctx context.Context, lines []domain.Line) error {
	for i, line := range lines {
		if err := g.Reserve(ctx, line.ProductID, line.Quantity); err != nil {
			if relErr := g.ReleaseAll(context.WithoutCancel(ctx), lines[:i]); relErr != nil {
				logger.FromContext(ctx, g.log).Error("failed to release partial reservation",
					zap.Error(relErr))
			}
			return err
		}
	}
	return nil
}

// ReleaseAll releases every line and reports all failures together.
func (g *Guard) ReleaseAll(ctx context.Context, lines []domain.Line) error {
	var errs []error
	for _, line := range lines {
		if err := g.Release(ctx, line.ProductID, line.Quantity); err != nil {
			errs = append(errs, fmt.Errorf("release product %d: %w", line.ProductID, err))
		}
	}
	return errors.Join(errs...)
}
