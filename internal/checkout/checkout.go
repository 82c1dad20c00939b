// Package checkout turns a user's cart into an order. Checkout is all or
// nothing: either the order exists, stock reflects it and the cart is gone,
// or none of that happened.
package checkout

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/internal/observability"
	"github.com/fjod/go_cart/fulfillment-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrEmptyCart is returned for a cart that exists but has no lines, which
	// Decrease can leave behind.
	ErrEmptyCart   = fmt.Errorf("%w: cart is empty, nothing to checkout", domain.ErrInvalidArgument)
	ErrMissingUser = fmt.Errorf("%w: user id is required", domain.ErrInvalidArgument)
)

// Carts is the part of the cart service checkout drives. Load and Delete are
// called with the lock returned by Lock held.
type Carts interface {
	Lock(userID string) func()
	Load(ctx context.Context, userID string) (*domain.Cart, error)
	Delete(ctx context.Context, userID string) error
}

type Stock interface {
	ReserveAll(ctx context.Context, lines []domain.Line) error
	ReleaseAll(ctx context.Context, lines []domain.Line) error
	Products(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
}

type Orders interface {
	Create(ctx context.Context, userID string, items []domain.OrderItem, total int64, payment *domain.Payment) (*domain.Order, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Orchestrator struct {
	carts  Carts
	stock  Stock
	orders Orders
	obs    *observability.Observer
	log    *zap.Logger
}

type Option func(*Orchestrator)

func WithObserver(o *observability.Observer) Option {
	return func(c *Orchestrator) { c.obs = o }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Orchestrator) {
		if l != nil {
			c.log = l
		}
	}
}

func New(carts Carts, stock Stock, orders Orders, opts ...Option) *Orchestrator {
	c := &Orchestrator{
		carts:  carts,
		stock:  stock,
		orders: orders,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Checkout reserves stock for every cart line, records the paid order and
// deletes the cart. A step that fails undoes the steps before it.
func (c *Orchestrator) Checkout(ctx context.Context, userID string, payment *domain.Payment) (order *domain.Order, err error) {
	ctx, end := c.obs.Start(ctx, "order.checkout")
	defer func() { end(err) }()

	if userID == "" {
		return nil, ErrMissingUser
	}
	if err := payment.Validate(); err != nil {
		return nil, err
	}

	unlock := c.carts.Lock(userID)
	defer unlock()

	cart, err := c.carts.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}
	lines := cart.Lines()

	// The conditional decrement is both the stock check and the reservation.
	if err := c.stock.ReserveAll(ctx, lines); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, c.log).With(zap.String("user_id", userID))
	// Compensation must run even when the caller has gone away.
	undoCtx := context.WithoutCancel(ctx)
	release := func() {
		if err := c.stock.ReleaseAll(undoCtx, lines); err != nil {
			log.Error("failed to release reserved stock", zap.Error(err))
		}
	}

	items, total, err := c.price(ctx, lines)
	if err != nil {
		release()
		return nil, err
	}

	order, err = c.orders.Create(ctx, userID, items, total, payment)
	if err != nil {
		release()
		return nil, err
	}

	if err := c.carts.Delete(ctx, userID); err != nil {
		if delErr := c.orders.Delete(undoCtx, order.ID); delErr != nil {
			log.Error("failed to delete order after cart delete failure",
				zap.Stringer("order_id", order.ID), zap.Error(delErr))
		}
		release()
		return nil, err
	}

	log.Info("checkout completed",
		zap.Stringer("order_id", order.ID),
		zap.Int("lines", len(items)),
		zap.Int64("total", total))
	return order, nil
}

// price snapshots the current catalog price of every line.
func (c *Orchestrator) price(ctx context.Context, lines []domain.Line) ([]domain.OrderItem, int64, error) {
	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	products, err := c.stock.Products(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	items := make([]domain.OrderItem, len(lines))
	var total int64
	for i, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return nil, 0, fmt.Errorf("product %d: %w", l.ProductID, domain.ErrNotFound)
		}
		items[i] = domain.OrderItem{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: p.Price}
		total += int64(l.Quantity) * p.Price
	}
	return items, total, nil
}
