// Package ledger owns the order lifecycle. Orders are created paid, never
// change their lines, and can only be moved on to shipped.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/internal/observability"
	"github.com/fjod/go_cart/fulfillment-service/internal/order/repository"
	"github.com/fjod/go_cart/fulfillment-service/pkg/circuitbreaker"
	"github.com/fjod/go_cart/fulfillment-service/pkg/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	ErrNotPrivileged = fmt.Errorf("%w: only privileged callers may change order status", domain.ErrPermissionDenied)
	ErrEmptyOrder    = fmt.Errorf("%w: order has no lines", domain.ErrInvalidArgument)
)

type Ledger struct {
	repo repository.OrderRepository
	cb   *circuitbreaker.Breaker
	obs  *observability.Observer
	log  *zap.Logger
	now  func() time.Time
}

type Option func(*Ledger)

func WithBreaker(cb *circuitbreaker.Breaker) Option {
	return func(l *Ledger) { l.cb = cb }
}

func WithObserver(o *observability.Observer) Option {
	return func(l *Ledger) { l.obs = o }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

func New(repo repository.OrderRepository, opts ...Option) *Ledger {
	l := &Ledger{
		repo: repo,
		log:  zap.NewNop(),
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func storeErr(err error) error {
	if circuitbreaker.IsOpen(err) {
		return fmt.Errorf("%w: orders: %v", domain.ErrUnavailable, err)
	}
	return domain.Unavailable(err)
}

// Create records a paid order for items. total must equal the sum of
// quantity times unit price.
func (l *Ledger) Create(ctx context.Context, userID string, items []domain.OrderItem, total int64, payment *domain.Payment) (order *domain.Order, err error) {
	ctx, end := l.obs.Start(ctx, "order.create", attribute.Int("lines", len(items)))
	defer func() { end(err) }()

	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidArgument)
	}
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	var sum int64
	for _, item := range items {
		if item.Quantity < 1 || item.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: invalid line for product %d", domain.ErrInvalidArgument, item.ProductID)
		}
		sum += int64(item.Quantity) * item.UnitPrice
	}
	if sum != total {
		return nil, fmt.Errorf("%w: total %d does not match lines %d", domain.ErrInvalidArgument, total, sum)
	}
	if err := payment.Validate(); err != nil {
		return nil, err
	}

	now := l.now()
	order = &domain.Order{
		ID:        uuid.New(),
		UserID:    userID,
		Items:     append([]domain.OrderItem(nil), items...),
		Total:     total,
		Status:    domain.OrderStatusPaid,
		Payment:   payment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = circuitbreaker.Run(l.cb, func() error {
		return l.repo.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, storeErr(err)
	}

	logger.FromContext(ctx, l.log).Info("order created",
		zap.Stringer("order_id", order.ID),
		zap.String("user_id", userID),
		zap.Int64("total", total))
	return order, nil
}

func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (order *domain.Order, err error) {
	ctx, end := l.obs.Start(ctx, "order.get")
	defer func() { end(err) }()

	order, err = circuitbreaker.Do(l.cb, func() (*domain.Order, error) {
		return l.repo.GetOrderByID(ctx, id)
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return order, nil
}

// ListByUser returns the user's orders, newest first.
func (l *Ledger) ListByUser(ctx context.Context, userID string) (orders []*domain.Order, err error) {
	ctx, end := l.obs.Start(ctx, "order.list")
	defer func() { end(err) }()

	orders, err = circuitbreaker.Do(l.cb, func() ([]*domain.Order, error) {
		return l.repo.ListOrdersByUserID(ctx, userID)
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return orders, nil
}

// AdvanceStatus ships a paid order. Only privileged callers may change
// status, and shipped is the only target offered. The write is conditional on the status read
// here, so of two concurrent advances at most one applies.
func (l *Ledger) AdvanceStatus(ctx context.Context, id uuid.UUID, target domain.OrderStatus, privileged bool) (order *domain.Order, err error) {
	ctx, end := l.obs.Start(ctx, "order.advance_status",
		attribute.String("order_id", id.String()),
		attribute.String("target", target.String()))
	defer func() { end(err) }()

	current, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !privileged {
		return nil, ErrNotPrivileged
	}
	if target != domain.OrderStatusShipped || !current.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, target)
	}

	order, err = circuitbreaker.Do(l.cb, func() (*domain.Order, error) {
		return l.repo.UpdateStatus(ctx, id, current.Status, target)
	})
	if err != nil {
		return nil, storeErr(err)
	}

	logger.FromContext(ctx, l.log).Info("order status advanced",
		zap.Stringer("order_id", id),
		zap.Stringer("from", current.Status),
		zap.Stringer("to", target))
	return order, nil
}

// Delete removes an order. Checkout uses it to undo a creation it could not
// complete.
func (l *Ledger) Delete(ctx context.Context, id uuid.UUID) (err error) {
	ctx, end := l.obs.Start(ctx, "order.delete")
	defer func() { end(err) }()

	err = circuitbreaker.Run(l.cb, func() error {
		return l.repo.DeleteOrder(ctx, id)
	})
	return storeErr(err)
}
