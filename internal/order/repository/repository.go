package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound  = fmt.Errorf("order %w", domain.ErrNotFound)
	ErrDuplicateOrder = fmt.Errorf("%w: order already exists", domain.ErrInvalidArgument)
	// ErrStatusChanged means the compare-and-set on status found a different
	// status than the caller read.
	ErrStatusChanged = fmt.Errorf("%w: order status changed concurrently", domain.ErrInvalidTransition)
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OutboxEvent is an order event waiting to be published.
type OutboxEvent struct {
	ID          int64
	AggregateID uuid.UUID
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type OrderRepository interface {
	// CreateOrder stores the order together with its order.placed event.
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// ListOrdersByUserID returns the user's orders, newest first.
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	// UpdateStatus moves the order from one status to another only if it is
	// still in from, and records an order.status_changed event.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (*domain.Order, error)
	// DeleteOrder removes the order and its unpublished events.
	DeleteOrder(ctx context.Context, id uuid.UUID) error

	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	Close() error
}
