package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event types written to the outbox and published with the event_type header.
const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the payload of every order event.
type OrderEvent struct {
	OrderID        uuid.UUID   `json:"order_id"`
	UserID         string      `json:"user_id"`
	Status         OrderStatus `json:"status"`
	PreviousStatus OrderStatus `json:"previous_status,omitempty"`
	Total          int64       `json:"total"`
	Items          []OrderItem `json:"items,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

func NewOrderPlaced(o *Order) OrderEvent {
	return OrderEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		Total:      o.Total,
		Items:      o.Items,
		OccurredAt: o.CreatedAt,
	}
}

func NewOrderStatusChanged(o *Order, previous OrderStatus) OrderEvent {
	return OrderEvent{
		OrderID:        o.ID,
		UserID:         o.UserID,
		Status:         o.Status,
		PreviousStatus: previous,
		Total:          o.Total,
		OccurredAt:     o.UpdatedAt,
	}
}
