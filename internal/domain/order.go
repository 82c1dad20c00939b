package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
)

// orderFlow lists the statuses in the only order they may be visited.
var orderFlow = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusDelivered,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range orderFlow {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidArgument, s)
}

func (s OrderStatus) rank() int {
	for i, st := range orderFlow {
		if st == s {
			return i
		}
	}
	return -1
}

// CanTransitionTo allows exactly one step forward along the flow.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	from, to := s.rank(), target.rank()
	return from >= 0 && to >= 0 && to == from+1
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered
}

func (s OrderStatus) String() string {
	return string(s)
}

type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "credit card"
	PaymentDebitCard  PaymentMethod = "debit card"
	PaymentPayPal     PaymentMethod = "paypal"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentCreditCard, PaymentDebitCard, PaymentPayPal:
		return m, nil
	}
	return "", fmt.Errorf("%w: unsupported payment method %q", ErrInvalidArgument, s)
}

type Payment struct {
	Method        PaymentMethod `json:"method"`
	TransactionID string        `json:"transaction_id"`
}

func (p *Payment) Validate() error {
	if p == nil {
		return nil
	}
	if _, err := ParsePaymentMethod(string(p.Method)); err != nil {
		return err
	}
	if p.TransactionID == "" {
		return fmt.Errorf("%w: payment transaction id is required", ErrInvalidArgument)
	}
	return nil
}

type OrderItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

type Order struct {
	ID        uuid.UUID   `json:"id"`
	UserID    string      `json:"user_id"`
	Items     []OrderItem `json:"items"`
	Total     int64       `json:"total"`
	Status    OrderStatus `json:"status"`
	Payment   *Payment    `json:"payment,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Lines returns the reserved quantities of the order.
func (o *Order) Lines() []Line {
	lines := make([]Line, len(o.Items))
	for i, item := range o.Items {
		lines[i] = Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return lines
}
