package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxRequestBodySize = 1 << 20

type Checkout interface {
	Checkout(ctx context.Context, userID string, payment *domain.Payment) (*domain.Order, error)
}

type Orders interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	AdvanceStatus(ctx context.Context, id uuid.UUID, target domain.OrderStatus, privileged bool) (*domain.Order, error)
}

type OrdersHandler struct {
	checkout    Checkout
	orders      Orders
	timeout     time.Duration
	maxBodySize int64
}

func NewOrdersHandler(checkout Checkout, orders Orders, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		checkout:    checkout,
		orders:      orders,
		timeout:     timeout,
		maxBodySize: maxRequestBodySize,
	}
}

type CheckoutRequest struct {
	Payment *domain.Payment `json:"payment,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type OrdersResponse struct {
	Orders     []*domain.Order `json:"orders"`
	TotalCount int             `json:"total_count"`
}

// Checkout handles POST /api/v1/orders/checkout. The body is optional.
func (h *OrdersHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := identityFromContext(ctx)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CheckoutRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodySize)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.checkout.Checkout(ctx, id.UserID, req.Payment)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := identityFromContext(ctx)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListByUser(ctx, id.UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, OrdersResponse{Orders: orders, TotalCount: len(orders)})
}

// GetOrder handles GET /api/v1/orders/{order_id}. Orders of other users look
// missing unless the caller is privileged.
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := identityFromContext(ctx)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "invalid order ID")
		return
	}

	order, err := h.orders.Get(ctx, orderID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if order.UserID != id.UserID && !id.Privileged {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// UpdateStatus handles PATCH /api/v1/orders/{order_id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := identityFromContext(ctx)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "invalid order ID")
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodySize)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	target, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		handleError(w, r, err)
		return
	}

	order, err := h.orders.AdvanceStatus(ctx, orderID, target, id.Privileged)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
