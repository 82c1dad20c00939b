package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(userID string, createdAt time.Time) *domain.Order {
	return &domain.Order{
		ID:     uuid.New(),
		UserID: userID,
		Items: []domain.OrderItem{
			{ProductID: 1, Quantity: 2, UnitPrice: 1000},
			{ProductID: 2, Quantity: 1, UnitPrice: 499},
		},
		Total:     2499,
		Status:    domain.OrderStatusPaid,
		Payment:   &domain.Payment{Method: domain.PaymentPayPal, TransactionID: "tx-1"},
		CreatedAt: createdAt.UTC().Truncate(time.Millisecond),
		UpdatedAt: createdAt.UTC().Truncate(time.Millisecond),
	}
}

func runRepositorySuite(t *testing.T, newRepo func(t *testing.T) OrderRepository) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("user-123", time.Now())
		require.NoError(t, repo.CreateOrder(ctx, order))

		got, err := repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.ID, got.ID)
		assert.Equal(t, "user-123", got.UserID)
		assert.Equal(t, order.Items, got.Items)
		assert.Equal(t, int64(2499), got.Total)
		assert.Equal(t, domain.OrderStatusPaid, got.Status)
		require.NotNil(t, got.Payment)
		assert.Equal(t, domain.PaymentPayPal, got.Payment.Method)
		assert.True(t, order.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("CreateWithoutPayment", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("user-123", time.Now())
		order.Payment = nil
		require.NoError(t, repo.CreateOrder(ctx, order))

		got, err := repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Payment)
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("user-123", time.Now())
		require.NoError(t, repo.CreateOrder(ctx, order))
		assert.ErrorIs(t, repo.CreateOrder(ctx, order), ErrDuplicateOrder)
	})

	t.Run("GetMissing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetOrderByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrOrderNotFound)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		repo := newRepo(t)
		base := time.Now().Add(-time.Hour)
		first := newTestOrder("lister", base)
		second := newTestOrder("lister", base.Add(time.Minute))
		third := newTestOrder("lister", base.Add(2*time.Minute))
		other := newTestOrder("someone-else", base)
		for _, o := range []*domain.Order{second, first, other, third} {
			require.NoError(t, repo.CreateOrder(ctx, o))
		}

		orders, err := repo.ListOrdersByUserID(ctx, "lister")
		require.NoError(t, err)
		require.Len(t, orders, 3)
		assert.Equal(t, third.ID, orders[0].ID)
		assert.Equal(t, second.ID, orders[1].ID)
		assert.Equal(t, first.ID, orders[2].ID)

		none, err := repo.ListOrdersByUserID(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("user-123", time.Now())
		require.NoError(t, repo.CreateOrder(ctx, order))

		updated, err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusPaid, domain.OrderStatusShipped)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusShipped, updated.Status)
		assert.Equal(t, order.Items, updated.Items)

		got, err := repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusShipped, got.Status)
	})

	t.Run("UpdateStatusCompareAndSet", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("user-123", time.Now())
		require.NoError(t, repo.CreateOrder(ctx, order))

		_, err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped, domain.OrderStatusDelivered)
		assert.ErrorIs(t, err, ErrStatusChanged)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		_, err = repo.UpdateStatus(ctx, uuid.New(), domain.OrderStatusPaid, domain.OrderStatusShipped)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("OutboxRecordsEvents", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("user-123", time.Now())
		require.NoError(t, repo.CreateOrder(ctx, order))
		_, err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusPaid, domain.OrderStatusShipped)
		require.NoError(t, err)

		events, err := repo.GetUnprocessedEvents(ctx, 100)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, domain.EventOrderPlaced, events[0].EventType)
		assert.Equal(t, domain.EventOrderStatusChanged, events[1].EventType)
		assert.Equal(t, order.ID, events[0].AggregateID)

		var placed domain.OrderEvent
		require.NoError(t, json.Unmarshal(events[0].Payload, &placed))
		assert.Equal(t, "user-123", placed.UserID)
		assert.Equal(t, int64(2499), placed.Total)

		var changed domain.OrderEvent
		require.NoError(t, json.Unmarshal(events[1].Payload, &changed))
		assert.Equal(t, domain.OrderStatusPaid, changed.PreviousStatus)
		assert.Equal(t, domain.OrderStatusShipped, changed.Status)

		require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))
		events, err = repo.GetUnprocessedEvents(ctx, 100)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventOrderStatusChanged, events[0].EventType)

		limited, err := repo.GetUnprocessedEvents(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, limited)
	})

	t.Run("DeleteDropsUnpublishedEvents", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("user-123", time.Now())
		require.NoError(t, repo.CreateOrder(ctx, order))

		require.NoError(t, repo.DeleteOrder(ctx, order.ID))
		_, err := repo.GetOrderByID(ctx, order.ID)
		assert.ErrorIs(t, err, ErrOrderNotFound)

		events, err := repo.GetUnprocessedEvents(ctx, 100)
		require.NoError(t, err)
		for _, e := range events {
			assert.NotEqual(t, order.ID, e.AggregateID)
		}

		assert.ErrorIs(t, repo.DeleteOrder(ctx, order.ID), ErrOrderNotFound)
	})
}
