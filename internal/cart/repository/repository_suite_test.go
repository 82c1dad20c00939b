package repository

import (
	"context"
	"testing"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRepositorySuite(t *testing.T, newRepo func(t *testing.T) CartRepository) {
	ctx := context.Background()

	t.Run("GetCart_NotFound", func(t *testing.T) {
		repo := newRepo(t)
		cart, err := repo.GetCart(ctx, "nonexistent")
		assert.ErrorIs(t, err, ErrCartNotFound)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Nil(t, cart)
	})

	t.Run("AddItem_NewCart", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddItem(ctx, "user123", domain.CartItem{ProductID: 1, Quantity: 3}, 3000))

		cart, err := repo.GetCart(ctx, "user123")
		require.NoError(t, err)
		assert.Equal(t, "user123", cart.UserID)
		assert.NotEmpty(t, cart.ID)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, int64(1), cart.Items[0].ProductID)
		assert.Equal(t, 3, cart.Items[0].Quantity)
		assert.Equal(t, int64(3000), cart.Total)
		assert.False(t, cart.CreatedAt.IsZero())
	})

	t.Run("AddItem_ExistingItemSetsQuantity", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddItem(ctx, "u", domain.CartItem{ProductID: 1, Quantity: 2}, 200))
		require.NoError(t, repo.AddItem(ctx, "u", domain.CartItem{ProductID: 1, Quantity: 5}, 500))

		cart, err := repo.GetCart(ctx, "u")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, 5, cart.Items[0].Quantity)
		assert.Equal(t, int64(500), cart.Total)
	})

	t.Run("AddItem_KeepsInsertionOrder", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddItem(ctx, "u", domain.CartItem{ProductID: 3, Quantity: 1}, 100))
		require.NoError(t, repo.AddItem(ctx, "u", domain.CartItem{ProductID: 1, Quantity: 1}, 200))
		require.NoError(t, repo.AddItem(ctx, "u", domain.CartItem{ProductID: 2, Quantity: 1}, 300))

		cart, err := repo.GetCart(ctx, "u")
		require.NoError(t, err)
		require.Len(t, cart.Items, 3)
		assert.Equal(t, int64(3), cart.Items[0].ProductID)
		assert.Equal(t, int64(1), cart.Items[1].ProductID)
		assert.Equal(t, int64(2), cart.Items[2].ProductID)
	})

	t.Run("UpdateItemQuantity", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddItem(ctx, "u", domain.CartItem{ProductID: 1, Quantity: 2}, 200))

		require.NoError(t, repo.UpdateItemQuantity(ctx, "u", 1, 4, 400))
		cart, err := repo.GetCart(ctx, "u")
		require.NoError(t, err)
		assert.Equal(t, 4, cart.Items[0].Quantity)
		assert.Equal(t, int64(400), cart.Total)

		assert.ErrorIs(t, repo.UpdateItemQuantity(ctx, "u", 99, 1, 0), ErrItemNotFound)
		assert.ErrorIs(t, repo.UpdateItemQuantity(ctx, "nobody", 1, 1, 0), ErrItemNotFound)
	})

	t.Run("RemoveItem_KeepsEmptyCart", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddItem(ctx, "u", domain.CartItem{ProductID: 1, Quantity: 2}, 200))

		require.NoError(t, repo.RemoveItem(ctx, "u", 1, 0))
		cart, err := repo.GetCart(ctx, "u")
		require.NoError(t, err)
		assert.Empty(t, cart.Items)
		assert.Equal(t, int64(0), cart.Total)

		assert.ErrorIs(t, repo.RemoveItem(ctx, "u", 1, 0), ErrItemNotFound)
	})

	t.Run("DeleteCart", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddItem(ctx, "u", domain.CartItem{ProductID: 1, Quantity: 2}, 200))

		require.NoError(t, repo.DeleteCart(ctx, "u"))
		_, err := repo.GetCart(ctx, "u")
		assert.ErrorIs(t, err, ErrCartNotFound)

		assert.ErrorIs(t, repo.DeleteCart(ctx, "u"), ErrCartNotFound)
	})

	t.Run("CartsAreIsolatedPerUser", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddItem(ctx, "alice", domain.CartItem{ProductID: 1, Quantity: 1}, 100))
		require.NoError(t, repo.AddItem(ctx, "bob", domain.CartItem{ProductID: 2, Quantity: 2}, 400))

		require.NoError(t, repo.DeleteCart(ctx, "alice"))
		cart, err := repo.GetCart(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, int64(400), cart.Total)
	})
}
