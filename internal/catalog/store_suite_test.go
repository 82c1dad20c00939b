package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite checks the behaviour every Store implementation must share.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	seed := func(t *testing.T, s Store, id int64, price int64, stock int) {
		t.Helper()
		require.NoError(t, s.UpsertProduct(ctx, &domain.Product{
			ID:       id,
			Title:    "product",
			Category: "misc",
			Price:    price,
			Stock:    stock,
		}))
	}

	t.Run("UpsertAndGet", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, 1, 1000, 5)

		p, err := s.GetProduct(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), p.ID)
		assert.Equal(t, "product", p.Title)
		assert.Equal(t, int64(1000), p.Price)
		assert.Equal(t, 5, p.Stock)

		seed(t, s, 1, 1200, 7)
		p, err = s.GetProduct(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1200), p.Price)
		assert.Equal(t, 7, p.Stock)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetProduct(ctx, 404)
		assert.ErrorIs(t, err, ErrProductNotFound)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("GetProductsSkipsMissing", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, 1, 100, 1)
		seed(t, s, 2, 200, 2)

		products, err := s.GetProducts(ctx, []int64{1, 2, 3})
		require.NoError(t, err)
		assert.Len(t, products, 2)
		assert.Equal(t, int64(200), products[2].Price)

		empty, err := s.GetProducts(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("DecrementApplies", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, 1, 1000, 5)

		require.NoError(t, s.DecrementStock(ctx, 1, 2))
		p, err := s.GetProduct(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, p.Stock)

		require.NoError(t, s.DecrementStock(ctx, 1, 3))
		p, err = s.GetProduct(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 0, p.Stock)
	})

	t.Run("DecrementRejectsWhenShort", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, 1, 1000, 1)

		err := s.DecrementStock(ctx, 1, 2)
		assert.ErrorIs(t, err, ErrStockConflict)

		p, err := s.GetProduct(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, p.Stock)
	})

	t.Run("DecrementUnknownProduct", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.DecrementStock(ctx, 99, 1), ErrProductNotFound)
		assert.ErrorIs(t, s.IncrementStock(ctx, 99, 1), ErrProductNotFound)
	})

	t.Run("RejectsNonPositiveQuantity", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, 1, 1000, 1)
		assert.ErrorIs(t, s.DecrementStock(ctx, 1, 0), domain.ErrInvalidArgument)
		assert.ErrorIs(t, s.IncrementStock(ctx, 1, -1), domain.ErrInvalidArgument)
	})

	t.Run("RejectsInvalidProduct", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.UpsertProduct(ctx, &domain.Product{ID: 1, Price: -1}), domain.ErrInvalidArgument)
		assert.ErrorIs(t, s.UpsertProduct(ctx, &domain.Product{ID: 0}), domain.ErrInvalidArgument)
	})

	t.Run("IncrementRestores", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, 1, 1000, 2)

		require.NoError(t, s.DecrementStock(ctx, 1, 2))
		require.NoError(t, s.IncrementStock(ctx, 1, 2))

		p, err := s.GetProduct(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, p.Stock)
	})

	t.Run("ConcurrentDecrementsNeverOversell", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, 1, 1000, 5)

		var wg sync.WaitGroup
		var succeeded atomic.Int32
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.DecrementStock(ctx, 1, 1); err == nil {
					succeeded.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(5), succeeded.Load())
		p, err := s.GetProduct(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 0, p.Stock)
	})
}
