package repository

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
)

var (
	ErrCartNotFound = fmt.Errorf("cart %w", domain.ErrNotFound)
	ErrItemNotFound = fmt.Errorf("item %w in cart", domain.ErrNotFound)
)

// CartRepository stores carts. Every write carries the cart total computed by
// the caller so lines and total are persisted together.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// AddItem sets the line for item.ProductID to item.Quantity, appending it
	// when absent and creating the cart when needed.
	AddItem(ctx context.Context, userID string, item domain.CartItem, total int64) error
	UpdateItemQuantity(ctx context.Context, userID string, productID int64, quantity int, total int64) error
	RemoveItem(ctx context.Context, userID string, productID int64, total int64) error
	DeleteCart(ctx context.Context, userID string) error
}
