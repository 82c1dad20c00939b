// Package service implements the cart operations. Every mutation of a user's
// cart runs under that user's lock, consults the inventory guard for current
// stock and price, and persists the lines together with the recomputed total.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/cart/cache"
	"github.com/fjod/go_cart/fulfillment-service/internal/cart/repository"
	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/internal/keylock"
	"github.com/fjod/go_cart/fulfillment-service/internal/observability"
	"github.com/fjod/go_cart/fulfillment-service/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be at least 1", domain.ErrInvalidArgument)
	ErrMissingUser     = fmt.Errorf("%w: user id is required", domain.ErrInvalidArgument)
)

// loadTimeout bounds a shared cart read once no caller's context governs it.
const loadTimeout = 10 * time.Second

// Inventory is the read side of the inventory guard the cart depends on.
type Inventory interface {
	Require(ctx context.Context, productID int64, quantity int) (*domain.Product, error)
	Product(ctx context.Context, productID int64) (*domain.Product, error)
	Products(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
}

type CartService struct {
	repo      repository.CartRepository
	cache     cache.CartCache
	inventory Inventory
	locks     *keylock.Locker
	sfg       singleflight.Group
	obs       *observability.Observer
	log       *zap.Logger
}

type Option func(*CartService)

// WithLocker shares the per-user locks with other components, checkout in
// particular.
func WithLocker(l *keylock.Locker) Option {
	return func(s *CartService) {
		if l != nil {
			s.locks = l
		}
	}
}

func WithObserver(o *observability.Observer) Option {
	return func(s *CartService) { s.obs = o }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *CartService) {
		if l != nil {
			s.log = l
		}
	}
}

func NewCartService(repo repository.CartRepository, c cache.CartCache, inventory Inventory, opts ...Option) *CartService {
	if c == nil {
		c = cache.Noop{}
	}
	s := &CartService{
		repo:      repo,
		cache:     c,
		inventory: inventory,
		locks:     keylock.New(),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func emptyCart(userID string) *domain.Cart {
	now := time.Now().UTC()
	return &domain.Cart{
		UserID:    userID,
		Items:     []domain.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func outOfStock(productID int64) error {
	return fmt.Errorf("product %d: %w", productID, domain.ErrOutOfStock)
}

// GetCart returns the user's cart, or an empty cart when none exists.
func (s *CartService) GetCart(ctx context.Context, userID string) (cart *domain.Cart, err error) {
	ctx, end := s.obs.Start(ctx, "cart.get")
	defer func() { end(err) }()

	if userID == "" {
		return nil, ErrMissingUser
	}

	cached, err := s.cache.Get(ctx, userID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.FromContext(ctx, s.log).Warn("cache get failed", zap.String("user_id", userID), zap.Error(err))
	}

	// Concurrent misses for one user share a single store read. The read and
	// the cache fill happen under the user lock so a mutation cannot slip in
	// between them and leave a stale entry behind. The shared read outlives
	// the caller that started it; each caller stops waiting on its own ctx.
	ch := s.sfg.DoChan(userID, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		unlock := s.locks.Lock(userID)
		defer unlock()

		stored, err := s.repo.GetCart(flightCtx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return emptyCart(userID), nil
		}
		if err != nil {
			return nil, domain.Unavailable(err)
		}
		if err := s.cache.Set(flightCtx, userID, stored); err != nil {
			logger.FromContext(ctx, s.log).Warn("cache set failed", zap.String("user_id", userID), zap.Error(err))
		}
		return stored, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Cart), nil
	}
}

// AddItem adds quantity units of productID, appending a new line or growing
// the existing one. The cart is created on first add.
func (s *CartService) AddItem(ctx context.Context, userID string, productID int64, quantity int) (cart *domain.Cart, err error) {
	ctx, end := s.obs.Start(ctx, "cart.add",
		attribute.Int64("product_id", productID),
		attribute.Int("quantity", quantity))
	defer func() { end(err) }()

	if userID == "" {
		return nil, ErrMissingUser
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	if _, err := s.inventory.Require(ctx, productID, quantity); err != nil {
		return nil, err
	}

	cart, err = s.loadOrEmpty(ctx, userID)
	if err != nil {
		return nil, err
	}

	newQty := quantity
	if line, idx := cart.Item(productID); idx >= 0 {
		newQty = line.Quantity + quantity
		if _, err := s.inventory.Require(ctx, productID, newQty); err != nil {
			return nil, err
		}
	}

	total, err := s.total(ctx, withQuantity(cart.Items, productID, newQty))
	if err != nil {
		return nil, err
	}
	item := domain.CartItem{ProductID: productID, Quantity: newQty}
	if err := s.repo.AddItem(ctx, userID, item, total); err != nil {
		return nil, domain.Unavailable(err)
	}
	s.invalidate(ctx, userID)

	return s.loadOrEmpty(ctx, userID)
}

// RemoveItem drops the line for productID. Removing the last line deletes
// the cart.
func (s *CartService) RemoveItem(ctx context.Context, userID string, productID int64) (cart *domain.Cart, err error) {
	ctx, end := s.obs.Start(ctx, "cart.remove", attribute.Int64("product_id", productID))
	defer func() { end(err) }()

	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err = s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	_, idx := cart.Item(productID)
	if idx < 0 {
		return nil, repository.ErrItemNotFound
	}

	if len(cart.Items) == 1 {
		if err := s.repo.DeleteCart(ctx, userID); err != nil {
			return nil, domain.Unavailable(err)
		}
		s.invalidate(ctx, userID)
		return emptyCart(userID), nil
	}

	items := slices.Delete(slices.Clone(cart.Items), idx, idx+1)
	total, err := s.total(ctx, items)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RemoveItem(ctx, userID, productID, total); err != nil {
		return nil, domain.Unavailable(err)
	}
	s.invalidate(ctx, userID)

	return s.loadOrEmpty(ctx, userID)
}

// Increase adds one unit to an existing line when stock has headroom for it.
func (s *CartService) Increase(ctx context.Context, userID string, productID int64) (cart *domain.Cart, err error) {
	ctx, end := s.obs.Start(ctx, "cart.increase", attribute.Int64("product_id", productID))
	defer func() { end(err) }()

	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err = s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	line, idx := cart.Item(productID)
	if idx < 0 {
		return nil, repository.ErrItemNotFound
	}
	p, err := s.inventory.Product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Stock <= line.Quantity {
		return nil, outOfStock(productID)
	}

	return s.setQuantity(ctx, cart, productID, line.Quantity+1)
}

// Decrease takes one unit off a line. A line at quantity 1 is removed, but
// the cart is kept even when that leaves it without lines.
func (s *CartService) Decrease(ctx context.Context, userID string, productID int64) (cart *domain.Cart, err error) {
	ctx, end := s.obs.Start(ctx, "cart.decrease", attribute.Int64("product_id", productID))
	defer func() { end(err) }()

	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err = s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	line, idx := cart.Item(productID)
	if idx < 0 {
		return nil, repository.ErrItemNotFound
	}
	if _, err := s.inventory.Product(ctx, productID); err != nil {
		return nil, err
	}

	if line.Quantity > 1 {
		return s.setQuantity(ctx, cart, productID, line.Quantity-1)
	}

	items := slices.Delete(slices.Clone(cart.Items), idx, idx+1)
	total, err := s.total(ctx, items)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RemoveItem(ctx, userID, productID, total); err != nil {
		return nil, domain.Unavailable(err)
	}
	s.invalidate(ctx, userID)

	return s.loadOrEmpty(ctx, userID)
}

// Lock acquires the per-user lock used by every cart mutation and returns
// its release function. Load and Delete expect the caller to hold it.
func (s *CartService) Lock(userID string) func() {
	return s.locks.Lock(userID)
}

// Load reads the stored cart, bypassing the cache. NotFound when the user
// has no cart.
func (s *CartService) Load(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	return cart, nil
}

// Delete removes the stored cart and its cache entry.
func (s *CartService) Delete(ctx context.Context, userID string) error {
	if err := s.repo.DeleteCart(ctx, userID); err != nil {
		return domain.Unavailable(err)
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *CartService) loadOrEmpty(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.Load(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return emptyCart(userID), nil
	}
	return cart, err
}

func (s *CartService) setQuantity(ctx context.Context, cart *domain.Cart, productID int64, quantity int) (*domain.Cart, error) {
	total, err := s.total(ctx, withQuantity(cart.Items, productID, quantity))
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateItemQuantity(ctx, cart.UserID, productID, quantity, total); err != nil {
		return nil, domain.Unavailable(err)
	}
	s.invalidate(ctx, cart.UserID)

	return s.loadOrEmpty(ctx, cart.UserID)
}

// total prices items at current catalog prices. A product that left the
// catalog contributes nothing.
func (s *CartService) total(ctx context.Context, items []domain.CartItem) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	products, err := s.inventory.Products(ctx, ids)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, item := range items {
		p, ok := products[item.ProductID]
		if !ok {
			logger.FromContext(ctx, s.log).Warn("cart line references missing product",
				zap.Int64("product_id", item.ProductID))
			continue
		}
		total += int64(item.Quantity) * p.Price
	}
	return total, nil
}

func (s *CartService) invalidate(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		logger.FromContext(ctx, s.log).Warn("cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// withQuantity returns a copy of items with productID set to quantity,
// appended when absent.
func withQuantity(items []domain.CartItem, productID int64, quantity int) []domain.CartItem {
	out := slices.Clone(items)
	for i := range out {
		if out[i].ProductID == productID {
			out[i].Quantity = quantity
			return out
		}
	}
	return append(out, domain.CartItem{ProductID: productID, Quantity: quantity})
}
