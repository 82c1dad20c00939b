package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/google/uuid"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{carts: make(map[string]*domain.Cart)}
}

func cloneCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = slices.Clone(c.Items)
	return &cp
}

func (m *MemoryRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return cloneCart(c), nil
}

func (m *MemoryRepository) AddItem(_ context.Context, userID string, item domain.CartItem, total int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	item.AddedAt = now

	c, ok := m.carts[userID]
	if !ok {
		c = &domain.Cart{ID: uuid.NewString(), UserID: userID, CreatedAt: now}
		m.carts[userID] = c
	}
	if _, idx := c.Item(item.ProductID); idx >= 0 {
		c.Items[idx].Quantity = item.Quantity
		c.Items[idx].AddedAt = now
	} else {
		c.Items = append(c.Items, item)
	}
	c.Total = total
	c.UpdatedAt = now
	return nil
}

func (m *MemoryRepository) UpdateItemQuantity(_ context.Context, userID string, productID int64, quantity int, total int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.carts[userID]
	if !ok {
		return ErrItemNotFound
	}
	_, idx := c.Item(productID)
	if idx < 0 {
		return ErrItemNotFound
	}
	c.Items[idx].Quantity = quantity
	c.Total = total
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepository) RemoveItem(_ context.Context, userID string, productID int64, total int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.carts[userID]
	if !ok {
		return ErrItemNotFound
	}
	_, idx := c.Item(productID)
	if idx < 0 {
		return ErrItemNotFound
	}
	c.Items = slices.Delete(c.Items, idx, idx+1)
	c.Total = total
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepository) DeleteCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[userID]; !ok {
		return ErrCartNotFound
	}
	delete(m.carts, userID)
	return nil
}
