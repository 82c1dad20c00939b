package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
)

type memoryEntry struct {
	mu      sync.Mutex
	product domain.Product
}

// MemoryStore keeps products in a map. The map lock only guards membership;
// stock changes take the per-product lock.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{products: make(map[int64]*memoryEntry)}
}

func (s *MemoryStore) entry(id int64) (*memoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.products[id]
	return e, ok
}

func (s *MemoryStore) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrProductNotFound
	}
	e.mu.Lock()
	p := e.product
	e.mu.Unlock()
	return &p, nil
}

func (s *MemoryStore) GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	result := make(map[int64]*domain.Product, len(ids))
	for _, id := range ids {
		p, err := s.GetProduct(ctx, id)
		if err != nil {
			continue
		}
		result[id] = p
	}
	return result, nil
}

func (s *MemoryStore) DecrementStock(_ context.Context, id int64, quantity int) error {
	if err := validateQuantity(quantity); err != nil {
		return err
	}
	e, ok := s.entry(id)
	if !ok {
		return ErrProductNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.product.Stock < quantity {
		return ErrStockConflict
	}
	e.product.Stock -= quantity
	e.product.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) IncrementStock(_ context.Context, id int64, quantity int) error {
	if err := validateQuantity(quantity); err != nil {
		return err
	}
	e, ok := s.entry(id)
	if !ok {
		return ErrProductNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.product.Stock += quantity
	e.product.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) UpsertProduct(_ context.Context, p *domain.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	cp := *p
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.products[cp.ID]; ok {
		e.mu.Lock()
		e.product = cp
		e.mu.Unlock()
		return nil
	}
	s.products[cp.ID] = &memoryEntry{product: cp}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
