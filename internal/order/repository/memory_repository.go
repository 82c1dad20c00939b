package repository

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/google/uuid"
)

// MemoryRepository keeps orders and their outbox in process memory.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*domain.Order
	outbox []*outboxEntry
	nextID int64
}

type outboxEntry struct {
	event     OutboxEvent
	processed bool
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[uuid.UUID]*domain.Order)}
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = slices.Clone(o.Items)
	if o.Payment != nil {
		p := *o.Payment
		cp.Payment = &p
	}
	return &cp
}

func (m *MemoryRepository) appendEvent(aggregateID uuid.UUID, eventType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}
	m.nextID++
	m.outbox = append(m.outbox, &outboxEntry{event: OutboxEvent{
		ID:          m.nextID,
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     b,
		CreatedAt:   time.Now().UTC(),
	}})
	return nil
}

func (m *MemoryRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; ok {
		return ErrDuplicateOrder
	}
	if err := m.appendEvent(order.ID, domain.EventOrderPlaced, domain.NewOrderPlaced(order)); err != nil {
		return err
	}
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *MemoryRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *MemoryRepository) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	orders := []*domain.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			orders = append(orders, cloneOrder(o))
		}
	}
	slices.SortFunc(orders, func(a, b *domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return orders, nil
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to domain.OrderStatus) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if o.Status != from {
		return nil, ErrStatusChanged
	}
	updated := cloneOrder(o)
	updated.Status = to
	updated.UpdatedAt = time.Now().UTC()
	if err := m.appendEvent(id, domain.EventOrderStatusChanged, domain.NewOrderStatusChanged(updated, from)); err != nil {
		return nil, err
	}
	m.orders[id] = updated
	return cloneOrder(updated), nil
}

func (m *MemoryRepository) DeleteOrder(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return ErrOrderNotFound
	}
	delete(m.orders, id)
	m.outbox = slices.DeleteFunc(m.outbox, func(e *outboxEntry) bool {
		return e.event.AggregateID == id && !e.processed
	})
	return nil
}

func (m *MemoryRepository) GetUnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []*OutboxEvent
	for _, e := range m.outbox {
		if len(events) >= limit {
			break
		}
		if !e.processed {
			ev := e.event
			events = append(events, &ev)
		}
	}
	return events, nil
}

func (m *MemoryRepository) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.outbox {
		if e.event.ID == id {
			e.processed = true
			return nil
		}
	}
	return nil
}

func (m *MemoryRepository) Close() error {
	return nil
}
