package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/internal/order/repository"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/goleak"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/poll"
)

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	failAt int // 1-based call that fails, 0 never
	calls  int
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.failAt > 0 && w.calls == w.failAt {
		return errors.New("broker unavailable")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func (w *recordingWriter) messages() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func seedOrders(t *testing.T, repo *repository.MemoryRepository, n int) []*domain.Order {
	t.Helper()
	orders := make([]*domain.Order, n)
	for i := range orders {
		orders[i] = &domain.Order{
			ID:        uuid.New(),
			UserID:    "u1",
			Items:     []domain.OrderItem{{ProductID: 1, Quantity: 1, UnitPrice: 100}},
			Total:     100,
			Status:    domain.OrderStatusPaid,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		assert.NilError(t, repo.CreateOrder(context.Background(), orders[i]))
	}
	return orders
}

func TestProcessUnpublishedEvents(t *testing.T) {
	repo := repository.NewMemoryRepository()
	orders := seedOrders(t, repo, 2)
	w := &recordingWriter{}
	p := New(repo, w, nil, time.Second)
	ctx := context.Background()

	assert.Equal(t, 2, p.ProcessUnpublishedEvents(ctx))

	msgs := w.messages()
	assert.Assert(t, is.Len(msgs, 2))
	assert.Equal(t, orders[0].ID.String(), string(msgs[0].Key))
	assert.Assert(t, is.Len(msgs[0].Headers, 1))
	assert.Equal(t, "event_type", msgs[0].Headers[0].Key)
	assert.Equal(t, domain.EventOrderPlaced, string(msgs[0].Headers[0].Value))

	var event domain.OrderEvent
	assert.NilError(t, json.Unmarshal(msgs[0].Value, &event))
	assert.Equal(t, orders[0].ID, event.OrderID)
	assert.Equal(t, "u1", event.UserID)

	pending, err := repo.GetUnprocessedEvents(ctx, 10)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(pending, 0))

	assert.Equal(t, 0, p.ProcessUnpublishedEvents(ctx), "nothing left to publish")
}

func TestProcessUnpublishedEvents_StopsAtFailure(t *testing.T) {
	repo := repository.NewMemoryRepository()
	orders := seedOrders(t, repo, 3)
	w := &recordingWriter{failAt: 2}
	p := New(repo, w, nil, time.Second)
	ctx := context.Background()

	assert.Equal(t, 1, p.ProcessUnpublishedEvents(ctx))

	pending, err := repo.GetUnprocessedEvents(ctx, 10)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(pending, 2))
	assert.Equal(t, orders[1].ID, pending[0].AggregateID, "failed event stays first in line")

	assert.Equal(t, 2, p.ProcessUnpublishedEvents(ctx))
	assert.Assert(t, is.Len(w.messages(), 3))
}

type brokenOutbox struct{}

func (brokenOutbox) GetUnprocessedEvents(context.Context, int) ([]*repository.OutboxEvent, error) {
	return nil, errors.New("postgres down")
}

func (brokenOutbox) MarkEventAsProcessed(context.Context, int64) error {
	return nil
}

func TestProcessUnpublishedEvents_StoreFailure(t *testing.T) {
	w := &recordingWriter{}
	p := New(brokenOutbox{}, w, nil, time.Second)

	assert.Equal(t, 0, p.ProcessUnpublishedEvents(context.Background()))
	assert.Assert(t, is.Len(w.messages(), 0))
}

func TestRun_PublishesUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := repository.NewMemoryRepository()
	seedOrders(t, repo, 1)
	w := &recordingWriter{}
	p := New(repo, w, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if n := len(w.messages()); n != 1 {
			return poll.Continue("%d messages published", n)
		}
		return poll.Success()
	}, poll.WithTimeout(2*time.Second), poll.WithDelay(10*time.Millisecond))

	cancel()
	<-done
	p.Close()
	assert.Assert(t, w.closed)
}
