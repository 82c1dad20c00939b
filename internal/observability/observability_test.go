package observability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "out_of_stock", Outcome(fmt.Errorf("line 1: %w", domain.ErrOutOfStock)))
	assert.Equal(t, "not_found", Outcome(domain.ErrNotFound))
	assert.Equal(t, "unavailable", Outcome(domain.ErrUnavailable))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestStart_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := New(reg, nil)

	_, end := o.Start(context.Background(), "cart.add_item")
	end(nil)
	_, end = o.Start(context.Background(), "cart.add_item")
	end(domain.ErrOutOfStock)
	o.StockConflict()

	assert.Equal(t, 1.0, testutil.ToFloat64(o.operations.WithLabelValues("cart.add_item", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.operations.WithLabelValues("cart.add_item", "out_of_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.conflicts))
}

func TestStart_LogsFaultsAtError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	o := New(prometheus.NewRegistry(), zap.New(core))

	_, end := o.Start(context.Background(), "order.create")
	end(domain.ErrNotFound)
	_, end = o.Start(context.Background(), "order.create")
	end(errors.New("disk on fire"))

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "operation failed", entries[0].Message)
	}
}

func TestNilObserver(t *testing.T) {
	var o *Observer
	ctx, end := o.Start(context.Background(), "noop")
	assert.NotNil(t, ctx)
	end(errors.New("ignored"))
	o.StockConflict()
}
