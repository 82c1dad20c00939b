// Package observability records metrics, spans and completion logs for the
// core operations.
package observability

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const namespace = "fulfillment"

// Observer is safe to use as a nil pointer, in which case it does nothing.
type Observer struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	conflicts  prometheus.Counter
	tracer     trace.Tracer
	log        *zap.Logger
}

func New(reg prometheus.Registerer, log *zap.Logger) *Observer {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Observer{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Core operations by outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Core operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_conflicts_total",
			Help:      "Conditional stock decrements that did not apply and were retried.",
		}),
		tracer: otel.Tracer("github.com/fjod/go_cart/fulfillment-service"),
		log:    log,
	}
	if reg != nil {
		reg.MustRegister(o.operations, o.duration, o.conflicts)
	}
	return o
}

// Start opens a span for operation. The returned function must be called
// with the operation's final error.
func (o *Observer) Start(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if o == nil {
		return ctx, func(error) {}
	}
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, operation, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		outcome := Outcome(err)
		elapsed := time.Since(start)

		o.operations.WithLabelValues(operation, outcome).Inc()
		o.duration.WithLabelValues(operation).Observe(elapsed.Seconds())

		span.SetAttributes(attribute.String("outcome", outcome))
		fields := []zap.Field{
			zap.String("operation", operation),
			zap.String("outcome", outcome),
			zap.Duration("elapsed", elapsed),
		}
		log := logger.FromContext(ctx, o.log)
		switch {
		case err == nil:
			span.SetStatus(codes.Ok, "")
			log.Debug("operation done", fields...)
		case domain.IsBusiness(err):
			log.Debug("operation rejected", append(fields, zap.Error(err))...)
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Error("operation failed", append(fields, zap.Error(err))...)
		}
		span.End()
	}
}

func (o *Observer) StockConflict() {
	if o == nil {
		return
	}
	o.conflicts.Inc()
}

// Outcome turns an operation error into a low cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
