// Package circuitbreaker wraps sony/gobreaker for storage calls.
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type Options struct {
	Name string
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half open.
	HalfOpenRequests uint32
	// IsSuccessful decides which errors do not count as failures. Expected
	// business errors belong here. Nil counts every error as a failure.
	IsSuccessful func(err error) bool
}

func DefaultOptions(name string) Options {
	return Options{
		Name:                name,
		ConsecutiveFailures: 5,
		OpenTimeout:         10 * time.Second,
		HalfOpenRequests:    1,
	}
}

type Breaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

func New(opts Options, log *zap.Logger) *Breaker {
	if log == nil {
		log = zap.NewNop()
	}
	threshold := opts.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	st := gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.HalfOpenRequests,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	if opts.IsSuccessful != nil {
		st.IsSuccessful = func(err error) bool {
			return err == nil || opts.IsSuccessful(err)
		}
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker[any](st)}
}

// Do runs fn through b. A nil breaker runs fn directly.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	if b == nil {
		return fn()
	}
	v, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if IsOpen(err) {
			return zero, err
		}
		if t, ok := v.(T); ok {
			return t, err
		}
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// Run is Do for calls without a result.
func Run(b *Breaker, fn func() error) error {
	_, err := Do(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// IsOpen reports whether err was produced by the breaker rejecting a call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (b *Breaker) State() string {
	return b.cb.State().String()
}
