// Package catalog is the read-only view of the product catalog used by the
// cart and checkout. Products are owned by the admin side; this service
// only performs point lookups by id.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
	"github.com/kennethcatiis/ecommerce-platform/internal/metrics"
	"github.com/kennethcatiis/ecommerce-platform/internal/models"
)

// Reader returns the current catalog entry for id, or an
// apperr.ErrNotFound-wrapped error.
type Reader interface {
	Product(ctx context.Context, id int64) (*models.Product, error)
}

// TimeoutReader bounds every lookup.
type TimeoutReader struct {
	next    Reader
	timeout time.Duration
}

func WithTimeout(next Reader, timeout time.Duration) *TimeoutReader {
	return &TimeoutReader{next: next, timeout: timeout}
}

func (r *TimeoutReader) Product(ctx context.Context, id int64) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.Product(ctx, id)
}

// BreakerReader stops hammering a failing catalog. Misses are normal
// answers and never count as failures. The breaker state is exported as
// the shop_circuit_breaker_state gauge.
type BreakerReader struct {
	next Reader
	cb   *gobreaker.CircuitBreaker[*models.Product]
}

func WithBreaker(next Reader, name string) *BreakerReader {
	metrics.BreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
	return &BreakerReader{
		next: next,
		cb: gobreaker.NewCircuitBreaker[*models.Product](gobreaker.Settings{
			Name:        name,
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, apperr.ErrNotFound) || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.BreakerState.WithLabelValues(name).Set(float64(to))
				slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

func (r *BreakerReader) Product(ctx context.Context, id int64) (*models.Product, error) {
	p, err := r.cb.Execute(func() (*models.Product, error) {
		return r.next.Product(ctx, id)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("catalog %s: %w: %w", r.cb.Name(), apperr.ErrStorage, err)
	}
	return p, err
}
