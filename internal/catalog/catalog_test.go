package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
	"github.com/kennethcatiis/ecommerce-platform/internal/metrics"
	"github.com/kennethcatiis/ecommerce-platform/internal/models"
)

type stubReader struct {
	calls int
	err   error
	delay time.Duration
}

func (s *stubReader) Product(ctx context.Context, id int64) (*models.Product, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &models.Product{ID: id, Name: "Shirt", Price: 1000, Available: true}, nil
}

func breakerState(name string) gobreaker.State {
	return gobreaker.State(testutil.ToFloat64(metrics.BreakerState.WithLabelValues(name)))
}

func TestTimeoutReader(t *testing.T) {
	r := WithTimeout(&stubReader{delay: time.Second}, 10*time.Millisecond)
	_, err := r.Product(context.Background(), 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBreakerIgnoresMisses(t *testing.T) {
	stub := &stubReader{err: fmt.Errorf("product 9: %w", apperr.ErrNotFound)}
	r := WithBreaker(stub, "catalog-misses")

	for i := 0; i < 10; i++ {
		_, err := r.Product(context.Background(), 9)
		require.ErrorIs(t, err, apperr.ErrNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, breakerState("catalog-misses"))
	assert.Equal(t, 10, stub.calls)
}

func TestBreakerOpensOnFailures(t *testing.T) {
	stub := &stubReader{err: errors.New("connection refused")}
	r := WithBreaker(stub, "catalog-failing")

	for i := 0; i < 5; i++ {
		_, _ = r.Product(context.Background(), 1)
	}
	require.Equal(t, gobreaker.StateOpen, breakerState("catalog-failing"))

	_, err := r.Product(context.Background(), 1)
	assert.ErrorIs(t, err, apperr.ErrStorage)
	assert.Equal(t, 5, stub.calls, "open breaker must not call through")
}

func TestBreakerPassesProducts(t *testing.T) {
	r := WithBreaker(&stubReader{}, "catalog-test")
	p, err := r.Product(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ID)
}
