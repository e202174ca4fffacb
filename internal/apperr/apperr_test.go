package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"wrapped not found", fmt.Errorf("transaction TXN-1: %w", ErrNotFound), KindNotFound},
		{"empty cart", ErrEmptyCart, KindEmptyCart},
		{"transition", fmt.Errorf("pending -> completed: %w", ErrInvalidTransition), KindInvalidTransition},
		{"storage with driver error", fmt.Errorf("insert order: %w: %w", ErrStorage, errors.New("broken pipe")), KindStorage},
		{"deadline", fmt.Errorf("catalog: %w", context.DeadlineExceeded), KindStorage},
		{"idempotency race is a conflict", ErrDuplicateIdempotencyKey, KindConflict},
		{"unknown", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(fmt.Errorf("lock wait: %w", ErrConflict)))
	assert.True(t, Retryable(ErrStorage))
	assert.False(t, Retryable(ErrInvalidTransition))
	assert.False(t, Retryable(ErrEmptyCart))
}
