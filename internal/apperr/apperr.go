// Package apperr holds the error taxonomy shared by the cart, checkout and
// ledger packages. Lower layers wrap these sentinels with context using %w;
// the HTTP layer maps them to a status code once.
package apperr

import (
	"context"
	"errors"
)

var (
	ErrAuth                    = errors.New("authentication required")
	ErrForbidden               = errors.New("access denied")
	ErrNotFound                = errors.New("not found")
	ErrNotInCart               = errors.New("item not in cart")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrProductUnavailable      = errors.New("product unavailable")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrValidation              = errors.New("invalid input")
	ErrDuplicateID             = errors.New("duplicate transaction id")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrConflict                = errors.New("concurrent modification, retry")
	ErrStorage                 = errors.New("storage unavailable")
)

// Kind is the machine-readable error class returned to clients.
type Kind string

const (
	KindAuth               Kind = "auth_error"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindNotInCart          Kind = "not_in_cart"
	KindEmptyCart          Kind = "empty_cart"
	KindProductUnavailable Kind = "product_unavailable"
	KindInvalidTransition  Kind = "invalid_transition"
	KindValidation         Kind = "validation_error"
	KindDuplicateID        Kind = "duplicate_id"
	KindConflict           Kind = "conflict"
	KindStorage            Kind = "storage_error"
	KindInternal           Kind = "internal_error"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrAuth, KindAuth},
	{ErrForbidden, KindForbidden},
	{ErrNotInCart, KindNotInCart},
	{ErrEmptyCart, KindEmptyCart},
	{ErrProductUnavailable, KindProductUnavailable},
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrValidation, KindValidation},
	{ErrDuplicateID, KindDuplicateID},
	{ErrDuplicateIdempotencyKey, KindConflict},
	{ErrConflict, KindConflict},
	{ErrNotFound, KindNotFound},
	{ErrStorage, KindStorage},
}

// KindOf classifies err. Context deadlines count as storage failures since
// every bounded call in the service is a storage or catalog round-trip.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindStorage
	}
	return KindInternal
}

// Retryable reports whether the caller may safely repeat the operation.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConflict, KindStorage:
		return true
	}
	return false
}
