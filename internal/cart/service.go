// Package cart owns the per-user product -> quantity map.
//
// Every mutation is a single conditional increment or decrement executed by
// the Store for one (user, product) pair. The service never reads a whole
// cart, edits it in memory and writes it back.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
	"github.com/kennethcatiis/ecommerce-platform/internal/catalog"
	"github.com/kennethcatiis/ecommerce-platform/internal/models"
)

// Store is the storage side of the cart.
type Store interface {
	// IncrementItem adds one unit and returns the new quantity.
	IncrementItem(ctx context.Context, userID, productID int64) (int, error)
	// DecrementItem removes one unit, deleting the entry at zero. It returns
	// apperr.ErrNotInCart without changing anything when the item is absent.
	DecrementItem(ctx context.Context, userID, productID int64) (int, error)
	CartItems(ctx context.Context, userID int64) (models.Cart, error)
	ClearCart(ctx context.Context, userID int64) error
}

type Service struct {
	store   Store
	catalog catalog.Reader
	cache   Cache
	timeout time.Duration
	log     *slog.Logger
	sfg     singleflight.Group
}

type Option func(*Service)

// WithCache enables a read-through cache for GetCart.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(store Store, products catalog.Reader, opts ...Option) *Service {
	s := &Service{
		store:   store,
		catalog: products,
		timeout: 5 * time.Second,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Change is the outcome of a mutation: the cart after the change and the
// resulting quantity of the touched product.
type Change struct {
	Cart      models.Cart
	ProductID int64
	Quantity  int
}

// AddItem increments productID by one, creating the entry if needed. The
// product must exist in the catalog.
func (s *Service) AddItem(ctx context.Context, userID, productID int64) (*Change, error) {
	if err := validateIDs(userID, productID); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.catalog.Product(ctx, productID); err != nil {
		return nil, fmt.Errorf("add product %d: %w", productID, err)
	}

	qty, err := s.store.IncrementItem(ctx, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("add product %d: %w", productID, err)
	}
	s.Invalidate(ctx, userID)

	return s.change(ctx, userID, productID, qty)
}

// RemoveItem decrements productID by one. Removing an item that is not in
// the cart returns apperr.ErrNotInCart and changes nothing.
func (s *Service) RemoveItem(ctx context.Context, userID, productID int64) (*Change, error) {
	if err := validateIDs(userID, productID); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	qty, err := s.store.DecrementItem(ctx, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("remove product %d: %w", productID, err)
	}
	s.Invalidate(ctx, userID)

	return s.change(ctx, userID, productID, qty)
}

// GetCart returns a snapshot of the user's cart.
func (s *Service) GetCart(ctx context.Context, userID int64) (models.Cart, error) {
	if userID <= 0 {
		return models.Cart{}, fmt.Errorf("%w: missing user", apperr.ErrAuth)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.cache == nil {
		c, err := s.store.CartItems(ctx, userID)
		if err != nil {
			return models.Cart{}, fmt.Errorf("get cart: %w", err)
		}
		return c, nil
	}

	// The generation is read before the store so a fill racing a mutation
	// is discarded. It is part of the flight key so a caller never joins a
	// read that started before its own invalidation.
	gen, err := s.cache.Generation(ctx, userID)
	if err != nil {
		s.log.Warn("cart cache generation failed", "user_id", userID, "error", err)
		c, err := s.store.CartItems(ctx, userID)
		if err != nil {
			return models.Cart{}, fmt.Errorf("get cart: %w", err)
		}
		return c, nil
	}

	v, err, _ := s.sfg.Do(fmt.Sprintf("%d:%d", userID, gen), func() (interface{}, error) {
		cached, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn("cart cache get failed", "user_id", userID, "error", err)
		}

		c, err := s.store.CartItems(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetIfGeneration(ctx, c, gen); err != nil {
			s.log.Warn("cart cache set failed", "user_id", userID, "error", err)
		}
		return c, nil
	})
	if err != nil {
		return models.Cart{}, fmt.Errorf("get cart: %w", err)
	}
	// singleflight shares one value between callers; hand each its own copy.
	return v.(models.Cart).Clone(), nil
}

// ClearCart empties the user's cart.
func (s *Service) ClearCart(ctx context.Context, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.ClearCart(ctx, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	s.Invalidate(ctx, userID)
	return nil
}

// Invalidate drops the cached copy of the user's cart. Checkout calls it
// after clearing the cart in its own storage transaction.
func (s *Service) Invalidate(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.Warn("cart cache invalidate failed", "user_id", userID, "error", err)
	}
}

func (s *Service) change(ctx context.Context, userID, productID int64, qty int) (*Change, error) {
	c, err := s.store.CartItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	return &Change{Cart: c, ProductID: productID, Quantity: qty}, nil
}

func validateIDs(userID, productID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: missing user", apperr.ErrAuth)
	}
	if productID <= 0 {
		return fmt.Errorf("%w: product id must be a positive integer", apperr.ErrValidation)
	}
	return nil
}
