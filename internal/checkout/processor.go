// Package checkout turns a user's cart into a persisted transaction.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
	"github.com/kennethcatiis/ecommerce-platform/internal/catalog"
	"github.com/kennethcatiis/ecommerce-platform/internal/metrics"
	"github.com/kennethcatiis/ecommerce-platform/internal/models"
)

const maxAttempts = 3

// errCartChanged reports a locked cart holding products that were not
// priced before the storage transaction began.
var errCartChanged = fmt.Errorf("%w: cart changed during checkout", apperr.ErrConflict)

// Store is the unit of work checkout needs from storage.
type Store interface {
	CartItems(ctx context.Context, userID int64) (models.Cart, error)
	// CommitCheckout locks the user's cart, hands a snapshot to build and,
	// if build succeeds, inserts the transaction and clears the cart in the
	// same storage transaction. Nothing is written when build fails. build
	// must not touch storage itself.
	CommitCheckout(ctx context.Context, userID int64, build func(context.Context, models.Cart) (*models.Transaction, error)) (*models.Transaction, error)
	TransactionByIdempotencyKey(ctx context.Context, userID int64, key string) (*models.Transaction, error)
}

type UserDirectory interface {
	User(ctx context.Context, id int64) (*models.User, error)
}

// CartInvalidator drops cached cart copies once the stored cart is cleared.
type CartInvalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

type Request struct {
	UserID          int64
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
	IdempotencyKey  string
}

type Result struct {
	Transaction *models.Transaction
	// Replayed is set when the idempotency key matched an earlier order.
	Replayed bool
}

type Processor struct {
	store          Store
	catalog        catalog.Reader
	users          UserDirectory
	carts          CartInvalidator
	timeout        time.Duration
	catalogTimeout time.Duration
	now            func() time.Time
	newID          func(time.Time) string
	log            *slog.Logger
}

type Config struct {
	StorageTimeout time.Duration
	CatalogTimeout time.Duration
	Logger         *slog.Logger
}

func NewProcessor(store Store, products catalog.Reader, users UserDirectory, carts CartInvalidator, cfg Config) *Processor {
	p := &Processor{
		store:          store,
		catalog:        products,
		users:          users,
		carts:          carts,
		timeout:        cfg.StorageTimeout,
		catalogTimeout: cfg.CatalogTimeout,
		now:            func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newID:          NewTransactionID,
		log:            cfg.Logger,
	}
	if p.timeout <= 0 {
		p.timeout = 5 * time.Second
	}
	if p.catalogTimeout <= 0 {
		p.catalogTimeout = 2 * time.Second
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p
}

// NewTransactionID returns TXN-<unix millis>-<8 random hex digits>.
func NewTransactionID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("TXN-%d-%s", now.UnixMilli(), suffix)
}

// Checkout converts the user's cart into a pending transaction and empties
// the cart, atomically. With an idempotency key, a repeated call returns the
// order created by the first one.
func (p *Processor) Checkout(ctx context.Context, req Request) (*Result, error) {
	if req.UserID <= 0 {
		return nil, fmt.Errorf("%w: missing user", apperr.ErrAuth)
	}
	method, err := models.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if len(key) > 128 {
		return nil, fmt.Errorf("%w: idempotency key longer than 128 characters", apperr.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if key != "" {
		if existing, err := p.replay(ctx, req.UserID, key); err != nil || existing != nil {
			return existing, err
		}
	}

	user, err := p.users.User(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user %d", apperr.ErrAuth, req.UserID)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	var txn *models.Transaction
	for attempt := 1; ; attempt++ {
		txn, err = p.commit(ctx, req.UserID, user, req.ShippingAddress, method, key)
		if attempt >= maxAttempts {
			break
		}
		if errors.Is(err, apperr.ErrDuplicateID) {
			p.log.Warn("transaction id collision, retrying", "user_id", req.UserID, "attempt", attempt)
			continue
		}
		if errors.Is(err, errCartChanged) {
			p.log.Info("cart changed during checkout, retrying", "user_id", req.UserID, "attempt", attempt)
			continue
		}
		break
	}

	if key != "" && (errors.Is(err, apperr.ErrDuplicateIdempotencyKey) || errors.Is(err, apperr.ErrEmptyCart)) {
		// A concurrent request with the same key may have won the race and
		// already emptied the cart.
		if existing, rerr := p.replay(ctx, req.UserID, key); rerr == nil && existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		metrics.Checkouts.WithLabelValues(string(apperr.KindOf(err))).Inc()
		return nil, fmt.Errorf("checkout: %w", err)
	}

	if p.carts != nil {
		p.carts.Invalidate(ctx, req.UserID)
	}
	metrics.Checkouts.WithLabelValues("created").Inc()
	p.log.Info("checkout completed",
		"transaction_id", txn.TransactionID,
		"user_id", txn.UserID,
		"items", len(txn.Items),
		"total", txn.TotalAmount.String(),
	)
	return &Result{Transaction: txn}, nil
}

func (p *Processor) replay(ctx context.Context, userID int64, key string) (*Result, error) {
	existing, err := p.store.TransactionByIdempotencyKey(ctx, userID, key)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	metrics.Checkouts.WithLabelValues("replayed").Inc()
	return &Result{Transaction: existing, Replayed: true}, nil
}

// commit prices the current cart against the catalog, then writes the order
// against the locked cart. Catalog lookups run before the storage
// transaction begins: nothing inside CommitCheckout may wait on the catalog
// or on a second pooled connection.
func (p *Processor) commit(ctx context.Context, userID int64, user *models.User, addr models.ShippingAddress, method models.PaymentMethod, key string) (*models.Transaction, error) {
	current, err := p.store.CartItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	if current.IsEmpty() {
		return nil, apperr.ErrEmptyCart
	}

	products := make(map[int64]*models.Product, len(current.Items))
	for _, id := range current.ProductIDs() {
		product, err := p.lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		products[id] = product
	}

	return p.store.CommitCheckout(ctx, userID, func(_ context.Context, locked models.Cart) (*models.Transaction, error) {
		return p.build(locked, products, user, addr, method, key)
	})
}

// build turns the locked cart into a transaction using prices resolved
// before the lock. Quantities always come from the locked snapshot.
func (p *Processor) build(c models.Cart, products map[int64]*models.Product, user *models.User, addr models.ShippingAddress, method models.PaymentMethod, key string) (*models.Transaction, error) {
	ids := c.ProductIDs()
	if len(ids) == 0 {
		return nil, apperr.ErrEmptyCart
	}

	items := make([]models.OrderItem, 0, len(ids))
	for _, id := range ids {
		product, ok := products[id]
		if !ok {
			return nil, errCartChanged
		}
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  c.Quantity(id),
			ImageRef:  product.Image,
		})
	}

	now := p.now()
	return &models.Transaction{
		TransactionID:   p.newID(now),
		UserID:          user.ID,
		UserName:        user.Name,
		UserEmail:       user.Email,
		Items:           items,
		TotalAmount:     models.SumItems(items),
		ShippingAddress: addr,
		PaymentMethod:   method,
		Status:          models.StatusPending,
		IdempotencyKey:  key,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (p *Processor) lookup(ctx context.Context, id int64) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, p.catalogTimeout)
	defer cancel()

	product, err := p.catalog.Product(ctx, id)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil, fmt.Errorf("%w: product %d", apperr.ErrProductUnavailable, id)
	case err != nil:
		return nil, fmt.Errorf("catalog lookup %d: %w", id, err)
	case !product.Available:
		return nil, fmt.Errorf("%w: product %d is not available", apperr.ErrProductUnavailable, id)
	}
	return product, nil
}
