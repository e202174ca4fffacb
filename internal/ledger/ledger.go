// Package ledger is the append-only store of transactions. Records are
// never deleted; after creation only status, notes and updatedAt change,
// and only through the lifecycle state machine.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
	"github.com/kennethcatiis/ecommerce-platform/internal/lifecycle"
	"github.com/kennethcatiis/ecommerce-platform/internal/metrics"
	"github.com/kennethcatiis/ecommerce-platform/internal/models"
)

// MaxListLimit caps the administrative listing.
const MaxListLimit = 100

type Store interface {
	SaveTransaction(ctx context.Context, t *models.Transaction) error
	TransactionByID(ctx context.Context, id string) (*models.Transaction, error)
	TransactionsByUser(ctx context.Context, userID int64) ([]*models.Transaction, error)
	RecentTransactions(ctx context.Context, limit int) ([]*models.Transaction, error)
	// UpdateTransaction locks the record, calls fn on it and persists the
	// result if fn returns no error and modified status, notes or updatedAt.
	// fn reports whether the status changed.
	UpdateTransaction(ctx context.Context, id string, fn func(*models.Transaction) (bool, error)) (*models.Transaction, error)
}

type Ledger struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
	log     *slog.Logger
}

func New(store Store, timeout time.Duration, log *slog.Logger) *Ledger {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{
		store:   store,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		log:     log,
	}
}

// Save inserts t. It fails with apperr.ErrDuplicateID when the id exists.
func (l *Ledger) Save(ctx context.Context, t *models.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.store.SaveTransaction(ctx, t); err != nil {
		return fmt.Errorf("save transaction %s: %w", t.TransactionID, err)
	}
	return nil
}

func (l *Ledger) FindByID(ctx context.Context, id string) (*models.Transaction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: transaction id is required", apperr.ErrValidation)
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	t, err := l.store.TransactionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return t, nil
}

// FindByUser returns every transaction of userID, newest first.
func (l *Ledger) FindByUser(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: missing user", apperr.ErrAuth)
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	list, err := l.store.TransactionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user transactions: %w", err)
	}
	return nonNil(list), nil
}

// ListRecent returns the newest transactions across all users. A limit
// outside 1..MaxListLimit is treated as MaxListLimit.
func (l *Ledger) ListRecent(ctx context.Context, limit int) ([]*models.Transaction, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	list, err := l.store.RecentTransactions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return nonNil(list), nil
}

// Update moves a transaction to status and optionally replaces its notes.
// The read, the transition check and the write happen under one lock, so
// two racing updates cannot both pass validation against the same state.
func (l *Ledger) Update(ctx context.Context, id, status string, notes *string) (*models.Transaction, error) {
	to, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: transaction id is required", apperr.ErrValidation)
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var from models.Status
	var changed bool
	t, err := l.store.UpdateTransaction(ctx, id, func(t *models.Transaction) (bool, error) {
		from = t.Status
		c, err := lifecycle.Apply(t, to, notes, l.now())
		changed = c
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("update transaction %s: %w", id, err)
	}

	if changed {
		metrics.StatusTransitions.WithLabelValues(string(from), string(to)).Inc()
		l.log.Info("transaction status changed", "transaction_id", id, "from", from, "to", to)
	}
	return t, nil
}

func nonNil(list []*models.Transaction) []*models.Transaction {
	if list == nil {
		return []*models.Transaction{}
	}
	return list
}
