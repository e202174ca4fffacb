// Package memory is a process-local implementation of every storage port.
// It backs STORE_DRIVER=memory and the service tests. A single mutex plays
// the role of the row locks the MySQL store takes, so each method is one
// atomic unit just like its SQL counterpart.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
	"github.com/kennethcatiis/ecommerce-platform/internal/events"
	"github.com/kennethcatiis/ecommerce-platform/internal/models"
)

type idemKey struct {
	userID int64
	key    string
}

type storedTxn struct {
	txn *models.Transaction
	seq int64
}

type outboxRow struct {
	event     events.Event
	published bool
}

type Store struct {
	mu     sync.Mutex
	carts  map[int64]map[int64]int
	txns   map[string]*storedTxn
	idem   map[idemKey]string
	outbox []outboxRow
	seq    int64

	// Catalog and users live behind their own lock so checkout's build
	// callback can read them while mu is held.
	refMu    sync.RWMutex
	products map[int64]models.Product
	users    map[int64]models.User
}

func New() *Store {
	return &Store{
		carts:    map[int64]map[int64]int{},
		txns:     map[string]*storedTxn{},
		idem:     map[idemKey]string{},
		products: map[int64]models.Product{},
		users:    map[int64]models.User{},
	}
}

// ---- reference data ----

func (s *Store) PutProduct(p models.Product) {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) PutUser(u models.User) {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) Product(ctx context.Context, id int64) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.refMu.RLock()
	defer s.refMu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, apperr.ErrNotFound)
	}
	return &p, nil
}

func (s *Store) User(ctx context.Context, id int64) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.refMu.RLock()
	defer s.refMu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, apperr.ErrNotFound)
	}
	return &u, nil
}

type seedFile struct {
	Products []seedProduct `json:"products"`
	Users    []models.User `json:"users"`
}

// seedProduct lets a fixture omit "available"; omitted means available.
type seedProduct struct {
	models.Product
	Available *bool `json:"available"`
}

// LoadSeed reads products and users from a JSON fixture.
func (s *Store) LoadSeed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	for _, sp := range seed.Products {
		p := sp.Product
		p.Available = sp.Available == nil || *sp.Available
		s.PutProduct(p)
	}
	for _, u := range seed.Users {
		if u.Role == "" {
			u.Role = models.RoleCustomer
		}
		s.PutUser(u)
	}
	return nil
}

// ---- cart ----

func (s *Store) IncrementItem(ctx context.Context, userID, productID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[userID]
	if items == nil {
		items = map[int64]int{}
		s.carts[userID] = items
	}
	items[productID]++
	return items[productID], nil
}

func (s *Store) DecrementItem(ctx context.Context, userID, productID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[userID]
	if items[productID] <= 0 {
		return 0, fmt.Errorf("product %d: %w", productID, apperr.ErrNotInCart)
	}
	items[productID]--
	qty := items[productID]
	if qty == 0 {
		delete(items, productID)
	}
	return qty, nil
}

func (s *Store) CartItems(ctx context.Context, userID int64) (models.Cart, error) {
	if err := ctx.Err(); err != nil {
		return models.Cart{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartLocked(userID), nil
}

func (s *Store) ClearCart(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

func (s *Store) cartLocked(userID int64) models.Cart {
	c := models.NewCart(userID)
	for id, qty := range s.carts[userID] {
		c.Set(id, qty)
	}
	return c
}

// ---- checkout ----

// CommitCheckout snapshots the cart, lets build turn it into a transaction,
// then stores the transaction with its outbox event and clears the cart. No
// other cart or ledger call can interleave.
func (s *Store) CommitCheckout(ctx context.Context, userID int64, build func(context.Context, models.Cart) (*models.Transaction, error)) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := build(ctx, s.cartLocked(userID))
	if err != nil {
		return nil, err
	}
	if err := s.insertLocked(t); err != nil {
		return nil, err
	}
	// Last chance to abort: nothing above is visible until we return.
	if err := ctx.Err(); err != nil {
		s.rollbackInsertLocked(t)
		return nil, err
	}
	delete(s.carts, userID)
	return t.Clone(), nil
}

func (s *Store) TransactionByIdempotencyKey(ctx context.Context, userID int64, key string) (*models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.idem[idemKey{userID, key}]
	if !ok || key == "" {
		return nil, fmt.Errorf("idempotency key %q: %w", key, apperr.ErrNotFound)
	}
	return s.txns[id].txn.Clone(), nil
}

// ---- ledger ----

func (s *Store) SaveTransaction(ctx context.Context, t *models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(t)
}

func (s *Store) TransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.txns[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, apperr.ErrNotFound)
	}
	return st.txn.Clone(), nil
}

func (s *Store) TransactionsByUser(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.newestFirstLocked(func(t *models.Transaction) bool { return t.UserID == userID }, 0), nil
}

func (s *Store) RecentTransactions(ctx context.Context, limit int) ([]*models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.newestFirstLocked(func(*models.Transaction) bool { return true }, limit), nil
}

// UpdateTransaction runs fn on a copy of the stored transaction and writes
// it back only if fn succeeds and modified it. An order.status_changed event
// is queued when fn reports a status change.
func (s *Store) UpdateTransaction(ctx context.Context, id string, fn func(*models.Transaction) (bool, error)) (*models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.txns[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, apperr.ErrNotFound)
	}
	working := st.txn.Clone()
	from := working.Status
	changed, err := fn(working)
	if err != nil {
		return nil, err
	}
	if working.Status == from && working.Notes == st.txn.Notes && working.UpdatedAt.Equal(st.txn.UpdatedAt) {
		return working, nil
	}
	if changed {
		ev, err := events.StatusChanged(from, working)
		if err != nil {
			return nil, err
		}
		s.appendEventLocked(ev)
	}
	st.txn = working
	return working.Clone(), nil
}

func (s *Store) insertLocked(t *models.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if _, exists := s.txns[t.TransactionID]; exists {
		return fmt.Errorf("transaction %s: %w", t.TransactionID, apperr.ErrDuplicateID)
	}
	if t.IdempotencyKey != "" {
		if _, exists := s.idem[idemKey{t.UserID, t.IdempotencyKey}]; exists {
			return fmt.Errorf("user %d key %q: %w", t.UserID, t.IdempotencyKey, apperr.ErrDuplicateIdempotencyKey)
		}
	}
	ev, err := events.OrderCreated(t)
	if err != nil {
		return err
	}

	s.seq++
	s.txns[t.TransactionID] = &storedTxn{txn: t.Clone(), seq: s.seq}
	if t.IdempotencyKey != "" {
		s.idem[idemKey{t.UserID, t.IdempotencyKey}] = t.TransactionID
	}
	s.appendEventLocked(ev)
	return nil
}

func (s *Store) rollbackInsertLocked(t *models.Transaction) {
	delete(s.txns, t.TransactionID)
	if t.IdempotencyKey != "" {
		delete(s.idem, idemKey{t.UserID, t.IdempotencyKey})
	}
	if n := len(s.outbox); n > 0 && s.outbox[n-1].event.AggregateID == t.TransactionID {
		s.outbox = s.outbox[:n-1]
	}
}

func (s *Store) newestFirstLocked(keep func(*models.Transaction) bool, limit int) []*models.Transaction {
	matched := make([]*storedTxn, 0, len(s.txns))
	for _, st := range s.txns {
		if keep(st.txn) {
			matched = append(matched, st)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.txn.CreatedAt.Equal(b.txn.CreatedAt) {
			return a.txn.CreatedAt.After(b.txn.CreatedAt)
		}
		return a.seq > b.seq
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*models.Transaction, len(matched))
	for i, st := range matched {
		out[i] = st.txn.Clone()
	}
	return out
}

// ---- outbox ----

func (s *Store) appendEventLocked(ev events.Event) {
	ev.ID = int64(len(s.outbox) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	s.outbox = append(s.outbox, outboxRow{event: ev})
}

func (s *Store) PendingEvents(ctx context.Context, limit int) ([]events.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []events.Event
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		out = append(out, row.event)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkPublished(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if id <= 0 || int(id) > len(s.outbox) {
		return fmt.Errorf("event %d: %w", id, apperr.ErrNotFound)
	}
	s.outbox[id-1].published = true
	return nil
}
