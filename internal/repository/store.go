// Package repository is the MySQL implementation of the cart, checkout,
// ledger, outbox, catalog and user storage ports.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// inTx runs fn inside a transaction at the given isolation level and
// commits only if fn succeeds.
func (s *Store) inTx(ctx context.Context, level sql.IsolationLevel, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: level})
	if err != nil {
		return classify("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify("commit", err)
	}
	return nil
}

const (
	errDuplicateEntry   = 1062
	errLockWaitTimeout  = 1205
	errDeadlock         = 1213
	idempotencyIndexKey = "uq_transactions_user_idem"
)

// classify maps driver errors onto the apperr taxonomy. Errors that already
// carry a domain sentinel pass through untouched.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errDuplicateEntry:
			if strings.Contains(myErr.Message, idempotencyIndexKey) {
				return fmt.Errorf("%s: %w: %w", op, apperr.ErrDuplicateIdempotencyKey, err)
			}
			return fmt.Errorf("%s: %w: %w", op, apperr.ErrDuplicateID, err)
		case errDeadlock, errLockWaitTimeout:
			return fmt.Errorf("%s: %w: %w", op, apperr.ErrConflict, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, apperr.ErrStorage, err)
}
