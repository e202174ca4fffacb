package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kennethcatiis/ecommerce-platform/internal/events"
	"github.com/kennethcatiis/ecommerce-platform/internal/models"
)

const transactionColumns = `
	transaction_id, user_id, user_name, user_email, total_amount,
	ship_street, ship_city, ship_state, ship_zip_code, ship_country,
	payment_method, status, notes, idempotency_key, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var idem sql.NullString
	err := row.Scan(
		&t.TransactionID, &t.UserID, &t.UserName, &t.UserEmail, &t.TotalAmount,
		&t.ShippingAddress.Street, &t.ShippingAddress.City, &t.ShippingAddress.State,
		&t.ShippingAddress.ZipCode, &t.ShippingAddress.Country,
		&t.PaymentMethod, &t.Status, &t.Notes, &idem, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.IdempotencyKey = idem.String
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

func (s *Store) SaveTransaction(ctx context.Context, t *models.Transaction) error {
	return s.inTx(ctx, sql.LevelReadCommitted, func(tx *sql.Tx) error {
		return insertTransaction(ctx, tx, t)
	})
}

// insertTransaction writes the header, its items and the order.created
// outbox row. The caller owns the transaction.
func insertTransaction(ctx context.Context, q querier, t *models.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	idem := sql.NullString{String: t.IdempotencyKey, Valid: t.IdempotencyKey != ""}

	_, err := q.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TransactionID, t.UserID, t.UserName, t.UserEmail, int64(t.TotalAmount),
		t.ShippingAddress.Street, t.ShippingAddress.City, t.ShippingAddress.State,
		t.ShippingAddress.ZipCode, t.ShippingAddress.Country,
		string(t.PaymentMethod), string(t.Status), t.Notes, idem, t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	if err != nil {
		return classify("insert transaction", err)
	}

	for i, item := range t.Items {
		_, err := q.ExecContext(ctx, `
			INSERT INTO transaction_items (transaction_id, position, product_id, name, unit_price, quantity, image)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.TransactionID, i, item.ProductID, item.Name, int64(item.UnitPrice), item.Quantity, item.ImageRef,
		)
		if err != nil {
			return classify("insert transaction item", err)
		}
	}

	ev, err := events.OrderCreated(t)
	if err != nil {
		return err
	}
	return insertEvent(ctx, q, ev)
}

func (s *Store) TransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE transaction_id = ?", id))
	if err != nil {
		return nil, classify(fmt.Sprintf("transaction %s", id), err)
	}
	if err := loadItems(ctx, s.db, []*models.Transaction{t}); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) TransactionByIdempotencyKey(ctx context.Context, userID int64, key string) (*models.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = ? AND idempotency_key = ?", userID, key))
	if err != nil {
		return nil, classify(fmt.Sprintf("idempotency key %q", key), err)
	}
	if err := loadItems(ctx, s.db, []*models.Transaction{t}); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) TransactionsByUser(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	return s.listTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, transaction_id DESC`, userID)
}

func (s *Store) RecentTransactions(ctx context.Context, limit int) ([]*models.Transaction, error) {
	return s.listTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		ORDER BY created_at DESC, transaction_id DESC
		LIMIT ?`, limit)
}

func (s *Store) listTransactions(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list transactions", err)
	}
	defer rows.Close()

	list := []*models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, classify("scan transaction", err)
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list transactions", err)
	}

	if err := loadItems(ctx, s.db, list); err != nil {
		return nil, err
	}
	return list, nil
}

// loadItems fills Items for every transaction in list with one query.
func loadItems(ctx context.Context, q querier, list []*models.Transaction) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*models.Transaction, len(list))
	args := make([]any, 0, len(list))
	for _, t := range list {
		byID[t.TransactionID] = t
		t.Items = []models.OrderItem{}
		args = append(args, t.TransactionID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(list)), ",")

	rows, err := q.QueryContext(ctx, `
		SELECT transaction_id, product_id, name, unit_price, quantity, image
		FROM transaction_items
		WHERE transaction_id IN (`+placeholders+`)
		ORDER BY transaction_id, position`, args...)
	if err != nil {
		return classify("load transaction items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var txnID string
		var item models.OrderItem
		if err := rows.Scan(&txnID, &item.ProductID, &item.Name, &item.UnitPrice, &item.Quantity, &item.ImageRef); err != nil {
			return classify("scan transaction item", err)
		}
		if t, ok := byID[txnID]; ok {
			t.Items = append(t.Items, item)
		}
	}
	return classify("load transaction items", rows.Err())
}

// UpdateTransaction locks the row, applies fn and writes status, notes and
// updated_at back when fn modified any of them. Items and totals are never
// touched.
func (s *Store) UpdateTransaction(ctx context.Context, id string, fn func(*models.Transaction) (bool, error)) (*models.Transaction, error) {
	var out *models.Transaction
	err := s.inTx(ctx, sql.LevelSerializable, func(tx *sql.Tx) error {
		t, err := scanTransaction(tx.QueryRowContext(ctx,
			"SELECT "+transactionColumns+" FROM transactions WHERE transaction_id = ? FOR UPDATE", id))
		if err != nil {
			return classify(fmt.Sprintf("transaction %s", id), err)
		}
		if err := loadItems(ctx, tx, []*models.Transaction{t}); err != nil {
			return err
		}

		from, notes, updatedAt := t.Status, t.Notes, t.UpdatedAt
		changed, err := fn(t)
		if err != nil {
			return err
		}
		out = t
		if t.Status == from && t.Notes == notes && t.UpdatedAt.Equal(updatedAt) {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE transactions SET status = ?, notes = ?, updated_at = ?
			WHERE transaction_id = ?`,
			string(t.Status), t.Notes, t.UpdatedAt.UTC(), id)
		if err != nil {
			return classify("update transaction", err)
		}

		if changed {
			ev, err := events.StatusChanged(from, t)
			if err != nil {
				return err
			}
			if err := insertEvent(ctx, tx, ev); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}
