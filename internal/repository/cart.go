package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
	"github.com/kennethcatiis/ecommerce-platform/internal/models"
)

// IncrementItem adds one unit with a single upsert on (user_id, product_id).
func (s *Store) IncrementItem(ctx context.Context, userID, productID int64) (int, error) {
	var qty int
	err := s.inTx(ctx, sql.LevelReadCommitted, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (user_id, product_id, quantity, updated_at)
			VALUES (?, ?, 1, UTC_TIMESTAMP(6))
			ON DUPLICATE KEY UPDATE quantity = quantity + 1, updated_at = UTC_TIMESTAMP(6)`,
			userID, productID)
		if err != nil {
			return classify("increment cart item", err)
		}
		err = tx.QueryRowContext(ctx,
			"SELECT quantity FROM cart_items WHERE user_id = ? AND product_id = ?",
			userID, productID).Scan(&qty)
		return classify("read cart item", err)
	})
	return qty, err
}

// DecrementItem removes one unit. The conditional update never takes a
// quantity below zero; a row that reaches zero is deleted in the same
// transaction.
func (s *Store) DecrementItem(ctx context.Context, userID, productID int64) (int, error) {
	var qty int
	err := s.inTx(ctx, sql.LevelReadCommitted, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE cart_items SET quantity = quantity - 1, updated_at = UTC_TIMESTAMP(6)
			WHERE user_id = ? AND product_id = ? AND quantity > 0`,
			userID, productID)
		if err != nil {
			return classify("decrement cart item", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return classify("decrement cart item", err)
		}
		if n == 0 {
			return fmt.Errorf("product %d: %w", productID, apperr.ErrNotInCart)
		}

		err = tx.QueryRowContext(ctx,
			"SELECT quantity FROM cart_items WHERE user_id = ? AND product_id = ?",
			userID, productID).Scan(&qty)
		if err != nil {
			return classify("read cart item", err)
		}
		if qty == 0 {
			_, err = tx.ExecContext(ctx,
				"DELETE FROM cart_items WHERE user_id = ? AND product_id = ? AND quantity = 0",
				userID, productID)
			return classify("delete cart item", err)
		}
		return nil
	})
	return qty, err
}

func (s *Store) CartItems(ctx context.Context, userID int64) (models.Cart, error) {
	return readCart(ctx, s.db, userID, false)
}

func (s *Store) ClearCart(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = ?", userID)
	return classify("clear cart", err)
}

func readCart(ctx context.Context, q querier, userID int64, forUpdate bool) (models.Cart, error) {
	query := `
		SELECT product_id, quantity FROM cart_items
		WHERE user_id = ? AND quantity > 0
		ORDER BY product_id`
	if forUpdate {
		query += " FOR UPDATE"
	}

	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return models.Cart{}, classify("read cart", err)
	}
	defer rows.Close()

	c := models.NewCart(userID)
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return models.Cart{}, classify("scan cart item", err)
		}
		c.Set(item.ProductID, item.Quantity)
	}
	if err := rows.Err(); err != nil {
		return models.Cart{}, classify("read cart", err)
	}
	return c, nil
}
