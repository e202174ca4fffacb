package repository

import (
	"context"
	"database/sql"

	"github.com/kennethcatiis/ecommerce-platform/internal/models"
)

// CommitCheckout is the checkout unit of work. The cart rows are read with
// FOR UPDATE, so a concurrent add or remove for the same user either lands
// before the snapshot or waits until the cart has been cleared.
func (s *Store) CommitCheckout(ctx context.Context, userID int64, build func(context.Context, models.Cart) (*models.Transaction, error)) (*models.Transaction, error) {
	var out *models.Transaction
	err := s.inTx(ctx, sql.LevelSerializable, func(tx *sql.Tx) error {
		c, err := readCart(ctx, tx, userID, true)
		if err != nil {
			return err
		}

		t, err := build(ctx, c)
		if err != nil {
			return err
		}
		if err := insertTransaction(ctx, tx, t); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = ?", userID); err != nil {
			return classify("clear cart", err)
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
