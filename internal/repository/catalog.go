package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
	"github.com/kennethcatiis/ecommerce-platform/internal/models"
)

// Product reads one catalog row. Prices are stored as DECIMAL(10,2) and
// converted to cents on the way out.
func (s *Store) Product(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	var price decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, price, image, available
		FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Category, &price, &p.Image, &p.Available)
	if err != nil {
		return nil, classify(fmt.Sprintf("product %d", id), err)
	}

	p.Price, err = models.MoneyFromDecimal(price)
	if err != nil {
		return nil, fmt.Errorf("product %d: %w: %w", id, apperr.ErrStorage, err)
	}
	return &p, nil
}

func (s *Store) User(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, role, created_at FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, classify(fmt.Sprintf("user %d", id), err)
	}
	return &u, nil
}
