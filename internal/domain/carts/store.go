package carts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

var QueryTimeoutDuration = time.Second * 5

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{db: q}
}

// Add puts one unit of productID in the user's cart. The product must exist
// and must not be in the cart yet.
func (r *Repository) Add(ctx context.Context, userID, productID int64) (*CartItem, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	const q = `
WITH p AS (
  SELECT id FROM products WHERE id = $1
)
INSERT INTO cart_items (product_id, user_id, quantity)
SELECT p.id, $2, 1
FROM p
RETURNING id, product_id, user_id, quantity, created_at, updated_at
`
	var it CartItem
	err := r.db.QueryRow(ctx, q, productID, userID).Scan(
		&it.ID, &it.ProductID, &it.UserID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// the product CTE returned nothing
			return nil, ErrProductNotFound
		case dbx.IsUniqueViolation(err):
			return nil, ErrAlreadyInCart
		default:
			return nil, fmt.Errorf("add cart item: %w", err)
		}
	}
	return &it, nil
}

// List returns the user's cart lines, oldest first. Items whose product was
// removed in the meantime are skipped.
func (r *Repository) List(ctx context.Context, userID int64) ([]*CartLine, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, `
SELECT
  ci.id, ci.product_id, ci.user_id, ci.quantity, ci.created_at, ci.updated_at,
  p.name, p.images[1], p.brand, p.price, p.old_price, p.discount, p.rating, p.count_in_stock
FROM cart_items ci
JOIN products p ON p.id = ci.product_id
WHERE ci.user_id = $1
ORDER BY ci.id
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	defer rows.Close()

	lines := []*CartLine{}
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(
			&l.ID, &l.ProductID, &l.UserID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt,
			&l.ProductName, &l.Image, &l.Brand, &l.Price, &l.OldPrice, &l.Discount, &l.Rating, &l.CountInStock,
		); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		l.LineTotal = l.Price * float64(l.Quantity)
		lines = append(lines, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return lines, nil
}

func (r *Repository) UpdateQty(ctx context.Context, userID, itemID int64, qty int) (*CartItem, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var it CartItem
	err := r.db.QueryRow(ctx, `
UPDATE cart_items
SET quantity = $1, updated_at = now()
WHERE id = $2 AND user_id = $3
RETURNING id, product_id, user_id, quantity, created_at, updated_at
`, qty, itemID, userID).Scan(&it.ID, &it.ProductID, &it.UserID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	return &it, nil
}

func (r *Repository) Remove(ctx context.Context, userID, itemID int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, itemID, userID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveProduct drops productID from every cart and reports how many items
// went away.
func (r *Repository) RemoveProduct(ctx context.Context, productID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE product_id = $1`, productID)
	if err != nil {
		return 0, fmt.Errorf("remove product from carts: %w", err)
	}
	return tag.RowsAffected(), nil
}
