package mylist

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/infra/dbx"
)

var QueryTimeoutDuration = time.Second * 5

const itemColumns = `id, product_id, user_id, product_title, image, rating, price, old_price, brand, discount, created_at, updated_at`

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) Add(ctx context.Context, it *Item) (*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var out Item
	err := r.db.QueryRow(ctx, `
INSERT INTO my_list_items (product_id, user_id, product_title, image, rating, price, old_price, brand, discount)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+itemColumns,
		it.ProductID, it.UserID, it.ProductTitle, it.Image, it.Rating, it.Price, it.OldPrice, it.Brand, it.Discount,
	).Scan(
		&out.ID, &out.ProductID, &out.UserID, &out.ProductTitle, &out.Image, &out.Rating,
		&out.Price, &out.OldPrice, &out.Brand, &out.Discount, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, ErrAlreadyListed
		}
		return nil, fmt.Errorf("add to my list: %w", err)
	}
	return &out, nil
}

// List returns the user's items, newest first. An empty list is not an error.
func (r *Repository) List(ctx context.Context, userID int64) ([]*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM my_list_items WHERE user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list my list: %w", err)
	}
	defer rows.Close()

	items := []*Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(
			&it.ID, &it.ProductID, &it.UserID, &it.ProductTitle, &it.Image, &it.Rating,
			&it.Price, &it.OldPrice, &it.Brand, &it.Discount, &it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan my list item: %w", err)
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return items, nil
}

func (r *Repository) Remove(ctx context.Context, userID, itemID int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM my_list_items WHERE id = $1 AND user_id = $2`, itemID, userID)
	if err != nil {
		return fmt.Errorf("remove my list item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) RemoveProduct(ctx context.Context, productID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM my_list_items WHERE product_id = $1`, productID)
	if err != nil {
		return 0, fmt.Errorf("remove product from my lists: %w", err)
	}
	return tag.RowsAffected(), nil
}
