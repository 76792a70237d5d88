package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

const productColumns = `
	id, name, description, images, brand, price, old_price, cat_name, cat_id, sub_cat_id,
	sub_cat_name, third_cat_id, third_cat_name, count_in_stock, rating, is_featured, discount,
	product_ram, size, product_weight, created_at, updated_at`

type Repository struct {
	db dbx.Querier
}

func NewRepository(db dbx.Querier) *Repository {
	return &Repository{db: db}
}

func scanProduct(row pgx.Row) (*Product, error) {
	p := &Product{}
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Images, &p.Brand, &p.Price, &p.OldPrice,
		&p.CatName, &p.CatID, &p.SubCatID, &p.SubCatName, &p.ThirdCatID, &p.ThirdCatName,
		&p.CountInStock, &p.Rating, &p.IsFeatured, &p.Discount,
		&p.ProductRAM, &p.Size, &p.ProductWeight, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	for _, s := range []*[]string{&p.Images, &p.ProductRAM, &p.Size, &p.ProductWeight} {
		if *s == nil {
			*s = []string{}
		}
	}
	return p, nil
}

// where renders f as a SQL WHERE clause with positional arguments.
func (f Filter) where() (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	prefix := ""
	switch f.Level {
	case LevelCategory:
		prefix = "cat"
	case LevelSubCategory:
		prefix = "sub_cat"
	case LevelThirdCategory:
		prefix = "third_cat"
	}
	if prefix != "" {
		if f.CatID != 0 {
			add(prefix+"_id = $%d", f.CatID)
		}
		if f.CatName != "" {
			add(prefix+"_name = $%d", f.CatName)
		}
	}
	if f.Rating != nil {
		add("rating = $%d", *f.Rating)
	}
	if f.Featured {
		conds = append(conds, "is_featured")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// List returns one page of matching products, newest first, and the total
// number of matches.
func (r *Repository) List(ctx context.Context, f Filter, limit, offset int) ([]*Product, int, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	where, args := f.where()
	n := len(args)
	args = append(args, limit, offset)

	list, err := r.query(ctx,
		fmt.Sprintf(`SELECT %s FROM products%s ORDER BY id DESC LIMIT $%d OFFSET $%d`, productColumns, where, n+1, n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args[:n]...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	return list, total, nil
}

func (r *Repository) ListAll(ctx context.Context, f Filter) ([]*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	where, args := f.where()
	return r.query(ctx, `SELECT `+productColumns+` FROM products`+where+` ORDER BY id DESC`, args...)
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) ([]*Product, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	list := []*Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return list, nil
}

func (r *Repository) Count(ctx context.Context, f Filter) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	where, args := f.where()
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

func (r *Repository) Create(ctx context.Context, p *Product) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
		INSERT INTO products (
			name, description, images, brand, price, old_price, cat_name, cat_id, sub_cat_id,
			sub_cat_name, third_cat_id, third_cat_name, count_in_stock, rating, is_featured,
			discount, product_ram, size, product_weight
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING ` + productColumns

	created, err := scanProduct(r.db.QueryRow(ctx, query,
		p.Name, p.Description, nonNil(p.Images), p.Brand, p.Price, p.OldPrice, p.CatName, p.CatID, p.SubCatID,
		p.SubCatName, p.ThirdCatID, p.ThirdCatName, p.CountInStock, p.Rating, p.IsFeatured,
		p.Discount, nonNil(p.ProductRAM), nonNil(p.Size), nonNil(p.ProductWeight),
	))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return created, nil
}

// Update builds the SET clause from the supplied fields only.
func (r *Repository) Update(ctx context.Context, id int64, f UpdateFields) (*Product, error) {
	setClauses := []string{}
	args := []any{}
	set := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if f.Name != nil {
		set("name", *f.Name)
	}
	if f.Description != nil {
		set("description", *f.Description)
	}
	if f.Images != nil {
		set("images", nonNil(*f.Images))
	}
	if f.Brand != nil {
		set("brand", *f.Brand)
	}
	if f.Price != nil {
		set("price", *f.Price)
	}
	if f.OldPrice != nil {
		set("old_price", *f.OldPrice)
	}
	if f.CatName != nil {
		set("cat_name", *f.CatName)
	}
	if f.CatID != nil {
		set("cat_id", *f.CatID)
	}
	if f.SubCatID != nil {
		set("sub_cat_id", *f.SubCatID)
	}
	if f.SubCatName != nil {
		set("sub_cat_name", *f.SubCatName)
	}
	if f.ThirdCatID != nil {
		set("third_cat_id", *f.ThirdCatID)
	}
	if f.ThirdCatName != nil {
		set("third_cat_name", *f.ThirdCatName)
	}
	if f.CountInStock != nil {
		set("count_in_stock", *f.CountInStock)
	}
	if f.Rating != nil {
		set("rating", *f.Rating)
	}
	if f.IsFeatured != nil {
		set("is_featured", *f.IsFeatured)
	}
	if f.Discount != nil {
		set("discount", *f.Discount)
	}
	if f.ProductRAM != nil {
		set("product_ram", nonNil(*f.ProductRAM))
	}
	if f.Size != nil {
		set("size", nonNil(*f.Size))
	}
	if f.ProductWeight != nil {
		set("product_weight", nonNil(*f.ProductWeight))
	}

	if len(setClauses) == 0 {
		return nil, ErrNoFields
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE products SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), len(args), productColumns)

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	p, err := scanProduct(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

// RemoveImage drops url from the product's image list.
func (r *Repository) RemoveImage(ctx context.Context, id int64, url string) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	p, err := scanProduct(r.db.QueryRow(ctx, `
		UPDATE products SET images = array_remove(images, $1), updated_at = NOW()
		WHERE id = $2 AND $1 = ANY(images)
		RETURNING `+productColumns, url, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("remove product image: %w", err)
	}
	return p, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
