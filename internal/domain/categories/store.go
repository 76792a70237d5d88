package categories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

var QueryTimeoutDuration = time.Second * 5

const categoryColumns = `id, name, images, parent_cat_name, parent_id, created_at, updated_at`

type Repository struct {
	db dbx.Querier
}

func NewRepository(db dbx.Querier) *Repository {
	return &Repository{db: db}
}

func scanCategory(row pgx.Row) (*Category, error) {
	c := &Category{}
	err := row.Scan(&c.ID, &c.Name, &c.Images, &c.ParentCatName, &c.ParentID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if c.Images == nil {
		c.Images = []string{}
	}
	return c, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Category, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	c, err := scanCategory(r.db.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category by id: %w", err)
	}
	return c, nil
}

// List returns every category ordered by id, which is creation order.
func (r *Repository) List(ctx context.Context) ([]*Category, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return r.query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY id`)
}

func (r *Repository) ListChildren(ctx context.Context, parentID int64) ([]*Category, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return r.query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE parent_id = $1 ORDER BY id`, parentID)
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) ([]*Category, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	list := []*Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return list, nil
}

func (r *Repository) Create(ctx context.Context, c *Category) (*Category, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
		INSERT INTO categories (name, images, parent_cat_name, parent_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + categoryColumns

	created, err := scanCategory(r.db.QueryRow(ctx, query, c.Name, c.Images, c.ParentCatName, c.ParentID))
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

// Update writes only the supplied fields.
func (r *Repository) Update(ctx context.Context, id int64, f UpdateFields) (*Category, error) {
	if f.Empty() {
		return nil, ErrNoFields
	}

	setClauses := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if f.Name != nil {
		add("name", strings.TrimSpace(*f.Name))
	}
	if f.Images != nil {
		images := *f.Images
		if images == nil {
			images = []string{}
		}
		add("images", images)
	}
	if f.ParentCatName != nil {
		add("parent_cat_name", *f.ParentCatName)
	}
	if f.ParentID.Set {
		add("parent_id", f.ParentID.Value)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE categories SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), len(args), categoryColumns)

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	updated, err := scanCategory(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("update category: %w", err)
	}
	return updated, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	result, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *Repository) CountRoots(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM categories WHERE parent_id IS NULL`)
}

func (r *Repository) CountSubcategories(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM categories WHERE parent_id IS NOT NULL`)
}

func (r *Repository) count(ctx context.Context, query string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var n int
	if err := r.db.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}
