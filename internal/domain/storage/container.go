package storage

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain/carts"
	"storefront/internal/domain/categories"
	"storefront/internal/domain/mylist"
	"storefront/internal/domain/products"
	"storefront/internal/domain/users"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Container struct {
	pool       *pgxpool.Pool // needed by WithTx
	Users      users.Store
	Categories categories.Store
	Products   products.Store
	Carts      carts.Store
	MyList     mylist.Store
}

func NewContainer(db *pgxpool.Pool) *Container {
	return &Container{
		pool:       db,
		Users:      users.NewRepository(db),
		Categories: categories.NewRepository(db),
		Products:   products.NewRepository(db),
		Carts:      carts.NewRepository(db),
		MyList:     mylist.NewRepository(db),
	}
}

// Ping checks the database connection. A container without a pool has
// nothing to check.
func (c *Container) Ping(ctx context.Context) error {
	if c.pool == nil {
		return nil
	}
	return c.pool.Ping(ctx)
}

// Tx is a tx-scoped set of repositories for atomic units of work.
type Tx struct {
	Users    users.Store
	Products products.Store
	Carts    carts.Store
	MyList   mylist.Store
}

// WithTx runs fn in a single transaction and commits when it returns nil.
func (c *Container) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	if c.pool == nil {
		return errors.New("storage container has no pool")
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	s := &Tx{
		Users:    users.NewRepository(tx),
		Products: products.NewRepository(tx),
		Carts:    carts.NewRepository(tx),
		MyList:   mylist.NewRepository(tx),
	}

	if err := fn(s); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
