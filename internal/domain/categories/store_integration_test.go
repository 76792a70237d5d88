//go:build integration

package categories_test

import (
	"context"
	"os"
	"testing"

	"storefront/internal/db"
	"storefront/internal/domain/categories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against TEST_DB_ADDR inside a transaction that is always rolled back.
func TestRepositoryAgainstPostgres(t *testing.T) {
	addr := os.Getenv("TEST_DB_ADDR")
	if addr == "" {
		t.Skip("TEST_DB_ADDR not set")
	}

	ctx := context.Background()
	pool, err := db.New(addr, 2, "1m")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool))

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(ctx) })

	repo := categories.NewRepository(tx)

	root, err := repo.Create(ctx, &categories.Category{Name: "Electronics", Images: []string{"https://media.test/e.png"}})
	require.NoError(t, err)
	child, err := repo.Create(ctx, &categories.Category{
		Name: "Phones", Images: []string{"https://media.test/p.png"}, ParentID: &root.ID,
	})
	require.NoError(t, err)

	name := "Mobile Phones"
	images := []string{"https://media.test/p1.png", "https://media.test/p2.png"}
	parent := "Electronics"
	updated, err := repo.Update(ctx, child.ID, categories.UpdateFields{
		Name: &name, Images: &images, ParentCatName: &parent,
	})
	require.NoError(t, err)
	assert.Equal(t, "Mobile Phones", updated.Name)
	assert.Equal(t, images, updated.Images)
	require.NotNil(t, updated.ParentCatName)
	assert.Equal(t, "Electronics", *updated.ParentCatName)
	assert.Equal(t, root.ID, *updated.ParentID)

	detached, err := repo.Update(ctx, child.ID, categories.UpdateFields{ParentID: categories.ClearParent()})
	require.NoError(t, err)
	assert.Nil(t, detached.ParentID)
	assert.Equal(t, images, detached.Images)

	_, err = repo.Update(ctx, child.ID+1000, categories.UpdateFields{Name: &name})
	assert.ErrorIs(t, err, categories.ErrCategoryNotFound)

	require.NoError(t, repo.Delete(ctx, child.ID))
	children, err := repo.ListChildren(ctx, root.ID)
	require.NoError(t, err)
	assert.Empty(t, children)
}
