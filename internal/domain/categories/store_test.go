package categories_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"storefront/internal/domain/categories"
	"storefront/internal/infra/dbx/dbxtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryUpdateBuildsSetClause(t *testing.T) {
	name := "  Phones "
	images := []string{"https://media.test/a.png"}
	parent := "Electronics"
	var noImages []string

	tests := []struct {
		name    string
		fields  categories.UpdateFields
		clauses []string
		args    []any
	}{
		{
			name:    "name only",
			fields:  categories.UpdateFields{Name: &name},
			clauses: []string{"name = $1"},
			args:    []any{"Phones", int64(7)},
		},
		{
			name:    "images and parent",
			fields:  categories.UpdateFields{Images: &images, ParentID: categories.SetParent(3)},
			clauses: []string{"images = $1", "parent_id = $2"},
			args:    []any{images, ptr(3), int64(7)},
		},
		{
			name: "every field",
			fields: categories.UpdateFields{
				Name: &name, Images: &images, ParentCatName: &parent, ParentID: categories.ClearParent(),
			},
			clauses: []string{"name = $1", "images = $2", "parent_cat_name = $3", "parent_id = $4"},
			args:    []any{"Phones", images, "Electronics", (*int64)(nil), int64(7)},
		},
		{
			name:    "nil image list is written as empty",
			fields:  categories.UpdateFields{Images: &noImages},
			clauses: []string{"images = $1"},
			args:    []any{[]string{}, int64(7)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &dbxtest.Recorder{}
			_, err := categories.NewRepository(rec).Update(context.Background(), 7, tt.fields)
			assert.ErrorIs(t, err, categories.ErrCategoryNotFound)

			stmt := rec.Last()
			assert.Equal(t, tt.args, stmt.Args)
			assert.Equal(t, dbxtest.Sequence(len(tt.args)), dbxtest.Placeholders(stmt.SQL))
			assert.Contains(t, stmt.SQL, "SET "+strings.Join(tt.clauses, ", ")+", updated_at = NOW()")
			assert.Contains(t, stmt.SQL, "WHERE id = $"+strconv.Itoa(len(tt.args)))
		})
	}
}

func TestRepositoryUpdateWithoutFields(t *testing.T) {
	rec := &dbxtest.Recorder{}
	_, err := categories.NewRepository(rec).Update(context.Background(), 7, categories.UpdateFields{})
	assert.ErrorIs(t, err, categories.ErrNoFields)
	assert.Empty(t, rec.Statements())
}

func TestRepositoryUpdateWrapsDriverErrors(t *testing.T) {
	boom := errors.New("connection reset")
	rec := &dbxtest.Recorder{Err: boom}
	name := "Phones"

	_, err := categories.NewRepository(rec).Update(context.Background(), 7, categories.UpdateFields{Name: &name})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, categories.ErrCategoryNotFound)
}
