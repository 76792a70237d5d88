package categories_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain/categories"
	"storefront/internal/domain/categories/categoriestest"
	"storefront/internal/infra/dbx"
	"storefront/internal/media/mediatest"
	"storefront/internal/retry"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*categories.Service, *categoriestest.Store, *mediatest.Store) {
	t.Helper()
	store := categoriestest.New()
	media := mediatest.New()
	svc := categories.NewService(store, media, zap.NewNop().Sugar()).
		WithRetry(retry.Config{Attempts: 2, Delay: time.Millisecond, Retryable: dbx.IsTransient})
	return svc, store, media
}

// seedThreeLevels stores A(1) -> B(2) -> C(3) plus an unrelated root D(4).
func seedThreeLevels(store *categoriestest.Store) {
	store.Seed(
		cat(1, nil, "https://media.test/image/upload/v1/categories/a1.png", "https://media.test/image/upload/v1/categories/a2.png"),
		cat(2, ptr(1), "https://media.test/image/upload/v1/categories/b.png"),
		cat(3, ptr(2), "https://media.test/image/upload/v1/categories/c.png"),
		cat(4, nil, "https://media.test/image/upload/v1/categories/d.png"),
	)
}

func TestDeleteSubtreeRemovesAllLevels(t *testing.T) {
	svc, store, media := newService(t)
	seedThreeLevels(store)

	err := svc.DeleteSubtree(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, []int64{4}, store.IDs())
	assert.ElementsMatch(t, []string{
		"https://media.test/image/upload/v1/categories/a1.png",
		"https://media.test/image/upload/v1/categories/a2.png",
		"https://media.test/image/upload/v1/categories/b.png",
		"https://media.test/image/upload/v1/categories/c.png",
	}, media.Destroyed())
}

func TestDeleteSubtreeMissingIDIsNoop(t *testing.T) {
	svc, store, media := newService(t)
	seedThreeLevels(store)

	require.NoError(t, svc.DeleteSubtree(context.Background(), 42))

	assert.Equal(t, []int64{1, 2, 3, 4}, store.IDs())
	assert.Empty(t, media.Destroyed())
}

func TestDeleteSubtreeTwice(t *testing.T) {
	svc, store, _ := newService(t)
	seedThreeLevels(store)

	require.NoError(t, svc.DeleteSubtree(context.Background(), 2))
	require.NoError(t, svc.DeleteSubtree(context.Background(), 2))

	assert.Equal(t, []int64{1, 4}, store.IDs())
}

func TestDeleteSubtreeSurvivesMediaFailure(t *testing.T) {
	svc, store, media := newService(t)
	seedThreeLevels(store)
	media.FailDestroy["https://media.test/image/upload/v1/categories/b.png"] = errors.New("cdn down")

	err := svc.DeleteSubtree(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, []int64{4}, store.IDs())
	assert.Len(t, media.Destroyed(), 4)
}

func TestDeleteSubtreeRetriesTransientErrors(t *testing.T) {
	svc, store, _ := newService(t)
	seedThreeLevels(store)

	failed := false
	store.Fail = func(op string, id int64) error {
		if op == categoriestest.OpDelete && id == 2 && !failed {
			failed = true
			return &pgconn.PgError{Code: dbx.CodeSerializationFailure}
		}
		return nil
	}

	err := svc.DeleteSubtree(context.Background(), 1)

	require.NoError(t, err)
	assert.True(t, failed)
	assert.Equal(t, []int64{4}, store.IDs())
	assert.Equal(t, 4, store.Calls(categoriestest.OpDelete))
}

func TestDeleteSubtreeReportsFailingNode(t *testing.T) {
	svc, store, _ := newService(t)
	seedThreeLevels(store)

	boom := &pgconn.PgError{Code: dbx.CodeSerializationFailure}
	store.Fail = func(op string, id int64) error {
		if op == categoriestest.OpDelete && id == 2 {
			return boom
		}
		return nil
	}

	err := svc.DeleteSubtree(context.Background(), 1)

	var subtreeErr *categories.SubtreeError
	require.ErrorAs(t, err, &subtreeErr)
	assert.Equal(t, int64(2), subtreeErr.NodeID)
	assert.Equal(t, "delete", subtreeErr.Op)
	assert.ErrorIs(t, err, boom)
	// grandchild went first; the failing node and its ancestor remain
	assert.Equal(t, []int64{1, 2, 4}, store.IDs())
	assert.Equal(t, 3, store.Calls(categoriestest.OpDelete))
}

func TestDeleteSubtreeDoesNotRetryPermanentErrors(t *testing.T) {
	svc, store, _ := newService(t)
	seedThreeLevels(store)

	boom := errors.New("permission denied")
	store.Fail = func(op string, id int64) error {
		if op == categoriestest.OpChildren && id == 1 {
			return boom
		}
		return nil
	}

	err := svc.DeleteSubtree(context.Background(), 1)

	var subtreeErr *categories.SubtreeError
	require.ErrorAs(t, err, &subtreeErr)
	assert.Equal(t, int64(1), subtreeErr.NodeID)
	assert.Equal(t, 1, store.Calls(categoriestest.OpChildren))
	assert.Equal(t, []int64{1, 2, 3, 4}, store.IDs())
}

func TestDeleteSubtreeWideTree(t *testing.T) {
	svc, store, _ := newService(t)
	store.Seed(cat(1, nil))
	next := int64(2)
	for i := 0; i < 20; i++ {
		child := next
		store.Seed(cat(child, ptr(1)))
		next++
		for j := 0; j < 5; j++ {
			store.Seed(cat(next, ptr(child)))
			next++
		}
	}
	store.Seed(cat(next, nil))

	require.NoError(t, svc.DeleteSubtree(context.Background(), 1))

	assert.Equal(t, []int64{next}, store.IDs())
}

func TestCreateValidates(t *testing.T) {
	svc, store, _ := newService(t)

	_, err := svc.Create(context.Background(), categories.CreateInput{Name: "Shoes", Images: []string{" ", ""}})
	var vErr *categories.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "images", vErr.Field)
	assert.ErrorIs(t, err, categories.ErrImagesRequired)

	_, err = svc.Create(context.Background(), categories.CreateInput{Name: "  ", Images: []string{"x.png"}})
	assert.ErrorIs(t, err, categories.ErrNameRequired)

	assert.Empty(t, store.IDs())
}

func TestCreateRequiresExistingParent(t *testing.T) {
	svc, store, _ := newService(t)

	_, err := svc.Create(context.Background(), categories.CreateInput{
		Name: "Sneakers", Images: []string{"https://media.test/s.png"}, ParentID: ptr(9),
	})

	var nfErr *categories.NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, int64(9), nfErr.ID)
	assert.ErrorIs(t, err, categories.ErrParentNotFound)
	assert.Empty(t, store.IDs())
}

func TestCreateUnderParent(t *testing.T) {
	svc, store, _ := newService(t)
	store.Seed(cat(1, nil, "a.png"))
	parentName := "cat"

	created, err := svc.Create(context.Background(), categories.CreateInput{
		Name: " Sneakers ", Images: []string{"https://media.test/s.png"}, ParentID: ptr(1), ParentCatName: &parentName,
	})

	require.NoError(t, err)
	assert.Equal(t, "Sneakers", created.Name)
	require.NotNil(t, created.ParentID)
	assert.Equal(t, int64(1), *created.ParentID)

	n, err := svc.CountSubcategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpdateRejectsSelfParent(t *testing.T) {
	svc, store, _ := newService(t)
	store.Seed(cat(1, nil))

	_, err := svc.Update(context.Background(), 1, categories.UpdateFields{ParentID: categories.SetParent(1)})

	var vErr *categories.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.ErrorIs(t, err, categories.ErrSelfParent)
	assert.Equal(t, 0, store.Calls(categoriestest.OpGet))
}

func TestUpdateRejectsDescendantAsParent(t *testing.T) {
	svc, store, _ := newService(t)
	seedThreeLevels(store)

	_, err := svc.Update(context.Background(), 1, categories.UpdateFields{ParentID: categories.SetParent(3)})

	assert.ErrorIs(t, err, categories.ErrCycle)
	c, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, c.ParentID)
}

func TestUpdateUnknownParent(t *testing.T) {
	svc, store, _ := newService(t)
	seedThreeLevels(store)

	_, err := svc.Update(context.Background(), 2, categories.UpdateFields{ParentID: categories.SetParent(77)})

	assert.ErrorIs(t, err, categories.ErrParentNotFound)
}

func TestUpdateIsPartial(t *testing.T) {
	svc, store, _ := newService(t)
	seedThreeLevels(store)
	name := "Footwear"

	updated, err := svc.Update(context.Background(), 2, categories.UpdateFields{Name: &name})

	require.NoError(t, err)
	assert.Equal(t, "Footwear", updated.Name)
	assert.Equal(t, []string{"https://media.test/image/upload/v1/categories/b.png"}, updated.Images)
	require.NotNil(t, updated.ParentID)
	assert.Equal(t, int64(1), *updated.ParentID)
}

func TestUpdateDestroysReplacedImages(t *testing.T) {
	svc, store, media := newService(t)
	store.Seed(cat(1, nil, "https://media.test/old.png", "https://media.test/kept.png"))
	images := []string{"https://media.test/kept.png", " ", "https://media.test/new.png"}

	updated, err := svc.Update(context.Background(), 1, categories.UpdateFields{Images: &images})

	require.NoError(t, err)
	assert.Equal(t, []string{"https://media.test/kept.png", "https://media.test/new.png"}, updated.Images)
	assert.Equal(t, []string{"https://media.test/old.png"}, media.Destroyed())
}

func TestUpdateRejectsBadImages(t *testing.T) {
	svc, store, media := newService(t)
	store.Seed(cat(1, nil, "https://media.test/old.png"))

	tests := []struct {
		name   string
		images []string
		want   error
	}{
		{"empty list", []string{}, categories.ErrImagesRequired},
		{"only blanks", []string{"", "  "}, categories.ErrImagesRequired},
		{"not a url", []string{"", "not a url"}, categories.ErrImageURL},
		{"relative path", []string{"/img/a.png"}, categories.ErrImageURL},
		{"other scheme", []string{"ftp://media.test/a.png"}, categories.ErrImageURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			images := tt.images
			_, err := svc.Update(context.Background(), 1, categories.UpdateFields{Images: &images})

			var vErr *categories.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, "images", vErr.Field)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	c, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://media.test/old.png"}, c.Images)
	assert.Empty(t, media.Destroyed())
}

func TestUpdateMovesToRootAndElsewhere(t *testing.T) {
	svc, store, _ := newService(t)
	seedThreeLevels(store)

	moved, err := svc.Update(context.Background(), 3, categories.UpdateFields{ParentID: categories.SetParent(4)})
	require.NoError(t, err)
	assert.Equal(t, int64(4), *moved.ParentID)

	root, err := svc.Update(context.Background(), 2, categories.UpdateFields{ParentID: categories.ClearParent()})
	require.NoError(t, err)
	assert.True(t, root.IsRoot())

	n, err := svc.CountRoots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUpdateErrors(t *testing.T) {
	svc, store, _ := newService(t)
	seedThreeLevels(store)
	blank := " "

	_, err := svc.Update(context.Background(), 1, categories.UpdateFields{})
	assert.ErrorIs(t, err, categories.ErrNoFields)

	_, err = svc.Update(context.Background(), 1, categories.UpdateFields{Name: &blank})
	assert.ErrorIs(t, err, categories.ErrNameRequired)

	name := "x"
	_, err = svc.Update(context.Background(), 99, categories.UpdateFields{Name: &name})
	var nfErr *categories.NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, int64(99), nfErr.ID)
}

func TestTreeFromStore(t *testing.T) {
	svc, store, _ := newService(t)
	seedThreeLevels(store)
	store.Seed(cat(5, ptr(404)))

	roots, err := svc.Tree(context.Background())

	require.NoError(t, err)
	require.Len(t, roots, 3)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, categories.Flatten(roots))
}

func TestUpdateFieldsParentIDJSON(t *testing.T) {
	tests := []struct {
		body    string
		set     bool
		value   *int64
		invalid bool
	}{
		{body: `{"name":"a"}`},
		{body: `{"parent_id":null}`, set: true},
		{body: `{"parent_id":""}`, set: true},
		{body: `{"parent_id":12}`, set: true, value: ptr(12)},
		{body: `{"parent_id":"12"}`, set: true, value: ptr(12)},
		{body: `{"parent_id":"abc"}`, invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var f categories.UpdateFields
			err := json.Unmarshal([]byte(tt.body), &f)
			if tt.invalid {
				assert.ErrorIs(t, err, categories.ErrInvalidParentID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.set, f.ParentID.Set)
			assert.Equal(t, tt.value, f.ParentID.Value)
		})
	}
}
