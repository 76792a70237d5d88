package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"storefront/internal/domain/carts"
	"storefront/internal/domain/mylist"
	"storefront/internal/domain/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCarts struct {
	mu       sync.Mutex
	nextID   int64
	items    map[int64]*carts.CartItem
	products *fakeProducts
}

func (f *fakeCarts) Add(ctx context.Context, userID, productID int64) (*carts.CartItem, error) {
	if _, err := f.products.GetByID(ctx, productID); err != nil {
		return nil, carts.ErrProductNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.UserID == userID && it.ProductID == productID {
			return nil, carts.ErrAlreadyInCart
		}
	}
	f.nextID++
	it := &carts.CartItem{ID: f.nextID, UserID: userID, ProductID: productID, Quantity: 1}
	f.items[it.ID] = it
	return it, nil
}

func (f *fakeCarts) List(_ context.Context, userID int64) ([]*carts.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := []*carts.CartLine{}
	for id := int64(1); id <= f.nextID; id++ {
		if it, ok := f.items[id]; ok && it.UserID == userID {
			lines = append(lines, &carts.CartLine{CartItem: *it})
		}
	}
	return lines, nil
}

func (f *fakeCarts) UpdateQty(_ context.Context, userID, itemID int64, qty int) (*carts.CartItem, error) {
	if qty < 1 {
		return nil, carts.ErrInvalidQuantity
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[itemID]
	if !ok || it.UserID != userID {
		return nil, carts.ErrNotFound
	}
	it.Quantity = qty
	return it, nil
}

func (f *fakeCarts) Remove(_ context.Context, userID, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[itemID]
	if !ok || it.UserID != userID {
		return carts.ErrNotFound
	}
	delete(f.items, itemID)
	return nil
}

func (f *fakeCarts) RemoveProduct(context.Context, int64) (int64, error) { return 0, nil }

type fakeMyList struct {
	mu    sync.Mutex
	items []*mylist.Item
}

func (f *fakeMyList) Add(_ context.Context, it *mylist.Item) (*mylist.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.items {
		if o.UserID == it.UserID && o.ProductID == it.ProductID {
			return nil, mylist.ErrAlreadyListed
		}
	}
	cp := *it
	cp.ID = int64(len(f.items) + 1)
	f.items = append(f.items, &cp)
	return &cp, nil
}

func (f *fakeMyList) List(_ context.Context, userID int64) ([]*mylist.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*mylist.Item{}
	for _, it := range f.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeMyList) Remove(_ context.Context, userID, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, it := range f.items {
		if it.ID == itemID && it.UserID == userID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return mylist.ErrNotFound
}

func (f *fakeMyList) RemoveProduct(context.Context, int64) (int64, error) { return 0, nil }

func TestCartHandlers(t *testing.T) {
	app := newTestApplication(t, config{})
	app.store.Carts = &fakeCarts{items: map[int64]*carts.CartItem{}, products: app.products}
	mux := app.mount()
	seedProducts(app, 2)

	_, token := app.seedUser(t, "ada@example.com", users.RoleUser)
	_, otherToken := app.seedUser(t, "bob@example.com", users.RoleUser)

	add := func(productID int64) *httptest.ResponseRecorder {
		return executeRequest(withToken(newJSONRequest(t, http.MethodPost, "/v1/cart", map[string]int64{"product_id": productID}), token), mux)
	}

	assert.Equal(t, http.StatusUnauthorized, executeRequest(httptest.NewRequest(http.MethodGet, "/v1/cart", nil), mux).Code)

	rr := add(1)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var item carts.CartItem
	decodeData(t, rr, &item)
	assert.Equal(t, 1, item.Quantity)

	assert.Equal(t, http.StatusConflict, add(1).Code)
	assert.Equal(t, http.StatusNotFound, add(99).Code)

	path := fmt.Sprintf("/v1/cart/%d", item.ID)

	rr = executeRequest(withToken(newJSONRequest(t, http.MethodPut, path, map[string]int{"quantity": 4}), token), mux)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeData(t, rr, &item)
	assert.Equal(t, 4, item.Quantity)

	rr = executeRequest(withToken(newJSONRequest(t, http.MethodPut, path, map[string]int{"quantity": 0}), token), mux)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// someone else's item is invisible
	rr = executeRequest(withToken(newJSONRequest(t, http.MethodPut, path, map[string]int{"quantity": 2}), otherToken), mux)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = executeRequest(withToken(httptest.NewRequest(http.MethodGet, "/v1/cart", nil), token), mux)
	require.Equal(t, http.StatusOK, rr.Code)
	var lines []*carts.CartLine
	decodeData(t, rr, &lines)
	assert.Len(t, lines, 1)

	assert.Equal(t, http.StatusNoContent, executeRequest(withToken(httptest.NewRequest(http.MethodDelete, path, nil), token), mux).Code)
	assert.Equal(t, http.StatusNotFound, executeRequest(withToken(httptest.NewRequest(http.MethodDelete, path, nil), token), mux).Code)
}

func TestMyListHandlers(t *testing.T) {
	app := newTestApplication(t, config{})
	app.store.MyList = &fakeMyList{}
	mux := app.mount()
	seedProducts(app, 2)
	app.products.rows[0].Images = []string{"https://media.test/p1.png", "https://media.test/p1b.png"}

	_, token := app.seedUser(t, "ada@example.com", users.RoleUser)

	add := func(productID int64) *httptest.ResponseRecorder {
		return executeRequest(withToken(newJSONRequest(t, http.MethodPost, "/v1/my-list", map[string]int64{"product_id": productID}), token), mux)
	}

	rr := add(1)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var it mylist.Item
	decodeData(t, rr, &it)
	assert.Equal(t, "product-1", it.ProductTitle)
	assert.Equal(t, "https://media.test/p1.png", it.Image)
	assert.Equal(t, 10.0, it.Price)

	assert.Equal(t, http.StatusConflict, add(1).Code)
	assert.Equal(t, http.StatusNotFound, add(42).Code)

	rr = executeRequest(withToken(httptest.NewRequest(http.MethodGet, "/v1/my-list", nil), token), mux)
	require.Equal(t, http.StatusOK, rr.Code)
	var items []*mylist.Item
	decodeData(t, rr, &items)
	assert.Len(t, items, 1)

	path := fmt.Sprintf("/v1/my-list/%d", it.ID)
	assert.Equal(t, http.StatusNoContent, executeRequest(withToken(httptest.NewRequest(http.MethodDelete, path, nil), token), mux).Code)
	assert.Equal(t, http.StatusNotFound, executeRequest(withToken(httptest.NewRequest(http.MethodDelete, path, nil), token), mux).Code)
}
