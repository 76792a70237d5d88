package main

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/domain/categories"
	"storefront/internal/domain/categories/categoriestest"
	"storefront/internal/domain/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func seedCategory(id int64, parent *int64, images ...string) *categories.Category {
	return &categories.Category{ID: id, Name: fmt.Sprintf("cat-%d", id), ParentID: parent, Images: images}
}

func adminApp(t *testing.T) (*testApp, http.Handler, string) {
	t.Helper()
	app := newTestApplication(t, config{})
	_, token := app.seedUser(t, "admin@example.com", users.RoleAdmin)
	return app, app.mount(), token
}

func TestGetCategoryTree(t *testing.T) {
	app, mux, _ := adminApp(t)
	app.categories.Seed(
		seedCategory(1, nil),
		seedCategory(2, ptr[int64](1)),
		seedCategory(3, ptr[int64](2)),
		seedCategory(4, nil),
	)

	rr := executeRequest(httptest.NewRequest(http.MethodGet, "/v1/categories", nil), mux)
	require.Equal(t, http.StatusOK, rr.Code)

	var tree []*categories.Node
	decodeData(t, rr, &tree)
	require.Len(t, tree, 2)
	assert.Equal(t, int64(1), tree[0].ID)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, int64(2), tree[0].Children[0].ID)
	require.Len(t, tree[0].Children[0].Children, 1)
	assert.Equal(t, int64(3), tree[0].Children[0].Children[0].ID)
	assert.Equal(t, int64(4), tree[1].ID)
	assert.Empty(t, tree[1].Children)
}

func TestGetCategory(t *testing.T) {
	app, mux, _ := adminApp(t)
	app.categories.Seed(seedCategory(7, nil, "https://media.test/x.png"))

	rr := executeRequest(httptest.NewRequest(http.MethodGet, "/v1/categories/7", nil), mux)
	require.Equal(t, http.StatusOK, rr.Code)
	var c categories.Category
	decodeData(t, rr, &c)
	assert.Equal(t, "cat-7", c.Name)

	rr = executeRequest(httptest.NewRequest(http.MethodGet, "/v1/categories/99", nil), mux)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = executeRequest(httptest.NewRequest(http.MethodGet, "/v1/categories/abc", nil), mux)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCountCategories(t *testing.T) {
	app, mux, _ := adminApp(t)
	app.categories.Seed(seedCategory(1, nil), seedCategory(2, ptr[int64](1)), seedCategory(3, ptr[int64](1)))

	var n countResponse
	rr := executeRequest(httptest.NewRequest(http.MethodGet, "/v1/categories/count", nil), mux)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeData(t, rr, &n)
	assert.Equal(t, 1, n.Count)

	rr = executeRequest(httptest.NewRequest(http.MethodGet, "/v1/categories/count/subcategories", nil), mux)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeData(t, rr, &n)
	assert.Equal(t, 2, n.Count)
}

func TestCreateCategoryHandler(t *testing.T) {
	app, mux, token := adminApp(t)
	app.categories.Seed(seedCategory(1, nil))

	tests := []struct {
		name string
		body any
		want int
	}{
		{"root", map[string]any{"name": "Shoes", "images": []string{"https://media.test/a.png"}}, http.StatusCreated},
		{"child", map[string]any{"name": "Boots", "images": []string{"https://media.test/b.png"}, "parent_id": 1, "parent_cat_name": "cat-1"}, http.StatusCreated},
		{"missing parent", map[string]any{"name": "Boots", "images": []string{"https://media.test/b.png"}, "parent_id": 42}, http.StatusNotFound},
		{"no images", map[string]any{"name": "Shoes", "images": []string{}}, http.StatusBadRequest},
		{"image not a url", map[string]any{"name": "Shoes", "images": []string{"nope"}}, http.StatusBadRequest},
		{"no name", map[string]any{"images": []string{"https://media.test/a.png"}}, http.StatusBadRequest},
		{"unknown field", map[string]any{"name": "Shoes", "images": []string{"https://media.test/a.png"}, "colour": "red"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := executeRequest(withToken(newJSONRequest(t, http.MethodPost, "/v1/categories", tt.body), token), mux)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			if tt.want >= 400 {
				e := decodeError(t, rr)
				assert.False(t, e.Success)
				assert.Equal(t, tt.want, e.Status)
			}
		})
	}
}

func TestCreateCategoryRequiresToken(t *testing.T) {
	_, mux, _ := adminApp(t)
	body := map[string]any{"name": "Shoes", "images": []string{"https://media.test/a.png"}}
	rr := executeRequest(newJSONRequest(t, http.MethodPost, "/v1/categories", body), mux)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUpdateCategoryHandler(t *testing.T) {
	app, mux, token := adminApp(t)
	app.categories.Seed(
		seedCategory(1, nil),
		seedCategory(2, ptr[int64](1), "https://media.test/old.png"),
		seedCategory(3, ptr[int64](2)),
	)

	put := func(id int64, body any) *httptest.ResponseRecorder {
		return executeRequest(withToken(newJSONRequest(t, http.MethodPut, fmt.Sprintf("/v1/categories/%d", id), body), token), mux)
	}

	t.Run("self parent", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, put(2, map[string]any{"parent_id": 2}).Code)
	})

	t.Run("descendant as parent", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, put(1, map[string]any{"parent_id": 3}).Code)
	})

	t.Run("empty body", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, put(2, map[string]any{}).Code)
	})

	t.Run("invalid images", func(t *testing.T) {
		for _, images := range [][]string{{}, {"", "not a url"}, {"https://media.test/ok.png", "nope"}} {
			rr := put(2, map[string]any{"images": images})
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		}
		stored, err := app.categories.GetByID(t.Context(), 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"https://media.test/old.png"}, stored.Images)
		assert.Empty(t, app.media.Destroyed())
	})

	t.Run("unknown category", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, put(99, map[string]any{"name": "x"}).Code)
	})

	t.Run("rename and replace images", func(t *testing.T) {
		rr := put(2, map[string]any{"name": "Sneakers", "images": []string{"https://media.test/new.png"}})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var c categories.Category
		decodeData(t, rr, &c)
		assert.Equal(t, "Sneakers", c.Name)
		assert.Equal(t, []string{"https://media.test/new.png"}, c.Images)
		require.NotNil(t, c.ParentID)
		assert.Equal(t, int64(1), *c.ParentID)
		assert.Contains(t, app.media.Destroyed(), "https://media.test/old.png")
	})

	t.Run("move to root", func(t *testing.T) {
		rr := put(3, map[string]any{"parent_id": nil})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var c categories.Category
		decodeData(t, rr, &c)
		assert.Nil(t, c.ParentID)
	})
}

func TestDeleteCategoryHandler(t *testing.T) {
	app, mux, token := adminApp(t)
	app.categories.Seed(
		seedCategory(1, nil, "https://media.test/1.png"),
		seedCategory(2, ptr[int64](1), "https://media.test/2.png"),
		seedCategory(3, ptr[int64](2), "https://media.test/3.png"),
		seedCategory(4, nil),
	)

	del := func(id int64) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/v1/categories/%d", id), nil)
		return executeRequest(withToken(req, token), mux)
	}

	rr := del(1)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []int64{4}, app.categories.IDs())
	assert.ElementsMatch(t, []string{
		"https://media.test/1.png", "https://media.test/2.png", "https://media.test/3.png",
	}, app.media.Destroyed())

	// already gone
	assert.Equal(t, http.StatusOK, del(1).Code)
}

func TestDeleteCategoryOutlivesRequestTimeouts(t *testing.T) {
	app := newTestApplication(t, config{requestTimeout: 20 * time.Millisecond})
	_, token := app.seedUser(t, "admin@example.com", users.RoleAdmin)
	app.categories.Seed(seedCategory(1, nil), seedCategory(2, ptr[int64](1)))
	app.categories.Fail = func(op string, _ int64) error {
		if op == categoriestest.OpDelete {
			time.Sleep(60 * time.Millisecond)
		}
		return nil
	}

	srv := httptest.NewUnstartedServer(app.mount())
	srv.Config.WriteTimeout = 50 * time.Millisecond
	srv.Start()
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/categories/1", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(withToken(req, token))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, app.categories.IDs())
}

func TestDeleteCategoryHandlerReportsFailingNode(t *testing.T) {
	app, mux, token := adminApp(t)
	app.categories.Seed(seedCategory(1, nil), seedCategory(2, ptr[int64](1)))
	app.categories.Fail = func(op string, id int64) error {
		if op == categoriestest.OpDelete && id == 2 {
			return errors.New("disk full")
		}
		return nil
	}

	req := httptest.NewRequest(http.MethodDelete, "/v1/categories/1", nil)
	rr := executeRequest(withToken(req, token), mux)
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	e := decodeError(t, rr)
	assert.Contains(t, e.Message, "category 2")
	assert.Equal(t, []int64{1, 2}, app.categories.IDs())
}

func multipartBody(t *testing.T, field string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestUploadCategoryImages(t *testing.T) {
	app, mux, token := adminApp(t)

	body, ct := multipartBody(t, "images", map[string][]byte{"a.png": pngHeader})
	req := httptest.NewRequest(http.MethodPost, "/v1/categories/upload-images", body)
	req.Header.Set("Content-Type", ct)
	rr := executeRequest(withToken(req, token), mux)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var out map[string][]string
	decodeData(t, rr, &out)
	require.Len(t, out["images"], 1)
	assert.Equal(t, app.media.Uploaded(), out["images"])
	assert.Contains(t, out["images"][0], "/categories/")
}

func TestUploadCategoryImagesRejectsNonImages(t *testing.T) {
	app, mux, token := adminApp(t)

	body, ct := multipartBody(t, "images", map[string][]byte{"notes.txt": []byte("just some text")})
	req := httptest.NewRequest(http.MethodPost, "/v1/categories/upload-images", body)
	req.Header.Set("Content-Type", ct)
	rr := executeRequest(withToken(req, token), mux)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, app.media.Uploaded())
}

func TestUploadImagesRejectsMalformedForms(t *testing.T) {
	app, mux, token := adminApp(t)

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
	}{
		{"json body", http.MethodPost, "/v1/categories/upload-images", "application/json", `{"images":["x"]}`},
		{"missing boundary", http.MethodPost, "/v1/categories/upload-images", "multipart/form-data", "--x\r\n"},
		{"truncated part", http.MethodPost, "/v1/products/upload-images", "multipart/form-data; boundary=xyz", "--xyz\r\nContent-Disposition: form-data"},
		{"no content type", http.MethodPut, "/v1/users/avatar", "", "avatar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rr := executeRequest(withToken(req, token), mux)

			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, errBadForm.Error(), decodeError(t, rr).Message)
		})
	}
	assert.Empty(t, app.media.Uploaded())
}

func TestUploadCategoryImagesUpstreamFailure(t *testing.T) {
	app, mux, token := adminApp(t)
	app.media.FailUpload = errors.New("cloud down")

	body, ct := multipartBody(t, "images", map[string][]byte{"a.png": pngHeader})
	req := httptest.NewRequest(http.MethodPost, "/v1/categories/upload-images", body)
	req.Header.Set("Content-Type", ct)
	rr := executeRequest(withToken(req, token), mux)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
}
