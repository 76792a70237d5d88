package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/domain/products"
	"storefront/internal/domain/storage"
	"storefront/internal/params"
)

type CreateProductPayload struct {
	Name          string   `json:"name" validate:"required,max=200"`
	Description   string   `json:"description" validate:"required"`
	Images        []string `json:"images" validate:"required,min=1,dive,required,url"`
	Brand         string   `json:"brand" validate:"max=100"`
	Price         float64  `json:"price" validate:"gte=0"`
	OldPrice      float64  `json:"old_price" validate:"gte=0"`
	CatName       string   `json:"cat_name"`
	CatID         *int64   `json:"cat_id" validate:"omitempty,gt=0"`
	SubCatID      *int64   `json:"sub_cat_id" validate:"omitempty,gt=0"`
	SubCatName    string   `json:"sub_cat_name"`
	ThirdCatID    *int64   `json:"third_cat_id" validate:"omitempty,gt=0"`
	ThirdCatName  string   `json:"third_cat_name"`
	CountInStock  *int     `json:"count_in_stock" validate:"required,gte=0"`
	Rating        float64  `json:"rating" validate:"gte=0,lte=5"`
	IsFeatured    bool     `json:"is_featured"`
	Discount      *int     `json:"discount" validate:"required,gte=0,lte=100"`
	ProductRAM    []string `json:"product_ram"`
	Size          []string `json:"size"`
	ProductWeight []string `json:"product_weight"`
}

// ProductPage is a page of products with its pagination metadata.
type ProductPage struct {
	Products   []*products.Product `json:"products"`
	Pagination params.Pagination   `json:"pagination"`
}

// uploadProductImagesHandler godoc
//
//	@Summary		Upload product images
//	@Description	Uploads up to 10 images (jpeg, png or webp) and returns their URLs for use in create or update.
//	@Tags			products
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			images	formData	file	true	"Images"
//	@Success		201		{object}	map[string][]string
//	@Failure		400		{object}	error
//	@Failure		502		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/upload-images [post]
func (app *application) uploadProductImagesHandler(w http.ResponseWriter, r *http.Request) {
	files, err := parseImageForm(w, r, "images", maxImagesPerReq)
	if err != nil {
		app.uploadErrorResponse(w, r, err)
		return
	}

	urls, err := app.uploadImages(r.Context(), files, "products")
	if err != nil {
		app.uploadErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, map[string][]string{"images": urls}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// createProductHandler godoc
//
//	@Summary		Create a product
//	@Tags			products
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateProductPayload	true	"Product"
//	@Success		201		{object}	products.Product
//	@Failure		400		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products [post]
func (app *application) createProductHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateProductPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	p := &products.Product{
		Name:          strings.TrimSpace(payload.Name),
		Description:   payload.Description,
		Images:        payload.Images,
		Brand:         payload.Brand,
		Price:         payload.Price,
		OldPrice:      payload.OldPrice,
		CatName:       payload.CatName,
		CatID:         payload.CatID,
		SubCatID:      payload.SubCatID,
		SubCatName:    payload.SubCatName,
		ThirdCatID:    payload.ThirdCatID,
		ThirdCatName:  payload.ThirdCatName,
		CountInStock:  *payload.CountInStock,
		Rating:        payload.Rating,
		IsFeatured:    payload.IsFeatured,
		Discount:      *payload.Discount,
		ProductRAM:    payload.ProductRAM,
		Size:          payload.Size,
		ProductWeight: payload.ProductWeight,
	}

	created, err := app.store.Products.Create(r.Context(), p)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, created); err != nil {
		app.internalServerError(w, r, err)
	}
}

// listProductsHandler godoc
//
//	@Summary		List products
//	@Tags			products
//	@Produce		json
//	@Param			page	query		int	false	"Page (default 1)"
//	@Param			perPage	query		int	false	"Page size (default 20, max 100)"
//	@Success		200		{object}	ProductPage
//	@Failure		404		{object}	error	"Page out of range"
//	@Router			/products [get]
func (app *application) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	app.writeProductPage(w, r, products.Filter{})
}

// listFeaturedProductsHandler godoc
//
//	@Summary		List featured products
//	@Tags			products
//	@Produce		json
//	@Param			page	query		int	false	"Page (default 1)"
//	@Param			perPage	query		int	false	"Page size (default 20, max 100)"
//	@Success		200		{object}	ProductPage
//	@Router			/products/featured [get]
func (app *application) listFeaturedProductsHandler(w http.ResponseWriter, r *http.Request) {
	app.writeProductPage(w, r, products.Filter{Featured: true})
}

// listProductsByCategoryHandler godoc
//
//	@Summary		List products of a category
//	@Description	The route decides which slot is matched: category, subcategory or third-level category.
//	@Tags			products
//	@Produce		json
//	@Param			catID	path		int	true	"Category ID"
//	@Param			page	query		int	false	"Page (default 1)"
//	@Param			perPage	query		int	false	"Page size (default 20, max 100)"
//	@Success		200		{object}	ProductPage
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Router			/products/by-category/{catID} [get]
//	@Router			/products/by-subcategory/{catID} [get]
//	@Router			/products/by-third-category/{catID} [get]
func (app *application) listProductsByCategoryHandler(level products.Level) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		catID, err := readIDParam(r, "catID")
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}
		app.writeProductPage(w, r, products.Filter{Level: level, CatID: catID})
	}
}

// listProductsByCategoryNameHandler godoc
//
//	@Summary		List products by category name
//	@Tags			products
//	@Produce		json
//	@Param			name	query		string	true	"Category name"
//	@Param			page	query		int		false	"Page (default 1)"
//	@Param			perPage	query		int		false	"Page size (default 20, max 100)"
//	@Success		200		{object}	ProductPage
//	@Failure		400		{object}	error
//	@Router			/products/by-category-name [get]
//	@Router			/products/by-subcategory-name [get]
//	@Router			/products/by-third-category-name [get]
func (app *application) listProductsByCategoryNameHandler(level products.Level) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			app.badRequestResponse(w, r, errors.New("name query parameter is required"))
			return
		}
		app.writeProductPage(w, r, products.Filter{Level: level, CatName: name})
	}
}

// listProductsByRatingHandler godoc
//
//	@Summary		List products with a given rating
//	@Tags			products
//	@Produce		json
//	@Param			rating		query		number	true	"Rating"
//	@Param			catId		query		int		false	"Category ID"
//	@Param			subCatId	query		int		false	"Subcategory ID"
//	@Param			thirdCatId	query		int		false	"Third-level category ID"
//	@Param			page		query		int		false	"Page (default 1)"
//	@Param			perPage		query		int		false	"Page size (default 20, max 100)"
//	@Success		200			{object}	ProductPage
//	@Failure		400			{object}	error
//	@Router			/products/by-rating [get]
func (app *application) listProductsByRatingHandler(w http.ResponseWriter, r *http.Request) {
	rating, err := strconv.ParseFloat(r.URL.Query().Get("rating"), 64)
	if err != nil || rating < 0 || rating > 5 {
		app.badRequestResponse(w, r, errors.New("rating must be a number between 0 and 5"))
		return
	}

	f, err := categoryFilter(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	f.Rating = &rating

	app.writeProductPage(w, r, f)
}

// listProductsByPriceHandler godoc
//
//	@Summary		List products in a price range
//	@Description	Not paginated. Either bound may be omitted.
//	@Tags			products
//	@Produce		json
//	@Param			minPrice	query		number	false	"Lowest price"
//	@Param			maxPrice	query		number	false	"Highest price"
//	@Param			catId		query		int		false	"Category ID"
//	@Param			subCatId	query		int		false	"Subcategory ID"
//	@Param			thirdCatId	query		int		false	"Third-level category ID"
//	@Success		200			{array}		products.Product
//	@Failure		400			{object}	error
//	@Router			/products/by-price [get]
func (app *application) listProductsByPriceHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lo, err := optionalFloat(q.Get("minPrice"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("minPrice: %w", err))
		return
	}
	hi, err := optionalFloat(q.Get("maxPrice"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("maxPrice: %w", err))
		return
	}
	if lo != nil && hi != nil && *lo > *hi {
		app.badRequestResponse(w, r, errors.New("minPrice is greater than maxPrice"))
		return
	}

	f, err := categoryFilter(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	all, err := app.store.Products.ListAll(r.Context(), f)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, products.FilterByPrice(all, lo, hi)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// countProductsHandler godoc
//
//	@Summary		Count products
//	@Tags			products
//	@Produce		json
//	@Success		200	{object}	countResponse
//	@Router			/products/count [get]
func (app *application) countProductsHandler(w http.ResponseWriter, r *http.Request) {
	n, err := app.store.Products.Count(r.Context(), products.Filter{})
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, countResponse{Count: n}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getProductHandler godoc
//
//	@Summary		Fetch a product
//	@Tags			products
//	@Produce		json
//	@Param			productID	path		int	true	"Product ID"
//	@Success		200			{object}	products.Product
//	@Failure		400			{object}	error
//	@Failure		404			{object}	error
//	@Router			/products/{productID} [get]
func (app *application) getProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "productID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	p, err := app.store.Products.GetByID(r.Context(), id)
	if err != nil {
		app.productErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, p); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateProductHandler godoc
//
//	@Summary		Update a product
//	@Description	Partial update. Images left out of a new image list are removed from the media store.
//	@Tags			products
//	@Accept			json
//	@Produce		json
//	@Param			productID	path		int						true	"Product ID"
//	@Param			payload		body		products.UpdateFields	true	"Fields to change"
//	@Success		200			{object}	products.Product
//	@Failure		400			{object}	error
//	@Failure		404			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/{productID} [put]
func (app *application) updateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "productID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload products.UpdateFields
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	current, err := app.store.Products.GetByID(ctx, id)
	if err != nil {
		app.productErrorResponse(w, r, err)
		return
	}

	updated, err := app.store.Products.Update(ctx, id, payload)
	if err != nil {
		app.productErrorResponse(w, r, err)
		return
	}

	if payload.Images != nil {
		app.destroyImagesAsync(removedImages(current.Images, updated.Images))
	}

	if err := app.jsonResponse(w, http.StatusOK, updated); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteProductHandler godoc
//
//	@Summary		Delete a product
//	@Description	Also removes the product from every cart and saved list, then deletes its images.
//	@Tags			products
//	@Param			productID	path	int	true	"Product ID"
//	@Success		204
//	@Failure		400	{object}	error
//	@Failure		404	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/{productID} [delete]
func (app *application) deleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "productID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	p, err := app.store.Products.GetByID(ctx, id)
	if err != nil {
		app.productErrorResponse(w, r, err)
		return
	}

	err = app.store.WithTx(ctx, func(tx *storage.Tx) error {
		carts, err := tx.Carts.RemoveProduct(ctx, id)
		if err != nil {
			return fmt.Errorf("remove from carts: %w", err)
		}
		lists, err := tx.MyList.RemoveProduct(ctx, id)
		if err != nil {
			return fmt.Errorf("remove from lists: %w", err)
		}
		app.logger.Debugw("product references removed", "product", id, "cart_items", carts, "list_items", lists)
		return tx.Products.Delete(ctx, id)
	})
	if err != nil {
		app.productErrorResponse(w, r, err)
		return
	}

	app.destroyImagesAsync(p.Images)

	w.WriteHeader(http.StatusNoContent)
}

// removeProductImageHandler godoc
//
//	@Summary		Remove one image from a product
//	@Tags			products
//	@Produce		json
//	@Param			productID	path		int		true	"Product ID"
//	@Param			img			query		string	true	"Image URL"
//	@Success		200			{object}	products.Product
//	@Failure		400			{object}	error
//	@Failure		404			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/{productID}/images [delete]
func (app *application) removeProductImageHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "productID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	img := r.URL.Query().Get("img")
	if img == "" {
		app.badRequestResponse(w, r, errors.New("img query parameter is required"))
		return
	}

	p, err := app.store.Products.RemoveImage(r.Context(), id, img)
	if err != nil {
		app.productErrorResponse(w, r, err)
		return
	}

	app.destroyImagesAsync([]string{img})

	if err := app.jsonResponse(w, http.StatusOK, p); err != nil {
		app.internalServerError(w, r, err)
	}
}

// writeProductPage lists one page of products matching f.
func (app *application) writeProductPage(w http.ResponseWriter, r *http.Request, f products.Filter) {
	pg := params.ParsePagination(r.URL.Query())

	list, total, err := app.store.Products.List(r.Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	pg.ComputeMeta(total)
	if pg.OutOfRange() {
		app.notFoundResponse(w, r, fmt.Errorf("page %d is past the last page %d", pg.Page, pg.TotalPages))
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, ProductPage{Products: list, Pagination: pg}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) productErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, products.ErrNotFound), errors.Is(err, products.ErrImageNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, products.ErrNoFields):
		app.badRequestResponse(w, r, err)
	case errors.Is(err, context.DeadlineExceeded):
		app.upstreamErrorResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}

// categoryFilter picks the most specific of catId, subCatId and thirdCatId.
func categoryFilter(r *http.Request) (products.Filter, error) {
	q := r.URL.Query()
	for _, c := range []struct {
		key   string
		level products.Level
	}{
		{"thirdCatId", products.LevelThirdCategory},
		{"subCatId", products.LevelSubCategory},
		{"catId", products.LevelCategory},
	} {
		v := q.Get(c.key)
		if v == "" {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 1 {
			return products.Filter{}, fmt.Errorf("invalid %s", c.key)
		}
		return products.Filter{Level: c.level, CatID: id}, nil
	}
	return products.Filter{}, nil
}

func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.New("must be a number")
	}
	return &v, nil
}

// removedImages returns the entries of before that are missing from after.
func removedImages(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, u := range after {
		keep[u] = struct{}{}
	}
	var out []string
	for _, u := range before {
		if _, ok := keep[u]; !ok {
			out = append(out, u)
		}
	}
	return out
}
