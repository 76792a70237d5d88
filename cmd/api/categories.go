package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/domain/categories"
)

// cascading deletes outlive the request but not this
const subtreeDeleteTimeout = 2 * time.Minute

type CreateCategoryPayload struct {
	Name          string   `json:"name" validate:"required,max=100"`
	Images        []string `json:"images" validate:"required,min=1,dive,required,url"`
	ParentCatName *string  `json:"parent_cat_name" validate:"omitempty,max=100"`
	ParentID      *int64   `json:"parent_id" validate:"omitempty,gt=0"`
}

type countResponse struct {
	Count int `json:"count"`
}

// uploadCategoryImagesHandler godoc
//
//	@Summary		Upload category images
//	@Description	Uploads up to 10 images (jpeg, png or webp) and returns their URLs for use in create or update.
//	@Tags			categories
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			images	formData	file	true	"Images"
//	@Success		201		{object}	map[string][]string
//	@Failure		400		{object}	error
//	@Failure		502		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/categories/upload-images [post]
func (app *application) uploadCategoryImagesHandler(w http.ResponseWriter, r *http.Request) {
	files, err := parseImageForm(w, r, "images", maxImagesPerReq)
	if err != nil {
		app.uploadErrorResponse(w, r, err)
		return
	}

	urls, err := app.uploadImages(r.Context(), files, "categories")
	if err != nil {
		app.uploadErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, map[string][]string{"images": urls}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// removeCategoryImageHandler godoc
//
//	@Summary		Remove an uploaded image
//	@Description	Deletes an image from the media store, e.g. one uploaded for a form that was abandoned.
//	@Tags			categories
//	@Param			img	query	string	true	"Image URL"
//	@Success		204
//	@Failure		400	{object}	error
//	@Failure		502	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/categories/images [delete]
func (app *application) removeCategoryImageHandler(w http.ResponseWriter, r *http.Request) {
	img := r.URL.Query().Get("img")
	if img == "" {
		app.badRequestResponse(w, r, errors.New("img query parameter is required"))
		return
	}

	if err := app.media.Destroy(r.Context(), img); err != nil {
		app.upstreamErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// createCategoryHandler godoc
//
//	@Summary		Create a category
//	@Description	Creates a root category, or a sub-category when parent_id is given.
//	@Tags			categories
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateCategoryPayload	true	"Category"
//	@Success		201		{object}	categories.Category
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error	"Parent not found"
//	@Security		ApiKeyAuth
//	@Router			/categories [post]
func (app *application) createCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateCategoryPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	created, err := app.categories.Create(r.Context(), categories.CreateInput{
		Name:          payload.Name,
		Images:        payload.Images,
		ParentCatName: payload.ParentCatName,
		ParentID:      payload.ParentID,
	})
	if err != nil {
		app.categoryErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, created); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getCategoryTreeHandler godoc
//
//	@Summary		Category tree
//	@Description	Returns every category as a forest of root categories with nested children.
//	@Tags			categories
//	@Produce		json
//	@Success		200	{array}	categories.Node
//	@Router			/categories [get]
func (app *application) getCategoryTreeHandler(w http.ResponseWriter, r *http.Request) {
	tree, err := app.categories.Tree(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, tree); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getCategoryHandler godoc
//
//	@Summary		Get a category
//	@Tags			categories
//	@Produce		json
//	@Param			categoryID	path		int	true	"Category ID"
//	@Success		200			{object}	categories.Category
//	@Failure		400			{object}	error
//	@Failure		404			{object}	error
//	@Router			/categories/{categoryID} [get]
func (app *application) getCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "categoryID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	c, err := app.categories.Get(r.Context(), id)
	if err != nil {
		app.categoryErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, c); err != nil {
		app.internalServerError(w, r, err)
	}
}

// countRootCategoriesHandler godoc
//
//	@Summary		Count root categories
//	@Tags			categories
//	@Produce		json
//	@Success		200	{object}	countResponse
//	@Router			/categories/count [get]
func (app *application) countRootCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	n, err := app.categories.CountRoots(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if err := app.jsonResponse(w, http.StatusOK, countResponse{Count: n}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// countSubcategoriesHandler godoc
//
//	@Summary		Count sub-categories
//	@Tags			categories
//	@Produce		json
//	@Success		200	{object}	countResponse
//	@Router			/categories/count/subcategories [get]
func (app *application) countSubcategoriesHandler(w http.ResponseWriter, r *http.Request) {
	n, err := app.categories.CountSubcategories(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if err := app.jsonResponse(w, http.StatusOK, countResponse{Count: n}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateCategoryHandler godoc
//
//	@Summary		Update a category
//	@Description	Applies only the supplied fields. "parent_id": null moves the category to the root.
//	@Tags			categories
//	@Accept			json
//	@Produce		json
//	@Param			categoryID	path		int						true	"Category ID"
//	@Param			payload		body		categories.UpdateFields	true	"Fields to change"
//	@Success		200			{object}	categories.Category
//	@Failure		400			{object}	error	"Self parent, cycle, empty body or invalid images"
//	@Failure		404			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/categories/{categoryID} [put]
func (app *application) updateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "categoryID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var fields categories.UpdateFields
	if err := readJSON(w, r, &fields); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(fields); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	updated, err := app.categories.Update(r.Context(), id, fields)
	if err != nil {
		app.categoryErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, updated); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteCategoryHandler godoc
//
//	@Summary		Delete a category subtree
//	@Description	Deletes the category, all of its descendants and their images. Deleting a missing category succeeds.
//	@Tags			categories
//	@Param			categoryID	path	int	true	"Category ID"
//	@Success		200			{object}	map[string]string
//	@Failure		500			{object}	error	"Delete stopped part way"
//	@Security		ApiKeyAuth
//	@Router			/categories/{categoryID} [delete]
func (app *application) deleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "categoryID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	// a client disconnect must not leave a half-deleted subtree behind
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), subtreeDeleteTimeout)
	defer cancel()

	// the server write timeout is shorter than a large cascade
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Now().Add(subtreeDeleteTimeout + 5*time.Second)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		app.logger.Warnw("could not extend write deadline", "error", err)
	}

	if err := app.categories.DeleteSubtree(ctx, id); err != nil {
		app.categoryErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "category deleted"}); err != nil {
		app.internalServerError(w, r, err)
	}
}
