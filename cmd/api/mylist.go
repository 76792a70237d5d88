package main

import (
	"errors"
	"net/http"

	"storefront/internal/domain/mylist"
)

type AddToMyListPayload struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

// addToMyListHandler godoc
//
//	@Summary		Save a product to my list
//	@Description	Stores a snapshot of the product title, first image and pricing.
//	@Tags			my-list
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		AddToMyListPayload	true	"Product"
//	@Success		201		{object}	mylist.Item
//	@Failure		404		{object}	error
//	@Failure		409		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/my-list [post]
func (app *application) addToMyListHandler(w http.ResponseWriter, r *http.Request) {
	var payload AddToMyListPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()
	user := getUserFromContext(r)

	p, err := app.store.Products.GetByID(ctx, payload.ProductID)
	if err != nil {
		app.productErrorResponse(w, r, err)
		return
	}

	item := &mylist.Item{
		ProductID:    p.ID,
		UserID:       user.ID,
		ProductTitle: p.Name,
		Rating:       p.Rating,
		Price:        p.Price,
		OldPrice:     p.OldPrice,
		Brand:        p.Brand,
		Discount:     p.Discount,
	}
	if len(p.Images) > 0 {
		item.Image = p.Images[0]
	}

	saved, err := app.store.MyList.Add(ctx, item)
	if err != nil {
		app.myListErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, saved); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getMyListHandler godoc
//
//	@Summary		List my saved products
//	@Tags			my-list
//	@Produce		json
//	@Success		200	{array}	mylist.Item
//	@Security		ApiKeyAuth
//	@Router			/my-list [get]
func (app *application) getMyListHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	items, err := app.store.MyList.List(r.Context(), user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, items); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteMyListItemHandler godoc
//
//	@Summary		Remove a saved product
//	@Tags			my-list
//	@Param			itemID	path	int	true	"Item ID"
//	@Success		204
//	@Failure		404	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/my-list/{itemID} [delete]
func (app *application) deleteMyListItemHandler(w http.ResponseWriter, r *http.Request) {
	itemID, err := readIDParam(r, "itemID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	if err := app.store.MyList.Remove(r.Context(), user.ID, itemID); err != nil {
		app.myListErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (app *application) myListErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, mylist.ErrNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, mylist.ErrAlreadyListed):
		app.conflictResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}
