package main

import (
	"errors"
	"net/http"

	"storefront/internal/domain/carts"
)

type AddToCartPayload struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

type UpdateCartItemPayload struct {
	Quantity int `json:"quantity" validate:"required,gte=1,lte=999"`
}

// addToCartHandler godoc
//
//	@Summary		Add a product to the cart
//	@Tags			cart
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		AddToCartPayload	true	"Product"
//	@Success		201		{object}	carts.CartItem
//	@Failure		404		{object}	error	"Product not found"
//	@Failure		409		{object}	error	"Already in cart"
//	@Security		ApiKeyAuth
//	@Router			/cart [post]
func (app *application) addToCartHandler(w http.ResponseWriter, r *http.Request) {
	var payload AddToCartPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	item, err := app.store.Carts.Add(r.Context(), user.ID, payload.ProductID)
	if err != nil {
		app.cartErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, item); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getCartHandler godoc
//
//	@Summary		List the cart
//	@Tags			cart
//	@Produce		json
//	@Success		200	{array}	carts.CartLine
//	@Security		ApiKeyAuth
//	@Router			/cart [get]
func (app *application) getCartHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	lines, err := app.store.Carts.List(r.Context(), user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, lines); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateCartItemHandler godoc
//
//	@Summary		Change the quantity of a cart item
//	@Tags			cart
//	@Accept			json
//	@Produce		json
//	@Param			itemID	path		int						true	"Cart item ID"
//	@Param			payload	body		UpdateCartItemPayload	true	"Quantity"
//	@Success		200		{object}	carts.CartItem
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/cart/{itemID} [put]
func (app *application) updateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	itemID, err := readIDParam(r, "itemID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload UpdateCartItemPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	item, err := app.store.Carts.UpdateQty(r.Context(), user.ID, itemID, payload.Quantity)
	if err != nil {
		app.cartErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, item); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteCartItemHandler godoc
//
//	@Summary		Remove a cart item
//	@Tags			cart
//	@Param			itemID	path	int	true	"Cart item ID"
//	@Success		204
//	@Failure		404	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/cart/{itemID} [delete]
func (app *application) deleteCartItemHandler(w http.ResponseWriter, r *http.Request) {
	itemID, err := readIDParam(r, "itemID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	if err := app.store.Carts.Remove(r.Context(), user.ID, itemID); err != nil {
		app.cartErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (app *application) cartErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, carts.ErrNotFound), errors.Is(err, carts.ErrProductNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, carts.ErrAlreadyInCart):
		app.conflictResponse(w, r, err)
	case errors.Is(err, carts.ErrInvalidQuantity):
		app.badRequestResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}
