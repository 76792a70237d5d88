package carts

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("cart item not found")
	ErrAlreadyInCart   = errors.New("product is already in the cart")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

type CartItem struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	UserID    int64     `json:"user_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartLine is a cart item with the product summary the cart page shows.
type CartLine struct {
	CartItem
	ProductName  string  `json:"product_name"`
	Image        *string `json:"image,omitempty"`
	Brand        string  `json:"brand"`
	Price        float64 `json:"price"`
	OldPrice     float64 `json:"old_price"`
	Discount     int     `json:"discount"`
	Rating       float64 `json:"rating"`
	CountInStock int     `json:"count_in_stock"`
	LineTotal    float64 `json:"line_total"`
}

type Store interface {
	Add(ctx context.Context, userID, productID int64) (*CartItem, error)
	List(ctx context.Context, userID int64) ([]*CartLine, error)
	UpdateQty(ctx context.Context, userID, itemID int64, qty int) (*CartItem, error)
	Remove(ctx context.Context, userID, itemID int64) error
	RemoveProduct(ctx context.Context, productID int64) (int64, error)
}
