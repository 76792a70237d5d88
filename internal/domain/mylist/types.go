package mylist

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("item not found in my list")
	ErrAlreadyListed = errors.New("product is already in my list")
)

type Item struct {
	ID           int64     `json:"id"`
	ProductID    int64     `json:"product_id"`
	UserID       int64     `json:"user_id"`
	ProductTitle string    `json:"product_title"`
	Image        string    `json:"image"`
	Rating       float64   `json:"rating"`
	Price        float64   `json:"price"`
	OldPrice     float64   `json:"old_price"`
	Brand        string    `json:"brand"`
	Discount     int       `json:"discount"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Store interface {
	Add(ctx context.Context, it *Item) (*Item, error)
	List(ctx context.Context, userID int64) ([]*Item, error)
	Remove(ctx context.Context, userID, itemID int64) error
	RemoveProduct(ctx context.Context, productID int64) (int64, error)
}
