package products

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrNoFields          = errors.New("no fields to update")
	ErrImageNotFound     = errors.New("image does not belong to the product")
	QueryTimeoutDuration = time.Second * 5
)

type Product struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Images        []string  `json:"images"`
	Brand         string    `json:"brand"`
	Price         float64   `json:"price"`
	OldPrice      float64   `json:"old_price"`
	CatName       string    `json:"cat_name"`
	CatID         *int64    `json:"cat_id"`
	SubCatID      *int64    `json:"sub_cat_id"`
	SubCatName    string    `json:"sub_cat_name"`
	ThirdCatID    *int64    `json:"third_cat_id"`
	ThirdCatName  string    `json:"third_cat_name"`
	CountInStock  int       `json:"count_in_stock"`
	Rating        float64   `json:"rating"`
	IsFeatured    bool      `json:"is_featured"`
	Discount      int       `json:"discount"`
	ProductRAM    []string  `json:"product_ram"`
	Size          []string  `json:"size"`
	ProductWeight []string  `json:"product_weight"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UpdateFields is a partial update; nil fields are left as stored.
type UpdateFields struct {
	Name          *string   `json:"name"`
	Description   *string   `json:"description"`
	Images        *[]string `json:"images"`
	Brand         *string   `json:"brand"`
	Price         *float64  `json:"price" validate:"omitempty,gte=0"`
	OldPrice      *float64  `json:"old_price" validate:"omitempty,gte=0"`
	CatName       *string   `json:"cat_name"`
	CatID         *int64    `json:"cat_id"`
	SubCatID      *int64    `json:"sub_cat_id"`
	SubCatName    *string   `json:"sub_cat_name"`
	ThirdCatID    *int64    `json:"third_cat_id"`
	ThirdCatName  *string   `json:"third_cat_name"`
	CountInStock  *int      `json:"count_in_stock" validate:"omitempty,gte=0"`
	Rating        *float64  `json:"rating" validate:"omitempty,gte=0,lte=5"`
	IsFeatured    *bool     `json:"is_featured"`
	Discount      *int      `json:"discount" validate:"omitempty,gte=0,lte=100"`
	ProductRAM    *[]string `json:"product_ram"`
	Size          *[]string `json:"size"`
	ProductWeight *[]string `json:"product_weight"`
}

// Level names one of the three category slots a product carries.
type Level int

const (
	LevelAny Level = iota
	LevelCategory
	LevelSubCategory
	LevelThirdCategory
)

// Filter narrows product listings. Zero values mean "no constraint".
type Filter struct {
	Level    Level
	CatID    int64
	CatName  string
	Rating   *float64
	Featured bool
}

type Store interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Product, int, error)
	ListAll(ctx context.Context, f Filter) ([]*Product, error)
	Count(ctx context.Context, f Filter) (int, error)
	Create(ctx context.Context, p *Product) (*Product, error)
	Update(ctx context.Context, id int64, f UpdateFields) (*Product, error)
	RemoveImage(ctx context.Context, id int64, url string) (*Product, error)
	Delete(ctx context.Context, id int64) error
}
