package categories

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

type Category struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Images        []string  `json:"images"`
	ParentCatName *string   `json:"parent_cat_name,omitempty"`
	ParentID      *int64    `json:"parent_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsRoot reports whether c sits at the top of the tree.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// Node is a category together with its materialized sub-categories.
type Node struct {
	Category
	Children []*Node `json:"children"`
}

type CreateInput struct {
	Name          string
	Images        []string
	ParentCatName *string
	ParentID      *int64
}

// UpdateFields carries a partial update. A nil field is left untouched; a
// supplied empty value overwrites.
type UpdateFields struct {
	Name          *string    `json:"name" validate:"omitempty,max=100"`
	Images        *[]string  `json:"images" validate:"omitempty,min=1,dive,required,url"`
	ParentCatName *string    `json:"parent_cat_name" validate:"omitempty,max=100"`
	ParentID      OptionalID `json:"parent_id"`
}

func (f UpdateFields) Empty() bool {
	return f.Name == nil && f.Images == nil && f.ParentCatName == nil && !f.ParentID.Set
}

// OptionalID tells "parent_id absent" apart from "parent_id: null", which
// moves the category to the root.
type OptionalID struct {
	Set   bool
	Value *int64
}

func SetParent(id int64) OptionalID {
	return OptionalID{Set: true, Value: &id}
}

func ClearParent() OptionalID {
	return OptionalID{Set: true}
}

func (o *OptionalID) UnmarshalJSON(b []byte) error {
	o.Set = true
	o.Value = nil

	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`)) {
		return nil
	}

	// accept both 12 and "12"
	if len(b) > 1 && b[0] == '"' {
		b = b[1 : len(b)-1]
	}
	var id int64
	if err := json.Unmarshal(b, &id); err != nil {
		return &ValidationError{Field: "parent_id", Err: ErrInvalidParentID}
	}
	o.Value = &id
	return nil
}

// Store is the persistence contract of the hierarchy. GetByID returns
// ErrCategoryNotFound for unknown ids.
type Store interface {
	GetByID(ctx context.Context, id int64) (*Category, error)
	List(ctx context.Context) ([]*Category, error)
	ListChildren(ctx context.Context, parentID int64) ([]*Category, error)
	Create(ctx context.Context, c *Category) (*Category, error)
	Update(ctx context.Context, id int64, f UpdateFields) (*Category, error)
	Delete(ctx context.Context, id int64) error
	CountRoots(ctx context.Context) (int, error)
	CountSubcategories(ctx context.Context) (int, error)
}

// MediaStore is the slice of the media store the hierarchy needs.
type MediaStore interface {
	Destroy(ctx context.Context, url string) error
}
