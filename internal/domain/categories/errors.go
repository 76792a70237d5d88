package categories

import (
	"errors"
	"fmt"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrParentNotFound   = errors.New("parent category not found")
	ErrNameRequired     = errors.New("category name is required")
	ErrImagesRequired   = errors.New("at least one category image is required")
	ErrImageURL         = errors.New("category images must be absolute http(s) urls")
	ErrSelfParent       = errors.New("a category cannot be its own parent")
	ErrCycle            = errors.New("parent is a descendant of the category")
	ErrInvalidParentID  = errors.New("parent_id must be a category id")
	ErrNoFields         = errors.New("no fields to update")
)

// ValidationError reports missing or contradictory input.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError reports a referenced category that does not exist.
type NotFoundError struct {
	ID  int64
	Err error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v: id %d", e.Err, e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// SubtreeError aborts a cascading delete. Nodes already removed stay removed.
type SubtreeError struct {
	NodeID int64
	Op     string
	Err    error
}

func (e *SubtreeError) Error() string {
	return fmt.Sprintf("delete subtree: %s category %d: %v", e.Op, e.NodeID, e.Err)
}

func (e *SubtreeError) Unwrap() error { return e.Err }
