// Package categoriestest provides an in-memory categories.Store for tests.
package categoriestest

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/domain/categories"
)

// Operation names passed to Store.Fail.
const (
	OpGet      = "get"
	OpChildren = "children"
	OpDelete   = "delete"
)

type Store struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*categories.Category
	calls  map[string]int

	// Fail, when set, runs before each lookup or delete; a non-nil return
	// is handed back to the caller instead of touching the data.
	Fail func(op string, id int64) error
}

func New() *Store {
	return &Store{rows: map[int64]*categories.Category{}, calls: map[string]int{}}
}

// Seed inserts categories with fixed ids, keeping ParentID as given.
func (s *Store) Seed(cats ...*categories.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cats {
		cp := *c
		if cp.Images == nil {
			cp.Images = []string{}
		}
		s.rows[cp.ID] = &cp
		if cp.ID > s.nextID {
			s.nextID = cp.ID
		}
	}
}

// IDs returns the stored ids in ascending order.
func (s *Store) IDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Calls reports how often op has been attempted, failed attempts included.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *Store) fail(op string, id int64) error {
	s.calls[op]++
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op, id)
}

func (s *Store) GetByID(_ context.Context, id int64) (*categories.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpGet, id); err != nil {
		return nil, err
	}
	c, ok := s.rows[id]
	if !ok {
		return nil, categories.ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) List(context.Context) ([]*categories.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(*categories.Category) bool { return true }), nil
}

func (s *Store) ListChildren(_ context.Context, parentID int64) ([]*categories.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpChildren, parentID); err != nil {
		return nil, err
	}
	return s.sorted(func(c *categories.Category) bool {
		return c.ParentID != nil && *c.ParentID == parentID
	}), nil
}

func (s *Store) sorted(keep func(*categories.Category) bool) []*categories.Category {
	out := []*categories.Category{}
	for _, c := range s.rows {
		if keep(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Create(_ context.Context, c *categories.Category) (*categories.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now()
	cp := *c
	cp.ID = s.nextID
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *Store) Update(_ context.Context, id int64, f categories.UpdateFields) (*categories.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok {
		return nil, categories.ErrCategoryNotFound
	}
	if f.Name != nil {
		c.Name = *f.Name
	}
	if f.Images != nil {
		c.Images = append([]string{}, (*f.Images)...)
	}
	if f.ParentCatName != nil {
		name := *f.ParentCatName
		c.ParentCatName = &name
	}
	if f.ParentID.Set {
		c.ParentID = f.ParentID.Value
	}
	c.UpdatedAt = time.Now()
	out := *c
	return &out, nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpDelete, id); err != nil {
		return err
	}
	if _, ok := s.rows[id]; !ok {
		return categories.ErrCategoryNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *Store) CountRoots(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sorted(func(c *categories.Category) bool { return c.ParentID == nil })), nil
}

func (s *Store) CountSubcategories(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sorted(func(c *categories.Category) bool { return c.ParentID != nil })), nil
}
