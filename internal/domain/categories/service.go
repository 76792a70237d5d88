package categories

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"storefront/internal/infra/dbx"
	"storefront/internal/retry"

	"go.uber.org/zap"
)

// Service owns the category tree: it is the only writer of the categories
// collection and keeps parent references consistent.
type Service struct {
	store  Store
	media  MediaStore
	logger *zap.SugaredLogger
	retry  retry.Config
}

func NewService(store Store, media MediaStore, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		store:  store,
		media:  media,
		logger: logger,
		retry:  retry.Once(dbx.IsTransient),
	}
}

// WithRetry replaces the policy used for store lookups during deletes.
func (s *Service) WithRetry(cfg retry.Config) *Service {
	cp := *s
	cp.retry = cfg
	return &cp
}

func (s *Service) Get(ctx context.Context, id int64) (*Category, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return nil, &NotFoundError{ID: id, Err: ErrCategoryNotFound}
		}
		return nil, err
	}
	return c, nil
}

// Tree loads every category and returns the materialized forest.
func (s *Service) Tree(ctx context.Context) ([]*Node, error) {
	flat, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	roots, orphans := Materialize(flat)
	if len(orphans) > 0 {
		s.logger.Warnw("categories with unresolvable parents promoted to roots", "ids", orphans)
	}
	return roots, nil
}

func (s *Service) CountRoots(ctx context.Context) (int, error) {
	return s.store.CountRoots(ctx)
}

func (s *Service) CountSubcategories(ctx context.Context) (int, error) {
	return s.store.CountSubcategories(ctx)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Err: ErrNameRequired}
	}
	images, err := cleanImages(in.Images)
	if err != nil {
		return nil, err
	}

	if in.ParentID != nil {
		if _, err := s.store.GetByID(ctx, *in.ParentID); err != nil {
			if errors.Is(err, ErrCategoryNotFound) {
				return nil, &NotFoundError{ID: *in.ParentID, Err: ErrParentNotFound}
			}
			return nil, fmt.Errorf("resolve parent: %w", err)
		}
	}

	created, err := s.store.Create(ctx, &Category{
		Name:          name,
		Images:        images,
		ParentCatName: in.ParentCatName,
		ParentID:      in.ParentID,
	})
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

// Update applies the supplied fields only. A new parent must exist and must
// not be the category itself or one of its descendants. Images dropped from
// the list are removed from the media store, best effort.
func (s *Service) Update(ctx context.Context, id int64, f UpdateFields) (*Category, error) {
	if f.ParentID.Value != nil && *f.ParentID.Value == id {
		return nil, &ValidationError{Field: "parent_id", Err: ErrSelfParent}
	}
	if f.Empty() {
		return nil, &ValidationError{Field: "body", Err: ErrNoFields}
	}
	if f.Name != nil && strings.TrimSpace(*f.Name) == "" {
		return nil, &ValidationError{Field: "name", Err: ErrNameRequired}
	}
	if f.Images != nil {
		images, err := cleanImages(*f.Images)
		if err != nil {
			return nil, err
		}
		f.Images = &images
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if f.ParentID.Value != nil {
		if err := s.checkAncestry(ctx, id, *f.ParentID.Value); err != nil {
			return nil, err
		}
	}

	updated, err := s.store.Update(ctx, id, f)
	if err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return nil, &NotFoundError{ID: id, Err: ErrCategoryNotFound}
		}
		return nil, fmt.Errorf("update category: %w", err)
	}

	if f.Images != nil {
		s.destroyImages(ctx, &Category{ID: id, Images: dropped(current.Images, updated.Images)})
	}
	return updated, nil
}

// dropped lists the images in before that are no longer in after.
func dropped(before, after []string) []string {
	keep := make(map[string]bool, len(after))
	for _, img := range after {
		keep[img] = true
	}
	var out []string
	for _, img := range before {
		if !keep[img] {
			out = append(out, img)
		}
	}
	return out
}

// checkAncestry walks from parentID to the root and fails if it meets id.
// The walk stops at a repeated node, so a cycle already in the data cannot
// make it spin.
func (s *Service) checkAncestry(ctx context.Context, id, parentID int64) error {
	seen := map[int64]bool{}
	cur := parentID
	for {
		if cur == id {
			return &ValidationError{Field: "parent_id", Err: ErrCycle}
		}
		if seen[cur] {
			return &ValidationError{Field: "parent_id", Err: ErrCycle}
		}
		seen[cur] = true

		c, err := s.store.GetByID(ctx, cur)
		if err != nil {
			if errors.Is(err, ErrCategoryNotFound) {
				if cur == parentID {
					return &NotFoundError{ID: parentID, Err: ErrParentNotFound}
				}
				// dangling ancestor: the chain ends here
				return nil
			}
			return fmt.Errorf("resolve ancestor %d: %w", cur, err)
		}
		if c.ParentID == nil {
			return nil
		}
		cur = *c.ParentID
	}
}

// DeleteSubtree removes id, every descendant and (best effort) their images.
// It walks the tree with an explicit stack: a node's images are destroyed
// when it is first visited, the node itself only after all of its
// descendants are gone. A missing id is a no-op.
//
// The walk is not atomic. If it aborts, the nodes deleted so far stay
// deleted and the remainder of the subtree is left in place, possibly
// below an ancestor that no longer exists.
func (s *Service) DeleteSubtree(ctx context.Context, id int64) error {
	root, err := s.lookup(ctx, id)
	if err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return nil
		}
		return &SubtreeError{NodeID: id, Op: "resolve", Err: err}
	}

	type frame struct {
		cat      *Category
		expanded bool
	}

	visited := map[int64]bool{root.ID: true}
	stack := []*frame{{cat: root}}
	deleted := 0

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if !top.expanded {
			top.expanded = true
			s.destroyImages(ctx, top.cat)

			children, err := s.children(ctx, top.cat.ID)
			if err != nil {
				return &SubtreeError{NodeID: top.cat.ID, Op: "list children of", Err: err}
			}
			// push in reverse so the first child is handled first
			for i := len(children) - 1; i >= 0; i-- {
				child := children[i]
				if visited[child.ID] {
					s.logger.Warnw("category reached twice while deleting subtree", "id", child.ID, "root", id)
					continue
				}
				visited[child.ID] = true
				stack = append(stack, &frame{cat: child})
			}
			continue
		}

		stack = stack[:len(stack)-1]
		if err := s.remove(ctx, top.cat.ID); err != nil {
			return &SubtreeError{NodeID: top.cat.ID, Op: "delete", Err: err}
		}
		deleted++
	}

	s.logger.Infow("category subtree deleted", "root", id, "deleted", deleted)
	return nil
}

func (s *Service) destroyImages(ctx context.Context, c *Category) {
	if s.media == nil {
		return
	}
	for _, img := range c.Images {
		if img == "" {
			continue
		}
		if err := s.media.Destroy(ctx, img); err != nil {
			s.logger.Warnw("failed to delete category image", "category", c.ID, "url", img, "error", err)
		}
	}
}

func (s *Service) lookup(ctx context.Context, id int64) (*Category, error) {
	var c *Category
	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		var err error
		c, err = s.store.GetByID(ctx, id)
		return err
	})
	return c, err
}

func (s *Service) children(ctx context.Context, id int64) ([]*Category, error) {
	var out []*Category
	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		var err error
		out, err = s.store.ListChildren(ctx, id)
		return err
	})
	return out, err
}

func (s *Service) remove(ctx context.Context, id int64) error {
	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.store.Delete(ctx, id)
	})
	if errors.Is(err, ErrCategoryNotFound) {
		return nil
	}
	return err
}

// cleanImages drops blank entries and requires at least one absolute
// http(s) url.
func cleanImages(images []string) ([]string, error) {
	out := compactImages(images)
	if len(out) == 0 {
		return nil, &ValidationError{Field: "images", Err: ErrImagesRequired}
	}
	for _, img := range out {
		u, err := url.Parse(img)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, &ValidationError{Field: "images", Err: ErrImageURL}
		}
	}
	return out, nil
}

func compactImages(images []string) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		if img = strings.TrimSpace(img); img != "" {
			out = append(out, img)
		}
	}
	return out
}
