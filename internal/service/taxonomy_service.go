package service

import (
	"context"
	"strings"

	"inkwell/internal/content"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

// TaxonomyService manages categories and tags.
type TaxonomyService struct {
	categories repository.CategoryRepository
	tags       repository.TagRepository
}

// CategoryInput carries writable category fields; nil means unchanged.
type CategoryInput struct {
	Name        *string
	Slug        *string
	Description *string
	Cover       *string
	ParentID    *uint
	ParentSet   bool
	Order       *int
}

// TagInput carries writable tag fields; nil means unchanged.
type TagInput struct {
	Name        *string
	Slug        *string
	Description *string
	Color       *string
}

func NewTaxonomyService(categories repository.CategoryRepository, tags repository.TagRepository) *TaxonomyService {
	return &TaxonomyService{categories: categories, tags: tags}
}

// ListCategories returns every category ordered by order and name, each
// with its nested children and count of published posts.
func (s *TaxonomyService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.categories.PublishedPostCounts(ctx)
	if err != nil {
		return nil, err
	}
	return buildCategoryTree(categories, counts), nil
}

// buildCategoryTree fills PostCount and Children on a copy of each category.
// The input order is kept at every level.
func buildCategoryTree(categories []models.Category, counts map[uint]int64) []models.Category {
	children := make(map[uint][]int)
	for i := range categories {
		categories[i].PostCount = counts[categories[i].ID]
		if p := categories[i].ParentID; p != nil {
			children[*p] = append(children[*p], i)
		}
	}

	var expand func(i int, seen map[uint]bool) models.Category
	expand = func(i int, seen map[uint]bool) models.Category {
		c := categories[i]
		c.Children = []models.Category{}
		if seen[c.ID] {
			return c
		}
		seen[c.ID] = true
		for _, j := range children[c.ID] {
			c.Children = append(c.Children, expand(j, seen))
		}
		delete(seen, c.ID)
		return c
	}

	out := make([]models.Category, 0, len(categories))
	for i := range categories {
		out = append(out, expand(i, map[uint]bool{}))
	}
	return out
}

// GetCategory returns one category with its subtree.
func (s *TaxonomyService) GetCategory(ctx context.Context, slug string) (*models.Category, error) {
	target, err := s.categories.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	all, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == target.ID {
			return &all[i], nil
		}
	}
	return target, nil
}

func (s *TaxonomyService) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	if in.Name == nil {
		return nil, models.NewFieldValidationError("name", "name is required")
	}
	category := &models.Category{}
	if err := s.applyCategoryInput(ctx, category, in); err != nil {
		return nil, err
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *TaxonomyService) UpdateCategory(ctx context.Context, slug string, in CategoryInput) (*models.Category, error) {
	category, err := s.categories.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.applyCategoryInput(ctx, category, in); err != nil {
		return nil, err
	}
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *TaxonomyService) DeleteCategory(ctx context.Context, slug string) error {
	category, err := s.categories.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return s.categories.Delete(ctx, category.ID)
}

func (s *TaxonomyService) applyCategoryInput(ctx context.Context, c *models.Category, in CategoryInput) error {
	if in.Name != nil {
		name, err := requireText("name", *in.Name, 100)
		if err != nil {
			return err
		}
		c.Name = name
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Cover != nil {
		c.Cover = strings.TrimSpace(*in.Cover)
	}
	if in.Order != nil {
		c.Order = *in.Order
	}
	if in.ParentSet {
		if err := s.checkParent(ctx, c.ID, in.ParentID); err != nil {
			return err
		}
		c.ParentID = in.ParentID
		c.Parent = nil
	}

	if in.Slug != nil || c.Slug == "" {
		source := c.Name
		if in.Slug != nil && strings.TrimSpace(*in.Slug) != "" {
			source = *in.Slug
		}
		slug, err := uniqueSlug(ctx, content.Slugify(source, "category"), c.ID, s.categories.SlugExists)
		if err != nil {
			return err
		}
		c.Slug = slug
	}
	return nil
}

// checkParent rejects a missing parent, the category itself, and any of its
// descendants.
func (s *TaxonomyService) checkParent(ctx context.Context, selfID uint, parentID *uint) error {
	if parentID == nil {
		return nil
	}
	if selfID != 0 && *parentID == selfID {
		return models.NewFieldValidationError("parent", "a category cannot be its own parent")
	}
	all, err := s.categories.List(ctx)
	if err != nil {
		return err
	}
	byID := make(map[uint]models.Category, len(all))
	for _, c := range all {
		byID[c.ID] = c
	}
	if _, ok := byID[*parentID]; !ok {
		return models.NewFieldValidationError("parent", "parent category does not exist")
	}
	if selfID == 0 {
		return nil
	}
	// walk up from the proposed parent; reaching self means a cycle
	seen := map[uint]bool{}
	for cur := parentID; cur != nil; {
		if *cur == selfID {
			return models.NewFieldValidationError("parent", "a category cannot be nested under its own descendant")
		}
		if seen[*cur] {
			break
		}
		seen[*cur] = true
		cur = byID[*cur].ParentID
	}
	return nil
}

// ListTags returns all tags with their published post counts.
func (s *TaxonomyService) ListTags(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.tags.List(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.tags.PublishedPostCounts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tags {
		tags[i].PostCount = counts[tags[i].ID]
	}
	return tags, nil
}

func (s *TaxonomyService) GetTag(ctx context.Context, slug string) (*models.Tag, error) {
	tag, err := s.tags.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	counts, err := s.tags.PublishedPostCounts(ctx)
	if err != nil {
		return nil, err
	}
	tag.PostCount = counts[tag.ID]
	return tag, nil
}

func (s *TaxonomyService) CreateTag(ctx context.Context, in TagInput) (*models.Tag, error) {
	if in.Name == nil {
		return nil, models.NewFieldValidationError("name", "name is required")
	}
	tag := &models.Tag{Color: models.DefaultTagColor}
	if err := s.applyTagInput(ctx, tag, in); err != nil {
		return nil, err
	}
	if err := s.tags.Create(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

func (s *TaxonomyService) UpdateTag(ctx context.Context, slug string, in TagInput) (*models.Tag, error) {
	tag, err := s.tags.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.applyTagInput(ctx, tag, in); err != nil {
		return nil, err
	}
	if err := s.tags.Update(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

func (s *TaxonomyService) DeleteTag(ctx context.Context, slug string) error {
	tag, err := s.tags.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return s.tags.Delete(ctx, tag.ID)
}

func (s *TaxonomyService) applyTagInput(ctx context.Context, t *models.Tag, in TagInput) error {
	if in.Name != nil {
		name, err := requireText("name", *in.Name, 50)
		if err != nil {
			return err
		}
		t.Name = name
	}
	if in.Description != nil {
		desc, err := optionalText("description", *in.Description, 200)
		if err != nil {
			return err
		}
		t.Description = desc
	}
	if in.Color != nil {
		color := strings.TrimSpace(*in.Color)
		if color == "" {
			color = models.DefaultTagColor
		}
		if len(color) != 7 || validation.ValidateColor(color) != nil {
			return models.NewFieldValidationError("color", "color must be a hex value like #FE9600")
		}
		t.Color = color
	}

	if in.Slug != nil || t.Slug == "" {
		source := t.Name
		if in.Slug != nil && strings.TrimSpace(*in.Slug) != "" {
			source = *in.Slug
		}
		slug, err := uniqueSlug(ctx, content.Slugify(source, "tag"), t.ID, s.tags.SlugExists)
		if err != nil {
			return err
		}
		t.Slug = slug
	}
	return nil
}
