package service

import (
	"context"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

// LinkCategoryInput carries writable link category fields.
type LinkCategoryInput struct {
	Name  *string
	Order *int
}

// LinkInput carries writable link fields; nil means unchanged.
type LinkInput struct {
	Name        *string
	URL         *string
	Description *string
	Logo        *string
	CategoryID  *uint
	CategorySet bool
	Order       *int
	IsVisible   *bool
}

// LinkService manages the friend links page.
type LinkService struct {
	links repository.LinkRepository
}

func NewLinkService(links repository.LinkRepository) *LinkService {
	return &LinkService{links: links}
}

// Categories returns link categories with nested links. Visitors only see
// visible links and only categories that have at least one.
func (s *LinkService) Categories(ctx context.Context, viewer Viewer) ([]models.LinkCategory, error) {
	categories, err := s.links.ListCategories(ctx, !viewer.IsStaff)
	if err != nil {
		return nil, err
	}
	out := make([]models.LinkCategory, 0, len(categories))
	for _, c := range categories {
		if c.Links == nil {
			c.Links = []models.Link{}
		}
		if !viewer.IsStaff && len(c.Links) == 0 {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *LinkService) Category(ctx context.Context, viewer Viewer, id uint) (*models.LinkCategory, error) {
	c, err := s.links.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewer.IsStaff {
		return c, nil
	}
	visible := make([]models.Link, 0, len(c.Links))
	for _, l := range c.Links {
		if l.IsVisible {
			visible = append(visible, l)
		}
	}
	if len(visible) == 0 {
		return nil, models.NewNotFoundError("Link category", id)
	}
	c.Links = visible
	return c, nil
}

func (s *LinkService) CreateCategory(ctx context.Context, in LinkCategoryInput) (*models.LinkCategory, error) {
	if in.Name == nil {
		return nil, models.NewFieldValidationError("name", "name is required")
	}
	c := &models.LinkCategory{}
	if err := applyLinkCategoryInput(c, in); err != nil {
		return nil, err
	}
	if err := s.links.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	c.Links = []models.Link{}
	return c, nil
}

func (s *LinkService) UpdateCategory(ctx context.Context, id uint, in LinkCategoryInput) (*models.LinkCategory, error) {
	c, err := s.links.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyLinkCategoryInput(c, in); err != nil {
		return nil, err
	}
	if err := s.links.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *LinkService) DeleteCategory(ctx context.Context, id uint) error {
	return s.links.DeleteCategory(ctx, id)
}

func applyLinkCategoryInput(c *models.LinkCategory, in LinkCategoryInput) error {
	if in.Name != nil {
		name, err := requireText("name", *in.Name, 50)
		if err != nil {
			return err
		}
		c.Name = name
	}
	if in.Order != nil {
		c.Order = *in.Order
	}
	return nil
}

// List returns links, hidden ones only for staff.
func (s *LinkService) List(ctx context.Context, viewer Viewer, categoryID *uint) ([]models.Link, error) {
	links, err := s.links.List(ctx, !viewer.IsStaff, categoryID)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []models.Link{}
	}
	return links, nil
}

func (s *LinkService) Get(ctx context.Context, viewer Viewer, id uint) (*models.Link, error) {
	l, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !l.IsVisible && !viewer.IsStaff {
		return nil, models.NewNotFoundError("Link", id)
	}
	return l, nil
}

func (s *LinkService) Create(ctx context.Context, in LinkInput) (*models.Link, error) {
	if in.Name == nil || in.URL == nil {
		return nil, models.NewValidationError("name and url are required")
	}
	l := &models.Link{IsVisible: true}
	if err := s.apply(ctx, l, in); err != nil {
		return nil, err
	}
	if err := s.links.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *LinkService) Update(ctx context.Context, id uint, in LinkInput) (*models.Link, error) {
	l, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, l, in); err != nil {
		return nil, err
	}
	if err := s.links.Update(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *LinkService) Delete(ctx context.Context, id uint) error {
	return s.links.Delete(ctx, id)
}

func (s *LinkService) apply(ctx context.Context, l *models.Link, in LinkInput) error {
	if in.Name != nil {
		name, err := requireText("name", *in.Name, 100)
		if err != nil {
			return err
		}
		l.Name = name
	}
	if in.URL != nil {
		u := strings.TrimSpace(*in.URL)
		if err := validation.ValidateURL(u); err != nil {
			return models.NewFieldValidationError("url", err.Error())
		}
		l.URL = u
	}
	if in.Description != nil {
		desc, err := optionalText("description", strings.TrimSpace(*in.Description), 200)
		if err != nil {
			return err
		}
		l.Description = desc
	}
	if in.Logo != nil {
		logo := strings.TrimSpace(*in.Logo)
		if logo != "" && !strings.HasPrefix(logo, "/") {
			if err := validation.ValidateURL(logo); err != nil {
				return models.NewFieldValidationError("logo", err.Error())
			}
		}
		l.Logo = logo
	}
	if in.Order != nil {
		l.Order = *in.Order
	}
	if in.IsVisible != nil {
		l.IsVisible = *in.IsVisible
	}
	if in.CategorySet {
		if in.CategoryID != nil {
			if _, err := s.links.GetCategory(ctx, *in.CategoryID); err != nil {
				if appErr, ok := models.AsAppError(err); ok && appErr.Code == models.CodeNotFound {
					return models.NewFieldValidationError("category", "link category does not exist")
				}
				return err
			}
		}
		l.CategoryID = in.CategoryID
		l.Category = nil
	}
	return nil
}
