package server

import (
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type categoryRequest struct {
	Name        *string    `json:"name"`
	Slug        *string    `json:"slug"`
	Description *string    `json:"description"`
	Cover       *string    `json:"cover"`
	Parent      optionalID `json:"parent"`
	Order       *int       `json:"order"`
}

func (r categoryRequest) input() service.CategoryInput {
	return service.CategoryInput{
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		Cover:       r.Cover,
		ParentID:    r.Parent.Value,
		ParentSet:   r.Parent.Set,
		Order:       r.Order,
	}
}

// GetCategories handles GET /api/categories
// @Summary List categories
// @Description All categories with nested children and published post counts
// @Tags taxonomy
// @Produce json
// @Success 200 {array} models.Category
// @Router /categories [get]
func (s *Server) GetCategories(c *fiber.Ctx) error {
	categories, err := s.taxonomyService.ListCategories(c.UserContext())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(categories)
}

// GetCategory handles GET /api/categories/:slug
func (s *Server) GetCategory(c *fiber.Ctx) error {
	category, err := s.taxonomyService.GetCategory(c.UserContext(), c.Params("slug"))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(category)
}

// CreateCategory handles POST /api/categories
func (s *Server) CreateCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	category, err := s.taxonomyService.CreateCategory(c.UserContext(), req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

// UpdateCategory handles PUT|PATCH /api/categories/:slug
func (s *Server) UpdateCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	category, err := s.taxonomyService.UpdateCategory(c.UserContext(), c.Params("slug"), req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(category)
}

// DeleteCategory handles DELETE /api/categories/:slug
func (s *Server) DeleteCategory(c *fiber.Ctx) error {
	if err := s.taxonomyService.DeleteCategory(c.UserContext(), c.Params("slug")); err != nil {
		return s.respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type tagRequest struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

func (r tagRequest) input() service.TagInput {
	return service.TagInput{Name: r.Name, Slug: r.Slug, Description: r.Description, Color: r.Color}
}

// GetTags handles GET /api/tags
func (s *Server) GetTags(c *fiber.Ctx) error {
	tags, err := s.taxonomyService.ListTags(c.UserContext())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(tags)
}

// GetTag handles GET /api/tags/:slug
func (s *Server) GetTag(c *fiber.Ctx) error {
	tag, err := s.taxonomyService.GetTag(c.UserContext(), c.Params("slug"))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(tag)
}

// CreateTag handles POST /api/tags
func (s *Server) CreateTag(c *fiber.Ctx) error {
	var req tagRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	tag, err := s.taxonomyService.CreateTag(c.UserContext(), req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tag)
}

// UpdateTag handles PUT|PATCH /api/tags/:slug
func (s *Server) UpdateTag(c *fiber.Ctx) error {
	var req tagRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	tag, err := s.taxonomyService.UpdateTag(c.UserContext(), c.Params("slug"), req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(tag)
}

// DeleteTag handles DELETE /api/tags/:slug
func (s *Server) DeleteTag(c *fiber.Ctx) error {
	if err := s.taxonomyService.DeleteTag(c.UserContext(), c.Params("slug")); err != nil {
		return s.respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
