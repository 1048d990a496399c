package server

import (
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetLinkCategories handles GET /api/link-categories
// @Summary List link categories
// @Description Categories with nested links. Visitors only see visible links and non-empty categories.
// @Tags links
// @Produce json
// @Success 200 {array} models.LinkCategory
// @Router /link-categories [get]
func (s *Server) GetLinkCategories(c *fiber.Ctx) error {
	categories, err := s.linkService.Categories(c.UserContext(), s.viewer(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(categories)
}

// GetLinkCategory handles GET /api/link-categories/:id
func (s *Server) GetLinkCategory(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	category, err := s.linkService.Category(c.UserContext(), s.viewer(c), id)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(category)
}

type linkCategoryRequest struct {
	Name  *string `json:"name"`
	Order *int    `json:"order"`
}

func (s *Server) CreateLinkCategory(c *fiber.Ctx) error {
	var req linkCategoryRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	category, err := s.linkService.CreateCategory(c.UserContext(), service.LinkCategoryInput{Name: req.Name, Order: req.Order})
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

func (s *Server) UpdateLinkCategory(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req linkCategoryRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	category, err := s.linkService.UpdateCategory(c.UserContext(), id, service.LinkCategoryInput{Name: req.Name, Order: req.Order})
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(category)
}

func (s *Server) DeleteLinkCategory(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.linkService.DeleteCategory(c.UserContext(), id); err != nil {
		return s.respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type linkRequest struct {
	Name        *string    `json:"name"`
	URL         *string    `json:"url"`
	Description *string    `json:"description"`
	Logo        *string    `json:"logo"`
	Category    optionalID `json:"category"`
	Order       *int       `json:"order"`
	IsVisible   *bool      `json:"is_visible"`
}

func (r linkRequest) input() service.LinkInput {
	return service.LinkInput{
		Name:        r.Name,
		URL:         r.URL,
		Description: r.Description,
		Logo:        r.Logo,
		CategoryID:  r.Category.Value,
		CategorySet: r.Category.Set,
		Order:       r.Order,
		IsVisible:   r.IsVisible,
	}
}

// GetLinks handles GET /api/links?category=
func (s *Server) GetLinks(c *fiber.Ctx) error {
	var categoryID *uint
	if c.Query("category") != "" {
		id, ok := queryUint(c, "category")
		if !ok {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewFieldValidationError("category", "category must be a positive integer"))
		}
		categoryID = &id
	}
	links, err := s.linkService.List(c.UserContext(), s.viewer(c), categoryID)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(links)
}

// GetLink handles GET /api/links/:id
func (s *Server) GetLink(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	link, err := s.linkService.Get(c.UserContext(), s.viewer(c), id)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(link)
}

func (s *Server) CreateLink(c *fiber.Ctx) error {
	var req linkRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	link, err := s.linkService.Create(c.UserContext(), req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(link)
}

func (s *Server) UpdateLink(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req linkRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	link, err := s.linkService.Update(c.UserContext(), id, req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(link)
}

func (s *Server) DeleteLink(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.linkService.Delete(c.UserContext(), id); err != nil {
		return s.respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
