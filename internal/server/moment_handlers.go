package server

import (
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type momentRequest struct {
	Content    *string   `json:"content"`
	Images     *[]string `json:"images"`
	Location   *string   `json:"location"`
	Visibility *string   `json:"visibility"`
}

func (r momentRequest) input() service.MomentInput {
	return service.MomentInput{
		Content:    r.Content,
		Images:     r.Images,
		Location:   r.Location,
		Visibility: r.Visibility,
	}
}

// GetMoments handles GET /api/moments
// @Summary List moments
// @Description Public moments plus the caller's own private ones, newest first
// @Tags moments
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} object{count=int,next=string,previous=string,results=[]service.MomentView}
// @Router /moments [get]
func (s *Server) GetMoments(c *fiber.Ctx) error {
	page := parsePage(c, defaultPageSize)
	moments, total, err := s.momentService.List(c.UserContext(), s.viewer(c), page.Size, page.Offset())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return respondPage(c, page, total, moments)
}

// GetMoment handles GET /api/moments/:id
func (s *Server) GetMoment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	moment, err := s.momentService.Get(c.UserContext(), s.viewer(c), id)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(moment)
}

// CreateMoment handles POST /api/moments
func (s *Server) CreateMoment(c *fiber.Ctx) error {
	var req momentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	moment, err := s.momentService.Create(c.UserContext(), s.viewer(c), req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(moment)
}

// UpdateMoment handles PUT|PATCH /api/moments/:id
func (s *Server) UpdateMoment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req momentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	moment, err := s.momentService.Update(c.UserContext(), s.viewer(c), id, req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(moment)
}

// DeleteMoment handles DELETE /api/moments/:id
func (s *Server) DeleteMoment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.momentService.Delete(c.UserContext(), s.viewer(c), id); err != nil {
		return s.respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LikeMoment handles POST /api/moments/:id/like
func (s *Server) LikeMoment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.momentService.ToggleLike(c.UserContext(), s.viewer(c), id)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(res)
}
