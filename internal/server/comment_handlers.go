package server

import (
	"strconv"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/comments?content_type=post&object_id=1
// @Summary List comments
// @Description Approved top-level comments of a target with nested replies. Without a target, the latest approved comments.
// @Tags comments
// @Produce json
// @Param content_type query string false "post, moment or album"
// @Param object_id query int false "Target id"
// @Success 200 {array} service.CommentView
// @Router /comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	kind := strings.TrimSpace(c.Query("content_type"))
	var objectID uint
	if raw := c.Query("object_id"); raw != "" {
		id, ok := queryUint(c, "object_id")
		if !ok {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewFieldValidationError("object_id", "object_id must be a positive integer"))
		}
		objectID = id
	}

	comments, err := s.commentService.List(c.UserContext(), s.viewer(c), kind, objectID)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/comments
// @Summary Create comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{content_type=string,object_id=int,content=string,parent=int} true "Comment"
// @Success 201 {object} service.CommentView
// @Failure 400 {object} models.ErrorResponse
// @Router /comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req struct {
		ContentType string `json:"content_type"`
		ObjectID    uint   `json:"object_id"`
		Content     string `json:"content"`
		Parent      *uint  `json:"parent"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.commentService.Create(c.UserContext(), s.viewer(c), service.CommentInput{
		ContentType: strings.TrimSpace(req.ContentType),
		ObjectID:    req.ObjectID,
		Content:     req.Content,
		ParentID:    req.Parent,
		IP:          c.IP(),
		UserAgent:   c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// UpdateComment handles PUT|PATCH /api/comments/:id
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.commentService.Update(c.UserContext(), s.viewer(c), id, req.Content)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(comment)
}

// DeleteComment handles DELETE /api/comments/:id
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.commentService.Delete(c.UserContext(), s.viewer(c), id); err != nil {
		return s.respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LikeComment handles POST /api/comments/:id/like
func (s *Server) LikeComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.commentService.ToggleLike(c.UserContext(), s.viewer(c), id)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(res)
}

// GetModerationQueue handles GET /api/admin/comments?approved=false
func (s *Server) GetModerationQueue(c *fiber.Ctx) error {
	var approved *bool
	if raw := c.Query("approved"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewFieldValidationError("approved", "approved must be true or false"))
		}
		approved = &v
	}
	page := parsePage(c, defaultPageSize)

	comments, total, err := s.commentService.ListForModeration(c.UserContext(), approved, page.Size, page.Offset())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return respondPage(c, page, total, comments)
}

// ApproveComment handles POST /api/admin/comments/:id/approve
func (s *Server) ApproveComment(c *fiber.Ctx) error {
	return s.moderate(c, true)
}

// RejectComment handles POST /api/admin/comments/:id/reject
func (s *Server) RejectComment(c *fiber.Ctx) error {
	return s.moderate(c, false)
}

func (s *Server) moderate(c *fiber.Ctx, approved bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	comment, err := s.commentService.Moderate(c.UserContext(), id, approved)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(comment)
}
