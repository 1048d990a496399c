package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GetEmailLogs handles GET /api/admin/email-logs?status=&page=
// @Summary Email delivery log
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, success or failed"
// @Param page query int false "Page number"
// @Success 200 {object} object{count=int,next=string,previous=string,results=[]models.EmailLog}
// @Router /admin/email-logs [get]
func (s *Server) GetEmailLogs(c *fiber.Ctx) error {
	page := parsePage(c, 20)
	logs, total, err := s.emailService.Logs(c.UserContext(), strings.TrimSpace(c.Query("status")), page.Size, page.Offset())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return respondPage(c, page, total, logs)
}

// GetEmailLog handles GET /api/admin/email-logs/:id
func (s *Server) GetEmailLog(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	entry, err := s.emailService.Log(c.UserContext(), id)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(entry)
}
