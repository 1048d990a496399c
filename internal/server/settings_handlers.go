package server

import (
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type settingsRequest struct {
	SiteName                *string `json:"site_name"`
	SiteDescription         *string `json:"site_description"`
	SiteKeywords            *string `json:"site_keywords"`
	SiteIcon                *string `json:"site_icon"`
	AboutContent            *string `json:"about_content"`
	EnableEmailNotification *bool   `json:"enable_email_notification"`
	EmailHost               *string `json:"email_host"`
	EmailPort               *int    `json:"email_port"`
	EmailUseTLS             *bool   `json:"email_use_tls"`
	EmailUseSSL             *bool   `json:"email_use_ssl"`
	EmailHostUser           *string `json:"email_host_user"`
	EmailHostPassword       *string `json:"email_host_password"`
	EmailFrom               *string `json:"email_from"`
}

// GetSettings handles GET /api/settings
// @Summary Site settings
// @Description Public site settings. The SMTP password is never returned.
// @Tags settings
// @Produce json
// @Success 200 {object} models.SiteSettings
// @Router /settings [get]
func (s *Server) GetSettings(c *fiber.Ctx) error {
	settings, err := s.settingsService.Get(c.UserContext())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(settings)
}

// UpdateSettings handles PUT|PATCH /api/settings. A blank password keeps
// the stored one.
func (s *Server) UpdateSettings(c *fiber.Ctx) error {
	var req settingsRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	settings, err := s.settingsService.Update(c.UserContext(), service.SettingsInput(req))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(settings)
}

// SendTestEmail handles POST /api/settings/test_email
// @Summary Send a test email
// @Description Sends synchronously with the resolved mail configuration and returns the log rows.
// @Tags settings
// @Accept json
// @Security BearerAuth
// @Param request body object{recipient=string} true "Recipient"
// @Success 200 {object} object{success=bool,logs=[]models.EmailLog}
// @Router /settings/test_email [post]
func (s *Server) SendTestEmail(c *fiber.Ctx) error {
	var req struct {
		Recipient string `json:"recipient"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.Recipient == "" {
		req.Recipient = currentUser(c).Email
	}

	logs, err := s.emailService.SendTest(c.UserContext(), req.Recipient, s.settingsService.SiteName(c.UserContext()))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	// delivery failures are recorded on the log rows, not returned
	success := len(logs) > 0
	for _, l := range logs {
		if l.Status != models.EmailStatusSuccess {
			success = false
		}
	}
	return c.JSON(fiber.Map{
		"success": success,
		"logs":    logs,
	})
}

type navigationRequest struct {
	Name         *string `json:"name"`
	URL          *string `json:"url"`
	IsVisible    *bool   `json:"is_visible"`
	IsAccessible *bool   `json:"is_accessible"`
	Order        *int    `json:"order"`
}

func (r navigationRequest) input() service.NavigationInput {
	return service.NavigationInput(r)
}

// GetNavigation handles GET /api/navigation
func (s *Server) GetNavigation(c *fiber.Ctx) error {
	items, err := s.settingsService.VisibleNavigation(c.UserContext())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(items)
}

// GetAllNavigation handles GET /api/admin/navigation
func (s *Server) GetAllNavigation(c *fiber.Ctx) error {
	items, err := s.settingsService.AllNavigation(c.UserContext())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(items)
}

// CheckNavigationAccess handles GET /api/navigation/check_access?url=
func (s *Server) CheckNavigationAccess(c *fiber.Ctx) error {
	res, err := s.settingsService.CheckAccess(c.UserContext(), c.Query("url"))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(res)
}

// InitializeNavigation handles POST /api/navigation/initialize
func (s *Server) InitializeNavigation(c *fiber.Ctx) error {
	created, err := s.settingsService.InitializeNavigation(c.UserContext())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"created": created})
}

func (s *Server) CreateNavigationItem(c *fiber.Ctx) error {
	var req navigationRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	item, err := s.settingsService.CreateNavigation(c.UserContext(), req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (s *Server) UpdateNavigationItem(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req navigationRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	item, err := s.settingsService.UpdateNavigation(c.UserContext(), id, req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(item)
}

func (s *Server) DeleteNavigationItem(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.settingsService.DeleteNavigation(c.UserContext(), id); err != nil {
		return s.respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
