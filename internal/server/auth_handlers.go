package server

import (
	"strconv"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const wsTicketTTL = 30 * time.Second

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles POST /api/auth/register
// @Summary Register
// @Description Create a regular account and return an access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,password=string} true "Registration request"
// @Success 201 {object} object{token=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Register(c.UserContext(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return s.respondServiceError(c, err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(authResponse{Token: token, User: user})
}

// Login handles POST /api/auth/login
// @Summary Login
// @Description Authenticate with username or email and return a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,password=string} true "Credentials"
// @Success 200 {object} object{token=string,user=models.User}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	login := req.Username
	if login == "" {
		login = req.Email
	}
	user, err := s.userService.Authenticate(c.UserContext(), login, req.Password)
	if err != nil {
		return s.respondServiceError(c, err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	middleware.Logger.InfoContext(c.UserContext(), "user logged in", "user_id", user.ID)
	return c.JSON(authResponse{Token: token, User: user})
}

// Refresh handles POST /api/auth/refresh. The presented token is revoked
// and a fresh one issued.
func (s *Server) Refresh(c *fiber.Ctx) error {
	user := currentUser(c)
	if claims, ok := c.Locals("claims").(*middleware.TokenClaims); ok {
		if err := s.revoke(c.Context(), claims.JTI, claims.ExpiresAt); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "failed to revoke refreshed token", "error", err)
		}
	}

	token, err := s.generateToken(user)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(authResponse{Token: token, User: user})
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Tags auth
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if claims, ok := c.Locals("claims").(*middleware.TokenClaims); ok {
		if err := s.revoke(c.Context(), claims.JTI, claims.ExpiresAt); err != nil {
			return s.respondServiceError(c, models.NewInternalError(err))
		}
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// IssueWSTicket handles POST /api/ws/ticket. The ticket authenticates one
// WebSocket upgrade within 30 seconds.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(errRedisUnavailable))
	}
	ticket := uuid.NewString()
	userID := c.Locals("userID").(uint)
	if err := s.redis.Set(c.Context(), wsTicketPrefix+ticket, strconv.FormatUint(uint64(userID), 10), wsTicketTTL).Err(); err != nil {
		return s.respondServiceError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

func (s *Server) generateToken(user *models.User) (string, error) {
	if s.config.JWTSecret == "" {
		return "", models.NewInternalError(errJWTSecretMissing)
	}
	token, err := middleware.IssueToken(s.config.JWTSecret, user.ID, user.Username)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return token, nil
}
