package server

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	wsTicketPrefix  = "ws_ticket:"
	blacklistPrefix = "blacklist:"
)

// AuthRequired returns the authentication middleware. WebSocket routes
// authenticate with a single-use ticket, everything else with a bearer token.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws/")

		if ticket := c.Query("ticket"); ticket != "" && s.redis != nil {
			raw, err := s.redis.GetDel(c.Context(), wsTicketPrefix+ticket).Result()
			if err == nil {
				if userID, parseErr := strconv.ParseUint(raw, 10, 32); parseErr == nil {
					return s.authenticate(c, uint(userID))
				}
			}
			if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}

		claims, err := middleware.ParseToken(s.config.JWTSecret, middleware.BearerToken(c))
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(authErrorMessage(err)))
		}
		if s.isRevoked(c.Context(), claims.JTI) {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Token has been revoked"))
		}

		c.Locals("claims", claims)
		return s.authenticate(c, claims.UserID)
	}
}

func authErrorMessage(err error) string {
	if errors.Is(err, middleware.ErrMissingToken) {
		return "Authorization required"
	}
	return "Invalid or expired token"
}

// authenticate loads the user and stores it on the request.
func (s *Server) authenticate(c *fiber.Ctx, userID uint) error {
	user, err := s.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		if appErr, ok := models.AsAppError(err); ok && appErr.Code == models.CodeNotFound {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("User no longer exists"))
		}
		return s.respondServiceError(c, err)
	}

	c.Locals("userID", user.ID)
	c.Locals("user", user)
	// Sync to UserContext for logging and downstream services
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, user.ID)
	c.SetUserContext(ctx)
	return c.Next()
}

func (s *Server) isRevoked(ctx context.Context, jti string) bool {
	if jti == "" || s.redis == nil {
		return false
	}
	n, err := s.redis.Exists(ctx, blacklistPrefix+jti).Result()
	return err == nil && n > 0
}

// revoke blacklists a token id until the token would have expired anyway.
func (s *Server) revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" || s.redis == nil {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.redis.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// AdminRequired returns middleware that rejects non-staff users with 403.
// Must be placed after AuthRequired so that the user is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := currentUser(c)
		if user == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		if !user.IsStaff {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}

// viewer describes the caller. Public routes accept an optional bearer token;
// a missing, invalid or revoked token means an anonymous visitor.
func (s *Server) viewer(c *fiber.Ctx) service.Viewer {
	if user := currentUser(c); user != nil {
		return service.Viewer{UserID: user.ID, IsStaff: user.IsStaff}
	}
	tok := middleware.BearerToken(c)
	if tok == "" {
		return service.Viewer{}
	}
	claims, err := middleware.ParseToken(s.config.JWTSecret, tok)
	if err != nil || s.isRevoked(c.Context(), claims.JTI) {
		return service.Viewer{}
	}
	user, err := s.userRepo.GetByID(c.Context(), claims.UserID)
	if err != nil {
		return service.Viewer{}
	}
	c.Locals("userID", user.ID)
	c.Locals("user", user)
	return service.Viewer{UserID: user.ID, IsStaff: user.IsStaff}
}

// unlocker checks the visitor session for unlocked protected items.
func (s *Server) unlocker(c *fiber.Ctx) service.Unlocker {
	return func(kind string, id uint, passwordUpdatedAt *time.Time) bool {
		return s.gate.IsVerified(c, kind, id, passwordUpdatedAt)
	}
}
