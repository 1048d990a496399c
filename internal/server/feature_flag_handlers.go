package server

import (
	"inkwell/internal/featureflags"

	"github.com/gofiber/fiber/v2"
)

// featureFlagView is one flag as the admin dashboard shows it.
type featureFlagView struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
	Overridden  bool   `json:"overridden"`
	Known       bool   `json:"known"`
}

// GetFeatureFlags handles GET /api/admin/feature-flags
// @Summary Feature flags
// @Description Every configured flag with its default and state for the caller. Flags the blog never consults have known=false, which catches typos in FEATURE_FLAGS.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	flags := []featureFlagView{}
	if s.featureFlags == nil {
		return c.JSON(fiber.Map{"flags": flags})
	}

	userID := s.viewer(c).UserID
	raw := s.featureFlags.Raw()
	for _, name := range s.featureFlags.Names() {
		def, known := featureflags.Default(name)
		flags = append(flags, featureFlagView{
			Name:        name,
			Value:       raw[name],
			Default:     def,
			Description: featureflags.Describe(name),
			Enabled:     s.featureFlags.Enabled(name, userID),
			Overridden:  known && raw[name] != def,
			Known:       known,
		})
	}
	return c.JSON(fiber.Map{"flags": flags})
}
