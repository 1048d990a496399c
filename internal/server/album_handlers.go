package server

import (
	"strings"

	"inkwell/internal/access"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type albumRequest struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	Cover       *string `json:"cover"`
	Order       *int    `json:"order"`
	IsEncrypted *bool   `json:"is_encrypted"`
	Password    *string `json:"password"`
}

func (r albumRequest) input() service.AlbumInput {
	return service.AlbumInput{
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		Cover:       r.Cover,
		Order:       r.Order,
		IsEncrypted: r.IsEncrypted,
		Password:    r.Password,
	}
}

// GetAlbums handles GET /api/albums
// @Summary List albums
// @Description Albums with their photos. Photos of locked albums are omitted.
// @Tags albums
// @Produce json
// @Success 200 {array} service.AlbumView
// @Router /albums [get]
func (s *Server) GetAlbums(c *fiber.Ctx) error {
	albums, err := s.albumService.List(c.UserContext(), s.viewer(c), s.unlocker(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(albums)
}

// GetAlbum handles GET /api/albums/:slug
func (s *Server) GetAlbum(c *fiber.Ctx) error {
	album, err := s.albumService.Get(c.UserContext(), c.Params("slug"), s.viewer(c), s.unlocker(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(album)
}

// CreateAlbum handles POST /api/albums
func (s *Server) CreateAlbum(c *fiber.Ctx) error {
	var req albumRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	album, err := s.albumService.Create(c.UserContext(), c.Locals("userID").(uint), req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(album)
}

// UpdateAlbum handles PUT|PATCH /api/albums/:slug
func (s *Server) UpdateAlbum(c *fiber.Ctx) error {
	var req albumRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	album, err := s.albumService.Update(c.UserContext(), c.Params("slug"), req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(album)
}

// DeleteAlbum handles DELETE /api/albums/:slug
func (s *Server) DeleteAlbum(c *fiber.Ctx) error {
	if err := s.albumService.Delete(c.UserContext(), c.Params("slug")); err != nil {
		return s.respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// VerifyAlbumPassword handles POST /api/albums/:slug/verify_password
func (s *Server) VerifyAlbumPassword(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	album, err := s.albumService.VerifyPassword(c.UserContext(), c.Params("slug"), req.Password)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	if err := s.gate.MarkVerified(c, access.KindAlbum, album.ID, album.PasswordUpdatedAt); err != nil {
		return s.respondServiceError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"success": true, "message": "Password verified"})
}

type photoRequest struct {
	Title       *string `json:"title"`
	Image       *string `json:"image"`
	Thumbnail   *string `json:"thumbnail"`
	Description *string `json:"description"`
	Order       *int    `json:"order"`
}

func (r photoRequest) input() service.PhotoInput {
	return service.PhotoInput{
		Title:       r.Title,
		Image:       r.Image,
		Thumbnail:   r.Thumbnail,
		Description: r.Description,
		Order:       r.Order,
	}
}

// GetPhotos handles GET /api/photos?album=slug. Without an album it lists
// the photos of every album the caller can open.
func (s *Server) GetPhotos(c *fiber.Ctx) error {
	albumSlug := strings.TrimSpace(c.Query("album"))
	photos, err := s.albumService.ListPhotos(c.UserContext(), albumSlug, s.viewer(c), s.unlocker(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(photos)
}

// GetPhoto handles GET /api/photos/:id
func (s *Server) GetPhoto(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	photo, err := s.albumService.GetPhoto(c.UserContext(), id, s.viewer(c), s.unlocker(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(photo)
}

// AddPhoto handles POST /api/albums/:slug/photos
func (s *Server) AddPhoto(c *fiber.Ctx) error {
	var req photoRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	photo, err := s.albumService.AddPhoto(c.UserContext(), c.Params("slug"), req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(photo)
}

// UpdatePhoto handles PUT|PATCH /api/photos/:id
func (s *Server) UpdatePhoto(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req photoRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	photo, err := s.albumService.UpdatePhoto(c.UserContext(), id, req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(photo)
}

// DeletePhoto handles DELETE /api/photos/:id
func (s *Server) DeletePhoto(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.albumService.DeletePhoto(c.UserContext(), id); err != nil {
		return s.respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
