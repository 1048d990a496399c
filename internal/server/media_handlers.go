package server

import (
	"fmt"
	"io"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadMedia handles POST /api/media
// @Summary Upload an image
// @Description Stores a JPEG master and a WebP thumbnail. Re-uploading identical bytes returns the existing asset.
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image"
// @Param kind formData string false "image, cover, photo, avatar, moment, music_cover or link_logo"
// @Success 201 {object} service.UploadResult
// @Failure 400 {object} models.ErrorResponse
// @Router /media [post]
func (s *Server) UploadMedia(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewFieldValidationError("file", "no file uploaded"))
	}
	if file.Size > s.mediaService.MaxBytes() {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewFieldValidationError("file", fmt.Sprintf("file too large (max %dMB)", s.mediaService.MaxBytes()/(1024*1024))))
	}

	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewFieldValidationError("file", "unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(io.LimitReader(src, s.mediaService.MaxBytes()+1))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewFieldValidationError("file", "unable to read uploaded file"))
	}

	res, err := s.mediaService.Upload(c.UserContext(), service.UploadInput{
		UploaderID:  c.Locals("userID").(uint),
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Kind:        c.FormValue("kind"),
		Content:     content,
	})
	if err != nil {
		return s.respondServiceError(c, err)
	}

	status := fiber.StatusCreated
	if res.Deduplicated {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(res)
}
