package server

import (
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type musicRequest struct {
	Title       *string `json:"title"`
	Artist      *string `json:"artist"`
	Album       *string `json:"album"`
	AudioFile   *string `json:"audio_file"`
	Cover       *string `json:"cover"`
	Lyrics      *string `json:"lyrics"`
	Order       *int    `json:"order"`
	IsPublished *bool   `json:"is_published"`
	Duration    *int    `json:"duration"`
}

func (r musicRequest) input() service.MusicInput {
	return service.MusicInput{
		Title:       r.Title,
		Artist:      r.Artist,
		Album:       r.Album,
		AudioFile:   r.AudioFile,
		Cover:       r.Cover,
		Lyrics:      r.Lyrics,
		Order:       r.Order,
		IsPublished: r.IsPublished,
		Duration:    r.Duration,
	}
}

// GetMusic handles GET /api/music
func (s *Server) GetMusic(c *fiber.Ctx) error {
	tracks, err := s.musicService.List(c.UserContext(), s.viewer(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(tracks)
}

// GetTrack handles GET /api/music/:id
func (s *Server) GetTrack(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	track, err := s.musicService.Get(c.UserContext(), s.viewer(c), id)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(track)
}

func (s *Server) CreateMusic(c *fiber.Ctx) error {
	var req musicRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	track, err := s.musicService.Create(c.UserContext(), c.Locals("userID").(uint), req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(track)
}

func (s *Server) UpdateMusic(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req musicRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	track, err := s.musicService.Update(c.UserContext(), id, req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(track)
}

func (s *Server) DeleteMusic(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.musicService.Delete(c.UserContext(), id); err != nil {
		return s.respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
