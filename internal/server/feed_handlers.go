package server

import (
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	mimeRSS  = "application/rss+xml; charset=utf-8"
	mimeAtom = "application/atom+xml; charset=utf-8"
)

// PostsFeed handles GET /feed/posts
func (s *Server) PostsFeed(c *fiber.Ctx) error {
	return s.renderFeed(c, service.FormatRSS, func(format string) (string, error) {
		return s.feedService.Posts(c.UserContext(), format)
	})
}

// PostsAtomFeed handles GET /feed/posts/atom
func (s *Server) PostsAtomFeed(c *fiber.Ctx) error {
	return s.renderFeed(c, service.FormatAtom, func(format string) (string, error) {
		return s.feedService.Posts(c.UserContext(), format)
	})
}

// CategoryFeed handles GET /feed/category/:slug. ?format=atom switches to Atom.
func (s *Server) CategoryFeed(c *fiber.Ctx) error {
	slug := c.Params("slug")
	return s.renderFeed(c, feedFormat(c), func(format string) (string, error) {
		return s.feedService.Category(c.UserContext(), slug, format)
	})
}

// CommentsFeed handles GET /feed/comments
func (s *Server) CommentsFeed(c *fiber.Ctx) error {
	return s.renderFeed(c, feedFormat(c), func(format string) (string, error) {
		return s.feedService.Comments(c.UserContext(), format)
	})
}

func feedFormat(c *fiber.Ctx) string {
	if c.Query("format") == service.FormatAtom {
		return service.FormatAtom
	}
	return service.FormatRSS
}

func (s *Server) renderFeed(c *fiber.Ctx, format string, render func(string) (string, error)) error {
	body, err := render(format)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	contentType := mimeRSS
	if format == service.FormatAtom {
		contentType = mimeAtom
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.SendString(body)
}
