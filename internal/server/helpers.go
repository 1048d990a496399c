// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"inkwell/internal/config"
	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

var (
	errRedisUnavailable = errors.New("redis is not configured")
	errJWTSecretMissing = errors.New("JWT secret not configured")
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Page holds parsed page/page_size query parameters.
type Page struct {
	Number int
	Size   int
}

// Offset is the number of rows before this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PageResponse is the paginated list envelope.
type PageResponse[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// parsePage extracts page and page_size with the given default size.
func parsePage(c *fiber.Ctx, defaultSize int) Page {
	size := c.QueryInt("page_size", defaultSize)
	if size <= 0 {
		size = defaultSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	number := c.QueryInt("page", 1)
	if number < 1 {
		number = 1
	}
	return Page{Number: number, Size: size}
}

// respondPage writes results with count and next/previous links.
func respondPage[T any](c *fiber.Ctx, p Page, total int64, results []T) error {
	if results == nil {
		results = []T{}
	}
	resp := PageResponse[T]{Count: total, Results: results}
	if int64(p.Number*p.Size) < total {
		resp.Next = pageLink(c, p.Number+1)
	}
	if p.Number > 1 {
		resp.Previous = pageLink(c, p.Number-1)
	}
	return c.JSON(resp)
}

func pageLink(c *fiber.Ctx, number int) *string {
	q, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		q = url.Values{}
	}
	if number <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(number))
	}
	link := c.BaseURL() + c.Path()
	if enc := q.Encode(); enc != "" {
		link += "?" + enc
	}
	return &link
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "photoId" -> "photo ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// parseBody decodes the request body into dst, writing a 400 on failure.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// respondServiceError maps an error returned by a service onto the API
// error envelope. Internal failures are logged and never leak their cause.
func (s *Server) respondServiceError(c *fiber.Ctx, err error) error {
	appErr, ok := models.AsAppError(err)
	if !ok {
		appErr = models.NewInternalError(err)
	}
	status := appErr.Status()
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			"path", c.Path(), "method", c.Method(), "error", err)
	}
	return models.RespondWithError(c, status, appErr)
}

// fiberConfig builds the app config. The forwarded client address is
// only believed when the direct peer is a configured proxy.
func fiberConfig(cfg *config.Config, bodyLimit int, onError fiber.ErrorHandler) fiber.Config {
	fc := fiber.Config{
		AppName:      "inkwell API",
		BodyLimit:    bodyLimit,
		ErrorHandler: onError,
	}
	if proxies := cfg.TrustedProxyList(); len(proxies) > 0 {
		fc.EnableTrustedProxyCheck = true
		fc.TrustedProxies = proxies
		fc.ProxyHeader = fiber.HeaderXForwardedFor
		fc.EnableIPValidation = true
	}
	return fc
}

// optionalID tells an absent JSON key from an explicit null.
type optionalID struct {
	Set   bool
	Value *uint
}

func (o *optionalID) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v uint
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// queryUint parses an optional numeric query parameter.
func queryUint(c *fiber.Ctx, key string) (uint, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}
