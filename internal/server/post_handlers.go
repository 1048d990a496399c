package server

import (
	"strings"
	"time"

	"inkwell/internal/access"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type postRequest struct {
	Title        *string    `json:"title"`
	Slug         *string    `json:"slug"`
	Excerpt      *string    `json:"excerpt"`
	Content      *string    `json:"content"`
	Cover        *string    `json:"cover"`
	Category     optionalID `json:"category"`
	Tags         *[]uint    `json:"tags"`
	Status       *string    `json:"status"`
	IsTop        *bool      `json:"is_top"`
	IsOriginal   *bool      `json:"is_original"`
	AllowComment *bool      `json:"allow_comment"`
	IsEncrypted  *bool      `json:"is_encrypted"`
	Password     *string    `json:"password"`
	PublishedAt  *time.Time `json:"published_at"`
}

func (r postRequest) input() service.PostInput {
	return service.PostInput{
		Title:        r.Title,
		Slug:         r.Slug,
		Excerpt:      r.Excerpt,
		Content:      r.Content,
		Cover:        r.Cover,
		CategoryID:   r.Category.Value,
		CategorySet:  r.Category.Set,
		TagIDs:       r.Tags,
		Status:       r.Status,
		IsTop:        r.IsTop,
		IsOriginal:   r.IsOriginal,
		AllowComment: r.AllowComment,
		IsEncrypted:  r.IsEncrypted,
		Password:     r.Password,
		PublishedAt:  r.PublishedAt,
	}
}

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Paginated posts. Non-staff callers only see published posts.
// @Tags posts
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Param category query string false "Category id or slug"
// @Param tags query string false "Comma separated tag ids or slugs"
// @Param search query string false "Search title, excerpt and content"
// @Param ordering query string false "created_at, published_at, views or likes, optionally prefixed with -"
// @Success 200 {object} object{count=int,next=string,previous=string,results=[]service.PostListItem}
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePage(c, defaultPageSize)
	q := service.PostQuery{
		Category: strings.TrimSpace(c.Query("category")),
		Tags:     tagFilter(c),
		Search:   c.Query("search"),
		Status:   c.Query("status"),
		Ordering: c.Query("ordering"),
		Limit:    page.Size,
		Offset:   page.Offset(),
	}
	if author, ok := queryUint(c, "author"); ok {
		q.AuthorID = author
	}

	posts, total, err := s.postService.List(c.UserContext(), s.viewer(c), q)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return respondPage(c, page, total, posts)
}

// tagFilter collects ?tags=a,b and repeated ?tag= values.
func tagFilter(c *fiber.Ctx) []string {
	var out []string
	for _, raw := range strings.Split(c.Query("tags"), ",") {
		if v := strings.TrimSpace(raw); v != "" {
			out = append(out, v)
		}
	}
	for _, raw := range c.Context().QueryArgs().PeekMulti("tag") {
		if v := strings.TrimSpace(string(raw)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// GetPost handles GET /api/posts/:slug
// @Summary Get post
// @Description Returns the post and records a view. Protected posts hide their body until unlocked.
// @Tags posts
// @Produce json
// @Param slug path string true "Post slug"
// @Success 200 {object} service.PostDetail
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{slug} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	visit := &service.Visit{IP: c.IP(), UserAgent: c.Get(fiber.HeaderUserAgent)}
	post, err := s.postService.Get(c.UserContext(), c.Params("slug"), s.viewer(c), s.unlocker(c), visit)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req postRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	post, err := s.postService.Create(c.UserContext(), c.Locals("userID").(uint), req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT|PATCH /api/posts/:slug
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	var req postRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	post, err := s.postService.Update(c.UserContext(), c.Params("slug"), req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:slug
func (s *Server) DeletePost(c *fiber.Ctx) error {
	if err := s.postService.Delete(c.UserContext(), c.Params("slug")); err != nil {
		return s.respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LikePost handles POST /api/posts/:slug/like
// @Summary Toggle post like
// @Tags posts
// @Security BearerAuth
// @Param slug path string true "Post slug"
// @Success 200 {object} service.LikeResult
// @Router /posts/{slug}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	res, err := s.postService.ToggleLike(c.UserContext(), c.Params("slug"), c.Locals("userID").(uint))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(res)
}

// VerifyPostPassword handles POST /api/posts/:slug/verify_password
// @Summary Unlock a protected post
// @Description On success the session cookie remembers the unlock until the password changes.
// @Tags posts
// @Accept json
// @Param slug path string true "Post slug"
// @Param request body object{password=string} true "Password"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/{slug}/verify_password [post]
func (s *Server) VerifyPostPassword(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	post, err := s.postService.VerifyPassword(c.UserContext(), c.Params("slug"), s.viewer(c), req.Password)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	if err := s.gate.MarkVerified(c, access.KindPost, post.ID, post.PasswordUpdatedAt); err != nil {
		return s.respondServiceError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"success": true, "message": "Password verified"})
}

// GetRelatedPosts handles GET /api/posts/:slug/related
func (s *Server) GetRelatedPosts(c *fiber.Ctx) error {
	posts, err := s.postService.Related(c.UserContext(), c.Params("slug"), s.viewer(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// GetArchives handles GET /api/posts/archives
func (s *Server) GetArchives(c *fiber.Ctx) error {
	archives, err := s.postService.Archives(c.UserContext(), s.viewer(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(archives)
}

// GetHotPosts handles GET /api/posts/hot
// @Summary Hot posts
// @Description Top ten published posts by views, likes and comments, decayed by age. Computed per request.
// @Tags posts
// @Produce json
// @Success 200 {array} service.HotPost
// @Router /posts/hot [get]
func (s *Server) GetHotPosts(c *fiber.Ctx) error {
	posts, err := s.postService.Hot(c.UserContext())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(posts)
}

// GetSearchSuggestions handles GET /api/posts/search_suggestions?q=
func (s *Server) GetSearchSuggestions(c *fiber.Ctx) error {
	suggestions, err := s.postService.SearchSuggestions(c.UserContext(), c.Query("q"))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(suggestions)
}

type draftRequest struct {
	Title    *string    `json:"title"`
	Content  *string    `json:"content"`
	Excerpt  *string    `json:"excerpt"`
	Category optionalID `json:"category"`
	Tags     *[]uint    `json:"tags"`
}

func (r draftRequest) input() service.DraftInput {
	return service.DraftInput{
		Title:       r.Title,
		Content:     r.Content,
		Excerpt:     r.Excerpt,
		CategoryID:  r.Category.Value,
		CategorySet: r.Category.Set,
		TagIDs:      r.Tags,
	}
}

// AutosaveNewPost handles POST /api/posts/autosave
func (s *Server) AutosaveNewPost(c *fiber.Ctx) error {
	return s.autosave(c, "")
}

// AutosavePost handles PATCH /api/posts/:slug/autosave
func (s *Server) AutosavePost(c *fiber.Ctx) error {
	return s.autosave(c, c.Params("slug"))
}

func (s *Server) autosave(c *fiber.Ctx, slug string) error {
	var req draftRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	userID := c.Locals("userID").(uint)
	res, err := s.postService.Autosave(c.UserContext(), userID, slug, req.input())
	if err != nil {
		return s.respondServiceError(c, err)
	}
	middleware.Logger.DebugContext(c.UserContext(), "draft autosaved", "post_id", res.ID)
	status := fiber.StatusOK
	if slug == "" {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(res)
}
