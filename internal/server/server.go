// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "inkwell/docs" // swagger docs
	"inkwell/internal/access"
	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/featureflags"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	sessionCookieName = "inkwell_session"
	globalRateLimit   = 120
)

// Collectors register with the default Prometheus registry, so they are
// created once per process.
var (
	promOnce sync.Once
	promMW   *fiberprometheus.FiberPrometheus
)

func metricsCollector() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promMW = middleware.InitMetrics("inkwell-api")
	})
	return promMW
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	sessions     *session.Store
	gate         *access.Gate
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager

	userRepo repository.UserRepository

	postService         *service.PostService
	taxonomyService     *service.TaxonomyService
	commentService      *service.CommentService
	momentService       *service.MomentService
	albumService        *service.AlbumService
	musicService        *service.MusicService
	linkService         *service.LinkService
	settingsService     *service.SettingsService
	emailService        *service.EmailService
	notificationService *service.NotificationService
	userService         *service.UserService
	feedService         *service.FeedService
	mediaService        *service.MediaService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; without it caching is off and sessions live in memory.
	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if db == nil {
		return nil, errors.New("database is required")
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: metricsCollector(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
	}

	sessionCfg := session.Config{
		Expiration:     time.Duration(max(cfg.SessionTTLHrs, 1)) * time.Hour,
		KeyLookup:      "cookie:" + sessionCookieName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   cfg.IsProduction(),
	}
	if redisClient != nil {
		sessionCfg.Storage = cache.NewStorage(redisClient, "inkwell:session:")
	}
	s.sessions = session.New(sessionCfg)
	s.gate = access.NewGate(s.sessions, cfg.SessionSecret)

	var events service.EventPublisher
	if s.featureFlags.On(featureflags.LiveEvents) {
		events = s.notifier
	}

	s.userRepo = repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	tagRepo := repository.NewTagRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	momentRepo := repository.NewMomentRepository(db)
	albumRepo := repository.NewAlbumRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	s.settingsService = service.NewSettingsService(settingsRepo, repository.NewNavigationRepository(db), cache.NewStore(redisClient))
	s.emailService = service.NewEmailService(settingsRepo, repository.NewEmailLogRepository(db), nil, cfg, events)
	s.notificationService = service.NewNotificationService(s.emailService, s.settingsService, cfg.FrontendURL)
	s.postService = service.NewPostService(postRepo, categoryRepo, tagRepo, commentRepo, events, s.featureFlags)
	s.taxonomyService = service.NewTaxonomyService(categoryRepo, tagRepo)
	s.commentService = service.NewCommentService(commentRepo, postRepo, momentRepo, albumRepo, s.notificationService, events, s.featureFlags)
	s.momentService = service.NewMomentService(momentRepo, events)
	s.albumService = service.NewAlbumService(albumRepo)
	s.musicService = service.NewMusicService(repository.NewMusicRepository(db))
	s.linkService = service.NewLinkService(repository.NewLinkRepository(db))
	s.userService = service.NewUserService(s.userRepo)
	s.feedService = service.NewFeedService(postRepo, categoryRepo, commentRepo, momentRepo, albumRepo, s.settingsService, cfg.FrontendURL)
	s.mediaService = service.NewMediaService(repository.NewMediaRepository(db), cfg)

	return s, nil
}

// NewApp builds the Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiberConfig(s.config, int(s.mediaService.MaxBytes())+1024*1024, s.handleError))
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// handleError renders errors that escaped a handler in the API envelope.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := models.CodeInternal
		switch fe.Code {
		case fiber.StatusNotFound:
			code = models.CodeNotFound
		case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
			code = models.CodeValidation
		case fiber.StatusMethodNotAllowed:
			code = "METHOD_NOT_ALLOWED"
		}
		return models.RespondWithError(c, fe.Code, &models.AppError{Code: code, Message: fe.Message})
	}
	return s.respondServiceError(c, err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// the uploaded media is embedded cross-origin by the frontend
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so error responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-CSRFToken, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	limiterCfg := limiter.Config{
		Max:        globalRateLimit,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Too many requests, please try again later.",
				"code":    "RATE_LIMITED",
			})
		},
	}
	if s.redis != nil {
		limiterCfg.Storage = cache.NewStorage(s.redis, "inkwell:limiter:")
	}
	app.Use(limiter.New(limiterCfg))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	authed := s.AuthRequired()
	staff := s.AdminRequired()

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Static(s.mediaService.URLPrefix(), s.mediaService.Dir(), fiber.Static{
		MaxAge: int((30 * 24 * time.Hour).Seconds()),
	})

	feeds := app.Group("/feed")
	feeds.Get("/posts", s.PostsFeed)
	feeds.Get("/posts/atom", s.PostsAtomFeed)
	feeds.Get("/category/:slug", s.CategoryFeed)
	feeds.Get("/comments", s.CommentsFeed)

	api := app.Group("/api")
	api.Get("/", s.ReadinessCheck)
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "inkwell Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(s.redis, 3, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/refresh", authed, s.Refresh)
	auth.Post("/logout", authed, s.Logout)

	users := api.Group("/users")
	users.Get("/me", authed, s.GetMyProfile)
	users.Put("/me", authed, s.UpdateMyProfile)
	users.Patch("/me", authed, s.UpdateMyProfile)
	users.Get("/:id", s.GetUserProfile)

	likeLimit := middleware.RateLimit(s.redis, 30, time.Minute, "like")
	verifyLimit := middleware.RateLimit(s.redis, 10, 5*time.Minute, "verify_password")

	// Static post routes come before /:slug.
	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Get("/hot", s.GetHotPosts)
	posts.Get("/archives", s.GetArchives)
	posts.Get("/search_suggestions", s.GetSearchSuggestions)
	posts.Post("/autosave", authed, staff, s.AutosaveNewPost)
	posts.Post("/", authed, staff, s.CreatePost)
	posts.Get("/:slug/related", s.GetRelatedPosts)
	posts.Post("/:slug/like", authed, likeLimit, s.LikePost)
	posts.Post("/:slug/verify_password", verifyLimit, s.VerifyPostPassword)
	posts.Patch("/:slug/autosave", authed, staff, s.AutosavePost)
	posts.Get("/:slug", s.GetPost)
	posts.Put("/:slug", authed, staff, s.UpdatePost)
	posts.Patch("/:slug", authed, staff, s.UpdatePost)
	posts.Delete("/:slug", authed, staff, s.DeletePost)

	categories := api.Group("/categories")
	categories.Get("/", s.GetCategories)
	categories.Post("/", authed, staff, s.CreateCategory)
	categories.Get("/:slug", s.GetCategory)
	categories.Put("/:slug", authed, staff, s.UpdateCategory)
	categories.Patch("/:slug", authed, staff, s.UpdateCategory)
	categories.Delete("/:slug", authed, staff, s.DeleteCategory)

	tags := api.Group("/tags")
	tags.Get("/", s.GetTags)
	tags.Post("/", authed, staff, s.CreateTag)
	tags.Get("/:slug", s.GetTag)
	tags.Put("/:slug", authed, staff, s.UpdateTag)
	tags.Patch("/:slug", authed, staff, s.UpdateTag)
	tags.Delete("/:slug", authed, staff, s.DeleteTag)

	comments := api.Group("/comments")
	comments.Get("/", s.GetComments)
	comments.Post("/", authed, middleware.RateLimit(s.redis, 5, time.Minute, "create_comment"), s.CreateComment)
	comments.Post("/:id/like", authed, likeLimit, s.LikeComment)
	comments.Put("/:id", authed, s.UpdateComment)
	comments.Patch("/:id", authed, s.UpdateComment)
	comments.Delete("/:id", authed, s.DeleteComment)

	moments := api.Group("/moments")
	moments.Get("/", s.GetMoments)
	moments.Post("/", authed, s.CreateMoment)
	moments.Post("/:id/like", authed, likeLimit, s.LikeMoment)
	moments.Get("/:id", s.GetMoment)
	moments.Put("/:id", authed, s.UpdateMoment)
	moments.Patch("/:id", authed, s.UpdateMoment)
	moments.Delete("/:id", authed, s.DeleteMoment)

	albums := api.Group("/albums")
	albums.Get("/", s.GetAlbums)
	albums.Post("/", authed, staff, s.CreateAlbum)
	albums.Post("/:slug/verify_password", verifyLimit, s.VerifyAlbumPassword)
	albums.Post("/:slug/photos", authed, staff, s.AddPhoto)
	albums.Get("/:slug", s.GetAlbum)
	albums.Put("/:slug", authed, staff, s.UpdateAlbum)
	albums.Patch("/:slug", authed, staff, s.UpdateAlbum)
	albums.Delete("/:slug", authed, staff, s.DeleteAlbum)

	photos := api.Group("/photos")
	photos.Get("/", s.GetPhotos)
	photos.Get("/:id", s.GetPhoto)
	photos.Put("/:id", authed, staff, s.UpdatePhoto)
	photos.Patch("/:id", authed, staff, s.UpdatePhoto)
	photos.Delete("/:id", authed, staff, s.DeletePhoto)

	music := api.Group("/music")
	music.Get("/", s.GetMusic)
	music.Post("/", authed, staff, s.CreateMusic)
	music.Get("/:id", s.GetTrack)
	music.Put("/:id", authed, staff, s.UpdateMusic)
	music.Patch("/:id", authed, staff, s.UpdateMusic)
	music.Delete("/:id", authed, staff, s.DeleteMusic)

	linkCategories := api.Group("/link-categories")
	linkCategories.Get("/", s.GetLinkCategories)
	linkCategories.Post("/", authed, staff, s.CreateLinkCategory)
	linkCategories.Get("/:id", s.GetLinkCategory)
	linkCategories.Put("/:id", authed, staff, s.UpdateLinkCategory)
	linkCategories.Patch("/:id", authed, staff, s.UpdateLinkCategory)
	linkCategories.Delete("/:id", authed, staff, s.DeleteLinkCategory)

	links := api.Group("/links")
	links.Get("/", s.GetLinks)
	links.Post("/", authed, staff, s.CreateLink)
	links.Get("/:id", s.GetLink)
	links.Put("/:id", authed, staff, s.UpdateLink)
	links.Patch("/:id", authed, staff, s.UpdateLink)
	links.Delete("/:id", authed, staff, s.DeleteLink)

	settings := api.Group("/settings")
	settings.Get("/", s.GetSettings)
	settings.Put("/", authed, staff, s.UpdateSettings)
	settings.Patch("/", authed, staff, s.UpdateSettings)
	settings.Post("/test_email", authed, staff, s.SendTestEmail)

	navigation := api.Group("/navigation")
	navigation.Get("/", s.GetNavigation)
	navigation.Get("/check_access", s.CheckNavigationAccess)
	navigation.Post("/initialize", authed, staff, s.InitializeNavigation)
	navigation.Post("/", authed, staff, s.CreateNavigationItem)
	navigation.Put("/:id", authed, staff, s.UpdateNavigationItem)
	navigation.Patch("/:id", authed, staff, s.UpdateNavigationItem)
	navigation.Delete("/:id", authed, staff, s.DeleteNavigationItem)

	api.Post("/media", authed, staff, s.UploadMedia)

	api.Post("/ws/ticket", authed, staff, s.IssueWSTicket)
	api.Get("/ws/events", authed, staff, s.WebsocketEventsHandler())

	admin := api.Group("/admin", authed, staff)
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/comments", s.GetModerationQueue)
	admin.Post("/comments/:id/approve", s.ApproveComment)
	admin.Post("/comments/:id/reject", s.RejectComment)
	admin.Get("/navigation", s.GetAllNavigation)
	admin.Get("/email-logs", s.GetEmailLogs)
	admin.Get("/email-logs/:id", s.GetEmailLog)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so
// only the database decides readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	switch {
	case dbStatus != "healthy":
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	case redisStatus != "healthy":
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.notifier.Enabled() {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start event wiring", "hub", s.hub.Name(), "error", err)
			}
		}()
	}

	middleware.Logger.Info("server starting", "port", s.config.Port)
	return s.app.Listen(":" + strings.TrimPrefix(s.config.Port, ":"))
}

// Shutdown stops accepting requests, waits for background mail and closes
// the hub, database and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if err := s.emailService.Wait(ctx); err != nil {
		middleware.Logger.Warn("pending emails abandoned at shutdown", "error", err)
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", "hub", s.hub.Name(), "error", err)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
