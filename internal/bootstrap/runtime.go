// Package bootstrap prepares the database, Redis and built-in content a
// process needs before it serves requests.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedBuiltIns creates the built-in navigation menu when missing.
	SeedBuiltIns bool
}

// InitRuntime connects to the database and Redis, then runs the configured
// bootstrap steps. Redis is optional and comes back nil when unreachable.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()

	if err := Prepare(context.Background(), cfg, db, rdb, opts); err != nil {
		return nil, nil, err
	}
	return db, rdb, nil
}

// Prepare runs the bootstrap steps against already open connections.
func Prepare(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client, opts Options) error {
	if err := ensureAdmin(ctx, cfg, db); err != nil {
		return fmt.Errorf("failed to bootstrap admin account: %w", err)
	}

	if opts.SeedBuiltIns {
		settings := service.NewSettingsService(
			repository.NewSettingsRepository(db),
			repository.NewNavigationRepository(db),
			cache.NewStore(rdb),
		)
		created, err := settings.InitializeNavigation(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed built-in navigation: %w", err)
		}
		if created > 0 {
			middleware.Logger.Info("built-in navigation created", "items", created)
		}
	}
	return nil
}

func ensureAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || !cfg.AdminBootstrap {
		return nil
	}

	username := strings.TrimSpace(cfg.AdminUsername)
	if username == "" {
		username = "admin"
	}
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" {
		email = "admin@localhost.localdomain"
	}
	if cfg.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD must be set when ADMIN_BOOTSTRAP is enabled")
	}

	users := service.NewUserService(repository.NewUserRepository(db))
	user, created, err := users.EnsureAdmin(ctx, service.RegisterInput{
		Username: username,
		Email:    email,
		Password: cfg.AdminPassword,
	})
	if err != nil {
		return err
	}
	middleware.Logger.Info("admin account ensured", "user_id", user.ID, "username", user.Username, "created", created)
	return nil
}
