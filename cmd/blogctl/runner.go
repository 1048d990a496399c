package main

import (
	"fmt"
	"io"
	"os"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"
)

// Runner holds the dependencies shared by all commands. The database is
// opened on first use so --help works without one.
type Runner struct {
	logger *log.Logger
	output io.Writer
	db     *gorm.DB

	users    *service.UserService
	settings *service.SettingsService
	posts    *service.PostService
	taxonomy *service.TaxonomyService
}

type RunnerOpts struct {
	Logger *log.Logger
	Output io.Writer
	// DB skips loading configuration; tests pass an open database.
	DB *gorm.DB
}

func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	r := &Runner{logger: opts.Logger, output: opts.Output}
	if opts.DB != nil {
		r.bind(opts.DB)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range []func(*Runner) *cli.Command{
		userCommand, navCommand, settingsCommand, importCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// open connects to the configured database once.
func (r *Runner) open() error {
	if r.db != nil {
		return nil
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	r.logger.Debug("database connected", "host", cfg.DBHost, "name", cfg.DBName)
	r.bind(db)
	return nil
}

func (r *Runner) bind(db *gorm.DB) {
	r.db = db
	categories := repository.NewCategoryRepository(db)
	tags := repository.NewTagRepository(db)
	r.users = service.NewUserService(repository.NewUserRepository(db))
	r.settings = service.NewSettingsService(
		repository.NewSettingsRepository(db),
		repository.NewNavigationRepository(db),
		cache.NewStore(nil),
	)
	r.taxonomy = service.NewTaxonomyService(categories, tags)
	r.posts = service.NewPostService(repository.NewPostRepository(db), categories, tags, repository.NewCommentRepository(db), nil, nil)
}

// Close releases the database connection if one was opened.
func (r *Runner) Close() {
	if r.db == nil {
		return
	}
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (r *Runner) writef(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
