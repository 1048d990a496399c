package seed

import (
	"context"
	"fmt"

	"inkwell/internal/cache"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"gorm.io/gorm"
)

// Options configure a seeding run.
type Options struct {
	NumUsers    int
	NumPosts    int
	NumMoments  int
	ShouldClean bool
	// Seed makes the generated content reproducible; zero is random.
	Seed int64
}

// Summary counts what a run created.
type Summary struct {
	Users      int
	Categories int
	Tags       int
	Posts      int
	Comments   int
	Moments    int
	Albums     int
	Tracks     int
	Links      int
}

var (
	categoryNames = []string{"Engineering", "Notes", "Travel", "Reading"}
	subcategories = map[string][]string{
		"Engineering": {"Go", "Databases"},
		"Notes":       {"Weekly"},
	}
	tagNames = []string{"golang", "postgres", "redis", "devops", "photography", "books", "til", "homelab"}
)

// Seed populates db with demo content. One staff author is always created
// on top of opts.NumUsers readers.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Summary, error) {
	log := middleware.Logger
	log.Info("seeding database", "users", opts.NumUsers, "posts", opts.NumPosts, "moments", opts.NumMoments)

	if opts.ShouldClean {
		if err := Clean(ctx, db); err != nil {
			return nil, fmt.Errorf("failed to clean existing data: %w", err)
		}
	}

	f := NewFactory(db, opts.Seed)
	sum := &Summary{}

	author, err := f.CreateUser(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create author: %w", err)
	}
	readers := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser(ctx, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		readers = append(readers, u)
	}
	sum.Users = len(readers) + 1

	categories := make([]*models.Category, 0, len(categoryNames))
	for _, name := range categoryNames {
		parent, err := f.CreateCategory(ctx, name, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create category %q: %w", name, err)
		}
		categories = append(categories, parent)
		for _, child := range subcategories[name] {
			c, err := f.CreateCategory(ctx, child, parent)
			if err != nil {
				return nil, fmt.Errorf("failed to create category %q: %w", child, err)
			}
			categories = append(categories, c)
		}
	}
	sum.Categories = len(categories)

	tags := make([]models.Tag, 0, len(tagNames))
	for _, name := range tagNames {
		t, err := f.CreateTag(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to create tag %q: %w", name, err)
		}
		tags = append(tags, *t)
	}
	sum.Tags = len(tags)

	for i := 0; i < opts.NumPosts; i++ {
		category := categories[f.faker.Number(0, len(categories)-1)]
		start := f.faker.Number(0, len(tags)-1)
		end := start + f.faker.Number(1, 3)
		if end > len(tags) {
			end = len(tags)
		}
		post, err := f.CreatePost(ctx, author, category, tags[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to create post: %w", err)
		}
		sum.Posts++

		for _, reader := range readers {
			if !f.faker.Bool() {
				continue
			}
			c, err := f.CreateComment(ctx, reader, post.ID, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to create comment: %w", err)
			}
			sum.Comments++
			if f.faker.Number(0, 3) == 0 {
				if _, err := f.CreateComment(ctx, author, post.ID, &c.ID); err != nil {
					return nil, fmt.Errorf("failed to create reply: %w", err)
				}
				sum.Comments++
			}
			if f.faker.Bool() {
				if err := f.LikePost(ctx, reader, post.Slug); err != nil {
					return nil, fmt.Errorf("failed to like post: %w", err)
				}
			}
		}
	}

	for i := 0; i < opts.NumMoments; i++ {
		if _, err := f.CreateMoment(ctx, author); err != nil {
			return nil, fmt.Errorf("failed to create moment: %w", err)
		}
		sum.Moments++
	}

	if _, err := f.CreateAlbum(ctx, author, 6, ""); err != nil {
		return nil, fmt.Errorf("failed to create album: %w", err)
	}
	if _, err := f.CreateAlbum(ctx, author, 3, DemoPassword); err != nil {
		return nil, fmt.Errorf("failed to create protected album: %w", err)
	}
	sum.Albums = 2

	for i := 0; i < 5; i++ {
		if _, err := f.CreateTrack(ctx, author, i); err != nil {
			return nil, fmt.Errorf("failed to create track: %w", err)
		}
		sum.Tracks++
	}

	links, err := f.CreateLinks(ctx, "Friends", 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create links: %w", err)
	}
	sum.Links = len(links)

	settings := service.NewSettingsService(
		repository.NewSettingsRepository(db),
		repository.NewNavigationRepository(db),
		cache.NewStore(nil),
	)
	if _, err := settings.InitializeNavigation(ctx); err != nil {
		return nil, fmt.Errorf("failed to create navigation: %w", err)
	}

	log.Info("seeding complete",
		"author", author.Username,
		"users", sum.Users,
		"posts", sum.Posts,
		"comments", sum.Comments,
		"moments", sum.Moments,
		"albums", sum.Albums,
		"tracks", sum.Tracks,
		"links", sum.Links,
	)
	return sum, nil
}

// Clean removes all content rows. Postgres truncates in one statement;
// other dialects delete table by table, children first.
func Clean(ctx context.Context, db *gorm.DB) error {
	middleware.Logger.Info("clearing existing data")
	db = db.WithContext(ctx)

	stmt := &gorm.Statement{DB: db}
	tables := []string{"post_tags"}
	for _, model := range database.PersistentModels() {
		if err := stmt.Parse(model); err != nil {
			return err
		}
		tables = append(tables, stmt.Schema.Table)
	}

	if db.Dialector.Name() == "postgres" {
		sql := "TRUNCATE TABLE "
		for i, t := range tables {
			if i > 0 {
				sql += ", "
			}
			sql += t
		}
		return db.Exec(sql + " RESTART IDENTITY CASCADE").Error
	}

	return db.Transaction(func(tx *gorm.DB) error {
		// break self references before deleting parents
		if err := tx.Exec("UPDATE comments SET parent_id = NULL").Error; err != nil {
			return err
		}
		if err := tx.Exec("UPDATE categories SET parent_id = NULL").Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM post_tags").Error; err != nil {
			return err
		}
		for i := len(tables) - 1; i > 0; i-- {
			if err := tx.Exec("DELETE FROM " + tables[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
