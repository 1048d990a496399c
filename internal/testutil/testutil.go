// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"inkwell/internal/database"
	"inkwell/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewSQLiteDB opens a private in-memory SQLite database with the full schema
// migrated. The database is closed when the test ends.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=on", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(database.PersistentModels()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

var userSeq atomic.Int64

// CreateUser inserts a user with a unique username and email.
func CreateUser(t testing.TB, db *gorm.DB, staff bool) *models.User {
	t.Helper()
	n := userSeq.Add(1)
	user := &models.User{
		Username: fmt.Sprintf("user%d", n),
		Email:    fmt.Sprintf("user%d@example.com", n),
		Password: "x",
		IsStaff:  staff,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// CreatePost inserts a post by author. Published posts get a published_at
// of publishedAgo before now.
func CreatePost(t testing.TB, db *gorm.DB, author *models.User, slug string, published bool, publishedAgo time.Duration) *models.Post {
	t.Helper()
	post := &models.Post{
		Title:        strings.ReplaceAll(slug, "-", " "),
		Slug:         slug,
		Content:      "content of " + slug,
		AuthorID:     author.ID,
		Status:       models.PostStatusDraft,
		IsOriginal:   true,
		AllowComment: true,
	}
	if published {
		at := time.Now().UTC().Add(-publishedAgo)
		post.Status = models.PostStatusPublished
		post.PublishedAt = &at
	}
	if err := db.Omit("Author", "Category", "Tags").Create(post).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return post
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
