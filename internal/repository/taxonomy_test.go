package repository

import (
	"context"
	"testing"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryRepository_CountsAndCascade(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	parent := &models.Category{Name: "Tech", Slug: "tech", Order: 1}
	require.NoError(t, repo.Create(ctx, parent))
	child := &models.Category{Name: "Go", Slug: "go", ParentID: &parent.ID}
	require.NoError(t, repo.Create(ctx, child))
	other := &models.Category{Name: "Art", Slug: "art", Order: 2}
	require.NoError(t, repo.Create(ctx, other))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Go", list[0].Name, "order 0 sorts first")

	author := testutil.CreateUser(t, db, true)
	p1 := testutil.CreatePost(t, db, author, "one", true, time.Hour)
	p2 := testutil.CreatePost(t, db, author, "two", false, 0)
	for _, p := range []*models.Post{p1, p2} {
		require.NoError(t, db.Model(p).Update("category_id", parent.ID).Error)
	}

	counts, err := repo.PublishedPostCounts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[parent.ID])
	assert.Zero(t, counts[other.ID])

	dup := &models.Category{Name: "Tech", Slug: "tech-2"}
	appErr, ok := models.AsAppError(repo.Create(ctx, dup))
	require.True(t, ok)
	assert.Equal(t, models.CodeConflict, appErr.Code)

	found, err := repo.SuggestNames(ctx, "TE", 8)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "tech", found[0].Slug)

	require.NoError(t, repo.Delete(ctx, parent.ID))
	_, err = repo.GetBySlug(ctx, "go")
	appErr, ok = models.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, models.CodeNotFound, appErr.Code, "children go with their parent")

	var orphan models.Post
	require.NoError(t, db.First(&orphan, p1.ID).Error)
	assert.Nil(t, orphan.CategoryID)
}

func TestTagRepository_CountsAndDelete(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewTagRepository(db)
	ctx := context.Background()

	tag := &models.Tag{Name: "Go", Slug: "go", Color: models.DefaultTagColor}
	require.NoError(t, repo.Create(ctx, tag))
	spare := &models.Tag{Name: "Rust", Slug: "rust", Color: "#000000"}
	require.NoError(t, repo.Create(ctx, spare))

	author := testutil.CreateUser(t, db, true)
	pub := testutil.CreatePost(t, db, author, "pub", true, time.Hour)
	draft := testutil.CreatePost(t, db, author, "draft", false, 0)
	require.NoError(t, db.Create(&postTag{PostID: pub.ID, TagID: tag.ID}).Error)
	require.NoError(t, db.Create(&postTag{PostID: draft.ID, TagID: tag.ID}).Error)

	counts, err := repo.PublishedPostCounts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[tag.ID])

	found, err := repo.FindByIDs(ctx, []uint{spare.ID, tag.ID, 999})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	require.NoError(t, repo.Delete(ctx, tag.ID))
	var links int64
	require.NoError(t, db.Model(&postTag{}).Count(&links).Error)
	assert.Zero(t, links)

	appErr, ok := models.AsAppError(repo.Delete(ctx, tag.ID))
	require.True(t, ok)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}
