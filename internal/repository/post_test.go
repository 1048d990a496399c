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

func slugsOf(posts []models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Slug)
	}
	return out
}

func TestPostRepository_CreateWithTagsAndUpdate(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	tags := NewTagRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, true)
	golang := &models.Tag{Name: "Go", Slug: "go", Color: models.DefaultTagColor}
	sql := &models.Tag{Name: "SQL", Slug: "sql", Color: models.DefaultTagColor}
	require.NoError(t, tags.Create(ctx, golang))
	require.NoError(t, tags.Create(ctx, sql))

	post := &models.Post{Title: "Hello", Slug: "hello", Content: "# hi", AuthorID: author.ID, Status: models.PostStatusDraft}
	require.NoError(t, repo.Create(ctx, post, []uint{golang.ID, golang.ID, sql.ID}))

	got, err := repo.GetBySlug(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, author.Username, got.Author.Username)
	require.Len(t, got.Tags, 2)
	assert.Equal(t, "Go", got.Tags[0].Name)

	got.Title = "Hello again"
	require.NoError(t, repo.Update(ctx, got, nil))
	got, err = repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello again", got.Title)
	assert.Len(t, got.Tags, 2, "nil tag list keeps tags")

	only := []uint{sql.ID}
	require.NoError(t, repo.Update(ctx, got, &only))
	got, err = repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "SQL", got.Tags[0].Name)

	dup := &models.Post{Title: "Other", Slug: "hello", Content: "x", AuthorID: author.ID, Status: models.PostStatusDraft}
	err = repo.Create(ctx, dup, nil)
	appErr, ok := models.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, models.CodeConflict, appErr.Code)

	taken, err := repo.SlugExists(ctx, "hello", 0)
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = repo.SlugExists(ctx, "hello", post.ID)
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestPostRepository_ListFilters(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, true)
	cat := &models.Category{Name: "Tech", Slug: "tech"}
	require.NoError(t, NewCategoryRepository(db).Create(ctx, cat))
	tag := &models.Tag{Name: "Go", Slug: "go", Color: models.DefaultTagColor}
	require.NoError(t, NewTagRepository(db).Create(ctx, tag))

	old := testutil.CreatePost(t, db, author, "old-news", true, 72*time.Hour)
	fresh := testutil.CreatePost(t, db, author, "fresh-news", true, time.Hour)
	testutil.CreatePost(t, db, author, "secret-draft", false, 0)
	pinned := testutil.CreatePost(t, db, author, "pinned", true, 240*time.Hour)
	require.NoError(t, db.Model(pinned).Update("is_top", true).Error)
	require.NoError(t, db.Model(fresh).Updates(map[string]any{"category_id": cat.ID, "views": 50}).Error)
	require.NoError(t, db.Create(&postTag{PostID: old.ID, TagID: tag.ID}).Error)

	posts, total, err := repo.List(ctx, PostFilter{PublishedOnly: true})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, []string{"pinned", "fresh-news", "old-news"}, slugsOf(posts))

	_, total, err = repo.List(ctx, PostFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)

	drafts, _, err := repo.List(ctx, PostFilter{Status: models.PostStatusDraft})
	require.NoError(t, err)
	assert.Equal(t, []string{"secret-draft"}, slugsOf(drafts))

	bySlug, _, err := repo.List(ctx, PostFilter{PublishedOnly: true, Category: "tech"})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh-news"}, slugsOf(bySlug))

	byTag, _, err := repo.List(ctx, PostFilter{PublishedOnly: true, Tags: []string{"go"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"old-news"}, slugsOf(byTag))

	search, _, err := repo.List(ctx, PostFilter{PublishedOnly: true, Search: "FRESH"})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh-news"}, slugsOf(search))

	byViews, _, err := repo.List(ctx, PostFilter{PublishedOnly: true, Ordering: "-views"})
	require.NoError(t, err)
	assert.Equal(t, "fresh-news", byViews[0].Slug)

	page, total, err := repo.List(ctx, PostFilter{PublishedOnly: true, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, []string{"fresh-news"}, slugsOf(page))
}

func TestPostRepository_ToggleLikeNeverNegative(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, true)
	reader := testutil.CreateUser(t, db, false)
	post := testutil.CreatePost(t, db, author, "likeable", true, time.Hour)

	liked, likes, err := repo.ToggleLike(ctx, post.ID, reader.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.EqualValues(t, 1, likes)

	isLiked, err := repo.IsLiked(ctx, post.ID, reader.ID)
	require.NoError(t, err)
	assert.True(t, isLiked)

	// counter drifted to zero out of band
	require.NoError(t, db.Model(post).UpdateColumn("likes", 0).Error)

	liked, likes, err = repo.ToggleLike(ctx, post.ID, reader.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.EqualValues(t, 0, likes)

	isLiked, err = repo.IsLiked(ctx, post.ID, reader.ID)
	require.NoError(t, err)
	assert.False(t, isLiked)
}

func TestPostRepository_RecordViewDedupes(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, true)
	post := testutil.CreatePost(t, db, author, "viewed", true, time.Hour)
	now := time.Now().UTC()

	recorded, err := repo.RecordView(ctx, &models.PostView{PostID: post.ID, IPAddress: "10.0.0.1", ViewedAt: now}, time.Hour)
	require.NoError(t, err)
	assert.True(t, recorded)

	recorded, err = repo.RecordView(ctx, &models.PostView{PostID: post.ID, IPAddress: "10.0.0.1", ViewedAt: now.Add(time.Minute)}, time.Hour)
	require.NoError(t, err)
	assert.False(t, recorded)

	recorded, err = repo.RecordView(ctx, &models.PostView{PostID: post.ID, IPAddress: "10.0.0.2", ViewedAt: now}, time.Hour)
	require.NoError(t, err)
	assert.True(t, recorded)

	recorded, err = repo.RecordView(ctx, &models.PostView{PostID: post.ID, IPAddress: "10.0.0.1", ViewedAt: now.Add(2 * time.Hour)}, time.Hour)
	require.NoError(t, err)
	assert.True(t, recorded)

	recorded, err = repo.RecordView(ctx, &models.PostView{PostID: post.ID, IPAddress: "10.0.0.1", ViewedAt: now.Add(2 * time.Hour)}, 0)
	require.NoError(t, err)
	assert.True(t, recorded)

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, got.Views)
}

func TestPostRepository_RelatedAndPublic(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, true)
	cat := &models.Category{Name: "Life", Slug: "life"}
	require.NoError(t, NewCategoryRepository(db).Create(ctx, cat))
	tag := &models.Tag{Name: "Travel", Slug: "travel", Color: models.DefaultTagColor}
	require.NoError(t, NewTagRepository(db).Create(ctx, tag))

	base := testutil.CreatePost(t, db, author, "base", true, time.Hour)
	sameCat := testutil.CreatePost(t, db, author, "same-cat", true, 2*time.Hour)
	sameTag := testutil.CreatePost(t, db, author, "same-tag", true, 3*time.Hour)
	draft := testutil.CreatePost(t, db, author, "draft-cat", false, 0)
	testutil.CreatePost(t, db, author, "unrelated", true, time.Hour)
	locked := testutil.CreatePost(t, db, author, "locked", true, time.Minute)

	for _, p := range []*models.Post{base, sameCat, draft} {
		require.NoError(t, db.Model(p).Update("category_id", cat.ID).Error)
	}
	require.NoError(t, db.Create(&postTag{PostID: base.ID, TagID: tag.ID}).Error)
	require.NoError(t, db.Create(&postTag{PostID: sameTag.ID, TagID: tag.ID}).Error)
	require.NoError(t, db.Model(locked).Update("is_encrypted", true).Error)

	loaded, err := repo.GetByID(ctx, base.ID)
	require.NoError(t, err)
	related, err := repo.Related(ctx, loaded, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"same-cat", "same-tag"}, slugsOf(related))

	public, err := repo.ListPublic(ctx, nil, 0)
	require.NoError(t, err)
	assert.NotContains(t, slugsOf(public), "locked")
	assert.NotContains(t, slugsOf(public), "draft-cat")
	assert.Len(t, public, 4)

	inCat, err := repo.ListPublic(ctx, &cat.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"base"}, slugsOf(inCat))

	suggestions, err := repo.SuggestTitles(ctx, "SAME", 8)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"same-cat", "same-tag"}, slugsOf(suggestions))

	archive, err := repo.Archive(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "locked", archive[0].Slug)
	assert.NotContains(t, slugsOf(archive), "draft-cat")
}

func TestPostRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, true)
	post := testutil.CreatePost(t, db, author, "doomed", true, time.Hour)
	require.NoError(t, db.Create(&models.Comment{
		ContentType: models.TargetPost, ObjectID: post.ID, AuthorID: author.ID, Content: "bye", IsApproved: true,
	}).Error)
	_, _, err := repo.ToggleLike(ctx, post.ID, author.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, post.ID))

	var comments, likes int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)
	require.NoError(t, db.Model(&models.PostLike{}).Count(&likes).Error)
	assert.Zero(t, comments)
	assert.Zero(t, likes)

	err = repo.Delete(ctx, post.ID)
	appErr, ok := models.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}
