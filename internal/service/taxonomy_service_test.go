package service

import (
	"context"
	"testing"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomyService_CategoryTree(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	tech, err := f.taxonomy.CreateCategory(ctx, CategoryInput{Name: ptr("Tech")})
	require.NoError(t, err)
	assert.Equal(t, "tech", tech.Slug)
	golang, err := f.taxonomy.CreateCategory(ctx, CategoryInput{Name: ptr("Go"), ParentID: &tech.ID, ParentSet: true})
	require.NoError(t, err)
	_, err = f.taxonomy.CreateCategory(ctx, CategoryInput{Name: ptr("Generics"), ParentID: &golang.ID, ParentSet: true})
	require.NoError(t, err)

	author := testutil.CreateUser(t, f.db, true)
	post := testutil.CreatePost(t, f.db, author, "in-go", true, time.Hour)
	require.NoError(t, f.db.Model(post).Update("category_id", golang.ID).Error)
	draft := testutil.CreatePost(t, f.db, author, "unfinished", false, 0)
	require.NoError(t, f.db.Model(draft).Update("category_id", golang.ID).Error)

	got, err := f.taxonomy.GetCategory(ctx, "tech")
	require.NoError(t, err)
	require.Len(t, got.Children, 1)
	assert.Equal(t, "Go", got.Children[0].Name)
	assert.EqualValues(t, 1, got.Children[0].PostCount)
	require.Len(t, got.Children[0].Children, 1)
	assert.Equal(t, "Generics", got.Children[0].Children[0].Name)
	assert.NotNil(t, got.Children[0].Children[0].Children)
}

func TestTaxonomyService_CategoryParentGuards(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	root, err := f.taxonomy.CreateCategory(ctx, CategoryInput{Name: ptr("Root")})
	require.NoError(t, err)
	child, err := f.taxonomy.CreateCategory(ctx, CategoryInput{Name: ptr("Child"), ParentID: &root.ID, ParentSet: true})
	require.NoError(t, err)
	grandchild, err := f.taxonomy.CreateCategory(ctx, CategoryInput{Name: ptr("Grandchild"), ParentID: &child.ID, ParentSet: true})
	require.NoError(t, err)

	t.Run("self parent", func(t *testing.T) {
		_, err := f.taxonomy.UpdateCategory(ctx, root.Slug, CategoryInput{ParentID: &root.ID, ParentSet: true})
		assertFieldError(t, err, "parent")
	})

	t.Run("descendant parent", func(t *testing.T) {
		_, err := f.taxonomy.UpdateCategory(ctx, root.Slug, CategoryInput{ParentID: &grandchild.ID, ParentSet: true})
		assertFieldError(t, err, "parent")
	})

	t.Run("missing parent", func(t *testing.T) {
		_, err := f.taxonomy.CreateCategory(ctx, CategoryInput{Name: ptr("Orphan"), ParentID: ptr(uint(999)), ParentSet: true})
		assertFieldError(t, err, "parent")
	})

	t.Run("move to root", func(t *testing.T) {
		moved, err := f.taxonomy.UpdateCategory(ctx, grandchild.Slug, CategoryInput{ParentSet: true})
		require.NoError(t, err)
		assert.Nil(t, moved.ParentID)
	})
}

func TestTaxonomyService_DeleteCategoryKeepsPosts(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	author := testutil.CreateUser(t, f.db, true)

	c, err := f.taxonomy.CreateCategory(ctx, CategoryInput{Name: ptr("Temporary")})
	require.NoError(t, err)
	post := testutil.CreatePost(t, f.db, author, "survivor", true, time.Hour)
	require.NoError(t, f.db.Model(post).Update("category_id", c.ID).Error)

	require.NoError(t, f.taxonomy.DeleteCategory(ctx, c.Slug))

	detail, err := f.posts.Get(ctx, "survivor", Viewer{}, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, detail.Category)
}

func TestTaxonomyService_Tags(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	tag, err := f.taxonomy.CreateTag(ctx, TagInput{Name: ptr("Go Lang")})
	require.NoError(t, err)
	assert.Equal(t, "go-lang", tag.Slug)
	assert.Equal(t, models.DefaultTagColor, tag.Color)

	_, err = f.taxonomy.CreateTag(ctx, TagInput{Name: ptr("bad color"), Color: ptr("red")})
	assertFieldError(t, err, "color")

	_, err = f.taxonomy.CreateTag(ctx, TagInput{})
	assertFieldError(t, err, "name")

	updated, err := f.taxonomy.UpdateTag(ctx, tag.Slug, TagInput{Color: ptr("#00ADD8"), Slug: ptr("golang")})
	require.NoError(t, err)
	assert.Equal(t, "#00ADD8", updated.Color)
	assert.Equal(t, "golang", updated.Slug)

	author := testutil.CreateUser(t, f.db, true)
	_, err = f.posts.Create(ctx, author.ID, PostInput{
		Title: ptr("Tagged"), Content: ptr("body"), Status: ptr(models.PostStatusPublished), TagIDs: &[]uint{tag.ID, tag.ID},
	})
	require.NoError(t, err)

	got, err := f.taxonomy.GetTag(ctx, "golang")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.PostCount)

	require.NoError(t, f.taxonomy.DeleteTag(ctx, "golang"))
	_, err = f.taxonomy.GetTag(ctx, "golang")
	assertAppError(t, err, models.CodeNotFound)
}
