package repository

import (
	"context"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlbumRepository_PhotosAndDelete(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewAlbumRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, true)
	trip := &models.Album{Name: "Trip", Slug: "trip", AuthorID: owner.ID, Order: 1}
	home := &models.Album{Name: "Home", Slug: "home", AuthorID: owner.ID}
	require.NoError(t, repo.Create(ctx, trip))
	require.NoError(t, repo.Create(ctx, home))

	albums, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, albums, 2)
	assert.Equal(t, "home", albums[0].Slug)

	for i, title := range []string{"second", "first"} {
		require.NoError(t, repo.CreatePhoto(ctx, &models.Photo{Title: title, Image: "/media/" + title + ".jpg", AlbumID: trip.ID, Order: 1 - i}))
	}
	require.NoError(t, repo.CreatePhoto(ctx, &models.Photo{Title: "sofa", Image: "/media/sofa.jpg", AlbumID: home.ID}))

	photos, err := repo.ListPhotos(ctx, []uint{trip.ID})
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, "first", photos[0].Title)

	none, err := repo.ListPhotos(ctx, []uint{})
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := repo.ListPhotos(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	counts, err := repo.PhotoCounts(ctx, []uint{trip.ID, home.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[trip.ID])
	assert.EqualValues(t, 1, counts[home.ID])

	photo, err := repo.GetPhoto(ctx, photos[0].ID)
	require.NoError(t, err)
	require.NotNil(t, photo.Album)
	assert.Equal(t, "trip", photo.Album.Slug)

	require.NoError(t, repo.Delete(ctx, trip.ID))
	left, err := repo.ListPhotos(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, left, 1)

	dup := &models.Album{Name: "Home again", Slug: "home", AuthorID: owner.ID}
	appErr, ok := models.AsAppError(repo.Create(ctx, dup))
	require.True(t, ok)
	assert.Equal(t, models.CodeConflict, appErr.Code)
}
