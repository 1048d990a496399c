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

func TestMomentRepository_VisibilityAndCounters(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewMomentRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, false)
	bob := testutil.CreateUser(t, db, false)
	now := time.Now().UTC()

	public := &models.Moment{Content: "hello", AuthorID: alice.ID, Visibility: models.VisibilityPublic, PublishedAt: now}
	private := &models.Moment{Content: "diary", AuthorID: alice.ID, Visibility: models.VisibilityPrivate, PublishedAt: now.Add(time.Minute)}
	require.NoError(t, repo.Create(ctx, public))
	require.NoError(t, repo.Create(ctx, private))

	anon, total, err := repo.List(ctx, 0, false, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, anon, 1)

	own, total, err := repo.List(ctx, alice.ID, false, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, "diary", own[0].Content)

	_, total, err = repo.List(ctx, bob.ID, false, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	_, total, err = repo.List(ctx, 0, true, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	liked, likes, err := repo.ToggleLike(ctx, public.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.EqualValues(t, 1, likes)
	ids, err := repo.LikedIDs(ctx, bob.ID, []uint{public.ID, private.ID})
	require.NoError(t, err)
	assert.Equal(t, map[uint]bool{public.ID: true}, ids)

	require.NoError(t, repo.AdjustCommentsCount(ctx, public.ID, 2))
	require.NoError(t, repo.AdjustCommentsCount(ctx, public.ID, -5))
	got, err := repo.GetByID(ctx, public.ID)
	require.NoError(t, err)
	assert.Zero(t, got.CommentsCount)
	assert.EqualValues(t, 1, got.Likes)

	require.NoError(t, repo.Delete(ctx, public.ID))
	_, err = repo.GetByID(ctx, public.ID)
	appErr, ok := models.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}
