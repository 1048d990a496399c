package server

import (
	"net/http"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategories_DeleteCascadesChildrenAndDetachesPosts(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateUser(t, env.db, true)
	tok := env.token(admin)

	resp := env.do(http.MethodPost, "/api/categories", map[string]any{"name": "Engineering"}, withToken(tok))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	parent := decode[models.Category](t, resp)

	resp = env.do(http.MethodPost, "/api/categories", map[string]any{"name": "Go", "parent": parent.ID}, withToken(tok))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	child := decode[models.Category](t, resp)

	inParent := testutil.CreatePost(t, env.db, admin, "in-parent", true, 0)
	inChild := testutil.CreatePost(t, env.db, admin, "in-child", true, 0)
	require.NoError(t, env.db.Model(inParent).Update("category_id", parent.ID).Error)
	require.NoError(t, env.db.Model(inChild).Update("category_id", child.ID).Error)

	resp = env.do(http.MethodDelete, "/api/categories/"+parent.Slug, nil, withToken(tok))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(http.MethodGet, "/api/categories/"+child.Slug, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var posts []models.Post
	require.NoError(t, env.db.Order("id").Find(&posts).Error)
	require.Len(t, posts, 2)
	for _, p := range posts {
		assert.Nil(t, p.CategoryID, p.Slug)
	}
}
