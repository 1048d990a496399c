package server

import (
	"net/http"
	"testing"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/service"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPosts_VisibilityAndPagination(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, true)
	for i, slug := range []string{"first", "second", "third"} {
		testutil.CreatePost(t, env.db, author, slug, true, time.Duration(3-i)*time.Hour)
	}
	testutil.CreatePost(t, env.db, author, "draft-notes", false, 0)

	resp := env.do(http.MethodGet, "/api/posts?page_size=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[PageResponse[service.PostListItem]](t, resp)
	assert.Equal(t, int64(3), page.Count)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "third", page.Results[0].Slug)
	assert.NotNil(t, page.Next)
	assert.Nil(t, page.Previous)

	t.Run("drafts are hidden from anonymous callers", func(t *testing.T) {
		resp := env.do(http.MethodGet, "/api/posts/draft-notes", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("staff see drafts", func(t *testing.T) {
		resp := env.do(http.MethodGet, "/api/posts/draft-notes", nil, withToken(env.token(author)))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = env.do(http.MethodGet, "/api/posts", nil, withToken(env.token(author)))
		page := decode[PageResponse[service.PostListItem]](t, resp)
		assert.Equal(t, int64(4), page.Count)
	})
}

func TestCreatePost_StaffOnly(t *testing.T) {
	env := newTestEnv(t)
	reader := testutil.CreateUser(t, env.db, false)
	admin := testutil.CreateUser(t, env.db, true)
	body := map[string]any{"title": "Hello World", "content": "# Intro\n\nbody", "status": "published"}

	resp := env.do(http.MethodPost, "/api/posts", body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(http.MethodPost, "/api/posts", body, withToken(env.token(reader)))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(http.MethodPost, "/api/posts", body, withToken(env.token(admin)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	post := decode[service.PostDetail](t, resp)
	assert.Equal(t, "hello-world", post.Slug)
	require.NotNil(t, post.ContentHTML)
	assert.Contains(t, *post.ContentHTML, "<h1")
	require.Len(t, post.TOC, 1)
	assert.Equal(t, "Intro", post.TOC[0].Title)
	assert.NotNil(t, post.PublishedAt)

	t.Run("missing title", func(t *testing.T) {
		resp := env.do(http.MethodPost, "/api/posts", map[string]any{"content": "x"}, withToken(env.token(admin)))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decode[models.ErrorResponse](t, resp)
		assert.Contains(t, body.Errors, "title")
	})
}

func TestProtectedPost_VerifyPasswordFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateUser(t, env.db, true)
	adminTok := env.token(admin)

	resp := env.do(http.MethodPost, "/api/posts", map[string]any{
		"title":        "Secret",
		"content":      "hidden body",
		"status":       "published",
		"is_encrypted": true,
		"password":     "open-sesame",
	}, withToken(adminTok))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(http.MethodGet, "/api/posts/secret", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	locked := decode[service.PostDetail](t, resp)
	assert.True(t, locked.IsEncrypted)
	assert.False(t, locked.IsPasswordVerified)
	assert.Nil(t, locked.Content)
	assert.Nil(t, locked.ContentHTML)

	resp = env.do(http.MethodPost, "/api/posts/secret/verify_password", map[string]string{"password": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(http.MethodPost, "/api/posts/secret/verify_password", map[string]string{"password": "open-sesame"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookies := resp.Cookies()
	require.NotEmpty(t, cookies)
	ok := decode[map[string]any](t, resp)
	assert.Equal(t, true, ok["success"])

	resp = env.do(http.MethodGet, "/api/posts/secret", nil, withCookies(cookies))
	unlocked := decode[service.PostDetail](t, resp)
	assert.True(t, unlocked.IsPasswordVerified)
	require.NotNil(t, unlocked.Content)
	assert.Equal(t, "hidden body", *unlocked.Content)

	// changing the password invalidates earlier unlocks
	resp = env.do(http.MethodPatch, "/api/posts/secret", map[string]any{"password": "new-secret"}, withToken(adminTok))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(http.MethodGet, "/api/posts/secret", nil, withCookies(cookies))
	relocked := decode[service.PostDetail](t, resp)
	assert.False(t, relocked.IsPasswordVerified)
	assert.Nil(t, relocked.Content)

	t.Run("unprotected post", func(t *testing.T) {
		testutil.CreatePost(t, env.db, admin, "open", true, time.Hour)
		resp := env.do(http.MethodPost, "/api/posts/open/verify_password", map[string]string{"password": "x"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLikePost_Toggles(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, true)
	reader := testutil.CreateUser(t, env.db, false)
	testutil.CreatePost(t, env.db, author, "likeable", true, time.Hour)
	tok := env.token(reader)

	resp := env.do(http.MethodPost, "/api/posts/likeable/like", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(http.MethodPost, "/api/posts/likeable/like", nil, withToken(tok))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[service.LikeResult](t, resp)
	assert.True(t, first.Liked)
	assert.Equal(t, int64(1), first.Likes)

	resp = env.do(http.MethodGet, "/api/posts/likeable", nil, withToken(tok))
	detail := decode[service.PostDetail](t, resp)
	assert.True(t, detail.IsLiked)

	resp = env.do(http.MethodPost, "/api/posts/likeable/like", nil, withToken(tok))
	second := decode[service.LikeResult](t, resp)
	assert.False(t, second.Liked)
	assert.Equal(t, int64(0), second.Likes)
}

func TestGetPost_CountsViews(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, true)
	testutil.CreatePost(t, env.db, author, "viewed", true, time.Hour)

	env.do(http.MethodGet, "/api/posts/viewed", nil, withHeader("X-Forwarded-For", "198.51.100.1"))
	env.do(http.MethodGet, "/api/posts/viewed", nil, withHeader("X-Forwarded-For", "198.51.100.1"))
	resp := env.do(http.MethodGet, "/api/posts/viewed", nil, withHeader("X-Forwarded-For", "198.51.100.2"))

	detail := decode[service.PostDetail](t, resp)
	assert.Equal(t, int64(2), detail.Views)
}

func TestGetHotPosts(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, true)
	quiet := testutil.CreatePost(t, env.db, author, "quiet", true, time.Hour)
	busy := testutil.CreatePost(t, env.db, author, "busy", true, 48*time.Hour)
	require.NoError(t, env.db.Model(busy).Update("views", 500).Error)
	require.NoError(t, env.db.Model(quiet).Update("views", 1).Error)

	resp := env.do(http.MethodGet, "/api/posts/hot", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	hot := decode[[]service.HotPost](t, resp)
	require.Len(t, hot, 2)
	assert.Equal(t, "busy", hot[0].Slug)
	assert.Greater(t, hot[0].HotScore, hot[1].HotScore)
}

func TestAutosave(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateUser(t, env.db, true)
	tok := env.token(admin)

	resp := env.do(http.MethodPost, "/api/posts/autosave", map[string]any{"title": "Work in progress", "content": "draft"}, withToken(tok))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	saved := decode[service.AutosaveResult](t, resp)
	require.NotZero(t, saved.ID)

	resp = env.do(http.MethodPatch, "/api/posts/"+saved.Slug+"/autosave", map[string]any{"content": "more draft"}, withToken(tok))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	again := decode[service.AutosaveResult](t, resp)
	assert.Equal(t, saved.ID, again.ID)

	// autosaved drafts stay invisible to readers
	resp = env.do(http.MethodGet, "/api/posts/"+saved.Slug, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearchSuggestionsAndArchives(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, true)
	testutil.CreatePost(t, env.db, author, "golang-tips", true, time.Hour)
	testutil.CreatePost(t, env.db, author, "rust-notes", true, time.Hour)

	resp := env.do(http.MethodGet, "/api/posts/search_suggestions?q=golang", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	suggestions := decode[[]service.Suggestion](t, resp)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "post", suggestions[0].Type)
	assert.Equal(t, "golang-tips", suggestions[0].Slug)

	resp = env.do(http.MethodGet, "/api/posts/search_suggestions", nil)
	assert.Empty(t, decode[[]service.Suggestion](t, resp))

	resp = env.do(http.MethodGet, "/api/posts/archives", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	archives := decode[map[string][]service.PostListItem](t, resp)
	total := 0
	for _, posts := range archives {
		total += len(posts)
	}
	assert.Equal(t, 2, total)
}
