package server

import (
	"net/http"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/service"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postComment(t *testing.T, env *testEnv, tok string, objectID uint, text string, parent *uint) *http.Response {
	t.Helper()
	body := map[string]any{"content_type": "post", "object_id": objectID, "content": text}
	if parent != nil {
		body["parent"] = *parent
	}
	return env.do(http.MethodPost, "/api/comments", body, withToken(tok))
}

func TestComments_CreateListLike(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, true)
	reader := testutil.CreateUser(t, env.db, false)
	post := testutil.CreatePost(t, env.db, author, "discussed", true, time.Hour)
	tok := env.token(reader)

	resp := postComment(t, env, tok, post.ID, "Nice write-up", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	root := decode[service.CommentView](t, resp)
	assert.True(t, root.IsApproved)
	assert.Equal(t, reader.ID, root.Author.ID)

	resp = postComment(t, env, env.token(author), post.ID, "Thanks!", &root.ID)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(http.MethodGet, "/api/comments?content_type=post&object_id="+itoa(post.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]service.CommentView](t, resp)
	require.Len(t, list, 1)
	require.Len(t, list[0].Replies, 1)
	assert.Equal(t, "Thanks!", list[0].Replies[0].Content)

	resp = env.do(http.MethodPost, "/api/comments/"+itoa(root.ID)+"/like", nil, withToken(env.token(author)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	like := decode[service.CommentLikeResult](t, resp)
	assert.True(t, like.Liked)
	assert.Equal(t, int64(1), like.LikesCount)

	t.Run("bad object id", func(t *testing.T) {
		resp := env.do(http.MethodGet, "/api/comments?content_type=post&object_id=abc", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("anonymous create", func(t *testing.T) {
		resp := env.do(http.MethodPost, "/api/comments", map[string]any{"content_type": "post", "object_id": post.ID, "content": "hi"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestComments_OwnershipRules(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, true)
	owner := testutil.CreateUser(t, env.db, false)
	stranger := testutil.CreateUser(t, env.db, false)
	post := testutil.CreatePost(t, env.db, author, "owned", true, time.Hour)

	resp := postComment(t, env, env.token(owner), post.ID, "mine", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	c := decode[service.CommentView](t, resp)
	path := "/api/comments/" + itoa(c.ID)

	resp = env.do(http.MethodPatch, path, map[string]string{"content": "hijacked"}, withToken(env.token(stranger)))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(http.MethodDelete, path, nil, withToken(env.token(stranger)))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(http.MethodPatch, path, map[string]string{"content": "edited"}, withToken(env.token(owner)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	edited := decode[service.CommentView](t, resp)
	assert.Equal(t, "edited", edited.Content)

	resp = env.do(http.MethodDelete, path, nil, withToken(env.token(author)))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestComments_DisabledOnPost(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, true)
	post := testutil.CreatePost(t, env.db, author, "closed", true, time.Hour)
	require.NoError(t, env.db.Model(post).Update("allow_comment", false).Error)

	resp := postComment(t, env, env.token(author), post.ID, "hello", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, "Comments are disabled for this post", body.Error)
}

func TestComments_ModerationQueue(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.FeatureFlags = "comment_moderation=on"
	})
	admin := testutil.CreateUser(t, env.db, true)
	reader := testutil.CreateUser(t, env.db, false)
	post := testutil.CreatePost(t, env.db, admin, "moderated", true, time.Hour)

	resp := postComment(t, env, env.token(reader), post.ID, "please approve", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	pending := decode[service.CommentView](t, resp)
	assert.False(t, pending.IsApproved)

	resp = env.do(http.MethodGet, "/api/comments?content_type=post&object_id="+itoa(post.ID), nil)
	assert.Empty(t, decode[[]service.CommentView](t, resp))

	resp = env.do(http.MethodGet, "/api/admin/comments?approved=false", nil, withToken(env.token(admin)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	queue := decode[PageResponse[service.CommentView]](t, resp)
	require.Equal(t, int64(1), queue.Count)
	assert.Equal(t, pending.ID, queue.Results[0].ID)

	resp = env.do(http.MethodPost, "/api/admin/comments/"+itoa(pending.ID)+"/approve", nil, withToken(env.token(admin)))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(http.MethodGet, "/api/comments?content_type=post&object_id="+itoa(post.ID), nil)
	assert.Len(t, decode[[]service.CommentView](t, resp), 1)

	resp = env.do(http.MethodGet, "/api/admin/comments", nil, withToken(env.token(reader)))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestComments_LatestSkipsHiddenTargets(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, true)
	reader := testutil.CreateUser(t, env.db, false)
	live := testutil.CreatePost(t, env.db, author, "open-post", true, time.Hour)
	draft := testutil.CreatePost(t, env.db, author, "unfinished", false, 0)
	diary := &models.Moment{Content: "diary", Visibility: models.VisibilityPrivate, AuthorID: author.ID, PublishedAt: time.Now()}
	require.NoError(t, env.db.Create(diary).Error)

	for _, c := range []*models.Comment{
		{ContentType: models.TargetPost, ObjectID: live.ID, AuthorID: reader.ID, Content: "visible", IsApproved: true},
		{ContentType: models.TargetPost, ObjectID: draft.ID, AuthorID: reader.ID, Content: "draft note", IsApproved: true},
		{ContentType: models.TargetMoment, ObjectID: diary.ID, AuthorID: reader.ID, Content: "diary note", IsApproved: true},
	} {
		require.NoError(t, env.db.Create(c).Error)
	}

	latest := func(opts ...reqOpt) []string {
		resp := env.do(http.MethodGet, "/api/comments", nil, opts...)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out []string
		for _, v := range decode[[]service.CommentView](t, resp) {
			out = append(out, v.Content)
		}
		return out
	}

	assert.Equal(t, []string{"visible"}, latest())
	assert.Equal(t, []string{"visible"}, latest(withToken(env.token(reader))))
	assert.ElementsMatch(t, []string{"visible", "draft note", "diary note"}, latest(withToken(env.token(author))))
}
