package server

import (
	"net/http"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodPost, "/api/auth/register", map[string]string{
		"username": "alice",
		"email":    "Alice@Example.com",
		"password": "hunter22a",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	reg := decode[authResponse](t, resp)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "alice@example.com", reg.User.Email)
	assert.False(t, reg.User.IsStaff)

	t.Run("duplicate username conflicts", func(t *testing.T) {
		resp := env.do(http.MethodPost, "/api/auth/register", map[string]string{
			"username": "alice",
			"email":    "other@example.com",
			"password": "hunter22a",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		body := decode[models.ErrorResponse](t, resp)
		assert.Equal(t, models.CodeConflict, body.Code)
	})

	t.Run("weak password is rejected", func(t *testing.T) {
		resp := env.do(http.MethodPost, "/api/auth/register", map[string]string{
			"username": "bob",
			"email":    "bob@example.com",
			"password": "short",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decode[models.ErrorResponse](t, resp)
		assert.Contains(t, body.Errors, "password")
	})

	t.Run("login by email", func(t *testing.T) {
		resp := env.do(http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "alice@example.com",
			"password": "hunter22a",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[authResponse](t, resp)
		assert.Equal(t, "alice", body.User.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := env.do(http.MethodPost, "/api/auth/login", map[string]string{
			"username": "alice",
			"password": "wrong-pass1",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp := env.do(http.MethodPost, "/api/auth/login", "not-an-object")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, false)

	t.Run("missing token", func(t *testing.T) {
		resp := env.do(http.MethodGet, "/api/users/me", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := decode[models.ErrorResponse](t, resp)
		assert.Equal(t, "Authorization required", body.Error)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := env.do(http.MethodGet, "/api/users/me", nil, withToken("not.a.jwt"))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := decode[models.ErrorResponse](t, resp)
		assert.Equal(t, "Invalid or expired token", body.Error)
	})

	t.Run("valid token", func(t *testing.T) {
		resp := env.do(http.MethodGet, "/api/users/me", nil, withToken(env.token(user)))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[models.User](t, resp)
		assert.Equal(t, user.ID, body.ID)
	})

	t.Run("deleted user", func(t *testing.T) {
		ghost := testutil.CreateUser(t, env.db, false)
		tok := env.token(ghost)
		require.NoError(t, env.db.Delete(&models.User{}, ghost.ID).Error)

		resp := env.do(http.MethodGet, "/api/users/me", nil, withToken(tok))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, false)
	tok := env.token(user)

	resp := env.do(http.MethodPost, "/api/auth/logout", nil, withToken(tok))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(http.MethodGet, "/api/users/me", nil, withToken(tok))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, "Token has been revoked", body.Error)
}

func TestRefreshRotatesToken(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, false)
	old := env.token(user)

	resp := env.do(http.MethodPost, "/api/auth/refresh", nil, withToken(old))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fresh := decode[authResponse](t, resp)
	require.NotEmpty(t, fresh.Token)
	assert.NotEqual(t, old, fresh.Token)

	resp = env.do(http.MethodGet, "/api/users/me", nil, withToken(old))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(http.MethodGet, "/api/users/me", nil, withToken(fresh.Token))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProfileUpdateAndPublicView(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, false)

	resp := env.do(http.MethodPatch, "/api/users/me", map[string]string{"bio": "writes things"}, withToken(env.token(user)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[models.User](t, resp)
	assert.Equal(t, "writes things", updated.Bio)

	resp = env.do(http.MethodGet, "/api/users/"+itoa(user.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	public := decode[map[string]any](t, resp)
	assert.Equal(t, "writes things", public["bio"])
	assert.NotContains(t, public, "email")
	assert.NotContains(t, public, "is_staff")
}

func TestAdminRequired(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, false)

	resp := env.do(http.MethodGet, "/api/admin/feature-flags", nil, withToken(env.token(user)))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, models.CodeForbidden, body.Code)

	admin := testutil.CreateUser(t, env.db, true)
	resp = env.do(http.MethodGet, "/api/admin/feature-flags", nil, withToken(env.token(admin)))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
