package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret"

// testEnv is a fully wired server over SQLite and miniredis.
type testEnv struct {
	t   *testing.T
	srv *Server
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
	rdb *redis.Client
}

func newTestEnv(t *testing.T, opts ...func(*config.Config)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		Env:              "test",
		JWTSecret:        testJWTSecret,
		SessionSecret:    "session-secret",
		SessionTTLHrs:    1,
		AllowedOrigins:   "http://localhost:5173",
		FrontendURL:      "http://blog.test",
		MediaDir:         t.TempDir(),
		MediaURLPrefix:   "/media",
		MediaMaxUploadMB: 2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	db := testutil.NewSQLiteDB(t)
	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	return &testEnv{t: t, srv: srv, app: srv.NewApp(), db: db, mr: mr, rdb: rdb}
}

func (e *testEnv) token(user *models.User) string {
	e.t.Helper()
	tok, err := middleware.IssueToken(testJWTSecret, user.ID, user.Username)
	require.NoError(e.t, err)
	return tok
}

type reqOpt func(*http.Request)

func withToken(tok string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func withCookies(cookies []*http.Cookie) reqOpt {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
}

func withHeader(k, v string) reqOpt {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

// do sends a request with an optional JSON body and returns the response.
func (e *testEnv) do(method, path string, body any, opts ...reqOpt) *http.Response {
	e.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// --- humanizeParam ---

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"photoId", "photo ID"},
		{"linkCategoryId", "link category ID"},
		{"slug", "slug"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

// --- parsePage / respondPage ---

func TestParsePage(t *testing.T) {
	tests := []struct {
		query  string
		number int
		size   int
	}{
		{"", 1, 10},
		{"?page=3&page_size=20", 3, 20},
		{"?page=0&page_size=-5", 1, 10},
		{"?page_size=500", 1, maxPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			app := fiber.New()
			app.Get("/items", func(c *fiber.Ctx) error {
				p := parsePage(c, defaultPageSize)
				return c.JSON(fiber.Map{"page": p.Number, "size": p.Size, "offset": p.Offset()})
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			body := decode[map[string]int](t, resp)
			assert.Equal(t, tt.number, body["page"])
			assert.Equal(t, tt.size, body["size"])
			assert.Equal(t, (tt.number-1)*tt.size, body["offset"])
		})
	}
}

func TestRespondPage_Links(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePage(c, 2)
		return respondPage(c, p, 5, []int{1, 2})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "http://blog.test/items?page=2&page_size=2&search=go", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body := decode[PageResponse[int]](t, resp)
	assert.Equal(t, int64(5), body.Count)
	require.NotNil(t, body.Next)
	require.NotNil(t, body.Previous)
	assert.Contains(t, *body.Next, "page=3")
	assert.Contains(t, *body.Next, "search=go")
	assert.NotContains(t, *body.Previous, "page=")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/items?page=3&page_size=2", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	last := decode[PageResponse[int]](t, resp)
	assert.Nil(t, last.Next)
}

// --- parseID ---

func TestParseID(t *testing.T) {
	tests := []struct {
		path   string
		status int
	}{
		{"/items/42", http.StatusOK},
		{"/items/abc", http.StatusBadRequest},
		{"/items/0", http.StatusBadRequest},
		{"/items/-3", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			app := fiber.New()
			s := &Server{}
			app.Get("/items/:id", func(c *fiber.Ctx) error {
				id, err := s.parseID(c, "id")
				if err != nil {
					return nil
				}
				return c.JSON(fiber.Map{"id": id})
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.status, resp.StatusCode)

			if tt.status == http.StatusBadRequest {
				body := decode[models.ErrorResponse](t, resp)
				assert.Equal(t, "Invalid ID", body.Error)
				assert.Equal(t, models.CodeValidation, body.Code)
			}
		})
	}
}

// --- optionalID ---

func TestOptionalID(t *testing.T) {
	var req struct {
		Category optionalID `json:"category"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{}`), &req))
	assert.False(t, req.Category.Set)

	require.NoError(t, json.Unmarshal([]byte(`{"category":null}`), &req))
	assert.True(t, req.Category.Set)
	assert.Nil(t, req.Category.Value)

	require.NoError(t, json.Unmarshal([]byte(`{"category":7}`), &req))
	require.NotNil(t, req.Category.Value)
	assert.Equal(t, uint(7), *req.Category.Value)

	assert.Error(t, json.Unmarshal([]byte(`{"category":"seven"}`), &req))
}

func TestFiberConfig_ForwardedForNeedsTrustedProxy(t *testing.T) {
	ipOf := func(cfg *config.Config) string {
		app := fiber.New(fiberConfig(cfg, 1024, nil))
		app.Get("/ip", func(c *fiber.Ctx) error {
			return c.SendString(c.IP())
		})

		req := httptest.NewRequest(http.MethodGet, "/ip", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		raw, _ := io.ReadAll(resp.Body)
		return string(raw)
	}

	assert.NotEqual(t, "203.0.113.7", ipOf(&config.Config{}))
	assert.NotEqual(t, "203.0.113.7", ipOf(&config.Config{TrustedProxies: "10.9.9.9"}))
	// app.Test connections come from 0.0.0.0
	assert.Equal(t, "203.0.113.7", ipOf(&config.Config{TrustedProxies: "10.9.9.9, 0.0.0.0"}))
}

// --- respondServiceError ---

func TestRespondServiceError_MapsCodes(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{models.NewNotFoundError("Post", "missing"), http.StatusNotFound, models.CodeNotFound},
		{models.NewFieldValidationError("title", "title is required"), http.StatusBadRequest, models.CodeValidation},
		{models.NewForbiddenError("nope"), http.StatusForbidden, models.CodeForbidden},
		{models.NewConflictError("taken"), http.StatusConflict, models.CodeConflict},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError, models.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			s := &Server{}
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return s.respondServiceError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.status, resp.StatusCode)
			body := decode[models.ErrorResponse](t, resp)
			assert.Equal(t, tt.code, body.Code)
			assert.NotContains(t, body.Details, "unexpected EOF")
		})
	}
}

// --- ReadinessCheck ---

// setupMockDB creates a GORM *gorm.DB backed by sqlmock for unit tests.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	// pings are monitored, so only the ones a test expects may happen
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	return gormDB, mock
}

func TestReadinessCheck(t *testing.T) {
	t.Run("database up without redis is degraded", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		mock.ExpectPing()
		s := &Server{db: gormDB}

		app := fiber.New()
		app.Get("/ready", s.ReadinessCheck)
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[map[string]any](t, resp)
		assert.Equal(t, "degraded", body["status"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database down is unavailable", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		mock.ExpectPing().WillReturnError(io.ErrClosedPipe)
		s := &Server{db: gormDB}

		app := fiber.New()
		app.Get("/ready", s.ReadinessCheck)
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		body := decode[map[string]any](t, resp)
		checks := body["checks"].(map[string]any)
		assert.Equal(t, "unhealthy", checks["database"])
	})
}
