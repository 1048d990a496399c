package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func signClaims(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken(testSecret, 42, "writer")
	require.NoError(t, err)

	claims, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "writer", claims.Username)
	assert.NotEmpty(t, claims.JTI)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), claims.ExpiresAt, time.Minute)
}

func TestParseToken_Rejects(t *testing.T) {
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": strconv.Itoa(7),
			"iss": TokenIssuer,
			"aud": TokenAudience,
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	tests := []struct {
		name   string
		token  func() string
		expect error
	}{
		{"Empty", func() string { return "" }, ErrMissingToken},
		{"Garbage", func() string { return "not-a-jwt" }, ErrInvalidToken},
		{"Wrong Secret", func() string { return signClaims(t, "other-secret", base()) }, ErrInvalidToken},
		{"Expired", func() string {
			c := base()
			c["exp"] = time.Now().Add(-time.Hour).Unix()
			return signClaims(t, testSecret, c)
		}, ErrInvalidToken},
		{"Wrong Issuer", func() string {
			c := base()
			c["iss"] = "someone-else"
			return signClaims(t, testSecret, c)
		}, ErrInvalidToken},
		{"Wrong Audience", func() string {
			c := base()
			c["aud"] = "someone-else"
			return signClaims(t, testSecret, c)
		}, ErrInvalidToken},
		{"Non Numeric Subject", func() string {
			c := base()
			c["sub"] = "abc"
			return signClaims(t, testSecret, c)
		}, ErrInvalidToken},
		{"None Algorithm", func() string {
			s, _ := jwt.NewWithClaims(jwt.SigningMethodNone, base()).SignedString(jwt.UnsafeAllowNoneSignatureType)
			return s
		}, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(testSecret, tt.token())
			assert.ErrorIs(t, err, tt.expect)
		})
	}
}

func TestBearerToken(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(BearerToken(c))
	})

	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", ""},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		body := make([]byte, 16)
		n, _ := resp.Body.Read(body)
		assert.Equal(t, tt.want, string(body[:n]), tt.header)
	}
}
