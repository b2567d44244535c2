package auth

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"entity-admin/internal/config"
	"entity-admin/internal/engine"
)

const secret = "test-secret"

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := GenerateAccessToken("ada", []string{"admin"}, secret, time.Now())
	require.NoError(t, err)

	claims, err := ParseAccessToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "ada", claims.Subject)
	assert.Equal(t, []string{"admin"}, claims.Roles)

	_, err = ParseAccessToken(tok, "other-secret")
	assert.Error(t, err)

	expired, err := GenerateAccessToken("ada", nil, secret, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = ParseAccessToken(expired, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, CheckPassword("s3cret", hash))
	assert.False(t, CheckPassword("guess", hash))
}

func newAuthApp(t *testing.T) *fiber.App {
	t.Helper()
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	cfg := config.AuthConfig{
		Enabled:   true,
		JWTSecret: secret,
		Users: []config.UserConfig{
			{Username: "ada", PasswordHash: hash, Roles: []string{"admin"}},
			{Username: "bob", PasswordHash: hash, Roles: []string{"viewer"}},
		},
	}
	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler})
	RegisterAuthRoutes(app, NewAuthHandler(cfg, zap.NewNop()))
	protected := app.Group("/records", AuthMiddleware(secret), RequireAdmin())
	protected.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetUser(c).Username) })
	protected.Put("/", func(c *fiber.Ctx) error { return c.SendString("updated") })
	return app
}

func login(t *testing.T, app *fiber.App, user, pw string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(`{"username":"`+user+`","password":"`+pw+`"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out struct {
		Data TokenResponse `json:"data"`
	}
	body, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(body, &out)
	return resp.StatusCode, out.Data.AccessToken
}

func call(t *testing.T, app *fiber.App, method, token string) int {
	t.Helper()
	req := httptest.NewRequest(method, "/records", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestLogin(t *testing.T) {
	app := newAuthApp(t)

	status, token := login(t, app, "ada", "pw")
	require.Equal(t, 200, status)
	assert.NotEmpty(t, token)

	status, _ = login(t, app, "ada", "wrong")
	assert.Equal(t, 401, status)
	status, _ = login(t, app, "nobody", "pw")
	assert.Equal(t, 401, status)
	status, _ = login(t, app, "", "")
	assert.Equal(t, 401, status)
}

func TestMiddleware(t *testing.T) {
	app := newAuthApp(t)
	_, admin := login(t, app, "ada", "pw")
	_, viewer := login(t, app, "bob", "pw")

	assert.Equal(t, 401, call(t, app, "GET", ""))
	assert.Equal(t, 401, call(t, app, "GET", "garbage"))
	assert.Equal(t, 200, call(t, app, "GET", viewer))
	assert.Equal(t, 403, call(t, app, "PUT", viewer))
	assert.Equal(t, 200, call(t, app, "PUT", admin))
}
