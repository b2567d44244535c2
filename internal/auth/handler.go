package auth

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"entity-admin/internal/config"
	"entity-admin/internal/engine"
)

// dummyHash keeps unknown usernames as slow as wrong passwords.
var dummyHash = sync.OnceValue(func() string {
	h, _ := HashPassword("unknown-user")
	return h
})

// AuthHandler handles authentication endpoints for the configured users.
type AuthHandler struct {
	users     map[string]config.UserConfig
	jwtSecret string
	logger    *zap.Logger
	now       func() time.Time
}

func NewAuthHandler(cfg config.AuthConfig, logger *zap.Logger) *AuthHandler {
	users := make(map[string]config.UserConfig, len(cfg.Users))
	for _, u := range cfg.Users {
		users[u.Username] = u
	}
	return &AuthHandler{users: users, jwtSecret: cfg.JWTSecret, logger: logger, now: time.Now}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.InvalidPayloadError("Invalid request body")
	}
	if body.Username == "" || body.Password == "" {
		return engine.UnauthorizedError("Username and password are required")
	}

	user, ok := h.users[body.Username]
	hash := user.PasswordHash
	if !ok {
		hash = dummyHash()
	}
	if !CheckPassword(body.Password, hash) || !ok {
		h.logger.Info("login rejected", zap.String("username", body.Username))
		return engine.UnauthorizedError("Invalid username or password")
	}

	token, err := GenerateAccessToken(user.Username, user.Roles, h.jwtSecret, h.now())
	if err != nil {
		return engine.NewAppError("INTERNAL_ERROR", 500, "Failed to generate access token")
	}
	return c.JSON(fiber.Map{"data": TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(AccessTokenTTL.Seconds()),
	}})
}

// RegisterAuthRoutes registers auth routes on r.
func RegisterAuthRoutes(r fiber.Router, h *AuthHandler) {
	r.Post("/auth/login", h.Login)
}
