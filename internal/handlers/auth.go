package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bazarhq/bazar/internal/auth"
	"github.com/bazarhq/bazar/internal/logger"
	"github.com/bazarhq/bazar/internal/market"
	"github.com/bazarhq/bazar/internal/middleware"
)

// AuthHandler implements the passwordless login flow: a known username
// exchanges for a JWT pair.
type AuthHandler struct {
	users *market.UserService
	jwt   *auth.JWTService
}

func NewAuthHandler(users *market.UserService, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwtService}
}

// Login exchanges a username for an access and refresh token pair.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	log := middleware.GetLogger(c)

	body := struct {
		Username string `json:"username"`
	}{}
	if err := c.BodyParser(&body); err != nil {
		return middleware.BadRequest(c, "Invalid JSON body")
	}
	if body.Username == "" {
		return middleware.BadRequest(c, "username is required")
	}

	user, err := h.users.GetByUsername(body.Username)
	if err != nil {
		log.Warn("Login failed", logger.String("username", body.Username), logger.Error(err))
		return middleware.Unauthorized(c, "unknown username")
	}
	if user.Status != market.StatusActive {
		return middleware.Forbidden(c, "account is suspended")
	}

	token, err := h.jwt.GenerateToken(user.ID, user.Username, user.Type)
	if err != nil {
		log.Error("Failed to generate token", logger.Error(err))
		return middleware.InternalServerError(c, "Failed to generate token")
	}

	refreshToken, err := h.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		log.Error("Failed to generate refresh token", logger.Error(err))
		return middleware.InternalServerError(c, "Failed to generate refresh token")
	}

	h.users.TouchLastActive(user.ID)

	log.Info("User logged in",
		logger.String("user_id", user.ID),
		logger.String("username", user.Username))

	return c.JSON(fiber.Map{
		"token":         token,
		"refresh_token": refreshToken,
		"user":          user,
	})
}

// Refresh rotates a refresh token and issues a fresh access token.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	log := middleware.GetLogger(c)

	body := struct {
		RefreshToken string `json:"refresh_token"`
	}{}
	if err := c.BodyParser(&body); err != nil {
		return middleware.BadRequest(c, "Invalid JSON body")
	}

	userID, err := h.jwt.ValidateRefreshToken(body.RefreshToken)
	if err != nil {
		log.Warn("Refresh token rejected", logger.Error(err))
		return middleware.Unauthorized(c, "invalid refresh token")
	}

	user, err := h.users.GetByID(userID)
	if err != nil {
		return middleware.Unauthorized(c, "unknown account")
	}
	if user.Status != market.StatusActive {
		return middleware.Forbidden(c, "account is suspended")
	}

	token, refreshToken, err := h.jwt.RefreshToken(body.RefreshToken, user.Username, user.Type)
	if err != nil {
		log.Error("Failed to rotate tokens", logger.Error(err))
		return middleware.InternalServerError(c, "Failed to rotate tokens")
	}

	return c.JSON(fiber.Map{
		"token":         token,
		"refresh_token": refreshToken,
	})
}
