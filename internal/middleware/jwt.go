package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bazarhq/bazar/internal/auth"
	"github.com/bazarhq/bazar/internal/market"
)

// JWTAuth creates a middleware for JWT authentication. Paths listed in
// publicPaths pass through without a token.
func JWTAuth(jwtService *auth.JWTService, publicPaths []string) fiber.Handler {
	publicPathMap := make(map[string]bool)
	for _, path := range publicPaths {
		publicPathMap[path] = true
	}

	return func(c *fiber.Ctx) error {
		if publicPathMap[c.Path()] {
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return Unauthorized(c, "missing authorization header")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return Unauthorized(c, "invalid authorization header format")
		}

		claims, err := jwtService.ValidateToken(parts[1])
		if err != nil {
			switch err {
			case auth.ErrTokenExpired:
				return Unauthorized(c, "token expired")
			case auth.ErrTokenMissing:
				return Unauthorized(c, "token missing")
			default:
				return Unauthorized(c, "invalid token")
			}
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("username", claims.Username)
		c.Locals("user_type", claims.UserType)
		c.Locals("claims", claims)

		return c.Next()
	}
}

// GetUserID returns the authenticated account id from the context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("user_id").(string); ok {
		return userID
	}
	return ""
}

// GetUsername returns the authenticated username from the context
func GetUsername(c *fiber.Ctx) string {
	if username, ok := c.Locals("username").(string); ok {
		return username
	}
	return ""
}

// GetUserType returns the authenticated account type from the context
func GetUserType(c *fiber.Ctx) string {
	if userType, ok := c.Locals("user_type").(string); ok {
		return userType
	}
	return ""
}

// GetClaims returns the JWT claims from the context
func GetClaims(c *fiber.Ctx) *auth.Claims {
	if claims, ok := c.Locals("claims").(*auth.Claims); ok {
		return claims
	}
	return nil
}

// RequireAdmin creates a middleware that only admits admin accounts
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetUserType(c) != market.UserTypeAdmin {
			return Forbidden(c, "admin access required")
		}
		return c.Next()
	}
}

// RequireSeller creates a middleware that only admits accounts allowed
// to publish listings
func RequireSeller() fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch GetUserType(c) {
		case market.UserTypeSeller, market.UserTypeBoth, market.UserTypeAdmin:
			return c.Next()
		}
		return Forbidden(c, "seller account required")
	}
}
