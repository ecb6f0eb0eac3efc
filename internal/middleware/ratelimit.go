package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bazarhq/bazar/internal/metrics"
	"github.com/bazarhq/bazar/internal/ratelimit"
)

// RateLimitMiddleware creates a middleware for rate limiting. Requests
// from authenticated accounts are limited per account id, everything
// else per client IP.
func RateLimitMiddleware(service *ratelimit.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var allowed bool
		var limiterType string

		if userID := GetUserID(c); userID != "" {
			allowed = service.AllowUser(userID)
			limiterType = "user"
		} else {
			allowed = service.AllowIP(c.IP())
			limiterType = "ip"
		}

		if !allowed {
			metrics.RateLimitExceeded.WithLabelValues(limiterType).Inc()
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "Too many requests. Please try again later.",
			})
		}

		return c.Next()
	}
}
