package ratelimit

import (
	"github.com/gofiber/fiber/v2"
)

// Middleware rejects rate limited clients with 429 and sets X-RateLimit-* headers.
func Middleware(limiter Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result, err := limiter.Allow(c.UserContext(), c.IP())
		if err != nil {
			return err
		}

		for header, value := range result.LimitHeaders {
			c.Set(header, value)
		}
		if result.Limited {
			return ErrRateLimitExceeded
		}

		return c.Next()
	}
}
