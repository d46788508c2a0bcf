package ratelimit

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Result represents the result of a rate limit check
type Result struct {
	Limited      bool              // Whether the request is rate limited
	Remaining    int               // Remaining requests in the current window
	ResetTime    time.Time         // When the current window resets
	RetryAfter   time.Duration     // How long to wait before retrying
	LimitHeaders map[string]string // Rate limit headers to include in response
}

// Store keeps fixed-window counters.
type Store interface {
	// Get returns the count and reset time of the key's current window.
	// A missing or expired key yields a zero count and zero time.
	Get(ctx context.Context, key string) (int, time.Time, error)

	// Increment increments the counter for a key and returns the new count
	Increment(ctx context.Context, key string, resetTime time.Time) (int, error)

	// Reset resets the counter for a key
	Reset(ctx context.Context, key string) error

	Close() error
}

// Limiter decides whether a client may call the ingest API.
type Limiter interface {
	Allow(ctx context.Context, ip string) (*Result, error)
	Close() error
}

// Headers for rate limiting
const (
	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRateReset     = "X-RateLimit-Reset"
	HeaderRetryAfter    = "Retry-After"
)

var (
	ErrRateLimitExceeded  = fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
	ErrStorageUnavailable = fiber.NewError(fiber.StatusServiceUnavailable, "rate limit storage unavailable")
)
