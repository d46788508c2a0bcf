package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/tuncerburak97/gizli/internal/config"
)

// NewStore builds the counter store named by cfg.Storage.Type.
func NewStore(ctx context.Context, cfg *config.RateLimitConfig) (Store, error) {
	switch cfg.Storage.Type {
	case "", "memory":
		return NewMemoryStore(time.Minute), nil
	case "redis":
		r := cfg.Storage.Redis
		timeout := r.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		return NewRedisStore(ctx, r.Host, r.Port, r.Password, r.DB, timeout)
	default:
		return nil, fmt.Errorf("unsupported rate limit storage: %s", cfg.Storage.Type)
	}
}
