package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "gizli:ratelimit:"

// RedisStore implements Store interface using Redis
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, host string, port int, password string, db int, timeout time.Duration) (*RedisStore, error) {
	log.Info().
		Str("host", host).
		Int("port", port).
		Int("db", db).
		Dur("timeout", timeout).
		Msg("Attempting to connect to Redis")

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Password:     password,
		DB:           db,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Msg("Successfully connected to Redis")
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (int, time.Time, error) {
	pipe := s.client.Pipeline()
	countCmd := pipe.Get(ctx, redisKeyPrefix+key)
	ttlCmd := pipe.PTTL(ctx, redisKeyPrefix+key)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, time.Time{}, err
	}

	val, err := countCmd.Result()
	if err != nil {
		return 0, time.Time{}, nil
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("corrupt counter %s: %w", key, err)
	}

	// -1 (no expiry) and -2 (missing) both mean there is no live window.
	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return 0, time.Time{}, nil
	}

	log.Debug().
		Str("key", key).
		Int("count", count).
		Dur("ttl", ttl).
		Msg("Retrieved rate limit data from Redis")

	return count, time.Now().Add(ttl), nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, resetTime time.Time) (int, error) {
	ttl := time.Until(resetTime)
	if ttl <= 0 {
		ttl = time.Millisecond
	}

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKeyPrefix+key)
	pipe.PExpire(ctx, redisKeyPrefix+key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}

func (s *RedisStore) Close() error {
	log.Info().Msg("Closing Redis connection")
	return s.client.Close()
}
