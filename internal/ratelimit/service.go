package ratelimit

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tuncerburak97/gizli/internal/config"
)

const keyPrefix = "ingest"

// Service applies the per-IP limit first and then the global one.
type Service struct {
	config    *config.RateLimitConfig
	store     Store
	allowIPs  map[string]struct{}
	allowNets []*net.IPNet
}

func NewService(cfg *config.RateLimitConfig, store Store) *Service {
	s := &Service{
		config:   cfg,
		store:    store,
		allowIPs: make(map[string]struct{}),
	}
	for _, entry := range cfg.PerIP.WhiteList {
		if !strings.Contains(entry, "/") {
			s.allowIPs[entry] = struct{}{}
			continue
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			log.Warn().Err(err).Str("entry", entry).Msg("Ignoring invalid whitelist CIDR")
			continue
		}
		s.allowNets = append(s.allowNets, ipNet)
	}
	return s
}

func (s *Service) Allow(ctx context.Context, ip string) (*Result, error) {
	if !s.config.Enabled || s.isWhitelisted(ip) {
		return &Result{}, nil
	}

	result := &Result{}
	if s.config.PerIP.Enabled && s.config.PerIP.Requests > 0 {
		var err error
		result, err = s.checkLimit(ctx, keyPrefix+":ip:"+ip, s.config.PerIP.Requests, s.config.PerIP.Window, s.config.PerIP.Burst)
		if err != nil || result.Limited {
			return result, err
		}
	}

	if s.config.Global.Requests > 0 {
		return s.checkLimit(ctx, keyPrefix+":global", s.config.Global.Requests, s.config.Global.Window, s.config.Global.Burst)
	}
	return result, nil
}

func (s *Service) Close() error {
	return s.store.Close()
}

func (s *Service) isWhitelisted(ip string) bool {
	if _, ok := s.allowIPs[ip]; ok {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, ipNet := range s.allowNets {
		if ipNet.Contains(parsed) {
			return true
		}
	}
	return false
}

func (s *Service) checkLimit(ctx context.Context, key string, limit int, window time.Duration, burst int) (*Result, error) {
	count, resetTime, err := s.store.Get(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Rate limit store read failed")
		return nil, ErrStorageUnavailable
	}

	now := time.Now()
	if !now.Before(resetTime) {
		resetTime = now.Add(window)
		count = 0
	}

	headers := map[string]string{
		HeaderRateLimit: strconv.Itoa(limit),
		HeaderRateReset: strconv.FormatInt(resetTime.Unix(), 10),
	}

	if count >= limit+burst {
		retryAfter := resetTime.Sub(now)
		headers[HeaderRateRemaining] = "0"
		headers[HeaderRetryAfter] = strconv.FormatInt(int64(retryAfter.Round(time.Second).Seconds()), 10)
		return &Result{
			Limited:      true,
			ResetTime:    resetTime,
			RetryAfter:   retryAfter,
			LimitHeaders: headers,
		}, nil
	}

	newCount, err := s.store.Increment(ctx, key, resetTime)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Rate limit store write failed")
		return nil, ErrStorageUnavailable
	}

	remaining := limit + burst - newCount
	if remaining < 0 {
		remaining = 0
	}
	headers[HeaderRateRemaining] = strconv.Itoa(remaining)

	return &Result{
		Remaining:    remaining,
		ResetTime:    resetTime,
		LimitHeaders: headers,
	}, nil
}
