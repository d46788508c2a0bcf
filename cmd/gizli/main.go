package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tuncerburak97/gizli/internal/config"
	"github.com/tuncerburak97/gizli/internal/handler"
	"github.com/tuncerburak97/gizli/internal/logger"
	"github.com/tuncerburak97/gizli/internal/metrics"
	"github.com/tuncerburak97/gizli/internal/privacy"
	"github.com/tuncerburak97/gizli/internal/ratelimit"
	"github.com/tuncerburak97/gizli/internal/reporter"
	"github.com/tuncerburak97/gizli/internal/repository"
	"github.com/tuncerburak97/gizli/internal/service"
	"github.com/tuncerburak97/gizli/internal/transform"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Logger = logger.New(cfg.Log)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize zap logger")
	}
	defer zapLogger.Sync()

	metricsCollector := metrics.GetMetricsCollector("gizli", "gizli")

	analyticsPolicy, err := privacy.FromConfig(cfg.Analytics.Privacy)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid analytics privacy policy")
	}
	reporterPolicy, err := privacy.FromConfig(cfg.Reporter.Privacy)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid reporter privacy policy")
	}

	ctx := context.Background()

	var tracker handler.Tracker
	var analytics *service.AnalyticsService
	if cfg.Analytics.Enabled {
		scripts, err := transform.NewEngine(cfg.Transform)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize transform engine")
		}
		repo, err := repository.NewRepository(ctx, &cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize repository")
		}
		analytics = service.NewAnalyticsService(repo, analyticsPolicy, scripts, metricsCollector, zapLogger, cfg.Analytics)
		tracker = analytics
	}

	var entryReporter handler.EntryReporter
	if cfg.Reporter.Enabled {
		var backend reporter.Backend = reporter.ZerologBackend{Logger: log.Logger}
		if cfg.Reporter.Backend == "zap" {
			backend = reporter.ZapBackend{Logger: zapLogger}
		}
		entryReporter = reporter.NewReporter(backend, reporterPolicy, cfg.Reporter.BodyPreview, metricsCollector)
	}

	var limiter ratelimit.Limiter
	var rateLimiter *ratelimit.Service
	if cfg.RateLimit.Enabled {
		store, err := ratelimit.NewStore(ctx, &cfg.RateLimit)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create rate limit store")
		}
		rateLimiter = ratelimit.NewService(&cfg.RateLimit, store)
		limiter = rateLimiter
	}

	traceHandler := handler.NewTraceHandler(tracker, entryReporter, analyticsPolicy, &log.Logger, metricsCollector)
	app := handler.NewApp(cfg.Server, traceHandler, limiter)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Info().
			Str("addr", addr).
			Str("analytics_level", analyticsPolicy.Level.String()).
			Str("reporter_level", reporterPolicy.Level.String()).
			Msg("Starting server")
		if err := app.Listen(addr); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown server")
	}

	if analytics != nil {
		if err := analytics.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to flush analytics")
		}
	}

	if rateLimiter != nil {
		if err := rateLimiter.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close rate limiter")
		}
	}
}
