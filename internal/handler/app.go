package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tuncerburak97/gizli/internal/config"
	"github.com/tuncerburak97/gizli/internal/ratelimit"
)

// NewApp builds the fiber app. limiter guards the /v1 routes and may be nil.
func NewApp(cfg config.ServerConfig, h *TraceHandler, limiter ratelimit.Limiter) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "gizli",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(h.Observe)

	app.Get("/healthz", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/v1")
	if limiter != nil {
		v1.Use(ratelimit.Middleware(limiter))
	}
	v1.Post("/traces", h.Ingest)
	v1.Post("/mask", h.Mask)
	v1.Get("/metrics", h.MetricsJSON)

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
