package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/tuncerburak97/gizli/internal/masking"
	"github.com/tuncerburak97/gizli/internal/metrics"
	"github.com/tuncerburak97/gizli/internal/model"
	"github.com/tuncerburak97/gizli/internal/privacy"
	"github.com/tuncerburak97/gizli/internal/service"
)

// Tracker receives entries for analytics storage.
type Tracker interface {
	Track(entry model.TraceEntry) error
}

// EntryReporter displays entries in the process log.
type EntryReporter interface {
	Report(entry model.TraceEntry)
}

type IngestResponse struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped,omitempty"`
}

type TraceHandler struct {
	tracker  Tracker
	reporter EntryReporter
	policy   privacy.Policy
	logger   *zerolog.Logger
	metrics  *metrics.MetricsCollector
}

// NewTraceHandler wires the sinks. Either sink may be nil when disabled;
// policy is the one /v1/mask previews by default.
func NewTraceHandler(tracker Tracker, reporter EntryReporter, policy privacy.Policy, logger *zerolog.Logger, collector *metrics.MetricsCollector) *TraceHandler {
	return &TraceHandler{
		tracker:  tracker,
		reporter: reporter,
		policy:   policy,
		logger:   logger,
		metrics:  collector,
	}
}

// Ingest handles POST /v1/traces.
func (h *TraceHandler) Ingest(c *fiber.Ctx) error {
	wires, err := decodeEntries(c.Body())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload: "+err.Error())
	}

	entries := make([]model.TraceEntry, len(wires))
	for i, w := range wires {
		entry, err := w.ToEntry()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "entry "+strconv.Itoa(i)+": "+err.Error())
		}
		entries[i] = entry
	}

	var resp IngestResponse
	for _, entry := range entries {
		if h.reporter != nil {
			h.reporter.Report(entry)
		}
		if h.tracker == nil {
			resp.Accepted++
			continue
		}
		switch err := h.tracker.Track(entry); {
		case err == nil:
			resp.Accepted++
		case errors.Is(err, service.ErrQueueFull), errors.Is(err, service.ErrServiceClosed):
			resp.Dropped++
		default:
			resp.Dropped++
			h.logger.Error().Err(err).Str("request_id", entry.RequestID).Msg("Failed to track entry")
		}
	}

	if resp.Dropped > 0 {
		h.logger.Warn().
			Int("accepted", resp.Accepted).
			Int("dropped", resp.Dropped).
			Msg("Analytics dropped entries")
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// Mask handles POST /v1/mask. It returns the entry as the analytics sink would
// store it, or under ?level= with the same exemptions.
func (h *TraceHandler) Mask(c *fiber.Ctx) error {
	policy := h.policy
	if raw := c.Query("level"); raw != "" {
		level, err := privacy.ParseLevel(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		policy = policy.WithLevel(level)
	}

	wires, err := decodeEntries(c.Body())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload: "+err.Error())
	}
	if len(wires) != 1 {
		return fiber.NewError(fiber.StatusBadRequest, "expected exactly one entry")
	}
	entry, err := wires[0].ToEntry()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.JSON(FromEntry(masking.Mask(entry, policy)))
}

func (h *TraceHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *TraceHandler) MetricsJSON(c *fiber.Ctx) error {
	data, err := h.metrics.GetMetricsJSON()
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

// Observe records request metrics and logs every API call.
func (h *TraceHandler) Observe(c *fiber.Ctx) error {
	h.metrics.IncActiveRequests()
	defer h.metrics.DecActiveRequests()

	start := time.Now()
	err := c.Next()
	duration := time.Since(start)

	status := c.Response().StatusCode()
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
	} else if err != nil {
		status = fiber.StatusInternalServerError
	}

	path := c.Route().Path
	h.metrics.ObserveRequest(c.Method(), path, strconv.Itoa(status), duration)
	h.logger.Debug().
		Str("method", c.Method()).
		Str("path", path).
		Int("status_code", status).
		Dur("duration", duration).
		Msg("Request completed")
	return err
}
