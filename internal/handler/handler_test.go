package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuncerburak97/gizli/internal/config"
	"github.com/tuncerburak97/gizli/internal/metrics"
	"github.com/tuncerburak97/gizli/internal/model"
	"github.com/tuncerburak97/gizli/internal/privacy"
	"github.com/tuncerburak97/gizli/internal/ratelimit"
	"github.com/tuncerburak97/gizli/internal/service"
)

type fakeTracker struct {
	mu      sync.Mutex
	entries []model.TraceEntry
	err     error
}

func (f *fakeTracker) Track(entry model.TraceEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

type fakeReporter struct {
	entries []model.TraceEntry
}

func (f *fakeReporter) Report(entry model.TraceEntry) {
	f.entries = append(f.entries, entry)
}

type testApp struct {
	app      *fiber.App
	tracker  *fakeTracker
	reporter *fakeReporter
}

func newTestApp(t *testing.T, policy privacy.Policy, limiter ratelimit.Limiter) *testApp {
	t.Helper()
	logger := zerolog.Nop()
	tracker := &fakeTracker{}
	rep := &fakeReporter{}
	collector := metrics.NewMetricsCollector("gizli_test", "gizli", prometheus.NewRegistry())
	h := NewTraceHandler(tracker, rep, policy, &logger, collector)
	return &testApp{
		app:      NewApp(config.ServerConfig{}, h, limiter),
		tracker:  tracker,
		reporter: rep,
	}
}

func post(t *testing.T, app *fiber.App, target, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp, out
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestIngest_SingleEntry(t *testing.T) {
	ta := newTestApp(t, privacy.NewPolicy(privacy.LevelPrivate), nil)

	resp, out := post(t, ta.app, "/v1/traces", `{
		"kind": "response",
		"method": "GET",
		"url": "https://api.example.com/users?id=7",
		"status_code": 200,
		"headers": {"Authorization": "Bearer x"},
		"body": "`+b64(`{"name":"Ada"}`)+`",
		"timestamp": "2024-05-01T12:00:00Z",
		"duration": 0.25,
		"request_id": "req-1"
	}`)

	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 1.0, out["accepted"])
	assert.NotContains(t, out, "dropped")

	require.Len(t, ta.tracker.entries, 1)
	require.Len(t, ta.reporter.entries, 1)
	entry := ta.tracker.entries[0]
	code, ok := entry.StatusCode()
	assert.True(t, ok)
	assert.Equal(t, 200, code)
	assert.Equal(t, `{"name":"Ada"}`, string(entry.Body))
	require.NotNil(t, entry.Duration)
	assert.Equal(t, 250*time.Millisecond, *entry.Duration)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), entry.Timestamp.UTC())
	assert.Equal(t, "req-1", entry.RequestID)
}

func TestIngest_ArrayAndDefaults(t *testing.T) {
	ta := newTestApp(t, privacy.NewPolicy(privacy.LevelPrivate), nil)

	resp, out := post(t, ta.app, "/v1/traces", `[
		{"kind": "request", "method": "POST", "url": "https://h/graphql", "query": "{ a }", "variables": {"n": 12345678901234567890}},
		{"kind": "error", "method": "GET", "url": "https://h/", "message": "timeout"}
	]`)

	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 2.0, out["accepted"])

	require.Len(t, ta.tracker.entries, 2)
	first := ta.tracker.entries[0]
	assert.NotEmpty(t, first.RequestID, "missing request id is generated")
	assert.False(t, first.Timestamp.IsZero())
	assert.Nil(t, first.Body)
	assert.Equal(t, json.Number("12345678901234567890"), first.Variables["n"])

	msg, ok := ta.tracker.entries[1].ErrorMessage()
	assert.True(t, ok)
	assert.Equal(t, "timeout", msg)
}

func TestIngest_InvalidPayloads(t *testing.T) {
	ta := newTestApp(t, privacy.NewPolicy(privacy.LevelPrivate), nil)

	for name, body := range map[string]string{
		"empty":            ``,
		"not json":         `hello`,
		"unknown kind":     `{"kind":"event","method":"GET","url":"u"}`,
		"missing url":      `{"kind":"request","method":"GET"}`,
		"negative":         `{"kind":"request","method":"GET","url":"u","duration":-1}`,
		"bad body base64":  `{"kind":"request","method":"GET","url":"u","body":"%%%"}`,
		"one bad in array": `[{"kind":"request","method":"GET","url":"u"},{"kind":"x"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, out := post(t, ta.app, "/v1/traces", body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, out["error"])
		})
	}
	assert.Empty(t, ta.tracker.entries, "a rejected batch is not partially tracked")
}

func TestIngest_QueueFullCountsDropped(t *testing.T) {
	ta := newTestApp(t, privacy.NewPolicy(privacy.LevelPrivate), nil)
	ta.tracker.err = service.ErrQueueFull

	resp, out := post(t, ta.app, "/v1/traces", `{"kind":"request","method":"GET","url":"u"}`)

	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 0.0, out["accepted"])
	assert.Equal(t, 1.0, out["dropped"])
	assert.Len(t, ta.reporter.entries, 1, "the log reporter still sees the entry")
}

func TestIngest_TrackerErrorCountsDropped(t *testing.T) {
	ta := newTestApp(t, privacy.NewPolicy(privacy.LevelPrivate), nil)
	ta.tracker.err = errors.New("boom")

	_, out := post(t, ta.app, "/v1/traces", `{"kind":"request","method":"GET","url":"u"}`)
	assert.Equal(t, 1.0, out["dropped"])
}

func TestMask(t *testing.T) {
	policy := privacy.NewPolicy(privacy.LevelPrivate, privacy.WithExemptHeaders("Accept"))
	ta := newTestApp(t, policy, nil)
	payload := `{
		"kind": "request",
		"method": "POST",
		"url": "https://h/p?token=abc&page=2#top",
		"headers": {"Accept": "*/*", "Cookie": "sid=1"},
		"body": "` + b64(`{"pw":"x"}`) + `",
		"query": "user(id: 5)",
		"request_id": "r"
	}`

	resp, out := post(t, ta.app, "/v1/mask", payload)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://h/p?token=***&page=***#top", out["url"])
	assert.Equal(t, map[string]any{"Accept": "*/*", "Cookie": "***"}, out["headers"])
	assert.Equal(t, b64(`{"pw":"***"}`), out["body"])
	assert.Equal(t, "user(id: ***)", out["query"])
	assert.Empty(t, ta.tracker.entries, "mask is a dry run")

	resp, out = post(t, ta.app, "/v1/mask?level=sensitive", payload)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://h/p#top", out["url"])
	assert.Equal(t, map[string]any{"Accept": "***", "Cookie": "***"}, out["headers"], "sensitive ignores header exemptions")
	assert.Nil(t, out["body"])
	assert.NotContains(t, out, "query")

	resp, out = post(t, ta.app, "/v1/mask?level=none", payload)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://h/p?token=abc&page=2#top", out["url"])

	resp, _ = post(t, ta.app, "/v1/mask?level=loud", payload)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, ta.app, "/v1/mask", "["+payload+","+payload+"]")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	ta := newTestApp(t, privacy.NewPolicy(privacy.LevelPrivate), nil)

	resp, err := ta.app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = ta.app.Test(httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var snapshot metrics.MetricsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	assert.Equal(t, "gizli", snapshot.AppName)

	resp, err = ta.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRateLimitedIngest(t *testing.T) {
	cfg := &config.RateLimitConfig{Enabled: true}
	cfg.Global.Requests = 1
	cfg.Global.Window = time.Hour
	limiter := ratelimit.NewService(cfg, ratelimit.NewMemoryStore(time.Minute))
	defer limiter.Close()
	ta := newTestApp(t, privacy.NewPolicy(privacy.LevelPrivate), limiter)

	body := `{"kind":"request","method":"GET","url":"u"}`
	resp, _ := post(t, ta.app, "/v1/traces", body)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	resp, out := post(t, ta.app, "/v1/traces", body)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate limit exceeded", out["error"])

	health, err := ta.app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, health.StatusCode, "health checks are not rate limited")
}
