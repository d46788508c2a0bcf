package reporter

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tuncerburak97/gizli/internal/metrics"
	"github.com/tuncerburak97/gizli/internal/model"
	"github.com/tuncerburak97/gizli/internal/privacy"
)

func newCollector() *metrics.MetricsCollector {
	return metrics.NewMetricsCollector("gizli_test", "gizli", prometheus.NewRegistry())
}

func responseEntry() model.TraceEntry {
	code := 503
	d := 250 * time.Millisecond
	op := "GetUser"
	return model.TraceEntry{
		Kind:          model.Response{Method: "POST", URL: "https://api.example.com/graphql?session=s3cr3t", StatusCode: &code},
		Headers:       map[string]string{"Set-Cookie": "id=1"},
		Body:          []byte(`{"token":"abc","count":3}`),
		Duration:      &d,
		RequestID:     "req-1",
		OperationName: &op,
		Variables:     map[string]any{"id": "42"},
	}
}

func TestZerologReporter(t *testing.T) {
	var buf bytes.Buffer
	collector := newCollector()
	r := NewReporter(ZerologBackend{Logger: zerolog.New(&buf)}, privacy.NewPolicy(privacy.LevelPrivate), 512, collector)

	r.Report(responseEntry())

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "warn", event["level"])
	assert.Equal(t, "HTTP response", event["message"])
	assert.Equal(t, "response", event["kind"])
	assert.Equal(t, "https://api.example.com/graphql?session=***", event["url"])
	assert.Equal(t, 503.0, event["status"])
	assert.Equal(t, "req-1", event["request_id"])
	assert.Equal(t, map[string]any{"Set-Cookie": "***"}, event["headers"])
	assert.Equal(t, map[string]any{"id": "***"}, event["variables"])
	assert.Equal(t, "GetUser", event["operation_name"])
	assert.JSONEq(t, `{"token":"***","count":"***"}`, event["body"].(string))
	assert.NotContains(t, buf.String(), "s3cr3t")
	assert.NotContains(t, buf.String(), "abc")

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.EntriesMasked.WithLabelValues("gizli", "reporter", "response", "private")))
}

func TestZapReporter(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := NewReporter(ZapBackend{Logger: zap.New(core)}, privacy.NewPolicy(privacy.LevelSensitive), 512, newCollector())

	r.Report(model.TraceEntry{
		Kind:      model.Request{Method: "GET", URL: "https://h/p?q=1#frag"},
		Body:      []byte(`{"a":1}`),
		RequestID: "req-2",
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "HTTP request", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "https://h/p#frag", fields["url"])
	assert.Equal(t, "req-2", fields["request_id"])
	assert.NotContains(t, fields, "body", "sensitive drops the body")
	assert.NotContains(t, fields, "status")
}

func TestZapReporter_Failure(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := NewReporter(ZapBackend{Logger: zap.New(core)}, privacy.NewPolicy(privacy.LevelNone), 512, newCollector())

	r.Report(model.TraceEntry{Kind: model.Failure{Method: "GET", URL: "https://h/", Message: "connection reset"}})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "HTTP error", entries[0].Message)
	assert.Equal(t, "connection reset", entries[0].ContextMap()["error"])
}

func TestReporter_BodyPreview(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(ZerologBackend{Logger: zerolog.New(&buf)}, privacy.NewPolicy(privacy.LevelNone), 4, newCollector())

	r.Report(model.TraceEntry{Kind: model.Request{Method: "POST", URL: "u"}, Body: []byte("abcdefgh")})

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "abcd...", event["body"])
}

func TestReporter_NoPreview(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(ZerologBackend{Logger: zerolog.New(&buf)}, privacy.NewPolicy(privacy.LevelNone), 0, newCollector())

	r.Report(model.TraceEntry{Kind: model.Request{Method: "POST", URL: "u"}, Body: []byte("abc")})

	assert.NotContains(t, buf.String(), `"body"`)
}

func TestPreviewBody(t *testing.T) {
	assert.Equal(t, "ab", previewBody([]byte("ab"), 10))
	assert.Equal(t, "ab...", previewBody([]byte("abc"), 2))
	assert.Equal(t, "a...", previewBody([]byte("aç"), 2), "a cut rune is dropped")
}
