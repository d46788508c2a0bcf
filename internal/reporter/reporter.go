// Package reporter writes masked trace entries to the process log.
package reporter

import (
	"strings"
	"time"

	"github.com/tuncerburak97/gizli/internal/masking"
	"github.com/tuncerburak97/gizli/internal/metrics"
	"github.com/tuncerburak97/gizli/internal/model"
	"github.com/tuncerburak97/gizli/internal/privacy"
)

const sinkReporter = "reporter"

// Event is one masked entry in display form.
type Event struct {
	Kind          string
	Method        string
	URL           string
	StatusCode    *int
	Error         string
	Duration      *time.Duration
	RequestID     string
	Timestamp     time.Time
	Headers       map[string]string
	Body          *string
	OperationName *string
	Query         *string
	Variables     map[string]any
}

// Message is the log line text for the event.
func (e Event) Message() string {
	switch e.Kind {
	case model.KindRequest:
		return "HTTP request"
	case model.KindResponse:
		return "HTTP response"
	case model.KindError:
		return "HTTP error"
	}
	return "HTTP entry"
}

// Failed is true for error entries and 5xx responses.
func (e Event) Failed() bool {
	return e.Kind == model.KindError || (e.StatusCode != nil && *e.StatusCode >= 500)
}

type Backend interface {
	Emit(e Event)
}

type Reporter struct {
	backend     Backend
	policy      privacy.Policy
	bodyPreview int
	metrics     *metrics.MetricsCollector
}

// NewReporter builds a reporter. bodyPreview caps the logged body in bytes;
// zero or less leaves the body out.
func NewReporter(backend Backend, policy privacy.Policy, bodyPreview int, collector *metrics.MetricsCollector) *Reporter {
	return &Reporter{
		backend:     backend,
		policy:      policy,
		bodyPreview: bodyPreview,
		metrics:     collector,
	}
}

func (r *Reporter) Report(entry model.TraceEntry) {
	start := time.Now()
	masked := masking.Mask(entry, r.policy)
	r.metrics.ObserveMask(sinkReporter, entry.KindName(), r.policy.Level.String(), time.Since(start),
		masking.BodyFellBack(entry.Body, masked.Body, r.policy))

	r.backend.Emit(r.event(masked))
}

func (r *Reporter) event(entry model.TraceEntry) Event {
	method, url := entry.Endpoint()
	e := Event{
		Kind:          entry.KindName(),
		Method:        method,
		URL:           url,
		Duration:      entry.Duration,
		RequestID:     entry.RequestID,
		Timestamp:     entry.Timestamp,
		Headers:       entry.Headers,
		OperationName: entry.OperationName,
		Query:         entry.Query,
		Variables:     entry.Variables,
	}
	if code, ok := entry.StatusCode(); ok {
		e.StatusCode = &code
	}
	if msg, ok := entry.ErrorMessage(); ok {
		e.Error = msg
	}
	if entry.Body != nil && r.bodyPreview > 0 {
		preview := previewBody(entry.Body, r.bodyPreview)
		e.Body = &preview
	}
	return e
}

func previewBody(body []byte, limit int) string {
	if len(body) <= limit {
		return strings.ToValidUTF8(string(body), "\uFFFD")
	}
	return strings.ToValidUTF8(string(body[:limit]), "") + "..."
}
