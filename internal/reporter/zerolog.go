package reporter

import (
	"github.com/rs/zerolog"
)

type ZerologBackend struct {
	Logger zerolog.Logger
}

func (b ZerologBackend) Emit(e Event) {
	ev := b.Logger.Info()
	if e.Failed() {
		ev = b.Logger.Warn()
	}

	ev = ev.Str("kind", e.Kind).
		Str("method", e.Method).
		Str("url", e.URL).
		Str("request_id", e.RequestID)
	if !e.Timestamp.IsZero() {
		ev = ev.Time("captured_at", e.Timestamp)
	}
	if e.StatusCode != nil {
		ev = ev.Int("status", *e.StatusCode)
	}
	if e.Error != "" {
		ev = ev.Str("error", e.Error)
	}
	if e.Duration != nil {
		ev = ev.Dur("duration", *e.Duration)
	}
	if e.Headers != nil {
		ev = ev.Interface("headers", e.Headers)
	}
	if e.Body != nil {
		ev = ev.Str("body", *e.Body)
	}
	if e.OperationName != nil {
		ev = ev.Str("operation_name", *e.OperationName)
	}
	if e.Query != nil {
		ev = ev.Str("query", *e.Query)
	}
	if e.Variables != nil {
		ev = ev.Interface("variables", e.Variables)
	}
	ev.Msg(e.Message())
}
