package reporter

import (
	"go.uber.org/zap"
)

type ZapBackend struct {
	Logger *zap.Logger
}

func (b ZapBackend) Emit(e Event) {
	fields := []zap.Field{
		zap.String("kind", e.Kind),
		zap.String("method", e.Method),
		zap.String("url", e.URL),
		zap.String("request_id", e.RequestID),
	}
	if !e.Timestamp.IsZero() {
		fields = append(fields, zap.Time("captured_at", e.Timestamp))
	}
	if e.StatusCode != nil {
		fields = append(fields, zap.Int("status", *e.StatusCode))
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	if e.Duration != nil {
		fields = append(fields, zap.Duration("duration", *e.Duration))
	}
	if e.Headers != nil {
		fields = append(fields, zap.Any("headers", e.Headers))
	}
	if e.Body != nil {
		fields = append(fields, zap.String("body", *e.Body))
	}
	if e.OperationName != nil {
		fields = append(fields, zap.String("operation_name", *e.OperationName))
	}
	if e.Query != nil {
		fields = append(fields, zap.String("query", *e.Query))
	}
	if e.Variables != nil {
		fields = append(fields, zap.Any("variables", e.Variables))
	}

	if e.Failed() {
		b.Logger.Warn(e.Message(), fields...)
		return
	}
	b.Logger.Info(e.Message(), fields...)
}
