package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TraceRecord is the storage shape of a masked TraceEntry. Repositories only
// ever receive records built from entries that went through the masking engine.
type TraceRecord struct {
	ID            string            `json:"id" bson:"_id" db:"id"`
	RequestID     string            `json:"request_id" bson:"request_id" db:"request_id"`
	Kind          string            `json:"kind" bson:"kind" db:"kind"`
	Timestamp     time.Time         `json:"timestamp" bson:"timestamp" db:"timestamp"`
	Method        string            `json:"method,omitempty" bson:"method,omitempty" db:"method"`
	URL           string            `json:"url,omitempty" bson:"url,omitempty" db:"url"`
	StatusCode    *int              `json:"status_code,omitempty" bson:"status_code,omitempty" db:"status_code"`
	Error         string            `json:"error,omitempty" bson:"error,omitempty" db:"error"`
	Headers       map[string]string `json:"headers,omitempty" bson:"headers,omitempty" db:"headers"`
	Body          []byte            `json:"body,omitempty" bson:"body,omitempty" db:"body"`
	DurationMs    *float64          `json:"duration_ms,omitempty" bson:"duration_ms,omitempty" db:"duration_ms"`
	OperationName *string           `json:"operation_name,omitempty" bson:"operation_name,omitempty" db:"operation_name"`
	Query         *string           `json:"query,omitempty" bson:"query,omitempty" db:"query"`
	Variables     json.RawMessage   `json:"variables,omitempty" bson:"variables,omitempty" db:"variables"`
}

// NewTraceRecord flattens an entry into a record with a fresh ID.
func NewTraceRecord(entry TraceEntry) (*TraceRecord, error) {
	method, url := entry.Endpoint()
	rec := &TraceRecord{
		ID:            uuid.New().String(),
		RequestID:     entry.RequestID,
		Kind:          entry.KindName(),
		Timestamp:     entry.Timestamp,
		Method:        method,
		URL:           url,
		Headers:       entry.Headers,
		Body:          entry.Body,
		OperationName: entry.OperationName,
		Query:         entry.Query,
	}
	if code, ok := entry.StatusCode(); ok {
		rec.StatusCode = &code
	}
	if msg, ok := entry.ErrorMessage(); ok {
		rec.Error = msg
	}
	if entry.Duration != nil {
		ms := float64(*entry.Duration) / float64(time.Millisecond)
		rec.DurationMs = &ms
	}
	if entry.Variables != nil {
		vars, err := json.Marshal(entry.Variables)
		if err != nil {
			return nil, err
		}
		rec.Variables = vars
	}
	return rec, nil
}
