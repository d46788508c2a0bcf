package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tuncerburak97/gizli/internal/model"
)

var errEmptyPayload = errors.New("empty payload")

// WireEntry is the JSON form of a trace entry. Body is base64 and duration is in seconds.
type WireEntry struct {
	Kind          string            `json:"kind"`
	Method        string            `json:"method"`
	URL           string            `json:"url"`
	StatusCode    *int              `json:"status_code,omitempty"`
	Message       string            `json:"message,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          []byte            `json:"body"`
	Timestamp     time.Time         `json:"timestamp"`
	Duration      *float64          `json:"duration,omitempty"`
	RequestID     string            `json:"request_id"`
	OperationName *string           `json:"operation_name,omitempty"`
	Query         *string           `json:"query,omitempty"`
	Variables     map[string]any    `json:"variables,omitempty"`
}

// ToEntry validates w and converts it. A missing timestamp becomes now and a
// missing request ID gets a fresh UUID.
func (w WireEntry) ToEntry() (model.TraceEntry, error) {
	if w.Method == "" {
		return model.TraceEntry{}, errors.New("method is required")
	}
	if w.URL == "" {
		return model.TraceEntry{}, errors.New("url is required")
	}

	var kind model.EntryKind
	switch w.Kind {
	case model.KindRequest:
		kind = model.Request{Method: w.Method, URL: w.URL}
	case model.KindResponse:
		kind = model.Response{Method: w.Method, URL: w.URL, StatusCode: w.StatusCode}
	case model.KindError:
		kind = model.Failure{Method: w.Method, URL: w.URL, Message: w.Message}
	default:
		return model.TraceEntry{}, fmt.Errorf("unknown kind %q", w.Kind)
	}

	entry := model.TraceEntry{
		Kind:          kind,
		Headers:       w.Headers,
		Body:          w.Body,
		Timestamp:     w.Timestamp,
		RequestID:     w.RequestID,
		OperationName: w.OperationName,
		Query:         w.Query,
		Variables:     w.Variables,
	}
	if w.Duration != nil {
		if *w.Duration < 0 {
			return model.TraceEntry{}, errors.New("duration must not be negative")
		}
		d := time.Duration(*w.Duration * float64(time.Second))
		entry.Duration = &d
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.RequestID == "" {
		entry.RequestID = uuid.New().String()
	}
	return entry, nil
}

func FromEntry(entry model.TraceEntry) WireEntry {
	method, url := entry.Endpoint()
	w := WireEntry{
		Kind:          entry.KindName(),
		Method:        method,
		URL:           url,
		Headers:       entry.Headers,
		Body:          entry.Body,
		Timestamp:     entry.Timestamp,
		RequestID:     entry.RequestID,
		OperationName: entry.OperationName,
		Query:         entry.Query,
		Variables:     entry.Variables,
	}
	if code, ok := entry.StatusCode(); ok {
		w.StatusCode = &code
	}
	if msg, ok := entry.ErrorMessage(); ok {
		w.Message = msg
	}
	if entry.Duration != nil {
		seconds := entry.Duration.Seconds()
		w.Duration = &seconds
	}
	return w
}

// decodeEntries accepts one entry or an array of entries. Numbers in
// variables are kept as json.Number.
func decodeEntries(payload []byte) ([]WireEntry, error) {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, errEmptyPayload
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '[' {
		var list []WireEntry
		if err := dec.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var one WireEntry
	if err := dec.Decode(&one); err != nil {
		return nil, err
	}
	return []WireEntry{one}, nil
}
