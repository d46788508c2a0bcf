package model

import (
	"time"
)

const (
	KindRequest  = "request"
	KindResponse = "response"
	KindError    = "error"
)

// EntryKind is the closed set of captured network events. Exactly one of
// Request, Response or Failure describes an entry.
type EntryKind interface {
	// Endpoint returns the HTTP method and the full URL of the call.
	Endpoint() (method, url string)
	// WithURL returns a copy of the kind with only the URL replaced.
	WithURL(url string) EntryKind
	// KindName returns request, response or error.
	KindName() string

	entryKind()
}

// Request is an outgoing call that has not completed yet.
type Request struct {
	Method string
	URL    string
}

// Response is a completed call. StatusCode is nil when the transport
// did not report one.
type Response struct {
	Method     string
	URL        string
	StatusCode *int
}

// Failure is a call that ended with a transport or client error.
type Failure struct {
	Method  string
	URL     string
	Message string
}

func (r Request) Endpoint() (string, string)  { return r.Method, r.URL }
func (r Response) Endpoint() (string, string) { return r.Method, r.URL }
func (f Failure) Endpoint() (string, string)  { return f.Method, f.URL }

func (r Request) WithURL(url string) EntryKind {
	r.URL = url
	return r
}

func (r Response) WithURL(url string) EntryKind {
	r.URL = url
	return r
}

func (f Failure) WithURL(url string) EntryKind {
	f.URL = url
	return f
}

func (Request) KindName() string  { return KindRequest }
func (Response) KindName() string { return KindResponse }
func (Failure) KindName() string  { return KindError }

func (Request) entryKind()  {}
func (Response) entryKind() {}
func (Failure) entryKind()  {}

// TraceEntry is one captured network event. Entries are values: the masking
// engine always builds a new entry and never writes into the one it was given.
type TraceEntry struct {
	Kind          EntryKind
	Headers       map[string]string
	Body          []byte
	Timestamp     time.Time
	Duration      *time.Duration
	RequestID     string
	OperationName *string
	Query         *string
	// Variables holds decoded JSON values: string, number, bool, nil,
	// []any and map[string]any, nested to any depth.
	Variables map[string]any
}

// IsGraphQL reports whether any GraphQL metadata is attached to the entry.
func (e TraceEntry) IsGraphQL() bool {
	return e.OperationName != nil || e.Query != nil || e.Variables != nil
}

// Endpoint returns the method and URL of whichever kind is set.
func (e TraceEntry) Endpoint() (string, string) {
	if e.Kind == nil {
		return "", ""
	}
	return e.Kind.Endpoint()
}

// StatusCode returns the response status, if the entry is a response that has one.
func (e TraceEntry) StatusCode() (int, bool) {
	if resp, ok := e.Kind.(Response); ok && resp.StatusCode != nil {
		return *resp.StatusCode, true
	}
	return 0, false
}

// ErrorMessage returns the failure message for error entries.
func (e TraceEntry) ErrorMessage() (string, bool) {
	if f, ok := e.Kind.(Failure); ok {
		return f.Message, true
	}
	return "", false
}

// KindName returns the name of the entry kind, or an empty string when unset.
func (e TraceEntry) KindName() string {
	if e.Kind == nil {
		return ""
	}
	return e.Kind.KindName()
}
