// Package masking redacts captured network entries according to a privacy.Policy.
//
// Every function here is pure: inputs are never modified, nothing is cached,
// and malformed input falls back to a documented default instead of an error.
// Both the log reporter and the analytics tracker mask through Mask.
package masking

import (
	"github.com/tuncerburak97/gizli/internal/model"
	"github.com/tuncerburak97/gizli/internal/privacy"
)

// Mask returns a masked copy of entry. Only the URL of the entry kind is
// masked; method, status code and failure message pass through, as do the
// timestamp, duration, request ID and operation name.
func Mask(entry model.TraceEntry, policy privacy.Policy) model.TraceEntry {
	masked := model.TraceEntry{
		Kind:          entry.Kind,
		Headers:       Headers(entry.Headers, policy),
		Body:          Body(entry.Body, policy),
		Timestamp:     entry.Timestamp,
		Duration:      entry.Duration,
		RequestID:     entry.RequestID,
		OperationName: entry.OperationName,
		Query:         Query(entry.Query, policy),
		Variables:     Variables(entry.Variables, policy),
	}
	if entry.Kind != nil {
		_, rawURL := entry.Kind.Endpoint()
		masked.Kind = entry.Kind.WithURL(URL(rawURL, policy))
	}
	return masked
}

// Query drops the query at LevelSensitive. At the other levels literal masking
// runs whenever the policy enables it, LevelNone included.
func Query(query *string, policy privacy.Policy) *string {
	if query == nil {
		return nil
	}
	if policy.Level == privacy.LevelSensitive {
		return nil
	}
	if !policy.MaskQueryLiterals {
		return query
	}
	masked := QueryLiterals(*query)
	return &masked
}
