package masking

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/tuncerburak97/gizli/internal/privacy"
)

// Sentinel replaces every masked value. Downstream pipelines match on it literally.
const Sentinel = "***"

var (
	sentinelBody    = []byte(Sentinel)
	errTrailingData = errors.New("trailing data after JSON value")
)

// Headers masks header values. Exemptions only apply at LevelPrivate;
// LevelSensitive masks every value.
func Headers(headers map[string]string, policy privacy.Policy) map[string]string {
	if headers == nil || policy.Level == privacy.LevelNone {
		return headers
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if policy.Level == privacy.LevelPrivate && policy.HeaderExempt(k) {
			out[k] = v
			continue
		}
		out[k] = Sentinel
	}
	return out
}

// URL masks the query component of raw. At LevelPrivate each value is replaced
// unless its key is exempt, keeping keys and order; at LevelSensitive the whole
// query is dropped. Scheme, host, path and fragment are kept byte for byte.
// A URL that does not parse is returned unchanged.
func URL(raw string, policy privacy.Policy) string {
	if policy.Level == privacy.LevelNone {
		return raw
	}
	if _, err := url.Parse(raw); err != nil {
		return raw
	}

	base, rest, hasQuery := strings.Cut(raw, "?")
	if !hasQuery {
		return raw
	}
	// A '#' before the '?' means the '?' belongs to the fragment.
	if strings.Contains(base, "#") {
		return raw
	}
	query, fragment, hasFragment := strings.Cut(rest, "#")

	var b strings.Builder
	b.Grow(len(raw))
	b.WriteString(base)
	if policy.Level == privacy.LevelPrivate {
		b.WriteByte('?')
		b.WriteString(maskQuery(query, policy))
	}
	if hasFragment {
		b.WriteByte('#')
		b.WriteString(fragment)
	}
	return b.String()
}

func maskQuery(query string, policy privacy.Policy) string {
	if query == "" {
		return query
	}
	pairs := strings.Split(query, "&")
	for i, pair := range pairs {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		name, err := url.QueryUnescape(key)
		if err != nil {
			name = key
		}
		if policy.QueryExempt(name) {
			continue
		}
		pairs[i] = key + "=" + Sentinel
	}
	return strings.Join(pairs, "&")
}

// Body masks a JSON payload. At LevelPrivate a payload that is not JSON
// becomes the bare sentinel, which callers must not confuse with "no body".
// LevelSensitive always drops the body.
func Body(body []byte, policy privacy.Policy) []byte {
	if body == nil {
		return nil
	}
	switch policy.Level {
	case privacy.LevelNone:
		return body
	case privacy.LevelSensitive:
		return nil
	}

	value, err := decodeJSON(body)
	if err != nil {
		return bytes.Clone(sentinelBody)
	}
	masked, err := encodeJSON(maskValue(value, policy))
	if err != nil {
		return bytes.Clone(sentinelBody)
	}
	return masked
}

// BodyFellBack reports whether Body replaced a non-empty payload with the
// sentinel because it was not JSON.
func BodyFellBack(original, masked []byte, policy privacy.Policy) bool {
	return policy.Level == privacy.LevelPrivate && len(original) > 0 && bytes.Equal(masked, sentinelBody)
}

// Variables applies the body rules to an already decoded variable map.
func Variables(vars map[string]any, policy privacy.Policy) map[string]any {
	if vars == nil {
		return nil
	}
	switch policy.Level {
	case privacy.LevelNone:
		return vars
	case privacy.LevelSensitive:
		return nil
	}
	return maskObject(vars, policy)
}

// maskValue replaces every scalar with the sentinel. Keys in the body field
// exemption set keep their whole subtree without descending into it.
func maskValue(v any, policy privacy.Policy) any {
	switch t := v.(type) {
	case map[string]any:
		return maskObject(t, policy)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = maskValue(t[i], policy)
		}
		return out
	default:
		return Sentinel
	}
}

func maskObject(obj map[string]any, policy privacy.Policy) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if policy.BodyFieldExempt(k) {
			out[k] = v
			continue
		}
		out[k] = maskValue(v, policy)
	}
	return out
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	// Trailing data after the first value is not a JSON document.
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return v, nil
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
