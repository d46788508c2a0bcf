// Package privacy holds the masking policy applied to captured network entries.
package privacy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tuncerburak97/gizli/internal/config"
)

// Level is the coarse privacy setting.
type Level int

const (
	// LevelNone leaves headers, URL, body and variables untouched.
	LevelNone Level = iota
	// LevelPrivate masks values but honours the exemption sets.
	LevelPrivate
	// LevelSensitive masks every header, drops the URL query, body,
	// variables and query, and ignores exemptions.
	LevelSensitive
)

var ErrUnknownLevel = errors.New("unknown privacy level")

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelPrivate:
		return "private"
	case LevelSensitive:
		return "sensitive"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// ParseLevel maps none, private or sensitive (any casing) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return LevelNone, nil
	case "private":
		return LevelPrivate, nil
	case "sensitive":
		return LevelSensitive, nil
	default:
		return LevelNone, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Policy bundles a Level with the exemption sets used at LevelPrivate.
// Build it with NewPolicy; the zero value has query literal masking off.
type Policy struct {
	Level             Level
	MaskQueryLiterals bool

	exemptHeaders    map[string]struct{}
	exemptQueries    map[string]struct{}
	exemptBodyFields map[string]struct{}
}

type Option func(*Policy)

// WithExemptHeaders keeps the values of the named headers at LevelPrivate.
func WithExemptHeaders(names ...string) Option {
	return func(p *Policy) { p.exemptHeaders = addLower(p.exemptHeaders, names) }
}

// WithExemptQueries keeps the values of the named URL query keys at LevelPrivate.
func WithExemptQueries(names ...string) Option {
	return func(p *Policy) { p.exemptQueries = addLower(p.exemptQueries, names) }
}

// WithExemptBodyFields keeps whole subtrees under the named body or variable keys at LevelPrivate.
func WithExemptBodyFields(names ...string) Option {
	return func(p *Policy) { p.exemptBodyFields = addLower(p.exemptBodyFields, names) }
}

func WithQueryLiteralMasking(enabled bool) Option {
	return func(p *Policy) { p.MaskQueryLiterals = enabled }
}

func NewPolicy(level Level, opts ...Option) Policy {
	p := Policy{
		Level:             level,
		MaskQueryLiterals: true,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// FromConfig builds a policy from its file form.
func FromConfig(cfg config.PrivacyConfig) (Policy, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return Policy{}, err
	}
	return NewPolicy(level,
		WithQueryLiteralMasking(cfg.MaskQueryLiterals),
		WithExemptHeaders(cfg.ExemptHeaders...),
		WithExemptQueries(cfg.ExemptQueries...),
		WithExemptBodyFields(cfg.ExemptBodyFields...),
	), nil
}

// WithLevel returns a copy of the policy with a different level and the same exemptions.
func (p Policy) WithLevel(level Level) Policy {
	p.Level = level
	return p
}

func (p Policy) HeaderExempt(key string) bool    { return contains(p.exemptHeaders, key) }
func (p Policy) QueryExempt(key string) bool     { return contains(p.exemptQueries, key) }
func (p Policy) BodyFieldExempt(key string) bool { return contains(p.exemptBodyFields, key) }

func addLower(set map[string]struct{}, names []string) map[string]struct{} {
	if len(names) == 0 {
		return set
	}
	out := make(map[string]struct{}, len(set)+len(names))
	for k := range set {
		out[k] = struct{}{}
	}
	for _, n := range names {
		out[strings.ToLower(n)] = struct{}{}
	}
	return out
}

func contains(set map[string]struct{}, key string) bool {
	if len(set) == 0 {
		return false
	}
	_, ok := set[strings.ToLower(key)]
	return ok
}
