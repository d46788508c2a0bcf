package masking

import (
	"strings"
	"unicode"
)

type scanState int

// Scanner states. stateArgs means inside ( ... ) but not in a quoted literal;
// the two escape states remember whether the backslash was inside a literal.
const (
	stateOutside scanState = iota
	stateArgs
	stateString
	stateStringEscape
	stateEscape
)

// QueryLiterals replaces string and numeric literals inside argument lists of
// a GraphQL document with the sentinel. Field names, $variables, true, false,
// null, enum values and everything outside argument lists are kept verbatim.
func QueryLiterals(query string) string {
	s := literalScanner{}
	s.out.Grow(len(query))
	for _, r := range query {
		s.step(r)
	}
	s.finish()
	return s.out.String()
}

type literalScanner struct {
	out   strings.Builder
	token strings.Builder
	state scanState
	depth int
}

func (s *literalScanner) step(r rune) {
	switch s.state {
	case stateString:
		// Quoted content is never buffered; only the sentinel is emitted.
		switch r {
		case '\\':
			s.state = stateStringEscape
		case '"':
			s.out.WriteByte('"')
			s.out.WriteString(Sentinel)
			s.out.WriteByte('"')
			s.state = stateArgs
		}
		return
	case stateStringEscape:
		s.state = stateString
		return
	case stateEscape:
		s.write(r)
		s.state = s.resting()
		return
	}

	switch {
	case r == '\\':
		s.write(r)
		s.state = stateEscape
	case r == '"' && s.depth > 0:
		s.flush()
		s.state = stateString
	case r == '(':
		s.flush()
		s.out.WriteRune(r)
		s.depth++
		s.state = stateArgs
	case r == ')':
		s.flush()
		s.out.WriteRune(r)
		if s.depth > 0 {
			s.depth--
		}
		s.state = s.resting()
	case s.depth > 0 && isTokenDelimiter(r):
		s.flush()
		s.out.WriteRune(r)
	default:
		s.write(r)
	}
}

// write sends r to the pending bare token inside an argument list, or straight
// to the output elsewhere.
func (s *literalScanner) write(r rune) {
	if s.depth > 0 {
		s.token.WriteRune(r)
		return
	}
	s.out.WriteRune(r)
}

func (s *literalScanner) resting() scanState {
	if s.depth > 0 {
		return stateArgs
	}
	return stateOutside
}

func (s *literalScanner) flush() {
	if s.token.Len() == 0 {
		return
	}
	tok := s.token.String()
	s.token.Reset()
	if isNumericLiteral(tok) {
		s.out.WriteString(Sentinel)
		return
	}
	s.out.WriteString(tok)
}

func (s *literalScanner) finish() {
	s.flush()
	if s.state == stateString || s.state == stateStringEscape {
		// Unterminated literal: keep the shape, never the content.
		s.out.WriteByte('"')
		s.out.WriteString(Sentinel)
	}
}

func isTokenDelimiter(r rune) bool {
	switch r {
	case ',', ':', '[', ']', '{', '}', '=':
		return true
	}
	return unicode.IsSpace(r)
}

// isNumericLiteral reports whether tok is a base-10 integer or float such as
// 25, -3, 1.5, .5 or 6e-3. Variables and bare words never qualify.
func isNumericLiteral(tok string) bool {
	s := strings.TrimSpace(tok)
	if s == "" || s[0] == '$' {
		return false
	}
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}

	i, digits := 0, 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := 0
		for i < len(s) && isDigit(s[i]) {
			i++
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == len(s)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
