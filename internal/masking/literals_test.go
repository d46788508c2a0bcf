package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryLiterals(t *testing.T) {
	tcs := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "strings and numbers in arguments",
			query: `user(id: "12345", age: 25, role: "admin") { name }`,
			want:  `user(id: "***", age: ***, role: "***") { name }`,
		},
		{
			name:  "variables booleans and null are kept",
			query: `user(id: $id, active: true, note: null)`,
			want:  `user(id: $id, active: true, note: null)`,
		},
		{
			name:  "enum values are kept",
			query: `users(orderBy: CREATED_AT, dir: DESC) { id }`,
			want:  `users(orderBy: CREATED_AT, dir: DESC) { id }`,
		},
		{
			name:  "nothing outside arguments changes",
			query: "query Q {\n  viewer { login \"x\" 42 }\n}",
			want:  "query Q {\n  viewer { login \"x\" 42 }\n}",
		},
		{
			name:  "number right before closing paren",
			query: `posts(first: 10)`,
			want:  `posts(first: ***)`,
		},
		{
			name:  "floats negatives and exponents",
			query: `f(a: -1.5, b: 2e10, c: .5, d: +3)`,
			want:  `f(a: ***, b: ***, c: ***, d: ***)`,
		},
		{
			name:  "number like words are not numbers",
			query: `f(a: Infinity, b: NaN, c: 0x1F, d: 1e, e: 12abc)`,
			want:  `f(a: Infinity, b: NaN, c: 0x1F, d: 1e, e: 12abc)`,
		},
		{
			name:  "nested argument lists",
			query: `a(x: 1) { b(y: "s") { c } }`,
			want:  `a(x: ***) { b(y: "***") { c } }`,
		},
		{
			name:  "list and input object literals",
			query: `f(ids: [1, 2], input: {age: 3, name: "n"})`,
			want:  `f(ids: [***, ***], input: {age: ***, name: "***"})`,
		},
		{
			name:  "variable definitions with defaults",
			query: `query Q($n: Int = 5, $s: String!) { f(n: $n) }`,
			want:  `query Q($n: Int = ***, $s: String!) { f(n: $n) }`,
		},
		{
			name:  "escaped quote does not end the string",
			query: `f(s: "a\"b, c: 1", n: 2)`,
			want:  `f(s: "***", n: ***)`,
		},
		{
			name:  "escaped backslash before closing quote",
			query: `f(s: "a\\", n: 2)`,
			want:  `f(s: "***", n: ***)`,
		},
		{
			name:  "unterminated string hides its content",
			query: `f(s: "leaked secret`,
			want:  `f(s: "***`,
		},
		{
			name:  "unbalanced closing paren",
			query: `) f(a: 1)`,
			want:  `) f(a: ***)`,
		},
		{
			name:  "empty query",
			query: ``,
			want:  ``,
		},
		{
			name:  "multibyte characters survive",
			query: `f(name: "çağrı", tag: ünlü) { ş }`,
			want:  `f(name: "***", tag: ünlü) { ş }`,
		},
		{
			name:  "escape outside a string joins the bare token",
			query: `f(a: x\ 1) \q`,
			want:  `f(a: x\ 1) \q`,
		},
		{
			name:  "trailing number at end of input",
			query: `f(a: 1`,
			want:  `f(a: ***`,
		},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, QueryLiterals(tc.query))
		})
	}
}

func TestIsNumericLiteral(t *testing.T) {
	for _, tok := range []string{"0", "25", "-3", "+4", "1.5", ".5", "5.", "6e-3", "1E+9", " 7 "} {
		assert.True(t, isNumericLiteral(tok), tok)
	}
	for _, tok := range []string{"", " ", "$1", "-", ".", "e5", "1e", "0x10", "NaN", "Inf", "1_000", "true", "null"} {
		assert.False(t, isNumericLiteral(tok), tok)
	}
}
