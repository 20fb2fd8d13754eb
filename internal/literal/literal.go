// Package literal parses the compact object-literal notation used by script
// dumps and raw constant sources: numbers with unicode fraction, angle and
// percent glyphs, strings, arrays, objects, and a small table of named
// sentinels. Parsing is a single recursive-descent scan that returns the
// value together with the index just past it.
package literal

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zclconf/go-cty/cty"
)

// ParseError reports a malformed literal with its byte offset.
type ParseError struct {
	Message string
	Pos     int
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Message, e.Pos)
}

// FunctionSentinel is the native payload of the function-placeholder value
// that appears in source dumps where a closure cannot be serialized.
type FunctionSentinel struct{}

// FunctionType is the capsule type carrying the function placeholder.
var FunctionType = cty.Capsule("function", reflect.TypeOf(FunctionSentinel{}))

// FunctionVal is the singleton function-placeholder value.
var FunctionVal = cty.CapsuleVal(FunctionType, &FunctionSentinel{})

// IsFunction reports whether v is the function placeholder.
func IsFunction(v cty.Value) bool {
	return v.Type().Equals(FunctionType)
}

// Nil is the absent-value sentinel.
var Nil = cty.NullVal(cty.DynamicPseudoType)

// fractions maps unicode vulgar-fraction glyphs to their value.
var fractions = map[string]float64{
	"½": 1.0 / 2, "⅓": 1.0 / 3, "⅔": 2.0 / 3,
	"¼": 1.0 / 4, "¾": 3.0 / 4,
	"⅕": 1.0 / 5, "⅖": 2.0 / 5, "⅗": 3.0 / 5, "⅘": 4.0 / 5,
	"⅙": 1.0 / 6, "⅚": 5.0 / 6,
	"⅛": 1.0 / 8, "⅜": 3.0 / 8, "⅝": 5.0 / 8, "⅞": 7.0 / 8,
}

// numberTokens is the fixed table of named numeric constants: infinities,
// the π family, and vulgar fractions, each with its negated form.
var numberTokens = buildNumberTokens()

func buildNumberTokens() map[string]float64 {
	t := map[string]float64{
		"inf": math.Inf(1), "+inf": math.Inf(1), "-inf": math.Inf(-1),
		"∞": math.Inf(1), "+∞": math.Inf(1), "-∞": math.Inf(-1),
		"π": math.Pi, "-π": -math.Pi, "pi": math.Pi, "-pi": -math.Pi,
	}
	for glyph, v := range fractions {
		t[glyph] = v
		t["-"+glyph] = -v
		t[glyph+"π"] = v * math.Pi
		t["-"+glyph+"π"] = -v * math.Pi
	}
	return t
}

// Parse parses a complete literal, requiring that nothing but whitespace
// follows it.
func Parse(s string) (cty.Value, error) {
	v, next, err := ParseAt(s, 0)
	if err != nil {
		return cty.NilVal, err
	}
	if rest := strings.TrimSpace(s[next:]); rest != "" {
		return cty.NilVal, &ParseError{Message: "trailing input after value", Pos: next}
	}
	return v, nil
}

// ParseAt parses one value starting at byte offset i and returns it with the
// offset just past it.
func ParseAt(s string, i int) (cty.Value, int, error) {
	i = skipSpace(s, i)
	if i >= len(s) {
		return cty.NilVal, i, &ParseError{Message: "unexpected end of input", Pos: i}
	}

	switch s[i] {
	case '"':
		return parseString(s, i)
	case '[':
		return parseArray(s, i)
	case '{':
		return parseObject(s, i)
	}

	tok, next := scanToken(s, i)
	if tok == "" {
		return cty.NilVal, i, &ParseError{Message: fmt.Sprintf("unexpected character %q", s[i]), Pos: i}
	}
	v, err := resolveToken(tok, i)
	if err != nil {
		return cty.NilVal, i, err
	}
	return v, next, nil
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}

// isEllipsis reports whether a truncation sentinel starts at i, returning
// the offset past it.
func isEllipsis(s string, i int) (int, bool) {
	if strings.HasPrefix(s[i:], "…") {
		return i + len("…"), true
	}
	if strings.HasPrefix(s[i:], "...") {
		return i + 3, true
	}
	return i, false
}

func parseString(s string, i int) (cty.Value, int, error) {
	start := i
	i++ // opening quote
	var sb strings.Builder
	for i < len(s) {
		c := s[i]
		switch c {
		case '\\':
			if i+1 >= len(s) {
				return cty.NilVal, i, &ParseError{Message: "unterminated escape", Pos: i}
			}
			sb.WriteByte(s[i+1])
			i += 2
		case '"':
			return cty.StringVal(sb.String()), i + 1, nil
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return cty.NilVal, start, &ParseError{Message: "unterminated string", Pos: start}
}

func parseArray(s string, i int) (cty.Value, int, error) {
	i++ // '['
	var elems []cty.Value
	for {
		i = skipSpace(s, i)
		if i < len(s) && s[i] == ',' {
			i++
			continue
		}
		if i >= len(s) {
			return cty.NilVal, i, &ParseError{Message: "unterminated array", Pos: i}
		}
		if s[i] == ']' {
			return tupleOf(elems), i + 1, nil
		}
		if next, ok := isEllipsis(s, i); ok {
			// Truncation sentinel: the collection ends here with whatever
			// elements were read so far.
			return tupleOf(elems), skipToClose(s, next, '[', ']'), nil
		}
		v, next, err := ParseAt(s, i)
		if err != nil {
			return cty.NilVal, i, err
		}
		elems = append(elems, v)
		i = next
	}
}

func parseObject(s string, i int) (cty.Value, int, error) {
	i++ // '{'
	attrs := map[string]cty.Value{}
	for {
		i = skipSpace(s, i)
		if i < len(s) && s[i] == ',' {
			i++
			continue
		}
		if i >= len(s) {
			return cty.NilVal, i, &ParseError{Message: "unterminated object", Pos: i}
		}
		if s[i] == '}' {
			return cty.ObjectVal(attrs), i + 1, nil
		}
		if next, ok := isEllipsis(s, i); ok {
			return cty.ObjectVal(attrs), skipToClose(s, next, '{', '}'), nil
		}

		var key string
		if s[i] == '"' {
			kv, next, err := parseString(s, i)
			if err != nil {
				return cty.NilVal, i, err
			}
			key = kv.AsString()
			i = next
		} else {
			var next int
			key, next = scanToken(s, i)
			if key == "" {
				return cty.NilVal, i, &ParseError{Message: "expected object key", Pos: i}
			}
			i = next
		}

		i = skipSpace(s, i)
		if i >= len(s) || (s[i] != ':' && s[i] != '=') {
			return cty.NilVal, i, &ParseError{Message: fmt.Sprintf("expected ':' after key %q", key), Pos: i}
		}
		i++

		v, next, err := ParseAt(s, i)
		if err != nil {
			return cty.NilVal, i, err
		}
		attrs[key] = v
		i = next
	}
}

// skipToClose advances past the matching closer so the caller resumes after
// a truncated collection. Nested collections inside the elided tail are
// balanced; strings are skipped opaquely.
func skipToClose(s string, i int, open, close byte) int {
	depth := 1
	for i < len(s) {
		switch s[i] {
		case '"':
			_, next, err := parseString(s, i)
			if err != nil {
				return len(s)
			}
			i = next
			continue
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
		i++
	}
	return i
}

// scanToken reads a bare token: anything up to whitespace, a separator, or
// a closing bracket.
func scanToken(s string, i int) (string, int) {
	start := i
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if unicode.IsSpace(r) || strings.ContainsRune(",:]}=", r) {
			break
		}
		i += size
	}
	return s[start:i], i
}

// resolveToken resolves a bare token: named constants first, then the
// degree/percent suffix forms, then a plain float parse.
func resolveToken(tok string, pos int) (cty.Value, error) {
	switch tok {
	case "true":
		return cty.True, nil
	case "false":
		return cty.False, nil
	case "nil", "null":
		return Nil, nil
	case "function", "<function>":
		return FunctionVal, nil
	}
	if n, ok := Number(tok); ok {
		return cty.NumberFloatVal(n), nil
	}
	return cty.NilVal, &ParseError{Message: fmt.Sprintf("unrecognized token %q", tok), Pos: pos}
}

// Number resolves a bare token to its numeric meaning: the named-constant
// table, a degree-suffixed literal (converted to radians), a
// percent-suffixed literal (converted to a [0,1] fraction), or a plain
// floating-point literal. The tabular parser shares these suffix rules.
func Number(tok string) (float64, bool) {
	if v, ok := numberTokens[tok]; ok {
		return v, true
	}
	for _, suffix := range []string{"°", "deg"} {
		if body, ok := strings.CutSuffix(tok, suffix); ok {
			if n, err := strconv.ParseFloat(body, 64); err == nil {
				return n * math.Pi / 180, true
			}
		}
	}
	if body, ok := strings.CutSuffix(tok, "%"); ok {
		if n, err := strconv.ParseFloat(body, 64); err == nil {
			return n / 100, true
		}
	}
	if n, err := strconv.ParseFloat(tok, 64); err == nil {
		return n, true
	}
	return 0, false
}

func tupleOf(elems []cty.Value) cty.Value {
	if len(elems) == 0 {
		return cty.EmptyTupleVal
	}
	return cty.TupleVal(elems)
}
