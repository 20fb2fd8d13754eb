package literal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func num(t *testing.T, v cty.Value) float64 {
	t.Helper()
	require.True(t, v.Type().Equals(cty.Number), "not a number: %#v", v)
	f, _ := v.AsBigFloat().Float64()
	return f
}

func TestParseNumbers(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"42", 42},
		{"-3.5", -3.5},
		{"1e3", 1000},
		{"½", 0.5},
		{"-¼", -0.25},
		{"⅔", 2.0 / 3},
		{"π", math.Pi},
		{"-π", -math.Pi},
		{"pi", math.Pi},
		{"½π", math.Pi / 2},
		{"-¼π", -math.Pi / 4},
		{"30°", math.Pi / 6},
		{"45deg", math.Pi / 4},
		{"-90°", -math.Pi / 2},
		{"50%", 0.5},
		{"12.5%", 0.125},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			v, err := Parse(tc.in)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, num(t, v), 1e-12)
		})
	}
}

func TestParseInfinity(t *testing.T) {
	for _, in := range []string{"inf", "∞", "+∞"} {
		v, err := Parse(in)
		require.NoError(t, err)
		assert.True(t, math.IsInf(num(t, v), 1), in)
	}
	for _, in := range []string{"-inf", "-∞"} {
		v, err := Parse(in)
		require.NoError(t, err)
		assert.True(t, math.IsInf(num(t, v), -1), in)
	}
}

func TestParseSentinels(t *testing.T) {
	v, err := Parse("true")
	require.NoError(t, err)
	assert.Equal(t, cty.True, v)

	v, err = Parse("false")
	require.NoError(t, err)
	assert.Equal(t, cty.False, v)

	for _, in := range []string{"nil", "null"} {
		v, err = Parse(in)
		require.NoError(t, err)
		assert.True(t, v.IsNull(), in)
	}

	for _, in := range []string{"function", "<function>"} {
		v, err = Parse(in)
		require.NoError(t, err)
		assert.True(t, IsFunction(v), in)
	}
}

func TestParseString(t *testing.T) {
	v, err := Parse(`"hello world"`)
	require.NoError(t, err)
	assert.Equal(t, "hello world", v.AsString())

	v, err = Parse(`"quote \" and backslash \\"`)
	require.NoError(t, err)
	assert.Equal(t, `quote " and backslash \`, v.AsString())

	_, err = Parse(`"unterminated`)
	require.Error(t, err)
}

func TestParseArray(t *testing.T) {
	v, err := Parse("[1, 2, 3]")
	require.NoError(t, err)
	require.Equal(t, 3, v.LengthInt())
	assert.InDelta(t, 2, num(t, v.Index(cty.NumberIntVal(1))), 1e-12)

	v, err = Parse("[]")
	require.NoError(t, err)
	assert.Equal(t, 0, v.LengthInt())

	// Mixed elements and nesting.
	v, err = Parse(`[1, "two", [true, nil]]`)
	require.NoError(t, err)
	require.Equal(t, 3, v.LengthInt())
	inner := v.Index(cty.NumberIntVal(2))
	assert.Equal(t, cty.True, inner.Index(cty.NumberIntVal(0)))
}

func TestParseArrayTruncation(t *testing.T) {
	for _, in := range []string{"[1, 2, …]", "[1, 2, ...]"} {
		v, err := Parse(in)
		require.NoError(t, err, in)
		require.Equal(t, 2, v.LengthInt(), in)
	}

	// Elided tails may contain nested collections and strings.
	v, err := Parse(`[1, … [2, "]"], {a: 3}]`)
	require.NoError(t, err)
	assert.Equal(t, 1, v.LengthInt())
}

func TestParseObject(t *testing.T) {
	v, err := Parse(`{x: 1, y: 2}`)
	require.NoError(t, err)
	assert.InDelta(t, 1, num(t, v.GetAttr("x")), 1e-12)
	assert.InDelta(t, 2, num(t, v.GetAttr("y")), 1e-12)

	// Quoted keys and '=' separators are accepted.
	v, err = Parse(`{"speed" = 30°, done: false}`)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/6, num(t, v.GetAttr("speed")), 1e-12)
	assert.Equal(t, cty.False, v.GetAttr("done"))
}

func TestParseObjectTruncation(t *testing.T) {
	v, err := Parse(`{x: 1, …}`)
	require.NoError(t, err)
	assert.True(t, v.Type().HasAttribute("x"))
	assert.False(t, v.Type().HasAttribute("y"))
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "bogus", "[1, 2", "{x 1}", "1 2"} {
		_, err := Parse(in)
		require.Error(t, err, "input %q", in)
		var perr *ParseError
		assert.ErrorAs(t, err, &perr, "input %q", in)
	}
}

func TestParseAtReturnsOffset(t *testing.T) {
	v, next, err := ParseAt("  42 rest", 0)
	require.NoError(t, err)
	assert.InDelta(t, 42, num(t, v), 1e-12)
	assert.Equal(t, " rest", "  42 rest"[next:])
}

func TestNumberRejectsNonNumeric(t *testing.T) {
	_, ok := Number("hello")
	assert.False(t, ok)
	_, ok = Number("deg")
	assert.False(t, ok)
	_, ok = Number("%")
	assert.False(t, ok)
}
