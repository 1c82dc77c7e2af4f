package variant

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Void{}
	var _ Value = String("x")
	var _ Value = Integer(1)
	var _ Value = Floating(1.5)
}

func TestParse(t *testing.T) {
	tests := []struct {
		token string
		want  Value
	}{
		{`"hello world"`, String("hello world")},
		{`"42"`, String("42")},
		{`""`, String("")},
		{"42", Integer(42)},
		{"-7", Integer(-7)},
		{"0x1F", Integer(31)},
		{"ff", Integer(255)},
		{"1e5", Integer(0x1e5)}, // whole-token hex wins before floating
		{"3.25", Floating(3.25)},
		{"-0.5", Floating(-0.5)},
		{"32.99e+8", Floating(32.99e8)},
		{"Open", String("Open")},
		{"0x", String("0x")},
		{"12abc!", String("12abc!")},
		{"", String("")},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.token))
		})
	}
}

func TestParse_IntegerOverflowFallsBackToFloating(t *testing.T) {
	v := Parse("99999999999999999999")
	require.Equal(t, KindFloating, v.Kind())
	assert.InDelta(t, 1e20, float64(v.(Floating)), 1e5)
}

func TestNewString(t *testing.T) {
	s, err := NewString("pump running")
	require.NoError(t, err)
	assert.Equal(t, String("pump running"), s)

	_, err = NewString(strings.Repeat("x", MaxStringSize))
	require.NoError(t, err)

	_, err = NewString(strings.Repeat("x", MaxStringSize+1))
	require.ErrorIs(t, err, ErrStringTooLong)
}

func TestNewString_NormalisesNFC(t *testing.T) {
	decomposed := "e\u0301"
	s, err := NewString(decomposed)
	require.NoError(t, err)
	assert.Equal(t, String("\u00e9"), s)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"string", String("on"), "on"},
		{"integer", Integer(-12), "-12"},
		{"zero", Floating(0), "0.000"},
		{"lower bound", Floating(0.1), "0.100"},
		{"upper bound", Floating(1e6), "1000000.000"},
		{"small", Floating(0.05), "5.000000e-02"},
		{"large", Floating(2.5e7), "2.500000e+07"},
		{"negative", Floating(-3.0), "-3.000"},
		{"void", Void{}, ""},
		{"positive infinity", Floating(math.Inf(1)), "inf"},
		{"negative infinity", Floating(math.Inf(-1)), "-inf"},
		{"nan", Floating(math.NaN()), "nan"},
		{"parsed infinity", Parse("inf"), "inf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.v))
		})
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, token := range []string{"17", "-4", "250.000", "Idle", "1.500000e-03"} {
		t.Run(token, func(t *testing.T) {
			v := Parse(token)
			back := Parse(Format(v))
			o, err := Compare(v, back)
			require.NoError(t, err)
			assert.Equal(t, Same, o)
		})
	}
}

func TestCompare_SameKind(t *testing.T) {
	o, err := Compare(Integer(3), Integer(4))
	require.NoError(t, err)
	assert.Equal(t, Less, o)

	o, err = Compare(Floating(4.5), Floating(4.5))
	require.NoError(t, err)
	assert.Equal(t, Same, o)

	o, err = Compare(String("b"), String("a"))
	require.NoError(t, err)
	assert.Equal(t, Greater, o)
}

func TestCompare_CrossKindCoercion(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want Ordering
	}{
		{"string bound against floating", String("5.0"), Floating(10), Less},
		{"string parsed as atof prefix", String("12.5 volts"), Floating(12.5), Same},
		{"unparsable string is zero", String("fault"), Floating(0), Same},
		{"unparsable string against positive", Floating(3), String("fault"), Greater},
		{"atol truncates fraction", String("7.9"), Integer(7), Same},
		{"integer against string", Integer(5), String("5"), Same},
		{"integer widened to floating", Integer(2), Floating(2.5), Less},
		{"floating against integer", Floating(2.0), Integer(2), Same},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompare_Void(t *testing.T) {
	_, err := Compare(Void{}, Integer(1))
	require.ErrorIs(t, err, ErrVoid)

	_, err = Compare(String("a"), Void{})
	require.ErrorIs(t, err, ErrVoid)

	_, err = Le(Void{}, Void{})
	require.ErrorIs(t, err, ErrVoid)
}

func TestCompare_NaNIsUnordered(t *testing.T) {
	nan := Floating(math.NaN())

	o, err := Compare(nan, Floating(1))
	require.NoError(t, err)
	assert.Equal(t, Unordered, o)

	le, _ := Le(nan, Floating(1))
	ge, _ := Ge(nan, Floating(1))
	assert.False(t, le)
	assert.False(t, ge)
}

func TestEqual_IsStrict(t *testing.T) {
	assert.True(t, Equal(Integer(5), Integer(5)))
	assert.True(t, Equal(String("on"), String("on")))
	assert.False(t, Equal(Integer(5), String("5")))
	assert.False(t, Equal(Integer(5), Floating(5)))
	assert.False(t, Equal(Void{}, Void{}))

	// Equal implies Compare == Same, not conversely.
	o, err := Compare(Integer(5), String("5"))
	require.NoError(t, err)
	assert.Equal(t, Same, o)
}

func TestDerivedRelations(t *testing.T) {
	a, b := Integer(1), Integer(2)

	lt, err := Lt(a, b)
	require.NoError(t, err)
	assert.True(t, lt)

	le, _ := Le(a, a)
	assert.True(t, le)

	gt, _ := Gt(b, a)
	assert.True(t, gt)

	ge, _ := Ge(a, b)
	assert.False(t, ge)

	ne, _ := Ne(a, b)
	assert.True(t, ne)

	ne, _ = Ne(Integer(5), String("5"))
	assert.False(t, ne, "Ne follows Compare, not strict Equal")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "void", KindVoid.String())
	assert.Equal(t, "string", KindString.String())
	assert.Equal(t, "integer", KindInteger.String())
	assert.Equal(t, "floating", KindFloating.String())
}
