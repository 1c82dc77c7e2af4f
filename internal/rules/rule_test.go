package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kryten/internal/variant"
)

func TestRule_Range(t *testing.T) {
	r := NewRange(variant.Floating(5.0), variant.Floating(205.0))

	tests := []struct {
		v    variant.Value
		want bool
	}{
		{variant.Floating(3.0), false},
		{variant.Floating(5.0), true},
		{variant.Floating(10.0), true},
		{variant.Floating(205.0), true},
		{variant.Floating(300.0), false},
		{variant.Integer(100), true},
	}

	for _, tt := range tests {
		got, err := r.Matches(tt.v)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "value %v", tt.v)
	}
}

func TestRule_Comparisons(t *testing.T) {
	five := variant.Integer(5)

	tests := []struct {
		name string
		op   Operator
		v    variant.Value
		want bool
	}{
		{"equal same kind", OpEqual, variant.Integer(5), true},
		{"equal is strict across kinds", OpEqual, variant.Floating(5), false},
		{"not equal", OpNotEqual, variant.Integer(6), true},
		{"not equal coerces", OpNotEqual, variant.Floating(5), false},
		{"less", OpLess, variant.Integer(4), true},
		{"less boundary", OpLess, variant.Integer(5), false},
		{"less equal", OpLessEqual, variant.Integer(5), true},
		{"greater", OpGreater, variant.Floating(5.5), true},
		{"greater equal", OpGreaterEqual, variant.Integer(4), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewComparison(tt.op, five).Matches(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRule_VoidValueIsError(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"less", NewComparison(OpLess, variant.Integer(1))},
		{"equal", NewComparison(OpEqual, variant.Integer(5))},
		{"equal string", NewComparison(OpEqual, variant.String("on"))},
		{"not equal", NewComparison(OpNotEqual, variant.Integer(5))},
		{"range", NewRange(variant.Integer(1), variant.Integer(9))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.rule.Matches(variant.Void{})
			require.ErrorIs(t, err, variant.ErrVoid)
			assert.False(t, got)
		})
	}
}

func TestRule_EqualVoidBoundIsError(t *testing.T) {
	got, err := NewComparison(OpEqual, variant.Void{}).Matches(variant.Integer(5))
	require.ErrorIs(t, err, variant.ErrVoid)
	assert.False(t, got)
}

func TestOperatorSymbol(t *testing.T) {
	assert.Equal(t, "~", OpRange.Symbol())
	assert.Equal(t, "/=", OpNotEqual.Symbol())
	assert.Equal(t, ">=", OpGreaterEqual.Symbol())
	assert.Equal(t, "?", Operator(99).Symbol())
}

func TestSet_FirstMatchWins(t *testing.T) {
	var s Set
	_, err := s.Add(NewComparison(OpLess, variant.Integer(0)))
	require.NoError(t, err)
	_, err = s.Add(NewRange(variant.Integer(10), variant.Integer(20)))
	require.NoError(t, err)

	ok, err := s.Evaluate(variant.Integer(-1))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Evaluate(variant.Integer(15))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Evaluate(variant.Integer(5))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSet_EvaluateContinuesPastErrors(t *testing.T) {
	var s Set
	_, err := s.Add(NewComparison(OpLess, variant.Void{}))
	require.NoError(t, err)
	_, err = s.Add(NewComparison(OpGreater, variant.Integer(0)))
	require.NoError(t, err)

	ok, err := s.Evaluate(variant.Integer(3))
	assert.True(t, ok)
	require.ErrorIs(t, err, variant.ErrVoid)
}

func TestSet_Limit(t *testing.T) {
	var s Set
	for i := 0; i < MaxRules; i++ {
		_, err := s.Add(NewComparison(OpEqual, variant.Integer(int64(i))))
		require.NoError(t, err)
	}
	_, err := s.Add(NewComparison(OpEqual, variant.Integer(99)))
	require.ErrorIs(t, err, ErrTooManyRules)
	assert.Equal(t, MaxRules, s.Len())
}

func TestSet_KindMismatches(t *testing.T) {
	var s Set

	m, err := s.Add(NewRange(variant.Floating(1), variant.Floating(2)))
	require.NoError(t, err)
	assert.Empty(t, m)
	assert.Equal(t, variant.KindFloating, s.Expected())

	m, err = s.Add(NewComparison(OpEqual, variant.String("off")))
	require.NoError(t, err)
	require.Len(t, m, 1)
	assert.Equal(t, Mismatch{Which: "the", Kind: variant.KindString, Expected: variant.KindFloating}, m[0])

	m, err = s.Add(NewRange(variant.Integer(1), variant.String("x")))
	require.NoError(t, err)
	require.Len(t, m, 2)
	assert.Equal(t, "1st", m[0].Which)
	assert.Equal(t, "2nd", m[1].Which)

	assert.Equal(t, 3, s.Len(), "mismatched rules are still installed")
}

func TestSet_EmptyExpectsVoid(t *testing.T) {
	var s Set
	assert.Equal(t, variant.KindVoid, s.Expected())
	ok, err := s.Evaluate(variant.Integer(1))
	require.NoError(t, err)
	assert.False(t, ok)
}
