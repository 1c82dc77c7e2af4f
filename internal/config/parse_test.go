package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kryten/internal/rules"
	"github.com/roach88/kryten/internal/variant"
)

func parseOne(t *testing.T, line string) (Entry, []string, error) {
	t.Helper()
	p := &lineParser{src: line}
	e, err := p.parseEntry()
	return e, p.warnings, err
}

func TestParseEntry_Range(t *testing.T) {
	e, warnings, err := parseOne(t, "TANK:LEVEL 5.0 ~ 205.0 /bin/echo")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "TANK:LEVEL", e.Name)
	assert.Equal(t, 1, e.Index)
	assert.Equal(t, "/bin/echo", e.Command)
	require.Equal(t, 1, e.Rules.Len())
	assert.Equal(t, rules.NewRange(variant.Floating(5), variant.Floating(205)), e.Rules.Rules()[0])
	assert.Equal(t, variant.KindFloating, e.Rules.Expected())
}

func TestParseEntry_Operators(t *testing.T) {
	tests := []struct {
		alt  string
		want rules.Rule
	}{
		{"/= 3", rules.NewComparison(rules.OpNotEqual, variant.Integer(3))},
		{"<= 3", rules.NewComparison(rules.OpLessEqual, variant.Integer(3))},
		{">= 3", rules.NewComparison(rules.OpGreaterEqual, variant.Integer(3))},
		{"= 3", rules.NewComparison(rules.OpEqual, variant.Integer(3))},
		{"< 3", rules.NewComparison(rules.OpLess, variant.Integer(3))},
		{"> 3", rules.NewComparison(rules.OpGreater, variant.Integer(3))},
		{">=3", rules.NewComparison(rules.OpGreaterEqual, variant.Integer(3))},
		{"3", rules.NewComparison(rules.OpEqual, variant.Integer(3))},
		{"0x10", rules.NewComparison(rules.OpEqual, variant.Integer(16))},
		{"1 ~ 2", rules.NewRange(variant.Integer(1), variant.Integer(2))},
		{"1~2", rules.NewRange(variant.Integer(1), variant.Integer(2))},
	}

	for _, tt := range tests {
		t.Run(tt.alt, func(t *testing.T) {
			e, _, err := parseOne(t, "PV "+tt.alt+" cmd")
			require.NoError(t, err)
			require.Equal(t, 1, e.Rules.Len())
			assert.Equal(t, tt.want, e.Rules.Rules()[0])
		})
	}
}

func TestParseEntry_Alternatives(t *testing.T) {
	e, warnings, err := parseOne(t, `PUMP [2] "Running" | "Starting up" | < 0 logger -t kryten   %p  is %v`)
	require.NoError(t, err)

	assert.Equal(t, 2, e.Index)
	assert.Equal(t, "logger -t kryten %p is %v", e.Command)
	require.Equal(t, 3, e.Rules.Len())
	assert.Equal(t, variant.String("Running"), e.Rules.Rules()[0].Lower)
	assert.Equal(t, variant.String("Starting up"), e.Rules.Rules()[1].Lower)
	assert.Equal(t, rules.OpLess, e.Rules.Rules()[2].Op)

	assert.Equal(t, []string{"the value of sub-match 3 is integer, expecting string."}, warnings)
}

func TestParseEntry_RangeKindWarnings(t *testing.T) {
	_, warnings, err := parseOne(t, `X 1.0 ~ 2.0 | 1 ~ "z" run`)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"1st value of sub-match 2 is integer, expecting floating.",
		"2nd value of sub-match 2 is string, expecting floating.",
	}, warnings)
}

func TestParseEntry_Index(t *testing.T) {
	e, warnings, err := parseOne(t, "WAVE [0x20] > 1 run")
	require.NoError(t, err)
	assert.Equal(t, 32, e.Index)
	assert.Empty(t, warnings)

	e, warnings, err = parseOne(t, "WAVE [1001] > 1 run")
	require.NoError(t, err)
	assert.Equal(t, 1001, e.Index)
	assert.Equal(t, []string{"PV index 1001 is unusually large"}, warnings)
}

func TestParseEntry_Errors(t *testing.T) {
	long := strings.Repeat("x", variant.MaxStringSize+1)

	tests := []struct {
		name string
		line string
		want string
	}{
		{"bad name", "-PV 1 run", "invalid PV name: -PV"},
		{"long name", strings.Repeat("N", MaxNameLength+1) + " 1 run", "pv name too long"},
		{"name only", "PV", "premature end of line"},
		{"no command", "PV 1 ~ 2", "premature end of line"},
		{"dangling range", "PV 1 ~", "premature end of line"},
		{"dangling operator", "PV >=", "premature end of line"},
		{"dangling alternative", "PV 1 |", "premature end of line"},
		{"missing bracket", "PV [3 1 run", "missing ']'"},
		{"bad index", "PV [three] 1 run", "index item [three] is not a valid integer"},
		{"zero index", "PV [0] 1 run", "invalid PV index: 0"},
		{"negative index", "PV [-2] 1 run", "invalid PV index: -2"},
		{"index then nothing", "PV [2]", "premature end of line"},
		{"long quoted", `PV "` + long + `" run`, "quoted string too big: \"" + long + "\""},
		{"long bare", "PV " + long + " run", "un-quoted string too big: " + long},
		{"long command", "PV 1 run " + strings.Repeat("a", MaxCommandLength), "command too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseOne(t, tt.line)
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestParseEntry_TooManyAlternatives(t *testing.T) {
	alts := make([]string, rules.MaxRules+1)
	for i := range alts {
		alts[i] = "1"
	}

	_, _, err := parseOne(t, "PV "+strings.Join(alts[:rules.MaxRules], " | ")+" run")
	require.NoError(t, err)

	_, _, err = parseOne(t, "PV "+strings.Join(alts, " | ")+" run")
	require.ErrorIs(t, err, rules.ErrTooManyRules)
	assert.EqualError(t, err, "attempting to specify more than 20 sub-matches")
}

func TestParseEntry_CommandLengthCountsDefaultParameters(t *testing.T) {
	// A single-token command is checked with the default parameters added.
	bare := strings.Repeat("c", MaxCommandLength-len(" %p %m %v %e"))
	_, _, err := parseOne(t, "PV 1 "+bare)
	require.NoError(t, err)

	_, _, err = parseOne(t, "PV 1 "+bare+"c")
	assert.EqualError(t, err, "command too long")
}

func TestParseEntry_DollarName(t *testing.T) {
	e, _, err := parseOne(t, "$(P)TEMP > 30 run")
	require.NoError(t, err)
	assert.Equal(t, "$(P)TEMP", e.Name)
}
