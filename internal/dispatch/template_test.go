package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithDefaultParameters(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"bare command", "/bin/echo", "/bin/echo %p %m %v %e"},
		{"empty", "", " %p %m %v %e"},
		{"has parameters", "/bin/echo %v", "/bin/echo %v"},
		{"literal arguments", "logger -t kryten", "logger -t kryten"},
		{"quit builtin", "quit 3", "quit 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WithDefaultParameters(tt.template))
		})
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		pv       string
		index    int
		status   Status
		value    string
		want     string
	}{
		{
			name:     "simple form gets default parameters",
			template: "/bin/echo",
			pv:       "TANK:LEVEL",
			index:    1,
			status:   StatusReject,
			value:    "3.000",
			want:     "/bin/echo TANK:LEVEL reject '3.000' 1",
		},
		{
			name:     "value before name",
			template: "%v says %p",
			pv:       "PUMP1",
			index:    1,
			status:   StatusMatch,
			value:    "6",
			want:     "'6' says PUMP1",
		},
		{
			name:     "value text is not re-expanded",
			template: "notify %v %p",
			pv:       "MSG",
			index:    2,
			status:   StatusMatch,
			value:    "%p %e %m",
			want:     "notify '%p %e %m' MSG",
		},
		{
			name:     "disconnect has empty value",
			template: "alarm",
			pv:       "X",
			index:    4,
			status:   StatusDisconnect,
			value:    "",
			want:     "alarm X disconnect '' 4",
		},
		{
			name:     "repeated placeholders",
			template: "echo %p %p %e%e",
			pv:       "A",
			index:    7,
			status:   StatusMatch,
			want:     "echo A A 77",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.template, tt.pv, tt.index, tt.status, tt.value)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQuit(t *testing.T) {
	tests := []struct {
		rendered string
		code     int
		ok       bool
	}{
		{"quit 3", 3, true},
		{"quit  42", 42, true},
		{"quit -2", -2, true},
		{"quit 7 trailing", 7, true},
		{"quit match", 0, true},
		{"quit ", 0, true},
		{"quit", 0, false},
		{"quitter 1", 0, false},
		{" quit 1", 0, false},
		{"/bin/echo quit 1", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.rendered, func(t *testing.T) {
			code, ok := ParseQuit(tt.rendered)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestAtoi(t *testing.T) {
	assert.Equal(t, 12, atoi("12abc"))
	assert.Equal(t, 5, atoi("  +5"))
	assert.Equal(t, 0, atoi("-"))
	assert.Equal(t, 0, atoi("x1"))
	assert.Equal(t, 0, atoi(""))
}
