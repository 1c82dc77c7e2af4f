package dispatch

import (
	"strconv"
	"strings"
	"unicode"
)

// DefaultParameters is appended to a template that is a bare command with
// no parameters of its own.
const DefaultParameters = " %p %m %v %e"

// Status is the reason a command is dispatched; it is what %m expands to.
type Status string

const (
	StatusMatch      Status = "match"
	StatusReject     Status = "reject"
	StatusDisconnect Status = "disconnect"
)

// WithDefaultParameters returns template with DefaultParameters appended
// when the template is a single token.
func WithDefaultParameters(template string) string {
	if len(strings.Fields(template)) <= 1 {
		return template + DefaultParameters
	}
	return template
}

// Render expands a command template.
//
// %p becomes the channel name, %e the element index, %m the status and
// %v the value wrapped in single quotes. %v is expanded last so that
// placeholder sequences inside the value text are left alone.
func Render(template, name string, index int, status Status, value string) string {
	out := WithDefaultParameters(template)
	out = strings.ReplaceAll(out, "%p", name)
	out = strings.ReplaceAll(out, "%e", strconv.Itoa(index))
	out = strings.ReplaceAll(out, "%m", string(status))
	return strings.ReplaceAll(out, "%v", "'"+value+"'")
}

// QuitPrefix marks the built-in quit command.
const QuitPrefix = "quit "

// ParseQuit reports whether rendered is the quit built-in and returns its
// exit code. The code is read like C atoi: a malformed code is 0.
func ParseQuit(rendered string) (int, bool) {
	rest, ok := strings.CutPrefix(rendered, QuitPrefix)
	if !ok {
		return 0, false
	}
	return atoi(rest), true
}

// atoi reads the leading decimal integer of s after optional white space
// and sign. Anything unparsable yields 0; overflow saturates to the int32
// range.
func atoi(s string) int {
	t := strings.TrimLeftFunc(s, unicode.IsSpace)
	sign := ""
	if t != "" && (t[0] == '+' || t[0] == '-') {
		sign, t = t[:1], t[1:]
	}
	end := 0
	for end < len(t) && t[end] >= '0' && t[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, _ := strconv.ParseInt(sign+t[:end], 10, 32)
	return int(n)
}
