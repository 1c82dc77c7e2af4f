package harness

import (
	"context"
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Status, event.Command)
	}

	return buf.String()
}

// AssertionContext carries what assertions need beyond the result.
type AssertionContext struct {
	Ctx context.Context
}

// matches reports whether event satisfies the assertion's non-empty
// channel, status and command filters.
func (a Assertion) matches(event TraceEvent) bool {
	if a.Channel != "" && event.Channel != a.Channel {
		return false
	}
	if a.Status != "" && event.Status != string(a.Status) {
		return false
	}
	if a.Command != "" && event.Command != a.Command {
		return false
	}
	return true
}

func (a Assertion) describe() string {
	var parts []string
	if a.Channel != "" {
		parts = append(parts, "channel "+a.Channel)
	}
	if a.Status != "" {
		parts = append(parts, "status "+string(a.Status))
	}
	if a.Command != "" {
		parts = append(parts, fmt.Sprintf("command %q", a.Command))
	}
	if len(parts) == 0 {
		return "any dispatch"
	}
	return "dispatch with " + strings.Join(parts, ", ")
}

// assertTraceContains checks that some dispatch matches the assertion.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if assertion.matches(event) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: assertion.describe(),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that commands appear in the specified order.
// Commands don't need to be consecutive (intervening dispatches are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Command]; !seen {
			positions[event.Command] = i + 1 // 1-indexed for readability
		}
	}

	for _, cmd := range assertion.Commands {
		if positions[cmd] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all commands present: %q", assertion.Commands),
				Actual:   fmt.Sprintf("missing command: %q", cmd),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Commands); i++ {
		prev := assertion.Commands[i-1]
		curr := assertion.Commands[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("commands in order: %q", assertion.Commands),
				Actual: fmt.Sprintf("%q (pos %d) should be before %q (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks that exactly Count dispatches match.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if assertion.matches(event) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s to appear %d time(s)", assertion.describe(), assertion.Count),
			Actual:   fmt.Sprintf("appeared %d time(s)", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks every channel with the assertion's name.
func assertFinalState(result *Result, assertion Assertion) error {
	states := result.channel(assertion.Channel)
	if len(states) == 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("channel %s", assertion.Channel),
			Actual:   "channel not registered",
			Trace:    result.Trace,
		}
	}

	for _, cs := range states {
		if assertion.State != "" && cs.State != assertion.State {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("channel %s [%d] in state %s", cs.Name, cs.Index, assertion.State),
				Actual:   fmt.Sprintf("state %s", cs.State),
				Trace:    result.Trace,
			}
		}
		if assertion.Connected != nil && cs.Connected != *assertion.Connected {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("channel %s [%d] connected=%t", cs.Name, cs.Index, *assertion.Connected),
				Actual:   fmt.Sprintf("connected=%t", cs.Connected),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		if actx != nil && actx.Ctx != nil && actx.Ctx.Err() != nil {
			errors = append(errors, fmt.Sprintf("assertion[%d]: %v", i, actx.Ctx.Err()))
			break
		}

		var err error
		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
