// Package testutil holds test doubles shared across packages.
package testutil

import (
	"context"
	"sync"

	"github.com/roach88/kryten/internal/dispatch"
)

// RecordingCommander records invocations and renders them, without
// launching anything.
//
// Thread-safety: all methods are safe for concurrent use.
type RecordingCommander struct {
	mu          sync.Mutex
	invocations []dispatch.Invocation
}

// Invoke implements match.Commander.
func (c *RecordingCommander) Invoke(_ context.Context, inv dispatch.Invocation) dispatch.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invocations = append(c.invocations, inv)
	return dispatch.Record{
		Seq:     int64(len(c.invocations)),
		Channel: inv.Channel,
		Index:   inv.Index,
		Status:  inv.Status,
		Value:   inv.Value,
		Command: dispatch.Render(inv.Template, inv.Channel, inv.Index, inv.Status, inv.Value),
	}
}

// Invocations returns a copy of everything invoked so far.
func (c *RecordingCommander) Invocations() []dispatch.Invocation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]dispatch.Invocation, len(c.invocations))
	copy(out, c.invocations)
	return out
}

// Rendered returns the rendered command lines in invocation order.
func (c *RecordingCommander) Rendered() []string {
	invs := c.Invocations()
	out := make([]string, 0, len(invs))
	for _, inv := range invs {
		out = append(out, dispatch.Render(inv.Template, inv.Channel, inv.Index, inv.Status, inv.Value))
	}
	return out
}

// Statuses returns the dispatch statuses in invocation order.
func (c *RecordingCommander) Statuses() []dispatch.Status {
	invs := c.Invocations()
	out := make([]dispatch.Status, 0, len(invs))
	for _, inv := range invs {
		out = append(out, inv.Status)
	}
	return out
}

// Reset forgets all recorded invocations.
func (c *RecordingCommander) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invocations = nil
}

// RecordingLauncher implements dispatch.Launcher by recording commands and
// completing them immediately with a fixed exit code.
type RecordingLauncher struct {
	mu       sync.Mutex
	commands []string
	exitCode int
}

// NewRecordingLauncher creates a launcher whose commands all exit with
// exitCode.
func NewRecordingLauncher(exitCode int) *RecordingLauncher {
	return &RecordingLauncher{exitCode: exitCode}
}

// Launch implements dispatch.Launcher.
func (l *RecordingLauncher) Launch(command string, done func(dispatch.Outcome)) error {
	l.mu.Lock()
	l.commands = append(l.commands, command)
	code := l.exitCode
	l.mu.Unlock()

	if done != nil {
		done(dispatch.Outcome{ExitCode: code})
	}
	return nil
}

// Commands returns a copy of the launched command lines.
func (l *RecordingLauncher) Commands() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.commands))
	copy(out, l.commands)
	return out
}
