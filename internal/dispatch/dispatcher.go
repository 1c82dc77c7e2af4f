// Package dispatch renders command templates and runs them when a
// channel's match state changes.
//
// A rendered command is either the built-in "quit <code>", which requests
// an orderly shutdown when dispatched for a match, or an external command
// handed to a Launcher. External commands are fire-and-forget: a failure
// is logged and recorded, never retried.
package dispatch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/roach88/kryten/internal/metrics"
)

// Shutdown holds the quit request raised by the built-in command.
// Safe for concurrent use.
type Shutdown struct {
	requested atomic.Bool
	code      atomic.Int64
}

// Request records a quit with the given exit code. A later request
// overwrites the code.
func (s *Shutdown) Request(code int) {
	s.code.Store(int64(code))
	s.requested.Store(true)
}

// Requested reports whether quit has been requested.
func (s *Shutdown) Requested() bool {
	return s.requested.Load()
}

// Code returns the requested exit code, 0 if none.
func (s *Shutdown) Code() int {
	return int(s.code.Load())
}

// Record describes one dispatch.
type Record struct {
	ID      string
	Seq     int64
	Channel string
	Index   int
	Status  Status
	Value   string
	Command string
	Builtin bool
	At      time.Time
}

// Recorder persists dispatch history. Implementations must be safe for
// concurrent use: RecordExit is called from launcher goroutines.
type Recorder interface {
	RecordDispatch(ctx context.Context, r Record) error
	RecordExit(ctx context.Context, id string, o Outcome, at time.Time) error
}

// Invocation asks for a channel's template to be rendered and dispatched.
type Invocation struct {
	Channel  string
	Index    int
	Template string
	Status   Status
	// Value is the formatted value, unquoted. Empty on disconnect.
	Value string
}

// Dispatcher renders and runs commands.
type Dispatcher struct {
	launcher Launcher
	shutdown *Shutdown
	recorder Recorder
	ids      IDGenerator
	seq      *Sequence
	clock    clockwork.Clock
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRecorder sets where dispatch history is written.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// WithIDGenerator overrides the UUIDv7 dispatch ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(d *Dispatcher) {
		d.ids = g
	}
}

// WithSequence sets the logical sequence to stamp dispatches with.
func WithSequence(s *Sequence) Option {
	return func(d *Dispatcher) {
		d.seq = s
	}
}

// WithClock sets the clock used for dispatch timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// New creates a Dispatcher that launches external commands with launcher
// and raises quit requests on shutdown.
func New(launcher Launcher, shutdown *Shutdown, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		launcher: launcher,
		shutdown: shutdown,
		ids:      UUIDv7Generator{},
		seq:      &Sequence{},
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Invoke renders inv's template and dispatches the result.
func (d *Dispatcher) Invoke(ctx context.Context, inv Invocation) Record {
	rendered := Render(inv.Template, inv.Channel, inv.Index, inv.Status, inv.Value)
	return d.run(ctx, Record{
		Channel: inv.Channel,
		Index:   inv.Index,
		Status:  inv.Status,
		Value:   inv.Value,
		Command: rendered,
	})
}

// Dispatch runs an already rendered command.
//
// When status is StatusMatch and rendered starts with "quit ", the
// remainder is parsed as an exit code and shutdown is requested; nothing
// is launched. Every other command goes to the launcher asynchronously.
func (d *Dispatcher) Dispatch(ctx context.Context, rendered string, status Status) Record {
	return d.run(ctx, Record{Status: status, Command: rendered})
}

func (d *Dispatcher) run(ctx context.Context, rec Record) Record {
	rec.ID = d.ids.Generate()
	rec.Seq = d.seq.Next()
	rec.At = d.clock.Now()

	if rec.Status == StatusMatch {
		if code, ok := ParseQuit(rec.Command); ok {
			rec.Builtin = true
			d.logger.Info("builtin", "command", rec.Command, "exit_code", code, "channel", rec.Channel)
			d.shutdown.Request(code)
			metrics.DispatchesTotal.WithLabelValues(string(rec.Status), "builtin").Inc()
			d.record(ctx, rec)
			return rec
		}
	}

	d.logger.Debug("calling command", "command", rec.Command, "channel", rec.Channel, "status", rec.Status)
	metrics.DispatchesTotal.WithLabelValues(string(rec.Status), "launch").Inc()
	d.record(ctx, rec)

	// The command outlives this call; its exit is recorded even if ctx is
	// cancelled in the meantime.
	exitCtx := context.WithoutCancel(ctx)
	id, command := rec.ID, rec.Command
	err := d.launcher.Launch(command, func(o Outcome) {
		if !o.OK() {
			metrics.LaunchFailuresTotal.WithLabelValues("exit").Inc()
			d.logger.Warn("command returned non-zero", "command", command, "exit_code", o.ExitCode, "error", o.Err)
		}
		d.recordExit(exitCtx, id, o)
	})
	if err != nil {
		metrics.LaunchFailuresTotal.WithLabelValues("start").Inc()
		d.logger.Warn("command failed to start", "command", command, "error", err)
		d.recordExit(exitCtx, id, Outcome{ExitCode: -1, Err: err})
	}
	return rec
}

func (d *Dispatcher) record(ctx context.Context, rec Record) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.RecordDispatch(ctx, rec); err != nil {
		d.logger.Error("record dispatch", "id", rec.ID, "error", err)
	}
}

func (d *Dispatcher) recordExit(ctx context.Context, id string, o Outcome) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.RecordExit(ctx, id, o, d.clock.Now()); err != nil {
		d.logger.Error("record exit", "id", id, "error", err)
	}
}
