package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/roach88/kryten/internal/callback"
	"github.com/roach88/kryten/internal/config"
	"github.com/roach88/kryten/internal/dispatch"
	"github.com/roach88/kryten/internal/match"
	"github.com/roach88/kryten/internal/monitor"
	"github.com/roach88/kryten/internal/source"
	"github.com/roach88/kryten/internal/store"
	"github.com/roach88/kryten/internal/testutil"
	"github.com/roach88/kryten/internal/variant"
)

// Epoch is the fake clock's start time.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// batchSize bounds each ProcessBatch call while draining the queue.
const batchSize = 400

// Harness holds one scenario run's wiring.
type Harness struct {
	store    *store.Store
	engine   *match.Engine
	queue    *callback.Queue
	handler  callback.Handler
	shutdown *dispatch.Shutdown
	clock    *clockwork.FakeClock
	logger   *slog.Logger
}

// Run executes a scenario and returns the result. An error means the
// scenario could not be run at all; failed expectations are reported in
// the result.
func Run(scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	parsed, err := config.ScanString(scenario.Config, logger)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if parsed.Errors() > 0 {
		var msgs []string
		for _, d := range parsed.Diagnostics {
			if d.Severity == config.SeverityError {
				msgs = append(msgs, d.Error())
			}
		}
		return nil, fmt.Errorf("config has errors: %s", strings.Join(msgs, "; "))
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:    st,
		queue:    callback.NewQueue(callback.WithLogger(logger)),
		shutdown: &dispatch.Shutdown{},
		clock:    clockwork.NewFakeClockAt(Epoch),
		logger:   logger,
	}

	d := dispatch.New(testutil.NewRecordingLauncher(scenario.LaunchExit), h.shutdown,
		dispatch.WithRecorder(st),
		dispatch.WithIDGenerator(dispatch.NewSequentialGenerator("d")),
		dispatch.WithClock(h.clock),
		dispatch.WithLogger(logger),
	)
	h.engine = match.New(d, match.WithLogger(logger))
	for _, e := range parsed.Entries {
		h.engine.Register(e)
	}
	h.handler = monitor.NewHandler(h.engine, logger)

	ctx := context.Background()
	result := NewResult()
	h.deliver(ctx, scenario.Events, result)

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}

	checkExpectations(result, scenario)
	actx := &AssertionContext{Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// deliver feeds events through the queue one at a time, stopping once
// quit has been requested.
func (h *Harness) deliver(ctx context.Context, events []source.Step, result *Result) {
	tr := source.NewTranslator(monitor.Subscriptions(h.engine.Channels()), h.clock)

	for i, ev := range events {
		if h.shutdown.Requested() {
			break
		}
		result.Delivered++

		if !tr.Subscribed(ev.Channel) {
			result.AddError(fmt.Sprintf("events[%d]: channel %s is not monitored", i, ev.Channel))
			continue
		}
		items, err := tr.Items(ev)
		if err != nil {
			result.AddError(fmt.Sprintf("events[%d]: %v", i, err))
		}
		for _, item := range items {
			if err := h.queue.Enqueue(item); err != nil {
				result.AddError(fmt.Sprintf("events[%d]: %v", i, err))
			}
		}
		for h.queue.Depth() > 0 {
			h.queue.ProcessBatch(ctx, batchSize, h.handler)
		}
		h.clock.Advance(time.Second)
	}

	result.Quit = h.shutdown.Requested()
	result.ExitCode = h.shutdown.Code()
}

// collect reads the trace back from the history store and snapshots the
// channel states.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	entries, err := h.store.ListDispatches(ctx, store.Filter{})
	if err != nil {
		return fmt.Errorf("read trace: %w", err)
	}
	for _, e := range entries {
		ev := TraceEvent{
			Seq:     e.Seq,
			Channel: e.Channel,
			Status:  string(e.Status),
			Value:   e.Value,
			Command: e.Command,
			Builtin: e.Builtin,
		}
		if e.Exit != nil {
			code := e.Exit.ExitCode
			ev.ExitCode = &code
		}
		result.Trace = append(result.Trace, ev)
	}

	for _, ch := range h.engine.Channels() {
		cs := ChannelState{
			Name:      ch.Name,
			Index:     ch.Index,
			State:     ch.State.String(),
			Connected: ch.Connected,
			Updates:   ch.Updates,
		}
		if ch.Value != nil {
			cs.Value = variant.Format(ch.Value)
		}
		result.Channels = append(result.Channels, cs)
	}
	return nil
}

// checkExpectations compares the trace with the scenario's expected
// dispatch list and exit code.
func checkExpectations(result *Result, scenario *Scenario) {
	if scenario.Expect != nil {
		n := max(len(scenario.Expect), len(result.Trace))
		for i := range n {
			switch {
			case i >= len(result.Trace):
				exp := scenario.Expect[i]
				result.AddError(fmt.Sprintf("expect[%d]: missing dispatch %s %q", i, exp.Status, exp.Command))
			case i >= len(scenario.Expect):
				got := result.Trace[i]
				result.AddError(fmt.Sprintf("unexpected dispatch %d: %s %q", i, got.Status, got.Command))
			default:
				exp, got := scenario.Expect[i], result.Trace[i]
				if string(exp.Status) != got.Status || exp.Command != got.Command {
					result.AddError(fmt.Sprintf("expect[%d]: want %s %q, got %s %q",
						i, exp.Status, exp.Command, got.Status, got.Command))
				}
			}
		}
	}

	if scenario.ExitCode != nil {
		switch {
		case !result.Quit:
			result.AddError(fmt.Sprintf("exit_code: want quit with %d, but quit was never requested", *scenario.ExitCode))
		case result.ExitCode != *scenario.ExitCode:
			result.AddError(fmt.Sprintf("exit_code: want %d, got %d", *scenario.ExitCode, result.ExitCode))
		}
	}
}
