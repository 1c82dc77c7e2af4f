// Package monitor runs the poll loop that ties a data source, the
// callback queue and the match engine together.
//
// Each cycle flushes the source, processes up to a batch of queued
// callbacks on the calling goroutine and sleeps for the poll interval.
// The loop ends when the context is cancelled or the built-in quit
// command has been dispatched.
package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/roach88/kryten/internal/callback"
	"github.com/roach88/kryten/internal/dispatch"
	"github.com/roach88/kryten/internal/match"
	"github.com/roach88/kryten/internal/metrics"
	"github.com/roach88/kryten/internal/source"
)

// Defaults for the poll loop.
const (
	DefaultPollInterval = 50 * time.Millisecond
	DefaultBatchSize    = 400
	DefaultConnectGrace = 2 * time.Second
)

// Monitor owns the poll loop.
type Monitor struct {
	engine   *match.Engine
	queue    *callback.Queue
	source   source.Source
	shutdown *dispatch.Shutdown

	clock    clockwork.Clock
	interval time.Duration
	batch    int
	grace    time.Duration
	logger   *slog.Logger
	out      io.Writer
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock sets the clock used for the poll sleep.
func WithClock(c clockwork.Clock) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

// WithPollInterval sets the sleep between cycles.
func WithPollInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithBatchSize sets the most callbacks processed per cycle.
func WithBatchSize(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.batch = n
		}
	}
}

// WithConnectGrace sets how long channels have to connect before they are
// reported as not found. Zero disables the report.
func WithConnectGrace(d time.Duration) Option {
	return func(m *Monitor) {
		m.grace = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = l
	}
}

// WithOutput sets where the connect timeout report is written.
func WithOutput(w io.Writer) Option {
	return func(m *Monitor) {
		m.out = w
	}
}

// New creates a Monitor for the channels registered with engine. The
// engine's commander must raise quit requests on shutdown.
func New(engine *match.Engine, queue *callback.Queue, src source.Source, shutdown *dispatch.Shutdown, opts ...Option) *Monitor {
	m := &Monitor{
		engine:   engine,
		queue:    queue,
		source:   src,
		shutdown: shutdown,
		clock:    clockwork.NewRealClock(),
		interval: DefaultPollInterval,
		batch:    DefaultBatchSize,
		grace:    DefaultConnectGrace,
		logger:   slog.Default(),
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscriptions returns one subscription per registered channel.
func (m *Monitor) Subscriptions() []source.Subscription {
	return Subscriptions(m.engine.Channels())
}

// Subscriptions returns the subscription for each channel, requesting the
// field type its rules expect.
func Subscriptions(channels []*match.Channel) []source.Subscription {
	subs := make([]source.Subscription, 0, len(channels))
	for _, ch := range channels {
		subs = append(subs, source.Subscription{
			ID:           ch.ID,
			Name:         ch.Name,
			ElementIndex: ch.Index,
			Request:      ch.Request(),
		})
	}
	return subs
}

// Run opens the source and polls until ctx is done or quit is requested.
// It returns the quit exit code, or 0 when stopped by ctx. Cancellation
// is an orderly stop, not an error.
func (m *Monitor) Run(ctx context.Context) (int, error) {
	subs := m.Subscriptions()
	if err := m.source.Open(ctx, subs, m.queue); err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	m.logger.Info("monitor starting", "channels", len(subs), "interval", m.interval, "batch", m.batch)

	h := NewHandler(m.engine, m.logger)
	reported := m.grace <= 0

	for cycle := 1; ; cycle++ {
		if err := m.source.Flush(); err != nil {
			m.logger.Warn("source flush failed", "error", err)
		}
		m.queue.ProcessBatch(ctx, m.batch, h)
		metrics.PollCyclesTotal.Inc()

		if !reported && time.Duration(cycle)*m.interval >= m.grace {
			m.reportUnconnected()
			reported = true
		}

		if m.shutdown.Requested() {
			m.logger.Info("monitor stopping: quit requested", "code", m.shutdown.Code())
			break
		}

		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping: context cancelled")
			return m.stop(0)
		case <-m.clock.After(m.interval):
		}
	}
	return m.stop(m.shutdown.Code())
}

func (m *Monitor) stop(code int) (int, error) {
	if err := m.source.Close(); err != nil {
		return code, fmt.Errorf("close source: %w", err)
	}
	return code, nil
}

func (m *Monitor) reportUnconnected() {
	for _, ch := range m.engine.Unconnected() {
		fmt.Fprintf(m.out, "Channel connect timed out: '%s' not found.\n", ch.Name)
		m.logger.Warn("channel connect timed out", "channel", ch.Name)
	}
}

// NewHandler returns the callback.Handler that feeds queued callbacks to
// engine. Engine errors are logged; log items are logged at info level.
func NewHandler(engine *match.Engine, logger *slog.Logger) callback.Handler {
	return &handler{engine: engine, logger: logger}
}

type handler struct {
	engine *match.Engine
	logger *slog.Logger
}

func (h *handler) HandleConnection(ctx context.Context, e callback.ConnectionEvent) {
	if err := h.engine.OnConnect(ctx, e); err != nil {
		h.logger.Warn("connection event dropped", "channel", e.Channel, "error", err)
	}
}

func (h *handler) HandleData(ctx context.Context, e callback.DataEvent) {
	if err := h.engine.OnData(ctx, e); err != nil {
		h.logger.Warn("update dropped", "channel", e.Channel, "error", err)
	}
}

func (h *handler) HandleLog(_ context.Context, e callback.LogEvent) {
	h.logger.Info(e.Text, "origin", "source")
}
