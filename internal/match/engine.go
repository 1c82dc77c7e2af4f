// Package match tracks each channel's match state and dispatches commands
// when it changes.
//
// Every update is classified as matched or unmatched against the
// channel's rule set. A dispatch happens only when the classification
// differs from the previous one; a channel starts in StateUnknown so its
// first update always dispatches. Disconnects always dispatch and leave
// the state alone.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/kryten/internal/callback"
	"github.com/roach88/kryten/internal/config"
	"github.com/roach88/kryten/internal/dispatch"
	"github.com/roach88/kryten/internal/metrics"
	"github.com/roach88/kryten/internal/variant"
)

// ErrUnknownChannel is returned for an ID the engine never issued.
var ErrUnknownChannel = errors.New("unknown channel")

// Commander receives dispatch requests.
type Commander interface {
	Invoke(ctx context.Context, inv dispatch.Invocation) dispatch.Record
}

// Engine owns the channel registry and the per-channel state machine.
// It is not safe for concurrent use; all calls come from the poll
// goroutine.
type Engine struct {
	channels  []*Channel
	commander Commander
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine that sends dispatches to commander.
func New(commander Commander, opts ...Option) *Engine {
	e := &Engine{
		commander: commander,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a channel for entry and returns it. IDs are issued in
// registration order starting at 0.
func (e *Engine) Register(entry config.Entry) *Channel {
	ch := &Channel{
		ID:      callback.ChannelID(len(e.channels)),
		Name:    entry.Name,
		Index:   entry.Index,
		Rules:   entry.Rules,
		Command: entry.Command,
		Source:  entry.Source,
		Line:    entry.Line,
		State:   StateUnknown,
	}
	e.channels = append(e.channels, ch)
	return ch
}

// Channel returns the channel with the given ID.
func (e *Engine) Channel(id callback.ChannelID) (*Channel, bool) {
	if id < 0 || int(id) >= len(e.channels) {
		return nil, false
	}
	return e.channels[id], true
}

// Channels returns all channels in registration order.
func (e *Engine) Channels() []*Channel {
	return e.channels
}

// Unconnected returns the channels that have never connected.
func (e *Engine) Unconnected() []*Channel {
	var out []*Channel
	for _, ch := range e.channels {
		if !ch.EverConnected {
			out = append(out, ch)
		}
	}
	return out
}

// OnConnect records a connection event. A connection going down is
// handled as a disconnect. A channel whose element index is beyond the
// connected element count is reported; its updates will be discarded.
func (e *Engine) OnConnect(ctx context.Context, ev callback.ConnectionEvent) error {
	ch, ok := e.Channel(ev.Channel)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, ev.Channel)
	}
	if !ev.Up {
		return e.OnDisconnect(ctx, ev.Channel)
	}

	if !ch.Connected {
		metrics.ChannelsConnected.Inc()
	}
	ch.Connected = true
	ch.EverConnected = true
	ch.Host = ev.Host
	ch.FieldType = ev.FieldType
	ch.ElementCount = ev.ElementCount
	e.logger.Debug("channel connected", "channel", ch.Name, "host", ev.Host, "field_type", ev.FieldType, "elements", ev.ElementCount)
	if ev.ElementCount > 0 && ch.Index > ev.ElementCount {
		e.logger.Warn("element not available", "channel", ch.Name, "elements", ev.ElementCount, "element", ch.Index)
	}
	return nil
}

// OnDisconnect dispatches a disconnect for the channel. The match state
// is kept, so the first update after a reconnect only dispatches if its
// classification differs from the last one.
func (e *Engine) OnDisconnect(ctx context.Context, id callback.ChannelID) error {
	ch, ok := e.Channel(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, id)
	}

	if ch.Connected {
		metrics.ChannelsConnected.Dec()
	}
	ch.Connected = false
	e.logger.Debug("channel disconnected", "channel", ch.Name)

	e.commander.Invoke(ctx, dispatch.Invocation{
		Channel:  ch.Name,
		Index:    ch.Index,
		Template: ch.Command,
		Status:   dispatch.StatusDisconnect,
	})
	return nil
}

// OnData records an update's metadata, selects the channel's element and
// classifies it. Updates without the channel's element are discarded.
func (e *Engine) OnData(ctx context.Context, ev callback.DataEvent) error {
	ch, ok := e.Channel(ev.Channel)
	if !ok {
		metrics.UpdatesTotal.WithLabelValues("discarded").Inc()
		return fmt.Errorf("%w: %d", ErrUnknownChannel, ev.Channel)
	}

	u := ev.Update
	ch.Status = u.Status
	ch.Severity = u.Severity
	ch.Timestamp = u.Timestamp
	ch.ElementCount = len(u.Values)

	v, err := Convert(u, ch.Index, ch.Rules.Expected())
	if err != nil {
		metrics.UpdatesTotal.WithLabelValues("discarded").Inc()
		return fmt.Errorf("channel %s: %w", ch.Name, err)
	}
	_, err = e.OnUpdate(ctx, ev.Channel, v)
	return err
}

// OnUpdate classifies v against the channel's rules and dispatches on a
// change of state. It returns the new state.
//
// Rules that cannot be compared with v count as not matching and are
// logged; they never stop evaluation.
func (e *Engine) OnUpdate(ctx context.Context, id callback.ChannelID, v variant.Value) (State, error) {
	ch, ok := e.Channel(id)
	if !ok {
		metrics.UpdatesTotal.WithLabelValues("discarded").Inc()
		return StateUnknown, fmt.Errorf("%w: %d", ErrUnknownChannel, id)
	}

	matched, err := ch.Rules.Evaluate(v)
	if err != nil {
		e.logger.Warn("comparison failed", "channel", ch.Name, "value", variant.Format(v), "error", err)
	}

	next, status := StateUnmatched, dispatch.StatusReject
	if matched {
		next, status = StateMatched, dispatch.StatusMatch
	}

	ch.Value = v
	ch.Updates++

	if next == ch.State {
		metrics.UpdatesTotal.WithLabelValues("unchanged").Inc()
		return next, nil
	}
	ch.State = next
	metrics.UpdatesTotal.WithLabelValues(string(status)).Inc()

	e.commander.Invoke(ctx, dispatch.Invocation{
		Channel:  ch.Name,
		Index:    ch.Index,
		Template: ch.Command,
		Status:   status,
		Value:    variant.Format(v),
	})
	return next, nil
}
