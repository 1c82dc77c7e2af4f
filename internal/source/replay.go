package source

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
)

// Replay is a Source that plays a Script against the subscribed
// channels. Every subscription whose name matches a step's channel
// receives that step.
type Replay struct {
	script *Script
	clock  clockwork.Clock
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// ReplayOption configures a Replay.
type ReplayOption func(*Replay)

// WithClock sets the clock used for step delays and timestamps.
func WithClock(c clockwork.Clock) ReplayOption {
	return func(r *Replay) {
		r.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ReplayOption {
	return func(r *Replay) {
		r.logger = l
	}
}

// NewReplay creates a Replay of sc.
func NewReplay(sc *Script, opts ...ReplayOption) *Replay {
	r := &Replay{
		script: sc,
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open starts one goroutine per scripted channel that has subscriptions.
func (r *Replay) Open(ctx context.Context, subs []Subscription, sink Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return errors.New("replay already open")
	}

	tr := NewTranslator(subs, r.clock)
	steps := make(map[string][]Step)
	for _, st := range r.script.Steps {
		steps[st.Channel] = append(steps[st.Channel], st)
	}

	ctx, r.cancel = context.WithCancel(ctx)
	for _, name := range r.script.Channels() {
		if !tr.Subscribed(name) {
			r.logger.Warn("script channel is not monitored", "channel", name)
			continue
		}
		logger := r.logger.With("channel", name)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.play(ctx, tr, steps[name], sink, logger)
		}()
	}

	go func() {
		r.wg.Wait()
		close(r.done)
	}()
	return nil
}

// Flush is a no-op; replayed events are enqueued as they happen.
func (r *Replay) Flush() error { return nil }

// Close stops playback and waits for the channel goroutines.
func (r *Replay) Close() error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	r.wg.Wait()
	return nil
}

// Done is closed when every channel has played its last step. It never
// closes if Open was not called.
func (r *Replay) Done() <-chan struct{} {
	return r.done
}

func (r *Replay) play(ctx context.Context, tr *Translator, steps []Step, sink Sink, logger *slog.Logger) {
	for _, st := range steps {
		if d := st.Delay(); d > 0 {
			select {
			case <-r.clock.After(d):
			case <-ctx.Done():
				return
			}
		} else if ctx.Err() != nil {
			return
		}

		items, err := tr.Items(st)
		if err != nil {
			logger.Warn("skipping script step", "event", st.Event, "error", err)
		}
		for _, item := range items {
			if err := sink.Enqueue(item); err != nil {
				logger.Warn("dropping script event", "event", st.Event, "error", err)
			}
		}
	}
}
