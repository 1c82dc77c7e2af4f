// Package metrics defines the Prometheus instruments exported by kryten.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Callback queue
var (
	// QueueDepth tracks items waiting in the callback queue.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kryten_callback_queue_depth",
			Help: "Items waiting in the callback queue",
		},
	)

	// QueueItemsTotal counts queue traffic by item kind and outcome
	// (enqueued, rejected, processed, unknown).
	QueueItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kryten_callback_items_total",
			Help: "Callback queue items by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// Matching and dispatch
var (
	// UpdatesTotal counts channel updates by outcome
	// (match, reject, unchanged, discarded).
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kryten_updates_total",
			Help: "Channel value updates by outcome",
		},
		[]string{"outcome"},
	)

	// DispatchesTotal counts dispatched commands by status and kind
	// (builtin, launch).
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kryten_dispatches_total",
			Help: "Dispatched commands by status and kind",
		},
		[]string{"status", "kind"},
	)

	// LaunchFailuresTotal counts commands that failed to start or exited
	// non-zero.
	LaunchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kryten_launch_failures_total",
			Help: "Launched commands that failed, by reason (start, exit)",
		},
		[]string{"reason"},
	)

	// ChannelsConnected tracks currently connected channels.
	ChannelsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kryten_channels_connected",
			Help: "Channels currently connected",
		},
	)

	// PollCyclesTotal counts poll loop iterations.
	PollCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kryten_poll_cycles_total",
			Help: "Poll loop iterations",
		},
	)
)

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown", "error", err)
		}
	}()

	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
