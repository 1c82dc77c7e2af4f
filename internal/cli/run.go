package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/kryten/internal/callback"
	"github.com/roach88/kryten/internal/dispatch"
	"github.com/roach88/kryten/internal/match"
	"github.com/roach88/kryten/internal/metrics"
	"github.com/roach88/kryten/internal/monitor"
	"github.com/roach88/kryten/internal/settings"
	"github.com/roach88/kryten/internal/source"
	"github.com/roach88/kryten/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Monitor     string
	Check       bool
	Suppress    bool
	Daemon      bool
	Settings    string
	EnvFile     string
	Script      string
	Database    string
	MetricsAddr string

	// Launcher overrides the process launcher (for testing).
	// If nil, commands are started with dispatch.ExecLauncher.
	Launcher dispatch.Launcher
}

// waiter is implemented by launchers that can wait for their commands.
type waiter interface {
	Wait(ctx context.Context) error
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [config-file]",
		Short: "Monitor channels and run commands on match changes",
		Long: `Monitor the channels named in a configuration file (or the --monitor
string) and run each channel's command whenever its value starts or stops
matching, or the channel disconnects.

Runs until SIGINT or SIGTERM (exit code 128 + signal number) or until a
"quit <code>" command is dispatched for a match (exit code <code>).

Examples:
  kryten run kryten.conf
  kryten run --monitor 'FLOW:RATE > 1.0e4 quit 3' --script flow.yaml
  kryten run kryten.conf --db history.db --metrics-addr :9102`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(opts, args, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Monitor, "monitor", "m", "", "configuration given inline instead of a file")
	f.BoolVarP(&opts.Check, "check", "c", false, "read the configuration and exit")
	f.BoolVarP(&opts.Suppress, "suppress", "s", false, "suppress the startup banner")
	f.BoolVarP(&opts.Daemon, "daemon", "d", false, "run as a daemon (not supported; runs in the foreground)")
	f.StringVar(&opts.Settings, "settings", "", "YAML runtime settings file")
	f.StringVar(&opts.EnvFile, "env-file", "", "dotenv file with KRYTEN_* settings")
	f.StringVar(&opts.Script, "script", "", "replay channel events from a YAML script")
	f.StringVar(&opts.Database, "db", "", "record dispatch history in this SQLite database")
	f.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runMonitor(opts *RunOptions, args []string, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	cfg, err := settings.Load(settings.Options{
		File:    opts.Settings,
		EnvFile: opts.EnvFile,
		Logger:  newLogger(cmd.ErrOrStderr(), slog.LevelInfo, "text"),
	})
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load settings", err)
	}

	level, _ := settings.ParseLevel(cfg.LogLevel)
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logFormat := cfg.LogFormat
	if opts.LogFormat != "" {
		logFormat = opts.LogFormat
	}
	logger := newLogger(cmd.ErrOrStderr(), level, logFormat)

	if !opts.Suppress {
		fmt.Fprintf(out, "kryten %s - process variable monitor\n", Version)
	}

	parsed, configSource, err := readConfig(opts.Monitor, args, logger)
	if err != nil {
		return err
	}
	if opts.Verbose {
		fmt.Fprintf(out, "configuration file: %s\n", configSource)
	}
	if opts.Monitor != "" && len(args) > 0 {
		logger.Warn("extra parameter(s) ignored", "count", len(args))
	}

	fmt.Fprintf(out, "PV client list created - %d entries.\n", len(parsed.Entries))
	if len(parsed.Entries) == 0 {
		fmt.Fprintln(out, "PV client list is empty - initiating an early shutdown.")
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var dispatchOpts []dispatch.Option
	dispatchOpts = append(dispatchOpts, dispatch.WithLogger(logger))

	dbPath := firstNonEmpty(opts.Database, cfg.HistoryDB)
	if dbPath != "" && !opts.Check {
		st, err := store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to open history database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing history database", "error", closeErr)
			}
		}()

		last, err := st.MaxSeq(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read history database", err)
		}
		dispatchOpts = append(dispatchOpts,
			dispatch.WithRecorder(st),
			dispatch.WithSequence(dispatch.NewSequenceAt(last)),
		)
		logger.Debug("recording history", "db", dbPath, "last_seq", last)
	}

	launcher := opts.Launcher
	if launcher == nil {
		el := dispatch.NewExecLauncher()
		el.Stdout = out
		el.Stderr = cmd.ErrOrStderr()
		launcher = el
	}

	shutdown := &dispatch.Shutdown{}
	engine := match.New(dispatch.New(launcher, shutdown, dispatchOpts...), match.WithLogger(logger))
	for _, e := range parsed.Entries {
		engine.Register(e)
	}

	if opts.Verbose {
		fmt.Fprintln(out, "Channels/match criteria...")
		if err := monitor.WriteListing(out, engine.Channels()); err != nil {
			return err
		}
	}
	if opts.Check {
		return nil
	}

	if opts.Daemon {
		logger.Warn("daemon mode is not supported, running in the foreground")
	}

	var src source.Source = source.Null{}
	if opts.Script != "" {
		script, err := source.LoadScript(opts.Script)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to load script", err)
		}
		src = source.NewReplay(script, source.WithLogger(logger))
	}

	if addr := firstNonEmpty(opts.MetricsAddr, cfg.MetricsAddr); addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, logger); err != nil {
				logger.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
	}

	// Signals stop the poll loop; the exit code records which one.
	sigCode := make(chan int, 1)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			name, num := signalInfo(sig)
			fmt.Fprintf(out, "\n%s received - initiating orderly shutdown.\n", name)
			sigCode <- ExitSignalBase + num
			cancel()
		case <-ctx.Done():
		}
	}()

	queue := callback.NewQueue(callback.WithLimit(cfg.QueueLimit), callback.WithLogger(logger))
	defer queue.Close()

	mon := monitor.New(engine, queue, src, shutdown,
		monitor.WithPollInterval(cfg.PollInterval),
		monitor.WithBatchSize(cfg.BatchSize),
		monitor.WithConnectGrace(cfg.ConnectGrace),
		monitor.WithLogger(logger),
		monitor.WithOutput(out),
	)

	if opts.Verbose {
		fmt.Fprintln(out, "Processing starting...")
	}
	code, err := mon.Run(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "monitor failed", err)
	}

	if w, ok := launcher.(waiter); ok && cfg.ShutdownWait > 0 {
		waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
		if err := w.Wait(waitCtx); err != nil {
			logger.Warn("commands still running at exit", "waited", cfg.ShutdownWait)
		}
		waitCancel()
	}

	select {
	case c := <-sigCode:
		code = c
	default:
	}

	fmt.Fprintln(out, "kryten complete")
	if code != ExitSuccess {
		return NewExitError(code, "")
	}
	return nil
}

// signalInfo returns a signal's conventional name and number.
func signalInfo(sig os.Signal) (string, int) {
	switch sig {
	case os.Interrupt:
		return "SIGINT", int(syscall.SIGINT)
	case syscall.SIGTERM:
		return "SIGTERM", int(syscall.SIGTERM)
	}
	if s, ok := sig.(syscall.Signal); ok {
		return s.String(), int(s)
	}
	return sig.String(), 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
