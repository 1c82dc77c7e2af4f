package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/kryten/internal/config"
	"github.com/roach88/kryten/internal/match"
	"github.com/roach88/kryten/internal/monitor"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Monitor string
}

// CheckResult is the JSON payload of the check command.
type CheckResult struct {
	Source      string           `json:"source"`
	Entries     int              `json:"entries"`
	Errors      int              `json:"errors"`
	Warnings    int              `json:"warnings"`
	Diagnostics []DiagnosticInfo `json:"diagnostics"`
	Channels    []ChannelInfo    `json:"channels"`
}

// DiagnosticInfo is one configuration problem.
type DiagnosticInfo struct {
	Line     int    `json:"line"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Text     string `json:"text,omitempty"`
}

// ChannelInfo describes one configured channel.
type ChannelInfo struct {
	Name    string   `json:"name"`
	Index   int      `json:"index"`
	Request string   `json:"request"`
	Command string   `json:"command"`
	Matches []string `json:"matches"`
	Line    int      `json:"line"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check [config-file]",
		Short: "Check a monitoring configuration",
		Long: `Read a monitoring configuration, report every problem found and
list the channels that would be monitored.

Malformed entries are reported and skipped, as run does. The command
fails if any entry has an error.

Examples:
  kryten check kryten.conf
  kryten check --monitor 'TANK:LEVEL 5.0 ~ 205.0 /usr/local/bin/tank_alarm'
  kryten check kryten.conf --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Monitor, "monitor", "m", "", "configuration given inline instead of a file")

	return cmd
}

func runCheck(opts *CheckOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Diagnostics are the output here; do not log them as well.
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	parsed, source, err := readConfig(opts.Monitor, args, quiet)
	if err != nil {
		if opts.Format == "json" {
			_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		}
		return err
	}
	formatter.VerboseLog("configuration: %s", source)

	channels := registerAll(parsed.Entries)
	result := CheckResult{
		Source:      source,
		Entries:     len(parsed.Entries),
		Errors:      parsed.Errors(),
		Warnings:    len(parsed.Diagnostics) - parsed.Errors(),
		Diagnostics: make([]DiagnosticInfo, 0, len(parsed.Diagnostics)),
		Channels:    make([]ChannelInfo, 0, len(channels)),
	}
	for _, d := range parsed.Diagnostics {
		result.Diagnostics = append(result.Diagnostics, DiagnosticInfo{
			Line:     d.Line,
			Severity: string(d.Severity),
			Message:  d.Message,
			Text:     d.Text,
		})
	}
	for _, ch := range channels {
		info := ChannelInfo{
			Name:    ch.Name,
			Index:   ch.Index,
			Request: ch.Request().String(),
			Command: ch.Command,
			Line:    ch.Line,
		}
		for _, r := range ch.Rules.Rules() {
			info.Matches = append(info.Matches, monitor.Criterion(r))
		}
		result.Channels = append(result.Channels, info)
	}

	var failure *ExitError
	if result.Errors > 0 {
		failure = NewExitError(ExitFailure, fmt.Sprintf("configuration has %d error(s)", result.Errors))
	}

	if opts.Format == "json" {
		var cliErr *CLIError
		if failure != nil {
			cliErr = &CLIError{Code: ErrCodeConfig, Message: failure.Message}
		}
		if err := formatter.Result(result, cliErr); err != nil {
			return err
		}
		if failure != nil {
			return failure
		}
		return nil
	}

	w := cmd.OutOrStdout()
	for _, d := range parsed.Diagnostics {
		fmt.Fprintln(w, d.Error())
	}
	if err := monitor.WriteListing(w, channels); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d entries, %d error(s), %d warning(s)\n", result.Entries, result.Errors, result.Warnings)

	if failure != nil {
		return failure
	}
	return nil
}

// readConfig scans the inline configuration if given, otherwise the file
// named by the only argument. It returns the scan result and the name of
// what was read.
func readConfig(inline string, args []string, logger *slog.Logger) (*config.Result, string, error) {
	if inline != "" {
		res, err := config.ScanString(inline, logger)
		if err != nil {
			return nil, "", WrapExitError(ExitFailure, "PV client list creation failed", err)
		}
		return res, config.InlineSource, nil
	}

	if len(args) == 0 || args[0] == "" {
		return nil, "", NewExitError(ExitFailure, "missing/null configuration file parameter")
	}
	res, err := config.ScanFile(args[0], logger)
	if err != nil {
		return nil, "", WrapExitError(ExitFailure, "PV client list creation failed", err)
	}
	return res, args[0], nil
}

// registerAll returns channels for entries without an engine to run them.
func registerAll(entries []config.Entry) []*match.Channel {
	engine := match.New(nil)
	for _, e := range entries {
		engine.Register(e)
	}
	return engine.Channels()
}
